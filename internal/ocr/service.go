package ocr

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/zatobox/invoice-ocr/constants"
	"github.com/zatobox/invoice-ocr/internal/common"
	"github.com/zatobox/invoice-ocr/internal/entity"
	"github.com/zatobox/invoice-ocr/internal/normalize"
	"github.com/zatobox/invoice-ocr/internal/provider"
	"github.com/zatobox/invoice-ocr/internal/ratelimit"
)

// BatchCaller is the caller key used for local files.
const BatchCaller = "batch"

// Store persists processed results.
type Store interface {
	Save(ctx context.Context, r entity.StoredResult) error
}

// Archiver keeps a copy of the uploaded bytes.
type Archiver interface {
	Archive(ctx context.Context, key string, data []byte, mimeType string) error
}

// Upload is one document received from a client.
type Upload struct {
	Filename  string
	MIMEType  string
	Data      []byte
	CallerKey string
}

// Service runs an upload through the provider and the normalizer.
type Service struct {
	provider    provider.Provider
	limiter     ratelimit.Limiter
	normalizer  *normalize.Normalizer
	store       Store
	archiver    Archiver
	prompt      string
	timeout     time.Duration
	maxPDFPages int
	pageCount   func([]byte) (int, error)
	now         func() time.Time
	logger      *slog.Logger
}

type Option func(*Service)

// waiter is implemented by limiters that know when a caller may retry.
type waiter interface {
	RetryAfter(key string) time.Duration
}

func WithLimiter(l ratelimit.Limiter) Option {
	return func(s *Service) {
		if l != nil {
			s.limiter = l
		}
	}
}

func WithNormalizer(n *normalize.Normalizer) Option {
	return func(s *Service) {
		if n != nil {
			s.normalizer = n
		}
	}
}

func WithStore(st Store) Option {
	return func(s *Service) { s.store = st }
}

func WithArchiver(a Archiver) Option {
	return func(s *Service) { s.archiver = a }
}

func WithPrompt(p string) Option {
	return func(s *Service) { s.prompt = provider.Prompt(p) }
}

func WithTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithMaxPDFPages caps the page count of PDF uploads; 0 disables the cap.
func WithMaxPDFPages(n int) Option {
	return func(s *Service) {
		if n >= 0 {
			s.maxPDFPages = n
		}
	}
}

// NewService wires a Service. A nil provider is allowed; every request then
// fails with a configuration error.
func NewService(p provider.Provider, logger *slog.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{
		provider:    p,
		limiter:     ratelimit.Unlimited{},
		normalizer:  normalize.New(),
		prompt:      provider.DefaultPrompt,
		timeout:     60 * time.Second,
		maxPDFPages: 10,
		pageCount:   pdfPageCount,
		now:         time.Now,
		logger:      logger,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Process handles one client upload.
func (s *Service) Process(ctx context.Context, up Upload) (normalize.Result, error) {
	reqID := common.RequestIDFromContext(ctx)
	caller := up.CallerKey
	if caller == "" {
		caller = common.CallerKeyFromContext(ctx)
	}

	if !s.limiter.CheckAndRecord(caller) {
		appErr := common.NewAppError("RATE_LIMITED", "too many requests", common.ErrRateLimited)
		if w, ok := s.limiter.(waiter); ok {
			appErr.RetryAfter = w.RetryAfter(caller)
		}
		s.logger.Warn("ocr.process.rate_limited", "req_id", reqID, "caller", hashCaller(caller)[:12], "retry_after_s", appErr.RetryAfter.Seconds())
		return normalize.Result{}, appErr
	}
	return s.run(ctx, up, caller)
}

// ProcessFile handles a local document. Rate limiting does not apply.
func (s *Service) ProcessFile(ctx context.Context, filePath string) (normalize.Result, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return normalize.Result{}, fmt.Errorf("read %s: %w", filePath, err)
	}
	return s.run(ctx, Upload{
		Filename: filepath.Base(filePath),
		MIMEType: constants.MIMEFromExt(filepath.Ext(filePath)),
		Data:     data,
	}, BatchCaller)
}

func (s *Service) run(ctx context.Context, up Upload, caller string) (normalize.Result, error) {
	start := time.Now()
	reqID := common.RequestIDFromContext(ctx)

	mimeType, err := s.checkFile(up)
	if err != nil {
		s.logger.Warn("ocr.process.invalid_file", "req_id", reqID, "filename", up.Filename, "mime", up.MIMEType, "error", err)
		return normalize.Result{}, err
	}

	if s.provider == nil {
		return normalize.Result{}, common.NewAppError("NOT_CONFIGURED", "GEMINI_API_KEY not configured", common.ErrNotConfigured)
	}

	s.logger.Info("ocr.process.start", "req_id", reqID, "filename", up.Filename, "mime", mimeType, "bytes", len(up.Data))

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	text, err := s.provider.GenerateContent(callCtx, s.prompt, up.Data, mimeType)
	cancel()
	if err != nil {
		s.logger.Error("ocr.provider.error", "req_id", reqID, "error", err, "elapsed_ms", time.Since(start).Milliseconds())
		return normalize.Result{}, common.NewAppError("PROVIDER_ERROR", err.Error(), errors.Join(common.ErrProvider, err))
	}

	res := s.normalizer.Parse(StripCodeFence(text))
	res.ID = uuid.NewString()

	s.persist(ctx, res, up, mimeType, caller)
	s.archive(ctx, res.ID, up, mimeType)

	s.logger.Info("ocr.process.ok",
		"req_id", reqID,
		"result_id", res.ID,
		"structured", res.Structured(),
		"line_items", len(res.LineItems),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return res, nil
}

// checkFile returns the effective MIME type of an accepted upload.
func (s *Service) checkFile(up Upload) (string, error) {
	mimeType := constants.NormalizeMIME(up.MIMEType)
	if mimeType == "" || mimeType == "application/octet-stream" {
		mimeType = constants.MIMEFromExt(filepath.Ext(up.Filename))
	}
	if !constants.IsAllowedMIME(mimeType) {
		return "", common.NewAppError("INVALID_FILE_TYPE", "Invalid file type", common.ErrInvalidFileType)
	}
	if len(up.Data) == 0 {
		return "", common.NewAppError("EMPTY_FILE", "empty file", common.ErrInvalidInput)
	}

	if constants.IsPDF(mimeType) {
		pages, err := s.pageCount(up.Data)
		if err != nil {
			return "", common.NewAppError("INVALID_FILE_TYPE", "unreadable pdf", errors.Join(common.ErrInvalidFileType, err))
		}
		if s.maxPDFPages > 0 && pages > s.maxPDFPages {
			return "", common.NewAppError("TOO_MANY_PAGES",
				fmt.Sprintf("pdf has %d pages, limit is %d", pages, s.maxPDFPages), common.ErrInvalidInput)
		}
	}
	return mimeType, nil
}

func (s *Service) persist(ctx context.Context, res normalize.Result, up Upload, mimeType, caller string) {
	if s.store == nil {
		return
	}
	id, _ := uuid.Parse(res.ID)
	err := s.store.Save(ctx, entity.StoredResult{
		ID:         id,
		CallerHash: hashCaller(caller),
		Filename:   up.Filename,
		MIMEType:   mimeType,
		Status:     entity.StatusOf(res),
		Result:     res,
		CreatedAt:  s.now().UTC(),
	})
	if err != nil {
		s.logger.Error("ocr.store.error", "req_id", common.RequestIDFromContext(ctx), "result_id", res.ID, "error", err)
	}
}

func (s *Service) archive(ctx context.Context, id string, up Upload, mimeType string) {
	if s.archiver == nil {
		return
	}
	name := filepath.Base(up.Filename)
	if name == "." || name == "/" || name == "" {
		name = "upload"
	}
	key := path.Join("uploads", id, name)
	if err := s.archiver.Archive(ctx, key, up.Data, mimeType); err != nil {
		s.logger.Error("ocr.archive.error", "req_id", common.RequestIDFromContext(ctx), "key", key, "error", err)
	}
}

// StripCodeFence removes a surrounding ```json ... ``` fence from model output.
func StripCodeFence(text string) string {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimSuffix(text, "```")
	return strings.TrimSpace(text)
}

func hashCaller(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}

var disableConfigDir sync.Once

func pdfPageCount(data []byte) (int, error) {
	disableConfigDir.Do(api.DisableConfigDir)
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return api.PageCount(bytes.NewReader(data), conf)
}
