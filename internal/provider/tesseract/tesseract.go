package tesseract

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/zatobox/invoice-ocr/constants"
)

type Config struct {
	Tesseract   string // binary name or path; default "tesseract"
	Pdftotext   string // binary name or path; default "pdftotext"
	Lang        string // default "spa"
	TessdataDir string
}

// Provider runs tesseract (images) or pdftotext (PDFs) locally. The prompt is
// ignored, so its output is plain text rather than structured JSON.
type Provider struct {
	cfg    Config
	runner Runner
	logger *slog.Logger
}

func New(cfg Config, logger *slog.Logger) *Provider {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Tesseract == "" {
		cfg.Tesseract = "tesseract"
	}
	if cfg.Pdftotext == "" {
		cfg.Pdftotext = "pdftotext"
	}
	if cfg.Lang == "" {
		cfg.Lang = "spa"
	}
	return &Provider{cfg: cfg, runner: execRunner{logger: logger}, logger: logger}
}

// WithRunner swaps the command runner.
func (p *Provider) WithRunner(r Runner) *Provider {
	p.runner = r
	return p
}

func (p *Provider) GenerateContent(ctx context.Context, _ string, data []byte, mimeType string) (string, error) {
	start := time.Now()

	ext := extFor(mimeType)
	tmp, err := os.CreateTemp("", "zatobox-ocr-*"+ext)
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	path := tmp.Name()
	defer func() { _ = os.Remove(path) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return "", fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close temp file: %w", err)
	}

	var out []byte
	var errb []byte
	method := "image-ocr"
	if constants.IsPDF(mimeType) {
		method = "pdf-text"
		// pdftotext -layout -enc UTF-8 -eol unix <path> -
		out, errb, err = p.runner.Run(ctx, p.cfg.Pdftotext, "-layout", "-enc", "UTF-8", "-eol", "unix", path, "-")
	} else {
		args := []string{path, "stdout", "-l", p.cfg.Lang}
		if p.cfg.TessdataDir != "" {
			args = append(args, "--tessdata-dir", p.cfg.TessdataDir)
		}
		out, errb, err = p.runner.Run(ctx, p.cfg.Tesseract, args...)
	}
	if err != nil {
		return "", fmt.Errorf("%s: %w: %s", method, err, strings.TrimSpace(string(errb)))
	}

	text := Normalize(reBoxNoise.ReplaceAllString(string(out), ""))
	p.logger.Info("tesseract.extract.ok",
		"method", method,
		"lang", p.cfg.Lang,
		"text_len", len(text),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return text, nil
}

func (p *Provider) Close() error { return nil }

func extFor(mimeType string) string {
	switch constants.NormalizeMIME(mimeType) {
	case constants.MIMEPDF:
		return ".pdf"
	case constants.MIMEPNG:
		return ".png"
	case constants.MIMEWEBP:
		return ".webp"
	default:
		return ".jpg"
	}
}

var (
	reCRLF       = regexp.MustCompile(`\r\n?`)
	reTabs       = regexp.MustCompile(`\t+`)
	reMultiSpace = regexp.MustCompile(` {2,}`)
	reMultiBlank = regexp.MustCompile(`\n{3,}`)
	reBoxNoise   = regexp.MustCompile(`(?m)^\s*[_\-]{3,}\s*$`)
)

// Normalize collapses noisy whitespace. Line breaks are kept; runs of blank
// lines collapse to one.
func Normalize(s string) string {
	if s == "" {
		return s
	}
	s = reCRLF.ReplaceAllString(s, "\n")
	s = strings.ReplaceAll(s, "\f", "\n")
	s = reTabs.ReplaceAllString(s, " ")
	s = reMultiSpace.ReplaceAllString(s, " ")
	lines := strings.Split(s, "\n")
	for i := range lines {
		lines[i] = strings.TrimRight(lines[i], " ")
	}
	s = strings.Join(lines, "\n")
	s = reMultiBlank.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}
