package server

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/zatobox/invoice-ocr/internal/entity"
	"github.com/zatobox/invoice-ocr/internal/inventory"
	"github.com/zatobox/invoice-ocr/internal/normalize"
	"github.com/zatobox/invoice-ocr/internal/ocr"
)

// Banner is returned by GET / and by POST /ocr without a multipart body.
const Banner = "ZatoBox OCR API with Gemini"

type Processor interface {
	Process(ctx context.Context, up ocr.Upload) (normalize.Result, error)
}

type ResultReader interface {
	Get(ctx context.Context, id uuid.UUID) (*entity.StoredResult, error)
}

type Exporter interface {
	ExportResult(ctx context.Context, id uuid.UUID) ([]byte, error)
	ExportRecent(ctx context.Context, limit int) ([]byte, error)
}

type BulkCreator interface {
	CreateBulk(ctx context.Context, authHeader string, products []inventory.Product) (inventory.BulkResponse, error)
}

type CallerIdentifier interface {
	CallerKey(header string) string
}

// Deps wires the router. Results and Exporter may be nil when no store is configured.
type Deps struct {
	OCR            Processor
	Results        ResultReader
	Exporter       Exporter
	Inventory      BulkCreator
	Callers        CallerIdentifier
	Normalizer     *normalize.Normalizer
	MaxUploadBytes int64
	RPS            float64
	Burst          int
	Logger         *slog.Logger
}

type handlers struct {
	Deps
}

// NewRouter builds the gin engine for the HTTP API.
func NewRouter(d Deps) *gin.Engine {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.Normalizer == nil {
		d.Normalizer = normalize.New()
	}
	if d.MaxUploadBytes <= 0 {
		d.MaxUploadBytes = 10 << 20
	}
	h := &handlers{Deps: d}

	r := gin.New()
	r.Use(RequestID(), AccessLog(d.Logger), Recovery(d.Logger), Throttle(d.RPS, d.Burst, "/healthz"), Caller(d.Callers))
	r.MaxMultipartMemory = d.MaxUploadBytes

	r.GET("/", h.banner)
	r.GET("/healthz", h.health)
	r.POST("/", h.upload)
	r.POST("/ocr", h.upload)
	r.POST("/ocr/bulk", h.bulk)
	r.GET("/ocr/results/:id", h.getResult)
	r.GET("/ocr/results/:id/export", h.exportResult)
	r.GET("/ocr/export", h.exportRecent)

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"detail": "Not found"})
	})
	return r
}
