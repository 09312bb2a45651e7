package provider

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/zatobox/invoice-ocr/internal/common"
	"github.com/zatobox/invoice-ocr/internal/provider/gemini"
	"github.com/zatobox/invoice-ocr/internal/provider/tesseract"
	"github.com/zatobox/invoice-ocr/internal/provider/vertex"
)

// Provider turns an uploaded document into model text.
type Provider interface {
	GenerateContent(ctx context.Context, prompt string, data []byte, mimeType string) (string, error)
	Close() error
}

// DefaultPrompt asks for the document shape the normalizer understands.
const DefaultPrompt = `You are an invoice reader. Extract the purchased products from the attached document.
Return ONLY JSON, without explanations, using this shape:
{
  "metadata": {
    "company_name": "", "ruc": "", "date": "", "invoice_number": "",
    "subtotal": "", "iva": "", "total": ""
  },
  "line_items": [
    {"name": "", "description": "", "category": "", "quantity": 1, "unit_price": "", "total_price": ""}
  ]
}
Copy amounts exactly as printed. Use an empty string for any value that is not visible.`

// Prompt returns the configured prompt, or DefaultPrompt when none is set.
func Prompt(configured string) string {
	if p := strings.TrimSpace(configured); p != "" {
		return p
	}
	return DefaultPrompt
}

// New builds the provider selected by cfg.Provider. It returns (nil, nil) when
// that provider lacks credentials, so requests fail with a configuration error
// while the process keeps serving.
func New(ctx context.Context, cfg common.OCRConfig, logger *slog.Logger) (Provider, error) {
	if logger == nil {
		logger = slog.Default()
	}

	switch cfg.Provider {
	case "", "gemini":
		if cfg.APIKey == "" {
			logger.Warn("provider.not_configured", "provider", "gemini", "reason", "GEMINI_API_KEY empty")
			return nil, nil
		}
		p, err := gemini.New(ctx, gemini.Config{
			APIKey:      cfg.APIKey,
			Model:       cfg.Model,
			Temperature: cfg.Temperature,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("gemini provider: %w", err)
		}
		return p, nil
	case "vertex":
		if cfg.VertexProject == "" {
			logger.Warn("provider.not_configured", "provider", "vertex", "reason", "VERTEX_PROJECT empty")
			return nil, nil
		}
		p, err := vertex.New(ctx, vertex.Config{
			Project:     cfg.VertexProject,
			Region:      cfg.VertexRegion,
			Model:       cfg.Model,
			Temperature: cfg.Temperature,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("vertex provider: %w", err)
		}
		return p, nil
	case "tesseract":
		return tesseract.New(tesseract.Config{
			Lang:        cfg.TesseractLang,
			TessdataDir: cfg.TessdataDir,
		}, logger), nil
	default:
		return nil, fmt.Errorf("unknown provider %q: %w", cfg.Provider, common.ErrInvalidInput)
	}
}
