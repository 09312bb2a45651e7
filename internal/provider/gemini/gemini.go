package gemini

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

const DefaultModel = "gemini-2.0-flash-001"

type Config struct {
	APIKey      string
	Model       string
	Temperature float32
}

// Provider calls the Gemini API with an API key.
type Provider struct {
	client *genai.Client
	model  string
	temp   float32
	logger *slog.Logger
}

func New(ctx context.Context, cfg Config, logger *slog.Logger) (*Provider, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini: api key is required")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("genai.NewClient: %w", err)
	}
	return &Provider{client: client, model: cfg.Model, temp: cfg.Temperature, logger: logger}, nil
}

func (p *Provider) GenerateContent(ctx context.Context, prompt string, data []byte, mimeType string) (string, error) {
	start := time.Now()
	model := p.client.GenerativeModel(p.model)
	model.SetTemperature(p.temp)

	resp, err := model.GenerateContent(ctx,
		genai.Text(prompt),
		genai.Blob{MIMEType: mimeType, Data: data},
	)
	if err != nil {
		p.logger.Error("gemini.generate.error", "model", p.model, "error", err, "elapsed_ms", time.Since(start).Milliseconds())
		return "", fmt.Errorf("gemini generate: %w", err)
	}

	text := ResponseText(resp)
	p.logger.Info("gemini.generate.ok",
		"model", p.model,
		"mime", mimeType,
		"bytes", len(data),
		"text_len", len(text),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return text, nil
}

func (p *Provider) Close() error {
	return p.client.Close()
}

// ResponseText joins the text parts of the first candidate.
func ResponseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			b.WriteString(string(txt))
		}
	}
	return b.String()
}
