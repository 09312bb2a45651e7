package vertex

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"cloud.google.com/go/vertexai/genai"
)

const (
	DefaultModel  = "gemini-2.0-flash-001"
	DefaultRegion = "us-central1"
)

type Config struct {
	Project     string
	Region      string
	Model       string
	Temperature float32
}

// Provider calls Gemini through Vertex AI with application default credentials.
type Provider struct {
	client *genai.Client
	model  *genai.GenerativeModel
	name   string
	logger *slog.Logger
}

func New(ctx context.Context, cfg Config, logger *slog.Logger) (*Provider, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Project == "" {
		return nil, fmt.Errorf("vertex: project is required")
	}
	if cfg.Region == "" {
		cfg.Region = DefaultRegion
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}

	client, err := genai.NewClient(ctx, cfg.Project, cfg.Region)
	if err != nil {
		return nil, fmt.Errorf("genai.NewClient: %w", err)
	}
	model := client.GenerativeModel(cfg.Model)
	model.GenerationConfig = genai.GenerationConfig{
		Temperature: genai.Ptr(cfg.Temperature),
	}
	return &Provider{client: client, model: model, name: cfg.Model, logger: logger}, nil
}

func (p *Provider) GenerateContent(ctx context.Context, prompt string, data []byte, mimeType string) (string, error) {
	start := time.Now()
	resp, err := p.model.GenerateContent(ctx,
		genai.Text(prompt),
		genai.Blob{MIMEType: mimeType, Data: data},
	)
	if err != nil {
		p.logger.Error("vertex.generate.error", "model", p.name, "error", err, "elapsed_ms", time.Since(start).Milliseconds())
		return "", fmt.Errorf("vertex generate: %w", err)
	}
	text := ResponseText(resp)
	p.logger.Info("vertex.generate.ok",
		"model", p.name,
		"mime", mimeType,
		"text_len", len(text),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return text, nil
}

func (p *Provider) Close() error {
	if p.client != nil {
		return p.client.Close()
	}
	return nil
}

func ResponseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
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
