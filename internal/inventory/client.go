package inventory

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/zatobox/invoice-ocr/internal/auth"
	"github.com/zatobox/invoice-ocr/internal/common"
)

// BulkResponse relays the inventory service reply. Body is decoded JSON when
// possible and the raw text otherwise.
type BulkResponse struct {
	Status int  `json:"status"`
	OK     bool `json:"ok"`
	Body   any  `json:"body"`
}

// Client posts product batches to the inventory service.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *slog.Logger
}

func NewClient(baseURL string, timeout time.Duration, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{baseURL: baseURL, http: &http.Client{Timeout: timeout}, logger: logger}
}

// CreateBulk sends products to /api/products/bulk, forwarding the caller's token.
func (c *Client) CreateBulk(ctx context.Context, authHeader string, products []Product) (BulkResponse, error) {
	if len(products) == 0 {
		return BulkResponse{}, common.NewAppError("NO_PRODUCTS", "No valid products to create", common.ErrInvalidInput)
	}
	if c.baseURL == "" {
		return BulkResponse{}, common.NewAppError("NOT_CONFIGURED", "INVENTORY_BASE_URL not configured", common.ErrNotConfigured)
	}

	headers := map[string]string{}
	if token := auth.BearerToken(authHeader); token != "" {
		headers["Authorization"] = "Bearer " + token
	}

	raw, status, err := c.sendJSON(ctx, c.baseURL+"/api/products/bulk", products, headers)
	if err != nil {
		return BulkResponse{}, common.NewAppError("INVENTORY_ERROR", err.Error(), err)
	}

	out := BulkResponse{Status: status, OK: status/100 == 2}
	var body any
	if err := json.Unmarshal(raw, &body); err == nil {
		out.Body = body
	} else {
		out.Body = string(raw)
	}
	return out, nil
}

// sendJSON posts body and returns the response regardless of status; only
// transport failures are errors.
func (c *Client) sendJSON(ctx context.Context, url string, body any, headers map[string]string) ([]byte, int, error) {
	reqID := common.RequestIDFromContext(ctx)
	start := time.Now()

	bs, err := json.Marshal(body)
	if err != nil {
		c.logger.Error("inventory.http.encode_error", "req_id", reqID, "error", err)
		return nil, 0, fmt.Errorf("encode json: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(bs))
	if err != nil {
		c.logger.Error("inventory.http.build_request_error", "req_id", reqID, "error", err)
		return nil, 0, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	if reqID != "" {
		req.Header.Set("X-Request-ID", reqID)
	}

	c.logger.Info("inventory.http.request", "req_id", reqID, "url", url, "content_length", len(bs))

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Error("inventory.http.send_error", "req_id", reqID, "error", err, "elapsed_ms", time.Since(start).Milliseconds())
		return nil, 0, fmt.Errorf("send request: %w", err)
	}
	defer func(Body io.ReadCloser) {
		if err := Body.Close(); err != nil {
			c.logger.Warn("inventory.http.response_body_close_error", "req_id", reqID, "error", err)
		}
	}(resp.Body)

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("read response: %w", err)
	}

	c.logger.Info("inventory.http.response",
		"req_id", reqID,
		"status", resp.StatusCode,
		"bytes", len(raw),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return raw, resp.StatusCode, nil
}
