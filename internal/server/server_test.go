package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zatobox/invoice-ocr/internal/auth"
	"github.com/zatobox/invoice-ocr/internal/common"
	"github.com/zatobox/invoice-ocr/internal/entity"
	"github.com/zatobox/invoice-ocr/internal/inventory"
	"github.com/zatobox/invoice-ocr/internal/ocr"
	"github.com/zatobox/invoice-ocr/internal/ratelimit"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubProvider struct {
	text string
	err  error
}

func (s stubProvider) GenerateContent(context.Context, string, []byte, string) (string, error) {
	return s.text, s.err
}

func (stubProvider) Close() error { return nil }

type memStore struct {
	byID map[uuid.UUID]entity.StoredResult
}

func newMemStore() *memStore { return &memStore{byID: map[uuid.UUID]entity.StoredResult{}} }

func (m *memStore) Save(_ context.Context, r entity.StoredResult) error {
	m.byID[r.ID] = r
	return nil
}

func (m *memStore) Get(_ context.Context, id uuid.UUID) (*entity.StoredResult, error) {
	r, ok := m.byID[id]
	if !ok {
		return nil, common.NewAppError("NOT_FOUND", "result not found", common.ErrNotFound)
	}
	return &r, nil
}

type stubExporter struct{}

func (stubExporter) ExportResult(_ context.Context, id uuid.UUID) ([]byte, error) {
	return []byte("xlsx:" + id.String()), nil
}

func (stubExporter) ExportRecent(_ context.Context, limit int) ([]byte, error) {
	return []byte(fmt.Sprintf("xlsx:recent:%d", limit)), nil
}

type recordingInventory struct {
	auth     string
	products []inventory.Product
}

func (r *recordingInventory) CreateBulk(_ context.Context, authHeader string, products []inventory.Product) (inventory.BulkResponse, error) {
	if len(products) == 0 {
		return inventory.BulkResponse{}, common.NewAppError("NO_PRODUCTS", "No valid products to create", common.ErrInvalidInput)
	}
	r.auth = authHeader
	r.products = products
	return inventory.BulkResponse{Status: http.StatusCreated, OK: true, Body: map[string]any{"created": len(products)}}, nil
}

const invoice = "```json\n{\"metadata\":{\"company_name\":\"Super\",\"iva\":\"0.12\"},\"line_items\":[{\"name\":\"Queso\",\"quantity\":1,\"unit_price\":\"1.00\"}]}\n```"

type fixture struct {
	router *gin.Engine
	store  *memStore
	inv    *recordingInventory
}

func newFixture(t *testing.T, prov stubProvider, opts ...ocr.Option) fixture {
	t.Helper()
	store := newMemStore()
	inv := &recordingInventory{}
	opts = append([]ocr.Option{ocr.WithStore(store)}, opts...)
	svc := ocr.NewService(prov, nil, opts...)
	r := NewRouter(Deps{
		OCR:       svc,
		Results:   store,
		Exporter:  stubExporter{},
		Inventory: inv,
		Callers:   auth.NewIdentifier(""),
	})
	return fixture{router: r, store: store, inv: inv}
}

func multipartBody(t *testing.T, field, filename, contentType string, data []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="`+field+`"; filename="`+filename+`"`)
	h.Set("Content-Type", contentType)
	part, err := w.CreatePart(h)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

func do(r http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestBannerAndHealth(t *testing.T) {
	f := newFixture(t, stubProvider{})

	rec := do(f.router, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, Banner, decode(t, rec)["message"])
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	rec = do(f.router, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, "ok", decode(t, rec)["status"])

	req := httptest.NewRequest(http.MethodPost, "/ocr", bytes.NewBufferString(`{}`))
	req.Header.Set("Content-Type", "application/json")
	rec = do(f.router, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, Banner, decode(t, rec)["message"])
}

func TestRequestIDEchoed(t *testing.T) {
	f := newFixture(t, stubProvider{})
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-ID", "req-123")
	rec := do(f.router, req)
	assert.Equal(t, "req-123", rec.Header().Get("X-Request-ID"))
}

func TestUpload_Structured(t *testing.T) {
	f := newFixture(t, stubProvider{text: invoice})

	body, ct := multipartBody(t, "file", "factura.png", "image/png", []byte("\x89PNG"))
	req := httptest.NewRequest(http.MethodPost, "/ocr", body)
	req.Header.Set("Content-Type", ct)
	rec := do(f.router, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	out := decode(t, rec)
	assert.Equal(t, 0.95, out["confidence"])
	assert.Equal(t, "es", out["language"])
	items := out["line_items"].([]any)
	require.Len(t, items, 1)
	assert.Equal(t, "1.00", items[0].(map[string]any)["total_price"])
	assert.Equal(t, out["line_items"], out["products"])
	meta := out["metadata"].(map[string]any)
	assert.Equal(t, "1.12", meta["total"])

	id := out["id"].(string)
	rec = do(f.router, httptest.NewRequest(http.MethodGet, "/ocr/results/"+id, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, id, decode(t, rec)["id"])

	rec = do(f.router, httptest.NewRequest(http.MethodGet, "/ocr/results/"+id+"/export", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, xlsxContentType, rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "ocr-"+id+".xlsx")
}

func TestUpload_Degraded(t *testing.T) {
	f := newFixture(t, stubProvider{text: "no es json"})

	body, ct := multipartBody(t, "file", "f.jpg", "image/jpeg", []byte("jpg"))
	req := httptest.NewRequest(http.MethodPost, "/ocr", body)
	req.Header.Set("Content-Type", ct)
	rec := do(f.router, req)

	require.Equal(t, http.StatusOK, rec.Code)
	out := decode(t, rec)
	assert.Equal(t, "no es json", out["text"])
	assert.NotContains(t, out, "line_items")
	assert.NotContains(t, out, "metadata")
	assert.NotContains(t, out, "products")
}

func TestUpload_Errors(t *testing.T) {
	tests := []struct {
		name     string
		provider stubProvider
		field    string
		filename string
		ctype    string
		status   int
		detail   string
	}{
		{"missing file field", stubProvider{text: "[]"}, "document", "a.png", "image/png", http.StatusBadRequest, "No file found in form-data"},
		{"wrong type", stubProvider{text: "[]"}, "file", "a.gif", "image/gif", http.StatusBadRequest, "Invalid file type"},
		{"provider error", stubProvider{err: errors.New("upstream 503")}, "file", "a.png", "image/png", http.StatusInternalServerError, "Error: upstream 503"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, tt.provider)
			body, ct := multipartBody(t, tt.field, tt.filename, tt.ctype, []byte("data"))
			req := httptest.NewRequest(http.MethodPost, "/ocr", body)
			req.Header.Set("Content-Type", ct)
			rec := do(f.router, req)
			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.detail, decode(t, rec)["detail"])
		})
	}
}

func TestUpload_NotConfigured(t *testing.T) {
	r := NewRouter(Deps{OCR: ocr.NewService(nil, nil)})
	body, ct := multipartBody(t, "file", "a.png", "image/png", []byte("data"))
	req := httptest.NewRequest(http.MethodPost, "/ocr", body)
	req.Header.Set("Content-Type", ct)
	rec := do(r, req)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Error: GEMINI_API_KEY not configured", decode(t, rec)["detail"])
}

func TestUpload_RateLimitedPerCaller(t *testing.T) {
	f := newFixture(t, stubProvider{text: "[]"}, ocr.WithLimiter(ratelimit.NewWindowLimiter(time.Minute)))

	send := func(token string) *httptest.ResponseRecorder {
		body, ct := multipartBody(t, "file", "a.png", "image/png", []byte("data"))
		req := httptest.NewRequest(http.MethodPost, "/ocr", body)
		req.Header.Set("Content-Type", ct)
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		return do(f.router, req)
	}

	assert.Equal(t, http.StatusOK, send("alice").Code)
	rec := send("alice")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "Too many requests. Please wait a moment and try again.", decode(t, rec)["detail"])
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))
	assert.Equal(t, http.StatusOK, send("bob").Code)
	assert.Equal(t, http.StatusOK, send("").Code)
	assert.Equal(t, http.StatusTooManyRequests, send("").Code)
}

func TestUpload_TooLarge(t *testing.T) {
	r := NewRouter(Deps{OCR: ocr.NewService(stubProvider{text: "[]"}, nil), MaxUploadBytes: 64})
	body, ct := multipartBody(t, "file", "a.png", "image/png", bytes.Repeat([]byte("x"), 1024))
	req := httptest.NewRequest(http.MethodPost, "/ocr", body)
	req.Header.Set("Content-Type", ct)
	rec := do(r, req)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestGlobalThrottle(t *testing.T) {
	r := NewRouter(Deps{OCR: ocr.NewService(nil, nil), RPS: 0.001, Burst: 1})

	assert.Equal(t, http.StatusOK, do(r, httptest.NewRequest(http.MethodGet, "/", nil)).Code)
	rec := do(r, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "Too many requests. Please wait a moment and try again.", decode(t, rec)["detail"])
	assert.Equal(t, http.StatusOK, do(r, httptest.NewRequest(http.MethodGet, "/healthz", nil)).Code)
}

func TestResults_Errors(t *testing.T) {
	f := newFixture(t, stubProvider{})

	rec := do(f.router, httptest.NewRequest(http.MethodGet, "/ocr/results/not-a-uuid", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid result id", decode(t, rec)["detail"])

	rec = do(f.router, httptest.NewRequest(http.MethodGet, "/ocr/results/"+uuid.NewString(), nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	r := NewRouter(Deps{OCR: ocr.NewService(nil, nil)})
	rec = do(r, httptest.NewRequest(http.MethodGet, "/ocr/results/"+uuid.NewString()+"/export", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestBulk(t *testing.T) {
	f := newFixture(t, stubProvider{})

	req := httptest.NewRequest(http.MethodPost, "/ocr/bulk",
		bytes.NewBufferString(`{"line_items":[{"name":"Queso","unit_price":"2,50","quantity":"3 u"}]}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer tok")
	rec := do(f.router, req)

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	out := decode(t, rec)
	assert.Equal(t, true, out["ok"])
	assert.Equal(t, float64(201), out["status"])
	assert.Equal(t, "Bearer tok", f.inv.auth)
	require.Len(t, f.inv.products, 1)
	assert.Equal(t, int64(250), f.inv.products[0].Prices[0].PriceAmount)
	assert.Equal(t, 3, f.inv.products[0].Metadata.Quantity)
}

func TestBulk_Errors(t *testing.T) {
	f := newFixture(t, stubProvider{})

	rec := do(f.router, httptest.NewRequest(http.MethodPost, "/ocr/bulk", bytes.NewBufferString(`"nope"`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "body must be a list of line items", decode(t, rec)["detail"])

	for _, body := range []string{`[]`, `{"line_items":[]}`} {
		rec = do(f.router, httptest.NewRequest(http.MethodPost, "/ocr/bulk", bytes.NewBufferString(body)))
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
		assert.Equal(t, "No valid products to create", decode(t, rec)["detail"], body)
	}
	assert.Empty(t, f.inv.products, "nothing reaches the inventory backend")
}

func TestNoRoute(t *testing.T) {
	f := newFixture(t, stubProvider{})
	rec := do(f.router, httptest.NewRequest(http.MethodGet, "/nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Not found", decode(t, rec)["detail"])
}

func TestCallerMiddleware(t *testing.T) {
	tests := []struct {
		name   string
		ids    CallerIdentifier
		header string
		want   string
	}{
		{"no header", nil, "", auth.Anonymous},
		{"raw bearer without identifier", nil, "Bearer abc", "abc"},
		{"identifier without secret", auth.NewIdentifier(""), "Bearer abc", "abc"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := gin.New()
			r.Use(Caller(tt.ids))
			var got string
			r.GET("/", func(c *gin.Context) {
				got = common.CallerKeyFromContext(c.Request.Context())
			})
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			do(r, req)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExportRecent(t *testing.T) {
	f := newFixture(t, stubProvider{})

	tests := []struct {
		name   string
		query  string
		status int
		body   string
	}{
		{"default limit", "", http.StatusOK, "xlsx:recent:100"},
		{"explicit limit", "?limit=5", http.StatusOK, "xlsx:recent:5"},
		{"zero", "?limit=0", http.StatusBadRequest, ""},
		{"not a number", "?limit=all", http.StatusBadRequest, ""},
		{"too large", "?limit=5000", http.StatusBadRequest, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(f.router, httptest.NewRequest(http.MethodGet, "/ocr/export"+tt.query, nil))
			require.Equal(t, tt.status, rec.Code, rec.Body.String())
			if tt.status != http.StatusOK {
				assert.Equal(t, "limit must be between 1 and 1000", decode(t, rec)["detail"])
				return
			}
			assert.Equal(t, tt.body, rec.Body.String())
			assert.Equal(t, xlsxContentType, rec.Header().Get("Content-Type"))
		})
	}
}
