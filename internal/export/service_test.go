package export

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/zatobox/invoice-ocr/internal/common"
	"github.com/zatobox/invoice-ocr/internal/entity"
	"github.com/zatobox/invoice-ocr/internal/normalize"
)

type memResults map[uuid.UUID]entity.StoredResult

func (m memResults) Get(_ context.Context, id uuid.UUID) (*entity.StoredResult, error) {
	r, ok := m[id]
	if !ok {
		return nil, common.NewAppError("NOT_FOUND", "result not found", common.ErrNotFound)
	}
	return &r, nil
}

func (m memResults) List(_ context.Context, _ int) ([]entity.StoredResult, error) {
	out := make([]entity.StoredResult, 0, len(m))
	for _, r := range m {
		out = append(out, r)
	}
	return out, nil
}

func sample(text string) entity.StoredResult {
	res := normalize.New().Parse(text)
	return entity.StoredResult{
		ID:        uuid.New(),
		Filename:  "factura.png",
		Status:    entity.StatusOf(res),
		Result:    res,
		CreatedAt: time.Now().UTC(),
	}
}

func TestExportResultsXLSX(t *testing.T) {
	structured := sample(`{"metadata":{"company_name":"Tienda","iva":"0.36"},"line_items":[` +
		`{"name":"Leche","quantity":2,"unit_price":"1,50"},{"name":"Pan","quantity":1,"unit_price":"0.75"}]}`)
	degraded := sample("unreadable")

	b, err := ExportResultsXLSX([]entity.StoredResult{structured, degraded})
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(b))
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	assert.Equal(t, []string{SheetLineItems, SheetDocuments}, f.GetSheetList())

	items, err := f.GetRows(SheetLineItems)
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.Equal(t, "Unit Price", items[0][5])
	assert.Equal(t, "Leche", items[1][2])
	assert.Equal(t, "3", items[1][7])
	assert.Equal(t, "0.75", items[2][5])

	cellType, err := f.GetCellType(SheetLineItems, "H2")
	require.NoError(t, err)
	assert.NotEqual(t, excelize.CellTypeSharedString, cellType)
	assert.NotEqual(t, excelize.CellTypeInlineString, cellType)

	docs, err := f.GetRows(SheetDocuments)
	require.NoError(t, err)
	require.Len(t, docs, 3)
	assert.Equal(t, "STRUCTURED", docs[1][2])
	assert.Equal(t, "Tienda", docs[1][3])
	assert.Equal(t, "3.75", docs[1][7])
	assert.Equal(t, "0.36", docs[1][8])
	assert.Equal(t, "4.11", docs[1][9])
	assert.Equal(t, []string{degraded.ID.String(), "factura.png", "TEXT_ONLY"}, docs[2])
}

func TestService_ExportResult(t *testing.T) {
	r := sample(`[{"name":"Agua","quantity":"3","unit_price":"0.40"}]`)
	svc := NewService(memResults{r.ID: r}, nil)

	b, err := svc.ExportResult(context.Background(), r.ID)
	require.NoError(t, err)
	f, err := excelize.OpenReader(bytes.NewReader(b))
	require.NoError(t, err)
	v, err := f.GetCellValue(SheetLineItems, "H2")
	require.NoError(t, err)
	assert.Equal(t, "1.2", v)

	_, err = svc.ExportResult(context.Background(), uuid.New())
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestService_ExportRecent(t *testing.T) {
	a, b := sample("[]"), sample("x")
	svc := NewService(memResults{a.ID: a, b.ID: b}, nil)

	out, err := svc.ExportRecent(context.Background(), 10)
	require.NoError(t, err)
	f, err := excelize.OpenReader(bytes.NewReader(out))
	require.NoError(t, err)
	docs, err := f.GetRows(SheetDocuments)
	require.NoError(t, err)
	assert.Len(t, docs, 3)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", truncate("abc", 5))
	assert.Equal(t, "ab…", truncate("abcdef", 3))
	assert.Equal(t, "ñá…", truncate("ñáéí", 3))
}
