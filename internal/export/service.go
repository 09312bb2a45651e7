package export

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/zatobox/invoice-ocr/internal/entity"
)

const (
	SheetLineItems = "Line Items"
	SheetDocuments = "Documents"
)

// ResultReader is the slice of the result repository the exporter needs.
type ResultReader interface {
	Get(ctx context.Context, id uuid.UUID) (*entity.StoredResult, error)
	List(ctx context.Context, limit int) ([]entity.StoredResult, error)
}

// Service produces XLSX bytes from stored results.
type Service struct {
	results ResultReader
	logger  *slog.Logger
}

func NewService(results ResultReader, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{results: results, logger: logger}
}

// ExportResult returns a workbook for one stored result.
func (s *Service) ExportResult(ctx context.Context, id uuid.UUID) ([]byte, error) {
	res, err := s.results.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.write([]entity.StoredResult{*res})
}

// ExportRecent returns a workbook with the newest limit results.
func (s *Service) ExportRecent(ctx context.Context, limit int) ([]byte, error) {
	recs, err := s.results.List(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("query results: %w", err)
	}
	return s.write(recs)
}

func (s *Service) write(recs []entity.StoredResult) ([]byte, error) {
	start := time.Now()
	b, err := ExportResultsXLSX(recs)
	if err != nil {
		s.logger.Error("export.xlsx.error", "error", err)
		return nil, err
	}
	s.logger.Info("export.xlsx.ok",
		"documents", len(recs),
		"bytes", len(b),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return b, nil
}

// ExportResultsXLSX writes a line item sheet and a document sheet. Amounts are
// numeric cells; missing amounts are left blank.
func ExportResultsXLSX(recs []entity.StoredResult) ([]byte, error) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", SheetLineItems); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}
	if _, err := f.NewSheet(SheetDocuments); err != nil {
		return nil, fmt.Errorf("new sheet: %w", err)
	}
	idx, _ := f.GetSheetIndex(SheetLineItems)
	f.SetActiveSheet(idx)

	writeRow(f, SheetLineItems, 1, "Result ID", "File", "Name", "Description", "Category", "Unit Price", "Quantity", "Total")
	writeRow(f, SheetDocuments, 1, "Result ID", "File", "Status", "Company", "RUC", "Date", "Invoice Number", "Subtotal", "IVA", "Total")

	itemRow, docRow := 2, 2
	for _, r := range recs {
		id := r.ID.String()
		for _, it := range r.Result.LineItems {
			writeRow(f, SheetLineItems, itemRow,
				id, r.Filename, it.Name, truncate(it.Description, 200), it.Category,
				money(it.UnitPrice), it.Quantity, money(it.TotalPrice))
			itemRow++
		}

		if m := r.Result.Metadata; m != nil {
			writeRow(f, SheetDocuments, docRow,
				id, r.Filename, string(r.Status), m.CompanyName, m.RUC, m.Date, m.InvoiceNumber,
				money(m.Subtotal), money(m.IVA), money(m.Total))
		} else {
			writeRow(f, SheetDocuments, docRow, id, r.Filename, string(r.Status))
		}
		docRow++
	}

	_ = f.SetColWidth(SheetLineItems, "A", "B", 38)
	_ = f.SetColWidth(SheetLineItems, "C", "D", 32)
	_ = f.SetColWidth(SheetLineItems, "E", "E", 18)
	_ = f.SetColWidth(SheetLineItems, "F", "H", 12)
	_ = f.SetColWidth(SheetDocuments, "A", "B", 38)
	_ = f.SetColWidth(SheetDocuments, "C", "G", 18)
	_ = f.SetColWidth(SheetDocuments, "H", "J", 12)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}
	return buf.Bytes(), nil
}

func writeRow(f *excelize.File, sheet string, row int, values ...any) {
	for i, v := range values {
		if v == nil {
			continue
		}
		cell, _ := excelize.CoordinatesToCellName(i+1, row)
		_ = f.SetCellValue(sheet, cell, v)
	}
}

// money returns a float for a formatted amount, or nil when it is empty.
func money(s string) any {
	if s == "" {
		return nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return s
	}
	return d.InexactFloat64()
}

func truncate(s string, n int) string {
	r := []rune(s)
	if n <= 0 || len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
