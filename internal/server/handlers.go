package server

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/zatobox/invoice-ocr/internal/common"
	"github.com/zatobox/invoice-ocr/internal/inventory"
	"github.com/zatobox/invoice-ocr/internal/ocr"
)

const (
	xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

	defaultExportLimit = 100
	maxExportLimit     = 1000
)

func (h *handlers) banner(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": Banner})
}

func (h *handlers) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *handlers) upload(c *gin.Context) {
	if !strings.Contains(c.GetHeader("Content-Type"), "multipart/form-data") {
		h.banner(c)
		return
	}

	if c.Request.ContentLength > h.MaxUploadBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"detail": "File too large"})
		return
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.MaxUploadBytes)
	fh, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"detail": "File too large"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"detail": "No file found in form-data"})
		return
	}

	f, err := fh.Open()
	if err != nil {
		abortWithError(c, fmt.Errorf("open upload: %w", err))
		return
	}
	defer func() { _ = f.Close() }()
	data, err := io.ReadAll(f)
	if err != nil {
		abortWithError(c, fmt.Errorf("read upload: %w", err))
		return
	}

	res, err := h.OCR.Process(c.Request.Context(), ocr.Upload{
		Filename: fh.Filename,
		MIMEType: fh.Header.Get("Content-Type"),
		Data:     data,
	})
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *handlers) bulk(c *gin.Context) {
	raw, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, h.MaxUploadBytes))
	if err != nil {
		abortWithError(c, common.NewAppError("VALIDATION_ERROR", "body too large", common.ErrValidation))
		return
	}
	items, err := inventory.ParseBulk(raw, h.Normalizer)
	if err != nil {
		abortWithError(c, err)
		return
	}
	if h.Inventory == nil {
		abortWithError(c, common.NewAppError("NOT_CONFIGURED", "INVENTORY_BASE_URL not configured", common.ErrNotConfigured))
		return
	}

	out, err := h.Inventory.CreateBulk(c.Request.Context(), c.GetHeader("Authorization"), inventory.ToProducts(items))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(out.Status, out)
}

func (h *handlers) resultID(c *gin.Context) (uuid.UUID, bool) {
	raw := c.Param("id")
	if err := common.NewValidator().Field("id", raw, common.Required, common.UUID).Err(); err != nil {
		abortWithError(c, common.NewAppError("INVALID_ID", "invalid result id", err))
		return uuid.Nil, false
	}
	return uuid.MustParse(raw), true
}

func (h *handlers) getResult(c *gin.Context) {
	id, ok := h.resultID(c)
	if !ok {
		return
	}
	if h.Results == nil {
		abortWithError(c, common.ErrNotFound)
		return
	}
	rec, err := h.Results.Get(c.Request.Context(), id)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, rec.Result)
}

func (h *handlers) exportResult(c *gin.Context) {
	id, ok := h.resultID(c)
	if !ok {
		return
	}
	if h.Exporter == nil {
		abortWithError(c, common.ErrNotFound)
		return
	}
	b, err := h.Exporter.ExportResult(c.Request.Context(), id)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="ocr-%s.xlsx"`, id))
	c.Data(http.StatusOK, xlsxContentType, b)
}

// exportRecent returns the newest stored results as one workbook.
func (h *handlers) exportRecent(c *gin.Context) {
	limit := defaultExportLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > maxExportLimit {
			abortWithError(c, common.NewAppError("INVALID_LIMIT",
				fmt.Sprintf("limit must be between 1 and %d", maxExportLimit), common.ErrInvalidInput))
			return
		}
		limit = n
	}
	if h.Exporter == nil {
		abortWithError(c, common.ErrNotFound)
		return
	}
	b, err := h.Exporter.ExportRecent(c.Request.Context(), limit)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="ocr-results.xlsx"`)
	c.Data(http.StatusOK, xlsxContentType, b)
}
