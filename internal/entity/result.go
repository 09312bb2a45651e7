package entity

import (
	"time"

	"github.com/google/uuid"

	"github.com/zatobox/invoice-ocr/constants"
	"github.com/zatobox/invoice-ocr/internal/normalize"
)

// StoredResult is one persisted OCR outcome.
type StoredResult struct {
	ID         uuid.UUID              `json:"id"`
	CallerHash string                 `json:"caller_hash"`
	Filename   string                 `json:"filename"`
	MIMEType   string                 `json:"mime_type"`
	Status     constants.ResultStatus `json:"status"`
	Result     normalize.Result       `json:"result"`
	CreatedAt  time.Time              `json:"created_at"`
}

// StatusOf reports the status a normalized result is stored with.
func StatusOf(r normalize.Result) constants.ResultStatus {
	if r.Structured() {
		return constants.ResultStatusStructured
	}
	return constants.ResultStatusTextOnly
}
