package constants

// ResultStatus is the canonical status for rows in ocr_results.
type ResultStatus string

// Stable values (store these exact strings in DB).
const (
	ResultStatusStructured ResultStatus = "STRUCTURED" // line items + metadata extracted
	ResultStatusTextOnly   ResultStatus = "TEXT_ONLY"  // provider text was not usable JSON
	ResultStatusFailed     ResultStatus = "FAILED"     // provider or file error (batch only)
)
