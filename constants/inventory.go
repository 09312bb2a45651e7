package constants

// Defaults applied to normalized line items.
const (
	DefaultProductName = "Unnamed Product"
	DefaultDescription = "No description"
	DefaultCategory    = "General"
	DefaultUnitPrice   = "0.00"
)

// Values stamped on products created from OCR imports.
const (
	ImportSubcategory = "OCR Import"
	ImportTags        = "ocr,imported,invoice"
	ImportCurrency    = "usd"
	ImportAmountType  = "fixed"

	MaxProductNameLen     = 80
	MaxProductDescLen     = 200
	MaxProductCategoryLen = 50
)
