package normalize

import "github.com/shopspring/decimal"

// Metadata holds document-level invoice fields. Strings are never null;
// iva and total may be "" when neither the source nor the line items provide them.
type Metadata struct {
	CompanyName   string `json:"company_name"`
	RUC           string `json:"ruc"`
	Date          string `json:"date"`
	InvoiceNumber string `json:"invoice_number"`
	Subtotal      string `json:"subtotal"`
	IVA           string `json:"iva"`
	Total         string `json:"total"`
}

// MetadataSource returns the nested "metadata" object when the document has one,
// otherwise the known metadata keys picked off the document root.
func MetadataSource(root map[string]any) map[string]any {
	if nested, ok := root["metadata"].(map[string]any); ok {
		return nested
	}
	src := make(map[string]any)
	for _, k := range rootMetadataKeys {
		if v, ok := root[k]; ok {
			src[k] = v
		}
	}
	return src
}

// BuildMetadata aggregates document fields from src. runningSubtotal is the sum of
// reconciled line totals and backs subtotal when the source has none.
func BuildMetadata(src map[string]any, runningSubtotal decimal.Decimal) Metadata {
	subtotal, ok := parseAmount(firstPresent(src, metaSubtotalKeys))
	if !ok {
		subtotal = runningSubtotal
	}
	subtotal = subtotal.Round(2)

	iva := ""
	ivaValue := decimal.Zero
	if d, ok := parseAmount(firstPresent(src, metaIVAKeys)); ok {
		ivaValue = d.Round(2)
		iva = formatAmount(ivaValue)
	}

	total := Number(firstPresent(src, metaTotalKeys))
	if total == "" {
		total = formatAmount(subtotal.Add(ivaValue))
	}

	return Metadata{
		CompanyName:   firstText(src, metaCompanyKeys, ""),
		RUC:           firstText(src, metaRUCKeys, ""),
		Date:          firstText(src, metaDateKeys, ""),
		InvoiceNumber: firstText(src, metaInvoiceKeys, ""),
		Subtotal:      formatAmount(subtotal),
		IVA:           iva,
		Total:         total,
	}
}
