package normalize

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Key aliases per logical field, tried in order. LLM output mixes English and Spanish keys.
var (
	nameKeys        = []string{"name", "nombre", "product", "descripcion"}
	descriptionKeys = []string{"description", "descripcion"}
	categoryKeys    = []string{"category", "categoria"}
	unitPriceKeys   = []string{"unit_price", "price", "precio"}
	quantityKeys    = []string{"quantity", "qty", "cantidad"}
	totalPriceKeys  = []string{"total_price", "total", "importe"}

	metaSubtotalKeys = []string{"subtotal", "Subtotal", "sub_total"}
	metaIVAKeys      = []string{"iva", "tax"}
	metaTotalKeys    = []string{"total", "Total"}
	metaCompanyKeys  = []string{"company_name", "empresa", "razon_social"}
	metaRUCKeys      = []string{"ruc", "tax_id"}
	metaDateKeys     = []string{"date", "fecha"}
	metaInvoiceKeys  = []string{"invoice_number", "numero_factura", "factura"}
)

// rootMetadataKeys are copied off the document root when there is no nested metadata object.
var rootMetadataKeys = []string{
	"company_name", "ruc", "date", "invoice_number", "subtotal", "iva", "tax", "total",
	"Subtotal", "sub_total", "Total",
	"empresa", "razon_social", "tax_id", "fecha", "numero_factura", "factura",
}

// firstPresent returns the first value under keys that is present and not null.
func firstPresent(m map[string]any, keys []string) any {
	for _, k := range keys {
		if v, ok := m[k]; ok && v != nil {
			return v
		}
	}
	return nil
}

// firstText returns the first trimmed, non-empty scalar under keys, or fallback.
func firstText(m map[string]any, keys []string, fallback string) string {
	for _, k := range keys {
		s, ok := scalarText(m[k])
		if !ok {
			continue
		}
		if s = cleanText(s); s != "" {
			return s
		}
	}
	return fallback
}

func cleanText(s string) string {
	return strings.TrimSpace(norm.NFC.String(s))
}
