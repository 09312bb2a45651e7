package inventory

import (
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"

	"github.com/zatobox/invoice-ocr/constants"
	"github.com/zatobox/invoice-ocr/internal/normalize"
)

// Product is one create request for the inventory bulk endpoint.
type Product struct {
	Name              string          `json:"name"`
	Description       string          `json:"description"`
	RecurringInterval *string         `json:"recurring_interval"`
	Prices            []Price         `json:"prices"`
	Metadata          ProductMetadata `json:"metadata"`
}

type Price struct {
	AmountType    string `json:"amount_type"`
	PriceCurrency string `json:"price_currency"`
	PriceAmount   int64  `json:"price_amount"` // cents
}

type ProductMetadata struct {
	Quantity    int    `json:"quantity"`
	Category    string `json:"category"`
	Subcategory string `json:"subcategory"`
	Tags        string `json:"tags"`
}

var hundred = decimal.NewFromInt(100)

// ToProducts maps line items to one-off products. Items with a negative price are dropped.
func ToProducts(items []normalize.LineItem) []Product {
	out := make([]Product, 0, len(items))
	for _, it := range items {
		name := cut(strings.TrimSpace(it.Name), constants.MaxProductNameLen)
		if name == "" {
			name = constants.DefaultProductName
		}

		desc := it.Description
		if desc == "" {
			desc = it.Name
		}
		if desc == "" {
			desc = constants.DefaultDescription
		}
		desc = cut(desc, constants.MaxProductDescLen)

		cents := priceCents(it.UnitPrice)
		if cents < 0 {
			continue
		}

		qty := it.Quantity
		if qty < 1 {
			qty = 1
		}
		category := it.Category
		if category == "" {
			category = constants.DefaultCategory
		}

		out = append(out, Product{
			Name:        name,
			Description: desc,
			Prices: []Price{{
				AmountType:    constants.ImportAmountType,
				PriceCurrency: constants.ImportCurrency,
				PriceAmount:   cents,
			}},
			Metadata: ProductMetadata{
				Quantity:    qty,
				Category:    cut(category, constants.MaxProductCategoryLen),
				Subcategory: constants.ImportSubcategory,
				Tags:        constants.ImportTags,
			},
		})
	}
	return out
}

func priceCents(amount string) int64 {
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return 0
	}
	return d.Mul(hundred).Round(0).IntPart()
}

// cut truncates s to at most n runes.
func cut(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
