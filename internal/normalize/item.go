package normalize

import (
	"github.com/shopspring/decimal"

	"github.com/zatobox/invoice-ocr/constants"
)

// DefaultTolerance is how far a provider-supplied line total may drift from
// unit_price x quantity and still be trusted.
const DefaultTolerance = 0.02

// LineItem is one reconciled invoice row.
type LineItem struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Category    string `json:"category"`
	UnitPrice   string `json:"unit_price"`
	Quantity    int    `json:"quantity"`
	TotalPrice  string `json:"total_price"`
}

// Normalizer turns decoded LLM output into line items and document metadata.
// It holds no per-call state and is safe for concurrent use.
type Normalizer struct {
	tolerance decimal.Decimal
}

type Option func(*Normalizer)

// WithTolerance overrides DefaultTolerance. Negative values are ignored.
func WithTolerance(t float64) Option {
	return func(n *Normalizer) {
		if t >= 0 {
			n.tolerance = decimal.NewFromFloat(t)
		}
	}
}

func New(opts ...Option) *Normalizer {
	n := &Normalizer{tolerance: decimal.NewFromFloat(DefaultTolerance)}
	for _, o := range opts {
		o(n)
	}
	return n
}

// Item reconciles a single raw line item.
func (n *Normalizer) Item(raw map[string]any) LineItem {
	unitPrice, ok := parseAmount(firstPresent(raw, unitPriceKeys))
	if !ok {
		unitPrice = decimal.Zero
	}
	unitPrice = unitPrice.Round(2)
	qty := Quantity(firstPresent(raw, quantityKeys))

	computed := unitPrice.Mul(decimal.NewFromInt(int64(qty))).Round(2)
	total := computed
	if provided, ok := parseAmount(firstPresent(raw, totalPriceKeys)); ok {
		total = n.reconcile(provided.Round(2), computed, true)
	}

	return LineItem{
		Name:        firstText(raw, nameKeys, constants.DefaultProductName),
		Description: firstText(raw, descriptionKeys, constants.DefaultDescription),
		Category:    firstText(raw, categoryKeys, constants.DefaultCategory),
		UnitPrice:   formatAmount(unitPrice),
		Quantity:    qty,
		TotalPrice:  formatAmount(total),
	}
}

// reconcile picks the authoritative line total. computedOK is false only when
// no computed value exists; decimal arithmetic always yields one today.
func (n *Normalizer) reconcile(provided, computed decimal.Decimal, computedOK bool) decimal.Decimal {
	switch {
	case computedOK && provided.Sub(computed).Abs().LessThanOrEqual(n.tolerance):
		return provided
	case !computedOK:
		return provided
	default:
		return computed
	}
}

// Items reconciles every raw item and returns the running subtotal of their totals.
func (n *Normalizer) Items(raws []map[string]any) ([]LineItem, decimal.Decimal) {
	items := make([]LineItem, 0, len(raws))
	subtotal := decimal.Zero
	for _, raw := range raws {
		it := n.Item(raw)
		items = append(items, it)
		// TotalPrice is always a formatted amount here.
		if d, err := decimal.NewFromString(it.TotalPrice); err == nil {
			subtotal = subtotal.Add(d)
		}
	}
	return items, subtotal
}
