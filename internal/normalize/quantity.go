package normalize

import (
	"encoding/json"
	"math"
	"strconv"

	"github.com/shopspring/decimal"
)

var (
	oneQuantity = decimal.NewFromInt(1)
	maxQuantity = decimal.NewFromInt(math.MaxInt32)
)

// Quantity converts a loosely formatted quantity into an integer >= 1.
// Anything absent, non-positive or unparseable becomes 1.
func Quantity(v any) int {
	switch t := v.(type) {
	case nil:
		return 1
	case json.Number:
		if d, err := decimal.NewFromString(t.String()); err == nil {
			if n, ok := floorPositive(d); ok {
				return n
			}
			return 1
		}
		f, err := t.Float64()
		if err != nil {
			return 1
		}
		return floorPositiveFloat(f)
	case float64:
		return floorPositiveFloat(t)
	case float32:
		return floorPositiveFloat(float64(t))
	case int:
		return floorPositiveFloat(float64(t))
	case int64:
		return floorPositiveFloat(float64(t))
	}

	raw, ok := scalarText(v)
	if !ok {
		return 1
	}
	// Same rounding as Number, then floor.
	if d, ok := parseAmountText(raw); ok {
		if n, ok := floorPositive(d.Round(2)); ok {
			return n
		}
	}
	digits := reNonDigit.ReplaceAllString(raw, "")
	if n, err := strconv.Atoi(digits); err == nil && n > 0 && n <= math.MaxInt32 {
		return n
	}
	return 1
}

func floorPositive(d decimal.Decimal) (int, bool) {
	n := d.Floor()
	if n.LessThan(oneQuantity) || n.GreaterThan(maxQuantity) {
		return 0, false
	}
	return int(n.IntPart()), true
}

func floorPositiveFloat(f float64) int {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 1
	}
	n := math.Floor(f)
	if n < 1 || n > math.MaxInt32 {
		return 1
	}
	return int(n)
}
