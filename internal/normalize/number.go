package normalize

import (
	"encoding/json"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	reNumberNoise   = regexp.MustCompile(`[^0-9.,\-\s]`)
	reWhitespace    = regexp.MustCompile(`\s+`)
	reLeadingNumber = regexp.MustCompile(`^-?(\d+(\.\d+)?|\.\d+)`)
	reNonDigit      = regexp.MustCompile(`[^0-9]`)
)

// Number converts a loosely formatted amount into a fixed 2-decimal string.
// It returns "" when nothing parseable is found; absence is never reported as "0.00".
//
// When both '.' and ',' appear, whichever comes last is the decimal point.
// A lone ',' is a decimal point. Rounding is half away from zero on the exact
// decimal text ("2.345" -> "2.35").
func Number(v any) string {
	d, ok := parseAmount(v)
	if !ok {
		return ""
	}
	return formatAmount(d)
}

func parseAmount(v any) (decimal.Decimal, bool) {
	s, ok := scalarText(v)
	if !ok {
		return decimal.Zero, false
	}
	return parseAmountText(s)
}

func parseAmountText(raw string) (decimal.Decimal, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return decimal.Zero, false
	}
	s = reNumberNoise.ReplaceAllString(s, "")
	s = reWhitespace.ReplaceAllString(s, "")
	if s == "" {
		return decimal.Zero, false
	}

	s = disambiguateSeparators(s)

	m := reLeadingNumber.FindString(s)
	if m == "" {
		return decimal.Zero, false
	}
	switch {
	case strings.HasPrefix(m, "-."):
		m = "-0" + m[1:]
	case strings.HasPrefix(m, "."):
		m = "0" + m
	}
	d, err := decimal.NewFromString(m)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

func disambiguateSeparators(s string) string {
	dot := strings.LastIndex(s, ".")
	comma := strings.LastIndex(s, ",")
	switch {
	case dot >= 0 && comma >= 0:
		if comma > dot {
			s = strings.ReplaceAll(s, ".", "")
			return strings.ReplaceAll(s, ",", ".")
		}
		return strings.ReplaceAll(s, ",", "")
	case comma >= 0:
		return strings.ReplaceAll(s, ",", ".")
	default:
		return s
	}
}

func formatAmount(d decimal.Decimal) string {
	return d.StringFixed(2)
}

// scalarText coerces a decoded JSON scalar to its text form.
// Objects, arrays and nil are not scalars.
func scalarText(v any) (string, bool) {
	switch t := v.(type) {
	case nil:
		return "", false
	case string:
		return t, true
	case json.Number:
		return t.String(), true
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return "", false
		}
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case float32:
		f := float64(t)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return "", false
		}
		return strconv.FormatFloat(f, 'f', -1, 32), true
	case int:
		return strconv.Itoa(t), true
	case int64:
		return strconv.FormatInt(t, 10), true
	case bool:
		return strconv.FormatBool(t), true
	default:
		return "", false
	}
}
