package normalize

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNumber(t *testing.T) {
	tests := []struct {
		name     string
		input    any
		expected string
	}{
		{"eu thousands and decimal comma", "1.234,56", "1234.56"},
		{"us thousands and decimal point", "1,234.56", "1234.56"},
		{"lone comma is decimal", "12,5", "12.50"},
		{"lone dot is decimal", "12.5", "12.50"},
		{"integer", "42", "42.00"},
		{"currency prefix and spaces", "$ 1.299,90", "1299.90"},
		{"currency code", "USD 30.01", "30.01"},
		{"space as thousands separator", "1 234,56", "1234.56"},
		{"several eu thousands", "1.234.567,89", "1234567.89"},
		{"several us thousands", "1,234,567.89", "1234567.89"},
		{"negative with comma", "-12,5", "-12.50"},
		{"leading dot", ".5", "0.50"},
		{"negative leading dot", "-.5", "-0.50"},
		{"repeated dots keep leading number", "1.2.3", "1.20"},
		{"trailing minus ignored", "5-", "5.00"},
		{"rounds half away from zero", "2.345", "2.35"},
		{"rounds exact decimal text", "1.005", "1.01"},
		{"rounds down", "2.344", "2.34"},
		{"json number", json.Number("7.5"), "7.50"},
		{"float", 3.5, "3.50"},
		{"int", 12, "12.00"},
		{"letters only", "abc", ""},
		{"empty", "", ""},
		{"whitespace", "   ", ""},
		{"nil", nil, ""},
		{"double minus", "--5", ""},
		{"bool", true, ""},
		{"object", map[string]any{"v": "1"}, ""},
		{"array", []any{"1"}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Number(tt.input))
		})
	}
}

func TestNumber_ZeroIsNotSentinel(t *testing.T) {
	assert.Equal(t, "0.00", Number("0"))
	assert.Equal(t, "0.00", Number("0,00"))
	assert.Equal(t, "", Number("n/a"))
}
