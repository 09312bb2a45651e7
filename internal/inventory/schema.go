package inventory

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/zatobox/invoice-ocr/internal/common"
	"github.com/zatobox/invoice-ocr/internal/normalize"
)

// BulkJSONSchema accepts a list of line items, bare or under "line_items".
func BulkJSONSchema() map[string]any {
	text := map[string]any{"type": []any{"string", "null"}}
	amount := map[string]any{"type": []any{"string", "number", "null"}}
	item := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"name":        text,
			"description": text,
			"category":    text,
			"unit_price":  amount,
			"quantity":    amount,
			"total_price": amount,
		},
	}
	items := map[string]any{"type": "array", "items": item}
	return map[string]any{
		"oneOf": []any{
			items,
			map[string]any{
				"type":       "object",
				"required":   []any{"line_items"},
				"properties": map[string]any{"line_items": items},
			},
		},
	}
}

var bulkSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	b, err := json.Marshal(BulkJSONSchema())
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("bulk.json", bytes.NewReader(b)); err != nil {
		return nil, fmt.Errorf("add schema: %w", err)
	}
	return compiler.Compile("bulk.json")
})

// ValidateItems checks a bulk body against BulkJSONSchema.
func ValidateItems(raw []byte) error {
	schema, err := bulkSchema()
	if err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}

	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return common.NewAppError("VALIDATION_ERROR", "body is not valid JSON", common.ErrValidation)
	}
	if err := schema.Validate(v); err != nil {
		return common.NewAppError("VALIDATION_ERROR", "body must be a list of line items", fmt.Errorf("%w: %v", common.ErrValidation, err))
	}
	return nil
}

// ParseBulk validates a bulk body and normalizes its line items.
func ParseBulk(raw []byte, n *normalize.Normalizer) ([]normalize.LineItem, error) {
	if n == nil {
		n = normalize.New()
	}
	if err := ValidateItems(raw); err != nil {
		return nil, err
	}

	doc, err := normalize.Decode(string(raw))
	if err != nil {
		return nil, common.NewAppError("VALIDATION_ERROR", "body is not valid JSON", common.ErrValidation)
	}
	// The schema leaves two forms: a bare array or an object whose line_items is an array.
	list, _ := doc.([]any)
	if obj, ok := doc.(map[string]any); ok {
		list, _ = obj["line_items"].([]any)
	}
	raws := make([]map[string]any, 0, len(list))
	for _, v := range list {
		if m, ok := v.(map[string]any); ok {
			raws = append(raws, m)
		}
	}
	items, _ := n.Items(raws)
	return items, nil
}
