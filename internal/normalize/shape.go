package normalize

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

var (
	// ErrUnparseable means the provider text is not valid JSON.
	ErrUnparseable = errors.New("normalize: text is not valid JSON")
	// ErrUnsupportedShape means the JSON is valid but neither an array nor an object.
	ErrUnsupportedShape = errors.New("normalize: JSON is neither an array nor an object")
)

// ShapeKind tells how the line-item list was located in a document.
type ShapeKind int

const (
	// ShapeArray: the document itself is the item list.
	ShapeArray ShapeKind = iota + 1
	// ShapeObjectField: an object carrying the item list under one of lineItemFields.
	ShapeObjectField
	// ShapeBareObject: an object without any item list; the object is the single item.
	ShapeBareObject
)

func (k ShapeKind) String() string {
	switch k {
	case ShapeArray:
		return "array"
	case ShapeObjectField:
		return "object-with-array-field"
	case ShapeBareObject:
		return "bare-object"
	default:
		return "unknown"
	}
}

// lineItemFields are checked in priority order; the first non-empty array wins.
var lineItemFields = []string{"line_items", "items", "products", "productos"}

// Shape is the resolved structure of one decoded LLM document.
type Shape struct {
	Kind  ShapeKind
	Field string // set for ShapeObjectField
	Items []map[string]any
	Root  map[string]any // nil for ShapeArray
}

// Decode parses provider text as a single JSON value. Numbers are kept as json.Number.
func Decode(text string) (any, error) {
	dec := json.NewDecoder(strings.NewReader(text))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnparseable, err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, fmt.Errorf("%w: trailing data after JSON value", ErrUnparseable)
	}
	return v, nil
}

// Resolve locates the raw line items inside a decoded document.
func Resolve(doc any) (Shape, error) {
	switch t := doc.(type) {
	case []any:
		return Shape{Kind: ShapeArray, Items: asItems(t)}, nil
	case map[string]any:
		for _, field := range lineItemFields {
			arr, ok := t[field].([]any)
			if ok && len(arr) > 0 {
				return Shape{Kind: ShapeObjectField, Field: field, Items: asItems(arr), Root: t}, nil
			}
		}
		return Shape{Kind: ShapeBareObject, Items: []map[string]any{t}, Root: t}, nil
	default:
		return Shape{}, ErrUnsupportedShape
	}
}

// asItems keeps array order; non-object entries become empty items.
func asItems(arr []any) []map[string]any {
	items := make([]map[string]any, 0, len(arr))
	for _, el := range arr {
		m, ok := el.(map[string]any)
		if !ok {
			m = map[string]any{}
		}
		items = append(items, m)
	}
	return items
}
