package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeT(t *testing.T, text string) any {
	t.Helper()
	v, err := Decode(text)
	require.NoError(t, err)
	return v
}

func TestResolve_Array(t *testing.T) {
	shape, err := Resolve(decodeT(t, `[{"name":"a"},{"name":"b"}]`))
	require.NoError(t, err)

	assert.Equal(t, ShapeArray, shape.Kind)
	assert.Len(t, shape.Items, 2)
	assert.Nil(t, shape.Root)
}

func TestResolve_FieldPrecedence(t *testing.T) {
	tests := []struct {
		name      string
		doc       string
		wantKind  ShapeKind
		wantField string
		wantName  string
	}{
		{
			name:      "line_items wins when non-empty",
			doc:       `{"line_items":[{"name":"li"}],"items":[{"name":"it"}]}`,
			wantKind:  ShapeObjectField,
			wantField: "line_items",
			wantName:  "li",
		},
		{
			name:      "empty line_items falls through to items",
			doc:       `{"line_items":[],"items":[{"name":"x"}],"products":[{"name":"y"}]}`,
			wantKind:  ShapeObjectField,
			wantField: "items",
			wantName:  "x",
		},
		{
			name:      "products before productos",
			doc:       `{"products":[{"name":"p"}],"productos":[{"name":"q"}]}`,
			wantKind:  ShapeObjectField,
			wantField: "products",
			wantName:  "p",
		},
		{
			name:      "non-array field is skipped",
			doc:       `{"items":"none","productos":[{"nombre":"Leche"}]}`,
			wantKind:  ShapeObjectField,
			wantField: "productos",
			wantName:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			shape, err := Resolve(decodeT(t, tt.doc))
			require.NoError(t, err)
			assert.Equal(t, tt.wantKind, shape.Kind)
			assert.Equal(t, tt.wantField, shape.Field)
			require.Len(t, shape.Items, 1)
			if tt.wantName != "" {
				assert.Equal(t, tt.wantName, shape.Items[0]["name"])
			}
			assert.NotNil(t, shape.Root)
		})
	}
}

// A document with no recognizable item array is treated as a single product,
// even when it only carries metadata. Downstream code relies on this.
func TestResolve_BareObjectBecomesPhantomItem(t *testing.T) {
	doc := decodeT(t, `{"line_items":[],"items":[],"products":[],"company_name":"ACME","total":"10,00"}`)

	shape, err := Resolve(doc)
	require.NoError(t, err)
	assert.Equal(t, ShapeBareObject, shape.Kind)
	require.Len(t, shape.Items, 1)
	assert.Equal(t, "ACME", shape.Items[0]["company_name"])

	res, _, err := New().Document(`{"company_name":"ACME","total":"10,00"}`)
	require.NoError(t, err)
	require.Len(t, res.LineItems, 1)
	assert.Equal(t, "Unnamed Product", res.LineItems[0].Name)
	assert.Equal(t, "0.00", res.LineItems[0].TotalPrice)
	assert.Equal(t, "ACME", res.Metadata.CompanyName)
	assert.Equal(t, "10.00", res.Metadata.Total)
	assert.Equal(t, "0.00", res.Metadata.Subtotal)
}

func TestResolve_NonObjectElements(t *testing.T) {
	shape, err := Resolve(decodeT(t, `[1, null, {"name":"ok"}]`))
	require.NoError(t, err)

	require.Len(t, shape.Items, 3)
	assert.Empty(t, shape.Items[0])
	assert.Empty(t, shape.Items[1])
	assert.Equal(t, "ok", shape.Items[2]["name"])
}

func TestResolve_Scalar(t *testing.T) {
	for _, text := range []string{`42`, `"text"`, `null`, `true`} {
		_, err := Resolve(decodeT(t, text))
		assert.ErrorIs(t, err, ErrUnsupportedShape, text)
	}
}

func TestDecode_Errors(t *testing.T) {
	for _, text := range []string{"not json at all", "", `{"a":1} trailing`, `[1] [2]`, `{"a":`} {
		_, err := Decode(text)
		assert.ErrorIs(t, err, ErrUnparseable, text)
	}
}

func TestDecode_KeepsNumberText(t *testing.T) {
	v := decodeT(t, `{"ruc": 1790012345001}`)
	m := v.(map[string]any)
	assert.Equal(t, "1790012345001", firstText(m, metaRUCKeys, ""))
}
