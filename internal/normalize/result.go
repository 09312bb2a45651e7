package normalize

import "encoding/json"

// Fixed values reported for every result; the provider exposes no per-document score.
const (
	DefaultConfidence = 0.95
	DefaultLanguage   = "es"
)

// Result is the outcome of normalizing one provider response.
// A nil Metadata marks a degraded, text-only result.
type Result struct {
	ID         string
	Text       string
	Confidence float64
	Language   string
	LineItems  []LineItem
	Metadata   *Metadata
}

// Structured reports whether line items and metadata were extracted.
func (r Result) Structured() bool {
	return r.Metadata != nil
}

// Degraded returns the text-only result used when the provider text is not a usable document.
func Degraded(text string) Result {
	return Result{Text: text, Confidence: DefaultConfidence, Language: DefaultLanguage}
}

// Document normalizes provider text. Errors wrap ErrUnparseable or ErrUnsupportedShape.
func (n *Normalizer) Document(text string) (Result, Shape, error) {
	doc, err := Decode(text)
	if err != nil {
		return Result{}, Shape{}, err
	}
	shape, err := Resolve(doc)
	if err != nil {
		return Result{}, Shape{}, err
	}

	items, running := n.Items(shape.Items)
	src := map[string]any{}
	if shape.Root != nil {
		src = MetadataSource(shape.Root)
	}
	meta := BuildMetadata(src, running)

	return Result{
		Text:       text,
		Confidence: DefaultConfidence,
		Language:   DefaultLanguage,
		LineItems:  items,
		Metadata:   &meta,
	}, shape, nil
}

// Parse is Document with the degraded fallback applied. It never fails.
func (n *Normalizer) Parse(text string) Result {
	res, _, err := n.Document(text)
	if err != nil {
		return Degraded(text)
	}
	return res
}

type resultWire struct {
	ID         string      `json:"id,omitempty"`
	Text       string      `json:"text"`
	Confidence float64     `json:"confidence"`
	Language   string      `json:"language"`
	Products   []LineItem  `json:"products,omitempty"`
	LineItems  *[]LineItem `json:"line_items,omitempty"`
	Metadata   *Metadata   `json:"metadata,omitempty"`
}

// MarshalJSON omits line_items and metadata for degraded results and always emits
// line_items (possibly empty) for structured ones. products mirrors non-empty line_items.
func (r Result) MarshalJSON() ([]byte, error) {
	w := resultWire{
		ID:         r.ID,
		Text:       r.Text,
		Confidence: r.Confidence,
		Language:   r.Language,
	}
	if r.Structured() {
		items := r.LineItems
		if items == nil {
			items = []LineItem{}
		}
		w.LineItems = &items
		if len(items) > 0 {
			w.Products = items
		}
		w.Metadata = r.Metadata
	}
	return json.Marshal(w)
}

func (r *Result) UnmarshalJSON(data []byte) error {
	var w resultWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*r = Result{
		ID:         w.ID,
		Text:       w.Text,
		Confidence: w.Confidence,
		Language:   w.Language,
		Metadata:   w.Metadata,
	}
	if w.LineItems != nil {
		r.LineItems = *w.LineItems
	}
	return nil
}
