package level

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Keys of the metric fields written back by the validation engine
const (
	KeyOccupancyPercent  = "occupancy_percent"
	KeyColorDistribution = "color_distribution"
	KeyBlockingGraph     = "blocking_graph"
	KeyBlockingDepth     = "blocking_depth"
)

// RequiredFields lists the top-level keys every level must carry, in report order
var RequiredFields = []string{
	"id", "name", "grid_size", "difficulty", "vines",
	"max_moves", "min_moves", "complexity", "grace",
}

// ErrNotAnObject is returned when a document is not a JSON object
var ErrNotAnObject = errors.New("level document must be a JSON object")

// GridSize is the [width, height] pair of a level. The raw value is kept so
// malformed shapes can be reported verbatim.
type GridSize struct {
	Width  int
	Height int

	raw  json.RawMessage
	pair bool
}

// NewGridSize creates a grid size; one whose cell count overflows is malformed
func NewGridSize(width, height int) GridSize {
	return GridSize{Width: width, Height: height, pair: !productOverflows(width, height)}
}

// Dimensions returns width and height when the value is a pair of integers,
// whatever their sign, whose product fits in an int
func (g GridSize) Dimensions() (int, int, bool) {
	return g.Width, g.Height, g.pair
}

// Valid reports whether the grid size is a pair of positive integers
func (g GridSize) Valid() bool {
	return g.pair && g.Width > 0 && g.Height > 0
}

// TotalCells returns width*height for a well-formed pair, 0 otherwise
func (g GridSize) TotalCells() int {
	if !g.pair {
		return 0
	}
	return g.Width * g.Height
}

// Contains reports whether p lies inside the grid
func (g GridSize) Contains(p Point) bool {
	return p.X >= 0 && p.X < g.Width && p.Y >= 0 && p.Y < g.Height
}

// String renders the value as it appeared in the document
func (g GridSize) String() string {
	if len(g.raw) > 0 {
		var buf bytes.Buffer
		if err := json.Compact(&buf, g.raw); err == nil {
			return buf.String()
		}
		return string(g.raw)
	}
	return fmt.Sprintf("[%d, %d]", g.Width, g.Height)
}

// MarshalJSON writes the original value back, or the pair for built documents
func (g GridSize) MarshalJSON() ([]byte, error) {
	if len(g.raw) > 0 {
		return g.raw, nil
	}
	return json.Marshal([]int{g.Width, g.Height})
}

// UnmarshalJSON never fails; shape problems are reported by the engine
func (g *GridSize) UnmarshalJSON(data []byte) error {
	*g = GridSize{raw: append(json.RawMessage(nil), data...)}

	var items []json.RawMessage
	if err := json.Unmarshal(data, &items); err != nil || len(items) != 2 {
		return nil
	}
	w, okW := integral(items[0])
	h, okH := integral(items[1])
	if !okW || !okH || productOverflows(w, h) {
		return nil
	}
	g.Width, g.Height, g.pair = w, h, true
	return nil
}

// maxExactInt bounds the integers a float64 holds exactly
const maxExactInt = 1 << 53

// integral decodes a JSON number with no fractional part, such as 3 or 3.0
func integral(data json.RawMessage) (int, bool) {
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return 0, false
	}
	if f != math.Trunc(f) || math.Abs(f) > maxExactInt {
		return 0, false
	}
	return int(f), true
}

// productOverflows reports whether w*h does not fit in an int
func productOverflows(w, h int) bool {
	if w == 0 || h == 0 {
		return false
	}
	return (w*h)/h != w
}

// Document represents a complete level as supplied to the validator.
//
// Documents decoded from JSON remember every top-level key so that presence
// checks and write-back work on the original content. Documents built in code
// are treated as carrying every required field.
type Document struct {
	ID         string
	Name       string
	Difficulty string
	GridSize   GridSize
	Vines      []Vine
	MaxMoves   int
	MinMoves   int
	Complexity string
	Grace      int
	Mask       *Mask

	// Populated by the validation engine and written back on save
	OccupancyPercent  *float64
	ColorDistribution map[string]float64
	BlockingGraph     map[string][]string
	BlockingDepth     *int

	// Top-level keys in document order
	raw      *orderedmap.OrderedMap[string, json.RawMessage]
	problems map[string]string
}

// FieldProblem describes a top-level key whose value had the wrong type
type FieldProblem struct {
	Field  string
	Reason string
}

// Has reports whether the document carries the given top-level key
func (d *Document) Has(field string) bool {
	if d.raw == nil {
		switch field {
		case "mask":
			return d.Mask != nil
		case KeyOccupancyPercent:
			return d.OccupancyPercent != nil
		case KeyColorDistribution:
			return d.ColorDistribution != nil
		case KeyBlockingGraph:
			return d.BlockingGraph != nil
		case KeyBlockingDepth:
			return d.BlockingDepth != nil
		}
		return true
	}
	_, ok := d.raw.Get(field)
	return ok
}

// FieldProblems returns the keys that failed to decode, sorted by key
func (d *Document) FieldProblems() []FieldProblem {
	problems := make([]FieldProblem, 0, len(d.problems))
	for field, reason := range d.problems {
		problems = append(problems, FieldProblem{Field: field, Reason: reason})
	}
	sort.Slice(problems, func(i, j int) bool {
		return problems[i].Field < problems[j].Field
	})
	return problems
}

// VineIDs returns the set of vine ids declared in the document
func (d *Document) VineIDs() map[string]bool {
	ids := make(map[string]bool, len(d.Vines))
	for _, v := range d.Vines {
		ids[v.ID] = true
	}
	return ids
}

// Parse decodes a level document from JSON
func Parse(data []byte) (*Document, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

// UnmarshalJSON decodes every known key on its own so a single bad field does
// not hide the rest of the document.
func (d *Document) UnmarshalJSON(data []byte) error {
	raw, err := decodeObject(data)
	if err != nil {
		return err
	}

	*d = Document{raw: raw, problems: make(map[string]string)}

	d.decodeField("id", func(v json.RawMessage) error {
		id, err := decodeID(v)
		d.ID = id
		return err
	})
	d.decodeField("name", func(v json.RawMessage) error { return json.Unmarshal(v, &d.Name) })
	d.decodeField("difficulty", func(v json.RawMessage) error { return json.Unmarshal(v, &d.Difficulty) })
	d.decodeField("grid_size", func(v json.RawMessage) error { return d.GridSize.UnmarshalJSON(v) })
	d.decodeField("vines", d.decodeVines)
	d.decodeField("max_moves", func(v json.RawMessage) error { return json.Unmarshal(v, &d.MaxMoves) })
	d.decodeField("min_moves", func(v json.RawMessage) error { return json.Unmarshal(v, &d.MinMoves) })
	d.decodeField("complexity", func(v json.RawMessage) error { return json.Unmarshal(v, &d.Complexity) })
	d.decodeField("grace", func(v json.RawMessage) error { return json.Unmarshal(v, &d.Grace) })
	d.decodeField("mask", func(v json.RawMessage) error {
		if bytes.Equal(bytes.TrimSpace(v), []byte("null")) {
			return nil
		}
		var m Mask
		if err := json.Unmarshal(v, &m); err != nil {
			return err
		}
		d.Mask = &m
		return nil
	})

	return nil
}

// decodeVines keeps every vine that is an object; other entries are recorded
// under "vines[i]" and dropped
func (d *Document) decodeVines(data json.RawMessage) error {
	var items []json.RawMessage
	if err := json.Unmarshal(data, &items); err != nil {
		return err
	}
	d.Vines = make([]Vine, 0, len(items))
	for i, item := range items {
		var v Vine
		if err := json.Unmarshal(item, &v); err != nil {
			d.problems[fmt.Sprintf("vines[%d]", i)] = err.Error()
			continue
		}
		d.Vines = append(d.Vines, v)
	}
	return nil
}

func (d *Document) decodeField(key string, decode func(json.RawMessage) error) {
	v, ok := d.raw.Get(key)
	if !ok {
		return
	}
	if err := decode(v); err != nil {
		d.problems[key] = err.Error()
	}
}

// decodeObject reads the top-level members of a JSON object in document
// order. A repeated key keeps its first position and its last value.
func decodeObject(data []byte) (*orderedmap.OrderedMap[string, json.RawMessage], error) {
	if !json.Valid(data) {
		var v any
		err := json.Unmarshal(data, &v)
		return nil, fmt.Errorf("%w: %v", ErrNotAnObject, err)
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotAnObject, err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, ErrNotAnObject
	}

	fields := orderedmap.New[string, json.RawMessage]()
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("unexpected object key %v", tok)
		}
		var value json.RawMessage
		if err := dec.Decode(&value); err != nil {
			return nil, fmt.Errorf("%s: %w", key, err)
		}
		fields.Set(key, value)
	}
	return fields, nil
}

// MarshalJSON re-emits the decoded keys untouched and in their original order.
// Metrics overwrite their key in place when present and are appended otherwise.
func (d *Document) MarshalJSON() ([]byte, error) {
	out := orderedmap.New[string, json.RawMessage]()
	if d.raw != nil {
		for pair := d.raw.Oldest(); pair != nil; pair = pair.Next() {
			out.Set(pair.Key, pair.Value)
		}
	} else if err := d.typedFields(out); err != nil {
		return nil, err
	}

	metrics := make([]field, 0, 4)
	if d.OccupancyPercent != nil {
		metrics = append(metrics, field{KeyOccupancyPercent, *d.OccupancyPercent})
	}
	if d.ColorDistribution != nil {
		metrics = append(metrics, field{KeyColorDistribution, d.ColorDistribution})
	}
	if d.BlockingGraph != nil {
		metrics = append(metrics, field{KeyBlockingGraph, d.BlockingGraph})
	}
	if d.BlockingDepth != nil {
		metrics = append(metrics, field{KeyBlockingDepth, *d.BlockingDepth})
	}
	if err := setFields(out, metrics); err != nil {
		return nil, err
	}

	return out.MarshalJSON()
}

type field struct {
	key   string
	value any
}

func setFields(out *orderedmap.OrderedMap[string, json.RawMessage], fields []field) error {
	for _, f := range fields {
		data, err := json.Marshal(f.value)
		if err != nil {
			return fmt.Errorf("failed to marshal %s: %w", f.key, err)
		}
		out.Set(f.key, data)
	}
	return nil
}

// typedFields renders a document that was built in code, required keys first
func (d *Document) typedFields(out *orderedmap.OrderedMap[string, json.RawMessage]) error {
	vines := d.Vines
	if vines == nil {
		vines = []Vine{}
	}
	fields := []field{
		{"id", d.ID},
		{"name", d.Name},
		{"grid_size", d.GridSize},
		{"difficulty", d.Difficulty},
		{"vines", vines},
		{"max_moves", d.MaxMoves},
		{"min_moves", d.MinMoves},
		{"complexity", d.Complexity},
		{"grace", d.Grace},
	}
	if d.Mask != nil {
		fields = append(fields, field{"mask", d.Mask})
	}
	return setFields(out, fields)
}
