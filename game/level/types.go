package level

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
)

// Direction is the pull direction of a vine head
type Direction string

const (
	Right Direction = "right"
	Left  Direction = "left"
	Up    Direction = "up"
	Down  Direction = "down"

	// MaskModeHide removes the mask points from the playable grid
	MaskModeHide = "hide"

	// UnknownColor is used for vines that declare no color
	UnknownColor = "unknown"
)

// Directions lists the canonical head directions
var Directions = []Direction{Right, Left, Up, Down}

// Point represents x,y grid coordinates
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Delta returns the unit vector of the direction
func (d Direction) Delta() (Point, bool) {
	switch d {
	case Right:
		return Point{X: 1, Y: 0}, true
	case Left:
		return Point{X: -1, Y: 0}, true
	case Up:
		return Point{X: 0, Y: 1}, true
	case Down:
		return Point{X: 0, Y: -1}, true
	}
	return Point{}, false
}

// Valid reports whether d is one of the canonical directions
func (d Direction) Valid() bool {
	_, ok := d.Delta()
	return ok
}

// Sub returns p - o
func (p Point) Sub(o Point) Point {
	return Point{X: p.X - o.X, Y: p.Y - o.Y}
}

// ManhattanDistance calculates the Manhattan distance between two points
func (p Point) ManhattanDistance(o Point) int {
	return abs(p.X-o.X) + abs(p.Y-o.Y)
}

// String renders the point as (x,y)
func (p Point) String() string {
	return "(" + strconv.Itoa(p.X) + "," + strconv.Itoa(p.Y) + ")"
}

// UnmarshalJSON accepts both {"x":1,"y":2} records and [1, 2] pairs
func (p *Point) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '[' {
		var pair []int
		if err := json.Unmarshal(data, &pair); err != nil {
			return fmt.Errorf("point %s: %w", data, err)
		}
		if len(pair) != 2 {
			return fmt.Errorf("point %s: expected [x, y]", data)
		}
		p.X, p.Y = pair[0], pair[1]
		return nil
	}

	var rec struct {
		X *int `json:"x"`
		Y *int `json:"y"`
	}
	if err := json.Unmarshal(data, &rec); err != nil {
		return fmt.Errorf("point %s: %w", data, err)
	}
	if rec.X == nil || rec.Y == nil {
		return fmt.Errorf("point %s: missing x or y", data)
	}
	p.X, p.Y = *rec.X, *rec.Y
	return nil
}

// Mask defines the visibility of the grid
type Mask struct {
	Mode   string  `json:"mode"`
	Points []Point `json:"points"`
}

// UnmarshalJSON keeps every well-formed point and silently drops the rest
func (m *Mask) UnmarshalJSON(data []byte) error {
	var wire struct {
		Mode   string            `json:"mode"`
		Points []json.RawMessage `json:"points"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return fmt.Errorf("mask: %w", err)
	}

	m.Mode = wire.Mode
	m.Points = nil
	for _, raw := range wire.Points {
		var p Point
		if err := p.UnmarshalJSON(raw); err != nil {
			continue
		}
		m.Points = append(m.Points, p)
	}
	return nil
}

// Hides reports whether the mask removes cells from the playable grid
func (m *Mask) Hides() bool {
	return m != nil && m.Mode == MaskModeHide
}

// Vine represents a single removable game entity
type Vine struct {
	ID            string    `json:"id"`
	HeadDirection Direction `json:"head_direction"`
	Color         string    `json:"color,omitempty"`
	OrderedPath   []Point   `json:"ordered_path"`
	Blocks        []string  `json:"blocks,omitempty"`

	issues []string
}

// Length returns the number of cells in the vine's path
func (v Vine) Length() int {
	return len(v.OrderedPath)
}

// ColorName returns the declared color, or UnknownColor when none is set
func (v Vine) ColorName() string {
	if v.Color == "" {
		return UnknownColor
	}
	return v.Color
}

// Label returns the id used in diagnostics
func (v Vine) Label() string {
	if v.ID == "" {
		return "unknown"
	}
	return v.ID
}

// DecodeIssues returns the problems found while decoding this vine
func (v Vine) DecodeIssues() []string {
	return v.issues
}

// UnmarshalJSON decodes a vine without ever rejecting it; problems are kept
// on the vine for the structural checks.
func (v *Vine) UnmarshalJSON(data []byte) error {
	var wire struct {
		ID            json.RawMessage   `json:"id"`
		HeadDirection json.RawMessage   `json:"head_direction"`
		Color         *string           `json:"color"`
		OrderedPath   []json.RawMessage `json:"ordered_path"`
		Blocks        json.RawMessage   `json:"blocks"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return fmt.Errorf("vine: %w", err)
	}

	*v = Vine{}
	if id, err := decodeID(wire.ID); err != nil {
		v.issues = append(v.issues, fmt.Sprintf("invalid id %s", wire.ID))
	} else {
		v.ID = id
	}

	if len(wire.HeadDirection) > 0 {
		var dir string
		if err := json.Unmarshal(wire.HeadDirection, &dir); err != nil {
			v.issues = append(v.issues, fmt.Sprintf("invalid head_direction %s", wire.HeadDirection))
		}
		v.HeadDirection = Direction(dir)
	}

	if wire.Color != nil {
		v.Color = *wire.Color
	}

	for i, raw := range wire.OrderedPath {
		var p Point
		if err := p.UnmarshalJSON(raw); err != nil {
			v.issues = append(v.issues, fmt.Sprintf("invalid path cell at index %d: %v", i, err))
			continue
		}
		v.OrderedPath = append(v.OrderedPath, p)
	}

	// A blocks value that is not a list is ignored, matching how generators
	// emit "blocks": null for free vines.
	var blocks []json.RawMessage
	if err := json.Unmarshal(wire.Blocks, &blocks); err == nil {
		for _, raw := range blocks {
			id, err := decodeID(raw)
			if err != nil || id == "" {
				v.issues = append(v.issues, fmt.Sprintf("invalid blocks entry %s", raw))
				continue
			}
			v.Blocks = append(v.Blocks, id)
		}
	}

	return nil
}

var errNotAnID = errors.New("not a string or number")

// decodeID accepts string and numeric identifiers
func decodeID(raw json.RawMessage) (string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, nil
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String(), nil
	}
	return "", errNotAnID
}

// abs returns the absolute value of x
func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
