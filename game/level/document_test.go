package level

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDocument(t *testing.T) {
	doc, err := Parse([]byte(`{
		"id": "L-12",
		"name": "Morning Dew",
		"difficulty": "Sprout",
		"grid_size": [6, 8],
		"vines": [
			{"id": "v1", "head_direction": "up", "color": "moss_green",
			 "ordered_path": [{"x": 0, "y": 1}, [0, 0]], "blocks": ["v2", 3]},
			{"id": 3, "head_direction": "down", "ordered_path": [[1, 0], [1, 1]], "blocks": null}
		],
		"max_moves": 20, "min_moves": 9, "complexity": "low", "grace": 3,
		"mask": {"mode": "hide", "points": [[5, 7], {"x": 4, "y": 7}, "bad", [1]]}
	}`))
	require.NoError(t, err)

	assert.Equal(t, "L-12", doc.ID)
	assert.Equal(t, "Sprout", doc.Difficulty)
	w, h, ok := doc.GridSize.Dimensions()
	assert.True(t, ok)
	assert.Equal(t, 6, w)
	assert.Equal(t, 8, h)
	assert.Equal(t, 48, doc.GridSize.TotalCells())
	assert.Equal(t, 9, doc.MinMoves)

	require.Len(t, doc.Vines, 2)
	v1 := doc.Vines[0]
	assert.Equal(t, Up, v1.HeadDirection)
	assert.Equal(t, []Point{{0, 1}, {0, 0}}, v1.OrderedPath)
	assert.Equal(t, []string{"v2", "3"}, v1.Blocks)
	assert.Empty(t, v1.DecodeIssues())

	v3 := doc.Vines[1]
	assert.Equal(t, "3", v3.ID)
	assert.Equal(t, UnknownColor, v3.ColorName())
	assert.Nil(t, v3.Blocks)

	require.NotNil(t, doc.Mask)
	assert.True(t, doc.Mask.Hides())
	assert.Equal(t, []Point{{5, 7}, {4, 7}}, doc.Mask.Points)

	assert.True(t, doc.Has("mask"))
	assert.False(t, doc.Has("occupancy_percent"))
	assert.Empty(t, doc.FieldProblems())
	assert.Equal(t, map[string]bool{"v1": true, "3": true}, doc.VineIDs())
}

func TestParseRejectsNonObjects(t *testing.T) {
	for _, input := range []string{`[]`, `"level"`, `null`} {
		_, err := Parse([]byte(input))
		assert.ErrorIs(t, err, ErrNotAnObject, input)
	}

	_, err := Parse([]byte(`{`))
	assert.Error(t, err)
}

func TestParseRecordsFieldProblems(t *testing.T) {
	doc, err := Parse([]byte(`{"id": true, "grace": "three", "max_moves": 4, "mask": 7}`))
	require.NoError(t, err)

	var fields []string
	for _, p := range doc.FieldProblems() {
		fields = append(fields, p.Field)
		assert.NotEmpty(t, p.Reason)
	}
	assert.Equal(t, []string{"grace", "id", "mask"}, fields)
	assert.Equal(t, 4, doc.MaxMoves)
	assert.Nil(t, doc.Mask)
}

func TestVineDecodeIssues(t *testing.T) {
	var v Vine
	require.NoError(t, json.Unmarshal([]byte(`{
		"id": {"nested": true},
		"head_direction": 4,
		"ordered_path": [[0, 0], {"x": 1}, [1, 0]],
		"blocks": ["a", {}, ""]
	}`), &v))

	assert.Equal(t, "unknown", v.Label())
	assert.Equal(t, []Point{{0, 0}, {1, 0}}, v.OrderedPath)
	assert.Equal(t, []string{"a"}, v.Blocks)
	assert.Len(t, v.DecodeIssues(), 5)

	var ignored Vine
	require.NoError(t, json.Unmarshal([]byte(`{"id": "x", "blocks": "v2"}`), &ignored))
	assert.Nil(t, ignored.Blocks, "a non-list blocks value is ignored")
	assert.Empty(t, ignored.DecodeIssues())
}

func TestGridSize(t *testing.T) {
	tests := []struct {
		raw   string
		valid bool
		pair  bool
		str   string
	}{
		{`[4, 5]`, true, true, "[4,5]"},
		{`[0, 5]`, false, true, "[0,5]"},
		{`[4]`, false, false, "[4]"},
		{`[4.5, 2]`, false, false, "[4.5,2]"},
		{`[2.0, 3.0]`, true, true, "[2.0,3.0]"},
		{`[3e0, 1]`, true, true, "[3e0,1]"},
		{`[4294967296, 4294967296]`, false, false, "[4294967296,4294967296]"},
		{`[1e300, 2]`, false, false, "[1e300,2]"},
		{`["4", 2]`, false, false, `["4",2]`},
		{`{"w": 4}`, false, false, `{"w":4}`},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			var g GridSize
			require.NoError(t, json.Unmarshal([]byte(tt.raw), &g))
			_, _, pair := g.Dimensions()
			assert.Equal(t, tt.valid, g.Valid())
			assert.Equal(t, tt.pair, pair)
			assert.Equal(t, tt.str, g.String())
		})
	}

	var floats GridSize
	require.NoError(t, json.Unmarshal([]byte(`[2.0, 3.0]`), &floats))
	assert.Equal(t, 6, floats.TotalCells())
	assert.False(t, NewGridSize(1<<40, 1<<40).Valid())

	g := NewGridSize(3, 2)
	assert.True(t, g.Contains(Point{2, 1}))
	assert.False(t, g.Contains(Point{3, 1}))
	assert.False(t, g.Contains(Point{0, -1}))
	assert.Equal(t, "[3, 2]", g.String())
}

func TestDirectionDelta(t *testing.T) {
	tests := []struct {
		dir  Direction
		want Point
	}{
		{Right, Point{1, 0}},
		{Left, Point{-1, 0}},
		{Up, Point{0, 1}},
		{Down, Point{0, -1}},
	}
	for _, tt := range tests {
		got, ok := tt.dir.Delta()
		assert.True(t, ok)
		assert.Equal(t, tt.want, got)
	}

	_, ok := Direction("UP").Delta()
	assert.False(t, ok)
	assert.False(t, Direction("").Valid())
}

func TestMarshalKeepsUnknownKeys(t *testing.T) {
	input := `{"id": 3, "name": "n", "custom": {"nested": [1, 2]}, "grid_size": [2, 1],
		"occupancy_percent": 12.5, "vines": []}`
	doc, err := Parse([]byte(input))
	require.NoError(t, err)

	pct := 100.0
	depth := 0
	doc.OccupancyPercent = &pct
	doc.BlockingDepth = &depth
	doc.BlockingGraph = map[string][]string{}
	doc.ColorDistribution = map[string]float64{}

	data, err := json.Marshal(doc)
	require.NoError(t, err)
	assert.JSONEq(t, `{"id": 3, "name": "n", "custom": {"nested": [1, 2]}, "grid_size": [2, 1],
		"occupancy_percent": 100, "vines": [], "blocking_depth": 0, "blocking_graph": {},
		"color_distribution": {}}`, string(data))
}

func TestMarshalBuiltDocument(t *testing.T) {
	doc := &Document{
		ID:         "9",
		Name:       "built",
		Difficulty: "Seedling",
		GridSize:   NewGridSize(2, 1),
		Vines: []Vine{
			{ID: "a", HeadDirection: Right, OrderedPath: []Point{{1, 0}, {0, 0}}},
		},
		Complexity: "low",
	}
	assert.True(t, doc.Has("grace"))
	assert.False(t, doc.Has("mask"))

	data, err := json.Marshal(doc)
	require.NoError(t, err)

	back, err := Parse(data)
	require.NoError(t, err)
	assert.Equal(t, doc.Vines[0].OrderedPath, back.Vines[0].OrderedPath)
	assert.True(t, back.GridSize.Valid())
	assert.Equal(t, "9", back.ID)
	assert.False(t, back.Has("mask"))
}

func TestMarshalKeepsKeyOrder(t *testing.T) {
	doc, err := Parse([]byte(`{"name": "n", "id": 1, "blocking_depth": 9, "vines": [],
		"grid_size": [1, 1], "a\"quoted": true}`))
	require.NoError(t, err)

	pct := 50.0
	depth := 2
	doc.OccupancyPercent = &pct
	doc.BlockingDepth = &depth
	doc.BlockingGraph = map[string][]string{"b": {"c"}, "a": {"b"}}

	data, err := json.Marshal(doc)
	require.NoError(t, err)
	assert.Equal(t, `{"name":"n","id":1,"blocking_depth":2,"vines":[],"grid_size":[1,1],"a\"quoted":true,`+
		`"occupancy_percent":50,"blocking_graph":{"a":["b"],"b":["c"]}}`, string(data))

	again, err := Parse(data)
	require.NoError(t, err)
	second, err := json.Marshal(again)
	require.NoError(t, err)
	assert.Equal(t, string(data), string(second))
}

func TestMarshalIndentKeepsKeyOrder(t *testing.T) {
	doc, err := Parse([]byte(`{"vines": [], "id": "x"}`))
	require.NoError(t, err)

	data, err := json.MarshalIndent(doc, "", "  ")
	require.NoError(t, err)
	assert.Equal(t, "{\n  \"vines\": [],\n  \"id\": \"x\"\n}", string(data))
}

func TestMarshalBuiltDocumentKeyOrder(t *testing.T) {
	doc := &Document{ID: "1", GridSize: NewGridSize(1, 1)}
	data, err := json.Marshal(doc)
	require.NoError(t, err)
	assert.Equal(t, `{"id":"1","name":"","grid_size":[1,1],"difficulty":"","vines":[],`+
		`"max_moves":0,"min_moves":0,"complexity":"","grace":0}`, string(data))
}

func TestParseDuplicateKeys(t *testing.T) {
	doc, err := Parse([]byte(`{"name": "first", "id": 1, "name": "second"}`))
	require.NoError(t, err)
	assert.Equal(t, "second", doc.Name)

	data, err := json.Marshal(doc)
	require.NoError(t, err)
	assert.Equal(t, `{"name":"second","id":1}`, string(data))
}
