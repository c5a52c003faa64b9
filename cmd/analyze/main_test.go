package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/wricardo/vinecheck/game/level"
)

const blockedLevel = `{"id": 1, "name": "Pair", "grid_size": [2, 2], "difficulty": "",
  "vines": [
    {"id": "a", "head_direction": "right", "color": "moss_green", "ordered_path": [[1,0],[0,0]], "blocks": ["b"]},
    {"id": "b", "head_direction": "right", "color": "sky_blue", "ordered_path": [[1,1],[0,1]]}
  ],
  "max_moves": 2, "min_moves": 2, "complexity": "low", "grace": 3}`

func TestAnalyzeDir(t *testing.T) {
	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, "level_1.json"), []byte(blockedLevel), 0644)
	os.WriteFile(filepath.Join(dir, "level_2.json"), []byte("not json"), 0644)
	os.WriteFile(filepath.Join(dir, "readme.json"), []byte("{}"), 0644)

	var out bytes.Buffer
	if err := analyzeDir(&out, dir); err != nil {
		t.Fatalf("analyzeDir failed: %v", err)
	}
	text := out.String()

	expected := []string{
		"=== Analyzing level_1.json ===",
		"Name: Pair",
		"Difficulty: (none)",
		"Grid Size: 2 x 2",
		"Occupancy: 100.0%",
		"Vines: 2",
		"Vine Length: min 2, max 2, avg 2.0",
		"Directions: right 2",
		"Colors: moss_green 50.0%, sky_blue 50.0%",
		"Clearable At Start: a",
		"Blocking Depth: 1",
		"Deepest Chains: a",
		"Color 'moss_green' exceeds",
		"=== Analyzing level_2.json ===",
		"Error loading level:",
	}
	for _, want := range expected {
		if !strings.Contains(text, want) {
			t.Errorf("Expected %q in output:\n%s", want, text)
		}
	}
	if strings.Contains(text, "readme.json") {
		t.Error("Non-level files should be skipped")
	}

	// The analyzer never writes back
	data, _ := os.ReadFile(filepath.Join(dir, "level_1.json"))
	if string(data) != blockedLevel {
		t.Error("Level file was modified")
	}
}

func TestAnalyzeDirErrors(t *testing.T) {
	var out bytes.Buffer
	if err := analyzeDir(&out, "/non/existent/path"); err == nil {
		t.Error("Expected error for non-existent directory")
	}

	if err := analyzeDir(&out, t.TempDir()); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if !strings.Contains(out.String(), "No level files found") {
		t.Errorf("Unexpected output: %s", out.String())
	}
}

func TestDirectionSplit(t *testing.T) {
	vines := []level.Vine{
		{HeadDirection: level.Up},
		{HeadDirection: level.Left},
		{HeadDirection: level.Up},
		{HeadDirection: level.Direction("sideways")},
	}
	if got := directionSplit(vines); got != "left 1, up 2, other 1" {
		t.Errorf("directionSplit = %q", got)
	}
}

func TestDeepestVines(t *testing.T) {
	tests := []struct {
		depths   map[string]int
		expected []string
	}{
		{map[string]int{"a": 2, "b": 1, "c": 2}, []string{"a", "c"}},
		{map[string]int{"a": 0}, nil},
		{nil, nil},
	}

	for _, test := range tests {
		got := deepestVines(test.depths)
		if strings.Join(got, ",") != strings.Join(test.expected, ",") {
			t.Errorf("deepestVines(%v) = %v, expected %v", test.depths, got, test.expected)
		}
	}
}

func TestListed(t *testing.T) {
	if got := listed(nil); got != "none" {
		t.Errorf("Expected none, got %q", got)
	}
	ids := []string{"a", "b", "c", "d", "e", "f", "g"}
	if got := listed(ids); got != "a, b, c, d, e ... and 2 more" {
		t.Errorf("Unexpected list: %q", got)
	}
}
