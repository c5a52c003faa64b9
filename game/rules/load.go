package rules

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/wricardo/vinecheck/game/level"
)

var (
	ErrRulesNotFound = errors.New("rules file not found")
	ErrInvalidRules  = errors.New("invalid rules")
)

// UnmarshalYAML decodes a [min, max] sequence
func (r *Range) UnmarshalYAML(value *yaml.Node) error {
	var pair []float64
	if err := value.Decode(&pair); err != nil {
		return fmt.Errorf("line %d: range must be [min, max]: %v", value.Line, err)
	}
	if len(pair) != 2 {
		return fmt.Errorf("line %d: range must have exactly 2 numbers, got %d", value.Line, len(pair))
	}
	if pair[0] > pair[1] {
		return fmt.Errorf("line %d: range min %s is greater than max %s", value.Line, formatNumber(pair[0]), formatNumber(pair[1]))
	}
	r.Min, r.Max = pair[0], pair[1]
	return nil
}

// MarshalJSON encodes the range as [min, max]
func (r Range) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]float64{r.Min, r.Max})
}

// UnmarshalJSON decodes a [min, max] array
func (r *Range) UnmarshalJSON(data []byte) error {
	var pair [2]float64
	if err := json.Unmarshal(data, &pair); err != nil {
		return err
	}
	r.Min, r.Max = pair[0], pair[1]
	return nil
}

// fileTier is a tier entry of a rules file; unset keys keep the default
type fileTier struct {
	VineCount        *Range `yaml:"vine_count"`
	AvgLength        *Range `yaml:"avg_length"`
	MaxBlockingDepth *int   `yaml:"max_blocking_depth"`
	ColorCount       *Range `yaml:"color_count"`
}

// file is the on-disk shape of a rules file
type file struct {
	Tiers                map[string]fileTier `yaml:"tiers"`
	Palette              map[string]string   `yaml:"palette"`
	Directions           map[string]Range    `yaml:"directions"`
	MaxColorShare        *float64            `yaml:"max_color_share"`
	MinDirectionalSample *int                `yaml:"min_directional_sample"`
	MaskedCoverageFloor  *float64            `yaml:"masked_coverage_floor"`
	OverlapSampleSize    *int                `yaml:"overlap_sample_size"`
}

// LoadFile reads a YAML rules file and applies it on top of Default
func LoadFile(path string) (*RuleSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrRulesNotFound, path)
		}
		return nil, fmt.Errorf("failed to read rules file: %w", err)
	}

	rs, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return rs, nil
}

// Parse decodes YAML rules and applies them on top of Default
func Parse(data []byte) (*RuleSet, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRules, err)
	}
	return Default().apply(&f)
}

// apply returns a copy of rs with the file's overrides
func (rs *RuleSet) apply(f *file) (*RuleSet, error) {
	out := rs.clone()

	// Sorted so that tiers added by the file get a stable order
	for _, name := range sortedKeys(f.Tiers) {
		ft := f.Tiers[name]
		t, exists := out.tiers[name]
		if !exists {
			if ft.VineCount == nil || ft.AvgLength == nil || ft.ColorCount == nil || ft.MaxBlockingDepth == nil {
				return nil, fmt.Errorf("%w: new tier %s must define vine_count, avg_length, color_count and max_blocking_depth", ErrInvalidRules, name)
			}
			t = TierSpec{Name: name}
		}
		if ft.VineCount != nil {
			t.VineCount = *ft.VineCount
		}
		if ft.AvgLength != nil {
			t.AvgLength = *ft.AvgLength
		}
		if ft.ColorCount != nil {
			t.ColorCount = *ft.ColorCount
		}
		if ft.MaxBlockingDepth != nil {
			t.MaxBlockingDepth = *ft.MaxBlockingDepth
		}
		out.setTier(t)
	}

	if len(f.Palette) > 0 {
		out.palette = make(map[string]string, len(f.Palette))
		for name, hex := range f.Palette {
			out.palette[name] = hex
		}
	}

	for name, band := range f.Directions {
		d := level.Direction(name)
		if !d.Valid() {
			return nil, fmt.Errorf("%w: unknown direction %q", ErrInvalidRules, name)
		}
		out.directions[d] = band
	}

	if f.MaxColorShare != nil {
		out.MaxColorShare = *f.MaxColorShare
	}
	if f.MinDirectionalSample != nil {
		out.MinDirectionalSample = *f.MinDirectionalSample
	}
	if f.MaskedCoverageFloor != nil {
		out.MaskedCoverageFloor = *f.MaskedCoverageFloor
	}
	if f.OverlapSampleSize != nil {
		out.OverlapSampleSize = *f.OverlapSampleSize
	}

	if err := out.validate(); err != nil {
		return nil, err
	}
	return out, nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
