package rules

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/wricardo/vinecheck/game/level"
)

// Range is an inclusive numeric interval
type Range struct {
	Min float64
	Max float64
}

// Contains reports whether v lies within the range, bounds included
func (r Range) Contains(v float64) bool {
	return v >= r.Min && v <= r.Max
}

// String renders the range as "min-max"
func (r Range) String() string {
	return formatNumber(r.Min) + "-" + formatNumber(r.Max)
}

// TierSpec holds the targets of one difficulty tier
type TierSpec struct {
	Name             string `json:"name"`
	VineCount        Range  `json:"vine_count_range"`
	AvgLength        Range  `json:"avg_length_range"`
	MaxBlockingDepth int    `json:"max_blocking_depth"`
	ColorCount       Range  `json:"color_count_range"`
}

// Color is a palette entry
type Color struct {
	Name string `json:"name"`
	Hex  string `json:"hex"`
}

// RuleSet is the immutable configuration injected into the validation engine.
// Use Default or LoadFile to obtain one.
type RuleSet struct {
	tiers      map[string]TierSpec
	tierOrder  []string
	palette    map[string]string
	directions map[level.Direction]Range

	// MaxColorShare is the largest fraction of vines a single color may cover
	MaxColorShare float64
	// MinDirectionalSample is the vine count below which direction balance is skipped
	MinDirectionalSample int
	// MaskedCoverageFloor is the coverage fraction required when a hide mask is present
	MaskedCoverageFloor float64
	// OverlapSampleSize caps the conflicts quoted in the overlap violation
	OverlapSampleSize int
}

// Default returns the built-in rule set
func Default() *RuleSet {
	rs := &RuleSet{
		tiers: make(map[string]TierSpec),
		palette: map[string]string{
			"moss_green":    "#7CB342",
			"sunset_orange": "#FF9800",
			"golden_yellow": "#FFC107",
			"royal_purple":  "#7C4DFF",
			"sky_blue":      "#29B6F6",
			"coral_red":     "#FF6E40",
			"lime_green":    "#CDDC39",
		},
		directions: map[level.Direction]Range{
			level.Right: {Min: 0.25, Max: 0.30},
			level.Left:  {Min: 0.20, Max: 0.25},
			level.Up:    {Min: 0.20, Max: 0.25},
			level.Down:  {Min: 0.20, Max: 0.30},
		},
		MaxColorShare:        0.35,
		MinDirectionalSample: 10,
		MaskedCoverageFloor:  0.99,
		OverlapSampleSize:    5,
	}

	for _, t := range []TierSpec{
		{Name: "Seedling", VineCount: Range{4, 60}, AvgLength: Range{6, 8}, MaxBlockingDepth: 1, ColorCount: Range{1, 5}},
		{Name: "Sprout", VineCount: Range{8, 80}, AvgLength: Range{5, 7}, MaxBlockingDepth: 2, ColorCount: Range{1, 5}},
		{Name: "Nurturing", VineCount: Range{12, 100}, AvgLength: Range{4, 6}, MaxBlockingDepth: 3, ColorCount: Range{1, 6}},
		{Name: "Flourishing", VineCount: Range{15, 150}, AvgLength: Range{3, 5}, MaxBlockingDepth: 4, ColorCount: Range{1, 6}},
		{Name: "Transcendent", VineCount: Range{15, 200}, AvgLength: Range{2, 4}, MaxBlockingDepth: 4, ColorCount: Range{1, 6}},
	} {
		rs.setTier(t)
	}

	return rs
}

// Tier looks up a tier by its exact name
func (rs *RuleSet) Tier(name string) (TierSpec, bool) {
	t, ok := rs.tiers[name]
	return t, ok
}

// Tiers returns every tier, default tiers first, then tiers added by a rules file
func (rs *RuleSet) Tiers() []TierSpec {
	out := make([]TierSpec, 0, len(rs.tierOrder))
	for _, name := range rs.tierOrder {
		out = append(out, rs.tiers[name])
	}
	return out
}

// KnownColor reports whether the color is part of the palette
func (rs *RuleSet) KnownColor(name string) bool {
	_, ok := rs.palette[name]
	return ok
}

// Palette returns the palette sorted by color name
func (rs *RuleSet) Palette() []Color {
	out := make([]Color, 0, len(rs.palette))
	for name, hex := range rs.palette {
		out = append(out, Color{Name: name, Hex: hex})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// DirectionBand returns the expected share of vines heading in d
func (rs *RuleSet) DirectionBand(d level.Direction) (Range, bool) {
	r, ok := rs.directions[d]
	return r, ok
}

func (rs *RuleSet) setTier(t TierSpec) {
	if _, exists := rs.tiers[t.Name]; !exists {
		rs.tierOrder = append(rs.tierOrder, t.Name)
	}
	rs.tiers[t.Name] = t
}

// clone copies the rule set so overrides never touch the receiver
func (rs *RuleSet) clone() *RuleSet {
	c := *rs
	c.tiers = make(map[string]TierSpec, len(rs.tiers))
	for k, v := range rs.tiers {
		c.tiers[k] = v
	}
	c.tierOrder = append([]string(nil), rs.tierOrder...)
	c.palette = make(map[string]string, len(rs.palette))
	for k, v := range rs.palette {
		c.palette[k] = v
	}
	c.directions = make(map[level.Direction]Range, len(rs.directions))
	for k, v := range rs.directions {
		c.directions[k] = v
	}
	return &c
}

// formatNumber prints integers without a fractional part
func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// validate checks the cross-field constraints of a rule set
func (rs *RuleSet) validate() error {
	for _, name := range rs.tierOrder {
		t := rs.tiers[name]
		for label, r := range map[string]Range{
			"vine_count":  t.VineCount,
			"avg_length":  t.AvgLength,
			"color_count": t.ColorCount,
		} {
			if r.Min > r.Max {
				return fmt.Errorf("%w: tier %s: %s range %s has min greater than max", ErrInvalidRules, name, label, r)
			}
		}
		if t.MaxBlockingDepth < 0 {
			return fmt.Errorf("%w: tier %s: max_blocking_depth must not be negative", ErrInvalidRules, name)
		}
	}
	for d, r := range rs.directions {
		if r.Min > r.Max {
			return fmt.Errorf("%w: direction %s: band %s has min greater than max", ErrInvalidRules, d, r)
		}
	}
	if rs.MaxColorShare <= 0 || rs.MaxColorShare > 1 {
		return fmt.Errorf("%w: max_color_share must be in (0, 1]", ErrInvalidRules)
	}
	if rs.MaskedCoverageFloor < 0 || rs.MaskedCoverageFloor > 1 {
		return fmt.Errorf("%w: masked_coverage_floor must be in [0, 1]", ErrInvalidRules)
	}
	if rs.OverlapSampleSize < 1 {
		return fmt.Errorf("%w: overlap_sample_size must be positive", ErrInvalidRules)
	}
	if rs.MinDirectionalSample < 0 {
		return fmt.Errorf("%w: min_directional_sample must not be negative", ErrInvalidRules)
	}
	return nil
}
