package engine

import (
	"fmt"

	"github.com/wricardo/vinecheck/game/level"
	"github.com/wricardo/vinecheck/game/rules"
)

// Checker defines the contract for validating level documents
type Checker interface {
	// Validate runs every check against doc, attaches the metrics to it and
	// returns the full list of defects
	Validate(doc *level.Document) *Report
	Rules() *rules.RuleSet
}

// Report is the outcome of validating one document
type Report struct {
	Violations []string `json:"violations"`
	Warnings   []string `json:"warnings"`
	Metrics    Metrics  `json:"metrics"`

	// Vines that no other vine blocks, in document order
	ClearableAtStart []string `json:"clearable_at_start"`
	// Longest blocking chain below each graph key
	Depths map[string]int `json:"depths,omitempty"`
}

// Metrics mirrors the values written back into the document
type Metrics struct {
	OccupancyPercent  *float64            `json:"occupancy_percent,omitempty"`
	ColorDistribution map[string]float64  `json:"color_distribution"`
	BlockingGraph     map[string][]string `json:"blocking_graph"`
	BlockingDepth     int                 `json:"blocking_depth"`
}

// Valid reports whether the document has no violations; warnings never count
func (r *Report) Valid() bool {
	return len(r.Violations) == 0
}

func (r *Report) violation(format string, args ...any) {
	r.Violations = append(r.Violations, fmt.Sprintf(format, args...))
}

func (r *Report) warning(format string, args ...any) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

// Validator implements Checker
type Validator struct {
	rules *rules.RuleSet
}

// NewValidator creates a validator bound to a rule set; nil selects the defaults
func NewValidator(rs *rules.RuleSet) *Validator {
	if rs == nil {
		rs = rules.Default()
	}
	return &Validator{rules: rs}
}

// Rules returns the rule set the validator checks against
func (v *Validator) Rules() *rules.RuleSet {
	return v.rules
}

// Validate runs the checks in their fixed order. The document is only
// modified through its four metric fields.
func (v *Validator) Validate(doc *level.Document) *Report {
	report := &Report{
		Violations: []string{},
		Warnings:   []string{},
	}

	tier, tierKnown := v.rules.Tier(doc.Difficulty)
	run := &run{
		rules:     v.rules,
		doc:       doc,
		report:    report,
		tier:      tier,
		tierKnown: tierKnown,
	}

	run.checkStructure()
	run.checkPaths()
	run.checkOccupancy()
	run.checkColors()
	run.checkLengths()
	run.checkDirections()
	run.checkBlocking()
	run.checkDifficulty()

	report.Metrics = Metrics{
		OccupancyPercent:  doc.OccupancyPercent,
		ColorDistribution: doc.ColorDistribution,
		BlockingGraph:     doc.BlockingGraph,
	}
	if doc.BlockingDepth != nil {
		report.Metrics.BlockingDepth = *doc.BlockingDepth
	}

	return report
}

// run carries the state shared by the checks of one validation
type run struct {
	rules     *rules.RuleSet
	doc       *level.Document
	report    *Report
	tier      rules.TierSpec
	tierKnown bool
}
