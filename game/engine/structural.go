package engine

import (
	"github.com/wricardo/vinecheck/game/level"
)

// checkStructure reports missing keys, a malformed grid_size, fields of the
// wrong type and vine identity problems. It never stops early.
func (r *run) checkStructure() {
	for _, field := range level.RequiredFields {
		if !r.doc.Has(field) {
			r.report.violation("Missing required field: %s", field)
		}
	}

	if r.doc.Has("grid_size") && !r.doc.GridSize.Valid() {
		r.report.violation("Invalid grid_size: %s", r.doc.GridSize)
	}

	for _, p := range r.doc.FieldProblems() {
		r.report.violation("Invalid %s: %s", p.Field, p.Reason)
	}

	seen := make(map[string]bool, len(r.doc.Vines))
	reported := make(map[string]bool)
	for i, vine := range r.doc.Vines {
		for _, issue := range vine.DecodeIssues() {
			r.report.violation("Vine %s: %s", vine.Label(), issue)
		}

		if vine.ID == "" {
			r.report.violation("Vine at index %d: missing id", i)
			continue
		}
		if seen[vine.ID] && !reported[vine.ID] {
			r.report.violation("Duplicate vine id: %s", vine.ID)
			reported[vine.ID] = true
		}
		seen[vine.ID] = true
	}
}
