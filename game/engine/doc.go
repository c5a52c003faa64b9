// Package engine provides the validation engine that certifies vine levels.
//
// The engine package implements:
//   - Structural checks: required keys, grid shape, vine identity
//   - Path checks: contiguity and head/neck agreement
//   - Occupancy accounting with overlap detection and hide masks
//   - Color, length and head direction statistics against the tier
//   - The blocking graph: dangling references, cycles, deadlock and depth
//   - Vine count compliance with the tier
//
// Core Types:
//
// Checker is the contract used by the service layer, implemented by
// Validator. Report collects the ordered violations and warnings of one run,
// and Graph is the blocking graph shared with callers that need the
// clearable set or per-vine depths.
//
// Usage:
//
//	doc, err := level.Parse(data)
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	v := engine.NewValidator(rules.Default())
//	report := v.Validate(doc)
//	if !report.Valid() {
//		for _, msg := range report.Violations {
//			fmt.Println(msg)
//		}
//	}
//
// Severities:
//
// A violation means the level must not ship; a warning is advisory and never
// changes the verdict. Every check is total over malformed input and the
// engine never stops at the first defect, so a single run lists them all.
//
// Metrics:
//
// Validate writes occupancy_percent, color_distribution, blocking_graph and
// blocking_depth into the document. Nothing else is modified and the engine
// performs no I/O.
package engine
