// Package rules provides the rule set used to certify levels.
//
// The rules package holds:
//   - Difficulty tiers with vine count, average length, color count and
//     blocking depth targets
//   - The color palette
//   - Expected head direction bands
//   - The scalar limits used by the engine (color share cap, masked coverage
//     floor, directional sample size, overlap sample size)
//
// A RuleSet is immutable once built. Default returns the compiled-in tables;
// LoadFile applies a YAML file on top of them:
//
//	rs, err := rules.LoadFile("configs/tiers.yaml")
//	if err != nil {
//		log.Fatal(err)
//	}
//	seedling, ok := rs.Tier("Seedling")
//
// Keys missing from the file keep their default. A tier the defaults do not
// know must define every target. Ranges are [min, max] pairs and a range whose
// min exceeds its max is rejected with ErrInvalidRules.
package rules
