package engine

// checkDifficulty cross-checks the vine count against the tier. Unknown tiers
// are tolerated.
func (r *run) checkDifficulty() {
	if !r.tierKnown {
		return
	}
	n := len(r.doc.Vines)
	if !r.tier.VineCount.Contains(float64(n)) {
		r.report.violation("Vine count %d outside range %s for %s", n, r.tier.VineCount, r.tier.Name)
	}
}
