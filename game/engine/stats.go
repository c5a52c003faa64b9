package engine

import (
	"math"
	"strconv"

	"github.com/wricardo/vinecheck/game/level"
)

// checkColors counts vines per color, enforces the share cap and stores the
// color distribution
func (r *run) checkColors() {
	vines := r.doc.Vines

	var order []string
	counts := make(map[string]int)
	for _, vine := range vines {
		c := vine.ColorName()
		if counts[c] == 0 {
			order = append(order, c)
		}
		counts[c]++
	}

	for _, c := range order {
		if c != level.UnknownColor && !r.rules.KnownColor(c) {
			r.report.warning("Unknown color: %s", c)
		}
	}

	if r.tierKnown && !r.tier.ColorCount.Contains(float64(len(order))) {
		r.report.warning("Color count %d outside recommended range %s for %s", len(order), r.tier.ColorCount, r.tier.Name)
	}

	total := len(vines)
	for _, c := range order {
		if c == level.UnknownColor {
			continue
		}
		share := float64(counts[c]) / float64(total)
		if share > r.rules.MaxColorShare {
			r.report.violation("Color '%s' exceeds %s%% limit: %.1f%% (%d/%d vines)",
				c, percentString(r.rules.MaxColorShare), share*100, counts[c], total)
		}
	}

	distribution := make(map[string]float64, len(order))
	for _, c := range order {
		distribution[c] = math.Round(float64(counts[c])/float64(total)*1000) / 1000
	}
	r.doc.ColorDistribution = distribution
}

// checkLengths compares the average vine length with the tier and enforces
// the two-cell floor
func (r *run) checkLengths() {
	vines := r.doc.Vines
	if len(vines) == 0 {
		return
	}

	sum := 0
	shortest := vines[0].Length()
	for _, vine := range vines {
		sum += vine.Length()
		if vine.Length() < shortest {
			shortest = vine.Length()
		}
	}
	avg := float64(sum) / float64(len(vines))

	if r.tierKnown && !r.tier.AvgLength.Contains(avg) {
		r.report.warning("Average vine length %.1f outside recommended range %s for %s", avg, r.tier.AvgLength, r.tier.Name)
	}

	if shortest < 2 {
		r.report.violation("Vine too short: minimum length is %d, requires ≥2", shortest)
	}
}

// checkDirections warns when a head direction is over or under represented.
// Small levels are skipped.
func (r *run) checkDirections() {
	vines := r.doc.Vines
	if len(vines) == 0 || len(vines) < r.rules.MinDirectionalSample {
		return
	}

	counts := make(map[level.Direction]int)
	for _, vine := range vines {
		counts[vine.HeadDirection]++
	}

	for _, d := range level.Directions {
		band, ok := r.rules.DirectionBand(d)
		if !ok {
			continue
		}
		share := float64(counts[d]) / float64(len(vines))
		if !band.Contains(share) {
			r.report.warning("Direction '%s' imbalanced: %.1f%% (expected %.0f%%-%.0f%%)", d, share*100, band.Min*100, band.Max*100)
		}
	}
}

// percentString renders a fraction as a percentage without float noise
func percentString(fraction float64) string {
	return strconv.FormatFloat(math.Round(fraction*1000)/10, 'f', -1, 64)
}
