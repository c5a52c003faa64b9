package engine

import (
	"math"
	"strings"

	"github.com/wricardo/vinecheck/game/level"
)

// overlap records every vine found on a cell after its first owner
type overlap struct {
	cell   level.Point
	owners []string
}

// checkOccupancy computes the covered share of the playable grid and enforces
// the tiling policy: exact coverage without a mask, a coverage floor with one.
func (r *run) checkOccupancy() {
	width, height, ok := r.doc.GridSize.Dimensions()
	if !ok {
		return
	}
	grid := r.doc.GridSize
	bounded := grid.Valid()

	hidden := r.hiddenCells()

	owners := make(map[level.Point]string)
	var overlaps []*overlap
	overlapAt := make(map[level.Point]*overlap)

	for _, vine := range r.doc.Vines {
		for _, cell := range vine.OrderedPath {
			if bounded && !grid.Contains(cell) {
				r.report.violation("Vine %s: cell %s out of bounds (grid %dx%d)", vine.Label(), cell, width, height)
				continue
			}
			if hidden[cell] {
				r.report.violation("Vine %s: cell %s is masked out but occupied", vine.Label(), cell)
				continue
			}

			first, taken := owners[cell]
			if !taken {
				owners[cell] = vine.Label()
				continue
			}
			o, exists := overlapAt[cell]
			if !exists {
				o = &overlap{cell: cell, owners: []string{first}}
				overlapAt[cell] = o
				overlaps = append(overlaps, o)
			}
			o.owners = append(o.owners, vine.Label())
		}
	}

	effective := width*height - len(hidden)
	if effective < 0 {
		effective = 0
	}
	covered := len(owners)

	var occupancy float64
	if effective > 0 {
		occupancy = float64(covered) / float64(effective)
	}
	percent := math.Round(occupancy*1000) / 10
	r.doc.OccupancyPercent = &percent

	if len(overlaps) > 0 {
		n := r.rules.OverlapSampleSize
		if n > len(overlaps) {
			n = len(overlaps)
		}
		sample := make([]string, 0, n)
		for _, o := range overlaps[:n] {
			sample = append(sample, o.cell.String()+" "+strings.Join(o.owners, "/"))
		}
		r.report.violation("Overlapping vines detected at %d cells; sample: %s", len(overlaps), strings.Join(sample, ", "))
	}

	if len(hidden) > 0 {
		switch {
		case occupancy < r.rules.MaskedCoverageFloor:
			r.report.violation("Grid coverage incomplete: %.1f%% of visible cells occupied; expected ≥%s%% when mask is used",
				percent, percentString(r.rules.MaskedCoverageFloor))
		case occupancy < 1:
			r.report.warning("Grid coverage near-complete: %.1f%% (mask hides %d cells)", percent, len(hidden))
		}
		return
	}

	if covered < effective {
		r.report.violation("Grid not fully tiled: %d/%d cells occupied (%.1f%%). Generator must produce a full tiling with no empty coordinates.",
			covered, effective, percent)
	}
}

// hiddenCells returns the distinct in-grid cells removed by a hide mask
func (r *run) hiddenCells() map[level.Point]bool {
	hidden := make(map[level.Point]bool)
	if !r.doc.Mask.Hides() || !r.doc.GridSize.Valid() {
		return hidden
	}
	for _, p := range r.doc.Mask.Points {
		if r.doc.GridSize.Contains(p) {
			hidden[p] = true
		}
	}
	return hidden
}
