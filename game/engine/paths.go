package engine

import "github.com/wricardo/vinecheck/game/level"

// checkPaths verifies that every vine is a contiguous chain of cells whose
// first two cells agree with the declared head direction, and that no vine
// sits on its own exit ray.
func (r *run) checkPaths() {
	for _, vine := range r.doc.Vines {
		path := vine.OrderedPath
		if len(path) < 2 {
			r.report.violation("Vine %s: path too short (length %d)", vine.Label(), len(path))
			continue
		}

		for i := 0; i < len(path)-1; i++ {
			if d := path[i].ManhattanDistance(path[i+1]); d != 1 {
				r.report.violation("Vine %s: path not contiguous at segment %d (distance=%d from %s to %s)",
					vine.Label(), i, d, path[i], path[i+1])
			}
		}

		delta, ok := vine.HeadDirection.Delta()
		if !ok {
			r.report.violation("Vine %s: invalid head_direction '%s'", vine.Label(), vine.HeadDirection)
			continue
		}

		head, neck := path[0], path[1]
		if expected := head.Sub(delta); neck != expected {
			r.report.violation("Vine %s: head_direction '%s' doesn't match path (head=%s, neck=%s, expected=%s)",
				vine.Label(), vine.HeadDirection, head, neck, expected)
		}

		if cell, blocked := selfBlocking(path, delta, r.doc.GridSize); blocked {
			r.report.violation("Vine %s: self-blocking: segment at %s blocks head exit path", vine.Label(), cell)
		}
	}
}

// selfBlocking returns the first body cell, in path order, that lies on the
// straight ray from the head to the grid edge. Such a vine can never leave.
func selfBlocking(path []level.Point, delta level.Point, grid level.GridSize) (level.Point, bool) {
	if !grid.Valid() {
		return level.Point{}, false
	}
	head := path[0]
	for _, cell := range path[1:] {
		if grid.Contains(cell) && onRay(head, delta, cell) {
			return cell, true
		}
	}
	return level.Point{}, false
}

// onRay reports whether cell is head + k*delta for some k >= 1
func onRay(head, delta, cell level.Point) bool {
	d := cell.Sub(head)
	if delta.X == 0 {
		return d.X == 0 && d.Y*delta.Y >= 1
	}
	return d.Y == 0 && d.X*delta.X >= 1
}
