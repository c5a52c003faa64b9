// Package level provides the in-memory model of a Parable Bloom level document.
//
// The level package implements:
//   - The Document type with every top-level key kept as read
//   - Vines, grid points, head directions and the optional mask
//   - Tolerant JSON decoding for hand-edited and generated files
//   - Write-back of the validation metrics without touching other keys
//
// Document Format:
//
// Levels are stored as JSON files named level_<id>.json:
//
//	{
//	  "id": 12,
//	  "name": "Morning Dew",
//	  "difficulty": "Sprout",
//	  "grid_size": [6, 8],
//	  "vines": [
//	    {
//	      "id": "v1",
//	      "head_direction": "right",
//	      "color": "moss_green",
//	      "ordered_path": [{"x": 2, "y": 0}, {"x": 1, "y": 0}],
//	      "blocks": ["v2"]
//	    }
//	  ],
//	  "max_moves": 20, "min_moves": 9, "complexity": "low", "grace": 3,
//	  "mask": {"mode": "hide", "points": [[0, 0], {"x": 5, "y": 7}]}
//	}
//
// Coordinates are (x, y) with y growing upward, so a vine heading "up" has its
// neck directly below its head.
//
// Decoding:
//
// A document only fails to decode when it is not a JSON object. A field of the
// wrong JSON type is recorded as a field problem and left at its zero value so
// the engine can report it next to every other defect.
//
// Metrics:
//
// The validation engine writes four keys back into the document:
// occupancy_percent, color_distribution, blocking_graph and blocking_depth.
// Everything else is re-emitted exactly as it was decoded.
package level
