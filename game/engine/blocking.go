package engine

import (
	"sort"
)

// Graph is the directed blocking graph: an edge A→B means vine A lists B in
// its blocks. Only vines with at least one entry are keys; keys keep document
// order and adjacency keeps first-seen order.
type Graph struct {
	keys  []string
	edges map[string][]string
}

// NewGraph creates an empty blocking graph
func NewGraph() *Graph {
	return &Graph{edges: make(map[string][]string)}
}

// AddEdge inserts from→to once
func (g *Graph) AddEdge(from, to string) {
	children, exists := g.edges[from]
	if !exists {
		g.keys = append(g.keys, from)
	}
	for _, c := range children {
		if c == to {
			return
		}
	}
	g.edges[from] = append(children, to)
}

// Keys returns the nodes with outgoing edges in insertion order
func (g *Graph) Keys() []string {
	return g.keys
}

// Children returns the sorted targets of node; a node that is not a key has
// no outgoing edges
func (g *Graph) Children(node string) []string {
	children := append([]string(nil), g.edges[node]...)
	sort.Strings(children)
	return children
}

// Adjacency returns a copy of the graph with sorted target lists
func (g *Graph) Adjacency() map[string][]string {
	out := make(map[string][]string, len(g.keys))
	for _, k := range g.keys {
		out[k] = g.Children(k)
	}
	return out
}

// Cycles returns every key from which a traversal leads back to itself, in key order
func (g *Graph) Cycles() []string {
	var origins []string
	for _, origin := range g.keys {
		if g.reaches(origin, origin) {
			origins = append(origins, origin)
		}
	}
	return origins
}

// reaches runs an iterative depth-first traversal from origin and reports
// whether target is found on any outgoing path
func (g *Graph) reaches(origin, target string) bool {
	visited := make(map[string]bool)
	stack := []string{origin}
	for len(stack) > 0 {
		current := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if visited[current] {
			continue
		}
		visited[current] = true

		for _, child := range g.Children(current) {
			if child == target {
				return true
			}
			stack = append(stack, child)
		}
	}
	return false
}

// Depths returns the longest outgoing chain below every key along with the
// maximum. A child that is already on the current recursion stack adds
// nothing, so cyclic input terminates.
func (g *Graph) Depths() (map[string]int, int) {
	memo := make(map[string]int)
	onStack := make(map[string]bool)

	var longest func(node string) int
	longest = func(node string) int {
		if d, ok := memo[node]; ok {
			return d
		}
		onStack[node] = true
		best := 0
		for _, child := range g.Children(node) {
			if onStack[child] {
				continue
			}
			if d := 1 + longest(child); d > best {
				best = d
			}
		}
		onStack[node] = false
		memo[node] = best
		return best
	}

	depths := make(map[string]int, len(g.keys))
	deepest := 0
	for _, k := range g.keys {
		d := longest(k)
		depths[k] = d
		if d > deepest {
			deepest = d
		}
	}
	return depths, deepest
}

// checkBlocking builds the blocking graph, reports dangling references,
// cycles and deadlocks, and stores the graph and its depth
func (r *run) checkBlocking() {
	vines := r.doc.Vines
	ids := r.doc.VineIDs()

	graph := NewGraph()
	for _, vine := range vines {
		for _, target := range vine.Blocks {
			if !ids[target] {
				r.report.violation("Vine %s blocks non-existent vine %s", vine.Label(), target)
			}
			graph.AddEdge(vine.ID, target)
		}
	}

	for _, origin := range graph.Cycles() {
		r.report.violation("Circular blocking detected: %s -> ... -> %s", origin, origin)
	}

	blocked := make(map[string]bool)
	for _, vine := range vines {
		for _, target := range vine.Blocks {
			blocked[target] = true
		}
	}
	clearable := []string{}
	for _, vine := range vines {
		if !blocked[vine.ID] {
			clearable = append(clearable, vine.Label())
		}
	}
	r.report.ClearableAtStart = clearable
	if len(clearable) == 0 {
		r.report.violation("No vines are clearable at level start (deadlock)")
	}

	depths, maxDepth := graph.Depths()
	r.report.Depths = depths
	r.doc.BlockingGraph = graph.Adjacency()
	r.doc.BlockingDepth = &maxDepth

	if r.tierKnown && maxDepth > r.tier.MaxBlockingDepth {
		r.report.warning("Blocking depth %d exceeds soft target %d for %s (scored target, not a hard requirement)",
			maxDepth, r.tier.MaxBlockingDepth, r.tier.Name)
	}
}
