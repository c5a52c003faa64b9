// Command analyze prints quick, human-readable statistics about the level
// files under a levels directory. It summarizes dimensions, vine counts and
// lengths, color and direction splits, and the shape of the blocking graph:
// which vines can move first and how deep the blocking chains go.
package main

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/wricardo/vinecheck/game/engine"
	"github.com/wricardo/vinecheck/game/level"
	"github.com/wricardo/vinecheck/game/store"
)

// maxListed caps how many entries of a long list are printed
const maxListed = 5

func main() {
	dir := "assets/levels"
	if len(os.Args) > 1 {
		dir = os.Args[1]
	}

	if err := analyzeDir(os.Stdout, dir); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func analyzeDir(w io.Writer, dir string) error {
	levels, err := store.New(dir)
	if err != nil {
		return err
	}
	names, err := levels.Discover()
	if err != nil {
		return err
	}
	if len(names) == 0 {
		fmt.Fprintf(w, "No level files found in %s\n", dir)
		return nil
	}

	validator := engine.NewValidator(nil)
	for _, name := range names {
		fmt.Fprintf(w, "\n=== Analyzing %s ===\n", name)
		doc, err := levels.Load(name)
		if err != nil {
			fmt.Fprintf(w, "Error loading level: %v\n", err)
			continue
		}
		// Validate annotates the in-memory copy only; nothing is saved
		analyzeLevel(w, doc, validator.Validate(doc))
	}
	return nil
}

func analyzeLevel(w io.Writer, doc *level.Document, report *engine.Report) {
	fmt.Fprintf(w, "Name: %s\n", doc.Name)
	fmt.Fprintf(w, "Difficulty: %s\n", orNone(doc.Difficulty))
	if width, height, ok := doc.GridSize.Dimensions(); ok {
		fmt.Fprintf(w, "Grid Size: %d x %d\n", width, height)
	} else {
		fmt.Fprintf(w, "Grid Size: %s (not a pair)\n", doc.GridSize.String())
	}
	if report.Metrics.OccupancyPercent != nil {
		fmt.Fprintf(w, "Occupancy: %.1f%%\n", *report.Metrics.OccupancyPercent)
	}

	fmt.Fprintf(w, "Vines: %d\n", len(doc.Vines))
	if len(doc.Vines) > 0 {
		shortest, longest, total := lengthStats(doc.Vines)
		fmt.Fprintf(w, "Vine Length: min %d, max %d, avg %.1f\n",
			shortest, longest, float64(total)/float64(len(doc.Vines)))
		fmt.Fprintf(w, "Directions: %s\n", directionSplit(doc.Vines))
	}
	if len(report.Metrics.ColorDistribution) > 0 {
		fmt.Fprintf(w, "Colors: %s\n", colorSplit(report.Metrics.ColorDistribution))
	}

	fmt.Fprintf(w, "Clearable At Start: %s\n", listed(report.ClearableAtStart))
	fmt.Fprintf(w, "Blocking Depth: %d\n", report.Metrics.BlockingDepth)
	if deepest := deepestVines(report.Depths); len(deepest) > 0 {
		fmt.Fprintf(w, "Deepest Chains: %s\n", listed(deepest))
	}

	if report.Valid() {
		fmt.Fprintf(w, "✅ Valid (%d warnings)\n", len(report.Warnings))
		return
	}
	fmt.Fprintf(w, "⚠️  %d violations, %d warnings\n", len(report.Violations), len(report.Warnings))
	for i, v := range report.Violations {
		if i == maxListed {
			fmt.Fprintf(w, "   ... and %d more\n", len(report.Violations)-maxListed)
			break
		}
		fmt.Fprintf(w, "   %s\n", v)
	}
}

func lengthStats(vines []level.Vine) (shortest, longest, total int) {
	shortest = len(vines[0].OrderedPath)
	for _, v := range vines {
		n := len(v.OrderedPath)
		total += n
		if n < shortest {
			shortest = n
		}
		if n > longest {
			longest = n
		}
	}
	return shortest, longest, total
}

func directionSplit(vines []level.Vine) string {
	counts := make(map[level.Direction]int)
	for _, v := range vines {
		counts[v.HeadDirection]++
	}
	var parts []string
	for _, d := range level.Directions {
		if counts[d] > 0 {
			parts = append(parts, fmt.Sprintf("%s %d", d, counts[d]))
		}
	}
	if other := len(vines) - sumCounts(counts); other > 0 {
		parts = append(parts, fmt.Sprintf("other %d", other))
	}
	return strings.Join(parts, ", ")
}

func sumCounts(counts map[level.Direction]int) int {
	total := 0
	for d, n := range counts {
		if d.Valid() {
			total += n
		}
	}
	return total
}

func colorSplit(dist map[string]float64) string {
	names := make([]string, 0, len(dist))
	for name := range dist {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, len(names))
	for i, name := range names {
		parts[i] = fmt.Sprintf("%s %.1f%%", name, dist[name]*100)
	}
	return strings.Join(parts, ", ")
}

// deepestVines returns the vines sitting on top of the longest chain
func deepestVines(depths map[string]int) []string {
	best := 0
	var ids []string
	for id, d := range depths {
		switch {
		case d > best:
			best = d
			ids = []string{id}
		case d == best && d > 0:
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

func listed(ids []string) string {
	if len(ids) == 0 {
		return "none"
	}
	if len(ids) > maxListed {
		return fmt.Sprintf("%s ... and %d more", strings.Join(ids[:maxListed], ", "), len(ids)-maxListed)
	}
	return strings.Join(ids, ", ")
}

func orNone(s string) string {
	if s == "" {
		return "(none)"
	}
	return s
}
