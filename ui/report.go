package ui

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/wricardo/vinecheck/game/service"
)

// Styles holds the lipgloss styles used by the reports
type Styles struct {
	Header  lipgloss.Style
	Valid   lipgloss.Style
	Invalid lipgloss.Style
	Warning lipgloss.Style
	Dim     lipgloss.Style
}

// NewStyles creates styles for w. Colors are dropped automatically when w is
// not a terminal.
func NewStyles(w io.Writer) Styles {
	r := lipgloss.NewRenderer(w)
	return Styles{
		Header:  r.NewStyle().Bold(true),
		Valid:   r.NewStyle().Foreground(lipgloss.Color("#7CB342")).Bold(true),
		Invalid: r.NewStyle().Foreground(lipgloss.Color("#FF6E40")).Bold(true),
		Warning: r.NewStyle().Foreground(lipgloss.Color("#FFC107")),
		Dim:     r.NewStyle().Faint(true),
	}
}

// ReportOptions controls how much of each file report is printed
type ReportOptions struct {
	// Quiet prints only invalid files
	Quiet bool
	// HideWarnings drops warnings from the per-file output
	HideWarnings bool
}

// WriteFileReport prints the outcome of one level file
func WriteFileReport(w io.Writer, r *service.FileReport, opts ReportOptions) {
	if opts.Quiet && r.Valid {
		return
	}
	st := NewStyles(w)

	fmt.Fprintf(w, "\n%s %s\n", strings.Repeat("=", 20), st.Header.Render(r.Name))

	line := st.Invalid.Render("❌ INVALID")
	if r.Valid {
		line = st.Valid.Render("✅ VALID")
	}
	if m := r.Metrics; m != nil {
		var facts []string
		if m.OccupancyPercent != nil {
			facts = append(facts, fmt.Sprintf("occupancy %.1f%%", *m.OccupancyPercent))
		}
		facts = append(facts, fmt.Sprintf("blocking depth %d", m.BlockingDepth))
		if len(r.ClearableAtStart) > 0 {
			facts = append(facts, fmt.Sprintf("clearable at start %d", len(r.ClearableAtStart)))
		}
		line += "  " + st.Dim.Render(strings.Join(facts, ", "))
	}
	if r.Persisted {
		line += "  " + st.Dim.Render("(metrics saved)")
	}
	fmt.Fprintln(w, line)

	for _, v := range r.Violations {
		fmt.Fprintln(w, "  "+st.Invalid.Render("❌")+" "+v)
	}
	if !opts.HideWarnings {
		for _, warn := range r.Warnings {
			fmt.Fprintln(w, "  "+st.Warning.Render("⚠️  "+warn))
		}
	}
	if r.Error != "" && !r.Persisted && len(r.Violations) == 0 {
		fmt.Fprintln(w, "  "+st.Invalid.Render("error: "+r.Error))
	}
}

// WriteSummary prints the closing lines of a batch
func WriteSummary(w io.Writer, s *service.BatchSummary) {
	st := NewStyles(w)

	fmt.Fprintf(w, "\n%s\n", strings.Repeat("=", 40))
	switch {
	case s.FilesChecked == 0 && !s.Cancelled:
		fmt.Fprintln(w, st.Warning.Render("No level files found"))
	case s.AllValid():
		fmt.Fprintln(w, st.Valid.Render(fmt.Sprintf("✅ All %d level files are valid!", s.FilesChecked)))
	default:
		fmt.Fprintln(w, st.Invalid.Render(fmt.Sprintf("❌ %d of %d level files have violations",
			s.FilesChecked-s.FilesValid, s.FilesChecked)))
	}

	fmt.Fprintln(w, st.Dim.Render(fmt.Sprintf("violations: %d, warnings: %d, duration: %s",
		s.TotalViolations, s.TotalWarnings, s.FinishedAt.Sub(s.StartedAt).Round(time.Millisecond))))
	if s.BackupDir != "" {
		fmt.Fprintln(w, st.Dim.Render("backup: "+s.BackupDir))
	}
	if s.Cancelled {
		fmt.Fprintln(w, st.Warning.Render("Batch cancelled before every file was checked"))
	}
	for _, e := range s.Errors {
		fmt.Fprintln(w, st.Invalid.Render("error: "+e))
	}
}

// WriteBatchReport prints every file report followed by the summary
func WriteBatchReport(w io.Writer, s *service.BatchSummary, opts ReportOptions) {
	for _, r := range s.Files {
		WriteFileReport(w, r, opts)
	}
	WriteSummary(w, s)
}

// WriteTierTable prints the rule set as an aligned table
func WriteTierTable(w io.Writer, t *service.TierTable) {
	st := NewStyles(w)

	header := fmt.Sprintf("%-14s %-10s %-10s %-8s %s", "TIER", "VINES", "AVG LEN", "COLORS", "MAX DEPTH")
	fmt.Fprintln(w, st.Header.Render(header))
	for _, tier := range t.Tiers {
		fmt.Fprintf(w, "%-14s %-10s %-10s %-8s %d\n",
			tier.Name, tier.VineCount, tier.AvgLength, tier.ColorCount, tier.MaxBlockingDepth)
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, st.Header.Render("Palette"))
	for _, c := range t.Palette {
		swatch := lipgloss.NewRenderer(w).NewStyle().Foreground(lipgloss.Color(c.Hex)).Render("■")
		fmt.Fprintf(w, "  %s %-14s %s\n", swatch, c.Name, c.Hex)
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, st.Header.Render("Head directions"))
	dirs := make([]string, 0, len(t.Directions))
	for d := range t.Directions {
		dirs = append(dirs, d)
	}
	sort.Strings(dirs)
	for _, d := range dirs {
		band := t.Directions[d]
		fmt.Fprintf(w, "  %-6s %.0f%%-%.0f%%\n", d, band.Min*100, band.Max*100)
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "Max color share: %.0f%%\n", t.MaxColorShare*100)
	fmt.Fprintf(w, "Direction balance checked from %d vines\n", t.MinDirectionalSample)
	fmt.Fprintf(w, "Coverage floor with a mask: %.0f%%\n", t.MaskedCoverageFloor*100)
}
