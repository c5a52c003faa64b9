// Package ui renders validation results in the terminal.
//
// Reports are styled with lipgloss; styles degrade to plain text when the
// output is not a terminal, so the same functions serve logs and CI. Progress
// shows a bubbletea spinner with live counters while a batch runs:
//
//	progress := ui.StartProgress(os.Stderr, len(names))
//	summary, err := svc.ValidateAll(ctx, service.BatchOptions{Observer: progress.Observe})
//	progress.Stop()
//	ui.WriteBatchReport(os.Stdout, summary, ui.ReportOptions{})
package ui
