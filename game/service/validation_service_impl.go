package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/wricardo/vinecheck/game/engine"
	"github.com/wricardo/vinecheck/game/level"
	"github.com/wricardo/vinecheck/game/rules"
	"github.com/wricardo/vinecheck/game/store"
)

var (
	ErrNilDocument    = errors.New("document cannot be nil")
	ErrInvalidWorkers = errors.New("invalid worker count")
)

// validationServiceImpl implements the ValidationService interface
type validationServiceImpl struct {
	store   LevelStore
	checker engine.Checker
}

// NewValidationService creates a new validation service instance
func NewValidationService(levels LevelStore, checker engine.Checker) ValidationService {
	return &validationServiceImpl{
		store:   levels,
		checker: checker,
	}
}

// ValidateDocument validates a document supplied by the caller; nothing is stored
func (s *validationServiceImpl) ValidateDocument(ctx context.Context, doc *level.Document) (*engine.Report, error) {
	if doc == nil {
		return nil, ErrNilDocument
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	started := time.Now()
	report := s.checker.Validate(doc)
	observeValidation(report.Valid(), started)
	return report, nil
}

// ValidateLevel validates a stored level and optionally writes the metrics back
func (s *validationServiceImpl) ValidateLevel(ctx context.Context, name string, persist bool) (*FileReport, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	doc, err := s.store.Load(name)
	if err != nil {
		return nil, err
	}

	report := s.check(name, doc)
	report.Document = doc

	if persist {
		if err := s.store.Save(name, doc); err != nil {
			return nil, fmt.Errorf("failed to save level %s: %w", name, err)
		}
		report.Persisted = true
	}

	return report, nil
}

// ValidateAll validates every discovered level with a bounded worker pool.
// Each file is loaded, validated and written back as one unit; a file that
// cannot be parsed becomes an invalid report and the batch goes on. The
// summary is always returned; the error combines per-file I/O failures and
// cancellation.
func (s *validationServiceImpl) ValidateAll(ctx context.Context, opts BatchOptions) (*BatchSummary, error) {
	names, err := s.store.Discover()
	if err != nil {
		return nil, err
	}

	summary := &BatchSummary{
		ID:        opts.ID,
		StartedAt: time.Now(),
		Files:     []*FileReport{},
	}
	if summary.ID == "" {
		summary.ID = uuid.NewString()
	}

	workers := opts.Workers
	if workers < 1 {
		workers = 1
	}
	persist := !opts.DryRun

	if persist && opts.BackupDir != "" && len(names) > 0 {
		dir, err := s.store.Backup(names, opts.BackupDir)
		if err != nil {
			return nil, fmt.Errorf("backup failed: %w", err)
		}
		summary.BackupDir = dir
	}

	log.Printf("Batch %s: validating %d level files in %s (workers: %d, dry-run: %t)",
		summary.ID, len(names), s.store.Dir(), workers, opts.DryRun)

	reports := make([]*FileReport, len(names))
	var (
		errs      error
		errsMu    sync.Mutex
		observeMu sync.Mutex
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, name := range names {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			report, err := s.processFile(name, persist)
			reports[i] = report
			if err != nil {
				errsMu.Lock()
				errs = multierr.Append(errs, err)
				errsMu.Unlock()
			}
			if opts.Observer != nil {
				observeMu.Lock()
				opts.Observer(report)
				observeMu.Unlock()
			}
			return nil
		})
	}
	g.Wait()

	for _, report := range reports {
		if report == nil {
			continue
		}
		summary.Files = append(summary.Files, report)
		summary.FilesChecked++
		if report.Valid {
			summary.FilesValid++
		}
		summary.TotalViolations += len(report.Violations)
		summary.TotalWarnings += len(report.Warnings)
	}

	if err := ctx.Err(); err != nil {
		summary.Cancelled = true
		errs = multierr.Append(errs, err)
	}
	for _, err := range multierr.Errors(errs) {
		summary.Errors = append(summary.Errors, err.Error())
	}
	summary.FinishedAt = time.Now()
	observeBatch(summary, errs)

	log.Printf("Batch %s: %d/%d files valid (violations: %d, warnings: %d) in %s",
		summary.ID, summary.FilesValid, summary.FilesChecked, summary.TotalViolations,
		summary.TotalWarnings, summary.FinishedAt.Sub(summary.StartedAt).Round(time.Millisecond))

	return summary, errs
}

// processFile is the read, validate, write unit of a batch. Parse failures
// are reported on the file and are not errors.
func (s *validationServiceImpl) processFile(name string, persist bool) (*FileReport, error) {
	doc, err := s.store.Load(name)
	if err != nil {
		report := LoadFailureReport(name, err)
		if errors.Is(err, store.ErrUnparseable) {
			return report, nil
		}
		return report, fmt.Errorf("%s: %w", name, err)
	}

	report := s.check(name, doc)
	if !persist {
		return report, nil
	}

	if err := s.store.Save(name, doc); err != nil {
		report.Error = err.Error()
		return report, fmt.Errorf("%s: %w", name, err)
	}
	report.Persisted = true
	return report, nil
}

// LoadFailureReport describes a level file that could not be loaded as an
// invalid report. Unparseable files get an "Invalid JSON" violation.
func LoadFailureReport(name string, err error) *FileReport {
	report := &FileReport{
		Name:       name,
		Valid:      false,
		Violations: []string{fmt.Sprintf("Unreadable level file: %v", err)},
		Warnings:   []string{},
		Error:      err.Error(),
	}
	if errors.Is(err, store.ErrUnparseable) {
		levelsValidated.WithLabelValues(resultUnparseable).Inc()
		report.Violations = []string{fmt.Sprintf("Invalid JSON: %v", err)}
	}
	return report
}

// check runs the engine and converts its report
func (s *validationServiceImpl) check(name string, doc *level.Document) *FileReport {
	started := time.Now()
	r := s.checker.Validate(doc)
	observeValidation(r.Valid(), started)
	metrics := r.Metrics
	return &FileReport{
		Name:             name,
		Valid:            r.Valid(),
		Violations:       r.Violations,
		Warnings:         r.Warnings,
		Metrics:          &metrics,
		ClearableAtStart: r.ClearableAtStart,
	}
}

// ListLevels returns a short description of every discovered level
func (s *validationServiceImpl) ListLevels(ctx context.Context) ([]*LevelInfo, error) {
	names, err := s.store.Discover()
	if err != nil {
		return nil, err
	}

	levels := make([]*LevelInfo, 0, len(names))
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		info := &LevelInfo{Name: name}
		doc, err := s.store.Load(name)
		if err != nil {
			// Keep broken files visible
			info.Error = err.Error()
			levels = append(levels, info)
			continue
		}

		info.ID = doc.ID
		info.Title = doc.Name
		info.Difficulty = doc.Difficulty
		if doc.Has("grid_size") {
			info.GridSize = doc.GridSize.String()
		}
		info.VineCount = len(doc.Vines)
		levels = append(levels, info)
	}

	return levels, nil
}

// ListTiers describes the rule set the service validates against
func (s *validationServiceImpl) ListTiers(ctx context.Context) (*TierTable, error) {
	rs := s.checker.Rules()
	table := &TierTable{
		Tiers:                rs.Tiers(),
		Palette:              rs.Palette(),
		Directions:           make(map[string]rules.Range),
		MaxColorShare:        rs.MaxColorShare,
		MinDirectionalSample: rs.MinDirectionalSample,
		MaskedCoverageFloor:  rs.MaskedCoverageFloor,
	}
	for _, d := range level.Directions {
		if band, ok := rs.DirectionBand(d); ok {
			table.Directions[string(d)] = band
		}
	}
	return table, nil
}

// ParseWorkers converts a worker setting into a count: a positive integer,
// "half" for half the CPUs or "full" for all of them
func ParseWorkers(value string) (int, error) {
	cpus := runtime.NumCPU()
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "half":
		if cpus/2 < 1 {
			return 1, nil
		}
		return cpus / 2, nil
	case "full":
		return cpus, nil
	}

	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil || n < 1 {
		return 0, fmt.Errorf("%w: %q (use a positive number, half or full)", ErrInvalidWorkers, value)
	}
	return n, nil
}
