package service

import (
	"time"

	"github.com/wricardo/vinecheck/game/engine"
	"github.com/wricardo/vinecheck/game/level"
	"github.com/wricardo/vinecheck/game/rules"
)

// FileReport is the validation outcome of one stored level
type FileReport struct {
	Name             string          `json:"name"`
	Valid            bool            `json:"valid"`
	Violations       []string        `json:"violations"`
	Warnings         []string        `json:"warnings"`
	Metrics          *engine.Metrics `json:"metrics,omitempty"`
	ClearableAtStart []string        `json:"clearable_at_start,omitempty"`
	Persisted        bool            `json:"persisted"`
	Error            string          `json:"error,omitempty"` // load or save failure
	Document         *level.Document `json:"document,omitempty"`
}

// BatchOptions configures a run over the whole levels directory
type BatchOptions struct {
	ID        string `json:"id,omitempty"`         // generated when empty
	Workers   int    `json:"workers,omitempty"`    // 1 when not positive
	DryRun    bool   `json:"dry_run,omitempty"`    // skip write-back
	BackupDir string `json:"backup_dir,omitempty"` // backup root, no backup when empty

	// Observer receives every FileReport as soon as it completes. Calls are
	// serialized.
	Observer func(*FileReport) `json:"-"`
}

// BatchSummary aggregates a batch run
type BatchSummary struct {
	ID              string        `json:"id"`
	StartedAt       time.Time     `json:"started_at"`
	FinishedAt      time.Time     `json:"finished_at"`
	Files           []*FileReport `json:"files"`
	FilesChecked    int           `json:"files_checked"`
	FilesValid      int           `json:"files_valid"`
	TotalViolations int           `json:"total_violations"`
	TotalWarnings   int           `json:"total_warnings"`
	BackupDir       string        `json:"backup_dir,omitempty"`
	Cancelled       bool          `json:"cancelled,omitempty"`
	Errors          []string      `json:"errors,omitempty"`
}

// AllValid reports whether every checked file passed
func (b *BatchSummary) AllValid() bool {
	return b.FilesValid == b.FilesChecked && !b.Cancelled
}

// ExitCode returns the process status for the batch: 0 when all files are valid
func (b *BatchSummary) ExitCode() int {
	if b.AllValid() {
		return 0
	}
	return 1
}

// LevelInfo provides a short description of a stored level
type LevelInfo struct {
	Name       string `json:"name"`
	ID         string `json:"id,omitempty"`
	Title      string `json:"title,omitempty"`
	Difficulty string `json:"difficulty,omitempty"`
	GridSize   string `json:"grid_size,omitempty"`
	VineCount  int    `json:"vine_count"`
	Error      string `json:"error,omitempty"`
}

// TierTable describes the active rule set
type TierTable struct {
	Tiers                []rules.TierSpec       `json:"tiers"`
	Palette              []rules.Color          `json:"palette"`
	Directions           map[string]rules.Range `json:"directions"`
	MaxColorShare        float64                `json:"max_color_share"`
	MinDirectionalSample int                    `json:"min_directional_sample"`
	MaskedCoverageFloor  float64                `json:"masked_coverage_floor"`
}
