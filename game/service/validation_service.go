package service

import (
	"context"

	"github.com/wricardo/vinecheck/game/engine"
	"github.com/wricardo/vinecheck/game/level"
)

// ValidationService defines all level validation operations
type ValidationService interface {
	// Validation
	ValidateDocument(ctx context.Context, doc *level.Document) (*engine.Report, error)
	ValidateLevel(ctx context.Context, name string, persist bool) (*FileReport, error)
	ValidateAll(ctx context.Context, opts BatchOptions) (*BatchSummary, error)

	// Catalog
	ListLevels(ctx context.Context) ([]*LevelInfo, error)
	ListTiers(ctx context.Context) (*TierTable, error)
}

// LevelStore handles level file access
type LevelStore interface {
	Dir() string
	Discover() ([]string, error)
	Load(name string) (*level.Document, error)
	Save(name string, doc *level.Document) error
	Backup(names []string, backupRoot string) (string, error)
}
