// Package service provides the business logic layer for level certification.
//
// The service package implements:
//   - Validation of a single in-memory document
//   - Validation of one stored level with optional write-back
//   - Batch validation of every level file with a bounded worker pool
//   - Level and tier catalogs for the transports
//
// Core Interfaces:
//
// ValidationService is the main service interface used by the CLI, the REST
// API and the MCP tools. LevelStore is the file access it depends on,
// implemented by store.Store, and engine.Checker does the validation itself.
//
// Usage:
//
//	levels, err := store.New("assets/levels")
//	if err != nil {
//		log.Fatal(err)
//	}
//	svc := service.NewValidationService(levels, engine.NewValidator(rules.Default()))
//
//	summary, err := svc.ValidateAll(ctx, service.BatchOptions{Workers: 4})
//	os.Exit(summary.ExitCode())
//
// Batches:
//
// Every file is an independent load, validate, save unit. Files run in
// parallel up to BatchOptions.Workers; results are returned sorted by name
// whatever order they finished in. A file that is not valid JSON is reported
// as an invalid file and never stops the batch. Read and write failures are
// combined into the returned error while the summary still lists every file.
// Cancelling the context stops scheduling new files; files already started
// are finished.
package service
