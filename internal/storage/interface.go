// Package storage defines where run reports and pivot tables are kept.
package storage

import (
	"context"

	"github.com/fidde/logcycle/pkg/models"
)

// Storage persists the outcome of logcycle runs.
// The tools only write; the read methods are for consumers of stored
// reports. Implementations must be safe for concurrent use.
type Storage interface {
	// Run reports
	StoreRun(ctx context.Context, report *models.RunReport) error
	GetRun(ctx context.Context, id string) (*models.RunReport, error)
	ListRuns(ctx context.Context, tool string) ([]*models.RunReport, error)

	// Pivot tables produced by log2tsv
	StorePivot(ctx context.Context, runID string, columns []string, rows [][]string) error
	GetPivot(ctx context.Context, runID string) (columns []string, rows [][]string, err error)

	// Close the storage (for cleanup, e.g., DB connections)
	Close() error
}
