// Package memory provides an in-memory storage implementation for run reports.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/fidde/logcycle/pkg/models"
)

type pivotTable struct {
	columns []string
	rows    [][]string
}

// Store is an in-memory storage for run reports and pivot tables.
type Store struct {
	mu     sync.RWMutex
	runs   map[string]*models.RunReport
	pivots map[string]pivotTable
}

// New creates a new in-memory store.
func New() *Store {
	return &Store{
		runs:   make(map[string]*models.RunReport),
		pivots: make(map[string]pivotTable),
	}
}

// StoreRun stores or replaces a run report.
func (s *Store) StoreRun(ctx context.Context, report *models.RunReport) error {
	if report == nil {
		return errors.New("report cannot be nil")
	}
	if report.ID == "" {
		return errors.New("report ID cannot be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *report
	s.runs[report.ID] = &cp
	return nil
}

// GetRun retrieves a run report by ID.
func (s *Store) GetRun(ctx context.Context, id string) (*models.RunReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	report, ok := s.runs[id]
	if !ok {
		return nil, fmt.Errorf("run %s: %w", id, models.ErrNotFound)
	}
	cp := *report
	return &cp, nil
}

// ListRuns returns reports ordered by start time. An empty tool lists all.
func (s *Store) ListRuns(ctx context.Context, tool string) ([]*models.RunReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.RunReport, 0, len(s.runs))
	for _, r := range s.runs {
		if tool != "" && r.Tool != tool {
			continue
		}
		cp := *r
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].StartedAt.Before(out[j].StartedAt)
	})
	return out, nil
}

// StorePivot stores the pivot table of a run.
func (s *Store) StorePivot(ctx context.Context, runID string, columns []string, rows [][]string) error {
	if runID == "" {
		return errors.New("run ID cannot be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.pivots[runID] = pivotTable{
		columns: append([]string(nil), columns...),
		rows:    append([][]string(nil), rows...),
	}
	return nil
}

// GetPivot retrieves the pivot table of a run.
func (s *Store) GetPivot(ctx context.Context, runID string) ([]string, [][]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.pivots[runID]
	if !ok {
		return nil, nil, fmt.Errorf("pivot %s: %w", runID, models.ErrNotFound)
	}
	return t.columns, t.rows, nil
}

// Close is a no-op for the in-memory store.
func (s *Store) Close() error {
	return nil
}
