package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/fidde/logcycle/internal/storage/memory"
	"github.com/fidde/logcycle/internal/storage/sqlite"
	"github.com/fidde/logcycle/pkg/models"
)

func TestNewStorage(t *testing.T) {
	ctx := context.Background()

	t.Run("default is memory", func(t *testing.T) {
		store, err := NewStorage(ctx, DefaultConfig(), nil)
		if err != nil {
			t.Fatalf("NewStorage() error = %v", err)
		}
		defer store.Close()
		if _, ok := store.(*memory.Store); !ok {
			t.Errorf("NewStorage() = %T, want *memory.Store", store)
		}
	})

	t.Run("sqlite", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Backend = BackendSQLite
		cfg.SQLitePath = filepath.Join(t.TempDir(), "runs.db")

		store, err := NewStorage(ctx, cfg, nil)
		if err != nil {
			t.Fatalf("NewStorage() error = %v", err)
		}
		defer store.Close()
		if _, ok := store.(*sqlite.Store); !ok {
			t.Errorf("NewStorage() = %T, want *sqlite.Store", store)
		}
	})

	t.Run("unknown backend", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Backend = "postgres"
		if _, err := NewStorage(ctx, cfg, nil); err == nil {
			t.Fatal("expected error for unknown backend")
		}
	})
}

func TestStorageReadPath(t *testing.T) {
	ctx := context.Background()

	sqliteCfg := DefaultConfig()
	sqliteCfg.Backend = BackendSQLite
	sqliteCfg.SQLitePath = filepath.Join(t.TempDir(), "runs.db")

	for name, cfg := range map[string]Config{
		"memory": DefaultConfig(),
		"sqlite": sqliteCfg,
	} {
		t.Run(name, func(t *testing.T) {
			store, err := NewStorage(ctx, cfg, nil)
			if err != nil {
				t.Fatalf("NewStorage() error = %v", err)
			}
			defer store.Close()

			report := models.NewRunReport(models.ToolPivot, "in.log")
			report.KeyUniverse = []string{"a", "b"}
			report.PivotRows = 1
			report.Finish(nil)

			if err := store.StoreRun(ctx, report); err != nil {
				t.Fatalf("StoreRun() error = %v", err)
			}
			if err := store.StorePivot(ctx, report.ID, []string{"a", "b"}, [][]string{{"1", "2"}}); err != nil {
				t.Fatalf("StorePivot() error = %v", err)
			}

			got, err := store.GetRun(ctx, report.ID)
			if err != nil {
				t.Fatalf("GetRun() error = %v", err)
			}
			if got.Tool != models.ToolPivot || got.PivotRows != 1 {
				t.Errorf("GetRun() = %+v", got)
			}

			runs, err := store.ListRuns(ctx, models.ToolPivot)
			if err != nil || len(runs) != 1 {
				t.Fatalf("ListRuns(pivot) = %d runs, %v", len(runs), err)
			}
			if runs, _ := store.ListRuns(ctx, models.ToolFilter); len(runs) != 0 {
				t.Errorf("ListRuns(filter) = %d runs, want 0", len(runs))
			}

			columns, rows, err := store.GetPivot(ctx, report.ID)
			if err != nil {
				t.Fatalf("GetPivot() error = %v", err)
			}
			if len(columns) != 2 || len(rows) != 1 || rows[0][1] != "2" {
				t.Errorf("GetPivot() = %v, %v", columns, rows)
			}

			if _, _, err := store.GetPivot(ctx, "missing"); !errors.Is(err, models.ErrNotFound) {
				t.Errorf("GetPivot(missing) error = %v, want ErrNotFound", err)
			}
		})
	}
}
