package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/fidde/logcycle/pkg/models"
)

func TestStoreAndGetRun(t *testing.T) {
	store := New()
	ctx := context.Background()

	report := models.NewRunReport(models.ToolFilter, "in.log")
	report.Rejected = []models.RejectedSegment{{Segment: 2, Got: 1, Want: 3}}
	report.Finish(nil)

	if err := store.StoreRun(ctx, report); err != nil {
		t.Fatalf("StoreRun failed: %v", err)
	}

	got, err := store.GetRun(ctx, report.ID)
	if err != nil {
		t.Fatalf("GetRun failed: %v", err)
	}
	if got.Tool != models.ToolFilter || len(got.Rejected) != 1 {
		t.Errorf("GetRun() = %+v, want stored report", got)
	}

	if _, err := store.GetRun(ctx, "missing"); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("GetRun(missing) error = %v, want ErrNotFound", err)
	}
}

func TestStoreRunValidation(t *testing.T) {
	store := New()
	ctx := context.Background()

	if err := store.StoreRun(ctx, nil); err == nil {
		t.Error("expected error for nil report")
	}
	if err := store.StoreRun(ctx, &models.RunReport{}); err == nil {
		t.Error("expected error for empty ID")
	}
}

func TestListRunsFiltersByTool(t *testing.T) {
	store := New()
	ctx := context.Background()

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, tool := range []string{models.ToolPivot, models.ToolFilter, models.ToolFilter} {
		r := models.NewRunReport(tool, "in.log")
		r.StartedAt = base.Add(time.Duration(3-i) * time.Minute)
		if err := store.StoreRun(ctx, r); err != nil {
			t.Fatalf("StoreRun failed: %v", err)
		}
	}

	all, _ := store.ListRuns(ctx, "")
	if len(all) != 3 {
		t.Fatalf("ListRuns(all) = %d, want 3", len(all))
	}
	for i := 1; i < len(all); i++ {
		if all[i].StartedAt.Before(all[i-1].StartedAt) {
			t.Errorf("runs not ordered by start time")
		}
	}

	filters, _ := store.ListRuns(ctx, models.ToolFilter)
	if len(filters) != 2 {
		t.Errorf("ListRuns(logfilter) = %d, want 2", len(filters))
	}
}

func TestStoreAndGetPivot(t *testing.T) {
	store := New()
	ctx := context.Background()

	cols := []string{"a", "b"}
	rows := [][]string{{"1", "2"}, {"3", "4"}}
	if err := store.StorePivot(ctx, "run-1", cols, rows); err != nil {
		t.Fatalf("StorePivot failed: %v", err)
	}

	gotCols, gotRows, err := store.GetPivot(ctx, "run-1")
	if err != nil {
		t.Fatalf("GetPivot failed: %v", err)
	}
	if len(gotCols) != 2 || gotCols[0] != "a" || len(gotRows) != 2 || gotRows[1][1] != "4" {
		t.Errorf("GetPivot() = %v %v", gotCols, gotRows)
	}

	if _, _, err := store.GetPivot(ctx, "nope"); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("GetPivot(nope) error = %v, want ErrNotFound", err)
	}
}
