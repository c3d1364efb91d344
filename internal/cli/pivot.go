package cli

import (
	"errors"
	"io"

	"github.com/spf13/cobra"

	"github.com/fidde/logcycle/internal/config"
	"github.com/fidde/logcycle/internal/pivot"
	"github.com/fidde/logcycle/internal/storage"
	"github.com/fidde/logcycle/pkg/models"
)

// NewPivotCommand builds the log2tsv command, which prints the log as a
// table with one column per key.
func NewPivotCommand(stdout, stderr io.Writer) *cobra.Command {
	cmd := newCommand(
		"log2tsv <input-path>",
		"Pivot a tab-separated key/value log into a table",
		argsBetween(1, 1),
		stdout, stderr,
	)
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := setup(stderr)
		if err != nil {
			return err
		}

		report := models.NewRunReport(models.ToolPivot, args[0])
		table, runErr := runPivot(cfg, report, args[0], stdout)
		if runErr != nil {
			var mismatch *pivot.MismatchError
			if errors.As(runErr, &mismatch) {
				logger.Error("table is ragged",
					"key", mismatch.Key,
					"got", mismatch.Got,
					"want", mismatch.Want,
					"error", runErr,
				)
			} else {
				logger.Error("log2tsv failed", "input", args[0], "error", runErr)
			}
		}
		report.Finish(runErr)

		logger.Info("log2tsv finished",
			"run_id", report.ID,
			"lines", report.Lines,
			"columns", len(report.KeyUniverse),
			"rows", report.PivotRows,
			"duration", report.Duration(),
		)

		return errors.Join(runErr, persist(cmd.Context(), cfg, logger, report, table))
	}
	return cmd
}

// runPivot loads input, dumps it to stdout and returns the table to store.
// The table is nil when nothing was dumped or the backend does not keep it.
func runPivot(cfg config.Config, report *models.RunReport, input string, stdout io.Writer) (*pivotTable, error) {
	store := pivot.NewStore()
	n, err := store.LoadFile(input)
	report.Lines = n
	if err != nil {
		return nil, err
	}

	columns := store.Columns()
	report.KeyUniverse = columns
	profiler := models.NewProfiler(cfg.Profile.Precision, cfg.Profile.MaxSamples)
	for _, key := range columns {
		for _, v := range store.Values(key) {
			profiler.Observe(key, v)
		}
	}
	report.Keys = profiler.Profiles()

	if err := store.Dump(stdout); err != nil {
		return nil, err
	}
	rowCount, err := store.RowCount()
	if err != nil {
		return nil, err
	}
	report.PivotRows = rowCount

	// The in-memory store goes away with the process; only copy the table
	// out for backends that keep it.
	if b := cfg.Report.Backend; b == "" || b == storage.BackendMemory {
		return nil, nil
	}
	rows, err := store.Rows()
	if err != nil {
		return nil, err
	}
	return &pivotTable{columns: columns, rows: rows}, nil
}
