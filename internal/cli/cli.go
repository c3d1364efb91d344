// Package cli wires the logfilter and log2tsv pipelines into cobra commands.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/fidde/logcycle/internal/config"
	"github.com/fidde/logcycle/internal/storage"
	"github.com/fidde/logcycle/pkg/models"
)

// Exit statuses returned by Execute.
const (
	ExitOK    = 0
	ExitError = 1
	ExitUsage = 2
)

// ErrUsage marks errors caused by a bad command line.
var ErrUsage = errors.New("usage")

// Execute runs cmd and maps the outcome to a process exit status. Usage
// errors print the command usage to the command's output writer.
func Execute(ctx context.Context, cmd *cobra.Command) int {
	err := cmd.ExecuteContext(ctx)
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, ErrUsage):
		fmt.Fprintln(cmd.ErrOrStderr(), "Error:", err)
		_ = cmd.Usage()
		return ExitUsage
	default:
		return ExitError
	}
}

// newCommand applies the settings both tools share.
func newCommand(use, short string, args cobra.PositionalArgs, stdout, stderr io.Writer) *cobra.Command {
	cmd := &cobra.Command{
		Use:           use,
		Short:         short,
		Args:          args,
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return fmt.Errorf("%w: %v", ErrUsage, err)
	})
	return cmd
}

// argsBetween accepts between lo and hi positional arguments.
func argsBetween(lo, hi int) cobra.PositionalArgs {
	return func(_ *cobra.Command, args []string) error {
		if len(args) < lo || len(args) > hi {
			if lo == hi {
				return fmt.Errorf("%w: accepts %d arg(s), received %d", ErrUsage, lo, len(args))
			}
			return fmt.Errorf("%w: accepts between %d and %d arg(s), received %d", ErrUsage, lo, hi, len(args))
		}
		return nil
	}
}

// setup resolves configuration and builds the stderr logger. A config
// error is logged at the default level before it is returned.
func setup(stderr io.Writer) (config.Config, *slog.Logger, error) {
	cfg, err := config.Resolve()
	if err != nil {
		logger := newLogger(stderr, slog.LevelInfo)
		logger.Error("loading configuration", "error", err)
		return cfg, logger, fmt.Errorf("loading configuration: %w", err)
	}
	level, _ := config.ParseLevel(cfg.LogLevel)
	return cfg, newLogger(stderr, level), nil
}

func newLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// pivotTable is the optional table stored alongside a log2tsv report.
type pivotTable struct {
	columns []string
	rows    [][]string
}

// persist saves report (and table, if any) to the configured report store.
func persist(ctx context.Context, cfg config.Config, logger *slog.Logger, report *models.RunReport, table *pivotTable) (err error) {
	store, err := storage.NewStorage(ctx, cfg.Storage(), logger)
	if err != nil {
		logger.Error("opening report store", "backend", cfg.Report.Backend, "error", err)
		return fmt.Errorf("opening report store: %w", err)
	}
	defer func() {
		if cerr := store.Close(); cerr != nil {
			logger.Error("closing report store", "error", cerr)
			if err == nil {
				err = fmt.Errorf("closing report store: %w", cerr)
			}
		}
	}()

	if err := store.StoreRun(ctx, report); err != nil {
		logger.Error("storing run report", "run_id", report.ID, "error", err)
		return fmt.Errorf("storing run report: %w", err)
	}
	if table != nil {
		if err := store.StorePivot(ctx, report.ID, table.columns, table.rows); err != nil {
			logger.Error("storing pivot table", "run_id", report.ID, "error", err)
			return fmt.Errorf("storing pivot table: %w", err)
		}
	}
	logger.Debug("run report stored", "run_id", report.ID, "backend", cfg.Report.Backend)
	return nil
}
