package cli

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/fidde/logcycle/internal/config"
	"github.com/fidde/logcycle/internal/keyset"
	"github.com/fidde/logcycle/internal/segment"
	"github.com/fidde/logcycle/pkg/models"
)

// ErrOutputIsInput is returned when the output path names the input file.
var ErrOutputIsInput = errors.New("output path is the input file")

// NewFilterCommand builds the logfilter command. Accepted segments go to
// the output path, or stdout when it is omitted; diagnostics go to stderr.
func NewFilterCommand(stdout, stderr io.Writer) *cobra.Command {
	cmd := newCommand(
		"logfilter <input-path> [output-path]",
		"Drop partial cycles from a tab-separated key/value log",
		argsBetween(1, 2),
		stdout, stderr,
	)
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := setup(stderr)
		if err != nil {
			return err
		}

		report := models.NewRunReport(models.ToolFilter, args[0])
		runErr := runFilter(cfg, logger, report, args, stdout)
		if runErr != nil {
			logger.Error("logfilter failed", "input", args[0], "error", runErr)
		}
		report.Finish(runErr)

		logger.Info("logfilter finished",
			"run_id", report.ID,
			"lines", report.Lines,
			"keys", len(report.KeyUniverse),
			"segments", report.Segments,
			"accepted", report.AcceptedSegments,
			"rejected", len(report.Rejected),
			"duration", report.Duration(),
		)

		return errors.Join(runErr, persist(cmd.Context(), cfg, logger, report, nil))
	}
	return cmd
}

func runFilter(cfg config.Config, logger *slog.Logger, report *models.RunReport, args []string, stdout io.Writer) (err error) {
	input := args[0]

	if len(args) == 2 {
		if err := checkDistinct(input, args[1]); err != nil {
			return err
		}
	}

	ref, err := keyset.ScanFile(input, cfg.EarlyStop)
	if err != nil {
		return err
	}
	report.KeyUniverse = ref.Keys()
	logger.Debug("key universe scanned", "keys", ref.Len(), "early_stop", cfg.EarlyStop)

	out := stdout
	if len(args) == 2 {
		f, err := os.Create(args[1])
		if err != nil {
			return fmt.Errorf("creating output: %w", err)
		}
		defer func() {
			if cerr := f.Close(); cerr != nil && err == nil {
				err = fmt.Errorf("closing output: %w", cerr)
			}
		}()
		out = f
	}

	writer := segment.NewWriter(out)
	profiler := models.NewProfiler(cfg.Profile.Precision, cfg.Profile.MaxSamples)
	sink := segment.ProcessorFunc(func(seg segment.Segment, ref *keyset.Set) error {
		for _, line := range seg.Lines {
			profiler.Observe(line.Key(), line.Value())
		}
		return writer.ProcessSegment(seg, ref)
	})
	detector := segment.NewPartialDetector(sink, logger)

	stats, splitErr := segment.SplitFile(input, ref, detector)
	// Accepted segments already handed to the writer are kept even when
	// the split stops early.
	flushErr := writer.Flush()

	report.Lines = stats.Lines
	report.Segments = stats.Segments
	report.AcceptedSegments = detector.Accepted()
	report.AcceptedLines = writer.Lines()
	for _, r := range detector.Rejected() {
		report.Rejected = append(report.Rejected, models.RejectedSegment{
			Segment: r.Segment,
			Got:     r.Got,
			Want:    r.Want,
		})
	}
	report.Keys = profiler.Profiles()

	if splitErr != nil {
		return splitErr
	}
	if flushErr != nil {
		return fmt.Errorf("writing output: %w", flushErr)
	}
	return nil
}

// checkDistinct fails when output resolves to the same file as input.
// Creating the output truncates it, so the input would be lost.
func checkDistinct(input, output string) error {
	out, err := os.Stat(output)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("checking output: %w", err)
	}
	in, err := os.Stat(input)
	if err != nil {
		return fmt.Errorf("opening input: %w", err)
	}
	if os.SameFile(in, out) {
		return fmt.Errorf("%w: %s", ErrOutputIsInput, output)
	}
	return nil
}
