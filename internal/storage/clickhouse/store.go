package clickhouse

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/fidde/logcycle/pkg/models"
)

// Store implements the storage.Storage interface using ClickHouse
type Store struct {
	conn      driver.Conn
	logger    *slog.Logger
	batchSize int
}

// NewStore connects to ClickHouse and prepares the schema.
func NewStore(ctx context.Context, config *ConnectionConfig, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if config == nil {
		config = DefaultConfig()
	}

	conn, err := Connect(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("connecting to ClickHouse: %w", err)
	}

	if err := InitializeSchema(ctx, conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("initializing schema: %w", err)
	}

	return &Store{
		conn:      conn,
		logger:    logger,
		batchSize: config.BatchSize,
	}, nil
}

// StoreRun inserts a run report and its key profiles.
func (s *Store) StoreRun(ctx context.Context, report *models.RunReport) error {
	if report == nil {
		return fmt.Errorf("report cannot be nil")
	}

	segs := make([]uint64, len(report.Rejected))
	got := make([]uint64, len(report.Rejected))
	want := make([]uint64, len(report.Rejected))
	for i, rej := range report.Rejected {
		segs[i] = uint64(rej.Segment)
		got[i] = uint64(rej.Got)
		want[i] = uint64(rej.Want)
	}

	universe := report.KeyUniverse
	if universe == nil {
		universe = []string{}
	}

	err := retryInsert(ctx, func(ctx context.Context) error {
		batch, err := s.conn.PrepareBatch(ctx, "INSERT INTO runs")
		if err != nil {
			return err
		}
		err = batch.Append(
			report.ID,
			report.Tool,
			report.InputPath,
			report.StartedAt,
			report.EndedAt,
			uint64(report.Lines),
			universe,
			uint64(report.Segments),
			uint64(report.AcceptedSegments),
			uint64(report.AcceptedLines),
			uint64(report.PivotRows),
			report.Error,
			segs,
			got,
			want,
		)
		if err != nil {
			return err
		}
		return batch.Send()
	})
	if err != nil {
		return fmt.Errorf("inserting run %s: %w", report.ID, err)
	}

	if len(report.Keys) == 0 {
		return nil
	}
	err = retryInsert(ctx, func(ctx context.Context) error {
		batch, err := s.conn.PrepareBatch(ctx, "INSERT INTO run_keys")
		if err != nil {
			return err
		}
		for i, kp := range report.Keys {
			var sketch []byte
			if sk := kp.Sketch(); sk != nil {
				if sketch, err = sk.MarshalBinary(); err != nil {
					return err
				}
			}
			samples := kp.SampleValues
			if samples == nil {
				samples = []string{}
			}
			err = batch.Append(
				report.ID,
				uint32(i),
				kp.Key,
				uint64(kp.Occurrences),
				kp.EstimatedCardinality,
				samples,
				string(sketch),
			)
			if err != nil {
				return err
			}
		}
		return batch.Send()
	})
	if err != nil {
		return fmt.Errorf("inserting keys for run %s: %w", report.ID, err)
	}
	return nil
}

const runColumns = `
	id, tool, input_path, started_at, ended_at, lines, key_universe,
	segments, accepted_segments, accepted_lines, pivot_rows, error,
	rejected_segments, rejected_got, rejected_want`

// GetRun retrieves a run report by ID.
func (s *Store) GetRun(ctx context.Context, id string) (*models.RunReport, error) {
	rows, err := s.conn.Query(ctx, "SELECT"+runColumns+" FROM runs FINAL WHERE id = ? LIMIT 1", id)
	if err != nil {
		return nil, fmt.Errorf("querying run: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("run %s: %w", id, models.ErrNotFound)
	}
	report, err := scanRun(rows)
	if err != nil {
		return nil, err
	}

	if err := s.loadKeys(ctx, report); err != nil {
		return nil, err
	}
	return report, nil
}

// ListRuns returns reports ordered by start time. An empty tool lists all.
func (s *Store) ListRuns(ctx context.Context, tool string) ([]*models.RunReport, error) {
	query := "SELECT" + runColumns + " FROM runs FINAL"
	args := []interface{}{}
	if tool != "" {
		query += " WHERE tool = ?"
		args = append(args, tool)
	}
	query += " ORDER BY started_at"

	rows, err := s.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	defer rows.Close()

	var out []*models.RunReport
	for rows.Next() {
		report, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, report)
	}
	return out, rows.Err()
}

// StorePivot inserts the pivot table of a run in batches.
func (s *Store) StorePivot(ctx context.Context, runID string, columns []string, rows [][]string) error {
	buf := NewPivotBuffer(s.conn, s.batchSize, s.logger)
	for i, row := range rows {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := buf.Add(ctx, PivotRow{RunID: runID, RowIndex: uint64(i), Columns: columns, Cells: row}); err != nil {
			return fmt.Errorf("storing pivot rows: %w", err)
		}
	}
	if err := buf.Flush(ctx); err != nil {
		return fmt.Errorf("storing pivot rows: %w", err)
	}
	return nil
}

// GetPivot retrieves the pivot table of a run.
func (s *Store) GetPivot(ctx context.Context, runID string) ([]string, [][]string, error) {
	rows, err := s.conn.Query(ctx,
		"SELECT columns, cells FROM pivot_rows FINAL WHERE run_id = ? ORDER BY row_index", runID)
	if err != nil {
		return nil, nil, fmt.Errorf("querying pivot rows: %w", err)
	}
	defer rows.Close()

	var (
		columns []string
		table   [][]string
	)
	for rows.Next() {
		var cols, cells []string
		if err := rows.Scan(&cols, &cells); err != nil {
			return nil, nil, err
		}
		columns = cols
		table = append(table, cells)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}
	if columns == nil {
		return nil, nil, fmt.Errorf("pivot %s: %w", runID, models.ErrNotFound)
	}
	return columns, table, nil
}

// Close closes the connection.
func (s *Store) Close() error {
	return s.conn.Close()
}

func (s *Store) loadKeys(ctx context.Context, report *models.RunReport) error {
	rows, err := s.conn.Query(ctx, `
		SELECT key, occurrences, estimated_cardinality, sample_values, sketch
		FROM run_keys FINAL WHERE run_id = ? ORDER BY position
	`, report.ID)
	if err != nil {
		return fmt.Errorf("querying keys: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			key         string
			occurrences uint64
			cardinality uint64
			samples     []string
			sketch      string
		)
		if err := rows.Scan(&key, &occurrences, &cardinality, &samples, &sketch); err != nil {
			return err
		}

		if sketch != "" {
			kp, err := models.RestoreKeyProfile(key, int64(occurrences), samples, []byte(sketch))
			if err != nil {
				return err
			}
			report.Keys = append(report.Keys, kp)
			continue
		}
		report.Keys = append(report.Keys, &models.KeyProfile{
			Key:                  key,
			Occurrences:          int64(occurrences),
			EstimatedCardinality: cardinality,
			SampleValues:         samples,
		})
	}
	return rows.Err()
}

func scanRun(rows driver.Rows) (*models.RunReport, error) {
	var (
		r                                                   models.RunReport
		startedAt, endedAt                                  time.Time
		lines, segments, acceptedSegs, acceptedLines, pivot uint64
		rejSegs, rejGot, rejWant                            []uint64
	)
	err := rows.Scan(
		&r.ID, &r.Tool, &r.InputPath, &startedAt, &endedAt, &lines, &r.KeyUniverse,
		&segments, &acceptedSegs, &acceptedLines, &pivot, &r.Error,
		&rejSegs, &rejGot, &rejWant,
	)
	if err != nil {
		return nil, fmt.Errorf("scanning run: %w", err)
	}

	r.StartedAt = startedAt.UTC()
	r.EndedAt = endedAt.UTC()
	r.Lines = int(lines)
	r.Segments = int(segments)
	r.AcceptedSegments = int(acceptedSegs)
	r.AcceptedLines = int(acceptedLines)
	r.PivotRows = int(pivot)
	for i := range rejSegs {
		r.Rejected = append(r.Rejected, models.RejectedSegment{
			Segment: int(rejSegs[i]),
			Got:     int(rejGot[i]),
			Want:    int(rejWant[i]),
		})
	}
	return &r, nil
}
