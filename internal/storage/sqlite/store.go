// Package sqlite provides a SQLite-backed storage implementation.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/fidde/logcycle/pkg/models"
	_ "modernc.org/sqlite"
)

//go:embed migrations/001_initial_schema.up.sql
var migrationSQL string

// Store is a SQLite-backed storage for run reports and pivot tables.
type Store struct {
	db *sql.DB
}

// Config holds SQLite store configuration.
type Config struct {
	DBPath string
	// BusyTimeout is how long a writer waits on a locked database.
	BusyTimeout time.Duration
}

// DefaultConfig returns default SQLite configuration.
func DefaultConfig(dbPath string) Config {
	return Config{
		DBPath:      dbPath,
		BusyTimeout: 5 * time.Second,
	}
}

// New creates a new SQLite store with the given configuration.
func New(cfg Config) (*Store, error) {
	db, err := sql.Open("sqlite", cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA temp_store=MEMORY",
		fmt.Sprintf("PRAGMA busy_timeout=%d", cfg.BusyTimeout.Milliseconds()),
		"PRAGMA foreign_keys=ON",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("setting pragma: %w", err)
		}
	}

	if _, err := db.Exec(migrationSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the store and releases resources.
func (s *Store) Close() error {
	return s.db.Close()
}

// StoreRun stores or replaces a run report with its rejections and key profiles.
func (s *Store) StoreRun(ctx context.Context, report *models.RunReport) error {
	if report == nil {
		return errors.New("report cannot be nil")
	}

	universe, err := encodeJSON(report.KeyUniverse)
	if err != nil {
		return err
	}

	return s.inTx(ctx, func(tx *sql.Tx) error {
		// Children go first so a replaced run does not keep stale rows.
		for _, table := range []string{"run_rejections", "run_keys"} {
			if _, err := tx.ExecContext(ctx, "DELETE FROM "+table+" WHERE run_id = ?", report.ID); err != nil {
				return fmt.Errorf("clearing %s: %w", table, err)
			}
		}

		_, err := tx.ExecContext(ctx, `
			INSERT INTO runs (id, tool, input_path, started_at, ended_at, lines, key_universe,
				segments, accepted_segments, accepted_lines, pivot_rows, error)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				ended_at = excluded.ended_at,
				lines = excluded.lines,
				key_universe = excluded.key_universe,
				segments = excluded.segments,
				accepted_segments = excluded.accepted_segments,
				accepted_lines = excluded.accepted_lines,
				pivot_rows = excluded.pivot_rows,
				error = excluded.error
		`, report.ID, report.Tool, report.InputPath,
			unixNano(report.StartedAt), unixNano(report.EndedAt),
			report.Lines, universe,
			report.Segments, report.AcceptedSegments, report.AcceptedLines,
			report.PivotRows, report.Error)
		if err != nil {
			return fmt.Errorf("upserting run: %w", err)
		}

		for _, rej := range report.Rejected {
			_, err := tx.ExecContext(ctx,
				"INSERT INTO run_rejections (run_id, segment, got, want) VALUES (?, ?, ?, ?)",
				report.ID, rej.Segment, rej.Got, rej.Want)
			if err != nil {
				return fmt.Errorf("inserting rejection %d: %w", rej.Segment, err)
			}
		}

		for i, kp := range report.Keys {
			if err := storeKeyTx(ctx, tx, report.ID, i, kp); err != nil {
				return err
			}
		}
		return nil
	})
}

func storeKeyTx(ctx context.Context, tx *sql.Tx, runID string, position int, kp *models.KeyProfile) error {
	samples, err := encodeJSON(kp.SampleValues)
	if err != nil {
		return err
	}

	var sketch []byte
	if sk := kp.Sketch(); sk != nil {
		if sketch, err = sk.MarshalBinary(); err != nil {
			return fmt.Errorf("encoding sketch for %s: %w", kp.Key, err)
		}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO run_keys (run_id, position, key, occurrences, estimated_cardinality, sample_values, sketch)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, runID, position, kp.Key, kp.Occurrences, int64(kp.EstimatedCardinality), samples, sketch)
	if err != nil {
		return fmt.Errorf("inserting key %s: %w", kp.Key, err)
	}
	return nil
}

// GetRun retrieves a run report by ID.
func (s *Store) GetRun(ctx context.Context, id string) (*models.RunReport, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, tool, input_path, started_at, ended_at, lines, key_universe,
			segments, accepted_segments, accepted_lines, pivot_rows, error
		FROM runs WHERE id = ?
	`, id)

	report, err := scanRun(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("run %s: %w", id, models.ErrNotFound)
		}
		return nil, err
	}

	if err := s.loadRejections(ctx, report); err != nil {
		return nil, err
	}
	if err := s.loadKeys(ctx, report); err != nil {
		return nil, err
	}
	return report, nil
}

// ListRuns returns reports ordered by start time. An empty tool lists all.
// Listed reports carry rejections but not key profiles.
func (s *Store) ListRuns(ctx context.Context, tool string) ([]*models.RunReport, error) {
	query := `
		SELECT id, tool, input_path, started_at, ended_at, lines, key_universe,
			segments, accepted_segments, accepted_lines, pivot_rows, error
		FROM runs`
	args := []interface{}{}
	if tool != "" {
		query += " WHERE tool = ?"
		args = append(args, tool)
	}
	query += " ORDER BY started_at"

	rows, err := s.db.QueryContext(ctx, query, args...)
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
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, r := range out {
		if err := s.loadRejections(ctx, r); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// StorePivot stores the pivot table of a run, replacing any previous one.
func (s *Store) StorePivot(ctx context.Context, runID string, columns []string, rows [][]string) error {
	cols, err := encodeJSON(columns)
	if err != nil {
		return err
	}

	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM pivot_rows WHERE run_id = ?", runID); err != nil {
			return fmt.Errorf("clearing pivot rows: %w", err)
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO pivots (run_id, columns, row_count) VALUES (?, ?, ?)
			ON CONFLICT(run_id) DO UPDATE SET columns = excluded.columns, row_count = excluded.row_count
		`, runID, cols, len(rows))
		if err != nil {
			return fmt.Errorf("upserting pivot: %w", err)
		}

		stmt, err := tx.PrepareContext(ctx, "INSERT INTO pivot_rows (run_id, row_index, cells) VALUES (?, ?, ?)")
		if err != nil {
			return fmt.Errorf("preparing row insert: %w", err)
		}
		defer stmt.Close()

		for i, row := range rows {
			cells, err := encodeJSON(row)
			if err != nil {
				return err
			}
			if _, err := stmt.ExecContext(ctx, runID, i, cells); err != nil {
				return fmt.Errorf("inserting row %d: %w", i, err)
			}
		}
		return nil
	})
}

// GetPivot retrieves the pivot table of a run.
func (s *Store) GetPivot(ctx context.Context, runID string) ([]string, [][]string, error) {
	var cols string
	err := s.db.QueryRowContext(ctx, "SELECT columns FROM pivots WHERE run_id = ?", runID).Scan(&cols)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, fmt.Errorf("pivot %s: %w", runID, models.ErrNotFound)
		}
		return nil, nil, fmt.Errorf("querying pivot: %w", err)
	}

	var columns []string
	if err := decodeJSON(cols, &columns); err != nil {
		return nil, nil, err
	}

	rows, err := s.db.QueryContext(ctx, "SELECT cells FROM pivot_rows WHERE run_id = ? ORDER BY row_index", runID)
	if err != nil {
		return nil, nil, fmt.Errorf("querying pivot rows: %w", err)
	}
	defer rows.Close()

	var table [][]string
	for rows.Next() {
		var cells string
		if err := rows.Scan(&cells); err != nil {
			return nil, nil, err
		}
		var row []string
		if err := decodeJSON(cells, &row); err != nil {
			return nil, nil, err
		}
		table = append(table, row)
	}
	return columns, table, rows.Err()
}

func (s *Store) loadRejections(ctx context.Context, report *models.RunReport) error {
	rows, err := s.db.QueryContext(ctx,
		"SELECT segment, got, want FROM run_rejections WHERE run_id = ? ORDER BY segment", report.ID)
	if err != nil {
		return fmt.Errorf("querying rejections: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var rej models.RejectedSegment
		if err := rows.Scan(&rej.Segment, &rej.Got, &rej.Want); err != nil {
			return err
		}
		report.Rejected = append(report.Rejected, rej)
	}
	return rows.Err()
}

func (s *Store) loadKeys(ctx context.Context, report *models.RunReport) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT key, occurrences, estimated_cardinality, sample_values, sketch
		FROM run_keys WHERE run_id = ? ORDER BY position
	`, report.ID)
	if err != nil {
		return fmt.Errorf("querying keys: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			key         string
			occurrences int64
			cardinality int64
			samplesJSON string
			sketch      []byte
		)
		if err := rows.Scan(&key, &occurrences, &cardinality, &samplesJSON, &sketch); err != nil {
			return err
		}

		var samples []string
		if err := decodeJSON(samplesJSON, &samples); err != nil {
			return err
		}

		var kp *models.KeyProfile
		if len(sketch) > 0 {
			if kp, err = models.RestoreKeyProfile(key, occurrences, samples, sketch); err != nil {
				return err
			}
		} else {
			kp = &models.KeyProfile{
				Key:                  key,
				Occurrences:          occurrences,
				EstimatedCardinality: uint64(cardinality),
				SampleValues:         samples,
			}
		}
		report.Keys = append(report.Keys, kp)
	}
	return rows.Err()
}

// Helper functions

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(row rowScanner) (*models.RunReport, error) {
	var (
		r        models.RunReport
		started  int64
		ended    int64
		universe string
	)
	err := row.Scan(&r.ID, &r.Tool, &r.InputPath, &started, &ended, &r.Lines, &universe,
		&r.Segments, &r.AcceptedSegments, &r.AcceptedLines, &r.PivotRows, &r.Error)
	if err != nil {
		return nil, err
	}

	r.StartedAt = time.Unix(0, started).UTC()
	if ended != 0 {
		r.EndedAt = time.Unix(0, ended).UTC()
	}
	if err := decodeJSON(universe, &r.KeyUniverse); err != nil {
		return nil, err
	}
	return &r, nil
}

// unixNano maps the zero time to 0 instead of an out-of-range value.
func unixNano(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

func (s *Store) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// encodeJSON encodes data as JSON string.
func encodeJSON(data interface{}) (string, error) {
	b, err := json.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("encoding JSON: %w", err)
	}
	return string(b), nil
}

// decodeJSON decodes JSON string to target.
func decodeJSON(data string, target interface{}) error {
	if err := json.Unmarshal([]byte(data), target); err != nil {
		return fmt.Errorf("decoding JSON: %w", err)
	}
	return nil
}
