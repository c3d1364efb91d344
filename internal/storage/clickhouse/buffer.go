package clickhouse

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
)

const (
	defaultBatchSize = 1000
	maxRetries       = 3
	insertTimeout    = 30 * time.Second
)

// PivotRow represents a row in the pivot_rows table
type PivotRow struct {
	RunID    string
	RowIndex uint64
	Columns  []string
	Cells    []string
}

// PivotBuffer collects pivot rows and inserts them in batches.
type PivotBuffer struct {
	conn      driver.Conn
	logger    *slog.Logger
	batchSize int
	rows      []PivotRow
	flushed   int
}

// NewPivotBuffer creates a buffer that flushes every batchSize rows.
func NewPivotBuffer(conn driver.Conn, batchSize int, logger *slog.Logger) *PivotBuffer {
	if logger == nil {
		logger = slog.Default()
	}
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	return &PivotBuffer{
		conn:      conn,
		logger:    logger,
		batchSize: batchSize,
		rows:      make([]PivotRow, 0, batchSize),
	}
}

// Add buffers row, flushing when the batch is full.
func (b *PivotBuffer) Add(ctx context.Context, row PivotRow) error {
	b.rows = append(b.rows, row)
	if len(b.rows) >= b.batchSize {
		return b.Flush(ctx)
	}
	return nil
}

// Flush inserts all buffered rows.
func (b *PivotBuffer) Flush(ctx context.Context) error {
	if len(b.rows) == 0 {
		return nil
	}

	start := time.Now()
	rows := b.rows
	b.rows = make([]PivotRow, 0, b.batchSize)

	if err := b.insertPivotRows(ctx, rows); err != nil {
		b.logger.Error("failed to flush pivot rows",
			"error", err,
			"row_count", len(rows),
		)
		return err
	}
	b.flushed += len(rows)

	b.logger.Debug("flushed pivot rows",
		"row_count", len(rows),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return nil
}

// Flushed returns the number of rows inserted so far.
func (b *PivotBuffer) Flushed() int {
	return b.flushed
}

func (b *PivotBuffer) insertPivotRows(ctx context.Context, rows []PivotRow) error {
	return retryInsert(ctx, func(ctx context.Context) error {
		batch, err := b.conn.PrepareBatch(ctx, "INSERT INTO pivot_rows")
		if err != nil {
			return err
		}
		for _, row := range rows {
			if err := batch.Append(row.RunID, row.RowIndex, row.Columns, row.Cells); err != nil {
				return err
			}
		}
		return batch.Send()
	})
}

// retryInsert runs fn up to maxRetries times with exponential backoff.
// Each attempt gets its own timeout derived from ctx; cancelling ctx stops
// the retries.
func retryInsert(ctx context.Context, fn func(context.Context) error) error {
	var err error
	retryDelay := 100 * time.Millisecond

	for attempt := 1; attempt <= maxRetries; attempt++ {
		if cerr := ctx.Err(); cerr != nil {
			if err == nil {
				return cerr
			}
			return fmt.Errorf("insert canceled after %d attempts: %w", attempt-1, errors.Join(cerr, err))
		}

		attemptCtx, cancel := context.WithTimeout(ctx, insertTimeout)
		err = fn(attemptCtx)
		cancel()

		if err == nil {
			return nil
		}

		if attempt < maxRetries {
			select {
			case <-ctx.Done():
			case <-time.After(retryDelay):
				retryDelay *= 2
			}
		}
	}

	if cerr := ctx.Err(); cerr != nil {
		return fmt.Errorf("insert canceled after %d attempts: %w", maxRetries, errors.Join(cerr, err))
	}
	return fmt.Errorf("insert failed after %d attempts: %w", maxRetries, err)
}
