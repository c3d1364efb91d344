package clickhouse

import (
	"context"
	"fmt"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
)

const schemaVersion = "1.0.0"

// InitializeSchema creates all required tables if they don't exist
func InitializeSchema(ctx context.Context, conn driver.Conn) error {
	if err := conn.Exec(ctx, schemaVersionTableDDL); err != nil {
		return fmt.Errorf("creating schema_version table: %w", err)
	}

	currentVersion, err := getCurrentSchemaVersion(ctx, conn)
	if err != nil {
		return fmt.Errorf("checking schema version: %w", err)
	}
	if currentVersion != "" && currentVersion != schemaVersion {
		return fmt.Errorf("schema version mismatch: database has %s, code expects %s", currentVersion, schemaVersion)
	}

	tables := []struct {
		name string
		ddl  string
	}{
		{"runs", runsTableDDL},
		{"run_keys", runKeysTableDDL},
		{"pivot_rows", pivotRowsTableDDL},
	}
	for _, table := range tables {
		if err := conn.Exec(ctx, table.ddl); err != nil {
			return fmt.Errorf("creating table %s: %w", table.name, err)
		}
	}

	if currentVersion == "" {
		if err := conn.Exec(ctx, "INSERT INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
			return fmt.Errorf("setting schema version: %w", err)
		}
	}
	return nil
}

func getCurrentSchemaVersion(ctx context.Context, conn driver.Conn) (string, error) {
	rows, err := conn.Query(ctx, "SELECT version FROM schema_version ORDER BY applied_at DESC LIMIT 1")
	if err != nil {
		return "", err
	}
	defer rows.Close()

	var version string
	if rows.Next() {
		if err := rows.Scan(&version); err != nil {
			return "", err
		}
	}
	return version, rows.Err()
}

const schemaVersionTableDDL = `
CREATE TABLE IF NOT EXISTS schema_version (
    version String,
    applied_at DateTime64(3) DEFAULT now64(3)
) ENGINE = MergeTree()
ORDER BY applied_at
`

// Rejections are stored inline as parallel arrays.
const runsTableDDL = `
CREATE TABLE IF NOT EXISTS runs (
    id String,
    tool LowCardinality(String),
    input_path String,
    started_at DateTime64(9),
    ended_at DateTime64(9),
    lines UInt64,
    key_universe Array(String),
    segments UInt64,
    accepted_segments UInt64,
    accepted_lines UInt64,
    pivot_rows UInt64,
    error String,
    rejected_segments Array(UInt64),
    rejected_got Array(UInt64),
    rejected_want Array(UInt64)
) ENGINE = ReplacingMergeTree(ended_at)
ORDER BY id
SETTINGS index_granularity = 8192
`

const runKeysTableDDL = `
CREATE TABLE IF NOT EXISTS run_keys (
    run_id String,
    position UInt32,
    key String,
    occurrences UInt64,
    estimated_cardinality UInt64,
    sample_values Array(String),
    sketch String
) ENGINE = ReplacingMergeTree()
ORDER BY (run_id, position)
SETTINGS index_granularity = 8192
`

const pivotRowsTableDDL = `
CREATE TABLE IF NOT EXISTS pivot_rows (
    run_id String,
    row_index UInt64,
    columns Array(String),
    cells Array(String)
) ENGINE = ReplacingMergeTree()
ORDER BY (run_id, row_index)
SETTINGS index_granularity = 8192
`
