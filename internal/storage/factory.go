package storage

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/fidde/logcycle/internal/storage/clickhouse"
	"github.com/fidde/logcycle/internal/storage/memory"
	"github.com/fidde/logcycle/internal/storage/sqlite"
)

// Backend names accepted by Config.Backend.
const (
	BackendMemory     = "memory"
	BackendSQLite     = "sqlite"
	BackendClickHouse = "clickhouse"
)

// Config holds storage configuration.
type Config struct {
	// Backend selects the storage backend: "memory", "sqlite" or "clickhouse"
	Backend string

	// SQLite-specific config
	SQLitePath string

	// ClickHouse-specific config
	ClickHouseAddr     string
	ClickHouseDatabase string
	ClickHouseUsername string
	ClickHousePassword string
}

// DefaultConfig returns default storage configuration.
func DefaultConfig() Config {
	return Config{
		Backend:            BackendMemory,
		SQLitePath:         "logcycle.db",
		ClickHouseAddr:     "localhost:9000",
		ClickHouseDatabase: "default",
		ClickHouseUsername: "default",
	}
}

// NewStorage creates a storage implementation based on configuration.
func NewStorage(ctx context.Context, cfg Config, logger *slog.Logger) (Storage, error) {
	if logger == nil {
		logger = slog.Default()
	}

	switch cfg.Backend {
	case "", BackendMemory:
		logger.Debug("using in-memory report storage")
		return memory.New(), nil

	case BackendSQLite:
		logger.Debug("using SQLite report storage", "path", cfg.SQLitePath)
		store, err := sqlite.New(sqlite.DefaultConfig(cfg.SQLitePath))
		if err != nil {
			return nil, fmt.Errorf("creating SQLite store: %w", err)
		}
		return store, nil

	case BackendClickHouse:
		logger.Debug("using ClickHouse report storage", "addr", cfg.ClickHouseAddr)

		chCfg := clickhouse.DefaultConfig()
		chCfg.Addr = cfg.ClickHouseAddr
		chCfg.Database = cfg.ClickHouseDatabase
		chCfg.Username = cfg.ClickHouseUsername
		chCfg.Password = cfg.ClickHousePassword

		store, err := clickhouse.NewStore(ctx, chCfg, logger)
		if err != nil {
			return nil, fmt.Errorf("creating ClickHouse store: %w", err)
		}
		return store, nil

	default:
		return nil, fmt.Errorf("unknown storage backend: %s (supported: memory, sqlite, clickhouse)", cfg.Backend)
	}
}
