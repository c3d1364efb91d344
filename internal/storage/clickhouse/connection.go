// Package clickhouse stores run reports and pivot tables in ClickHouse.
package clickhouse

import (
	"context"
	"crypto/tls"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
)

const (
	defaultMaxOpenConns = 2
	defaultDialTimeout  = 10 * time.Second
	defaultMaxRetries   = 3
	defaultRetryDelay   = 1 * time.Second
)

// ConnectionConfig holds ClickHouse connection parameters
type ConnectionConfig struct {
	Addr         string
	Database     string
	Username     string
	Password     string
	MaxOpenConns int
	DialTimeout  time.Duration
	MaxRetries   int
	TLS          *tls.Config
	BatchSize    int // Pivot rows per INSERT batch (default: 1000)
}

// DefaultConfig returns a connection config for a local server.
func DefaultConfig() *ConnectionConfig {
	return &ConnectionConfig{
		Addr:         "localhost:9000",
		Database:     "default",
		Username:     "default",
		MaxOpenConns: defaultMaxOpenConns,
		DialTimeout:  defaultDialTimeout,
		MaxRetries:   defaultMaxRetries,
		BatchSize:    defaultBatchSize,
	}
}

// Connect opens and pings a ClickHouse connection, retrying with
// exponential backoff.
func Connect(ctx context.Context, config *ConnectionConfig) (driver.Conn, error) {
	if config == nil {
		config = DefaultConfig()
	}
	attempts := config.MaxRetries
	if attempts <= 0 {
		attempts = 1
	}

	opts := &clickhouse.Options{
		Addr: []string{config.Addr},
		Auth: clickhouse.Auth{
			Database: config.Database,
			Username: config.Username,
			Password: config.Password,
		},
		Settings: clickhouse.Settings{
			"max_execution_time": 60,
		},
		DialTimeout:      config.DialTimeout,
		MaxOpenConns:     config.MaxOpenConns,
		MaxIdleConns:     config.MaxOpenConns,
		ConnMaxLifetime:  time.Hour,
		ConnOpenStrategy: clickhouse.ConnOpenInOrder,
		TLS:              config.TLS,
	}

	var (
		conn driver.Conn
		err  error
	)
	delay := defaultRetryDelay
	for attempt := 1; attempt <= attempts; attempt++ {
		conn, err = clickhouse.Open(opts)
		if err == nil {
			if err = conn.Ping(ctx); err == nil {
				return conn, nil
			}
			conn.Close()
		}

		if attempt < attempts {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
				delay *= 2
			}
		}
	}

	return nil, fmt.Errorf("failed to connect to ClickHouse after %d attempts: %w", attempts, err)
}
