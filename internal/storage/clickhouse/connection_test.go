package clickhouse

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Addr != "localhost:9000" || cfg.Database != "default" {
		t.Errorf("DefaultConfig() = %+v", cfg)
	}
	if cfg.BatchSize != defaultBatchSize {
		t.Errorf("BatchSize = %d, want %d", cfg.BatchSize, defaultBatchSize)
	}
}

func TestConnectStopsOnCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	cfg := DefaultConfig()
	cfg.Addr = "127.0.0.1:1"
	cfg.DialTimeout = 100 * time.Millisecond
	cfg.MaxRetries = 3

	start := time.Now()
	_, err := Connect(ctx, cfg)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Connect() error = %v, want context.Canceled", err)
	}
	if elapsed := time.Since(start); elapsed > defaultRetryDelay {
		t.Errorf("Connect() took %v, should not wait for retries", elapsed)
	}
}
