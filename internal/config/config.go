// Package config loads logcycle settings from an optional YAML file and
// the environment.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/fidde/logcycle/internal/storage"
)

// EnvConfigPath names the variable holding the YAML config file path.
const EnvConfigPath = "LOGCYCLE_CONFIG"

// Config is the top-level configuration.
type Config struct {
	// EarlyStop makes logfilter take the key universe from the first cycle only
	EarlyStop bool          `yaml:"early_stop"`
	LogLevel  string        `yaml:"log_level"`
	Report    ReportConfig  `yaml:"report"`
	Profile   ProfileConfig `yaml:"profile"`
}

// ReportConfig selects where run reports go.
type ReportConfig struct {
	Backend            string `yaml:"backend"`
	SQLitePath         string `yaml:"sqlite_path"`
	ClickHouseAddr     string `yaml:"clickhouse_addr"`
	ClickHouseDatabase string `yaml:"clickhouse_database"`
	ClickHouseUsername string `yaml:"clickhouse_username"`
	ClickHousePassword string `yaml:"clickhouse_password"`
}

// ProfileConfig tunes per-key profiling.
type ProfileConfig struct {
	// Precision is the HyperLogLog precision (4-18)
	Precision  uint8 `yaml:"precision"`
	MaxSamples int   `yaml:"max_samples"`
}

// Default returns the built-in configuration.
func Default() Config {
	sc := storage.DefaultConfig()
	return Config{
		LogLevel: "info",
		Report: ReportConfig{
			Backend:            sc.Backend,
			SQLitePath:         sc.SQLitePath,
			ClickHouseAddr:     sc.ClickHouseAddr,
			ClickHouseDatabase: sc.ClickHouseDatabase,
			ClickHouseUsername: sc.ClickHouseUsername,
		},
		Profile: ProfileConfig{
			Precision:  14,
			MaxSamples: 5,
		},
	}
}

// Load reads a YAML file on top of Default.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config YAML: %w", err)
	}
	return cfg, cfg.Validate()
}

// FromEnv overlays LOGCYCLE_* variables on base.
func FromEnv(base Config) (Config, error) {
	cfg := base
	cfg.EarlyStop = getEnvBool("LOGCYCLE_EARLY_STOP", cfg.EarlyStop)
	cfg.LogLevel = getEnv("LOGCYCLE_LOG_LEVEL", cfg.LogLevel)
	cfg.Report.Backend = getEnv("LOGCYCLE_REPORT_BACKEND", cfg.Report.Backend)
	cfg.Report.SQLitePath = getEnv("LOGCYCLE_SQLITE_PATH", cfg.Report.SQLitePath)
	cfg.Report.ClickHouseAddr = getEnv("LOGCYCLE_CLICKHOUSE_ADDR", cfg.Report.ClickHouseAddr)
	cfg.Report.ClickHouseDatabase = getEnv("LOGCYCLE_CLICKHOUSE_DATABASE", cfg.Report.ClickHouseDatabase)
	cfg.Report.ClickHouseUsername = getEnv("LOGCYCLE_CLICKHOUSE_USERNAME", cfg.Report.ClickHouseUsername)
	cfg.Report.ClickHousePassword = getEnv("LOGCYCLE_CLICKHOUSE_PASSWORD", cfg.Report.ClickHousePassword)
	return cfg, cfg.Validate()
}

// Resolve loads the file named by LOGCYCLE_CONFIG, if set, and applies the
// environment on top.
func Resolve() (Config, error) {
	cfg := Default()
	if path := os.Getenv(EnvConfigPath); path != "" {
		loaded, err := Load(path)
		if err != nil {
			return cfg, err
		}
		cfg = loaded
	}
	return FromEnv(cfg)
}

// Validate checks enumerated settings.
func (c Config) Validate() error {
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}
	switch c.Report.Backend {
	case storage.BackendMemory, storage.BackendSQLite, storage.BackendClickHouse:
	default:
		return fmt.Errorf("invalid report backend %q (supported: memory, sqlite, clickhouse)", c.Report.Backend)
	}
	if c.Profile.Precision != 0 && (c.Profile.Precision < 4 || c.Profile.Precision > 18) {
		return fmt.Errorf("invalid profile precision %d (must be 4-18)", c.Profile.Precision)
	}
	return nil
}

// Storage converts the report section to a storage.Config.
func (c Config) Storage() storage.Config {
	return storage.Config{
		Backend:            c.Report.Backend,
		SQLitePath:         c.Report.SQLitePath,
		ClickHouseAddr:     c.Report.ClickHouseAddr,
		ClickHouseDatabase: c.Report.ClickHouseDatabase,
		ClickHouseUsername: c.Report.ClickHouseUsername,
		ClickHousePassword: c.Report.ClickHousePassword,
	}
}

// ParseLevel maps debug|info|warn|error to a slog level.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid log level %q (use debug|info|warn|error)", s)
	}
}

// getEnv gets an environment variable with a default fallback.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool gets a boolean environment variable with a default fallback.
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}
