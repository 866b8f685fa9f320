// Package config provides centralized configuration management for the
// pipeline. It loads configuration from environment variables with sensible
// defaults and validates all settings on startup to fail fast on
// misconfiguration.
package config

import "time"

// Config holds all pipeline configuration.
// All settings can be configured via environment variables.
type Config struct {
	Database DatabaseConfig
	Ingest   IngestConfig
	Sources  SourcesConfig
	Logging  LoggingConfig
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	// URL is the PostgreSQL connection string (required)
	// Supports both DATABASE_URL and DB_URL env vars for compatibility
	URL string `env:"DATABASE_URL" envAlt:"DB_URL" required:"true"`

	// MaxConns is the maximum number of connections in the pool (default: 4)
	MaxConns int `env:"DB_MAX_CONNS" default:"4"`

	// MinConns is the minimum number of connections to keep open (default: 1)
	MinConns int `env:"DB_MIN_CONNS" default:"1"`

	// MaxConnLifetime is the maximum lifetime of a connection (default: 1h)
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" default:"1h"`

	// MaxConnIdleTime is the maximum idle time before a connection is closed (default: 30m)
	MaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" default:"30m"`
}

// IngestConfig holds ingestion tuning settings.
type IngestConfig struct {
	// BatchSize is the number of records to insert per batch (default: 1000)
	BatchSize int `env:"BATCH_SIZE" default:"1000"`

	// ProgressEvery is the record interval between progress log lines (default: 10000)
	ProgressEvery int `env:"PROGRESS_INTERVAL" default:"10000"`

	// TimeZone is the IANA zone applied to timestamps without an offset (default: UTC)
	TimeZone string `env:"INGEST_TZ" default:"UTC"`
}

// SourcesConfig holds the default export file path for each source.
// Any of these may be overridden per run on the command line.
type SourcesConfig struct {
	// AppleZipPath is the Apple Health export archive.
	AppleZipPath string `env:"APPLE_HEALTH_ZIP_PATH"`

	// LoseItZipPath is the LoseIt export archive containing the food log CSV.
	LoseItZipPath string `env:"LOSEIT_ZIP_PATH"`

	// ScaleCSVPath is the smart scale measurement CSV.
	ScaleCSVPath string `env:"SCALE_CSV_PATH"`

	// GlucoseCSVPath is the glucose meter reading CSV.
	GlucoseCSVPath string `env:"BLOODSUGAR_CSV_PATH" envAlt:"GLUCOSE_CSV_PATH"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`
}

// Location resolves the configured fallback time zone.
func (c *IngestConfig) Location() (*time.Location, error) {
	return time.LoadLocation(c.TimeZone)
}

// Path returns the configured default path for a source name, or empty when
// the source has no default configured.
func (c *SourcesConfig) Path(source string) string {
	switch source {
	case "apple-health":
		return c.AppleZipPath
	case "loseit":
		return c.LoseItZipPath
	case "scale":
		return c.ScaleCSVPath
	case "glucose":
		return c.GlucoseCSVPath
	}
	return ""
}
