// Package config loads engine settings from an optional YAML file with
// environment variable overrides.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	yaml "gopkg.in/yaml.v2"
)

// Persistence selects and parameterizes the document store.
type Persistence struct {
	Driver      string `yaml:"driver"` // memory|sqlite|postgres
	SQLitePath  string `yaml:"sqlitePath"`
	PostgresDSN string `yaml:"postgresDsn"`
	DocumentID  string `yaml:"documentId"`
	Autosave    bool   `yaml:"autosave"`
}

// Archive selects and parameterizes the export artifact store.
type Archive struct {
	Driver    string `yaml:"driver"` // fs|s3|memory
	Root      string `yaml:"root"`
	Bucket    string `yaml:"bucket"`
	Region    string `yaml:"region"`
	Endpoint  string `yaml:"endpoint"`
	PathStyle bool   `yaml:"pathStyle"`
}

// Config carries the tunable settings of the engine and its stores.
type Config struct {
	HistoryLimit int         `yaml:"historyLimit"`
	LogLevel     string      `yaml:"logLevel"` // debug|info|warn|error
	Persistence  Persistence `yaml:"persistence"`
	Archive      Archive     `yaml:"archive"`
}

// Default returns the configuration used when no file or overrides are given.
func Default() Config {
	return Config{
		HistoryLimit: 100,
		LogLevel:     "info",
		Persistence: Persistence{
			Driver:     "sqlite",
			SQLitePath: "diagrams.db",
			DocumentID: "default",
		},
		Archive: Archive{
			Driver: "fs",
			Root:   "./archivedata",
		},
	}
}

// Load reads the YAML file at path (skipped when empty), applies environment
// overrides, and validates the result. Absent YAML keys keep their defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config: %w", err)
		}
	}
	applyEnv(&cfg)
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	envInt("DIAGRAMCORE_HISTORY_LIMIT", &cfg.HistoryLimit)
	envString("DIAGRAMCORE_LOG_LEVEL", &cfg.LogLevel)
	envString("DIAGRAMCORE_STORAGE_DRIVER", &cfg.Persistence.Driver)
	envString("DIAGRAMCORE_SQLITE_PATH", &cfg.Persistence.SQLitePath)
	envString("DIAGRAMCORE_POSTGRES_DSN", &cfg.Persistence.PostgresDSN)
	envString("DIAGRAMCORE_DOCUMENT_ID", &cfg.Persistence.DocumentID)
	envBool("DIAGRAMCORE_AUTOSAVE", &cfg.Persistence.Autosave)
	envString("DIAGRAMCORE_ARCHIVE_DRIVER", &cfg.Archive.Driver)
	envString("DIAGRAMCORE_ARCHIVE_FS_ROOT", &cfg.Archive.Root)
	envString("DIAGRAMCORE_ARCHIVE_S3_BUCKET", &cfg.Archive.Bucket)
	envString("DIAGRAMCORE_ARCHIVE_S3_REGION", &cfg.Archive.Region)
	envString("DIAGRAMCORE_ARCHIVE_S3_ENDPOINT", &cfg.Archive.Endpoint)
	envBool("DIAGRAMCORE_ARCHIVE_S3_PATH_STYLE", &cfg.Archive.PathStyle)
}

func envString(key string, dst *string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}

func envInt(key string, dst *int) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func envBool(key string, dst *bool) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = strings.EqualFold(v, "true") || v == "1"
	}
}

func (c Config) validate() error {
	if c.HistoryLimit <= 0 {
		return fmt.Errorf("history limit must be positive, got %d", c.HistoryLimit)
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log level %q", c.LogLevel)
	}
	switch c.Persistence.Driver {
	case "memory", "sqlite", "postgres":
	default:
		return fmt.Errorf("unknown persistence driver %q", c.Persistence.Driver)
	}
	switch c.Archive.Driver {
	case "fs", "s3", "memory":
	default:
		return fmt.Errorf("unknown archive driver %q", c.Archive.Driver)
	}
	return nil
}

// SlogLevel maps the configured log level onto slog.
func (c Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
