package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	// Database.
	DBPath string

	// Row-limit bounds.
	DefaultRowLimit int
	MaxRowLimit     int

	// Execution.
	QueryTimeout time.Duration

	// Logging.
	LogLevel slog.Level

	// Transport.
	Transport       string // "stdio" (default) or "http"
	HTTPAddr        string // listen address for HTTP transport (default ":8080")
	HTTPBearerToken string // required when transport=http

	// Observability.
	OTelEnabled bool   // enable OpenTelemetry tracing and metrics
	AuditLog    string // path to NDJSON audit log file (empty disables auditing)
}

// Overrides holds CLI flag values that override the config file and
// environment variables. Pointer fields distinguish "not set" from zero
// values.
type Overrides struct {
	DBPath          *string
	LogLevel        *string
	DefaultRowLimit *int
	MaxRowLimit     *int
	QueryTimeout    *time.Duration
	Transport       *string
	HTTPAddr        *string
	HTTPBearerToken *string
	ConfigFile      *string
	OTelEnabled     bool
	AuditLog        string
}

// fileConfig is the YAML shape of an optional config file. Pointer fields
// distinguish "not set" from zero values, matching the override semantics.
type fileConfig struct {
	DBPath          string `yaml:"db_path"`
	DefaultRowLimit *int   `yaml:"default_row_limit"`
	MaxRowLimit     *int   `yaml:"max_row_limit"`
	QueryTimeoutMS  *int   `yaml:"query_timeout_ms"`
	LogLevel        string `yaml:"log_level"`
	Transport       string `yaml:"transport"`
	HTTPAddr        string `yaml:"http_addr"`
	AuditLog        string `yaml:"audit_log"`
}

// Load builds a Config by layering, lowest precedence first: defaults, the
// optional YAML config file, environment variables, CLI overrides. The
// result is validated before use and treated as immutable afterwards.
func Load(overrides Overrides) (*Config, error) {
	cfg := defaults()

	if err := loadFile(cfg, configFilePath(overrides)); err != nil {
		return nil, err
	}
	if err := loadEnvVars(cfg); err != nil {
		return nil, err
	}
	if err := applyOverrides(cfg, overrides); err != nil {
		return nil, err
	}
	if err := validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// defaults returns a Config populated with default values.
func defaults() *Config {
	return &Config{
		DBPath:          os.Getenv("DB_PATH"),
		DefaultRowLimit: 1000,
		MaxRowLimit:     10000,
		QueryTimeout:    10 * time.Second,
		Transport:       "stdio",
		HTTPAddr:        ":8080",
	}
}

func configFilePath(o Overrides) string {
	if o.ConfigFile != nil {
		return *o.ConfigFile
	}
	return os.Getenv("CONFIG_FILE")
}

// loadFile merges a YAML config file into cfg. A missing path is fine; a
// named file that cannot be read or parsed is an error.
func loadFile(cfg *Config, path string) error {
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("parsing config file %s: %w", path, err)
	}

	if fc.DBPath != "" {
		cfg.DBPath = fc.DBPath
	}
	if fc.DefaultRowLimit != nil {
		if *fc.DefaultRowLimit <= 0 {
			return fmt.Errorf("invalid default_row_limit in config file: must be a positive integer")
		}
		cfg.DefaultRowLimit = *fc.DefaultRowLimit
	}
	if fc.MaxRowLimit != nil {
		if *fc.MaxRowLimit <= 0 {
			return fmt.Errorf("invalid max_row_limit in config file: must be a positive integer")
		}
		cfg.MaxRowLimit = *fc.MaxRowLimit
	}
	if fc.QueryTimeoutMS != nil {
		if *fc.QueryTimeoutMS <= 0 {
			return fmt.Errorf("invalid query_timeout_ms in config file: must be a positive integer")
		}
		cfg.QueryTimeout = time.Duration(*fc.QueryTimeoutMS) * time.Millisecond
	}
	if fc.LogLevel != "" {
		level, err := parseLogLevel(fc.LogLevel)
		if err != nil {
			return err
		}
		cfg.LogLevel = level
	}
	if fc.Transport != "" {
		cfg.Transport = fc.Transport
	}
	if fc.HTTPAddr != "" {
		cfg.HTTPAddr = fc.HTTPAddr
	}
	if fc.AuditLog != "" {
		cfg.AuditLog = fc.AuditLog
	}

	return nil
}

// loadEnvVars reads all supported environment variables into cfg.
func loadEnvVars(cfg *Config) error {
	if v := os.Getenv("DEFAULT_ROW_LIMIT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return fmt.Errorf("invalid DEFAULT_ROW_LIMIT value %q: must be a positive integer", v)
		}
		cfg.DefaultRowLimit = n
	}

	if v := os.Getenv("MAX_ROW_LIMIT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return fmt.Errorf("invalid MAX_ROW_LIMIT value %q: must be a positive integer", v)
		}
		cfg.MaxRowLimit = n
	}

	if v := os.Getenv("QUERY_TIMEOUT_MS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return fmt.Errorf("invalid QUERY_TIMEOUT_MS value %q: must be a positive integer", v)
		}
		cfg.QueryTimeout = time.Duration(n) * time.Millisecond
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		level, err := parseLogLevel(v)
		if err != nil {
			return err
		}
		cfg.LogLevel = level
	}

	if v := os.Getenv("TRANSPORT"); v != "" {
		cfg.Transport = v
	}
	if v := os.Getenv("HTTP_ADDR"); v != "" {
		cfg.HTTPAddr = v
	}
	if v := os.Getenv("HTTP_BEARER_TOKEN"); v != "" {
		cfg.HTTPBearerToken = v
	}

	if v := os.Getenv("OTEL_ENABLED"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid OTEL_ENABLED value %q: %w", v, err)
		}
		cfg.OTelEnabled = b
	}

	if v := os.Getenv("AUDIT_LOG"); v != "" {
		cfg.AuditLog = v
	}

	return nil
}

// applyOverrides applies CLI flag values on top of the layered config.
func applyOverrides(cfg *Config, o Overrides) error {
	if o.DBPath != nil {
		cfg.DBPath = *o.DBPath
	}
	if o.LogLevel != nil {
		level, err := parseLogLevel(*o.LogLevel)
		if err != nil {
			return err
		}
		cfg.LogLevel = level
	}
	if o.DefaultRowLimit != nil {
		if *o.DefaultRowLimit <= 0 {
			return fmt.Errorf("invalid --default-row-limit value: must be a positive integer")
		}
		cfg.DefaultRowLimit = *o.DefaultRowLimit
	}
	if o.MaxRowLimit != nil {
		if *o.MaxRowLimit <= 0 {
			return fmt.Errorf("invalid --max-row-limit value: must be a positive integer")
		}
		cfg.MaxRowLimit = *o.MaxRowLimit
	}
	if o.QueryTimeout != nil {
		if *o.QueryTimeout <= 0 {
			return fmt.Errorf("invalid --query-timeout value: must be positive")
		}
		cfg.QueryTimeout = *o.QueryTimeout
	}
	if o.Transport != nil {
		cfg.Transport = *o.Transport
	}
	if o.HTTPAddr != nil {
		cfg.HTTPAddr = *o.HTTPAddr
	}
	if o.HTTPBearerToken != nil {
		cfg.HTTPBearerToken = *o.HTTPBearerToken
	}

	cfg.OTelEnabled = cfg.OTelEnabled || o.OTelEnabled
	if o.AuditLog != "" {
		cfg.AuditLog = o.AuditLog
	}

	return nil
}

// validate checks cross-field constraints on the final config.
func validate(cfg *Config) error {
	if cfg.DBPath == "" {
		return fmt.Errorf("DB_PATH is required (set via env var, config file, or --db-path flag)")
	}

	if cfg.DefaultRowLimit > cfg.MaxRowLimit {
		return fmt.Errorf("DEFAULT_ROW_LIMIT (%d) must not exceed MAX_ROW_LIMIT (%d)", cfg.DefaultRowLimit, cfg.MaxRowLimit)
	}

	switch cfg.Transport {
	case "stdio", "http":
	default:
		return fmt.Errorf("invalid TRANSPORT value %q: must be \"stdio\" or \"http\"", cfg.Transport)
	}

	if cfg.Transport == "http" && cfg.HTTPBearerToken == "" {
		return fmt.Errorf("HTTP_BEARER_TOKEN is required when transport is \"http\" (set via env var or --http-bearer-token flag)")
	}

	return nil
}

func parseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid LOG_LEVEL value %q: must be debug, info, warn, or error", s)
	}
}
