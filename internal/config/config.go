package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure.
// It is read-only after Load() returns and thread-safe for concurrent reads.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Auth      AuthConfig      `yaml:"auth"`
	Tenant    TenantConfig    `yaml:"tenant"`
	Remote    RemoteConfig    `yaml:"remote"`
	Lock      LockConfig      `yaml:"lock"`
	Restore   RestoreConfig   `yaml:"restore"`
	Outbox    OutboxConfig    `yaml:"outbox"`
	Reconcile ReconcileConfig `yaml:"reconcile"`
	Log       LogConfig       `yaml:"log"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Port            int      `yaml:"port"`
	ReadTimeout     Duration `yaml:"read_timeout"`
	WriteTimeout    Duration `yaml:"write_timeout"`
	ShutdownTimeout Duration `yaml:"shutdown_timeout"`
}

// DatabaseConfig contains local database settings.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// AuthConfig contains authentication settings.
type AuthConfig struct {
	APIKey string `yaml:"-"` // env-only, never in YAML
}

// TenantConfig holds the tenant used by CLI commands when --tenant is omitted.
type TenantConfig struct {
	Default string `yaml:"default"`
}

// Remote drivers
const (
	DriverHTTP     = "http"
	DriverPostgres = "postgres"
	DriverBackup   = "backup"
	DriverMemory   = "memory"
)

// RemoteConfig selects and configures the remote document store.
type RemoteConfig struct {
	Driver   string               `yaml:"driver"`
	Timeout  Duration             `yaml:"timeout"`
	HTTP     RemoteHTTPConfig     `yaml:"http"`
	Postgres RemotePostgresConfig `yaml:"postgres"`
	Backup   RemoteBackupConfig   `yaml:"backup"`
}

// RemoteHTTPConfig configures the HTTP document API client.
type RemoteHTTPConfig struct {
	BaseURL    string   `yaml:"base_url"`
	Token      string   `yaml:"-"` // env-only, never in YAML
	MaxRetries uint64   `yaml:"max_retries"`
	RetryBase  Duration `yaml:"retry_base"`
	PageSize   int      `yaml:"page_size"`
}

// RemotePostgresConfig configures the Postgres JSONB document table.
type RemotePostgresConfig struct {
	DSN   string `yaml:"-"` // env-only, never in YAML
	Table string `yaml:"table"`
}

// RemoteBackupConfig configures the read-only backup source. Path is a local
// file or an s3://bucket/key URL.
type RemoteBackupConfig struct {
	Path      string `yaml:"path"`
	Endpoint  string `yaml:"endpoint"`
	Region    string `yaml:"region"`
	UseSSL    *bool  `yaml:"use_ssl"`
	AccessKey string `yaml:"-"` // env-only, never in YAML
	SecretKey string `yaml:"-"` // env-only, never in YAML
}

// LockConfig configures the per-tenant restore lock. An empty RedisAddr keeps
// the lock in-process.
type LockConfig struct {
	RedisAddr     string   `yaml:"redis_addr"`
	RedisPassword string   `yaml:"-"` // env-only, never in YAML
	RedisDB       int      `yaml:"redis_db"`
	TTL           Duration `yaml:"ttl"`
}

// RestoreConfig contains restore engine settings.
type RestoreConfig struct {
	Concurrency int `yaml:"concurrency"`
}

// OutboxConfig contains dirty marker and drainer settings.
type OutboxConfig struct {
	MarkerBuffer  int      `yaml:"marker_buffer"`
	DrainInterval Duration `yaml:"drain_interval"`
	DrainBatch    int      `yaml:"drain_batch"`
}

// ReconcileConfig contains periodic reconciliation settings.
type ReconcileConfig struct {
	Interval Duration `yaml:"interval"`
	Tenants  []string `yaml:"tenants"`
}

// LogConfig contains logging settings.
type LogConfig struct {
	Level      string `yaml:"level"`
	Format     string `yaml:"format"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

// MetricsConfig contains Prometheus settings.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

// Duration is a wrapper around time.Duration that supports YAML string parsing.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler for Duration.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Load loads configuration with precedence: defaults → YAML file → .env → env vars.
// Returns an immutable Config suitable for concurrent read access.
func Load() (*Config, error) {
	cfg := newDefaults()

	// Values already in the environment win over .env entries.
	if err := loadDotEnv(getEnv("RENTSYNC_ENV_FILE", ".env")); err != nil {
		return nil, err
	}

	configPath := getEnv("RENTSYNC_CONFIG_PATH", "config/rentsync.yaml")

	// Load YAML file if it exists (missing file is not an error)
	if err := loadYAMLFile(cfg, configPath); err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadFromFile loads configuration from a specific path.
// Used for testing and explicit path specification.
func LoadFromFile(path string) (*Config, error) {
	cfg := newDefaults()

	// Load YAML file (file must exist for this function)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// newDefaults returns a Config with all default values.
func newDefaults() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     Duration(30 * time.Second),
			WriteTimeout:    Duration(5 * time.Minute),
			ShutdownTimeout: Duration(15 * time.Second),
		},
		Database: DatabaseConfig{
			Path: "data/rentsync.db",
		},
		Remote: RemoteConfig{
			Driver:  DriverMemory,
			Timeout: Duration(30 * time.Second),
			HTTP: RemoteHTTPConfig{
				MaxRetries: 3,
				RetryBase:  Duration(200 * time.Millisecond),
				PageSize:   500,
			},
			Postgres: RemotePostgresConfig{
				Table: "remote_documents",
			},
		},
		Lock: LockConfig{
			TTL: Duration(10 * time.Minute),
		},
		Restore: RestoreConfig{
			Concurrency: 4,
		},
		Outbox: OutboxConfig{
			MarkerBuffer:  256,
			DrainInterval: Duration(1 * time.Minute),
			DrainBatch:    0,
		},
		Reconcile: ReconcileConfig{
			Interval: Duration(1 * time.Hour),
		},
		Log: LogConfig{
			Level:      "info",
			Format:     "json",
			MaxSizeMB:  100,
			MaxBackups: 5,
			MaxAgeDays: 28,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}

// loadDotEnv loads a dotenv file if it exists.
func loadDotEnv(path string) error {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("reading env file: %w", err)
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("parsing env file: %w", err)
	}
	return nil
}

// loadYAMLFile loads configuration from a YAML file if it exists.
// Missing file is not an error; we just use defaults.
func loadYAMLFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parsing config file: %w", err)
	}

	return nil
}

func envDuration(key string, dst *Duration) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = Duration(d)
		}
	}
}

func envInt(key string, dst *int) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func envString(key string, dst *string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

// applyEnvOverrides applies environment variable overrides to the config.
// Only non-empty env vars override config values.
func applyEnvOverrides(cfg *Config) {
	// Server
	envInt("RENTSYNC_PORT", &cfg.Server.Port)
	envDuration("RENTSYNC_READ_TIMEOUT", &cfg.Server.ReadTimeout)
	envDuration("RENTSYNC_WRITE_TIMEOUT", &cfg.Server.WriteTimeout)
	envDuration("RENTSYNC_SHUTDOWN_TIMEOUT", &cfg.Server.ShutdownTimeout)

	// Database
	envString("RENTSYNC_DB_PATH", &cfg.Database.Path)

	// Auth
	envString("RENTSYNC_API_KEY", &cfg.Auth.APIKey)

	// Tenant
	envString("RENTSYNC_TENANT", &cfg.Tenant.Default)

	// Remote
	envString("RENTSYNC_REMOTE_DRIVER", &cfg.Remote.Driver)
	envDuration("RENTSYNC_REMOTE_TIMEOUT", &cfg.Remote.Timeout)
	envString("RENTSYNC_REMOTE_URL", &cfg.Remote.HTTP.BaseURL)
	envString("RENTSYNC_REMOTE_TOKEN", &cfg.Remote.HTTP.Token)
	if v := os.Getenv("RENTSYNC_REMOTE_MAX_RETRIES"); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			cfg.Remote.HTTP.MaxRetries = n
		}
	}
	envString("RENTSYNC_REMOTE_DSN", &cfg.Remote.Postgres.DSN)
	envString("RENTSYNC_REMOTE_TABLE", &cfg.Remote.Postgres.Table)
	envString("RENTSYNC_BACKUP_PATH", &cfg.Remote.Backup.Path)
	envString("RENTSYNC_S3_ENDPOINT", &cfg.Remote.Backup.Endpoint)
	envString("RENTSYNC_S3_REGION", &cfg.Remote.Backup.Region)
	envString("RENTSYNC_S3_ACCESS_KEY", &cfg.Remote.Backup.AccessKey)
	envString("RENTSYNC_S3_SECRET_KEY", &cfg.Remote.Backup.SecretKey)
	if v := os.Getenv("RENTSYNC_S3_USE_SSL"); v != "" {
		useSSL := v == "true" || v == "1"
		cfg.Remote.Backup.UseSSL = &useSSL
	}

	// Lock
	envString("RENTSYNC_REDIS_ADDR", &cfg.Lock.RedisAddr)
	envString("RENTSYNC_REDIS_PASSWORD", &cfg.Lock.RedisPassword)
	envInt("RENTSYNC_REDIS_DB", &cfg.Lock.RedisDB)
	envDuration("RENTSYNC_LOCK_TTL", &cfg.Lock.TTL)

	// Restore
	envInt("RENTSYNC_RESTORE_CONCURRENCY", &cfg.Restore.Concurrency)

	// Outbox
	envInt("RENTSYNC_MARKER_BUFFER", &cfg.Outbox.MarkerBuffer)
	envDuration("RENTSYNC_DRAIN_INTERVAL", &cfg.Outbox.DrainInterval)
	envInt("RENTSYNC_DRAIN_BATCH", &cfg.Outbox.DrainBatch)

	// Reconcile
	envDuration("RENTSYNC_RECONCILE_INTERVAL", &cfg.Reconcile.Interval)
	if v := os.Getenv("RENTSYNC_RECONCILE_TENANTS"); v != "" {
		cfg.Reconcile.Tenants = splitList(v)
	}

	// Log
	envString("RENTSYNC_LOG_LEVEL", &cfg.Log.Level)
	envString("RENTSYNC_LOG_FORMAT", &cfg.Log.Format)
	envString("RENTSYNC_LOG_FILE", &cfg.Log.File)

	// Metrics
	if v := os.Getenv("RENTSYNC_METRICS_ENABLED"); v != "" {
		cfg.Metrics.Enabled = v == "true" || v == "1"
	}
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// DevMode reports whether RENTSYNC_DEV_MODE is enabled.
func DevMode() bool {
	return os.Getenv("RENTSYNC_DEV_MODE") == "true"
}

// validate checks that configuration values are usable and that required
// secrets are set. In dev mode (RENTSYNC_DEV_MODE=true), secret validation
// is skipped.
func (c *Config) validate() error {
	var errs []error

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d out of range", c.Server.Port))
	}
	if c.Database.Path == "" {
		errs = append(errs, errors.New("database.path is required"))
	}

	switch c.Remote.Driver {
	case DriverHTTP:
		if c.Remote.HTTP.BaseURL == "" {
			errs = append(errs, errors.New("remote.http.base_url is required for the http driver"))
		}
	case DriverPostgres:
		if c.Remote.Postgres.DSN == "" {
			errs = append(errs, errors.New("RENTSYNC_REMOTE_DSN is required for the postgres driver"))
		}
	case DriverBackup:
		if c.Remote.Backup.Path == "" {
			errs = append(errs, errors.New("remote.backup.path is required for the backup driver"))
		}
	case DriverMemory:
	default:
		errs = append(errs, fmt.Errorf("remote.driver %q must be one of http, postgres, backup, memory", c.Remote.Driver))
	}

	if c.Restore.Concurrency < 1 {
		errs = append(errs, errors.New("restore.concurrency must be at least 1"))
	}
	if c.Outbox.MarkerBuffer < 0 {
		errs = append(errs, errors.New("outbox.marker_buffer must not be negative"))
	}
	if c.Outbox.DrainBatch < 0 {
		errs = append(errs, errors.New("outbox.drain_batch must not be negative"))
	}
	if c.Outbox.DrainInterval <= 0 {
		errs = append(errs, errors.New("outbox.drain_interval must be positive"))
	}
	if c.Reconcile.Interval <= 0 {
		errs = append(errs, errors.New("reconcile.interval must be positive"))
	}
	if c.Lock.TTL <= 0 {
		errs = append(errs, errors.New("lock.ttl must be positive"))
	}

	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("log.level %q must be one of debug, info, warn, error", c.Log.Level))
	}
	switch strings.ToLower(c.Log.Format) {
	case "json", "text":
	default:
		errs = append(errs, fmt.Errorf("log.format %q must be json or text", c.Log.Format))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	// Dev mode bypasses secret validation
	if DevMode() {
		return nil
	}

	if c.Auth.APIKey == "" {
		return errors.New("RENTSYNC_API_KEY is required")
	}
	if c.Remote.Driver == DriverHTTP && c.Remote.HTTP.Token == "" {
		return errors.New("RENTSYNC_REMOTE_TOKEN is required for the http driver")
	}
	return nil
}

// getEnv returns the value of an environment variable or a default.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
