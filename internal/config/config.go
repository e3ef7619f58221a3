// Package config loads service configuration.
//
// Configuration is loaded from:
// 1. config.yaml file (optional)
// 2. Environment variables (nested keys joined by "_", e.g. SERVER_PORT, LOCK_TIMEOUT)
// 3. Default values
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"example.com/brandevents/internal/tenant"
)

// Store backends.
const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
)

// Lock modes.
const (
	LockSharded  = "sharded"
	LockGlobal   = "global"
	LockAdvisory = "advisory"
)

// Config is the root configuration structure.
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Store       StoreConfig       `mapstructure:"store"`
	Lock        LockConfig        `mapstructure:"lock"`
	Events      EventsConfig      `mapstructure:"events"`
	QR          QRConfig          `mapstructure:"qr"`
	Idempotency IdempotencyConfig `mapstructure:"idempotency"`
	Diagnostics DiagnosticsConfig `mapstructure:"diagnostics"`
	Log         LogConfig         `mapstructure:"log"`

	Tenants     []tenant.Brand `mapstructure:"tenants"`
	TenantsFile string         `mapstructure:"tenants_file"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Port              int           `mapstructure:"port"`
	ReadTimeout       time.Duration `mapstructure:"read_timeout"`
	WriteTimeout      time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout"`
	MaxBodyBytes      int64         `mapstructure:"max_body_bytes"`
	WriteRateLimitMin int           `mapstructure:"write_rate_limit_per_min"`
	// APIKeys is a comma separated list; empty disables the key gate.
	APIKeys string `mapstructure:"api_keys"`
}

// DatabaseConfig contains PostgreSQL connection settings.
type DatabaseConfig struct {
	URL string `mapstructure:"url"`
}

// StoreConfig selects the row store backend.
type StoreConfig struct {
	Backend string `mapstructure:"backend"`
}

// LockConfig selects the write lock provider.
type LockConfig struct {
	Mode    string        `mapstructure:"mode"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// EventsConfig contains event core settings.
type EventsConfig struct {
	BaseURL         string `mapstructure:"base_url"`
	HydratePoolSize int    `mapstructure:"hydrate_pool_size"`
}

// QRConfig configures the external QR rendering service.
type QRConfig struct {
	Endpoint string        `mapstructure:"endpoint"`
	Size     int           `mapstructure:"size"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// IdempotencyConfig configures duplicate create suppression.
type IdempotencyConfig struct {
	TTL time.Duration `mapstructure:"ttl"`
}

// DiagnosticsConfig configures the batched diagnostics sink.
type DiagnosticsConfig struct {
	QueueMaxSize int           `mapstructure:"queue_max_size"`
	BatchMaxSize int           `mapstructure:"batch_max_size"`
	BatchMaxWait time.Duration `mapstructure:"batch_max_wait"`
}

// LogConfig contains logging settings.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // json or console
}

// Load reads configuration from file and environment variables.
// configPaths are searched for config.yaml before the defaults.
func Load(configPaths ...string) (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	for _, p := range configPaths {
		v.AddConfigPath(p)
	}
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.TenantsFile != "" {
		brands, err := tenant.LoadFile(cfg.TenantsFile)
		if err != nil {
			return nil, fmt.Errorf("load tenants file: %w", err)
		}
		cfg.Tenants = append(cfg.Tenants, brands...)
	}
	for i := range cfg.Tenants {
		if cfg.Tenants[i].BaseURL == "" {
			cfg.Tenants[i].BaseURL = cfg.Events.BaseURL
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &cfg, nil
}

// Validate checks for critical configuration errors.
func (c *Config) Validate() error {
	switch c.Store.Backend {
	case BackendMemory:
	case BackendPostgres:
		if c.Database.URL == "" {
			return fmt.Errorf("database.url is required for the postgres backend")
		}
	default:
		return fmt.Errorf("store.backend must be %q or %q, got %q", BackendMemory, BackendPostgres, c.Store.Backend)
	}
	switch c.Lock.Mode {
	case LockSharded, LockGlobal:
	case LockAdvisory:
		if c.Store.Backend != BackendPostgres {
			return fmt.Errorf("lock.mode %q requires the postgres backend", LockAdvisory)
		}
	default:
		return fmt.Errorf("lock.mode must be one of %s, %s, %s", LockSharded, LockGlobal, LockAdvisory)
	}
	if c.Lock.Timeout <= 0 {
		return fmt.Errorf("lock.timeout must be positive")
	}
	if c.Events.HydratePoolSize <= 0 {
		return fmt.Errorf("events.hydrate_pool_size must be positive")
	}
	for _, b := range c.Tenants {
		if strings.TrimSpace(b.ID) == "" {
			return fmt.Errorf("tenants: every tenant needs an id")
		}
	}
	return nil
}

// APIKeySet parses Server.APIKeys.
func (c *Config) APIKeySet() map[string]struct{} {
	return parseKeys(c.Server.APIKeys)
}

func parseKeys(csv string) map[string]struct{} {
	csv = strings.TrimSpace(csv)
	if csv == "" {
		return map[string]struct{}{}
	}
	m := make(map[string]struct{})
	for _, k := range strings.Split(csv, ",") {
		k = strings.TrimSpace(k)
		if k != "" {
			m[k] = struct{}{}
		}
	}
	return m
}

func setDefaults(v *viper.Viper) {
	// Server
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "10s")
	v.SetDefault("server.write_timeout", "15s")
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("server.max_body_bytes", 1_048_576)
	v.SetDefault("server.write_rate_limit_per_min", 120)
	v.SetDefault("server.api_keys", "")

	// Database
	v.SetDefault("database.url", "")

	// Store and lock
	v.SetDefault("store.backend", BackendMemory)
	v.SetDefault("lock.mode", LockSharded)
	v.SetDefault("lock.timeout", "10s")

	// Events
	v.SetDefault("events.base_url", "http://localhost:8080")
	v.SetDefault("events.hydrate_pool_size", 16)

	// QR
	v.SetDefault("qr.endpoint", "https://api.qrserver.com/v1/create-qr-code/")
	v.SetDefault("qr.size", 300)
	v.SetDefault("qr.timeout", "5s")

	// Idempotency
	v.SetDefault("idempotency.ttl", "2m")

	// Diagnostics
	v.SetDefault("diagnostics.queue_max_size", 10_000)
	v.SetDefault("diagnostics.batch_max_size", 200)
	v.SetDefault("diagnostics.batch_max_wait", "500ms")

	// Log
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("tenants_file", "")
}
