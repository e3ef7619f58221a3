package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"example.com/brandevents/internal/tenant"
)

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 15*time.Second, cfg.Server.WriteTimeout)
	assert.Equal(t, BackendMemory, cfg.Store.Backend)
	assert.Equal(t, LockSharded, cfg.Lock.Mode)
	assert.Equal(t, 10*time.Second, cfg.Lock.Timeout)
	assert.Equal(t, 2*time.Minute, cfg.Idempotency.TTL)
	assert.Equal(t, 16, cfg.Events.HydratePoolSize)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Empty(t, cfg.APIKeySet())
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("LOCK_MODE", "global")
	t.Setenv("LOCK_TIMEOUT", "250ms")
	t.Setenv("SERVER_API_KEYS", "a, b,,c")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, LockGlobal, cfg.Lock.Mode)
	assert.Equal(t, 250*time.Millisecond, cfg.Lock.Timeout)
	assert.Len(t, cfg.APIKeySet(), 3)
}

func TestLoad_FileWithTenants(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	yaml := `
events:
  base_url: https://brand.example.com
tenants:
  - id: root
    name: Root League
    scopes: [events, leagues]
  - id: abc
    base_url: https://abc.example.com
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o600))

	cfg, err := Load()
	require.NoError(t, err)
	require.Len(t, cfg.Tenants, 2)
	assert.Equal(t, "https://brand.example.com", cfg.Tenants[0].BaseURL)
	assert.Equal(t, []string{"events", "leagues"}, cfg.Tenants[0].Scopes)
	assert.Equal(t, "https://abc.example.com", cfg.Tenants[1].BaseURL)
}

func TestValidate(t *testing.T) {
	base := func() Config {
		return Config{
			Store:  StoreConfig{Backend: BackendMemory},
			Lock:   LockConfig{Mode: LockSharded, Timeout: time.Second},
			Events: EventsConfig{HydratePoolSize: 1},
		}
	}
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"ok", func(c *Config) {}, false},
		{"unknown backend", func(c *Config) { c.Store.Backend = "sheets" }, true},
		{"postgres without url", func(c *Config) { c.Store.Backend = BackendPostgres }, true},
		{"advisory without postgres", func(c *Config) { c.Lock.Mode = LockAdvisory }, true},
		{"advisory with postgres", func(c *Config) {
			c.Store.Backend = BackendPostgres
			c.Database.URL = "postgres://localhost/x"
			c.Lock.Mode = LockAdvisory
		}, false},
		{"zero timeout", func(c *Config) { c.Lock.Timeout = 0 }, true},
		{"empty tenant id", func(c *Config) { c.Tenants = []tenant.Brand{{Name: "nameless"}} }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := base()
			tt.mutate(&c)
			err := c.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
