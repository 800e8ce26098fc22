package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() Config {
	cfg := Defaults()
	cfg.Server.JWTSecret = "secret"
	cfg.Generation.APIKey = "sk-test"
	return cfg
}

func TestDefaults(t *testing.T) {
	cfg := Defaults()

	assert.Equal(t, 30*time.Second, cfg.Generation.CallTimeout.Duration)
	assert.Equal(t, 0.45, cfg.Resolver.Threshold)
	assert.Equal(t, "sqlite", cfg.Storage.Driver)

	// Secrets have no defaults.
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "jwt_secret")
	assert.Contains(t, err.Error(), "api_key")

	valid := validConfig()
	assert.NoError(t, valid.Validate())
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "splitledger.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[server]
port = 9090
jwt_secret = "from-file"

[storage]
driver = "postgres"
dsn = "postgres://localhost/ledger"

[generation]
api_key = "sk-file"
call_timeout = "12s"
default_fast = "tiny"

[generation.models]
tiny = "gpt-4.1-nano"

[resolver]
threshold = 0.6
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "postgres", cfg.Storage.Driver)
	assert.Equal(t, 12*time.Second, cfg.Generation.CallTimeout.Duration)
	assert.Equal(t, "gpt-4.1-nano", cfg.Generation.Models["tiny"])
	assert.Equal(t, "gpt-4o", cfg.Generation.Models["quality"], "defaults survive a partial models table")
	assert.Equal(t, 0.6, cfg.Resolver.Threshold)
	assert.NoError(t, cfg.Validate())
}

func TestLoadMissingFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	require.NoError(t, err)
	assert.Equal(t, Defaults().Server.Port, cfg.Server.Port)
}

func TestLoadRejectsBadTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.toml")
	require.NoError(t, os.WriteFile(path, []byte("[server\nport = "), 0o600))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("SPLITLEDGER_SERVER_PORT", "7070")
	t.Setenv("SPLITLEDGER_SERVER_CORS_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("SPLITLEDGER_SERVER_JWT_SECRET", "env-secret")
	t.Setenv("SPLITLEDGER_GENERATION_API_KEY", "sk-env")
	t.Setenv("SPLITLEDGER_GENERATION_CALL_TIMEOUT", "5s")
	t.Setenv("SPLITLEDGER_RESOLVER_THRESHOLD", "0.5")
	t.Setenv("SPLITLEDGER_LOG_FORMAT", "json")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.CORSOrigins)
	assert.Equal(t, "env-secret", cfg.Server.JWTSecret)
	assert.Equal(t, 5*time.Second, cfg.Generation.CallTimeout.Duration)
	assert.Equal(t, 0.5, cfg.Resolver.Threshold)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.NoError(t, cfg.Validate())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"bad port", func(c *Config) { c.Server.Port = 0 }, "port"},
		{"unknown driver", func(c *Config) { c.Storage.Driver = "mysql" }, "unknown driver"},
		{"postgres without dsn", func(c *Config) { c.Storage.Driver = "postgres" }, "dsn"},
		{"unknown tier", func(c *Config) { c.Generation.ProFast = "turbo" }, `pro_fast "turbo"`},
		{"zero timeout", func(c *Config) { c.Generation.CallTimeout.Duration = 0 }, "call_timeout"},
		{"threshold above one", func(c *Config) { c.Resolver.Threshold = 1.5 }, "threshold"},
		{"bad log level", func(c *Config) { c.Log.Level = "loud" }, "level"},
		{"bad log format", func(c *Config) { c.Log.Format = "xml" }, "format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)

			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
