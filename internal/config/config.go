// Package config loads the server configuration from TOML, .env and
// SPLITLEDGER_* environment variables.
package config

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Config is the root configuration.
type Config struct {
	Server     ServerConfig     `toml:"server"`
	Storage    StorageConfig    `toml:"storage"`
	Generation GenerationConfig `toml:"generation"`
	Resolver   ResolverConfig   `toml:"resolver"`
	Telemetry  TelemetryConfig  `toml:"telemetry"`
	Log        LogConfig        `toml:"log"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Port            int      `toml:"port"`
	CORSOrigins     []string `toml:"cors_origins"`
	JWTSecret       string   `toml:"jwt_secret"`
	ShutdownTimeout duration `toml:"shutdown_timeout"`
}

// StorageConfig selects and configures the ledger store.
type StorageConfig struct {
	// Driver is "sqlite" or "postgres".
	Driver   string `toml:"driver"`
	Path     string `toml:"path"`
	DSN      string `toml:"dsn"`
	MaxConns int    `toml:"max_conns"`
	MinConns int    `toml:"min_conns"`
}

// GenerationConfig configures the model backends.
type GenerationConfig struct {
	BaseURL     string   `toml:"base_url"`
	APIKey      string   `toml:"api_key"`
	CallTimeout duration `toml:"call_timeout"`

	// Models maps a tier key to the model name served under it.
	Models map[string]string `toml:"models"`

	DefaultFast    string `toml:"default_fast"`
	DefaultQuality string `toml:"default_quality"`
	ProFast        string `toml:"pro_fast"`
	ProQuality     string `toml:"pro_quality"`

	Breaker BreakerConfig `toml:"breaker"`
}

// BreakerConfig configures the per-model circuit breaker.
type BreakerConfig struct {
	MaxRequests      uint32   `toml:"max_requests"`
	Interval         duration `toml:"interval"`
	Timeout          duration `toml:"timeout"`
	FailureThreshold float64  `toml:"failure_threshold"`
	MinRequests      uint32   `toml:"min_requests"`
}

// ResolverConfig configures fuzzy name matching.
type ResolverConfig struct {
	Threshold float64 `toml:"threshold"`
}

// TelemetryConfig configures tracing export. An empty endpoint disables
// export.
type TelemetryConfig struct {
	OTLPEndpoint string `toml:"otlp_endpoint"`
	ServiceName  string `toml:"service_name"`
	Insecure     bool   `toml:"insecure"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level string `toml:"level"`
	// Format is "text" (colored) or "json".
	Format string `toml:"format"`
}

// duration is a wrapper around time.Duration that supports TOML string decoding.
type duration struct {
	time.Duration
}

// UnmarshalText parses duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a configuration that runs locally against SQLite.
func Defaults() Config {
	return Config{
		Server: ServerConfig{
			Port:            8080,
			CORSOrigins:     []string{"*"},
			ShutdownTimeout: duration{10 * time.Second},
		},
		Storage: StorageConfig{
			Driver:   "sqlite",
			Path:     "./data/ledger.db",
			MaxConns: 10,
			MinConns: 1,
		},
		Generation: GenerationConfig{
			CallTimeout: duration{30 * time.Second},
			Models: map[string]string{
				"fast":        "gpt-4o-mini",
				"quality":     "gpt-4o",
				"fast-pro":    "gpt-4o",
				"quality-pro": "gpt-4.1",
			},
			DefaultFast:    "fast",
			DefaultQuality: "quality",
			ProFast:        "fast-pro",
			ProQuality:     "quality-pro",
			Breaker: BreakerConfig{
				MaxRequests:      5,
				Interval:         duration{30 * time.Second},
				Timeout:          duration{60 * time.Second},
				FailureThreshold: 0.8,
				MinRequests:      5,
			},
		},
		Resolver: ResolverConfig{Threshold: 0.45},
		Telemetry: TelemetryConfig{
			ServiceName: "splitledger",
			Insecure:    true,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

var validLogLevels = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []string

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
	}
	if c.Server.JWTSecret == "" {
		errs = append(errs, "server: jwt_secret must be set")
	}

	switch c.Storage.Driver {
	case "sqlite":
		if c.Storage.Path == "" {
			errs = append(errs, "storage: path is required for the sqlite driver")
		}
	case "postgres":
		if c.Storage.DSN == "" {
			errs = append(errs, "storage: dsn is required for the postgres driver")
		}
		if c.Storage.MinConns > c.Storage.MaxConns {
			errs = append(errs, "storage: min_conns must not exceed max_conns")
		}
	default:
		errs = append(errs, fmt.Sprintf("storage: unknown driver %q (valid: sqlite, postgres)", c.Storage.Driver))
	}

	g := c.Generation
	if g.APIKey == "" {
		errs = append(errs, "generation: api_key must be set")
	}
	if g.CallTimeout.Duration <= 0 {
		errs = append(errs, "generation: call_timeout must be positive")
	}
	for _, tier := range []struct{ name, key string }{
		{"default_fast", g.DefaultFast},
		{"default_quality", g.DefaultQuality},
		{"pro_fast", g.ProFast},
		{"pro_quality", g.ProQuality},
	} {
		if _, ok := g.Models[tier.key]; !ok {
			errs = append(errs, fmt.Sprintf("generation: %s %q is not in models (have: %s)", tier.name, tier.key, strings.Join(c.ModelKeys(), ", ")))
		}
	}
	if g.Breaker.FailureThreshold <= 0 || g.Breaker.FailureThreshold > 1 {
		errs = append(errs, "generation: breaker.failure_threshold must be in (0, 1]")
	}

	if c.Resolver.Threshold <= 0 || c.Resolver.Threshold > 1 {
		errs = append(errs, fmt.Sprintf("resolver: threshold must be in (0, 1], got %g", c.Resolver.Threshold))
	}

	if !validLogLevels[strings.ToLower(c.Log.Level)] {
		errs = append(errs, fmt.Sprintf("log: unknown level %q (valid: debug, info, warn, error)", c.Log.Level))
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		errs = append(errs, fmt.Sprintf("log: unknown format %q (valid: text, json)", c.Log.Format))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// ModelKeys returns the configured tier keys in sorted order.
func (c *Config) ModelKeys() []string {
	keys := make([]string, 0, len(c.Generation.Models))
	for k := range c.Generation.Models {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
