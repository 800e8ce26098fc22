package config

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads the TOML file at path over the defaults, then applies
// SPLITLEDGER_* environment overrides. A missing file is not an error, so the
// server can run from the environment alone. The result is not validated.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides overwrites fields whose SPLITLEDGER_* variable is set.
func applyEnvOverrides(cfg *Config) {
	// ── Server ──
	setInt(&cfg.Server.Port, "SPLITLEDGER_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "SPLITLEDGER_SERVER_CORS_ORIGINS")
	setStr(&cfg.Server.JWTSecret, "SPLITLEDGER_SERVER_JWT_SECRET")
	setDuration(&cfg.Server.ShutdownTimeout, "SPLITLEDGER_SERVER_SHUTDOWN_TIMEOUT")

	// ── Storage ──
	setStr(&cfg.Storage.Driver, "SPLITLEDGER_STORAGE_DRIVER")
	setStr(&cfg.Storage.Path, "SPLITLEDGER_STORAGE_PATH")
	setStr(&cfg.Storage.DSN, "SPLITLEDGER_STORAGE_DSN")
	setInt(&cfg.Storage.MaxConns, "SPLITLEDGER_STORAGE_MAX_CONNS")
	setInt(&cfg.Storage.MinConns, "SPLITLEDGER_STORAGE_MIN_CONNS")

	// ── Generation ──
	setStr(&cfg.Generation.BaseURL, "SPLITLEDGER_GENERATION_BASE_URL")
	setStr(&cfg.Generation.APIKey, "SPLITLEDGER_GENERATION_API_KEY")
	setDuration(&cfg.Generation.CallTimeout, "SPLITLEDGER_GENERATION_CALL_TIMEOUT")
	setStr(&cfg.Generation.DefaultFast, "SPLITLEDGER_GENERATION_DEFAULT_FAST")
	setStr(&cfg.Generation.DefaultQuality, "SPLITLEDGER_GENERATION_DEFAULT_QUALITY")
	setStr(&cfg.Generation.ProFast, "SPLITLEDGER_GENERATION_PRO_FAST")
	setStr(&cfg.Generation.ProQuality, "SPLITLEDGER_GENERATION_PRO_QUALITY")

	// ── Resolver ──
	setFloat64(&cfg.Resolver.Threshold, "SPLITLEDGER_RESOLVER_THRESHOLD")

	// ── Telemetry ──
	setStr(&cfg.Telemetry.OTLPEndpoint, "SPLITLEDGER_TELEMETRY_OTLP_ENDPOINT")
	setStr(&cfg.Telemetry.ServiceName, "SPLITLEDGER_TELEMETRY_SERVICE_NAME")
	setBool(&cfg.Telemetry.Insecure, "SPLITLEDGER_TELEMETRY_INSECURE")

	// ── Log ──
	setStr(&cfg.Log.Level, "SPLITLEDGER_LOG_LEVEL")
	setStr(&cfg.Log.Format, "SPLITLEDGER_LOG_FORMAT")
}

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				cleaned = append(cleaned, p)
			}
		}
		*dst = cleaned
	}
}
