package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"fivebear-admin-go/internal/platform/errors"
)

// configSearchPaths lists the file locations probed in order.
var configSearchPaths = []string{
	".config.yaml",
	"config.yaml",
	"data/config.yaml",
}

// Loader reads configuration from an optional yaml file, layered over the
// defaults and finally over environment variables.
type Loader struct {
	useDotEnv bool
	path      string
}

// NewLoader creates a loader probing the default search paths.
func NewLoader() *Loader {
	return &Loader{useDotEnv: true}
}

// WithDotEnv toggles loading variables from a .env file before reading config.
func (l *Loader) WithDotEnv(enabled bool) *Loader {
	l.useDotEnv = enabled
	return l
}

// WithPath pins the loader to an explicit config file (useful for tests).
func (l *Loader) WithPath(path string) *Loader {
	l.path = path
	return l
}

// Load produces the effective configuration.
func (l *Loader) Load() (*Config, error) {
	if l.useDotEnv {
		if err := godotenv.Load(); err != nil {
			fmt.Println("no .env file found, using process environment")
		}
	}

	cfg := DefaultConfig()

	path := l.path
	if path == "" {
		for _, candidate := range configSearchPaths {
			if _, err := os.Stat(candidate); err == nil {
				path = candidate
				break
			}
		}
	}
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrap(errors.KindConfig, "loader.read", "failed to read config file", err)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, errors.Wrap(errors.KindConfig, "loader.parse", "failed to parse config file", err)
		}
	}

	l.applyEnvOverrides(cfg)

	if err := l.validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides layers FB_* environment variables on top of file values,
// so secrets never need to live in the config file.
func (l *Loader) applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("FB_TOKEN_SECRET"); v != "" {
		cfg.Token.Secret = v
	}
	if v := os.Getenv("FB_REDIS_ADDR"); v != "" {
		cfg.Store.Driver = "redis"
		cfg.Store.Redis.Addr = v
	}
	if v := os.Getenv("FB_REDIS_PASSWORD"); v != "" {
		cfg.Store.Redis.Password = v
	}
	if v := os.Getenv("FB_REDIS_DB"); v != "" {
		if db, err := strconv.Atoi(v); err == nil {
			cfg.Store.Redis.DB = db
		}
	}
	if v := os.Getenv("FB_DB_DSN"); v != "" {
		cfg.Database.DSN = v
	}
	if v := os.Getenv("FB_HTTP_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
}

func (l *Loader) validate(cfg *Config) error {
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return errors.New(errors.KindConfig, "loader.validate",
			fmt.Sprintf("server port out of range: %d", cfg.Server.Port))
	}
	if cfg.Transport.WebSocket.Enabled {
		if cfg.Transport.WebSocket.Port <= 0 || cfg.Transport.WebSocket.Port > 65535 {
			return errors.New(errors.KindConfig, "loader.validate",
				fmt.Sprintf("websocket port out of range: %d", cfg.Transport.WebSocket.Port))
		}
	}
	if cfg.Security.Enabled {
		if cfg.Security.MaxAttempts <= 0 {
			return errors.New(errors.KindConfig, "loader.validate", "security.max_attempts must be positive")
		}
		if cfg.Security.FailureWindow <= 0 || cfg.Security.LockDuration <= 0 {
			return errors.New(errors.KindConfig, "loader.validate", "security windows must be positive")
		}
	}
	if cfg.Store.Driver == "redis" && cfg.Store.Redis.Addr == "" {
		return errors.New(errors.KindConfig, "loader.validate", "redis store requires an address")
	}
	return nil
}
