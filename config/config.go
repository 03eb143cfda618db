package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
)

type Config struct {
	Env      string `env:"ENV" envDefault:"local" validate:"required,oneof=local staging production"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info" validate:"oneof=debug info warn error"`

	APIBaseURL     string `env:"API_BASE_URL" envDefault:"http://localhost:8080" validate:"required,url"`
	HTTPTimeoutSec int    `env:"HTTP_TIMEOUT_SEC" envDefault:"15" validate:"min=1,max=120"`

	// StateDir holds the persisted session token and per-account carts.
	// Empty means "under the OS user config directory".
	StateDir string `env:"STATE_DIR"`

	// MetricsPort is only honored by long-running commands (watch,
	// oauth-login); empty disables the /metrics listener.
	MetricsPort string `env:"METRICS_PORT"`

	OAuthCallbackPort int    `env:"OAUTH_CALLBACK_PORT" envDefault:"8910" validate:"min=1,max=65535"`
	OAuthProviderPath string `env:"OAUTH_PROVIDER_PATH" envDefault:"/oauth2/authorization/google"`

	WatchIntervalSec int `env:"WATCH_INTERVAL_SEC" envDefault:"300" validate:"min=5"`
}

func Load() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	if cfg.StateDir == "" {
		dir, err := defaultStateDir()
		if err != nil {
			return nil, err
		}
		cfg.StateDir = dir
	}

	return cfg, nil
}

func (c *Config) SlogLevel() slog.Level {
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

func defaultStateDir() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("resolve user config dir: %w", err)
	}
	return filepath.Join(base, "tienda"), nil
}
