package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

type Config struct {
	APIBaseURL        string        `mapstructure:"API_BASE_URL"`
	SessionDBPath     string        `mapstructure:"SESSION_DB_PATH"`
	Env               string        `mapstructure:"ENV"`
	LogLevel          string        `mapstructure:"LOG_LEVEL"`
	HTTPTimeout       time.Duration `mapstructure:"HTTP_TIMEOUT"`
	HTTPRetryCount    int           `mapstructure:"HTTP_RETRY_COUNT"`
	SandboxPort       string        `mapstructure:"SANDBOX_PORT"`
	SandboxSigningKey string        `mapstructure:"SANDBOX_SIGNING_KEY"`
	SandboxSeed       int64         `mapstructure:"SANDBOX_SEED"`
}

var keys = []string{
	"API_BASE_URL",
	"SESSION_DB_PATH",
	"ENV",
	"LOG_LEVEL",
	"HTTP_TIMEOUT",
	"HTTP_RETRY_COUNT",
	"SANDBOX_PORT",
	"SANDBOX_SIGNING_KEY",
	"SANDBOX_SEED",
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	v.SetDefault("API_BASE_URL", "http://localhost:8000/api")
	v.SetDefault("SESSION_DB_PATH", "hospital-session.db")
	v.SetDefault("ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("HTTP_TIMEOUT", "15s")
	v.SetDefault("HTTP_RETRY_COUNT", 0)
	v.SetDefault("SANDBOX_PORT", "8000")
	v.SetDefault("SANDBOX_SEED", 42)

	// Bind env vars explicitly so Unmarshal picks them up
	for _, k := range keys {
		v.BindEnv(k)
	}

	// .env is optional
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.APIBaseURL = strings.TrimRight(cfg.APIBaseURL, "/")

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// IsProduction returns true when the console runs against a production API.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Level parses LOG_LEVEL, falling back to info.
func (c *Config) Level() zerolog.Level {
	lvl, err := zerolog.ParseLevel(strings.ToLower(c.LogLevel))
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}

// Validate checks that the configuration is usable. Production requires an
// https API and forbids the sandbox signing key fallback.
func (c *Config) Validate() error {
	u, err := url.Parse(c.APIBaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("API_BASE_URL must be an absolute URL, got %q", c.APIBaseURL)
	}
	if c.IsProduction() && u.Scheme != "https" {
		return fmt.Errorf("API_BASE_URL must use https in production, got %q", c.APIBaseURL)
	}
	if c.SessionDBPath == "" {
		return fmt.Errorf("SESSION_DB_PATH is required")
	}
	if c.HTTPTimeout <= 0 {
		return fmt.Errorf("HTTP_TIMEOUT must be positive, got %s", c.HTTPTimeout)
	}
	if c.HTTPRetryCount < 0 || c.HTTPRetryCount > 10 {
		return fmt.Errorf("HTTP_RETRY_COUNT must be between 0 and 10, got %d", c.HTTPRetryCount)
	}
	if _, err := zerolog.ParseLevel(strings.ToLower(c.LogLevel)); err != nil {
		return fmt.Errorf("LOG_LEVEL %q is not a valid level: %w", c.LogLevel, err)
	}
	if c.IsProduction() && c.SandboxSigningKey == "" {
		return fmt.Errorf("SANDBOX_SIGNING_KEY is required in production")
	}
	return nil
}

// SigningKey returns the sandbox HMAC key, using a fixed development key when
// none is configured.
func (c *Config) SigningKey() []byte {
	if c.SandboxSigningKey == "" {
		return []byte("hospital-sandbox-development-key")
	}
	return []byte(c.SandboxSigningKey)
}
