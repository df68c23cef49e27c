package config

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("API_BASE_URL", "")
	t.Setenv("HTTP_TIMEOUT", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Env != "development" {
		t.Errorf("expected default env development, got %s", cfg.Env)
	}
	if cfg.HTTPRetryCount != 0 {
		t.Errorf("expected no retries by default, got %d", cfg.HTTPRetryCount)
	}
	if cfg.SandboxPort != "8000" {
		t.Errorf("expected default sandbox port 8000, got %s", cfg.SandboxPort)
	}
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("API_BASE_URL", "https://hospital.example.com/api/")
	t.Setenv("HTTP_TIMEOUT", "3s")
	t.Setenv("HTTP_RETRY_COUNT", "2")
	t.Setenv("SESSION_DB_PATH", "/tmp/s.db")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.APIBaseURL != "https://hospital.example.com/api" {
		t.Errorf("expected trailing slash trimmed, got %s", cfg.APIBaseURL)
	}
	if cfg.HTTPTimeout != 3*time.Second {
		t.Errorf("expected 3s timeout, got %s", cfg.HTTPTimeout)
	}
	if cfg.HTTPRetryCount != 2 {
		t.Errorf("expected 2 retries, got %d", cfg.HTTPRetryCount)
	}
	if cfg.SessionDBPath != "/tmp/s.db" {
		t.Errorf("unexpected session path %s", cfg.SessionDBPath)
	}
}

func validConfig() *Config {
	return &Config{
		APIBaseURL:     "http://localhost:8000/api",
		SessionDBPath:  "s.db",
		Env:            "development",
		LogLevel:       "info",
		HTTPTimeout:    time.Second,
		HTTPRetryCount: 0,
	}
}

func TestConfig_Validate(t *testing.T) {
	if err := validConfig().Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"relative url", func(c *Config) { c.APIBaseURL = "/api" }},
		{"http in production", func(c *Config) { c.Env = "production"; c.SandboxSigningKey = "k" }},
		{"no session path", func(c *Config) { c.SessionDBPath = "" }},
		{"zero timeout", func(c *Config) { c.HTTPTimeout = 0 }},
		{"negative retries", func(c *Config) { c.HTTPRetryCount = -1 }},
		{"bad level", func(c *Config) { c.LogLevel = "loud" }},
		{"production without key", func(c *Config) {
			c.Env = "production"
			c.APIBaseURL = "https://api.example.com"
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validConfig()
			tt.mutate(c)
			if err := c.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestConfig_IsDev(t *testing.T) {
	c := &Config{Env: "development"}
	if !c.IsDev() {
		t.Error("expected IsDev() to return true for development")
	}

	c.Env = "production"
	if c.IsDev() || !c.IsProduction() {
		t.Error("expected production mode")
	}
}

func TestConfig_Level(t *testing.T) {
	if lvl := (&Config{LogLevel: "DEBUG"}).Level(); lvl != zerolog.DebugLevel {
		t.Errorf("expected debug, got %s", lvl)
	}
	if lvl := (&Config{LogLevel: "nonsense"}).Level(); lvl != zerolog.InfoLevel {
		t.Errorf("expected info fallback, got %s", lvl)
	}
}

func TestConfig_SigningKey(t *testing.T) {
	if len((&Config{}).SigningKey()) == 0 {
		t.Error("expected development key")
	}
	if string((&Config{SandboxSigningKey: "abc"}).SigningKey()) != "abc" {
		t.Error("expected configured key")
	}
}
