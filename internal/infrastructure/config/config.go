package config

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Shell     ShellConfig
	AI        AIConfig
	Logging   LogConfig
	RateLimit RateLimitConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port string `envconfig:"PORT" default:"8090"`
	Host string `envconfig:"HOST" default:"127.0.0.1"`
}

// ShellConfig holds shell selection for command and PTY execution.
type ShellConfig struct {
	// Preferred is tried first for PTY sessions; a fixed bash path keeps
	// prompt output stable across user shell customizations.
	Preferred string `envconfig:"SHELL_PREFERRED" default:"/bin/bash"`
	Fallback  string `envconfig:"SHELL_FALLBACK" default:"/bin/zsh"`
}

// AIConfig holds the model-serving endpoint configuration.
type AIConfig struct {
	Host  string `envconfig:"AI_HOST" default:"http://localhost:11434"`
	Model string `envconfig:"AI_MODEL" default:"llama3.2"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info"`
	Development bool   `envconfig:"LOG_DEV" default:"false"`
}

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond int  `envconfig:"RATE_LIMIT_RPS" default:"100"`
	Burst             int  `envconfig:"RATE_LIMIT_BURST" default:"200"`
	Enabled           bool `envconfig:"RATE_LIMIT_ENABLED" default:"true"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("AITERM", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}

// LoadOrDefault loads configuration from environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port: "8090",
			Host: "127.0.0.1",
		},
		Shell: ShellConfig{
			Preferred: "/bin/bash",
			Fallback:  "/bin/zsh",
		},
		AI: AIConfig{
			Host:  "http://localhost:11434",
			Model: "llama3.2",
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 100,
			Burst:             200,
			Enabled:           true,
		},
	}
}
