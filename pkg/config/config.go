// Package config loads service configuration from YAML, .env and the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"

	"alphaseeker/pkg/core/agent"
	"alphaseeker/pkg/core/store"
	"alphaseeker/pkg/logger"
)

// DefaultPath is read when no config file is given. It may be absent.
const DefaultPath = "config/alphaseeker.yaml"

type Config struct {
	Server     ServerConfig  `yaml:"server"`
	Log        logger.Config `yaml:"log"`
	History    store.Config  `yaml:"history"`
	Model      ModelConfig   `yaml:"model"`
	Agents     agent.Config  `yaml:"agents"`
	PromptsDir string        `yaml:"prompts_dir"` // overrides the built-in prompt library when set
}

type ServerConfig struct {
	Port           int           `yaml:"port"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	AllowedOrigins []string      `yaml:"allowed_origins"`
}

type ModelConfig struct {
	Timeout time.Duration `yaml:"timeout"`
}

// Default returns the configuration used when nothing else is set.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:           8000,
			RequestTimeout: 180 * time.Second,
			AllowedOrigins: []string{"*"},
		},
		Log:     logger.Config{Level: "info"},
		History: store.Config{Backend: store.BackendJSONL, Path: "data/history.jsonl"},
		Model:   ModelConfig{Timeout: 120 * time.Second},
	}
}

// Load reads .env, then the YAML file at path over the defaults, then
// environment overrides. An empty path means DefaultPath, which may be missing.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := Default()
	optional := path == ""
	if optional {
		path = DefaultPath
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	case optional && errors.Is(err, os.ErrNotExist):
	default:
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Server.Port = getEnvAsInt("ALPHASEEKER_PORT", c.Server.Port)
	c.History.Backend = getEnv("ALPHASEEKER_HISTORY_BACKEND", c.History.Backend)
	c.History.Path = getEnv("ALPHASEEKER_HISTORY_PATH", c.History.Path)
	c.History.DatabaseURL = getEnv("DATABASE_URL", c.History.DatabaseURL)
	c.Model.Timeout = getEnvAsDuration("ALPHASEEKER_MODEL_TIMEOUT", c.Model.Timeout)
	c.Agents.ActiveProvider = getEnv("ALPHASEEKER_PROVIDER", c.Agents.ActiveProvider)
	c.PromptsDir = getEnv("ALPHASEEKER_PROMPTS_DIR", c.PromptsDir)
	c.Log.Level = getEnv("LOG_LEVEL", c.Log.Level)
	c.Log.Pretty = getEnvAsBool("LOG_PRETTY", c.Log.Pretty)
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d is out of range", c.Server.Port)
	}
	switch c.History.Backend {
	case store.BackendJSONL:
		if c.History.Path == "" {
			return errors.New("history.path is required for the jsonl backend")
		}
	case store.BackendBadger:
	case store.BackendPostgres:
		if c.History.DatabaseURL == "" {
			return errors.New("history.database_url (or DATABASE_URL) is required for the postgres backend")
		}
	default:
		return fmt.Errorf("unknown history backend %q", c.History.Backend)
	}
	if c.Model.Timeout <= 0 {
		return fmt.Errorf("model.timeout must be positive, got %s", c.Model.Timeout)
	}
	if c.Server.RequestTimeout > 0 && c.Server.RequestTimeout <= c.Model.Timeout {
		return fmt.Errorf("server.request_timeout (%s) must exceed model.timeout (%s)", c.Server.RequestTimeout, c.Model.Timeout)
	}
	return nil
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
