package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"alphaseeker/pkg/core/store"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "alphaseeker.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_YAMLOverDefaults(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9090
history:
  backend: badger
  path: data/badger
model:
  timeout: 45s
agents:
  active_provider: deepseek
  providers:
    deepseek:
      model: deepseek-reasoner
      timeout: 30s
  agents:
    challenge:
      provider: claude
      options:
        temperature: 0.7
`)
	t.Setenv("LOG_LEVEL", "")
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 180*time.Second, cfg.Server.RequestTimeout)
	assert.Equal(t, store.BackendBadger, cfg.History.Backend)
	assert.Equal(t, 45*time.Second, cfg.Model.Timeout)
	assert.Equal(t, "deepseek", cfg.Agents.ActiveProvider)
	assert.Equal(t, "deepseek-reasoner", cfg.Agents.Providers["deepseek"].Model)
	assert.Equal(t, 30*time.Second, cfg.Agents.Providers["deepseek"].Timeout)
	assert.Equal(t, "claude", cfg.Agents.Agents["challenge"].Provider)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoad_EnvOverrides(t *testing.T) {
	path := writeConfig(t, "log:\n  pretty: false\n")
	t.Setenv("ALPHASEEKER_PORT", "7000")
	t.Setenv("ALPHASEEKER_HISTORY_PATH", "/tmp/h.jsonl")
	t.Setenv("ALPHASEEKER_MODEL_TIMEOUT", "10s")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_PRETTY", "true")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 7000, cfg.Server.Port)
	assert.Equal(t, "/tmp/h.jsonl", cfg.History.Path)
	assert.Equal(t, 10*time.Second, cfg.Model.Timeout)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.True(t, cfg.Log.Pretty)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoad_BadYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "server: [1, 2"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults", func(*Config) {}, ""},
		{"bad port", func(c *Config) { c.Server.Port = 0 }, "server.port"},
		{"unknown backend", func(c *Config) { c.History.Backend = "sqlite" }, "unknown history backend"},
		{"jsonl without path", func(c *Config) { c.History.Path = "" }, "history.path"},
		{"postgres without url", func(c *Config) { c.History.Backend = store.BackendPostgres }, "database_url"},
		{"postgres with url", func(c *Config) {
			c.History.Backend = store.BackendPostgres
			c.History.DatabaseURL = "postgres://localhost/alphaseeker"
		}, ""},
		{"zero model timeout", func(c *Config) { c.Model.Timeout = 0 }, "model.timeout"},
		{"request shorter than model", func(c *Config) { c.Server.RequestTimeout = time.Minute }, "request_timeout"},
		{"no request timeout", func(c *Config) { c.Server.RequestTimeout = 0 }, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
