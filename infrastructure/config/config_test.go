package config

import (
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"

	"mindmap-backend/domain/layout"
	pkgerrors "mindmap-backend/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Address)
	assert.Equal(t, layout.DefaultOptions(), cfg.Dynamic.Layout)
	assert.Equal(t, 100, cfg.Dynamic.History.Capacity)
	assert.True(t, cfg.IsDevelopment())
}

func TestLoadConfig_FileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeFile(t, path, `
environment: staging
server:
  address: ":9090"
sessions:
  max_sessions: 20
  idle_ttl: 30m
ai:
  timeout: 15s
dynamic:
  layout:
    level_spacing: 250
`)
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("SERVER_ADDRESS", ":7070")
	t.Setenv("GEMINI_API_KEY", "secret")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "staging", cfg.Environment)
	assert.Equal(t, ":7070", cfg.Server.Address, "env wins over the file")
	assert.Equal(t, 20, cfg.Sessions.MaxSessions)
	assert.Equal(t, 30*time.Minute, cfg.Sessions.IdleTTL)
	assert.Equal(t, 15*time.Second, cfg.AI.Timeout)
	assert.Equal(t, "secret", cfg.AI.APIKey)
	assert.Equal(t, 250.0, cfg.Dynamic.Layout.LevelSpacing)
	assert.Equal(t, layout.DefaultNodeSpacing, cfg.Dynamic.Layout.NodeSpacing, "unset keys keep the defaults")
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORS.AllowedOrigins)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown environment", func(c *Config) { c.Environment = "moon" }},
		{"unknown log level", func(c *Config) { c.LogLevel = "loud" }},
		{"empty address", func(c *Config) { c.Server.Address = "" }},
		{"no sessions", func(c *Config) { c.Sessions.MaxSessions = 0 }},
		{"sample rate above one", func(c *Config) { c.Observability.SampleRate = 2 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.True(t, pkgerrors.IsValidation(err))
		})
	}

	cfg := Default()
	cfg.Dynamic.History.Capacity = -1
	assert.Error(t, cfg.Validate())
	assert.NoError(t, Default().Validate())
}

func TestWatcher_Reload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dynamic.yaml")
	writeFile(t, path, "history:\n  capacity: 10\n")

	base := Default().Dynamic
	w, err := NewWatcher(path, base, zap.NewNop())
	require.NoError(t, err)
	defer w.Stop()

	assert.Equal(t, 10, w.HistoryCapacity())
	assert.Equal(t, layout.DefaultOptions(), w.LayoutOptions())

	var calls atomic.Int32
	w.OnChange(func(old, updated DynamicConfig) { calls.Add(1) })
	w.Start()

	writeFile(t, path, "history:\n  capacity: 25\nlayout:\n  node_spacing: 80\n")
	require.Eventually(t, func() bool { return w.HistoryCapacity() == 25 }, 3*time.Second, 20*time.Millisecond)
	assert.Equal(t, 80.0, w.LayoutOptions().NodeSpacing)
	assert.Eventually(t, func() bool { return calls.Load() >= 1 }, time.Second, 10*time.Millisecond)
}

func TestWatcher_KeepsCurrentOnInvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dynamic.yaml")
	writeFile(t, path, "history:\n  capacity: 10\n")

	w, err := NewWatcher(path, Default().Dynamic, zap.NewNop())
	require.NoError(t, err)
	defer w.Stop()

	writeFile(t, path, "history:\n  capacity: -5\n")
	w.reload()
	assert.Equal(t, 10, w.HistoryCapacity())

	writeFile(t, path, "history: [")
	w.reload()
	assert.Equal(t, 10, w.HistoryCapacity())
}

func TestNewWatcher_MissingFile(t *testing.T) {
	_, err := NewWatcher(filepath.Join(t.TempDir(), "absent.yaml"), Default().Dynamic, nil)
	assert.Error(t, err)
}
