package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadOptional_Missing(t *testing.T) {
	cfg, path, err := LoadOptional(t.TempDir())
	require.NoError(t, err)
	assert.Empty(t, path)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_YAML(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "retain.yaml", `
debug:
  checks: false
  slowCycle: 8ms
logging:
  level: debug
  format: json
scheduler:
  maxFlushPasses: 8
framework:
  minVersion: v0.3.0
`)

	cfg, path, err := LoadOptional(dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "retain.yaml"), path)
	assert.False(t, cfg.Debug.Checks)
	assert.Equal(t, 8*time.Millisecond, cfg.Debug.SlowCycle.Std())
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, 8, cfg.Scheduler.MaxFlushPasses)
	// Untouched keys keep their defaults.
	assert.Equal(t, 100, cfg.Debug.TreeDepth)
}

func TestLoad_TOML(t *testing.T) {
	path := writeFile(t, t.TempDir(), "retain.toml", `
[logging]
level = "warn"

[scheduler]
maxFlushPasses = 3

[debug]
slowCycle = "20ms"
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.Logging.Level)
	assert.Equal(t, "text", cfg.Logging.Format)
	assert.Equal(t, 3, cfg.Scheduler.MaxFlushPasses)
	assert.Equal(t, 20*time.Millisecond, cfg.Debug.SlowCycle.Std())
}

func TestLoad_EmptyYAML(t *testing.T) {
	path := writeFile(t, t.TempDir(), "retain.yaml", "")
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
		want    string
	}{
		{"unknown yaml key", "retain.yaml", "scheduler:\n  passes: 3\n", "field passes not found"},
		{"unknown toml key", "retain.toml", "[scheduler]\npasses = 3\n", "failed to parse retain.toml"},
		{"bad level", "retain.yaml", "logging:\n  level: loud\n", "logging.level"},
		{"bad format", "retain.yaml", "logging:\n  format: xml\n", "unknown format"},
		{"negative passes", "retain.toml", "[scheduler]\nmaxFlushPasses = -1\n", "must not be negative"},
		{"bad duration", "retain.yaml", "debug:\n  slowCycle: soon\n", "invalid duration"},
		{"unsupported", "retain.json", "{}", "unsupported config format"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, t.TempDir(), tt.file, tt.content)
			_, err := Load(path)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestCheckVersion(t *testing.T) {
	assert.NoError(t, CheckVersion(""))
	assert.NoError(t, CheckVersion("v0.1.0"))
	assert.NoError(t, CheckVersion("0.4.0"))
	assert.ErrorIs(t, CheckVersion("v1.0.0"), ErrIncompatible)
	assert.ErrorContains(t, CheckVersion("latest"), "not a semantic version")
}

func TestWatch_Reloads(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "retain.yaml", "scheduler:\n  maxFlushPasses: 4\n")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reloads := make(chan *Config, 4)
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, path, func(cfg *Config, err error) {
			if err == nil {
				reloads <- cfg
			}
		})
	}()

	// Give the watcher time to register before writing.
	time.Sleep(100 * time.Millisecond)
	writeFile(t, dir, "retain.yaml", "scheduler:\n  maxFlushPasses: 9\n")

	select {
	case cfg := <-reloads:
		assert.Equal(t, 9, cfg.Scheduler.MaxFlushPasses)
	case <-time.After(5 * time.Second):
		t.Fatal("no reload after the file changed")
	}

	cancel()
	require.NoError(t, <-done)
}
