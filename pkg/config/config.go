// Package config loads the runtime configuration of a retain application
// from retain.yaml or retain.toml.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"golang.org/x/mod/semver"
	"gopkg.in/yaml.v3"
)

// FrameworkVersion is the version of this module that configs are checked
// against.
const FrameworkVersion = "v0.4.0"

// Names searched by LoadOptional, in order.
var fileNames = []string{"retain.yaml", "retain.yml", "retain.toml"}

// ErrIncompatible is returned when a config requires a newer framework.
var ErrIncompatible = errors.New("config requires a newer framework version")

// Config represents the optional retain.yaml / retain.toml configuration.
type Config struct {
	Debug     DebugConfig     `yaml:"debug" toml:"debug"`
	Logging   LoggingConfig   `yaml:"logging" toml:"logging"`
	Scheduler SchedulerConfig `yaml:"scheduler" toml:"scheduler"`
	Framework FrameworkConfig `yaml:"framework" toml:"framework"`
}

// DebugConfig controls debug checks and the diagnostics endpoint.
type DebugConfig struct {
	// Checks enables ancestor cycle detection on mount.
	Checks bool `yaml:"checks" toml:"checks"`
	// Addr is the listen address of the diagnostics server. Empty disables it.
	Addr string `yaml:"addr,omitempty" toml:"addr,omitempty"`
	// TreeDepth limits element tree snapshots.
	TreeDepth int `yaml:"treeDepth,omitempty" toml:"treeDepth,omitempty"`
	// Reports is how many frame reports the runner keeps.
	Reports int `yaml:"reports,omitempty" toml:"reports,omitempty"`
	// SlowCycle is the duration above which a cycle counts as slow.
	SlowCycle Duration `yaml:"slowCycle,omitempty" toml:"slowCycle,omitempty"`
}

// LoggingConfig selects the framework logger.
type LoggingConfig struct {
	Level  string `yaml:"level" toml:"level"`
	Format string `yaml:"format" toml:"format"`
}

// SchedulerConfig tunes the build scheduler.
type SchedulerConfig struct {
	MaxFlushPasses int `yaml:"maxFlushPasses" toml:"maxFlushPasses"`
}

// FrameworkConfig pins the framework version an application was written for.
type FrameworkConfig struct {
	MinVersion string `yaml:"minVersion,omitempty" toml:"minVersion,omitempty"`
}

// Duration is a time.Duration written as a Go duration string ("16ms").
type Duration time.Duration

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", text, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Debug: DebugConfig{
			Checks:    true,
			TreeDepth: 100,
			Reports:   240,
			SlowCycle: Duration(16667 * time.Microsecond),
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Scheduler: SchedulerConfig{
			MaxFlushPasses: 64,
		},
	}
}

// Load reads and validates the config file at path. The format is chosen by
// extension. Keys missing from the file keep their defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", filepath.Base(path), err)
	}
	cfg := Default()
	if err := decode(path, data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", filepath.Base(path), err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid %s: %w", filepath.Base(path), err)
	}
	return cfg, nil
}

// LoadOptional reads the first config file found in dir. It returns the
// defaults and an empty path when there is none.
func LoadOptional(dir string) (*Config, string, error) {
	for _, name := range fileNames {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return nil, "", fmt.Errorf("failed to stat %s: %w", name, err)
		}
		cfg, err := Load(path)
		if err != nil {
			return nil, "", err
		}
		return cfg, path, nil
	}
	return Default(), "", nil
}

func decode(path string, data []byte, cfg *Config) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
			return err
		}
		return nil
	case ".toml":
		dec := toml.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		return dec.Decode(cfg)
	default:
		return fmt.Errorf("unsupported config format %q", filepath.Ext(path))
	}
}

// Validate checks the config for values the framework cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if _, err := c.Logging.SlogLevel(); err != nil {
		errs = append(errs, err)
	}
	switch c.Logging.Format {
	case "", "text", "json":
	default:
		errs = append(errs, fmt.Errorf("logging.format: unknown format %q", c.Logging.Format))
	}
	if c.Scheduler.MaxFlushPasses < 0 {
		errs = append(errs, fmt.Errorf("scheduler.maxFlushPasses: must not be negative, got %d", c.Scheduler.MaxFlushPasses))
	}
	if c.Debug.TreeDepth < 0 {
		errs = append(errs, fmt.Errorf("debug.treeDepth: must not be negative, got %d", c.Debug.TreeDepth))
	}
	if c.Debug.Reports < 0 {
		errs = append(errs, fmt.Errorf("debug.reports: must not be negative, got %d", c.Debug.Reports))
	}
	if err := CheckVersion(c.Framework.MinVersion); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// CheckVersion reports whether FrameworkVersion satisfies want. An empty
// want always does.
func CheckVersion(want string) error {
	want = strings.TrimSpace(want)
	if want == "" {
		return nil
	}
	if !strings.HasPrefix(want, "v") {
		want = "v" + want
	}
	if !semver.IsValid(want) {
		return fmt.Errorf("framework.minVersion: %q is not a semantic version", want)
	}
	if semver.Compare(FrameworkVersion, want) < 0 {
		return fmt.Errorf("%w: need %s, have %s", ErrIncompatible, want, FrameworkVersion)
	}
	return nil
}

// SlogLevel parses Level. An empty level means info.
func (l LoggingConfig) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if l.Level == "" {
		return slog.LevelInfo, nil
	}
	if err := level.UnmarshalText([]byte(l.Level)); err != nil {
		return 0, fmt.Errorf("logging.level: %w", err)
	}
	return level, nil
}
