package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/go-drift/retain/pkg/config"
	"github.com/go-drift/retain/pkg/errors"
)

func TestNew_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger := New(config.LoggingConfig{Level: "debug", Format: "json"}, &buf)

	logger.Debug("cycle", "rebuilds", 3)

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("expected a JSON line, got %q: %v", buf.String(), err)
	}
	if entry["msg"] != "cycle" || entry["component"] != "retain" {
		t.Errorf("entry = %v", entry)
	}
	if entry["rebuilds"] != float64(3) {
		t.Errorf("rebuilds = %v", entry["rebuilds"])
	}
}

func TestNew_LevelFilters(t *testing.T) {
	var buf bytes.Buffer
	logger := New(config.LoggingConfig{Level: "warn"}, &buf)

	logger.Info("dropped")
	logger.Warn("kept")

	out := buf.String()
	if strings.Contains(out, "dropped") || !strings.Contains(out, "kept") {
		t.Errorf("unexpected output %q", out)
	}
}

func TestNew_BadLevelFallsBackToInfo(t *testing.T) {
	var buf bytes.Buffer
	logger := New(config.LoggingConfig{Level: "loud"}, &buf)

	logger.Debug("hidden")
	logger.Info("shown")
	if out := buf.String(); strings.Contains(out, "hidden") || !strings.Contains(out, "shown") {
		t.Errorf("unexpected output %q", out)
	}
}

func TestInstall(t *testing.T) {
	var buf bytes.Buffer
	Install(New(config.LoggingConfig{}, &buf), false)
	defer errors.SetHandler(nil)

	errors.ReportBuildError(&errors.BuildError{Widget: "app.Header", Recovered: "boom"})
	if out := buf.String(); !strings.Contains(out, "build failed") || !strings.Contains(out, "app.Header") {
		t.Errorf("unexpected output %q", out)
	}
}
