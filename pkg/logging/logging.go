// Package logging builds the framework's structured logger from config.
package logging

import (
	"io"
	"log/slog"
	"os"

	"github.com/go-drift/retain/pkg/config"
	"github.com/go-drift/retain/pkg/errors"
)

// New returns a logger writing to w (stderr when nil) with the level and
// format from cfg. Unparseable levels fall back to info; Validate reports
// them earlier.
func New(cfg config.LoggingConfig, w io.Writer) *slog.Logger {
	if w == nil {
		w = os.Stderr
	}
	level, err := cfg.SlogLevel()
	if err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler).With("component", "retain")
}

// Install routes framework error reports through logger. Stack traces are
// included when verbose is set.
func Install(logger *slog.Logger, verbose bool) {
	errors.SetHandler(&errors.LogHandler{Logger: logger, Verbose: verbose})
}

// Discard returns a logger that drops every record.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}
