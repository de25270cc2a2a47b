package errors

import (
	"log/slog"
)

// LogHandler is an ErrorHandler that writes errors through a structured logger.
type LogHandler struct {
	// Logger receives the records. Nil means slog.Default().
	Logger *slog.Logger
	// Verbose enables detailed output including stack traces.
	Verbose bool
}

func (h *LogHandler) logger() *slog.Logger {
	if h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}

func (h *LogHandler) withStack(attrs []any, stack string) []any {
	if h.Verbose && stack != "" {
		attrs = append(attrs, "stack", stack)
	}
	return attrs
}

// HandleError logs a FrameworkError.
func (h *LogHandler) HandleError(err *FrameworkError) {
	if err == nil {
		return
	}
	attrs := []any{"op", err.Op, "kind", err.Kind.String(), "err", err.Err}
	h.logger().Error("framework error", h.withStack(attrs, err.StackTrace)...)
}

// HandlePanic logs a PanicError.
func (h *LogHandler) HandlePanic(err *PanicError) {
	if err == nil {
		return
	}
	attrs := []any{"op", err.Op, "value", err.Value}
	h.logger().Error("recovered panic", h.withStack(attrs, err.StackTrace)...)
}

// HandleBuildError logs a BuildError.
func (h *LogHandler) HandleBuildError(err *BuildError) {
	if err == nil {
		return
	}
	attrs := []any{"widget", err.Widget, "element", err.Element, "err", err.Error()}
	h.logger().Warn("build failed", h.withStack(attrs, err.StackTrace)...)
}

// HandleInvariant logs an InvariantError. Stack traces are always included.
func (h *LogHandler) HandleInvariant(err *InvariantError) {
	if err == nil {
		return
	}
	h.logger().Error("element tree invariant violated",
		"kind", err.Kind.String(),
		"element", err.Element,
		"detail", err.Detail,
		"stack", err.StackTrace,
	)
}

// HandleTeardown logs a TeardownError.
func (h *LogHandler) HandleTeardown(err *TeardownError) {
	if err == nil {
		return
	}
	attrs := []any{"widget", err.Widget, "element", err.Element, "value", err.Recovered}
	h.logger().Error("teardown failed", h.withStack(attrs, err.StackTrace)...)
}
