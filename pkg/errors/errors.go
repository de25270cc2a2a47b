// Package errors provides structured error handling for the retain framework.
//
// Errors fall into two classes. A [BuildError] means a widget build could not
// complete; it is recoverable and is routed to the nearest error boundary.
// An [InvariantError] means the element tree contract was broken (duplicate
// sibling keys, a cycle, a double mount or unmount); it aborts the update
// cycle. [TeardownError] collects failures from state disposal, which never
// stop the rest of a subtree from unmounting.
package errors

import (
	"errors"
	"fmt"
	"time"
)

// ErrNoProvider is wrapped by a BuildError when a build requires inherited
// data that no ancestor provides.
var ErrNoProvider = errors.New("no inherited provider in ancestor chain")

// ErrorKind identifies the category of an error.
type ErrorKind int

const (
	// KindUnknown indicates an error of unknown type.
	KindUnknown ErrorKind = iota
	// KindBuild indicates a build-time widget error.
	KindBuild
	// KindInvariant indicates a broken element tree contract.
	KindInvariant
	// KindTeardown indicates a failure while disposing state.
	KindTeardown
	// KindPanic indicates a recovered panic.
	KindPanic
	// KindConfig indicates a configuration error.
	KindConfig
)

func (k ErrorKind) String() string {
	switch k {
	case KindBuild:
		return "build"
	case KindInvariant:
		return "invariant"
	case KindTeardown:
		return "teardown"
	case KindPanic:
		return "panic"
	case KindConfig:
		return "config"
	default:
		return "unknown"
	}
}

// FrameworkError represents a structured error outside the build phase.
type FrameworkError struct {
	// Op is the operation that failed (e.g., "engine.StepFrame").
	Op string
	// Kind categorizes the error.
	Kind ErrorKind
	// Err is the underlying error.
	Err error
	// StackTrace contains the call stack at the time of the error.
	StackTrace string
	// Timestamp is when the error occurred.
	Timestamp time.Time
}

func (e *FrameworkError) Error() string {
	return fmt.Sprintf("%s [%s]: %v", e.Op, e.Kind, e.Err)
}

func (e *FrameworkError) Unwrap() error {
	return e.Err
}

// PanicError represents a recovered panic.
type PanicError struct {
	// Op is the operation that panicked (e.g., "engine.StepFrame").
	Op string
	// Value is the value passed to panic().
	Value any
	// StackTrace contains the call stack at the time of the panic.
	StackTrace string
	// Timestamp is when the panic occurred.
	Timestamp time.Time
}

func (e *PanicError) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("panic in %s: %v", e.Op, e.Value)
	}
	return fmt.Sprintf("panic: %v", e.Value)
}

// BuildError represents a failure during widget build.
type BuildError struct {
	// Widget is the type name of the widget that failed.
	Widget string
	// Element is the element type (StatelessElement, StatefulElement, etc.).
	Element string
	// Recovered is the panic value (nil for regular errors).
	Recovered any
	// Err is the underlying error (nil for non-error panics).
	Err error
	// StackTrace contains the call stack at the time of the error.
	StackTrace string
	// Timestamp is when the error occurred.
	Timestamp time.Time
}

func (e *BuildError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("error in %s.Build(): %v", e.Widget, e.Err)
	}
	if e.Recovered != nil {
		return fmt.Sprintf("panic in %s.Build(): %v", e.Widget, e.Recovered)
	}
	return fmt.Sprintf("unknown error in %s.Build()", e.Widget)
}

func (e *BuildError) Unwrap() error {
	return e.Err
}

// InvariantKind names the element tree contract that was violated.
type InvariantKind int

const (
	// InvariantDuplicateKey is two siblings declaring the same key.
	InvariantDuplicateKey InvariantKind = iota + 1
	// InvariantCycle is an element appearing in its own ancestor chain.
	InvariantCycle
	// InvariantDoubleMount is Mount called on an element that was already mounted.
	InvariantDoubleMount
	// InvariantDoubleUnmount is Unmount called on an element that is not mounted.
	InvariantDoubleUnmount
)

func (k InvariantKind) String() string {
	switch k {
	case InvariantDuplicateKey:
		return "duplicate key"
	case InvariantCycle:
		return "element cycle"
	case InvariantDoubleMount:
		return "double mount"
	case InvariantDoubleUnmount:
		return "double unmount"
	default:
		return "invariant"
	}
}

// InvariantError reports a programming-contract violation in the element
// tree. It is never recovered locally; the cycle that raised it is aborted.
type InvariantError struct {
	Kind InvariantKind
	// Element is the type of the element where the violation was detected.
	Element string
	// Detail describes the violation (the duplicate key, etc.).
	Detail string
	// StackTrace contains the call stack at the time of detection.
	StackTrace string
	// Timestamp is when the violation was detected.
	Timestamp time.Time
}

func (e *InvariantError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("reconciliation invariant violated (%s) in %s: %s", e.Kind, e.Element, e.Detail)
	}
	return fmt.Sprintf("reconciliation invariant violated (%s) in %s", e.Kind, e.Element)
}

// TeardownError represents a failure while an element's state was torn down.
type TeardownError struct {
	// Element is the element type being unmounted.
	Element string
	// Widget is the widget type of that element.
	Widget string
	// Recovered is the panic value raised during teardown.
	Recovered any
	// StackTrace contains the call stack at the time of the failure.
	StackTrace string
	// Timestamp is when the failure occurred.
	Timestamp time.Time
}

func (e *TeardownError) Error() string {
	return fmt.Sprintf("teardown of %s (%s) failed: %v", e.Widget, e.Element, e.Recovered)
}

// Unwrap exposes the recovered value when it is an error.
func (e *TeardownError) Unwrap() error {
	if err, ok := e.Recovered.(error); ok {
		return err
	}
	return nil
}

// ErrorHandler receives errors reported by the framework.
type ErrorHandler interface {
	// HandleError is called when a framework operation fails.
	HandleError(err *FrameworkError)
	// HandlePanic is called when a panic is recovered.
	HandlePanic(err *PanicError)
	// HandleBuildError is called when a widget build fails.
	HandleBuildError(err *BuildError)
	// HandleInvariant is called when an element tree invariant is violated.
	HandleInvariant(err *InvariantError)
	// HandleTeardown is called when state disposal fails.
	HandleTeardown(err *TeardownError)
}
