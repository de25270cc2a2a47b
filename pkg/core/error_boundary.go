package core

import (
	"github.com/go-drift/retain/pkg/errors"
)

// ErrorBoundary catches build errors from descendant widgets and displays
// a fallback widget instead of failing the update cycle. This provides
// scoped error handling for subtrees of the widget tree.
//
// Example:
//
//	core.ErrorBoundary{
//	    OnError: func(err *errors.BuildError) {
//	        logger.Warn("widget failed", "err", err)
//	    },
//	    Fallback: func(err *errors.BuildError) core.Widget {
//	        return Label{Text: "Failed to load"}
//	    },
//	    Child: RiskyContent{},
//	}
//
// Both ErrorBoundary and *ErrorBoundary may be placed in a tree.
//
// The failing subtree is unmounted once the failed build has unwound, and
// the fallback is mounted in its place. A boundary already showing its
// fallback lets further errors propagate to the next boundary up.
type ErrorBoundary struct {
	// Child is the widget tree to wrap with error handling.
	Child Widget
	// Fallback creates the widget shown once an error is caught.
	// If nil, the boundary renders nothing.
	Fallback func(err *errors.BuildError) Widget
	// OnError is called when an error is caught. Use for logging/analytics.
	OnError func(err *errors.BuildError)
	// WidgetKey is an optional key for the widget. Changing the key forces
	// the boundary to be recreated, clearing any captured error.
	WidgetKey any
}

func (b ErrorBoundary) CreateElement() Element { return &ErrorBoundaryElement{} }

func (b ErrorBoundary) Key() any { return b.WidgetKey }

// ErrorBoundaryElement hosts an ErrorBoundary.
type ErrorBoundaryElement struct {
	elementBase
	child    Element
	captured *errors.BuildError
	pending  *errors.BuildError
}

func (e *ErrorBoundaryElement) Mount(parent Element, slot any) {
	e.mountBase(parent, slot)
	e.dirty = true
	e.rebuildNow()
}

func (e *ErrorBoundaryElement) Update(newWidget Widget) {
	e.widget = newWidget
	e.dirty = true
	e.rebuildNow()
}

func (e *ErrorBoundaryElement) Unmount() {
	e.beginUnmount()
	if e.child != nil {
		e.child.Unmount()
		e.child = nil
	}
	e.pending = nil
	e.finishUnmount()
}

func (e *ErrorBoundaryElement) performRebuild() {
	e.child = e.updateComponentChild(e.child, e.childWidget())
}

func (e *ErrorBoundaryElement) childWidget() Widget {
	boundary := e.config()
	if e.captured == nil {
		return boundary.Child
	}
	if boundary.Fallback == nil {
		return nil
	}
	return boundary.Fallback(e.captured)
}

// config returns the boundary settings from the value or pointer widget form.
func (e *ErrorBoundaryElement) config() ErrorBoundary {
	switch w := e.widget.(type) {
	case ErrorBoundary:
		return w
	case *ErrorBoundary:
		if w != nil {
			return *w
		}
	}
	return ErrorBoundary{}
}

func (e *ErrorBoundaryElement) VisitChildren(visitor func(Element) bool) {
	if e.child != nil {
		visitor(e.child)
	}
}

// CaptureError implements ErrorBoundaryCapture.
func (e *ErrorBoundaryElement) CaptureError(err *errors.BuildError) bool {
	if e.lifecycle != LifecycleActive || e.captured != nil || e.owner == nil {
		return false
	}
	if e.pending != nil {
		return true
	}
	e.pending = err
	if boundary := e.config(); boundary.OnError != nil {
		boundary.OnError(err)
	}
	e.owner.scheduleFallback(e)
	return true
}

// applyFallback replaces the failed subtree with the fallback. The old child
// is always unmounted, even when the fallback has the same type.
func (e *ErrorBoundaryElement) applyFallback() {
	if e.pending == nil {
		return
	}
	e.captured, e.pending = e.pending, nil
	if e.child != nil {
		e.child.Unmount()
		e.child = nil
		e.renderChildChanged()
	}
	e.child = e.updateComponentChild(nil, e.childWidget())
}

// Err returns the captured error, or nil while the child is shown.
func (e *ErrorBoundaryElement) Err() *errors.BuildError {
	return e.captured
}

// Reset clears the captured error and rebuilds the original child on the
// next flush.
func (e *ErrorBoundaryElement) Reset() {
	if e.captured == nil {
		return
	}
	e.captured = nil
	if e.child != nil {
		e.child.Unmount()
		e.child = nil
		e.renderChildChanged()
	}
	e.MarkNeedsBuild()
}

// ErrorBoundaryOf returns the nearest enclosing boundary element, or nil.
func ErrorBoundaryOf(ctx BuildContext) *ErrorBoundaryElement {
	found := ctx.FindAncestor(func(e Element) bool {
		_, ok := e.(*ErrorBoundaryElement)
		return ok
	})
	if found == nil {
		return nil
	}
	return found.(*ErrorBoundaryElement)
}
