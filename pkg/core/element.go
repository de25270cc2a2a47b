package core

import (
	"fmt"
	"reflect"
	"time"

	"github.com/go-drift/retain/pkg/errors"
)

// rebuilder is implemented by every element variant. performRebuild runs the
// variant's build and reconciles its children; the dirty bookkeeping around
// it lives in elementBase.RebuildIfNeeded and elementBase.rebuildNow.
type rebuilder interface {
	performRebuild()
}

type elementBase struct {
	widget       Widget
	parent       Element
	depth        int
	slot         any
	owner        *BuildOwner
	self         Element
	lifecycle    Lifecycle
	dirty        bool
	suppressed   bool                 // rebuild requests are ignored (mount/unmount hooks)
	renderParent *RenderObjectElement // nearest ancestor that owns a render object

	// inherited maps widget types to the nearest provider above this element.
	// It is shared with the parent unless this element is itself a provider.
	inherited    map[reflect.Type]*InheritedElement
	dependencies map[*InheritedElement]struct{}
	handle       *RebuildHandle
}

func (e *elementBase) base() *elementBase { return e }

func (e *elementBase) Widget() Widget {
	return e.widget
}

func (e *elementBase) Depth() int {
	return e.depth
}

func (e *elementBase) Slot() any {
	return e.slot
}

func (e *elementBase) Owner() *BuildOwner {
	return e.owner
}

func (e *elementBase) Lifecycle() Lifecycle {
	return e.lifecycle
}

func (e *elementBase) NeedsBuild() bool {
	return e.dirty
}

// Parent returns the parent element, or nil for the root and unmounted elements.
func (e *elementBase) Parent() Element {
	return e.parent
}

// MarkNeedsBuild schedules the element for rebuild in the next flush.
// Repeated calls before the flush are coalesced.
func (e *elementBase) MarkNeedsBuild() {
	if e.lifecycle == LifecycleDefunct || e.suppressed {
		return
	}
	if e.parent != nil && isParentBound(e.widget) {
		e.parent.MarkNeedsBuild()
		return
	}
	if e.dirty {
		return
	}
	e.dirty = true
	if e.owner != nil && e.lifecycle == LifecycleActive {
		e.owner.ScheduleBuild(e.self)
	}
}

// RebuildIfNeeded rebuilds the element if it is dirty and mounted. It is the
// path the build owner drains its dirty queue through: an element the running
// flush already rebuilt is left dirty for the next flush.
func (e *elementBase) RebuildIfNeeded() {
	if !e.dirty || e.lifecycle != LifecycleActive {
		return
	}
	if e.owner != nil && !e.owner.beginRebuild(e.self, true) {
		return
	}
	e.performRebuildNow()
}

// rebuildNow rebuilds the element unconditionally. Mount and Update use it so
// the element a reconcile step returns is always built from its current
// widget, even when the running flush rebuilt it before.
func (e *elementBase) rebuildNow() {
	if e.lifecycle != LifecycleActive {
		return
	}
	if e.owner != nil {
		e.owner.beginRebuild(e.self, false)
	}
	e.performRebuildNow()
}

func (e *elementBase) performRebuildNow() {
	e.dirty = false
	e.dropDependencies()
	e.self.(rebuilder).performRebuild()
}

func (e *elementBase) FindAncestor(predicate func(Element) bool) Element {
	for current := e.parent; current != nil; current = current.base().parent {
		if predicate(current) {
			return current
		}
	}
	return nil
}

func (e *elementBase) DependOnInherited(inheritedType reflect.Type, aspect any) any {
	provider := e.inherited[inheritedType]
	if provider == nil {
		return nil
	}
	provider.addDependent(e.self, aspect)
	e.addDependency(provider)
	return provider.widget
}

func (e *elementBase) DependOnInheritedWithAspects(inheritedType reflect.Type, aspects ...any) any {
	provider := e.inherited[inheritedType]
	if provider == nil {
		return nil
	}
	if len(aspects) == 0 {
		provider.addDependent(e.self, nil)
	}
	for _, aspect := range aspects {
		provider.addDependent(e.self, aspect)
	}
	e.addDependency(provider)
	return provider.widget
}

// Handle returns the element's rebuild handle, creating it on first use.
func (e *elementBase) Handle() *RebuildHandle {
	if e.handle == nil {
		e.handle = newRebuildHandle(e.self, e.owner)
		if e.lifecycle == LifecycleDefunct {
			e.handle.release()
		}
	}
	return e.handle
}

func (e *elementBase) addDependency(provider *InheritedElement) {
	if e.dependencies == nil {
		e.dependencies = make(map[*InheritedElement]struct{})
	}
	e.dependencies[provider] = struct{}{}
}

// dropDependencies deregisters from every provider. The next build
// re-registers whatever it reads, so a dependent always binds to the
// provider that is currently nearest.
func (e *elementBase) dropDependencies() {
	for provider := range e.dependencies {
		provider.removeDependent(e.self)
	}
	clear(e.dependencies)
}

// mountBase attaches the element below parent. It is the first step of
// every variant's Mount.
func (e *elementBase) mountBase(parent Element, slot any) {
	if e.lifecycle != LifecycleInitial {
		panic(&errors.InvariantError{
			Kind:       errors.InvariantDoubleMount,
			Element:    typeName(e.self),
			Detail:     fmt.Sprintf("%s is %s", typeName(e.widget), e.lifecycle),
			StackTrace: errors.CaptureStack(),
			Timestamp:  time.Now(),
		})
	}
	e.parent = parent
	e.slot = slot
	if parent != nil {
		pb := parent.base()
		e.depth = pb.depth + 1
		if e.owner == nil {
			e.owner = pb.owner
		}
		if provider, ok := parent.(*InheritedElement); ok {
			e.inherited = provider.scope
		} else {
			e.inherited = pb.inherited
		}
		if ro, ok := parent.(*RenderObjectElement); ok {
			e.renderParent = ro
		} else {
			e.renderParent = pb.renderParent
		}
		if e.owner == nil || e.owner.DebugMode() {
			e.checkCycle()
		}
	}
	e.lifecycle = LifecycleActive
	if e.owner != nil {
		e.owner.noteMounted()
	}
}

func (e *elementBase) checkCycle() {
	for current := e.parent; current != nil; current = current.base().parent {
		if current.base() == e {
			panic(&errors.InvariantError{
				Kind:       errors.InvariantCycle,
				Element:    typeName(e.self),
				Detail:     "element is its own ancestor",
				StackTrace: errors.CaptureStack(),
				Timestamp:  time.Now(),
			})
		}
	}
}

// beginUnmount moves the element to the defunct state. Rebuild requests are
// ignored from here on.
func (e *elementBase) beginUnmount() {
	if e.lifecycle != LifecycleActive {
		panic(&errors.InvariantError{
			Kind:       errors.InvariantDoubleUnmount,
			Element:    typeName(e.self),
			Detail:     fmt.Sprintf("%s is %s", typeName(e.widget), e.lifecycle),
			StackTrace: errors.CaptureStack(),
			Timestamp:  time.Now(),
		})
	}
	e.lifecycle = LifecycleDefunct
	e.suppressed = true
	e.dirty = false
	if e.handle != nil {
		e.handle.release()
	}
	if e.owner != nil {
		e.owner.noteUnmounted()
	}
}

// finishUnmount drops every reference the element holds into the live tree.
func (e *elementBase) finishUnmount() {
	e.dropDependencies()
	e.dependencies = nil
	e.inherited = nil
	e.renderParent = nil
	e.parent = nil
}

// teardown runs fn and turns a panic into a reported TeardownError so the
// rest of the subtree keeps unmounting.
func (e *elementBase) teardown(fn func()) {
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		if inv, ok := r.(*errors.InvariantError); ok {
			panic(inv)
		}
		err := &errors.TeardownError{
			Element:    typeName(e.self),
			Widget:     typeName(e.widget),
			Recovered:  r,
			StackTrace: errors.CaptureStack(),
			Timestamp:  time.Now(),
		}
		errors.ReportTeardown(err)
		if e.owner != nil {
			e.owner.recordTeardownError(err)
		}
	}()
	fn()
}

// withSuppressedRebuilds runs fn with rebuild requests for this element ignored.
func (e *elementBase) withSuppressedRebuilds(fn func()) {
	prev := e.suppressed
	e.suppressed = true
	defer func() { e.suppressed = prev }()
	fn()
}

// safeBuild executes a build function with panic recovery. A failed build is
// reported and offered to the nearest error boundary; ok is false and the
// caller keeps its previous child either way.
func (e *elementBase) safeBuild(build func(BuildContext) Widget) (built Widget, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			e.recoverBuild(r)
			built, ok = nil, false
		}
	}()
	return build(e.self), true
}

// safeCall runs a lifecycle hook (state creation, InitState, DidMount,
// DidUpdateWidget, render object creation or update) with the same recovery
// as safeBuild. It returns false when the hook panicked.
func (e *elementBase) safeCall(hook func()) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			e.recoverBuild(r)
			ok = false
		}
	}()
	hook()
	return true
}

// recoverBuild turns a recovered panic into a BuildError and hands it to
// handleBuildError. Invariant violations are re-raised.
func (e *elementBase) recoverBuild(r any) {
	if inv, isInvariant := r.(*errors.InvariantError); isInvariant {
		panic(inv)
	}
	var buildErr *errors.BuildError
	switch v := r.(type) {
	case *errors.BuildError:
		buildErr = v
	case error:
		buildErr = &errors.BuildError{Err: v}
	default:
		buildErr = &errors.BuildError{Recovered: v}
	}
	if buildErr.Widget == "" {
		buildErr.Widget = typeName(e.widget)
		buildErr.Element = typeName(e.self)
	}
	if buildErr.StackTrace == "" {
		buildErr.StackTrace = errors.CaptureStack()
	}
	if buildErr.Timestamp.IsZero() {
		buildErr.Timestamp = time.Now()
	}
	e.handleBuildError(buildErr)
}

func (e *elementBase) handleBuildError(err *errors.BuildError) {
	errors.ReportBuildError(err)
	for current := e.parent; current != nil; current = current.base().parent {
		if capture, ok := current.(ErrorBoundaryCapture); ok && capture.CaptureError(err) {
			return
		}
	}
	if e.owner != nil {
		e.owner.recordBuildError(err)
	}
}

// ErrorBoundaryCapture is implemented by elements that catch build errors
// raised in their subtree. CaptureError returns false to let the error
// propagate further up.
type ErrorBoundaryCapture interface {
	CaptureError(err *errors.BuildError) bool
}

// renderChildChanged tells the nearest render ancestor that the render object
// below this element was replaced.
func (e *elementBase) renderChildChanged() {
	if e.renderParent != nil && e.owner != nil {
		e.owner.scheduleRenderSync(e.renderParent)
	}
}

func typeName(v any) string {
	if v == nil {
		return "<nil>"
	}
	return reflect.TypeOf(v).String()
}
