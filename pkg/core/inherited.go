package core

import (
	"fmt"
	"maps"
	"reflect"

	"github.com/go-drift/retain/pkg/errors"
)

// dependOnAllAspects is a sentinel value indicating a widget depends on all changes,
// not just specific aspects. Used when DependOnInherited is called with nil aspect.
var dependOnAllAspects = &struct{}{}

// InheritedElement is the element that hosts an [InheritedWidget] and manages
// the dependency tracking for descendant widgets.
//
// When a descendant calls [BuildContext.DependOnInherited], it registers as a
// dependent of this element. When the InheritedWidget is updated and
// [InheritedWidget.UpdateShouldNotify] returns true, all registered dependents
// are notified and scheduled for rebuild, whether or not their own widgets
// changed.
//
// Lookups do not walk the tree: every element carries an index from widget
// type to nearest provider, which an InheritedElement extends with itself for
// its subtree.
//
// # Aspect-Based Tracking
//
// When a dependent registers with a specific aspect (non-nil), it's stored in
// that dependent's aspect set. On update, if the widget implements
// [AspectAwareInheritedWidget], UpdateShouldNotifyDependent is called for each
// dependent to determine if it should rebuild based on its registered aspects.
// Registrations are dropped whenever the dependent rebuilds, so aspect sets
// always reflect the latest build.
type InheritedElement struct {
	elementBase
	child      Element
	dependents map[Element]map[any]struct{} // aspects per dependent
	scope      map[reflect.Type]*InheritedElement
}

// NewInheritedElement creates an InheritedElement.
// The widget and build owner are set later by the framework during inflation.
func NewInheritedElement() *InheritedElement {
	return &InheritedElement{
		dependents: make(map[Element]map[any]struct{}),
	}
}

func (e *InheritedElement) Mount(parent Element, slot any) {
	e.mountBase(parent, slot)
	e.scope = maps.Clone(e.inherited)
	if e.scope == nil {
		e.scope = make(map[reflect.Type]*InheritedElement, 2)
	}
	widgetType := reflect.TypeOf(e.widget)
	e.scope[widgetType] = e
	if widgetType.Kind() == reflect.Pointer {
		e.scope[widgetType.Elem()] = e
	}
	e.dirty = true
	e.rebuildNow()
}

func (e *InheritedElement) Update(newWidget Widget) {
	oldWidget := e.widget.(InheritedWidget)
	e.widget = newWidget
	newInherited := newWidget.(InheritedWidget)

	// UpdateShouldNotify acts as a coarse-grained gate. If it returns false,
	// no dependents are notified.
	if newInherited.UpdateShouldNotify(oldWidget) {
		e.notifyDependents(oldWidget)
	}
	e.dirty = true
	e.rebuildNow()
}

func (e *InheritedElement) notifyDependents(oldWidget InheritedWidget) {
	aspectAware, hasAspects := e.widget.(AspectAwareInheritedWidget)
	notify := make([]Element, 0, len(e.dependents))
	for dependent, aspects := range e.dependents {
		if !hasAspects {
			notify = append(notify, dependent)
			continue
		}
		// Check for sentinel indicating "all changes" dependency
		if _, dependsOnAll := aspects[dependOnAllAspects]; dependsOnAll {
			notify = append(notify, dependent)
			continue
		}
		if len(aspects) == 0 || aspectAware.UpdateShouldNotifyDependent(oldWidget, aspects) {
			notify = append(notify, dependent)
		}
	}
	for _, dependent := range notify {
		notifyDependent(dependent)
	}
}

func (e *InheritedElement) Unmount() {
	e.beginUnmount()
	if e.child != nil {
		e.child.Unmount()
		e.child = nil
	}
	for dependent := range e.dependents {
		delete(dependent.base().dependencies, e)
	}
	clear(e.dependents)
	e.scope = nil
	e.finishUnmount()
}

func (e *InheritedElement) performRebuild() {
	inherited := e.widget.(InheritedWidget)
	e.child = e.updateComponentChild(e.child, inherited.ChildWidget())
}

func (e *InheritedElement) VisitChildren(visitor func(Element) bool) {
	if e.child != nil {
		visitor(e.child)
	}
}

// DependentCount returns the number of elements currently registered as
// depending on this provider.
func (e *InheritedElement) DependentCount() int {
	return len(e.dependents)
}

// addDependent registers an element as depending on this inherited widget.
// If aspect is non-nil, it's added to the dependent's aspect set for granular tracking.
// If aspect is nil, a sentinel is added indicating the widget depends on all changes.
func (e *InheritedElement) addDependent(dependent Element, aspect any) {
	if e.dependents == nil {
		e.dependents = make(map[Element]map[any]struct{})
	}

	aspects := e.dependents[dependent]
	if aspects == nil {
		aspects = make(map[any]struct{})
		e.dependents[dependent] = aspects
	}

	if aspect != nil {
		aspects[aspect] = struct{}{}
	} else {
		aspects[dependOnAllAspects] = struct{}{}
	}
}

func (e *InheritedElement) removeDependent(dependent Element) {
	delete(e.dependents, dependent)
}

// notifyDependent triggers DidChangeDependencies on the dependent element.
func notifyDependent(element Element) {
	if element.Lifecycle() != LifecycleActive {
		return
	}
	if stateful, ok := element.(*StatefulElement); ok && stateful.state != nil {
		stateful.state.DidChangeDependencies()
	}
	element.MarkNeedsBuild()
}

// Provider is an inherited widget carrying a single value of type T.
//
// Dependents are notified when Version changes. Providers that leave Version
// at zero notify when the new Value is not deeply equal to the old one.
//
//	core.Provider[*Session]{Value: session, Child: app}
type Provider[T any] struct {
	Value     T
	Version   uint64
	Child     Widget
	WidgetKey any
}

func (p Provider[T]) CreateElement() Element { return NewInheritedElement() }

func (p Provider[T]) Key() any { return p.WidgetKey }

func (p Provider[T]) ChildWidget() Widget { return p.Child }

func (p Provider[T]) UpdateShouldNotify(oldWidget InheritedWidget) bool {
	var old Provider[T]
	switch w := oldWidget.(type) {
	case Provider[T]:
		old = w
	case *Provider[T]:
		old = *w
	default:
		return true
	}
	if p.Version != 0 || old.Version != 0 {
		return p.Version != old.Version
	}
	return !reflect.DeepEqual(p.Value, old.Value)
}

// Read returns the value of the nearest Provider[T] above ctx, or the
// nearest inherited widget of type T, and registers ctx as a dependent.
// ok is false when no ancestor provides T.
func Read[T any](ctx BuildContext) (value T, ok bool) {
	if w := ctx.DependOnInherited(reflect.TypeFor[Provider[T]](), nil); w != nil {
		switch p := w.(type) {
		case Provider[T]:
			return p.Value, true
		case *Provider[T]:
			return p.Value, true
		}
	}
	if w := ctx.DependOnInherited(reflect.TypeFor[T](), nil); w != nil {
		if v, isT := w.(T); isT {
			return v, true
		}
		if ptr, isPtr := w.(*T); isPtr && ptr != nil {
			return *ptr, true
		}
	}
	return value, false
}

// MustRead is like Read but fails the build when no ancestor provides T.
// The failure is a BuildError wrapping errors.ErrNoProvider, which the
// nearest error boundary can catch.
func MustRead[T any](ctx BuildContext) T {
	value, ok := Read[T](ctx)
	if !ok {
		panic(&errors.BuildError{
			Widget:  typeName(ctx.Widget()),
			Element: typeName(ctx),
			Err:     fmt.Errorf("%w: %s", errors.ErrNoProvider, reflect.TypeFor[T]()),
		})
	}
	return value
}

// DependOn returns the nearest inherited widget of type W and registers ctx
// as a dependent on the given aspects (all changes when none are given).
func DependOn[W InheritedWidget](ctx BuildContext, aspects ...any) (widget W, ok bool) {
	w := ctx.DependOnInheritedWithAspects(reflect.TypeFor[W](), aspects...)
	if w == nil {
		return widget, false
	}
	if typed, isW := w.(W); isW {
		return typed, true
	}
	return widget, false
}
