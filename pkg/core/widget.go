package core

import (
	"reflect"

	"github.com/go-drift/retain/pkg/layout"
)

// Widget is an immutable description of part of the UI.
type Widget interface {
	CreateElement() Element
	Key() any
}

// StatelessWidget builds a child from its own configuration.
type StatelessWidget interface {
	Widget
	Build(ctx BuildContext) Widget
}

// StatefulWidget creates a State that persists for the lifetime of its element.
type StatefulWidget interface {
	Widget
	CreateState() State
}

// State holds mutable data for a StatefulWidget.
type State interface {
	InitState()
	Build(ctx BuildContext) Widget
	SetState(fn func())
	Dispose()
	DidChangeDependencies()
	DidUpdateWidget(oldWidget StatefulWidget)
}

// Mounter is implemented by states that need the build context once the
// element is attached, before the first build. Rebuild requests made from
// DidMount are ignored.
type Mounter interface {
	DidMount(ctx BuildContext)
}

// Unmounter is implemented by states that need the build context before
// teardown. Rebuild requests made from WillUnmount are ignored.
type Unmounter interface {
	WillUnmount(ctx BuildContext)
}

// InheritedWidget provides data to descendants.
type InheritedWidget interface {
	Widget
	ChildWidget() Widget
	// UpdateShouldNotify reports whether dependents must rebuild when this
	// widget replaces oldWidget.
	UpdateShouldNotify(oldWidget InheritedWidget) bool
}

// AspectAwareInheritedWidget narrows notification to dependents whose
// registered aspects changed.
type AspectAwareInheritedWidget interface {
	InheritedWidget
	UpdateShouldNotifyDependent(oldWidget InheritedWidget, aspects map[any]struct{}) bool
}

// RenderObjectWidget creates a render object directly.
//
// A render object widget with a Child() Widget method hosts one child, one
// with a Children() []Widget method hosts many, and one with neither is a leaf.
type RenderObjectWidget interface {
	Widget
	CreateRenderObject(ctx BuildContext) layout.RenderObject
	UpdateRenderObject(ctx BuildContext, renderObject layout.RenderObject)
}

// SingleChildWidget is a render object widget with one child slot.
type SingleChildWidget interface {
	RenderObjectWidget
	Child() Widget
}

// MultiChildWidget is a render object widget with an ordered child list.
type MultiChildWidget interface {
	RenderObjectWidget
	Children() []Widget
}

// WidgetEqualer lets a widget declare that it is configuration-equal to the
// widget it replaces. Reconciling an equal widget against a clean element
// skips the element and its subtree entirely.
type WidgetEqualer interface {
	EqualWidget(other Widget) bool
}

// ParentBoundWidget marks widgets whose configuration only makes sense when
// rebuilt together with their parent's build. Rebuild requests on such an
// element are redirected to the nearest ancestor that is not parent-bound,
// and the element is always updated when its parent rebuilds.
type ParentBoundWidget interface {
	RebuildsWithParent() bool
}

// WidgetKind is the closed set of widget variants the reconciler knows.
type WidgetKind int

const (
	KindUnknown WidgetKind = iota
	KindLeaf
	KindSingleChild
	KindMultiChild
	KindStateless
	KindStateful
	KindInherited
)

func (k WidgetKind) String() string {
	switch k {
	case KindLeaf:
		return "leaf"
	case KindSingleChild:
		return "single-child"
	case KindMultiChild:
		return "multi-child"
	case KindStateless:
		return "stateless"
	case KindStateful:
		return "stateful"
	case KindInherited:
		return "inherited"
	default:
		return "unknown"
	}
}

// KindOf reports the variant of a widget.
func KindOf(w Widget) WidgetKind {
	switch w.(type) {
	case nil:
		return KindUnknown
	case ErrorBoundary, *ErrorBoundary:
		return KindStateful
	case InheritedWidget:
		return KindInherited
	case StatefulWidget:
		return KindStateful
	case StatelessWidget:
		return KindStateless
	case MultiChildWidget:
		return KindMultiChild
	case SingleChildWidget:
		return KindSingleChild
	case RenderObjectWidget:
		return KindLeaf
	}
	return KindUnknown
}

// CanUpdate reports whether an element built from existing can be reused
// for next: the widgets must share a dynamic type and have equal keys.
func CanUpdate(existing, next Widget) bool {
	if existing == nil || next == nil {
		return false
	}
	if reflect.TypeOf(existing) != reflect.TypeOf(next) {
		return false
	}
	return reflect.DeepEqual(existing.Key(), next.Key())
}

// sameWidget reports whether next is identical to, or declares itself equal
// to, the widget an element already holds.
func sameWidget(existing, next Widget) bool {
	if eq, ok := next.(WidgetEqualer); ok {
		return eq.EqualWidget(existing)
	}
	t := reflect.TypeOf(existing)
	if t != reflect.TypeOf(next) || t.Kind() != reflect.Pointer {
		return false
	}
	return existing == next
}

func isParentBound(w Widget) bool {
	bound, ok := w.(ParentBoundWidget)
	return ok && bound.RebuildsWithParent()
}

// Lifecycle is the state of an element in the tree.
type Lifecycle int

const (
	// LifecycleInitial is an element that has been created but not mounted.
	LifecycleInitial Lifecycle = iota
	// LifecycleActive is a mounted element.
	LifecycleActive
	// LifecycleDefunct is an unmounted element. It never becomes active again.
	LifecycleDefunct
)

func (l Lifecycle) String() string {
	switch l {
	case LifecycleInitial:
		return "initial"
	case LifecycleActive:
		return "active"
	case LifecycleDefunct:
		return "defunct"
	default:
		return "unknown"
	}
}

// BuildContext gives a build function access to its position in the tree.
// It is only valid for the duration of the build that received it, except
// for the handle returned by Handle, which may be retained.
type BuildContext interface {
	Widget() Widget
	Depth() int
	Owner() *BuildOwner
	FindAncestor(predicate func(Element) bool) Element
	DependOnInherited(inheritedType reflect.Type, aspect any) any
	DependOnInheritedWithAspects(inheritedType reflect.Type, aspects ...any) any
	Handle() *RebuildHandle
}

// Element is the instantiation of a Widget at a location in the tree.
//
// Element implementations are sealed to this package; custom element types
// embed one of the exported element structs.
type Element interface {
	BuildContext
	Mount(parent Element, slot any)
	Update(newWidget Widget)
	Unmount()
	RebuildIfNeeded()
	MarkNeedsBuild()
	NeedsBuild() bool
	Lifecycle() Lifecycle
	Slot() any
	VisitChildren(visitor func(Element) bool)

	base() *elementBase
}
