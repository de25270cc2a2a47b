// Package core provides the widget and element framework interfaces, the
// reconciler and the build scheduler.
//
// Widgets are immutable descriptions of part of the UI. Elements are the
// long-lived, mutable instantiation of a widget at a particular location in
// the tree. Every update cycle the framework reconciles the widgets produced
// by dirty elements against the existing element tree: compatible elements
// are reused (and keep their state), incompatible ones are unmounted and
// replaced.
//
// # Widget Kinds
//
// The set of widget kinds is closed (see [WidgetKind]):
//
//   - [StatelessWidget]: builds a child from its own configuration
//   - [StatefulWidget]: creates a [State] that survives rebuilds
//   - [InheritedWidget]: provides data to descendants with dependency tracking
//   - [RenderObjectWidget]: owns a render object and zero, one or many children
//
// # Stateful Widgets
//
// For widgets that need mutable state, embed StateBase in your state struct:
//
//	type myState struct {
//	    core.StateBase
//	    count int
//	}
//
//	func (s *myState) InitState() {
//	    // Initialize state here
//	}
//
//	func (s *myState) Build(ctx core.BuildContext) core.Widget {
//	    return Label{Text: fmt.Sprintf("Count: %d", s.count)}
//	}
//
// SetState must be called from the UI goroutine. Work running elsewhere
// retains a [RebuildHandle] (from [BuildContext.Handle] or
// [StateBase.Handle]) and calls MarkDirty, which only enqueues a request;
// the tree is mutated on the next [BuildOwner.FlushBuild].
//
// # Keys and Reconciliation
//
// Children of a multi-child widget are matched by position when no child in
// the list declares a key, and by key otherwise. Keyed children keep their
// element (and state) when the list is reordered; unkeyed children in a keyed
// list are mounted fresh. Inserting a widget at the front of an unkeyed list
// hands each existing element the widget now at its position, and only the
// tail position is mounted fresh. Give children keys whenever their state
// must follow the item rather than the position.
//
// # Inherited Data
//
// [Provider] makes a value available to descendants:
//
//	core.Provider[Theme]{Value: dark, Child: app}
//
//	theme, ok := core.Read[Theme](ctx)
//
// Reading registers the element as a dependent; when the provider is rebuilt
// with a different value, dependents are marked dirty even if their own
// widget did not change.
//
// # Errors
//
// A panic inside Build or a lifecycle hook such as InitState is recovered into an [errors.BuildError] and handed to
// the nearest [ErrorBoundary], which renders its fallback. Uncaught build
// errors fail the cycle and are returned from FlushBuild. Broken tree
// contracts (duplicate sibling keys, double unmount) raise an
// [errors.InvariantError] that aborts the cycle.
package core
