package core

// StatelessElement hosts a StatelessWidget.
type StatelessElement struct {
	elementBase
	child Element
}

// NewStatelessElement creates a StatelessElement.
// The widget and build owner are set later by the framework during inflation.
func NewStatelessElement() *StatelessElement {
	return &StatelessElement{}
}

func (e *StatelessElement) Mount(parent Element, slot any) {
	e.mountBase(parent, slot)
	e.dirty = true
	e.rebuildNow()
}

func (e *StatelessElement) Update(newWidget Widget) {
	e.widget = newWidget
	e.dirty = true
	e.rebuildNow()
}

func (e *StatelessElement) Unmount() {
	e.beginUnmount()
	if e.child != nil {
		e.child.Unmount()
		e.child = nil
	}
	e.finishUnmount()
}

func (e *StatelessElement) performRebuild() {
	widget := e.widget.(StatelessWidget)
	built, ok := e.safeBuild(widget.Build)
	if !ok {
		return
	}
	e.child = e.updateComponentChild(e.child, built)
}

func (e *StatelessElement) VisitChildren(visitor func(Element) bool) {
	if e.child != nil {
		visitor(e.child)
	}
}

// StatefulElement hosts a StatefulWidget and its State.
type StatefulElement struct {
	elementBase
	child Element
	state State
}

// NewStatefulElement creates a StatefulElement.
// The widget and build owner are set later by the framework during inflation.
func NewStatefulElement() *StatefulElement {
	return &StatefulElement{}
}

// State returns the element's state object, or nil before mount.
func (e *StatefulElement) State() State {
	return e.state
}

func (e *StatefulElement) Mount(parent Element, slot any) {
	e.mountBase(parent, slot)
	// The handle exists before any state code runs, so states may hand it
	// to other goroutines from InitState on.
	e.Handle()
	// A SetState from InitState or DidMount is absorbed by the first build.
	e.dirty = true
	mounted := e.safeCall(func() {
		e.state = e.widget.(StatefulWidget).CreateState()
		if setter, ok := e.state.(interface{ setElement(*StatefulElement) }); ok {
			setter.setElement(e)
		} else if setter, ok := e.state.(interface{ SetElement(*StatefulElement) }); ok {
			setter.SetElement(e)
		}
		e.state.InitState()
		if mounter, ok := e.state.(Mounter); ok {
			e.withSuppressedRebuilds(func() { mounter.DidMount(e) })
		}
	})
	if !mounted {
		// Stays childless; an enclosing boundary replaces it.
		e.dirty = false
		return
	}
	e.rebuildNow()
}

func (e *StatefulElement) Update(newWidget Widget) {
	oldWidget := e.widget.(StatefulWidget)
	e.widget = newWidget
	if e.state == nil {
		return
	}
	if !e.safeCall(func() { e.state.DidUpdateWidget(oldWidget) }) {
		e.dirty = false
		return
	}
	e.dirty = true
	e.rebuildNow()
}

func (e *StatefulElement) Unmount() {
	e.beginUnmount()
	if e.child != nil {
		e.child.Unmount()
		e.child = nil
	}
	if e.state != nil {
		if unmounter, ok := e.state.(Unmounter); ok {
			e.teardown(func() { unmounter.WillUnmount(e) })
		}
		e.teardown(e.state.Dispose)
	}
	e.finishUnmount()
}

func (e *StatefulElement) performRebuild() {
	if e.state == nil {
		return
	}
	built, ok := e.safeBuild(e.state.Build)
	if !ok {
		return
	}
	e.child = e.updateComponentChild(e.child, built)
}

func (e *StatefulElement) VisitChildren(visitor func(Element) bool) {
	if e.child != nil {
		visitor(e.child)
	}
}

// updateComponentChild reconciles the single child of a component element
// and notifies the render ancestor when the child element was replaced.
func (e *elementBase) updateComponentChild(child Element, built Widget) Element {
	next := updateChild(child, built, e.self, nil)
	if next != child {
		e.renderChildChanged()
	}
	return next
}
