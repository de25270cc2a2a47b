package core

import (
	"slices"

	"github.com/go-drift/retain/pkg/layout"
)

// RenderObjectElement hosts a RenderObjectWidget and its render object.
// Depending on the widget it has no children, one child (SingleChildWidget)
// or an ordered list of children (MultiChildWidget).
type RenderObjectElement struct {
	elementBase
	renderObject layout.RenderObject
	children     []Element
	attached     []layout.RenderObject // child render objects last handed to renderObject
}

// NewRenderObjectElement creates a RenderObjectElement.
// The widget and build owner are set later by the framework during inflation.
func NewRenderObjectElement() *RenderObjectElement {
	return &RenderObjectElement{}
}

func (e *RenderObjectElement) Mount(parent Element, slot any) {
	e.mountBase(parent, slot)

	widget := e.widget.(RenderObjectWidget)
	if !e.safeCall(func() { e.renderObject = widget.CreateRenderObject(e) }) {
		// Stays childless; an enclosing boundary replaces it.
		e.renderObject = nil
		return
	}
	if e.owner != nil && e.renderObject != nil {
		e.renderObject.SetOwner(e.owner.Pipeline())
	}
	if e.renderParent != nil {
		layout.SetParentOnChild(e.renderObject, e.renderParent.renderObject)
	}

	e.reconcileChildren()
	e.renderChildChanged()
}

func (e *RenderObjectElement) Update(newWidget Widget) {
	e.widget = newWidget
	e.dirty = true
	e.rebuildNow()
}

func (e *RenderObjectElement) Unmount() {
	e.beginUnmount()
	for i := len(e.children) - 1; i >= 0; i-- {
		e.children[i].Unmount()
	}
	e.children = nil
	e.attached = nil
	e.renderChildChanged()
	if e.renderObject != nil {
		ro := e.renderObject
		e.teardown(func() {
			layout.SetParentOnChild(ro, nil)
			if disposer, ok := ro.(layout.Disposer); ok {
				disposer.Dispose()
			}
		})
	}
	e.finishUnmount()
}

func (e *RenderObjectElement) performRebuild() {
	widget := e.widget.(RenderObjectWidget)
	if e.renderObject != nil {
		if !e.safeCall(func() { widget.UpdateRenderObject(e, e.renderObject) }) {
			return
		}
		e.renderObject.MarkNeedsLayout()
	}
	e.reconcileChildren()
}

func (e *RenderObjectElement) reconcileChildren() {
	switch typed := e.widget.(type) {
	case MultiChildWidget:
		e.children = updateChildren(e, e.children, typed.Children())
	case SingleChildWidget:
		var child Element
		if len(e.children) > 0 {
			child = e.children[0]
		}
		child = updateChild(child, typed.Child(), e, 0)
		if child != nil {
			e.children = []Element{child}
		} else {
			e.children = nil
		}
	default:
		return
	}
	e.syncRenderChildren()
}

// syncRenderChildren hands the render object the current ordered list of
// render objects found below its child elements. Children whose render
// object did not change keep their attachment; only the list is replaced.
func (e *RenderObjectElement) syncRenderChildren() {
	if e.lifecycle != LifecycleActive || e.renderObject == nil {
		return
	}
	objects := make([]layout.RenderObject, 0, len(e.children))
	for _, child := range e.children {
		if ro := RenderObjectOf(child); ro != nil {
			objects = append(objects, ro)
		}
	}
	if slices.Equal(objects, e.attached) {
		return
	}
	for _, ro := range objects {
		layout.SetParentOnChild(ro, e.renderObject)
	}
	switch target := e.renderObject.(type) {
	case layout.MultiChildRenderObject:
		target.SetChildren(objects)
	case layout.SingleChildRenderObject:
		var child layout.RenderObject
		if len(objects) > 0 {
			child = objects[0]
		}
		target.SetChild(child)
	}
	e.attached = objects
	e.renderObject.MarkNeedsLayout()
}

// RenderObject exposes the backing render object for the element.
func (e *RenderObjectElement) RenderObject() layout.RenderObject {
	return e.renderObject
}

func (e *RenderObjectElement) VisitChildren(visitor func(Element) bool) {
	for _, child := range e.children {
		if !visitor(child) {
			return
		}
	}
}

// RenderObjectOf returns the render object produced by element: its own for
// a RenderObjectElement, otherwise the first one found by descending through
// single-child components.
func RenderObjectOf(element Element) layout.RenderObject {
	for element != nil {
		if ro, ok := element.(*RenderObjectElement); ok {
			return ro.renderObject
		}
		var next Element
		element.VisitChildren(func(child Element) bool {
			next = child
			return false
		})
		element = next
	}
	return nil
}
