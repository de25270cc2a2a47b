// Package layout defines the render-object boundary between the element tree
// and an external render backend.
//
// The element tree creates render objects, attaches them to the nearest
// render-bearing ancestor, reorders and detaches them, and marks them as
// needing layout or paint. Geometry and painting happen entirely on the
// backend side: a backend drains the [PipelineOwner] queues and does the work.
package layout

// RenderObject is the opaque geometry/paint-bearing counterpart of an element.
type RenderObject interface {
	// SetOwner binds the render object to the pipeline that schedules it.
	SetOwner(owner *PipelineOwner)
	// MarkNeedsLayout schedules relayout with the owning pipeline.
	MarkNeedsLayout()
	// MarkNeedsPaint schedules repaint with the owning pipeline.
	MarkNeedsPaint()
	// ParentData returns the data the parent render object stores on this child.
	ParentData() any
	// SetParentData assigns parent-controlled data.
	SetParentData(data any)
}

// ParentSetter is implemented by render objects that track their parent.
type ParentSetter interface {
	SetParent(parent RenderObject)
}

// SingleChildRenderObject holds at most one child render object.
type SingleChildRenderObject interface {
	RenderObject
	SetChild(child RenderObject)
}

// MultiChildRenderObject holds an ordered list of child render objects.
type MultiChildRenderObject interface {
	RenderObject
	SetChildren(children []RenderObject)
}

// Disposer is implemented by render objects holding backend resources that
// must be released when their element unmounts.
type Disposer interface {
	Dispose()
}

// RenderObjectBase provides bookkeeping shared by most render objects:
// pipeline ownership, parent link, depth and dirty flags.
// Embed it and call SetSelf from the constructor.
type RenderObjectBase struct {
	parentData  any
	owner       *PipelineOwner
	self        RenderObject
	parent      RenderObject
	depth       int
	needsLayout bool
	needsPaint  bool
	disposed    bool
}

// SetSelf registers the concrete render object for scheduling.
func (r *RenderObjectBase) SetSelf(self RenderObject) {
	r.self = self
	r.needsLayout = true // New render objects always need initial layout
	r.needsPaint = true  // New render objects always need initial paint
}

// Self returns the concrete render object registered via SetSelf.
func (r *RenderObjectBase) Self() RenderObject {
	return r.self
}

// ParentData returns the parent-assigned data for this render object.
func (r *RenderObjectBase) ParentData() any {
	return r.parentData
}

// SetParentData assigns parent-controlled data to this render object.
func (r *RenderObjectBase) SetParentData(data any) {
	r.parentData = data
}

// SetOwner assigns the pipeline owner for scheduling layout and paint.
// Pending dirty flags are scheduled with the new owner.
func (r *RenderObjectBase) SetOwner(owner *PipelineOwner) {
	r.owner = owner
	if owner == nil || r.self == nil {
		return
	}
	if r.needsLayout {
		owner.ScheduleLayout(r.self)
	}
	if r.needsPaint {
		owner.SchedulePaint(r.self)
	}
}

// Owner returns the pipeline owner, or nil when detached.
func (r *RenderObjectBase) Owner() *PipelineOwner {
	return r.owner
}

// Parent returns the parent render object.
func (r *RenderObjectBase) Parent() RenderObject {
	return r.parent
}

// SetParent sets the parent render object and recomputes depth.
// A changed parent means both the old and new parent need relayout.
func (r *RenderObjectBase) SetParent(parent RenderObject) {
	if r.parent == parent {
		return
	}
	oldParent := r.parent
	r.parent = parent
	if parent == nil {
		r.depth = 0
	} else if getter, ok := parent.(interface{ Depth() int }); ok {
		r.depth = getter.Depth() + 1
	} else {
		r.depth = 1
	}
	if oldParent != nil {
		oldParent.MarkNeedsLayout()
	}
	if parent != nil {
		parent.MarkNeedsLayout()
	}
}

// Depth returns the tree depth (root = 0).
func (r *RenderObjectBase) Depth() int {
	return r.depth
}

// MarkNeedsLayout marks this render object as needing layout and schedules it.
// Layout implies paint.
func (r *RenderObjectBase) MarkNeedsLayout() {
	if r.needsLayout && r.needsPaint {
		return
	}
	r.needsLayout = true
	r.needsPaint = true
	if r.owner == nil || r.self == nil {
		return
	}
	r.owner.ScheduleLayout(r.self)
}

// MarkNeedsPaint marks this render object as needing paint and schedules it.
func (r *RenderObjectBase) MarkNeedsPaint() {
	if r.needsPaint {
		return
	}
	r.needsPaint = true
	if r.owner == nil || r.self == nil {
		return
	}
	r.owner.SchedulePaint(r.self)
}

// NeedsLayout reports whether layout is pending.
func (r *RenderObjectBase) NeedsLayout() bool {
	return r.needsLayout
}

// NeedsPaint reports whether paint is pending.
func (r *RenderObjectBase) NeedsPaint() bool {
	return r.needsPaint
}

// ClearNeedsLayout is called by the backend once it has laid the object out.
func (r *RenderObjectBase) ClearNeedsLayout() {
	r.needsLayout = false
}

// ClearNeedsPaint is called by the backend once it has painted the object.
func (r *RenderObjectBase) ClearNeedsPaint() {
	r.needsPaint = false
}

// Dispose releases the render object. It is detached from its owner and
// will no longer schedule work.
func (r *RenderObjectBase) Dispose() {
	if r.disposed {
		return
	}
	r.disposed = true
	if r.owner != nil && r.self != nil {
		r.owner.Forget(r.self)
	}
	r.owner = nil
	r.parent = nil
}

// Disposed reports whether Dispose has run.
func (r *RenderObjectBase) Disposed() bool {
	return r.disposed
}

// SetParentOnChild sets the parent reference on a child render object
// when it supports it.
func SetParentOnChild(child, parent RenderObject) {
	if child == nil {
		return
	}
	if setter, ok := child.(ParentSetter); ok {
		setter.SetParent(parent)
	}
}
