package layout

import "slices"

// PipelineOwner tracks render objects that need layout or paint.
//
// The element tree only schedules work here. A render backend drains the
// queues with TakeLayout and TakePaint once per frame, after the build phase,
// and performs the actual geometry and paint work.
type PipelineOwner struct {
	dirtyLayout    []RenderObject        // objects needing layout, sorted on take
	dirtyLayoutSet map[RenderObject]bool // O(1) dedup check
	dirtyPaint     []RenderObject
	dirtyPaintSet  map[RenderObject]bool
}

// ScheduleLayout marks a render object as needing layout.
// Layout implies paint, so the object is scheduled for paint as well.
func (p *PipelineOwner) ScheduleLayout(object RenderObject) {
	if object == nil {
		return
	}
	if p.dirtyLayoutSet == nil {
		p.dirtyLayoutSet = make(map[RenderObject]bool)
	}
	if !p.dirtyLayoutSet[object] {
		p.dirtyLayoutSet[object] = true
		p.dirtyLayout = append(p.dirtyLayout, object)
	}
	p.SchedulePaint(object)
}

// SchedulePaint marks a render object as needing paint.
func (p *PipelineOwner) SchedulePaint(object RenderObject) {
	if object == nil {
		return
	}
	if p.dirtyPaintSet == nil {
		p.dirtyPaintSet = make(map[RenderObject]bool)
	}
	if p.dirtyPaintSet[object] {
		return
	}
	p.dirtyPaintSet[object] = true
	p.dirtyPaint = append(p.dirtyPaint, object)
}

// Forget drops a disposed render object from both queues.
func (p *PipelineOwner) Forget(object RenderObject) {
	if p.dirtyLayoutSet[object] {
		delete(p.dirtyLayoutSet, object)
		p.dirtyLayout = slices.DeleteFunc(p.dirtyLayout, func(o RenderObject) bool { return o == object })
	}
	if p.dirtyPaintSet[object] {
		delete(p.dirtyPaintSet, object)
		p.dirtyPaint = slices.DeleteFunc(p.dirtyPaint, func(o RenderObject) bool { return o == object })
	}
}

// NeedsLayout reports if any render objects need layout.
func (p *PipelineOwner) NeedsLayout() bool {
	return len(p.dirtyLayout) > 0
}

// NeedsPaint reports if any render objects need paint.
func (p *PipelineOwner) NeedsPaint() bool {
	return len(p.dirtyPaint) > 0
}

// DirtyLayoutCount returns the number of objects waiting for layout.
func (p *PipelineOwner) DirtyLayoutCount() int {
	return len(p.dirtyLayout)
}

// DirtyPaintCount returns the number of objects waiting for paint.
func (p *PipelineOwner) DirtyPaintCount() int {
	return len(p.dirtyPaint)
}

// TakeLayout returns the objects needing layout in depth order (parents
// first) and clears the queue.
//
// Parents come first so that a backend laying out a parent may lay out its
// children as part of the same pass and skip them when they come up.
func (p *PipelineOwner) TakeLayout() []RenderObject {
	dirty := p.dirtyLayout
	p.dirtyLayout = nil
	p.dirtyLayoutSet = nil
	sortByDepth(dirty)
	return dirty
}

// TakePaint returns the objects needing paint in depth order and clears the queue.
func (p *PipelineOwner) TakePaint() []RenderObject {
	dirty := p.dirtyPaint
	p.dirtyPaint = nil
	p.dirtyPaintSet = nil
	sortByDepth(dirty)
	return dirty
}

func sortByDepth(objects []RenderObject) {
	slices.SortStableFunc(objects, func(a, b RenderObject) int {
		return getDepth(a) - getDepth(b)
	})
}

// getDepth returns the tree depth of a render object.
func getDepth(obj RenderObject) int {
	if getter, ok := obj.(interface{ Depth() int }); ok {
		return getter.Depth()
	}
	return 0
}
