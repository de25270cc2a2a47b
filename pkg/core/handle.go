package core

import "sync"

// RebuildHandle requests rebuilds of one element from outside its build.
//
// A handle may be retained freely and used from any goroutine: MarkDirty
// only enqueues a request with the BuildOwner, and the element is rebuilt on
// the UI goroutine during the next flush. Once the element is unmounted the
// handle is dead and MarkDirty does nothing.
type RebuildHandle struct {
	mu      sync.Mutex
	element Element
	owner   *BuildOwner
}

func newRebuildHandle(element Element, owner *BuildOwner) *RebuildHandle {
	return &RebuildHandle{element: element, owner: owner}
}

// MarkDirty requests a rebuild of the element. It reports whether the
// request was queued, which is false once the element has been unmounted.
func (h *RebuildHandle) MarkDirty() bool {
	if h == nil {
		return false
	}
	h.mu.Lock()
	element, owner := h.element, h.owner
	h.mu.Unlock()
	if element == nil || owner == nil {
		return false
	}
	owner.RequestRebuild(element)
	return true
}

// Alive reports whether the element behind the handle is still mounted.
func (h *RebuildHandle) Alive() bool {
	if h == nil {
		return false
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.element != nil
}

func (h *RebuildHandle) release() {
	h.mu.Lock()
	h.element = nil
	h.owner = nil
	h.mu.Unlock()
}
