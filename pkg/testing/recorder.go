package testing

import (
	"fmt"
	"slices"
	"sync"

	"github.com/go-drift/retain/pkg/layout"
)

// LifecycleLog is an ordered, concurrency-safe event log for tests.
type LifecycleLog struct {
	mu      sync.Mutex
	entries []string
}

// Add appends a formatted entry.
func (l *LifecycleLog) Add(format string, args ...any) {
	l.mu.Lock()
	l.entries = append(l.entries, fmt.Sprintf(format, args...))
	l.mu.Unlock()
}

// Entries returns a copy of the log.
func (l *LifecycleLog) Entries() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return slices.Clone(l.entries)
}

// Take returns the log and clears it.
func (l *LifecycleLog) Take() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	entries := l.entries
	l.entries = nil
	return entries
}

// Len returns the number of entries.
func (l *LifecycleLog) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// RecordingRenderObject is a render object that remembers the child list
// the element tree hands it. With a Log set it also records child updates
// and disposal.
type RecordingRenderObject struct {
	layout.RenderObjectBase
	Name     string
	Log      *LifecycleLog
	children []layout.RenderObject
	updates  int
}

// NewRecordingRenderObject creates a named recording render object.
func NewRecordingRenderObject(name string, log *LifecycleLog) *RecordingRenderObject {
	r := &RecordingRenderObject{Name: name, Log: log}
	r.SetSelf(r)
	return r
}

// SetChildren implements [layout.MultiChildRenderObject]. Single-child
// widgets hand it a list of at most one object.
func (r *RecordingRenderObject) SetChildren(children []layout.RenderObject) {
	r.children = slices.Clone(children)
	r.updates++
	if r.Log != nil {
		r.Log.Add("%s children %v", r.Name, r.ChildNames())
	}
}

// Children returns the current child list.
func (r *RecordingRenderObject) Children() []layout.RenderObject {
	return r.children
}

// ChildNames returns the names of recording children, "?" for others.
func (r *RecordingRenderObject) ChildNames() []string {
	names := make([]string, len(r.children))
	for i, child := range r.children {
		if rec, ok := child.(*RecordingRenderObject); ok {
			names[i] = rec.Name
		} else {
			names[i] = "?"
		}
	}
	return names
}

// ChildUpdates returns how many times the child list was replaced.
func (r *RecordingRenderObject) ChildUpdates() int {
	return r.updates
}

// Dispose records the disposal and releases the object.
func (r *RecordingRenderObject) Dispose() {
	if r.Disposed() {
		return
	}
	if r.Log != nil {
		r.Log.Add("%s dispose", r.Name)
	}
	r.RenderObjectBase.Dispose()
}

func (r *RecordingRenderObject) String() string {
	return r.Name
}
