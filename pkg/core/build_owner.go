package core

import (
	goerrors "errors"
	"slices"
	"sync"

	"github.com/go-drift/retain/pkg/errors"
	"github.com/go-drift/retain/pkg/layout"
)

// DefaultMaxFlushPasses bounds how many times FlushBuild re-sorts and drains
// elements that became dirty while it was running.
const DefaultMaxFlushPasses = 64

// BuildStats counts the work done by flushes since the last TakeStats.
type BuildStats struct {
	Passes   int `json:"passes" yaml:"passes"`
	Rebuilds int `json:"rebuilds" yaml:"rebuilds"`
	Mounts   int `json:"mounts" yaml:"mounts"`
	Unmounts int `json:"unmounts" yaml:"unmounts"`
	// Deferred counts elements dirtied again after their rebuild and carried
	// to the next flush.
	Deferred int `json:"deferred" yaml:"deferred"`
}

// fallbackTarget is an error boundary waiting to swap in its fallback.
type fallbackTarget interface {
	Element
	applyFallback()
}

// BuildOwner tracks dirty elements that need rebuilding.
//
// The element tree, and therefore every BuildOwner method other than
// RequestRebuild, NeedsWork and DirtyCount, belongs to a single UI goroutine.
type BuildOwner struct {
	dirty    []Element
	dirtySet map[Element]bool
	requests []Element
	pipeline *layout.PipelineOwner
	mu       sync.Mutex

	flushing    bool
	noChecks    bool
	rebuilt     map[Element]struct{}
	deferred    []Element
	deferredSet map[Element]bool
	renderSync  []*RenderObjectElement
	renderSet   map[*RenderObjectElement]bool
	fallbacks   []fallbackTarget
	buildErrs   []error
	teardowns   []*errors.TeardownError
	stats       BuildStats

	// MaxFlushPasses bounds the passes of a single FlushBuild. Elements still
	// dirty after the last pass stay queued for the next flush.
	// Zero means DefaultMaxFlushPasses.
	MaxFlushPasses int

	// OnNeedsFrame is called when work is scheduled, signalling the driver
	// that an update cycle should run. It may be called from any goroutine
	// that uses a RebuildHandle.
	OnNeedsFrame func()
}

// NewBuildOwner creates a new BuildOwner.
func NewBuildOwner() *BuildOwner {
	return &BuildOwner{
		pipeline: &layout.PipelineOwner{},
	}
}

// SetDebugMode enables or disables the extra tree checks this owner runs while
// mounting, such as ancestor cycle detection. Checks are on by default.
func (b *BuildOwner) SetDebugMode(debug bool) {
	b.noChecks = !debug
}

// DebugMode reports whether the extra mount-time tree checks are enabled.
func (b *BuildOwner) DebugMode() bool {
	return !b.noChecks
}

// Pipeline returns the PipelineOwner for render object scheduling.
func (b *BuildOwner) Pipeline() *layout.PipelineOwner {
	return b.pipeline
}

// ScheduleBuild marks an element as needing rebuild. An element that was
// already rebuilt by the running flush is carried to the next one.
func (b *BuildOwner) ScheduleBuild(element Element) {
	if b.flushing {
		if _, done := b.rebuilt[element]; done {
			b.deferElement(element)
			return
		}
	}
	added := func() bool {
		b.mu.Lock()
		defer b.mu.Unlock()
		if b.dirtySet[element] {
			return false
		}
		if b.dirtySet == nil {
			b.dirtySet = make(map[Element]bool)
		}
		b.dirtySet[element] = true
		b.dirty = append(b.dirty, element)
		return true
	}()

	if added {
		b.needsFrame()
	}
}

// RequestRebuild queues a rebuild request for element. It is safe to call
// from any goroutine; the request is applied at the start of the next
// FlushBuild, where elements that have been unmounted meanwhile are skipped.
func (b *BuildOwner) RequestRebuild(element Element) {
	b.mu.Lock()
	b.requests = append(b.requests, element)
	b.mu.Unlock()
	b.needsFrame()
}

func (b *BuildOwner) needsFrame() {
	if b.OnNeedsFrame != nil {
		b.OnNeedsFrame()
	}
}

// NeedsWork returns true if there are dirty elements, pending rebuild
// requests or pending layout/paint.
func (b *BuildOwner) NeedsWork() bool {
	b.mu.Lock()
	pending := len(b.dirty) > 0 || len(b.requests) > 0
	b.mu.Unlock()
	if pending {
		return true
	}
	return b.pipeline.NeedsLayout() || b.pipeline.NeedsPaint()
}

// DirtyCount returns the number of elements queued for rebuild, including
// requests not yet applied.
func (b *BuildOwner) DirtyCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.dirty) + len(b.requests)
}

// Stats returns the counters accumulated since the last TakeStats.
func (b *BuildOwner) Stats() BuildStats {
	return b.stats
}

// TakeStats returns the accumulated counters and resets them.
func (b *BuildOwner) TakeStats() BuildStats {
	stats := b.stats
	b.stats = BuildStats{}
	return stats
}

// TakeTeardownErrors returns the teardown failures collected since the last
// call. Teardown failures are reported as they happen and never fail a cycle.
func (b *BuildOwner) TakeTeardownErrors() []*errors.TeardownError {
	errs := b.teardowns
	b.teardowns = nil
	return errs
}

// FlushBuild rebuilds all dirty elements in depth order, shallowest first.
//
// Elements dirtied during the flush are picked up by a further pass unless
// they were already rebuilt in this flush, in which case they stay dirty for
// the next one. The queue never rebuilds an element twice in one flush; a
// parent reconciling an element still rebuilds it synchronously.
//
// The returned error joins the build errors no error boundary caught. A
// broken tree contract aborts the flush and is returned as an
// *errors.InvariantError.
func (b *BuildOwner) FlushBuild() (err error) {
	b.drainRequests()
	b.flushing = true
	b.rebuilt = make(map[Element]struct{})
	defer func() {
		b.flushing = false
		b.rebuilt = nil
		b.requeueDeferred()
		if r := recover(); r != nil {
			inv, ok := r.(*errors.InvariantError)
			if !ok {
				panic(r)
			}
			errors.ReportInvariant(inv)
			b.buildErrs = nil
			b.fallbacks = nil
			err = inv
		}
	}()

	b.applyFallbacks()
	maxPasses := b.MaxFlushPasses
	if maxPasses <= 0 {
		maxPasses = DefaultMaxFlushPasses
	}
	for pass := 0; pass < maxPasses; pass++ {
		dirty := b.takeDirty()
		if len(dirty) == 0 {
			break
		}
		b.stats.Passes++
		for _, element := range dirty {
			element.RebuildIfNeeded()
			b.applyFallbacks()
		}
	}
	b.flushRenderSync()
	return b.takeBuildErrors()
}

func (b *BuildOwner) takeDirty() []Element {
	b.mu.Lock()
	defer b.mu.Unlock()
	dirty := b.dirty
	b.dirty = nil
	clear(b.dirtySet)
	slices.SortStableFunc(dirty, func(x, y Element) int {
		return x.Depth() - y.Depth()
	})
	return dirty
}

func (b *BuildOwner) drainRequests() {
	b.mu.Lock()
	requests := b.requests
	b.requests = nil
	b.mu.Unlock()
	for _, element := range requests {
		if element.Lifecycle() == LifecycleActive {
			element.MarkNeedsBuild()
		}
	}
}

// beginRebuild records that element is about to rebuild. For rebuilds drained
// from the dirty queue it returns false when the running flush already rebuilt
// the element; reconcile-driven rebuilds always proceed.
func (b *BuildOwner) beginRebuild(element Element, fromQueue bool) bool {
	if b.flushing {
		if _, done := b.rebuilt[element]; done && fromQueue {
			b.deferElement(element)
			return false
		}
		b.rebuilt[element] = struct{}{}
	}
	b.stats.Rebuilds++
	return true
}

func (b *BuildOwner) deferElement(element Element) {
	if b.deferredSet[element] {
		return
	}
	if b.deferredSet == nil {
		b.deferredSet = make(map[Element]bool)
	}
	b.deferredSet[element] = true
	b.deferred = append(b.deferred, element)
	b.stats.Deferred++
}

func (b *BuildOwner) requeueDeferred() {
	deferred := b.deferred
	b.deferred = nil
	clear(b.deferredSet)
	for _, element := range deferred {
		if element.Lifecycle() == LifecycleActive && element.NeedsBuild() {
			b.ScheduleBuild(element)
		}
	}
}

func (b *BuildOwner) scheduleRenderSync(element *RenderObjectElement) {
	if b.renderSet[element] {
		return
	}
	if b.renderSet == nil {
		b.renderSet = make(map[*RenderObjectElement]bool)
	}
	b.renderSet[element] = true
	b.renderSync = append(b.renderSync, element)
}

// flushRenderSync refreshes the child lists of render objects whose subtree
// replaced a render object outside their own rebuild.
func (b *BuildOwner) flushRenderSync() {
	for len(b.renderSync) > 0 {
		pending := b.renderSync
		b.renderSync = nil
		clear(b.renderSet)
		for _, element := range pending {
			element.syncRenderChildren()
		}
	}
}

func (b *BuildOwner) scheduleFallback(target fallbackTarget) {
	b.fallbacks = append(b.fallbacks, target)
}

// applyFallbacks lets error boundaries that caught an error swap in their
// fallback once the build that failed has fully unwound.
func (b *BuildOwner) applyFallbacks() {
	for len(b.fallbacks) > 0 {
		target := b.fallbacks[0]
		b.fallbacks = b.fallbacks[1:]
		if target.Lifecycle() == LifecycleActive {
			target.applyFallback()
		}
	}
}

func (b *BuildOwner) recordBuildError(err *errors.BuildError) {
	b.buildErrs = append(b.buildErrs, err)
}

func (b *BuildOwner) takeBuildErrors() error {
	errs := b.buildErrs
	b.buildErrs = nil
	return goerrors.Join(errs...)
}

func (b *BuildOwner) recordTeardownError(err *errors.TeardownError) {
	b.teardowns = append(b.teardowns, err)
}

func (b *BuildOwner) noteMounted() {
	b.stats.Mounts++
}

func (b *BuildOwner) noteUnmounted() {
	b.stats.Unmounts++
}
