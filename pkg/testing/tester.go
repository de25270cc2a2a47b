package testing

import (
	stderrors "errors"
	"sync"
	"testing"

	"github.com/go-drift/retain/pkg/core"
	"github.com/go-drift/retain/pkg/layout"
)

// DefaultSettleFrames is the frame limit PumpAndSettle uses when given a
// non-positive one.
const DefaultSettleFrames = 100

// ErrSettleTimeout is returned when PumpAndSettle exceeds its frame limit.
var ErrSettleTimeout = stderrors.New("PumpAndSettle gave up: tree did not settle")

// WidgetTester drives a widget tree through the same build phase as the
// runner, synchronously and without a render backend. It acts as the
// backend itself: after each frame it drains the pipeline and clears the
// layout and paint flags of the drained objects.
type WidgetTester struct {
	owner  *core.BuildOwner
	root   core.Element
	layout []layout.RenderObject
	paint  []layout.RenderObject

	mu         sync.Mutex
	dispatches []func()
}

// NewWidgetTester creates a tester with a fresh build owner.
// Call Cleanup() when done, or use NewWidgetTesterWithT() instead.
func NewWidgetTester() *WidgetTester {
	return &WidgetTester{owner: core.NewBuildOwner()}
}

// NewWidgetTesterWithT creates a tester that unmounts its tree via t.Cleanup().
// This is the recommended constructor for tests.
func NewWidgetTesterWithT(t testing.TB) *WidgetTester {
	tester := NewWidgetTester()
	t.Cleanup(func() {
		if err := tester.Cleanup(); err != nil {
			t.Errorf("WidgetTester cleanup: %v", err)
		}
	})
	return tester
}

// Cleanup unmounts the mounted tree, if any.
func (t *WidgetTester) Cleanup() error {
	if t.root == nil {
		return nil
	}
	errs := []error{core.UnmountRoot(t.root)}
	t.root = nil
	for _, teardown := range t.owner.TakeTeardownErrors() {
		errs = append(errs, teardown)
	}
	return stderrors.Join(errs...)
}

// Owner returns the build owner driving the tree.
func (t *WidgetTester) Owner() *core.BuildOwner {
	return t.owner
}

// PumpWidget installs widget as the root and runs one frame. The first call
// mounts it; later calls reconcile it against the mounted root, so elements
// and states are reused wherever the widgets allow.
func (t *WidgetTester) PumpWidget(widget core.Widget) error {
	root, err := core.UpdateRoot(t.root, widget, t.owner)
	t.root = root
	return stderrors.Join(err, t.Pump())
}

// Remount unmounts the current tree and mounts widget from scratch.
func (t *WidgetTester) Remount(widget core.Widget) error {
	if err := t.Cleanup(); err != nil {
		return err
	}
	return t.PumpWidget(widget)
}

// Pump runs a single frame: queued dispatches, the build flush, then the
// pipeline drain.
func (t *WidgetTester) Pump() error {
	t.mu.Lock()
	dispatches := t.dispatches
	t.dispatches = nil
	t.mu.Unlock()
	for _, fn := range dispatches {
		fn()
	}

	err := t.owner.FlushBuild()
	t.drainPipeline()
	return err
}

// PumpAndSettle pumps until no rebuilds or dispatches are pending.
// Returns ErrSettleTimeout if the tree is still busy after maxFrames.
func (t *WidgetTester) PumpAndSettle(maxFrames int) error {
	if maxFrames <= 0 {
		maxFrames = DefaultSettleFrames
	}
	for range maxFrames {
		if err := t.Pump(); err != nil {
			return err
		}
		if !t.needsWork() {
			return nil
		}
	}
	return ErrSettleTimeout
}

func (t *WidgetTester) needsWork() bool {
	t.mu.Lock()
	pending := len(t.dispatches) > 0
	t.mu.Unlock()
	return pending || t.owner.NeedsWork()
}

// Dispatch queues a callback for the next frame, mirroring the runner's
// Dispatch. It is safe to call from any goroutine.
func (t *WidgetTester) Dispatch(fn func()) {
	if fn == nil {
		return
	}
	t.mu.Lock()
	t.dispatches = append(t.dispatches, fn)
	t.mu.Unlock()
}

// drainPipeline plays the backend: it takes the dirty queues and marks the
// objects as laid out and painted.
func (t *WidgetTester) drainPipeline() {
	pipeline := t.owner.Pipeline()
	t.layout = pipeline.TakeLayout()
	t.paint = pipeline.TakePaint()
	for _, ro := range t.layout {
		if c, ok := ro.(interface{ ClearNeedsLayout() }); ok {
			c.ClearNeedsLayout()
		}
	}
	for _, ro := range t.paint {
		if c, ok := ro.(interface{ ClearNeedsPaint() }); ok {
			c.ClearNeedsPaint()
		}
	}
}

// LaidOut returns the render objects the last frame scheduled for layout,
// parents first.
func (t *WidgetTester) LaidOut() []layout.RenderObject {
	return t.layout
}

// Painted returns the render objects the last frame scheduled for paint.
func (t *WidgetTester) Painted() []layout.RenderObject {
	return t.paint
}

// RootElement returns the root element of the mounted tree.
func (t *WidgetTester) RootElement() core.Element {
	return t.root
}

// RootRenderObject returns the topmost render object of the mounted tree.
func (t *WidgetTester) RootRenderObject() layout.RenderObject {
	return core.RenderObjectOf(t.root)
}

// Find evaluates a finder against the current element tree.
func (t *WidgetTester) Find(finder Finder) FinderResult {
	if t.root == nil {
		return FinderResult{finder: finder}
	}
	return FinderResult{
		elements: finder.Evaluate(t.root),
		finder:   finder,
	}
}
