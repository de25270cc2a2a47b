package core

import (
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/sourcegraph/conc"
)

type fakeController struct {
	disposed atomic.Bool
}

func (c *fakeController) Dispose() { c.disposed.Store(true) }

// subscriber wires every hook to the given sources in InitState.
type subscriber struct {
	StatefulBase
	notifier   *Notifier
	observable *Observable[int]
}

func (subscriber) CreateState() State { return &subscriberState{} }

type subscriberState struct {
	StateBase
	controller *fakeController
	count      *Managed[int]
	builds     int
}

func (s *subscriberState) InitState() {
	w := s.Element().Widget().(subscriber)
	s.controller = UseController(s, func() *fakeController { return &fakeController{} })
	s.count = NewManaged(s, 0)
	if w.notifier != nil {
		UseListenable(s, w.notifier)
	}
	if w.observable != nil {
		UseObservable(s, w.observable)
	}
}

func (s *subscriberState) Build(ctx BuildContext) Widget {
	s.builds++
	return leaf{label: fmt.Sprint(s.count.Value())}
}

func mountSubscriber(t *testing.T, w subscriber) (*BuildOwner, Element, *subscriberState) {
	t.Helper()
	owner := NewBuildOwner()
	root, err := MountRoot(w, owner)
	if err != nil {
		t.Fatalf("MountRoot: %v", err)
	}
	return owner, root, root.(*StatefulElement).State().(*subscriberState)
}

func TestUseListenable_NotifyFromGoroutines(t *testing.T) {
	notifier := NewNotifier()
	owner, _, state := mountSubscriber(t, subscriber{notifier: notifier})

	var wg conc.WaitGroup
	for range 4 {
		wg.Go(notifier.Notify)
	}
	wg.Wait()

	mustFlush(t, owner)
	if state.builds != 2 {
		t.Errorf("builds = %d, want 2 (notifications coalesce)", state.builds)
	}
}

func TestUseObservable_SkipsEqualValues(t *testing.T) {
	obs := NewObservable(1)
	owner, _, state := mountSubscriber(t, subscriber{observable: obs})

	obs.Set(1)
	if owner.NeedsWork() {
		t.Fatal("setting an equal value should not request a rebuild")
	}
	obs.Set(2)
	mustFlush(t, owner)
	if state.builds != 2 {
		t.Errorf("builds = %d, want 2", state.builds)
	}
}

func TestManaged_SetRebuilds(t *testing.T) {
	owner, root, state := mountSubscriber(t, subscriber{})

	state.count.Set(4)
	state.count.Update(func(v int) int { return v * 10 })
	if got := owner.DirtyCount(); got != 1 {
		t.Fatalf("DirtyCount = %d, want 1", got)
	}
	mustFlush(t, owner)

	if got := RenderObjectOf(root).(*leafRender).label; got != "40" {
		t.Errorf("label = %q, want %q", got, "40")
	}
}

func TestHooks_ReleasedOnUnmount(t *testing.T) {
	notifier := NewNotifier()
	obs := NewObservable(0)
	owner, root, state := mountSubscriber(t, subscriber{notifier: notifier, observable: obs})

	if err := UnmountRoot(root); err != nil {
		t.Fatalf("UnmountRoot: %v", err)
	}
	if !state.controller.disposed.Load() {
		t.Error("controller should be disposed with its state")
	}
	if notifier.ListenerCount() != 0 || obs.ListenerCount() != 0 {
		t.Errorf("listeners left: notifier %d, observable %d", notifier.ListenerCount(), obs.ListenerCount())
	}

	notifier.Notify()
	obs.Set(3)
	state.count.Set(9)
	if owner.NeedsWork() {
		t.Error("an unmounted state must not schedule work")
	}
}

func TestUseController_WithoutElement(t *testing.T) {
	base := &StateBase{}
	controller := UseController(base, func() *fakeController { return &fakeController{} })

	base.Dispose()
	if !controller.disposed.Load() {
		t.Error("controller should be disposed when StateBase is disposed")
	}

	// Listeners on an unmounted state are no-ops.
	notifier := NewNotifier()
	UseListenable(&StateBase{}, notifier)
	notifier.Notify()
}
