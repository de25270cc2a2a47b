package core

import (
	stderrors "errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/go-drift/retain/pkg/errors"
)

// passthrough is a pointer widget; handing the same pointer back makes the
// reconciler skip it and everything below it.
type passthrough struct {
	StatelessBase
	child  Widget
	builds int
}

func (p *passthrough) Build(ctx BuildContext) Widget {
	p.builds++
	return p.child
}

type intReader struct {
	StatelessBase
	seen *[]int
}

func (r *intReader) Build(ctx BuildContext) Widget {
	v, ok := Read[int](ctx)
	if !ok {
		v = -1
	}
	*r.seen = append(*r.seen, v)
	return nil
}

func TestProvider_NotifiesThroughSkippedSubtree(t *testing.T) {
	var seen []int
	reader := &intReader{seen: &seen}
	mid := &passthrough{child: reader}
	owner, _, host := mountHolder(Provider[int]{Value: 1, Child: mid})

	host.set(Provider[int]{Value: 2, Child: mid})
	mustFlush(t, owner)

	if diff := cmp.Diff([]int{1, 2}, seen); diff != "" {
		t.Errorf("reader values mismatch (-want +got):\n%s", diff)
	}
	if mid.builds != 1 {
		t.Errorf("intermediate widget rebuilt %d times, want 1", mid.builds)
	}
}

func TestProvider_EqualValueDoesNotNotify(t *testing.T) {
	var seen []int
	mid := &passthrough{child: &intReader{seen: &seen}}
	owner, _, host := mountHolder(Provider[int]{Value: 1, Child: mid})

	host.set(Provider[int]{Value: 1, Child: mid})
	mustFlush(t, owner)

	if len(seen) != 1 {
		t.Errorf("reader rebuilt without a change: %v", seen)
	}
}

func TestProvider_Version(t *testing.T) {
	type config struct{ Name string }
	cfg := &config{Name: "a"}

	var names []string
	reader := &funcWidget{build: func(ctx BuildContext) Widget {
		c := MustRead[*config](ctx)
		names = append(names, c.Name)
		return nil
	}}
	mid := &passthrough{child: reader}
	owner, _, host := mountHolder(Provider[*config]{Value: cfg, Version: 1, Child: mid})

	// Same version: no notification even though the value was mutated.
	cfg.Name = "b"
	host.set(Provider[*config]{Value: cfg, Version: 1, Child: mid})
	mustFlush(t, owner)

	host.set(Provider[*config]{Value: cfg, Version: 2, Child: mid})
	mustFlush(t, owner)

	if diff := cmp.Diff([]string{"a", "b"}, names); diff != "" {
		t.Errorf("reader values mismatch (-want +got):\n%s", diff)
	}
}

type funcWidget struct {
	StatelessBase
	build func(ctx BuildContext) Widget
}

func (f *funcWidget) Build(ctx BuildContext) Widget { return f.build(ctx) }

func TestRead_NearestProviderWins(t *testing.T) {
	var seen []int
	_, err := MountRoot(Provider[int]{Value: 1, Child: Provider[int]{Value: 2, Child: &intReader{seen: &seen}}}, nil)
	if err != nil {
		t.Fatalf("MountRoot: %v", err)
	}
	if diff := cmp.Diff([]int{2}, seen); diff != "" {
		t.Errorf("reader values mismatch (-want +got):\n%s", diff)
	}
}

func TestRead_NoProvider(t *testing.T) {
	var seen []int
	if _, err := MountRoot(&intReader{seen: &seen}, nil); err != nil {
		t.Fatalf("MountRoot: %v", err)
	}
	if diff := cmp.Diff([]int{-1}, seen); diff != "" {
		t.Errorf("reader values mismatch (-want +got):\n%s", diff)
	}
}

func TestMustRead_NoProviderFailsBuild(t *testing.T) {
	errors.SetHandler(&testHandler{})
	defer errors.SetHandler(nil)

	reader := &funcWidget{build: func(ctx BuildContext) Widget {
		MustRead[string](ctx)
		return nil
	}}
	_, err := MountRoot(reader, nil)
	if !stderrors.Is(err, errors.ErrNoProvider) {
		t.Fatalf("expected ErrNoProvider, got %v", err)
	}
	var buildErr *errors.BuildError
	if !stderrors.As(err, &buildErr) {
		t.Fatalf("expected BuildError, got %T", err)
	}
	if buildErr.Widget != "*core.funcWidget" {
		t.Errorf("widget = %q", buildErr.Widget)
	}
}

func TestProvider_DependentsDroppedOnRemoval(t *testing.T) {
	var seen []int
	owner, root, host := mountHolder(Provider[int]{Value: 1, Child: &intReader{seen: &seen}})
	provider := childOf(root).(*InheritedElement)
	if provider.DependentCount() != 1 {
		t.Fatalf("expected 1 dependent, got %d", provider.DependentCount())
	}

	host.set(Provider[int]{Value: 1})
	mustFlush(t, owner)
	if provider.DependentCount() != 0 {
		t.Errorf("unmounted reader should be deregistered, got %d", provider.DependentCount())
	}
}

func TestProvider_UnmountClearsDependencies(t *testing.T) {
	var seen []int
	reader := &intReader{seen: &seen}
	owner, root, host := mountHolder(Provider[int]{Value: 1, Child: reader})
	readerEl := childOf(childOf(root))

	host.set(nil)
	mustFlush(t, owner)
	if readerEl.Lifecycle() != LifecycleDefunct {
		t.Fatal("reader should be unmounted with its provider")
	}
	if deps := readerEl.base().dependencies; len(deps) != 0 {
		t.Errorf("defunct reader still references %d providers", len(deps))
	}
}

func TestProvider_StatefulDependentSeesDidChangeDependencies(t *testing.T) {
	log := &eventLog{}
	reader := probe{name: "r", log: log, onBuild: func(s *probeState, ctx BuildContext) {
		Read[int](ctx)
	}}
	mid := &passthrough{child: reader}
	owner, root, host := mountHolder(Provider[int]{Value: 1, Child: mid})

	host.set(Provider[int]{Value: 5, Child: mid})
	mustFlush(t, owner)

	readerEl := childOf(childOf(childOf(root)))
	state := stateOf(readerEl)
	if state.depsSeen != 1 || state.builds != 2 {
		t.Errorf("depsSeen=%d builds=%d, want 1 and 2", state.depsSeen, state.builds)
	}
}

type splitScope struct {
	InheritedBase
	a, b  int
	child Widget
}

func (s splitScope) ChildWidget() Widget { return s.child }

func (s splitScope) UpdateShouldNotify(old InheritedWidget) bool {
	o := old.(splitScope)
	return o.a != s.a || o.b != s.b
}

func (s splitScope) UpdateShouldNotifyDependent(old InheritedWidget, aspects map[any]struct{}) bool {
	o := old.(splitScope)
	if _, ok := aspects["a"]; ok && o.a != s.a {
		return true
	}
	if _, ok := aspects["b"]; ok && o.b != s.b {
		return true
	}
	return false
}

func TestDependOn_Aspects(t *testing.T) {
	var aReads, bReads int
	readerA := &funcWidget{build: func(ctx BuildContext) Widget {
		DependOn[splitScope](ctx, "a")
		aReads++
		return nil
	}}
	readerB := &funcWidget{build: func(ctx BuildContext) Widget {
		DependOn[splitScope](ctx, "b")
		bReads++
		return nil
	}}
	body := &passthrough{child: column{children: []Widget{box{child: readerA}, box{child: readerB}}}}
	owner, _, host := mountHolder(splitScope{a: 1, b: 1, child: body})

	host.set(splitScope{a: 2, b: 1, child: body})
	mustFlush(t, owner)

	if aReads != 2 || bReads != 1 {
		t.Errorf("aReads=%d bReads=%d, want 2 and 1", aReads, bReads)
	}
}
