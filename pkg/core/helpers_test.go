package core

import (
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/sourcegraph/conc"

	"github.com/go-drift/retain/pkg/layout"
)

type plainStateless struct {
	StatelessBase
}

func (plainStateless) Build(BuildContext) Widget { return nil }

type keyedStateless struct {
	StatelessBase
	id string
}

func (keyedStateless) Build(BuildContext) Widget { return nil }
func (w keyedStateless) Key() any              { return w.id }

type plainStateful struct {
	StatefulBase
}

func (plainStateful) CreateState() State { return &StateBase{} }

type plainInherited struct {
	InheritedBase
	child Widget
}

func (w plainInherited) ChildWidget() Widget                     { return w.child }
func (w plainInherited) UpdateShouldNotify(InheritedWidget) bool { return false }

type plainRender struct {
	RenderObjectBase
}

func (plainRender) CreateRenderObject(BuildContext) layout.RenderObject { return nil }
func (plainRender) UpdateRenderObject(BuildContext, layout.RenderObject) {}

func TestBaseEmbeddings(t *testing.T) {
	tests := []struct {
		widget  Widget
		element string
		key     any
		kind    WidgetKind
	}{
		{plainStateless{}, "*core.StatelessElement", nil, KindStateless},
		{keyedStateless{id: "custom"}, "*core.StatelessElement", "custom", KindStateless},
		{plainStateful{}, "*core.StatefulElement", nil, KindStateful},
		{plainInherited{}, "*core.InheritedElement", nil, KindInherited},
		{plainRender{}, "*core.RenderObjectElement", nil, KindLeaf},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%T", tt.widget), func(t *testing.T) {
			got := struct {
				Element string
				Key     any
				Kind    WidgetKind
			}{typeName(tt.widget.CreateElement()), tt.widget.Key(), KindOf(tt.widget)}
			want := struct {
				Element string
				Key     any
				Kind    WidgetKind
			}{tt.element, tt.key, tt.kind}
			if diff := cmp.Diff(want, got); diff != "" {
				t.Errorf("mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		name   string
		widget Widget
		want   WidgetKind
	}{
		{"nil", nil, KindUnknown},
		{"provider", Provider[int]{}, KindInherited},
		{"boundary", ErrorBoundary{}, KindStateful},
		{"single child", box{}, KindSingleChild},
		{"multi child", column{}, KindMultiChild},
		{"inline stateful", Stateful(func() int { return 0 }, nil), KindStateful},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := KindOf(tt.widget); got != tt.want {
				t.Errorf("KindOf() = %v, want %v", got, tt.want)
			}
		})
	}
}

// counterApp mounts an inline stateful widget and exposes its setState.
func counterApp(t *testing.T, initial int) (*BuildOwner, *[]int, func(func(int) int)) {
	t.Helper()
	var setStateFn func(func(int) int)
	seen := &[]int{}
	root := Stateful(
		func() int { return initial },
		func(state int, ctx BuildContext, setState func(func(int) int)) Widget {
			setStateFn = setState
			*seen = append(*seen, state)
			return leaf{label: fmt.Sprint(state)}
		},
	)
	owner := NewBuildOwner()
	if _, err := MountRoot(root, owner); err != nil {
		t.Fatalf("MountRoot: %v", err)
	}
	return owner, seen, setStateFn
}

func TestStateful_TransformsApplyBeforeNextBuild(t *testing.T) {
	owner, seen, setState := counterApp(t, 1)

	setState(func(v int) int { return v + 10 })
	setState(func(v int) int { return v * 2 })
	if !owner.NeedsWork() {
		t.Fatal("setState should queue a rebuild request")
	}
	mustFlush(t, owner)

	if diff := cmp.Diff([]int{1, 22}, *seen); diff != "" {
		t.Errorf("builds (-want +got):\n%s", diff)
	}
}

func TestStateful_ConcurrentSetState(t *testing.T) {
	owner, seen, setState := counterApp(t, 0)

	var wg conc.WaitGroup
	for range 20 {
		wg.Go(func() { setState(func(v int) int { return v + 1 }) })
	}
	wg.Wait()
	mustFlush(t, owner)

	if diff := cmp.Diff([]int{0, 20}, *seen); diff != "" {
		t.Errorf("builds (-want +got):\n%s", diff)
	}
}

func TestStateful_SetStateAfterUnmount(t *testing.T) {
	var setStateFn func(func(string) string)
	root, err := MountRoot(Stateful(
		func() string { return "a" },
		func(state string, ctx BuildContext, setState func(func(string) string)) Widget {
			setStateFn = setState
			return nil
		},
	), nil)
	if err != nil {
		t.Fatalf("MountRoot: %v", err)
	}
	owner := root.Owner()
	if err := UnmountRoot(root); err != nil {
		t.Fatalf("UnmountRoot: %v", err)
	}

	setStateFn(func(s string) string { return s + "!" })
	if owner.NeedsWork() {
		t.Error("setState after unmount must not schedule work")
	}
}
