package core

import (
	"fmt"

	"github.com/go-drift/retain/pkg/errors"
	"github.com/go-drift/retain/pkg/layout"
)

// eventLog records lifecycle events in order.
type eventLog struct {
	events []string
}

func (l *eventLog) add(format string, args ...any) {
	if l == nil {
		return
	}
	l.events = append(l.events, fmt.Sprintf(format, args...))
}

func (l *eventLog) take() []string {
	events := l.events
	l.events = nil
	return events
}

// probe is a stateful widget that logs its state's lifecycle. The state
// remembers the name of the widget it was created for in origin.
type probe struct {
	name    string
	key     any
	log     *eventLog
	child   Widget
	onBuild func(s *probeState, ctx BuildContext)
}

func (p probe) CreateElement() Element { return NewStatefulElement() }
func (p probe) Key() any               { return p.key }
func (p probe) CreateState() State     { return &probeState{} }

type probeState struct {
	StateBase
	origin   string
	builds   int
	depsSeen int
}

func (s *probeState) widget() probe { return s.Element().Widget().(probe) }

func (s *probeState) InitState() {
	w := s.widget()
	s.origin = w.name
	w.log.add("init %s", w.name)
}

func (s *probeState) Build(ctx BuildContext) Widget {
	w := s.widget()
	s.builds++
	w.log.add("build %s", w.name)
	if w.onBuild != nil {
		w.onBuild(s, ctx)
	}
	return w.child
}

func (s *probeState) DidUpdateWidget(old StatefulWidget) {
	w := s.widget()
	if prev := old.(probe); prev.name != w.name {
		w.log.add("update %s->%s", prev.name, w.name)
	}
}

func (s *probeState) DidChangeDependencies() {
	s.depsSeen++
}

func (s *probeState) Dispose() {
	s.widget().log.add("dispose %s", s.origin)
	s.StateBase.Dispose()
}

func stateOf(e Element) *probeState {
	return e.(*StatefulElement).State().(*probeState)
}

// text is a stateless leaf wrapper that counts its builds.
type text struct {
	label  string
	key    any
	builds *int
}

func (t text) CreateElement() Element { return NewStatelessElement() }
func (t text) Key() any               { return t.key }
func (t text) Build(ctx BuildContext) Widget {
	if t.builds != nil {
		*t.builds++
	}
	return leaf{label: t.label}
}

// leaf is a render object widget without children.
type leaf struct {
	RenderObjectBase
	label string
	key   any
}

func (l leaf) Key() any { return l.key }

func (l leaf) CreateRenderObject(ctx BuildContext) layout.RenderObject {
	return newLeafRender(l.label)
}

func (l leaf) UpdateRenderObject(ctx BuildContext, ro layout.RenderObject) {
	ro.(*leafRender).label = l.label
}

// box is a render object widget with one child.
type box struct {
	RenderObjectBase
	child Widget
}

func (b box) Child() Widget { return b.child }

func (b box) CreateRenderObject(ctx BuildContext) layout.RenderObject {
	r := &boxRender{}
	r.SetSelf(r)
	return r
}

func (b box) UpdateRenderObject(ctx BuildContext, ro layout.RenderObject) {}

// column is a render object widget with an ordered child list.
type column struct {
	RenderObjectBase
	children []Widget
}

func (c column) Children() []Widget { return c.children }

func (c column) CreateRenderObject(ctx BuildContext) layout.RenderObject {
	r := &columnRender{}
	r.SetSelf(r)
	return r
}

func (c column) UpdateRenderObject(ctx BuildContext, ro layout.RenderObject) {}

type leafRender struct {
	layout.RenderObjectBase
	label string
}

func newLeafRender(label string) *leafRender {
	r := &leafRender{label: label}
	r.SetSelf(r)
	return r
}

type boxRender struct {
	layout.RenderObjectBase
	child layout.RenderObject
}

func (r *boxRender) SetChild(child layout.RenderObject) {
	r.child = child
}

type columnRender struct {
	layout.RenderObjectBase
	children []layout.RenderObject
	sets     int
}

func (r *columnRender) SetChildren(children []layout.RenderObject) {
	r.children = children
	r.sets++
}

func (r *columnRender) labels() []string {
	labels := make([]string, 0, len(r.children))
	for _, child := range r.children {
		labels = append(labels, child.(*leafRender).label)
	}
	return labels
}

// holder is a stateful widget whose child is swapped by tests through its
// state.
type holder struct {
	StatefulBase
	initial Widget
}

func (h holder) CreateState() State { return &holderState{child: h.initial} }

type holderState struct {
	StateBase
	child Widget
}

func (s *holderState) Build(ctx BuildContext) Widget { return s.child }

func (s *holderState) set(child Widget) {
	s.SetState(func() { s.child = child })
}

func mountHolder(initial Widget) (*BuildOwner, Element, *holderState) {
	owner := NewBuildOwner()
	root, err := MountRoot(holder{initial: initial}, owner)
	if err != nil {
		panic(err)
	}
	return owner, root, root.(*StatefulElement).State().(*holderState)
}

func childOf(e Element) Element {
	var child Element
	e.VisitChildren(func(c Element) bool {
		child = c
		return false
	})
	return child
}

func childrenOf(e Element) []Element {
	var children []Element
	e.VisitChildren(func(c Element) bool {
		children = append(children, c)
		return true
	})
	return children
}

// testHandler routes reported errors to optional callbacks and keeps test
// output free of the default log lines.
type testHandler struct {
	onBuildError func(*errors.BuildError)
	onInvariant  func(*errors.InvariantError)
	onTeardown   func(*errors.TeardownError)
}

func (h *testHandler) HandleError(*errors.FrameworkError) {}

func (h *testHandler) HandlePanic(*errors.PanicError) {}

func (h *testHandler) HandleBuildError(err *errors.BuildError) {
	if h.onBuildError != nil {
		h.onBuildError(err)
	}
}

func (h *testHandler) HandleInvariant(err *errors.InvariantError) {
	if h.onInvariant != nil {
		h.onInvariant(err)
	}
}

func (h *testHandler) HandleTeardown(err *errors.TeardownError) {
	if h.onTeardown != nil {
		h.onTeardown(err)
	}
}

// silenceErrors installs a quiet handler for the duration of the test.
func silenceErrors(t interface{ Cleanup(func()) }) *testHandler {
	h := &testHandler{}
	errors.SetHandler(h)
	t.Cleanup(func() { errors.SetHandler(nil) })
	return h
}
