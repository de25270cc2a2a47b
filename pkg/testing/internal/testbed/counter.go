// Package testbed provides internal test widgets for the testing framework.
package testbed

import (
	"strconv"

	"github.com/go-drift/retain/pkg/core"
	"github.com/go-drift/retain/pkg/layout"
	retaintest "github.com/go-drift/retain/pkg/testing"
)

// Label is a leaf widget backed by a recording render object named Text.
type Label struct {
	Text string
	ID   any
	Log  *retaintest.LifecycleLog
}

func (l Label) CreateElement() core.Element { return core.NewRenderObjectElement() }

func (l Label) Key() any { return l.ID }

func (l Label) CreateRenderObject(ctx core.BuildContext) layout.RenderObject {
	return retaintest.NewRecordingRenderObject(l.Text, l.Log)
}

func (l Label) UpdateRenderObject(ctx core.BuildContext, ro layout.RenderObject) {
	ro.(*retaintest.RecordingRenderObject).Name = l.Text
}

// Column lays out Items under a recording render object named Name.
type Column struct {
	Name  string
	Items []core.Widget
	Log   *retaintest.LifecycleLog
}

func (c Column) CreateElement() core.Element { return core.NewRenderObjectElement() }

func (c Column) Key() any { return nil }

func (c Column) Children() []core.Widget { return c.Items }

func (c Column) CreateRenderObject(ctx core.BuildContext) layout.RenderObject {
	return retaintest.NewRecordingRenderObject(c.Name, c.Log)
}

func (c Column) UpdateRenderObject(ctx core.BuildContext, ro layout.RenderObject) {}

// Counter is a stateful widget that displays a count as a Label.
type Counter struct {
	Initial int
	ID      any
	Log     *retaintest.LifecycleLog
	// FailDispose makes the state panic from Dispose.
	FailDispose bool
}

func (c Counter) CreateElement() core.Element { return core.NewStatefulElement() }

func (c Counter) Key() any { return c.ID }

func (c Counter) CreateState() core.State {
	return &CounterState{}
}

// CounterState holds the current count.
type CounterState struct {
	core.StateBase
	Count  int
	Builds int
	log    *retaintest.LifecycleLog
}

func (s *CounterState) InitState() {
	w := s.Element().Widget().(Counter)
	s.Count = w.Initial
	s.log = w.Log
	s.record("init %d", s.Count)
}

func (s *CounterState) Build(ctx core.BuildContext) core.Widget {
	s.Builds++
	return Label{Text: strconv.Itoa(s.Count)}
}

func (s *CounterState) DidUpdateWidget(oldWidget core.StatefulWidget) {
	s.record("update %d", s.Count)
}

func (s *CounterState) Dispose() {
	s.record("dispose %d", s.Count)
	s.StateBase.Dispose()
	if s.Element().Widget().(Counter).FailDispose {
		panic("counter dispose failed")
	}
}

// Increment bumps the count and schedules a rebuild.
func (s *CounterState) Increment() {
	s.SetState(func() { s.Count++ })
}

func (s *CounterState) record(format string, args ...any) {
	if s.log != nil {
		s.log.Add("counter "+format, args...)
	}
}
