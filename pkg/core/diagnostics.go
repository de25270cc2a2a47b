package core

import (
	"encoding/json"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// DefaultDiagnosticsDepth is the subtree depth DescribeTree walks when given
// a non-positive limit.
const DefaultDiagnosticsDepth = 100

// DiagnosticsNode is a serializable snapshot of one element.
type DiagnosticsNode struct {
	WidgetType   string            `json:"widgetType" yaml:"widget"`
	ElementType  string            `json:"elementType" yaml:"element"`
	Kind         string            `json:"kind" yaml:"kind"`
	Key          any               `json:"key,omitempty" yaml:"key,omitempty"`
	Depth        int               `json:"depth" yaml:"depth"`
	Lifecycle    string            `json:"lifecycle" yaml:"lifecycle"`
	NeedsBuild   bool              `json:"needsBuild,omitempty" yaml:"needsBuild,omitempty"`
	HasState     bool              `json:"hasState,omitempty" yaml:"hasState,omitempty"`
	Dependents   int               `json:"dependents,omitempty" yaml:"dependents,omitempty"`
	RenderObject string            `json:"renderObject,omitempty" yaml:"renderObject,omitempty"`
	Truncated    bool              `json:"truncated,omitempty" yaml:"truncated,omitempty"`
	Children     []DiagnosticsNode `json:"children,omitempty" yaml:"children,omitempty"`
}

// DescribeTree snapshots the element tree rooted at root, descending at
// most maxDepth levels below it.
func DescribeTree(root Element, maxDepth int) DiagnosticsNode {
	if maxDepth <= 0 {
		maxDepth = DefaultDiagnosticsDepth
	}
	return describe(root, 0, maxDepth)
}

func describe(elem Element, level, maxDepth int) DiagnosticsNode {
	if elem == nil {
		return DiagnosticsNode{ElementType: "<nil>"}
	}

	widget := elem.Widget()
	node := DiagnosticsNode{
		WidgetType:  typeName(widget),
		ElementType: typeName(elem),
		Kind:        KindOf(widget).String(),
		Depth:       elem.Depth(),
		Lifecycle:   elem.Lifecycle().String(),
		NeedsBuild:  elem.NeedsBuild(),
	}
	if widget != nil {
		node.Key = safeKey(widget.Key())
	}
	switch typed := elem.(type) {
	case *StatefulElement:
		node.HasState = true
	case *ErrorBoundaryElement:
		node.HasState = true
	case *InheritedElement:
		node.Dependents = typed.DependentCount()
	case *RenderObjectElement:
		if ro := typed.RenderObject(); ro != nil {
			node.RenderObject = typeName(ro)
		}
	}

	if level >= maxDepth {
		elem.VisitChildren(func(Element) bool {
			node.Truncated = true
			return false
		})
		return node
	}
	elem.VisitChildren(func(child Element) bool {
		node.Children = append(node.Children, describe(child, level+1, maxDepth))
		return true
	})
	return node
}

// safeKey converts a widget key to a serializable value.
// Non-serializable types (funcs, chans, etc.) are converted to their string representation.
func safeKey(key any) any {
	if key == nil {
		return nil
	}
	switch key.(type) {
	case string, int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64, bool:
		return key
	default:
		return fmt.Sprintf("%v", key)
	}
}

// DumpYAML writes the snapshot as YAML.
func (n DiagnosticsNode) DumpYAML(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(n); err != nil {
		return fmt.Errorf("encode diagnostics: %w", err)
	}
	return enc.Close()
}

// DumpJSON writes the snapshot as indented JSON.
func (n DiagnosticsNode) DumpJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(n); err != nil {
		return fmt.Errorf("encode diagnostics: %w", err)
	}
	return nil
}

// Count returns the number of nodes in the snapshot.
func (n DiagnosticsNode) Count() int {
	total := 1
	for _, child := range n.Children {
		total += child.Count()
	}
	return total
}
