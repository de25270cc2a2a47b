package core

import (
	"fmt"
	"reflect"
	"time"

	"github.com/go-drift/retain/pkg/errors"
)

// updateChild reconciles one child position.
//
//   - widget nil: existing is unmounted and nil is returned.
//   - existing can take widget (same type, equal key): existing is reused.
//     If widget is the very configuration it already holds and nothing in it
//     is dirty, the whole subtree is skipped.
//   - otherwise existing is unmounted and widget is inflated in its place.
//
// The returned element always holds widget.
func updateChild(existing Element, widget Widget, parent Element, slot any) Element {
	if widget == nil {
		if existing != nil {
			existing.Unmount()
		}
		return nil
	}
	if existing != nil {
		eb := existing.base()
		if CanUpdate(eb.widget, widget) {
			eb.slot = slot
			if !eb.dirty && !isParentBound(widget) && sameWidget(eb.widget, widget) {
				eb.widget = widget
				return existing
			}
			existing.Update(widget)
			return existing
		}
		existing.Unmount()
	}
	return inflateWidget(widget, parent, slot)
}

// inflateWidget creates and mounts the element for widget.
func inflateWidget(widget Widget, parent Element, slot any) Element {
	element := widget.CreateElement()
	eb := element.base()
	eb.widget = widget
	eb.self = element
	if parent != nil {
		eb.owner = parent.base().owner
	}
	element.Mount(parent, slot)
	return element
}

// hashableKey returns key itself when it can be used as a map key, and a
// stable textual form otherwise.
func hashableKey(key any) any {
	if reflect.ValueOf(key).Comparable() {
		return key
	}
	return fmt.Sprintf("%T:%#v", key, key)
}

// updateChildren reconciles an ordered child list.
//
// When no widget in the list declares a key, children are matched by
// position. Otherwise old children are looked up by key only: keyed widgets
// reuse the old element with the same key and unkeyed widgets are inflated
// fresh. Matched elements are updated in place and keep their state, and old
// elements left unmatched are unmounted after the walk in their old order.
// Nil entries in widgets are skipped.
//
// Two siblings with equal keys violate the identity contract and raise an
// InvariantError before anything in the list is touched.
func updateChildren(parent Element, old []Element, widgets []Widget) []Element {
	keys := make([]any, len(widgets))
	seen := make(map[any]struct{}, len(widgets))
	for i, w := range widgets {
		if w == nil || w.Key() == nil {
			continue
		}
		key := hashableKey(w.Key())
		if _, dup := seen[key]; dup {
			panic(&errors.InvariantError{
				Kind:       errors.InvariantDuplicateKey,
				Element:    typeName(parent),
				Detail:     fmt.Sprintf("key %#v appears more than once among children of %s", w.Key(), typeName(parent.Widget())),
				StackTrace: errors.CaptureStack(),
				Timestamp:  time.Now(),
			})
		}
		seen[key] = struct{}{}
		keys[i] = key
	}
	keyed := len(seen) > 0

	var byKey map[any]Element
	if keyed {
		byKey = make(map[any]Element, len(old))
		for _, child := range old {
			if key := child.Widget().Key(); key != nil {
				byKey[hashableKey(key)] = child
			}
		}
	}

	consumed := make(map[Element]struct{}, len(old))
	updated := make([]Element, 0, len(widgets))
	position := 0
	for i, w := range widgets {
		if w == nil {
			continue
		}
		var existing Element
		switch {
		case !keyed:
			if position < len(old) {
				existing = old[position]
			}
		case keys[i] != nil:
			existing = byKey[keys[i]]
			delete(byKey, keys[i])
		}
		position++
		if existing != nil {
			consumed[existing] = struct{}{}
		}
		if child := updateChild(existing, w, parent, len(updated)); child != nil {
			updated = append(updated, child)
		}
	}

	for _, child := range old {
		if _, ok := consumed[child]; !ok {
			child.Unmount()
		}
	}
	return updated
}
