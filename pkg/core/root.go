package core

import (
	"github.com/go-drift/retain/pkg/errors"
)

// MountRoot inflates and mounts the root widget with the given build owner.
// A nil owner gets a fresh one.
//
// The returned error joins the build errors no boundary caught, or is the
// *errors.InvariantError that aborted the mount, in which case the element
// is nil.
func MountRoot(root Widget, owner *BuildOwner) (element Element, err error) {
	if owner == nil {
		owner = NewBuildOwner()
	}
	defer recoverInvariant(owner, &err, func() { element = nil })

	element = root.CreateElement()
	eb := element.base()
	eb.widget = root
	eb.self = element
	eb.owner = owner
	element.Mount(nil, nil)
	owner.applyFallbacks()
	owner.flushRenderSync()
	return element, owner.takeBuildErrors()
}

// UpdateRoot reconciles a new root widget against the mounted root. The
// element is reused when CanUpdate allows it and replaced otherwise.
func UpdateRoot(current Element, root Widget, owner *BuildOwner) (element Element, err error) {
	if current == nil {
		return MountRoot(root, owner)
	}
	if owner == nil {
		owner = current.Owner()
	}
	if !CanUpdate(current.Widget(), root) {
		if unmountErr := UnmountRoot(current); unmountErr != nil {
			return nil, unmountErr
		}
		return MountRoot(root, owner)
	}
	defer recoverInvariant(owner, &err, nil)
	current.Update(root)
	owner.applyFallbacks()
	owner.flushRenderSync()
	return current, owner.takeBuildErrors()
}

// UnmountRoot tears down the whole tree below and including root. Teardown
// failures do not stop the unmount; they are collected on the owner.
func UnmountRoot(root Element) (err error) {
	if root == nil {
		return nil
	}
	owner := root.Owner()
	defer recoverInvariant(owner, &err, nil)
	root.Unmount()
	return nil
}

func recoverInvariant(owner *BuildOwner, err *error, onFail func()) {
	r := recover()
	if r == nil {
		return
	}
	inv, ok := r.(*errors.InvariantError)
	if !ok {
		panic(r)
	}
	errors.ReportInvariant(inv)
	if owner != nil {
		owner.buildErrs = nil
		owner.fallbacks = nil
	}
	if onFail != nil {
		onFail()
	}
	*err = inv
}
