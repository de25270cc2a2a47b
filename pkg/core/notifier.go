package core

import (
	"reflect"
	"sync"
)

// Disposable is implemented by controllers that hold resources.
type Disposable interface {
	Dispose()
}

// Listenable is a source of change notifications.
type Listenable interface {
	// AddListener registers fn and returns a function that removes it.
	AddListener(fn func()) func()
}

// Notifier is a minimal Listenable. Listeners run synchronously on the
// goroutine that calls Notify, in registration order.
type Notifier struct {
	mu        sync.Mutex
	listeners map[int]func()
	order     []int
	nextID    int
}

// NewNotifier creates an empty Notifier.
func NewNotifier() *Notifier {
	return &Notifier{listeners: make(map[int]func())}
}

// AddListener registers fn and returns a function that removes it.
func (n *Notifier) AddListener(fn func()) func() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.listeners == nil {
		n.listeners = make(map[int]func())
	}
	id := n.nextID
	n.nextID++
	n.listeners[id] = fn
	n.order = append(n.order, id)
	return func() {
		n.mu.Lock()
		defer n.mu.Unlock()
		delete(n.listeners, id)
	}
}

// Notify calls every registered listener.
func (n *Notifier) Notify() {
	n.mu.Lock()
	live := n.order[:0]
	fns := make([]func(), 0, len(n.listeners))
	for _, id := range n.order {
		if fn, ok := n.listeners[id]; ok {
			live = append(live, id)
			fns = append(fns, fn)
		}
	}
	n.order = live
	n.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
}

// ListenerCount returns the number of registered listeners.
func (n *Notifier) ListenerCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.listeners)
}

// Dispose removes every listener.
func (n *Notifier) Dispose() {
	n.mu.Lock()
	defer n.mu.Unlock()
	clear(n.listeners)
	n.order = nil
}

// Observable holds a value and notifies listeners when it changes.
// It is safe for concurrent use; listeners run on the goroutine calling Set.
type Observable[T any] struct {
	mu       sync.RWMutex
	value    T
	equal    func(a, b T) bool
	notifier Notifier
}

// NewObservable creates an observable that compares values with
// reflect.DeepEqual.
func NewObservable[T any](initial T) *Observable[T] {
	return NewObservableWithEquality(initial, func(a, b T) bool {
		return reflect.DeepEqual(a, b)
	})
}

// NewObservableWithEquality creates an observable with a custom equality
// function. Set is a no-op when equal reports the new value as unchanged.
func NewObservableWithEquality[T any](initial T, equal func(a, b T) bool) *Observable[T] {
	return &Observable[T]{value: initial, equal: equal}
}

// Value returns the current value.
func (o *Observable[T]) Value() T {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.value
}

// Set stores value and notifies listeners if it differs from the current one.
func (o *Observable[T]) Set(value T) {
	o.mu.Lock()
	if o.equal != nil && o.equal(o.value, value) {
		o.mu.Unlock()
		return
	}
	o.value = value
	o.mu.Unlock()
	o.notifier.Notify()
}

// AddListener registers fn to receive each new value and returns a function
// that removes it.
func (o *Observable[T]) AddListener(fn func(T)) func() {
	return o.notifier.AddListener(func() {
		fn(o.Value())
	})
}

// ListenerCount returns the number of registered listeners.
func (o *Observable[T]) ListenerCount() int {
	return o.notifier.ListenerCount()
}
