// Package notify provides an ordered observer registry.
package notify

import (
	"sort"
	"sync"
)

// Subscription identifies one registered callback.
type Subscription uint64

// Registry maps subscriptions to callbacks and invokes them in registration
// order.
type Registry[T any] struct {
	mu    sync.RWMutex
	next  Subscription
	subs  map[Subscription]func(T)
	clone func(T) T
}

// NewRegistry creates an empty registry. Every callback receives the same
// value passed to Notify.
func NewRegistry[T any]() *Registry[T] {
	return &Registry[T]{subs: make(map[Subscription]func(T))}
}

// NewCloningRegistry creates an empty registry that hands each callback its
// own clone(v), so one subscriber's edits are invisible to the others.
func NewCloningRegistry[T any](clone func(T) T) *Registry[T] {
	r := NewRegistry[T]()
	r.clone = clone
	return r
}

// Subscribe registers fn and returns its handle.
func (r *Registry[T]) Subscribe(fn func(T)) Subscription {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.next++
	r.subs[r.next] = fn
	return r.next
}

// Unsubscribe removes the callback for s. Returns false if s was not
// registered.
func (r *Registry[T]) Unsubscribe(s Subscription) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.subs[s]; !ok {
		return false
	}
	delete(r.subs, s)
	return true
}

// Notify calls every callback synchronously with v, oldest subscription
// first. Callbacks may subscribe or unsubscribe; changes apply from the next
// Notify.
func (r *Registry[T]) Notify(v T) {
	r.mu.RLock()
	ids := make([]Subscription, 0, len(r.subs))
	for id := range r.subs {
		ids = append(ids, id)
	}
	fns := make(map[Subscription]func(T), len(r.subs))
	for id, fn := range r.subs {
		fns[id] = fn
	}
	r.mu.RUnlock()

	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		if r.clone != nil {
			fns[id](r.clone(v))
			continue
		}
		fns[id](v)
	}
}

// Len returns the number of subscriptions.
func (r *Registry[T]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.subs)
}

// Clear removes every subscription.
func (r *Registry[T]) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.subs = make(map[Subscription]func(T))
}
