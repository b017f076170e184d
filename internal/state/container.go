// Package state provides a small observable state container: a single
// value guarded by a mutex, mutated through Set, with synchronous
// subscriber notification and an optional persist hook that runs after
// every successful mutation.
package state

import "sync"

// Container holds a single value of type T and notifies subscribers on
// every mutation. All methods are safe for concurrent use.
type Container[T any] struct {
	mu      sync.RWMutex
	value   T
	nextSub int
	subs    map[int]func(T)
	persist func(T)
}

// New creates a container seeded with initial.
func New[T any](initial T) *Container[T] {
	return &Container[T]{
		value: initial,
		subs:  make(map[int]func(T)),
	}
}

// OnChange registers a persist hook invoked synchronously after each
// Set, with the new value. The hook runs outside the container lock.
// Persistence is fire-and-forget: the hook has no error return and a
// failing save never fails the mutation that triggered it.
func (c *Container[T]) OnChange(fn func(T)) {
	c.mu.Lock()
	c.persist = fn
	c.mu.Unlock()
}

// Get returns the current value.
func (c *Container[T]) Get() T {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.value
}

// Set replaces the value with mutate(current) and notifies subscribers
// and the persist hook with the new value. The mutator must treat its
// argument as immutable and return a fresh value.
func (c *Container[T]) Set(mutate func(T) T) T {
	c.mu.Lock()
	c.value = mutate(c.value)
	v := c.value
	listeners := make([]func(T), 0, len(c.subs)+1)
	for _, fn := range c.subs {
		listeners = append(listeners, fn)
	}
	persist := c.persist
	c.mu.Unlock()

	for _, fn := range listeners {
		fn(v)
	}
	if persist != nil {
		persist(v)
	}
	return v
}

// Subscribe registers a listener called with the new value after every
// mutation. It returns an unsubscribe function.
func (c *Container[T]) Subscribe(fn func(T)) func() {
	c.mu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = fn
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.subs, id)
		c.mu.Unlock()
	}
}
