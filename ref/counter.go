// Package ref implements shared ownership with strong and weak references.
//
// A Container is a by-value handle to a shared payload. Copies share one
// Counter; the payload is destroyed exactly once, when the last strong
// reference is dropped, and the Counter itself is released once no strong
// or weak reference remains.
package ref

import "github.com/dudk/plinth/atomics"

// Counter is the reference count block of a shared object. It outlives the
// payload while weak references exist.
type Counter struct {
	strong atomics.Int64
	// weak counts weak references plus one implicit reference held until
	// the payload is destroyed.
	weak atomics.Int64
	// 1 while the implicit reference is held. With a Releaser it outlives
	// the last strong reference.
	implicit atomics.Int64
	released atomics.Int32
}

// NewCounter returns an unused counter block.
func NewCounter() *Counter {
	return &Counter{}
}

// StrongCount returns the number of strong references.
func (c *Counter) StrongCount() int64 {
	return c.strong.Get()
}

// WeakCount returns the number of weak references. The value is for
// diagnostics only.
func (c *Counter) WeakCount() int64 {
	return max(0, c.weak.Get()-c.implicit.Get())
}

// Released reports whether the counter block was released.
func (c *Counter) Released() bool {
	return c.released.Get() == 1
}

func (c *Counter) init() {
	if c.strong.Get() != 0 || c.weak.Get() != 0 || c.Released() {
		panic("ref: counter is already in use")
	}
	c.implicit.Set(1)
	c.weak.Set(1)
	c.strong.Set(1)
}

// tryIncrement adds a strong reference unless the count already dropped to
// zero.
func (c *Counter) tryIncrement() bool {
	for {
		n := c.strong.Get()
		if n == 0 {
			return false
		}
		if c.strong.CompareAndSwap(n, n+1) {
			return true
		}
	}
}

// decrement drops a strong reference and reports whether it was the last.
func (c *Counter) decrement() bool {
	n := c.strong.Decrement()
	if n < 0 {
		panic("ref: strong count dropped below zero")
	}
	return n == 0
}

// releaseImplicit drops the weak reference held on behalf of the strong
// ones.
func (c *Counter) releaseImplicit() {
	c.implicit.Set(0)
	c.decrementWeak()
}

func (c *Counter) incrementWeak() {
	c.weak.Increment()
}

func (c *Counter) decrementWeak() {
	n := c.weak.Decrement()
	switch {
	case n < 0:
		panic("ref: weak count dropped below zero")
	case n == 0:
		c.released.Set(1)
	}
}
