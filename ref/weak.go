package ref

// Weak is a non-owning reference to a shared payload. One proxy exists per
// shared object; Container.Weak returns it and counts a weak reference.
type Weak[T any] struct {
	s *shared[T]
}

// Lock returns a new strong container if the payload is still alive.
func (w *Weak[T]) Lock() (*Container[T], bool) {
	if !w.s.counter.tryIncrement() {
		return nil, false
	}
	var c Container[T]
	c.cell.Set(w.s)
	return &c, true
}

// Expired reports whether the payload was destroyed.
func (w *Weak[T]) Expired() bool {
	return w.s.counter.StrongCount() == 0
}

// Release drops one weak reference.
func (w *Weak[T]) Release() {
	w.s.counter.decrementWeak()
}

// Counter returns the counter block shared with the strong references.
func (w *Weak[T]) Counter() *Counter {
	return w.s.counter
}
