package ref

import "github.com/dudk/plinth/atomics"

type (
	// Releaser runs payload destruction on behalf of the goroutine that
	// dropped the last strong reference.
	Releaser interface {
		Defer(fn func())
	}

	// Option configures a new shared object.
	Option func(*options)

	options struct {
		destroy  func()
		releaser Releaser
		counter  *Counter
	}
)

// WithDestroy sets the function that destroys the payload.
func WithDestroy(fn func()) Option {
	return func(o *options) {
		o.destroy = fn
	}
}

// WithReleaser routes payload destruction through r.
func WithReleaser(r Releaser) Option {
	return func(o *options) {
		o.releaser = r
	}
}

// WithCounter uses an existing, unused counter block.
func WithCounter(c *Counter) Option {
	return func(o *options) {
		o.counter = c
	}
}

// shared is the object every Container copy points to.
type shared[T any] struct {
	counter  *Counter
	payload  atomics.Pointer[T]
	weak     atomics.Pointer[Weak[T]]
	destroy  func()
	releaser Releaser
}

func (s *shared[T]) release() {
	if !s.counter.decrement() {
		return
	}
	destroy := func() {
		s.payload.Set(nil)
		if s.destroy != nil {
			s.destroy()
		}
		s.counter.releaseImplicit()
	}
	if s.releaser != nil {
		s.releaser.Defer(destroy)
		return
	}
	destroy()
}

// Container is a handle to a shared payload. The zero value is a null
// container. Operations on one Container are safe for concurrent use; a
// Container must not be copied by value, use Copy instead.
type Container[T any] struct {
	cell atomics.Pointer[shared[T]]
}

// New returns a container holding the only strong reference to value.
func New[T any](value T, opts ...Option) *Container[T] {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.counter == nil {
		o.counter = NewCounter()
	}
	o.counter.init()
	s := &shared[T]{
		counter:  o.counter,
		destroy:  o.destroy,
		releaser: o.releaser,
	}
	s.payload.Set(&value)

	var c Container[T]
	c.cell.Set(s)
	return &c
}

// acquire takes a strong reference to the current object. A zero count
// means the cell was already replaced, so the load is retried.
func (c *Container[T]) acquire() *shared[T] {
	for {
		s := c.cell.Get()
		if s == nil || s.counter.tryIncrement() {
			return s
		}
	}
}

// Copy returns a new container sharing the payload.
func (c *Container[T]) Copy() *Container[T] {
	var dst Container[T]
	dst.cell.Set(c.acquire())
	return &dst
}

// Assign makes c share the payload of src. Assigning a container to itself
// does nothing.
func (c *Container[T]) Assign(src *Container[T]) {
	if c == src {
		return
	}
	if old := c.cell.Swap(src.acquire()); old != nil {
		old.release()
	}
}

// Swap exchanges the payloads of c and other. Each side is updated
// atomically, the pair is not.
func (c *Container[T]) Swap(other *Container[T]) {
	if c == other {
		return
	}
	c.cell.SwapWith(&other.cell)
}

// Release drops the strong reference held by c and leaves it null.
func (c *Container[T]) Release() {
	if old := c.cell.Swap(nil); old != nil {
		old.release()
	}
}

// Value returns the payload, or false if the container is null.
func (c *Container[T]) Value() (T, bool) {
	var zero T
	s := c.cell.Get()
	if s == nil {
		return zero, false
	}
	p := s.payload.Get()
	if p == nil {
		return zero, false
	}
	return *p, true
}

// IsNull reports whether c holds no payload.
func (c *Container[T]) IsNull() bool {
	return c.cell.Get() == nil
}

// Equal reports whether both containers share the same payload.
func (c *Container[T]) Equal(other *Container[T]) bool {
	return c.cell.Get() == other.cell.Get()
}

// Counter returns the counter block, nil for a null container.
func (c *Container[T]) Counter() *Counter {
	if s := c.cell.Get(); s != nil {
		return s.counter
	}
	return nil
}

// Weak returns the weak proxy of the payload and counts one more weak
// reference on it. Every call must be paired with Weak.Release. Calling
// Weak on a null container panics.
func (c *Container[T]) Weak() *Weak[T] {
	s := c.acquire()
	if s == nil {
		panic("ref: weak reference to a null container")
	}
	defer s.release()

	s.counter.incrementWeak()
	if w := s.weak.Get(); w != nil {
		return w
	}
	candidate := &Weak[T]{s: s}
	if s.weak.CompareAndSwap(nil, candidate) {
		return candidate
	}
	return s.weak.Get()
}
