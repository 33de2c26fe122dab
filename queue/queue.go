// Package queue provides an unbounded lock-free FIFO queue for moving
// buffer handles between goroutines.
//
// The queue is a linked list of nodes kept in an arena and addressed by
// index. Head, tail and every link are Tagged cells, so a node that is
// recycled between a load and a compare-and-swap cannot corrupt the list.
// Popped nodes go to an internal free cache and are reused by later pushes;
// once the cache covers the peak queue length, Push and Pop never allocate.
//
// Any number of goroutines may push. Only one goroutine may pop at a time.
package queue

import (
	"sync"
	"sync/atomic"

	"golang.org/x/sys/cpu"

	"github.com/dudk/plinth/atomics"
)

const chunkSize = 64

type (
	node[T any] struct {
		next atomics.Tagged
		// link in the free cache, accessed atomically.
		freeNext uint64
		value    T
	}

	chunk[T any] [chunkSize]node[T]

	// Option configures a queue.
	Option func(*options)

	options struct {
		mode atomics.CASMode
	}
)

// WithMode selects the compare-and-swap strategy of the queue cells.
func WithMode(mode atomics.CASMode) Option {
	return func(o *options) {
		o.mode = mode
	}
}

// Queue is a multi-producer single-consumer FIFO queue.
type Queue[T any] struct {
	head atomics.Tagged
	_    cpu.CacheLinePad
	tail atomics.Tagged
	_    cpu.CacheLinePad
	free atomics.Tagged

	length atomics.Int64
	cached atomics.Int64

	mode   atomics.CASMode
	growMu sync.Mutex
	chunks atomics.Pointer[[]*chunk[T]]
}

// New returns an empty queue.
func New[T any](opts ...Option) (*Queue[T], error) {
	o := options{mode: atomics.CASAuto}
	for _, opt := range opts {
		opt(&o)
	}
	q := &Queue[T]{mode: o.mode}
	for _, c := range []*atomics.Tagged{&q.head, &q.tail, &q.free} {
		if err := c.Init(o.mode); err != nil {
			return nil, err
		}
	}
	q.chunks.Set(&[]*chunk[T]{})
	dummy := q.alloc()
	q.head.SetAll(dummy, 0)
	q.tail.SetAll(dummy, 0)
	return q, nil
}

// Push appends v to the queue. It never fails.
func (q *Queue[T]) Push(v T) {
	h := q.alloc()
	n := q.node(h)
	n.value = v
	_, tag := n.next.Load()
	n.next.SetAll(0, tag+1)

	for {
		tail, tailTag := q.tail.Load()
		tn := q.node(tail)
		next, nextTag := tn.next.Load()
		if t, tt := q.tail.Load(); t != tail || tt != tailTag {
			continue
		}
		if next != 0 {
			// tail is lagging behind, help it forward.
			q.tail.CompareAndSwap(tail, tailTag, next, tailTag+1)
			continue
		}
		if tn.next.CompareAndSwap(0, nextTag, h, nextTag+1) {
			q.tail.CompareAndSwap(tail, tailTag, h, tailTag+1)
			q.length.Increment()
			return
		}
	}
}

// Pop removes the oldest value. It returns false if the queue is empty.
func (q *Queue[T]) Pop() (T, bool) {
	var zero T
	for {
		head, headTag := q.head.Load()
		tail, tailTag := q.tail.Load()
		next, _ := q.node(head).next.Load()
		if h, ht := q.head.Load(); h != head || ht != headTag {
			continue
		}
		if head == tail {
			if next == 0 {
				return zero, false
			}
			q.tail.CompareAndSwap(tail, tailTag, next, tailTag+1)
			continue
		}
		nn := q.node(next)
		v := nn.value
		if q.head.CompareAndSwap(head, headTag, next, headTag+1) {
			// next is the new dummy, drop its reference to the value.
			nn.value = zero
			q.release(head)
			q.length.Decrement()
			return v, true
		}
	}
}

// Len returns the approximate number of queued values. It is meant for
// diagnostics and must not drive control flow.
func (q *Queue[T]) Len() int {
	if n := q.length.Get(); n > 0 {
		return int(n)
	}
	return 0
}

// ClearAll drops every queued value and returns how many were dropped. It
// must be called from the consuming goroutine.
func (q *Queue[T]) ClearAll() int {
	n := 0
	for {
		if _, ok := q.Pop(); !ok {
			return n
		}
		n++
	}
}

// Reserve grows the node cache so that at least n values can be pushed
// without allocating.
func (q *Queue[T]) Reserve(n int) {
	for q.cached.Get() < int64(n) {
		q.release(q.grow())
	}
}

// alloc takes a node from the free cache, growing the arena if it is empty.
func (q *Queue[T]) alloc() uint64 {
	for {
		top, tag := q.free.Load()
		if top == 0 {
			return q.grow()
		}
		next := atomic.LoadUint64(&q.node(top).freeNext)
		if q.free.CompareAndSwap(top, tag, next, tag+1) {
			q.cached.Decrement()
			return top
		}
	}
}

// release puts a retired node into the free cache.
func (q *Queue[T]) release(h uint64) {
	n := q.node(h)
	for {
		top, tag := q.free.Load()
		atomic.StoreUint64(&n.freeNext, top)
		if q.free.CompareAndSwap(top, tag, h, tag+1) {
			q.cached.Increment()
			return
		}
	}
}

// grow adds a chunk of nodes, keeps the first one and caches the rest.
func (q *Queue[T]) grow() uint64 {
	q.growMu.Lock()
	c := new(chunk[T])
	for i := range c {
		// mode was validated in New.
		_ = c[i].next.Init(q.mode)
	}
	old := *q.chunks.Get()
	table := make([]*chunk[T], len(old)+1)
	copy(table, old)
	table[len(old)] = c
	q.chunks.Set(&table)
	q.growMu.Unlock()

	base := uint64(len(old))*chunkSize + 1
	for i := uint64(1); i < chunkSize; i++ {
		q.release(base + i)
	}
	return base
}

// node resolves a handle. Handles start at one, zero is the nil link.
func (q *Queue[T]) node(h uint64) *node[T] {
	i := h - 1
	return &(*q.chunks.Get())[i/chunkSize][i%chunkSize]
}
