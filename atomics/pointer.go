package atomics

import (
	"sync/atomic"
	"unsafe"
)

// Pointer is an atomic *T cell.
type Pointer[T any] struct {
	_ noCopy
	_ [0]*T
	v unsafe.Pointer
}

// Get returns the pointer with acquire semantics.
func (c *Pointer[T]) Get() *T { return (*T)(atomic.LoadPointer(&c.v)) }

// GetUnchecked returns the pointer with a plain read.
func (c *Pointer[T]) GetUnchecked() *T { return (*T)(c.v) }

// Set stores p.
func (c *Pointer[T]) Set(p *T) { atomic.StorePointer(&c.v, unsafe.Pointer(p)) }

// Swap stores p and returns the previous pointer.
func (c *Pointer[T]) Swap(p *T) *T {
	return (*T)(atomic.SwapPointer(&c.v, unsafe.Pointer(p)))
}

// CompareAndSwap stores p only if the cell holds old.
func (c *Pointer[T]) CompareAndSwap(old, p *T) bool {
	return atomic.CompareAndSwapPointer(&c.v, unsafe.Pointer(old), unsafe.Pointer(p))
}

// SwapWith moves the pointer of other into c and the previous pointer of c
// into other.
func (c *Pointer[T]) SwapWith(other *Pointer[T]) {
	for {
		mine, theirs := c.Get(), other.Get()
		if c.CompareAndSwap(mine, theirs) {
			other.Set(mine)
			return
		}
	}
}
