package atomics

import "sync/atomic"

// Int32 is an atomic int32 cell.
type Int32 struct {
	_ noCopy
	v int32
}

// Int64 is an atomic int64 cell. The value is kept as the first word so it
// stays 64-bit aligned on 32-bit platforms.
type Int64 struct {
	v int64
	_ noCopy
}

// Get returns the value with acquire semantics.
func (c *Int32) Get() int32 { return atomic.LoadInt32(&c.v) }

// GetUnchecked returns the value with a plain read. It must only be used
// when no writer can run concurrently.
func (c *Int32) GetUnchecked() int32 { return c.v }

// Set stores v.
func (c *Int32) Set(v int32) { atomic.StoreInt32(&c.v, v) }

// Swap stores v and returns the previous value.
func (c *Int32) Swap(v int32) int32 { return atomic.SwapInt32(&c.v, v) }

// CompareAndSwap stores v only if the cell holds old.
func (c *Int32) CompareAndSwap(old, v int32) bool {
	return atomic.CompareAndSwapInt32(&c.v, old, v)
}

// Add adds delta and returns the new value.
func (c *Int32) Add(delta int32) int32 { return atomic.AddInt32(&c.v, delta) }

// Subtract subtracts delta and returns the new value.
func (c *Int32) Subtract(delta int32) int32 { return atomic.AddInt32(&c.v, -delta) }

// Increment adds one and returns the new value.
func (c *Int32) Increment() int32 { return atomic.AddInt32(&c.v, 1) }

// Decrement subtracts one and returns the new value.
func (c *Int32) Decrement() int32 { return atomic.AddInt32(&c.v, -1) }

// SetIfLarger stores v if it is greater than the current value and reports
// whether it did.
func (c *Int32) SetIfLarger(v int32) bool {
	for {
		cur := c.Get()
		if v <= cur {
			return false
		}
		if c.CompareAndSwap(cur, v) {
			return true
		}
	}
}

// SwapWith moves the value of other into c and the previous value of c into
// other. Only each cell's own update is atomic.
func (c *Int32) SwapWith(other *Int32) {
	for {
		mine, theirs := c.Get(), other.Get()
		if c.CompareAndSwap(mine, theirs) {
			other.Set(mine)
			return
		}
	}
}

// Get returns the value with acquire semantics.
func (c *Int64) Get() int64 { return atomic.LoadInt64(&c.v) }

// GetUnchecked returns the value with a plain read. It must only be used
// when no writer can run concurrently.
func (c *Int64) GetUnchecked() int64 { return c.v }

// Set stores v.
func (c *Int64) Set(v int64) { atomic.StoreInt64(&c.v, v) }

// Swap stores v and returns the previous value.
func (c *Int64) Swap(v int64) int64 { return atomic.SwapInt64(&c.v, v) }

// CompareAndSwap stores v only if the cell holds old.
func (c *Int64) CompareAndSwap(old, v int64) bool {
	return atomic.CompareAndSwapInt64(&c.v, old, v)
}

// Add adds delta and returns the new value.
func (c *Int64) Add(delta int64) int64 { return atomic.AddInt64(&c.v, delta) }

// Subtract subtracts delta and returns the new value.
func (c *Int64) Subtract(delta int64) int64 { return atomic.AddInt64(&c.v, -delta) }

// Increment adds one and returns the new value.
func (c *Int64) Increment() int64 { return atomic.AddInt64(&c.v, 1) }

// Decrement subtracts one and returns the new value.
func (c *Int64) Decrement() int64 { return atomic.AddInt64(&c.v, -1) }

// SetIfLarger stores v if it is greater than the current value and reports
// whether it did.
func (c *Int64) SetIfLarger(v int64) bool {
	for {
		cur := c.Get()
		if v <= cur {
			return false
		}
		if c.CompareAndSwap(cur, v) {
			return true
		}
	}
}

// SwapWith moves the value of other into c and the previous value of c into
// other. Only each cell's own update is atomic.
func (c *Int64) SwapWith(other *Int64) {
	for {
		mine, theirs := c.Get(), other.Get()
		if c.CompareAndSwap(mine, theirs) {
			other.Set(mine)
			return
		}
	}
}

// noCopy trips go vet's copylocks check.
type noCopy struct{}

func (*noCopy) Lock()   {}
func (*noCopy) Unlock() {}
