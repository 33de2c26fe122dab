package atomics

import (
	"math"
	"sync/atomic"
)

// Float32 is an atomic float32 cell. Comparisons are made on the bit
// pattern, so a NaN matches only the identical NaN.
type Float32 struct {
	_ noCopy
	v uint32
}

// Float64 is an atomic float64 cell. Comparisons are made on the bit
// pattern, so a NaN matches only the identical NaN.
type Float64 struct {
	v uint64
	_ noCopy
}

// Get returns the value with acquire semantics.
func (c *Float32) Get() float32 { return math.Float32frombits(atomic.LoadUint32(&c.v)) }

// GetUnchecked returns the value with a plain read.
func (c *Float32) GetUnchecked() float32 { return math.Float32frombits(c.v) }

// Set stores v.
func (c *Float32) Set(v float32) { atomic.StoreUint32(&c.v, math.Float32bits(v)) }

// Swap stores v and returns the previous value.
func (c *Float32) Swap(v float32) float32 {
	return math.Float32frombits(atomic.SwapUint32(&c.v, math.Float32bits(v)))
}

// CompareAndSwap stores v only if the cell holds the bits of old.
func (c *Float32) CompareAndSwap(old, v float32) bool {
	return atomic.CompareAndSwapUint32(&c.v, math.Float32bits(old), math.Float32bits(v))
}

// Add adds delta and returns the new value.
func (c *Float32) Add(delta float32) float32 {
	for {
		bits := atomic.LoadUint32(&c.v)
		next := math.Float32frombits(bits) + delta
		if atomic.CompareAndSwapUint32(&c.v, bits, math.Float32bits(next)) {
			return next
		}
	}
}

// Subtract subtracts delta and returns the new value.
func (c *Float32) Subtract(delta float32) float32 { return c.Add(-delta) }

// Increment adds one and returns the new value.
func (c *Float32) Increment() float32 { return c.Add(1) }

// Decrement subtracts one and returns the new value.
func (c *Float32) Decrement() float32 { return c.Add(-1) }

// SetIfLarger stores v if it is greater than the current value.
func (c *Float32) SetIfLarger(v float32) bool {
	for {
		bits := atomic.LoadUint32(&c.v)
		if !(v > math.Float32frombits(bits)) {
			return false
		}
		if atomic.CompareAndSwapUint32(&c.v, bits, math.Float32bits(v)) {
			return true
		}
	}
}

// SwapWith moves the value of other into c and the previous value of c into
// other.
func (c *Float32) SwapWith(other *Float32) {
	for {
		mine, theirs := atomic.LoadUint32(&c.v), atomic.LoadUint32(&other.v)
		if atomic.CompareAndSwapUint32(&c.v, mine, theirs) {
			atomic.StoreUint32(&other.v, mine)
			return
		}
	}
}

// Get returns the value with acquire semantics.
func (c *Float64) Get() float64 { return math.Float64frombits(atomic.LoadUint64(&c.v)) }

// GetUnchecked returns the value with a plain read.
func (c *Float64) GetUnchecked() float64 { return math.Float64frombits(c.v) }

// Set stores v.
func (c *Float64) Set(v float64) { atomic.StoreUint64(&c.v, math.Float64bits(v)) }

// Swap stores v and returns the previous value.
func (c *Float64) Swap(v float64) float64 {
	return math.Float64frombits(atomic.SwapUint64(&c.v, math.Float64bits(v)))
}

// CompareAndSwap stores v only if the cell holds the bits of old.
func (c *Float64) CompareAndSwap(old, v float64) bool {
	return atomic.CompareAndSwapUint64(&c.v, math.Float64bits(old), math.Float64bits(v))
}

// Add adds delta and returns the new value.
func (c *Float64) Add(delta float64) float64 {
	for {
		bits := atomic.LoadUint64(&c.v)
		next := math.Float64frombits(bits) + delta
		if atomic.CompareAndSwapUint64(&c.v, bits, math.Float64bits(next)) {
			return next
		}
	}
}

// Subtract subtracts delta and returns the new value.
func (c *Float64) Subtract(delta float64) float64 { return c.Add(-delta) }

// Increment adds one and returns the new value.
func (c *Float64) Increment() float64 { return c.Add(1) }

// Decrement subtracts one and returns the new value.
func (c *Float64) Decrement() float64 { return c.Add(-1) }

// SetIfLarger stores v if it is greater than the current value.
func (c *Float64) SetIfLarger(v float64) bool {
	for {
		bits := atomic.LoadUint64(&c.v)
		if !(v > math.Float64frombits(bits)) {
			return false
		}
		if atomic.CompareAndSwapUint64(&c.v, bits, math.Float64bits(v)) {
			return true
		}
	}
}

// SwapWith moves the value of other into c and the previous value of c into
// other.
func (c *Float64) SwapWith(other *Float64) {
	for {
		mine, theirs := atomic.LoadUint64(&c.v), atomic.LoadUint64(&other.v)
		if atomic.CompareAndSwapUint64(&c.v, mine, theirs) {
			atomic.StoreUint64(&other.v, mine)
			return
		}
	}
}
