package atomics_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"golang.org/x/sync/errgroup"

	"github.com/dudk/plinth/atomics"
)

const (
	routines   = 8
	iterations = 10000
)

func TestIntConcurrentAdd(t *testing.T) {
	var (
		i32 atomics.Int32
		i64 atomics.Int64
		f64 atomics.Float64
		f32 atomics.Float32
	)
	var g errgroup.Group
	for r := 0; r < routines; r++ {
		g.Go(func() error {
			for i := 0; i < iterations; i++ {
				i32.Increment()
				i64.Add(3)
				i64.Subtract(1)
				f64.Add(0.5)
				f32.Increment()
			}
			for i := 0; i < iterations/2; i++ {
				i32.Decrement()
				f64.Decrement()
			}
			return nil
		})
	}
	assert.NoError(t, g.Wait())
	assert.Equal(t, int32(routines*iterations/2), i32.Get())
	assert.Equal(t, int64(routines*iterations*2), i64.Get())
	assert.Equal(t, float64(0), f64.Get())
	assert.Equal(t, float32(routines*iterations), f32.Get())
}

func TestIntOperations(t *testing.T) {
	var c atomics.Int64
	assert.Equal(t, int64(0), c.Swap(5))
	assert.False(t, c.CompareAndSwap(4, 10))
	assert.True(t, c.CompareAndSwap(5, 10))
	assert.Equal(t, int64(10), c.GetUnchecked())
	assert.False(t, c.SetIfLarger(3))
	assert.True(t, c.SetIfLarger(11))
	assert.Equal(t, int64(11), c.Get())

	var a, b atomics.Int32
	a.Set(1)
	b.Set(2)
	a.SwapWith(&b)
	assert.Equal(t, int32(2), a.Get())
	assert.Equal(t, int32(1), b.Get())
	assert.True(t, a.SetIfLarger(7))
	assert.Equal(t, int32(7), a.Get())
}

func TestFloatCompareBits(t *testing.T) {
	tests := []struct {
		name    string
		initial float64
		old     float64
		swapped bool
	}{
		{name: "equal", initial: 1.5, old: 1.5, swapped: true},
		{name: "different", initial: 1.5, old: 2.5, swapped: false},
		{name: "same nan", initial: math.NaN(), old: math.NaN(), swapped: true},
		{name: "other nan", initial: math.NaN(), old: math.Float64frombits(0x7ff8000000000002), swapped: false},
		{name: "signed zero", initial: 0, old: math.Copysign(0, -1), swapped: false},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			var c atomics.Float64
			c.Set(test.initial)
			assert.Equal(t, test.swapped, c.CompareAndSwap(test.old, 3))
		})
	}
}

func TestFloatOperations(t *testing.T) {
	var c atomics.Float32
	c.Set(1)
	assert.Equal(t, float32(1), c.Swap(2))
	assert.Equal(t, float32(1.5), c.Subtract(0.5))
	assert.False(t, c.SetIfLarger(float32(math.NaN())))
	assert.True(t, c.SetIfLarger(4))
	assert.Equal(t, float32(4), c.GetUnchecked())

	var a, b atomics.Float64
	a.Set(1)
	b.Set(-1)
	a.SwapWith(&b)
	assert.Equal(t, -1.0, a.Get())
	assert.Equal(t, 1.0, b.Get())
	assert.True(t, a.SetIfLarger(0.25))
	assert.Equal(t, 1.25, a.Increment())
}

func TestPointer(t *testing.T) {
	one, two := 1, 2
	var a, b atomics.Pointer[int]
	assert.Nil(t, a.Swap(&one))
	assert.False(t, a.CompareAndSwap(&two, &two))
	assert.True(t, a.CompareAndSwap(&one, &one))
	b.Set(&two)
	a.SwapWith(&b)
	assert.Equal(t, &two, a.Get())
	assert.Equal(t, &one, b.GetUnchecked())
}

func TestSpinLock(t *testing.T) {
	var (
		l     atomics.SpinLock
		total int
		g     errgroup.Group
	)
	for r := 0; r < routines; r++ {
		g.Go(func() error {
			for i := 0; i < iterations; i++ {
				l.Lock()
				total++
				l.Unlock()
			}
			return nil
		})
	}
	assert.NoError(t, g.Wait())
	assert.Equal(t, routines*iterations, total)
	assert.True(t, l.TryLock())
	assert.False(t, l.TryLock())
	l.Unlock()
}
