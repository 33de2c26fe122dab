package signal_test

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/dudk/plinth/signal"
)

func TestAsInterInt(t *testing.T) {
	tests := []struct {
		floats   signal.Float64
		bitDepth signal.BitDepth
		expected []int
	}{
		{
			floats:   signal.Float64{{1, 1}, {2, 2}},
			expected: []int{1, 1, 1, 1},
		},
		{
			floats:   signal.Float64{{1, -1}, {0.5, 0}},
			bitDepth: signal.BitDepth16,
			expected: []int{math.MaxInt16, math.MaxInt16 / 2, -math.MaxInt16, 0},
		},
		{
			floats:   nil,
			expected: nil,
		},
	}
	for _, test := range tests {
		assert.Equal(t, test.expected, test.floats.AsInterInt(test.bitDepth))
	}
}

func TestZeroAndCopy(t *testing.T) {
	src := signal.Float64{{1, 2, 3}, {4, 5, 6}}
	dst := signal.EmptyFloat64(2, 3)
	assert.True(t, dst.SameShape(src))

	dst.CopyFrom(src)
	assert.Equal(t, src, dst)
	dst.Zero()
	assert.Equal(t, signal.EmptyFloat64(2, 3), dst)

	dst.CopyRange(src, 1, 1, 3)
	assert.Equal(t, signal.Float64{{0, 0, 0}, {0, 5, 6}}, dst)

	assert.Panics(t, func() { dst.CopyFrom(signal.EmptyFloat64(1, 3)) })
}

func TestAppend(t *testing.T) {
	var floats signal.Float64
	floats = floats.Append(signal.Float64{{1}, {2}})
	floats = floats.Append(signal.Float64{{3}, {4}})
	assert.Equal(t, signal.Float64{{1, 3}, {2, 4}}, floats)
	assert.Equal(t, 2, floats.NumChannels())
	assert.Equal(t, 2, floats.Size())
	assert.Equal(t, 0, signal.Float64{}.Size())
}

func TestDurationOf(t *testing.T) {
	assert.Equal(t, time.Second, signal.DurationOf(44100, 44100))
	assert.Equal(t, 10*time.Millisecond, signal.DurationOf(48000, 480))
}

func TestClock(t *testing.T) {
	c := signal.Clock{SampleRate: 1000}
	assert.Equal(t, time.Duration(0), c.Time())
	c.Advance(250)
	c.Advance(250)
	assert.Equal(t, int64(500), c.Samples)
	assert.Equal(t, 500*time.Millisecond, c.Time())
}

func TestReadInterInt(t *testing.T) {
	tests := []struct {
		ints     []int
		bitDepth signal.BitDepth
		frames   int
		expected signal.Float64
	}{
		{
			ints:     []int{1, 2, 1, 2, 1, 2},
			frames:   3,
			expected: signal.Float64{{1, 1, 1, 0}, {2, 2, 2, 0}},
		},
		{
			ints:     []int{math.MaxInt16, -math.MaxInt16, 0, math.MaxInt16, 5, 5, 5, 5, 5, 5},
			bitDepth: signal.BitDepth16,
			frames:   4,
			expected: signal.Float64{{1, 0, 5.0 / math.MaxInt16, 5.0 / math.MaxInt16}, {-1, 1, 5.0 / math.MaxInt16, 5.0 / math.MaxInt16}},
		},
		{
			ints:     []int{1},
			frames:   0,
			expected: signal.Float64{{0, 0, 0, 0}, {0, 0, 0, 0}},
		},
	}
	for _, test := range tests {
		floats := signal.Float64{{9, 9, 9, 9}, {9, 9, 9, 9}}
		assert.Equal(t, test.frames, floats.ReadInterInt(test.ints, test.bitDepth))
		assert.Equal(t, test.expected, floats)
	}
	assert.Equal(t, 0, signal.Float64{}.ReadInterInt([]int{1, 2}, signal.BitDepth16))
}
