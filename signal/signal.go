// Package signal provides helpers for non-interleaved blocks of samples:
//   - allocate, zero and copy blocks
//   - convert between float blocks and interleaved ints of a given bit depth
//   - compute the duration of a number of samples
package signal

import (
	"math"
	"time"
)

// Float64 is a non-interleaved float64 signal.
type Float64 [][]float64

const (
	// BitDepth8 is 8 bit depth.
	BitDepth8 = BitDepth(8)
	// BitDepth16 is 16 bit depth.
	BitDepth16 = BitDepth(16)
	// BitDepth24 is 24 bit depth.
	BitDepth24 = BitDepth(24)
	// BitDepth32 is 32 bit depth.
	BitDepth32 = BitDepth(32)
)

// BitDepth contains values required for int and float conversions.
type BitDepth int

// multiplier scales samples between float and int representations.
func (bitDepth BitDepth) multiplier() float64 {
	switch bitDepth {
	case BitDepth8:
		return math.MaxInt8
	case BitDepth16:
		return math.MaxInt16
	case BitDepth24:
		return 1<<23 - 1
	case BitDepth32:
		return math.MaxInt32
	default:
		return 1
	}
}

// DurationOf returns time duration of passed samples for this sample rate.
func DurationOf(sampleRate int, samples int64) time.Duration {
	return time.Duration(float64(samples) / float64(sampleRate) * float64(time.Second))
}

// EmptyFloat64 returns a zeroed block of specified dimensions.
func EmptyFloat64(numChannels int, bufferSize int) Float64 {
	result := make([][]float64, numChannels)
	for i := range result {
		result[i] = make([]float64, bufferSize)
	}
	return result
}

// NumChannels returns number of channels in this block.
func (floats Float64) NumChannels() int {
	return len(floats)
}

// Size returns number of samples per channel.
func (floats Float64) Size() int {
	if floats.NumChannels() == 0 {
		return 0
	}
	return len(floats[0])
}

// Zero sets every sample to zero.
func (floats Float64) Zero() {
	for i := range floats {
		clear(floats[i])
	}
}

// SameShape reports whether both blocks have equal dimensions.
func (floats Float64) SameShape(other Float64) bool {
	return floats.NumChannels() == other.NumChannels() && floats.Size() == other.Size()
}

// CopyFrom copies all samples of source. Both blocks must have the same
// shape.
func (floats Float64) CopyFrom(source Float64) {
	if !floats.SameShape(source) {
		panic("signal: copy between blocks of different shape")
	}
	for i := range floats {
		copy(floats[i], source[i])
	}
}

// CopyRange copies samples [start, end) of channel from source.
func (floats Float64) CopyRange(source Float64, channel, start, end int) {
	copy(floats[channel][start:end], source[channel][start:end])
}

// AsInterInt converts float64 signal to interleaved ints. Samples outside
// [-1, 1] are clipped.
func (floats Float64) AsInterInt(bitDepth BitDepth) []int {
	var numChannels int
	if numChannels = len(floats); numChannels == 0 {
		return nil
	}

	multiplier := bitDepth.multiplier()
	ints := make([]int, len(floats[0])*numChannels)
	for j := range floats {
		for i, v := range floats[j] {
			ints[i*numChannels+j] = int(math.Max(-1, math.Min(1, v)) * multiplier)
		}
	}
	return ints
}

// ReadInterInt de-interleaves ints of given bit depth into floats. It
// returns the number of frames written; samples past that are zeroed.
func (floats Float64) ReadInterInt(ints []int, bitDepth BitDepth) int {
	numChannels := floats.NumChannels()
	if numChannels == 0 {
		return 0
	}
	divider := bitDepth.multiplier()
	frames := min(len(ints)/numChannels, floats.Size())
	for c := range floats {
		for i := 0; i < frames; i++ {
			floats[c][i] = float64(ints[i*numChannels+c]) / divider
		}
		clear(floats[c][frames:])
	}
	return frames
}

// Append appends source to floats. A new block is returned if floats is
// nil.
func (floats Float64) Append(source Float64) Float64 {
	if floats == nil {
		floats = make([][]float64, source.NumChannels())
		for i := range floats {
			floats[i] = make([]float64, 0, source.Size())
		}
	}
	for i := range source {
		floats[i] = append(floats[i], source[i]...)
	}
	return floats
}

// Clock is the position of a stream counted in samples.
type Clock struct {
	SampleRate int
	Samples    int64
}

// Time returns the position as a duration.
func (c Clock) Time() time.Duration {
	return DurationOf(c.SampleRate, c.Samples)
}

// Advance moves the clock forward by n samples.
func (c *Clock) Advance(n int) {
	c.Samples += int64(n)
}
