package task

import (
	"errors"
	"fmt"
	"time"

	"github.com/dudk/plinth/signal"
)

// DefaultNumBuffers is the number of blocks a task keeps in flight.
const DefaultNumBuffers = 16

// ErrInvalidConfig is returned when a task is created with a bad config.
var ErrInvalidConfig = errors.New("task: invalid config")

// PrimeMode defines where the initial buffers are queued on start.
type PrimeMode int

const (
	// PrimeSilence queues zeroed buffers on the active side, the consumer
	// plays NumBuffers blocks of silence before the first computed block.
	PrimeSilence PrimeMode = iota
	// PrimeUpstream queues zeroed buffers on the free side, the worker
	// fills them from the source before the consumer sees them.
	PrimeUpstream
)

func (m PrimeMode) String() string {
	switch m {
	case PrimeSilence:
		return "silence"
	case PrimeUpstream:
		return "upstream"
	}
	return "unknown"
}

// Config defines the block format and buffering of a task.
type Config struct {
	NumBuffers  int
	BlockSize   int
	NumChannels int
	SampleRate  int
	Prime       PrimeMode
}

// Validate checks the config, zero NumBuffers is replaced with the default.
func (c *Config) Validate() error {
	if c.NumBuffers == 0 {
		c.NumBuffers = DefaultNumBuffers
	}
	switch {
	case c.NumBuffers < 0:
		return fmt.Errorf("%w: negative number of buffers %d", ErrInvalidConfig, c.NumBuffers)
	case c.BlockSize <= 0:
		return fmt.Errorf("%w: block size %d", ErrInvalidConfig, c.BlockSize)
	case c.NumChannels <= 0:
		return fmt.Errorf("%w: number of channels %d", ErrInvalidConfig, c.NumChannels)
	case c.SampleRate <= 0:
		return fmt.Errorf("%w: sample rate %d", ErrInvalidConfig, c.SampleRate)
	case c.Prime != PrimeSilence && c.Prime != PrimeUpstream:
		return fmt.Errorf("%w: prime mode %d", ErrInvalidConfig, c.Prime)
	}
	return nil
}

// BlockDuration returns the duration of one block.
func (c Config) BlockDuration() time.Duration {
	return signal.DurationOf(c.SampleRate, int64(c.BlockSize))
}

// Latency returns the duration of all buffers in flight.
func (c Config) Latency() time.Duration {
	return signal.DurationOf(c.SampleRate, int64(c.BlockSize)*int64(c.NumBuffers))
}
