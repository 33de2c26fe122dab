// Package mock provides sources for tests of deferred tasks.
package mock

import (
	"io"
	"time"

	"github.com/dudk/plinth/atomics"
	"github.com/dudk/plinth/signal"
)

// Generator fills blocks with Value + Step*n, where n is the absolute
// sample position taken from the clock.
type Generator struct {
	counter
	Value       float64
	Step        float64
	Limit       int
	Interval    time.Duration
	ErrorOnCall error
}

// Pull fills out. It returns io.EOF once Limit samples were produced; the
// last block is padded with zeros.
func (m *Generator) Pull(clock signal.Clock, out signal.Float64) error {
	if m.ErrorOnCall != nil {
		return m.ErrorOnCall
	}
	samples := int(m.samples.Get())
	if m.Limit > 0 && samples >= m.Limit {
		return io.EOF
	}
	if m.Interval > 0 {
		time.Sleep(m.Interval)
	}

	bs := out.Size()
	if m.Limit > 0 && m.Limit-samples < bs {
		bs = m.Limit - samples
	}
	for c := range out {
		for i := range out[c] {
			if i >= bs {
				out[c][i] = 0
				continue
			}
			out[c][i] = m.Value + m.Step*float64(clock.Samples+int64(i))
		}
	}
	m.advance(bs)
	return nil
}

// counter counts calls and samples. It is safe to read while the
// generator runs on another goroutine.
type counter struct {
	messages atomics.Int64
	samples  atomics.Int64
}

func (c *counter) advance(size int) {
	c.messages.Increment()
	c.samples.Add(int64(size))
}

// Count returns messages and samples metrics.
func (c *counter) Count() (int, int) {
	return int(c.messages.Get()), int(c.samples.Get())
}
