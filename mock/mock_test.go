package mock_test

import (
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dudk/plinth/mock"
	"github.com/dudk/plinth/signal"
)

var errTest = errors.New("test error")

func TestGenerator(t *testing.T) {
	type params struct {
		bufferSize int
		calls      int
		samples    int
	}
	testGenerator := func(g *mock.Generator, p params) func(*testing.T) {
		return func(t *testing.T) {
			clock := signal.Clock{SampleRate: 44100}
			buf := signal.EmptyFloat64(2, p.bufferSize)
			for {
				if err := g.Pull(clock, buf); err != nil {
					if err != io.EOF {
						assert.ErrorIs(t, err, g.ErrorOnCall)
					}
					break
				}
				clock.Advance(p.bufferSize)
			}
			calls, samples := g.Count()
			assert.Equal(t, p.calls, calls)
			assert.Equal(t, p.samples, samples)
		}
	}

	t.Run("3 calls", testGenerator(
		&mock.Generator{Limit: 11, Value: 1},
		params{bufferSize: 5, calls: 3, samples: 11},
	))
	t.Run("500 calls", testGenerator(
		&mock.Generator{Limit: 5000, Value: 1},
		params{bufferSize: 10, calls: 500, samples: 5000},
	))
	t.Run("error", testGenerator(
		&mock.Generator{Limit: 10, ErrorOnCall: errTest},
		params{bufferSize: 5},
	))
}

func TestGeneratorRamp(t *testing.T) {
	g := mock.Generator{Value: 1, Step: 1, Limit: 6}
	buf := signal.EmptyFloat64(1, 4)

	assert.NoError(t, g.Pull(signal.Clock{Samples: 0}, buf))
	assert.Equal(t, signal.Float64{{1, 2, 3, 4}}, buf)
	assert.NoError(t, g.Pull(signal.Clock{Samples: 4}, buf))
	assert.Equal(t, signal.Float64{{5, 6, 0, 0}}, buf)
	assert.ErrorIs(t, g.Pull(signal.Clock{Samples: 8}, buf), io.EOF)
}
