package task

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dudk/plinth/log"
	"github.com/dudk/plinth/mock"
	"github.com/dudk/plinth/signal"
)

func newTestTask(t *testing.T, cfg Config, source Source) *Task {
	t.Helper()
	task, err := New(cfg, source, WithLogger(log.Discard()))
	require.NoError(t, err)
	return task
}

func TestConstantGenerator(t *testing.T) {
	cfg := Config{
		NumBuffers:  4,
		BlockSize:   64,
		NumChannels: 1,
		SampleRate:  44100,
		Prime:       PrimeUpstream,
	}
	task := newTestTask(t, cfg, &mock.Generator{Value: 0.5})
	require.NoError(t, task.prime())
	for i := 0; i < cfg.NumBuffers; i++ {
		produced, err := task.produce()
		require.NoError(t, err)
		require.True(t, produced)
	}
	produced, err := task.produce()
	require.NoError(t, err)
	assert.False(t, produced)

	out := signal.EmptyFloat64(1, 64)
	expected := signal.EmptyFloat64(1, 64)
	for i := range expected[0] {
		expected[0][i] = 0.5
	}
	for i := 0; i < cfg.NumBuffers; i++ {
		assert.True(t, task.Process(out))
		assert.Equal(t, expected, out)
	}

	out[0][0] = 1
	assert.False(t, task.Process(out))
	assert.Equal(t, signal.EmptyFloat64(1, 64), out)
	assert.Equal(t, 4, task.free.Len())
}

func TestPartialProduction(t *testing.T) {
	const (
		numBuffers = 8
		blocks     = 5
		blockSize  = 16
	)
	cfg := Config{
		NumBuffers:  numBuffers,
		BlockSize:   blockSize,
		NumChannels: 2,
		SampleRate:  48000,
		Prime:       PrimeUpstream,
	}
	task := newTestTask(t, cfg, &mock.Generator{Step: 1})
	require.NoError(t, task.prime())
	for i := 0; i < blocks; i++ {
		produced, err := task.produce()
		require.NoError(t, err)
		require.True(t, produced)
	}
	assert.Equal(t, blocks, task.active.Len())
	assert.Equal(t, numBuffers-blocks, task.free.Len())
	assert.Equal(t, int64(blocks*blockSize), task.clock.Samples)

	out := signal.EmptyFloat64(2, blockSize)
	for b := 0; b < blocks; b++ {
		require.True(t, task.Process(out))
		for c := range out {
			assert.Equal(t, float64(b*blockSize), out[c][0])
			assert.Equal(t, float64((b+1)*blockSize-1), out[c][blockSize-1])
		}
	}
	assert.False(t, task.Process(out))
}

func TestPrimeSilence(t *testing.T) {
	cfg := Config{
		NumBuffers:  3,
		BlockSize:   8,
		NumChannels: 1,
		SampleRate:  8000,
	}
	task := newTestTask(t, cfg, &mock.Generator{Value: 1})
	require.NoError(t, task.prime())
	assert.Equal(t, 3, task.Ready())

	produced, err := task.produce()
	require.NoError(t, err)
	assert.False(t, produced)

	out := signal.EmptyFloat64(1, 8)
	out[0][3] = 7
	assert.True(t, task.Process(out))
	assert.Equal(t, signal.EmptyFloat64(1, 8), out)

	// the recycled buffer is filled from the source and queued last
	produced, err = task.produce()
	require.NoError(t, err)
	assert.True(t, produced)
	assert.True(t, task.Process(out))
	assert.True(t, task.Process(out))
	assert.Equal(t, signal.EmptyFloat64(1, 8), out)
	assert.True(t, task.Process(out))
	assert.Equal(t, 1.0, out[0][7])
}

func TestChunkedCopy(t *testing.T) {
	cfg := Config{
		NumBuffers:  4,
		BlockSize:   10,
		NumChannels: 2,
		SampleRate:  8000,
		Prime:       PrimeUpstream,
	}
	task := newTestTask(t, cfg, &mock.Generator{Step: 1})
	require.NoError(t, task.prime())
	// free holds 4, 3, 2 and 1 buffers before each copy, only the last
	// one is below half.
	for i := 0; i < cfg.NumBuffers; i++ {
		_, err := task.produce()
		require.NoError(t, err)
	}
	assert.Equal(t, 1, task.chunked)
	out := signal.EmptyFloat64(2, 10)
	for b := 0; b < cfg.NumBuffers; b++ {
		require.True(t, task.Process(out))
		for c := range out {
			for i, v := range out[c] {
				assert.Equal(t, float64(b*10+i), v)
			}
		}
	}
}

func TestBackoff(t *testing.T) {
	tests := []struct {
		numBuffers int
		max        float64
	}{
		{numBuffers: 1, max: 1},
		{numBuffers: 2, max: 1},
		{numBuffers: 16, max: 8},
	}
	for _, test := range tests {
		cfg := Config{
			NumBuffers:  test.numBuffers,
			BlockSize:   441,
			NumChannels: 1,
			SampleRate:  44100,
		}
		task := newTestTask(t, cfg, &mock.Generator{})
		block := cfg.BlockDuration()
		assert.Equal(t, 10*time.Millisecond, block)
		for i := 0; i < 100; i++ {
			d := task.backoff()
			assert.GreaterOrEqual(t, d, block)
			assert.LessOrEqual(t, d, time.Duration(float64(block)*test.max))
		}
	}
}

func TestProcessShapeMismatch(t *testing.T) {
	cfg := Config{BlockSize: 8, NumChannels: 2, SampleRate: 8000}
	task := newTestTask(t, cfg, &mock.Generator{})
	assert.Panics(t, func() { task.Process(signal.EmptyFloat64(1, 8)) })
	assert.Panics(t, func() { task.Process(signal.EmptyFloat64(2, 4)) })
}
