package queue_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/dudk/plinth/atomics"
	"github.com/dudk/plinth/queue"
)

var modes = []atomics.CASMode{atomics.CASAuto, atomics.CASLocked}

func TestFIFO(t *testing.T) {
	for _, mode := range modes {
		t.Run(mode.String(), func(t *testing.T) {
			q, err := queue.New[int](queue.WithMode(mode))
			require.NoError(t, err)

			_, ok := q.Pop()
			assert.False(t, ok)

			for i := 0; i < 200; i++ {
				q.Push(i)
			}
			assert.Equal(t, 200, q.Len())
			for i := 0; i < 200; i++ {
				v, ok := q.Pop()
				require.True(t, ok)
				assert.Equal(t, i, v)
			}
			_, ok = q.Pop()
			assert.False(t, ok)
			assert.Equal(t, 0, q.Len())
		})
	}
}

func TestClearAll(t *testing.T) {
	q, err := queue.New[[]float64]()
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		q.Push(make([]float64, 4))
	}
	assert.Equal(t, 10, q.ClearAll())
	assert.Equal(t, 0, q.Len())
	_, ok := q.Pop()
	assert.False(t, ok)
}

func TestSingleProducerSingleConsumer(t *testing.T) {
	const count = 100000
	for _, mode := range modes {
		t.Run(mode.String(), func(t *testing.T) {
			q, err := queue.New[int](queue.WithMode(mode))
			require.NoError(t, err)

			var g errgroup.Group
			g.Go(func() error {
				for i := 0; i < count; i++ {
					q.Push(i)
				}
				return nil
			})
			g.Go(func() error {
				expected := 0
				for expected < count {
					v, ok := q.Pop()
					if !ok {
						continue
					}
					if !assert.Equal(t, expected, v) {
						return nil
					}
					expected++
				}
				return nil
			})
			require.NoError(t, g.Wait())
			_, ok := q.Pop()
			assert.False(t, ok)
		})
	}
}

func TestMultipleProducers(t *testing.T) {
	const (
		producers = 4
		count     = 20000
	)
	type item struct {
		producer int
		seq      int
	}
	for _, mode := range modes {
		t.Run(mode.String(), func(t *testing.T) {
			q, err := queue.New[item](queue.WithMode(mode))
			require.NoError(t, err)

			var g errgroup.Group
			for p := 0; p < producers; p++ {
				g.Go(func() error {
					for i := 0; i < count; i++ {
						q.Push(item{producer: p, seq: i})
					}
					return nil
				})
			}
			last := make([]int, producers)
			for i := range last {
				last[i] = -1
			}
			received := 0
			for received < producers*count {
				v, ok := q.Pop()
				if !ok {
					continue
				}
				require.Equal(t, last[v.producer]+1, v.seq)
				last[v.producer] = v.seq
				received++
			}
			require.NoError(t, g.Wait())
			for _, seq := range last {
				assert.Equal(t, count-1, seq)
			}
		})
	}
}
