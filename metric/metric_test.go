package metric_test

import (
	"context"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dudk/plinth/dealloc"
	"github.com/dudk/plinth/metric"
)

func TestTaskMeter(t *testing.T) {
	registry := prometheus.NewRegistry()
	m, err := metric.NewTaskMetrics(registry)
	require.NoError(t, err)

	_, err = metric.NewTaskMetrics(registry)
	assert.Error(t, err)

	tests := []struct {
		task      string
		produced  int
		underruns int
	}{
		{task: "a", produced: 3, underruns: 1},
		{task: "b", produced: 10, underruns: 0},
	}
	for _, test := range tests {
		meter := m.Meter(test.task)
		for i := 0; i < test.produced; i++ {
			meter.Produced()
			meter.Consumed()
		}
		for i := 0; i < test.underruns; i++ {
			meter.Underrun()
			meter.Backoff()
		}
	}

	expected := `
# HELP plinth_task_blocks_produced_total Blocks filled by the task worker.
# TYPE plinth_task_blocks_produced_total counter
plinth_task_blocks_produced_total{task="a"} 3
plinth_task_blocks_produced_total{task="b"} 10
# HELP plinth_task_underruns_total Blocks replaced with silence because none was ready.
# TYPE plinth_task_underruns_total counter
plinth_task_underruns_total{task="a"} 1
plinth_task_underruns_total{task="b"} 0
`
	assert.NoError(t, testutil.GatherAndCompare(registry, strings.NewReader(expected),
		"plinth_task_blocks_produced_total", "plinth_task_underruns_total"))
}

func TestAllocCollector(t *testing.T) {
	stats := dealloc.NewStats()
	mem, err := dealloc.New(dealloc.WithStats(stats))
	require.NoError(t, err)
	defer mem.Close(context.Background())

	for _, size := range []int{10, 10, 1000} {
		_, err := mem.Allocate(size)
		require.NoError(t, err)
	}

	registry := prometheus.NewRegistry()
	require.NoError(t, registry.Register(metric.NewAllocCollector(stats)))
	expected := `
# HELP plinth_alloc_largest_block_bytes Largest block ever allocated.
# TYPE plinth_alloc_largest_block_bytes gauge
plinth_alloc_largest_block_bytes 1024
# HELP plinth_alloc_live_blocks Live blocks per power-of-two size class.
# TYPE plinth_alloc_live_blocks gauge
plinth_alloc_live_blocks{size="1024"} 1
plinth_alloc_live_blocks{size="32"} 2
`
	assert.NoError(t, testutil.GatherAndCompare(registry, strings.NewReader(expected)))
}
