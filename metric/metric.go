// Package metric exports task and allocation diagnostics to Prometheus.
package metric

import (
	"fmt"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/dudk/plinth/dealloc"
)

const namespace = "plinth"

// TaskMetrics holds the counters of all tasks, partitioned by task id.
type TaskMetrics struct {
	produced  *prometheus.CounterVec
	consumed  *prometheus.CounterVec
	underruns *prometheus.CounterVec
	backoffs  *prometheus.CounterVec
}

// NewTaskMetrics creates task counters and registers them.
func NewTaskMetrics(registry prometheus.Registerer) (*TaskMetrics, error) {
	newCounter := func(name, help string) *prometheus.CounterVec {
		return prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "task",
				Name:      name,
				Help:      help,
			},
			[]string{"task"},
		)
	}
	m := &TaskMetrics{
		produced:  newCounter("blocks_produced_total", "Blocks filled by the task worker."),
		consumed:  newCounter("blocks_consumed_total", "Blocks taken by the real-time consumer."),
		underruns: newCounter("underruns_total", "Blocks replaced with silence because none was ready."),
		backoffs:  newCounter("backoffs_total", "Worker sleeps caused by an empty free queue."),
	}
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register task metrics: %w", err)
	}
	return m, nil
}

// Describe implements prometheus.Collector.
func (m *TaskMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.produced.Describe(ch)
	m.consumed.Describe(ch)
	m.underruns.Describe(ch)
	m.backoffs.Describe(ch)
}

// Collect implements prometheus.Collector.
func (m *TaskMetrics) Collect(ch chan<- prometheus.Metric) {
	m.produced.Collect(ch)
	m.consumed.Collect(ch)
	m.underruns.Collect(ch)
	m.backoffs.Collect(ch)
}

// Meter returns the counters of one task. Label lookups happen here, so
// the returned meter only does atomic increments.
func (m *TaskMetrics) Meter(taskID string) *TaskMeter {
	return &TaskMeter{
		produced:  m.produced.WithLabelValues(taskID),
		consumed:  m.consumed.WithLabelValues(taskID),
		underruns: m.underruns.WithLabelValues(taskID),
		backoffs:  m.backoffs.WithLabelValues(taskID),
	}
}

// TaskMeter counts the events of a single task.
type TaskMeter struct {
	produced  prometheus.Counter
	consumed  prometheus.Counter
	underruns prometheus.Counter
	backoffs  prometheus.Counter
}

// Produced counts a filled block.
func (m *TaskMeter) Produced() { m.produced.Inc() }

// Consumed counts a block taken by the consumer.
func (m *TaskMeter) Consumed() { m.consumed.Inc() }

// Underrun counts a silent block.
func (m *TaskMeter) Underrun() { m.underruns.Inc() }

// Backoff counts a worker sleep.
func (m *TaskMeter) Backoff() { m.backoffs.Inc() }

// AllocCollector exports allocation statistics.
type AllocCollector struct {
	stats   *dealloc.Stats
	blocks  *prometheus.Desc
	largest *prometheus.Desc
}

// NewAllocCollector returns a collector reading stats on every scrape.
func NewAllocCollector(stats *dealloc.Stats) *AllocCollector {
	return &AllocCollector{
		stats: stats,
		blocks: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "alloc", "live_blocks"),
			"Live blocks per power-of-two size class.",
			[]string{"size"}, nil,
		),
		largest: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "alloc", "largest_block_bytes"),
			"Largest block ever allocated.",
			nil, nil,
		),
	}
}

// Describe implements prometheus.Collector.
func (c *AllocCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.blocks
	ch <- c.largest
}

// Collect implements prometheus.Collector. Empty classes are skipped.
func (c *AllocCollector) Collect(ch chan<- prometheus.Metric) {
	for class, n := range c.stats.BlockCounts() {
		if n == 0 {
			continue
		}
		size := strconv.FormatUint(uint64(1)<<class, 10)
		ch <- prometheus.MustNewConstMetric(c.blocks, prometheus.GaugeValue, float64(n), size)
	}
	ch <- prometheus.MustNewConstMetric(c.largest, prometheus.GaugeValue, float64(c.stats.LargestSize()))
}
