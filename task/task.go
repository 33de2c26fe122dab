// Package task offloads the production of audio blocks to a background
// worker.
//
// A Task keeps NumBuffers blocks in flight between two queues. The worker
// pops empty blocks from the free queue, fills them from a Source and
// pushes them to the active queue. The real-time consumer calls Process,
// which pops a block from the active queue, copies it out and returns it to
// the free queue. Process never blocks: when no block is ready it outputs
// silence.
package task

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"runtime"
	"time"

	"github.com/rs/xid"
	"github.com/sirupsen/logrus"

	"github.com/dudk/plinth/atomics"
	"github.com/dudk/plinth/dealloc"
	"github.com/dudk/plinth/internal/worker"
	"github.com/dudk/plinth/log"
	"github.com/dudk/plinth/queue"
	"github.com/dudk/plinth/signal"
)

// ErrInvalidState is returned when a task is started or stopped twice.
var ErrInvalidState = errors.New("task: invalid state")

// yieldChunk is the number of samples copied between yields when the
// active side is well stocked.
const yieldChunk = 4

type (
	// Source produces the blocks of a task. Pull is called on the worker
	// goroutine with the position of the block to produce. Returning io.EOF
	// ends production without an error.
	Source interface {
		Pull(clock signal.Clock, out signal.Float64) error
	}

	// SourceFunc adapts a function to Source.
	SourceFunc func(clock signal.Clock, out signal.Float64) error

	// Meter observes task events. Methods are called from the real-time
	// goroutine and must not block.
	Meter interface {
		Produced()
		Consumed()
		Underrun()
		Backoff()
	}

	// Option configures a task.
	Option func(*Task)

	noopMeter struct{}
)

// Pull calls fn.
func (fn SourceFunc) Pull(clock signal.Clock, out signal.Float64) error {
	return fn(clock, out)
}

func (noopMeter) Produced() {}
func (noopMeter) Consumed() {}
func (noopMeter) Underrun() {}
func (noopMeter) Backoff()  {}

// WithLogger sets the task logger.
func WithLogger(l logrus.FieldLogger) Option {
	return func(t *Task) {
		t.logger = l
	}
}

// WithMeter sets the meter that observes the task.
func WithMeter(m Meter) Option {
	return func(t *Task) {
		t.meter = m
	}
}

// WithMemory allocates the task buffers from m and releases them through
// it when the task stops.
func WithMemory(m *dealloc.Memory) Option {
	return func(t *Task) {
		t.memory = m
	}
}

// WithMode selects the compare-and-swap strategy of the task queues.
func WithMode(mode atomics.CASMode) Option {
	return func(t *Task) {
		t.mode = mode
	}
}

// Task runs a Source on a background worker.
type Task struct {
	id     xid.ID
	cfg    Config
	source Source
	logger logrus.FieldLogger
	meter  Meter
	memory *dealloc.Memory
	mode   atomics.CASMode

	active *queue.Queue[signal.Float64]
	free   *queue.Queue[signal.Float64]
	state  atomics.Int32
	worker atomics.Pointer[worker.Worker]
	// closed when Start returns.
	started chan struct{}

	// owned by the worker goroutine.
	clock   signal.Clock
	scratch signal.Float64
	rng     *rand.Rand
	half    int
	chunked int
}

// New validates cfg and returns a task in Created state.
func New(cfg Config, source Source, opts ...Option) (*Task, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if source == nil {
		return nil, fmt.Errorf("%w: nil source", ErrInvalidConfig)
	}
	t := Task{
		id:      xid.New(),
		cfg:     cfg,
		source:  source,
		meter:   noopMeter{},
		mode:    atomics.CASAuto,
		clock:   signal.Clock{SampleRate: cfg.SampleRate},
		scratch: signal.EmptyFloat64(cfg.NumChannels, cfg.BlockSize),
		rng:     rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
		half:    max(1, cfg.NumBuffers/2),
		started: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(&t)
	}
	if t.logger == nil {
		t.logger = log.GetLogger()
	}
	t.logger = t.logger.WithField("task", t.id.String())

	var err error
	if t.active, err = queue.New[signal.Float64](queue.WithMode(t.mode)); err != nil {
		return nil, fmt.Errorf("task: creating active queue: %w", err)
	}
	if t.free, err = queue.New[signal.Float64](queue.WithMode(t.mode)); err != nil {
		return nil, fmt.Errorf("task: creating free queue: %w", err)
	}
	t.active.Reserve(cfg.NumBuffers)
	t.free.Reserve(cfg.NumBuffers)
	return &t, nil
}

// ID returns the unique id of the task.
func (t *Task) ID() string {
	return t.id.String()
}

// Config returns the validated config.
func (t *Task) Config() Config {
	return t.cfg
}

// State returns the lifecycle stage.
func (t *Task) State() State {
	return State(t.state.Get())
}

// Latency returns the duration of all buffers in flight.
func (t *Task) Latency() time.Duration {
	return t.cfg.Latency()
}

// Ready returns the approximate number of blocks waiting for the consumer.
func (t *Task) Ready() int {
	return t.active.Len()
}

// Done returns a channel closed once the worker has exited, either on
// request or because the source stopped. It is nil before Start.
func (t *Task) Done() <-chan struct{} {
	if w := t.worker.Get(); w != nil {
		return w.Done()
	}
	return nil
}

// Start primes the buffers and launches the worker. If Stop is called
// while the buffers are primed, the worker is not launched and
// ErrInvalidState is returned.
func (t *Task) Start(ctx context.Context) error {
	if !t.state.CompareAndSwap(int32(Created), int32(Starting)) {
		return fmt.Errorf("%w: start in %v state", ErrInvalidState, t.State())
	}
	defer close(t.started)
	if err := t.prime(); err != nil {
		t.drain()
		t.state.Set(int32(Terminated))
		return err
	}
	if t.State() != Starting {
		t.drain()
		t.state.Set(int32(Terminated))
		return fmt.Errorf("%w: stopped while starting", ErrInvalidState)
	}
	w, err := worker.Start(ctx, "task-"+t.id.String(), t.logger, worker.Funcs{
		ExecuteFunc: t.execute,
	})
	if err != nil {
		t.drain()
		t.state.Set(int32(Terminated))
		return err
	}
	t.worker.Set(w)
	// a failed swap means Stop is waiting for this worker.
	t.state.CompareAndSwap(int32(Starting), int32(Running))
	t.logger.WithFields(logrus.Fields{
		"buffers":    t.cfg.NumBuffers,
		"block_size": t.cfg.BlockSize,
		"prime":      t.cfg.Prime,
	}).Debug("task started")
	return nil
}

// Process copies the next block into out and returns true. If no block is
// ready, out is zeroed and false is returned. Process must be called from
// a single goroutine and out must match the configured block shape.
func (t *Task) Process(out signal.Float64) bool {
	if out.NumChannels() != t.cfg.NumChannels || out.Size() != t.cfg.BlockSize {
		panic(fmt.Sprintf("task: output block %dx%d does not match %dx%d",
			out.NumChannels(), out.Size(), t.cfg.NumChannels, t.cfg.BlockSize))
	}
	buf, ok := t.active.Pop()
	if !ok {
		out.Zero()
		t.meter.Underrun()
		return false
	}
	out.CopyFrom(buf)
	buf.Zero()
	t.free.Push(buf)
	t.meter.Consumed()
	return true
}

// Stop requests the worker to exit, waits for it until ctx is done and
// drains both queues. It returns the error that stopped the source, if
// any. Stop must not run concurrently with Process. If ctx expires first,
// the task stays in ExitRequested state and Stop can be called again.
// Stop may run concurrently with Start; it then waits for Start to return.
func (t *Task) Stop(ctx context.Context) error {
	switch {
	case t.state.CompareAndSwap(int32(Created), int32(Terminated)):
		return nil
	case t.state.CompareAndSwap(int32(Running), int32(ExitRequested)):
	case t.state.CompareAndSwap(int32(Starting), int32(ExitRequested)):
	case t.State() == ExitRequested:
	default:
		return fmt.Errorf("%w: stop in %v state", ErrInvalidState, t.State())
	}

	select {
	case <-t.started:
	case <-ctx.Done():
		return fmt.Errorf("task: start did not return: %w", ctx.Err())
	}
	w := t.worker.Get()
	if w == nil {
		// Start gave up and drained the buffers itself.
		return nil
	}
	w.RequestExit()
	_ = w.Wait(ctx)
	select {
	case <-w.Done():
	default:
		return fmt.Errorf("task: worker did not exit: %w", ctx.Err())
	}
	err := w.Wait(context.Background())
	if err != nil {
		t.logger.WithError(err).Error("source failed")
	}
	n := t.drain()
	t.state.Set(int32(Terminated))
	t.logger.WithField("drained", n).Debug("task stopped")
	return err
}

func (t *Task) prime() error {
	for i := 0; i < t.cfg.NumBuffers; i++ {
		buf, err := t.newBuffer()
		if err != nil {
			return fmt.Errorf("task: allocating buffer %d: %w", i, err)
		}
		if t.cfg.Prime == PrimeSilence {
			t.active.Push(buf)
		} else {
			t.free.Push(buf)
		}
	}
	return nil
}

func (t *Task) execute(ctx context.Context) error {
	produced, err := t.produce()
	if err != nil {
		return err
	}
	if produced {
		runtime.Gosched()
		return nil
	}
	t.meter.Backoff()
	return worker.Sleep(ctx, t.backoff())
}

// produce fills one free buffer from the source and queues it on the
// active side. It returns false if no free buffer is available.
func (t *Task) produce() (bool, error) {
	numFree := t.free.Len()
	buf, ok := t.free.Pop()
	if !ok {
		return false, nil
	}
	if err := t.source.Pull(t.clock, t.scratch); err != nil {
		t.free.Push(buf)
		return false, err
	}
	if numFree >= t.half {
		buf.CopyFrom(t.scratch)
	} else {
		// the consumer has plenty of blocks, let it run between chunks.
		t.chunked++
		for c := range buf {
			for start := 0; start < t.cfg.BlockSize; start += yieldChunk {
				buf.CopyRange(t.scratch, c, start, min(start+yieldChunk, t.cfg.BlockSize))
				runtime.Gosched()
			}
		}
	}
	t.active.Push(buf)
	t.clock.Advance(t.cfg.BlockSize)
	t.meter.Produced()
	return true, nil
}

// backoff returns the block duration scaled by a random factor in
// [1, NumBuffers/2].
func (t *Task) backoff() time.Duration {
	factor := 1.0
	if t.half > 1 {
		factor += t.rng.Float64() * float64(t.half-1)
	}
	return time.Duration(float64(t.cfg.BlockDuration()) * factor)
}

func (t *Task) newBuffer() (signal.Float64, error) {
	if t.memory == nil {
		return signal.EmptyFloat64(t.cfg.NumChannels, t.cfg.BlockSize), nil
	}
	buf := make(signal.Float64, t.cfg.NumChannels)
	for i := range buf {
		f, err := t.memory.AllocateFloat64(t.cfg.BlockSize)
		if err != nil {
			t.releaseBuffer(buf[:i])
			return nil, err
		}
		buf[i] = f
	}
	return buf, nil
}

func (t *Task) releaseBuffer(buf signal.Float64) {
	if t.memory == nil {
		return
	}
	for i := range buf {
		t.memory.FreeFloat64(buf[i])
	}
}

// drain empties both queues and returns the number of buffers released.
func (t *Task) drain() int {
	n := 0
	for _, q := range []*queue.Queue[signal.Float64]{t.active, t.free} {
		for {
			buf, ok := q.Pop()
			if !ok {
				break
			}
			t.releaseBuffer(buf)
			n++
		}
	}
	return n
}
