// Package dealloc moves the release of memory off the real-time goroutine.
//
// Memory hands out power-of-two blocks prefixed with a small header. Free
// and Defer called from any goroutine only enqueue the work; a single
// background worker drains the queue with an adaptive poll interval. Calls
// made from the worker itself are served inline.
package dealloc

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math/bits"
	"sync"
	"time"
	"unsafe"

	"github.com/rs/xid"
	"github.com/sirupsen/logrus"

	"github.com/dudk/plinth/atomics"
	"github.com/dudk/plinth/internal/worker"
	"github.com/dudk/plinth/log"
	"github.com/dudk/plinth/queue"
)

const (
	headerSize = 16
	sampleSize = 8
	magic      = uint64(0x706c696e74680000)

	// DefaultMinSleep is the poll interval after a successful pop.
	DefaultMinSleep = time.Microsecond
	// DefaultMaxSleep caps the poll interval of an idle worker.
	DefaultMaxSleep = 100 * time.Millisecond
	// DefaultMaxSize is the largest allocation served by default.
	DefaultMaxSize = 1 << 30
	// DefaultCacheLimit is the number of released blocks kept per class.
	DefaultCacheLimit = 32
)

var (
	// ErrInvalidSize is returned for non-positive allocation sizes.
	ErrInvalidSize = errors.New("dealloc: invalid size")
	// ErrAllocation is returned when a block cannot be allocated.
	ErrAllocation = errors.New("dealloc: allocation failed")
	// ErrClosed is returned when a closed Memory is started.
	ErrClosed = errors.New("dealloc: memory closed")
)

type (
	entry struct {
		block []byte
		fn    func()
	}

	// Option configures Memory.
	Option func(*Memory)
)

// WithStats injects the statistics the memory reports to.
func WithStats(s *Stats) Option {
	return func(m *Memory) {
		m.stats = s
	}
}

// WithLogger sets the logger of the worker.
func WithLogger(l logrus.FieldLogger) Option {
	return func(m *Memory) {
		m.logger = l
	}
}

// WithSleep sets the bounds of the adaptive poll interval.
func WithSleep(lo, hi time.Duration) Option {
	return func(m *Memory) {
		m.minSleep, m.maxSleep = lo, hi
	}
}

// WithMaxSize limits the size of a single allocation.
func WithMaxSize(n int) Option {
	return func(m *Memory) {
		m.maxSize = n
	}
}

// WithCacheLimit sets how many released blocks are kept for reuse per
// size class.
func WithCacheLimit(n int) Option {
	return func(m *Memory) {
		m.cacheLimit = n
	}
}

// WithMode selects the compare-and-swap strategy of the release queue.
func WithMode(mode atomics.CASMode) Option {
	return func(m *Memory) {
		m.mode = mode
	}
}

// Memory is an allocator whose releases are performed by a background
// worker.
type Memory struct {
	id         xid.ID
	logger     logrus.FieldLogger
	stats      *Stats
	mode       atomics.CASMode
	minSleep   time.Duration
	maxSleep   time.Duration
	maxSize    int
	cacheLimit int

	pending *queue.Queue[entry]
	sleep   time.Duration
	worker  atomics.Pointer[worker.Worker]
	started atomics.Int32
	closed  atomics.Int32
	// set while the worker runs a deferred callback, the only place the
	// worker can call Free or Defer from.
	inCallback atomics.Int32

	mu    sync.Mutex
	cache [NumClasses][][]byte
	// serializes Start and Close.
	lifecycle sync.Mutex
}

// New returns a memory with a stopped worker.
func New(opts ...Option) (*Memory, error) {
	m := Memory{
		id:         xid.New(),
		logger:     log.GetLogger(),
		mode:       atomics.CASAuto,
		minSleep:   DefaultMinSleep,
		maxSleep:   DefaultMaxSleep,
		maxSize:    DefaultMaxSize,
		cacheLimit: DefaultCacheLimit,
	}
	for _, opt := range opts {
		opt(&m)
	}
	if m.stats == nil {
		m.stats = NewStats()
	}
	if m.minSleep <= 0 || m.maxSleep < m.minSleep {
		return nil, fmt.Errorf("dealloc: invalid sleep bounds %v..%v", m.minSleep, m.maxSleep)
	}
	q, err := queue.New[entry](queue.WithMode(m.mode))
	if err != nil {
		return nil, fmt.Errorf("dealloc: creating release queue: %w", err)
	}
	m.pending = q
	m.sleep = m.minSleep
	return &m, nil
}

// Start launches the release worker. It can be called once.
func (m *Memory) Start(ctx context.Context) error {
	m.lifecycle.Lock()
	defer m.lifecycle.Unlock()
	if m.closed.Get() == 1 {
		return ErrClosed
	}
	if !m.started.CompareAndSwap(0, 1) {
		return errors.New("dealloc: worker already started")
	}
	w, err := worker.Start(ctx, "dealloc-"+m.id.String(), m.logger, worker.Funcs{
		ExecuteFunc: m.execute,
		FlushFunc:   m.flush,
	})
	if err != nil {
		m.started.Set(0)
		return err
	}
	m.worker.Set(w)
	return nil
}

// Close stops the worker and releases everything still queued. If ctx is
// done before the worker returns, the queue is left to the worker and Close
// can be called again to wait for it.
func (m *Memory) Close(ctx context.Context) error {
	m.lifecycle.Lock()
	defer m.lifecycle.Unlock()
	m.closed.Set(1)
	var err error
	if w := m.worker.Get(); w != nil {
		w.RequestExit()
		_ = w.Wait(ctx)
		select {
		case <-w.Done():
		default:
			return fmt.Errorf("dealloc: worker did not exit: %w", ctx.Err())
		}
		err = w.Wait(context.Background())
	}
	if n := m.drain(); n > 0 {
		m.logger.WithField("released", n).Debug("released queued entries on close")
	}
	return err
}

// Stats returns the statistics the memory reports to.
func (m *Memory) Stats() *Stats {
	return m.stats
}

// Pending returns the approximate number of queued releases.
func (m *Memory) Pending() int {
	return m.pending.Len()
}

// Reserve grows the release queue so that n releases can be queued without
// allocating.
func (m *Memory) Reserve(n int) {
	m.pending.Reserve(n)
}

// Allocate returns a block of size bytes. The capacity of the block is
// rounded up so that block and header fill a power of two.
func (m *Memory) Allocate(size int) ([]byte, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidSize, size)
	}
	if size > m.maxSize {
		return nil, fmt.Errorf("%w: %d bytes exceeds limit of %d", ErrAllocation, size, m.maxSize)
	}
	total := 1 << bits.Len64(uint64(size+headerSize-1))
	class := bits.TrailingZeros64(uint64(total))

	block := m.cached(class)
	if block == nil {
		block = make([]byte, total)
	} else {
		clear(block[headerSize:])
	}
	binary.NativeEndian.PutUint64(block[0:], uint64(total))
	binary.NativeEndian.PutUint64(block[8:], magic|uint64(class))
	m.stats.allocated(class)
	return block[headerSize : headerSize+size : total], nil
}

// AllocateFloat64 returns a zeroed block of n samples.
func (m *Memory) AllocateFloat64(n int) ([]float64, error) {
	b, err := m.Allocate(n * sampleSize)
	if err != nil {
		return nil, err
	}
	// blocks are at least 32 bytes and power-of-two sized, so the payload
	// after the 16-byte header is 8-byte aligned.
	return unsafe.Slice((*float64)(unsafe.Pointer(unsafe.SliceData(b))), cap(b)/sampleSize)[:n], nil
}

// FreeFloat64 releases a block returned by AllocateFloat64.
func (m *Memory) FreeFloat64(f []float64) {
	if f == nil {
		return
	}
	m.Free(unsafe.Slice((*byte)(unsafe.Pointer(unsafe.SliceData(f))), cap(f)*sampleSize))
}

// Free releases a block returned by Allocate. The block may be resliced but
// must keep its start and capacity. From the worker goroutine the block is
// released immediately; from any other goroutine it is queued.
func (m *Memory) Free(p []byte) {
	if p == nil {
		return
	}
	block := header(p)
	if m.inline() {
		m.release(block)
		return
	}
	m.pending.Push(entry{block: block})
}

// Defer runs fn on the worker goroutine.
func (m *Memory) Defer(fn func()) {
	if m.inline() {
		fn()
		return
	}
	m.pending.Push(entry{fn: fn})
}

// inline reports whether releases must be served on the calling goroutine.
func (m *Memory) inline() bool {
	if m.closed.Get() == 1 {
		return true
	}
	if m.inCallback.Get() == 0 {
		return false
	}
	w := m.worker.Get()
	return w != nil && w.IsCurrent()
}

func (m *Memory) execute(ctx context.Context) error {
	if m.releaseNext() {
		m.sleep = m.minSleep
	} else if m.sleep = 2 * m.sleep; m.sleep > m.maxSleep {
		m.sleep = m.maxSleep
	}
	return worker.Sleep(ctx, m.sleep)
}

func (m *Memory) flush(context.Context) error {
	if n := m.drain(); n > 0 {
		m.logger.WithField("released", n).Debug("drained release queue")
	}
	return nil
}

func (m *Memory) drain() int {
	n := 0
	for m.releaseNext() {
		n++
	}
	return n
}

func (m *Memory) releaseNext() bool {
	e, ok := m.pending.Pop()
	if !ok {
		return false
	}
	if e.fn != nil {
		m.inCallback.Set(1)
		e.fn()
		m.inCallback.Set(0)
	}
	if e.block != nil {
		m.release(e.block)
	}
	return true
}

func (m *Memory) release(block []byte) {
	class := bits.TrailingZeros64(uint64(len(block)))
	m.stats.released(class)
	m.mu.Lock()
	if len(m.cache[class]) < m.cacheLimit {
		m.cache[class] = append(m.cache[class], block)
	}
	m.mu.Unlock()
}

func (m *Memory) cached(class int) []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	free := m.cache[class]
	if len(free) == 0 {
		return nil
	}
	block := free[len(free)-1]
	free[len(free)-1] = nil
	m.cache[class] = free[:len(free)-1]
	return block
}

// header recovers the whole block from the slice handed to the caller.
func header(p []byte) []byte {
	start := unsafe.Add(unsafe.Pointer(unsafe.SliceData(p)), -headerSize)
	hdr := unsafe.Slice((*byte)(start), headerSize)
	total := binary.NativeEndian.Uint64(hdr[0:])
	mark := binary.NativeEndian.Uint64(hdr[8:])
	class := bits.TrailingZeros64(total)
	if mark != magic|uint64(class) || total != uint64(cap(p)+headerSize) {
		panic("dealloc: block was not allocated by Memory")
	}
	return unsafe.Slice((*byte)(start), total)
}

var global = sync.OnceValue(func() *Memory {
	m, err := New()
	if err != nil {
		panic(err)
	}
	if err := m.Start(context.Background()); err != nil {
		panic(err)
	}
	return m
})

// Global returns the process-wide memory. Its worker runs for the life of
// the process.
func Global() *Memory {
	return global()
}
