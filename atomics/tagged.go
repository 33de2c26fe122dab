package atomics

import (
	"errors"
	"sync"
	"sync/atomic"
	"unsafe"
)

var (
	// ErrNilCell is returned when a nil cell is initialized or released.
	ErrNilCell = errors.New("atomics: nil cell")
	// ErrNativeUnsupported is returned when the native double-width
	// compare-and-swap is requested but cannot be used.
	ErrNativeUnsupported = errors.New("atomics: native double-width compare-and-swap unsupported")
)

// CASMode selects how a Tagged cell performs its double-word updates.
type CASMode int

const (
	// CASAuto uses the native instruction when the CPU provides it and
	// falls back to the locked strategy otherwise.
	CASAuto CASMode = iota
	// CASNative requires the hardware instruction.
	CASNative
	// CASLocked serializes updates with a per-cell spin lock.
	CASLocked
)

func (m CASMode) String() string {
	switch m {
	case CASAuto:
		return "auto"
	case CASNative:
		return "native"
	case CASLocked:
		return "locked"
	}
	return "unknown"
}

// NativeCAS2 reports whether Tagged cells can use the hardware double-width
// compare-and-swap in this process. The probe runs once.
var NativeCAS2 = sync.OnceValue(func() bool {
	return hasCAS2() && !raceEnabled
})

// strategy performs the compound operations of a Tagged cell.
type strategy interface {
	load(c *Tagged) (ptr, tag uint64)
	compareAndSwap(c *Tagged, oldPtr, oldTag, newPtr, newTag uint64) bool
	mode() CASMode
}

type (
	nativeStrategy struct{}
	lockedStrategy struct{}
)

func (nativeStrategy) load(c *Tagged) (uint64, uint64) {
	return load128(c.pair())
}

func (nativeStrategy) compareAndSwap(c *Tagged, oldPtr, oldTag, newPtr, newTag uint64) bool {
	return cas128(c.pair(), oldPtr, oldTag, newPtr, newTag)
}

func (nativeStrategy) mode() CASMode { return CASNative }

func (lockedStrategy) load(c *Tagged) (uint64, uint64) {
	c.lock.Lock()
	p := c.pair()
	ptr, tag := atomic.LoadUint64(&p[0]), atomic.LoadUint64(&p[1])
	c.lock.Unlock()
	return ptr, tag
}

func (lockedStrategy) compareAndSwap(c *Tagged, oldPtr, oldTag, newPtr, newTag uint64) bool {
	c.lock.Lock()
	defer c.lock.Unlock()
	p := c.pair()
	if atomic.LoadUint64(&p[0]) != oldPtr || atomic.LoadUint64(&p[1]) != oldTag {
		return false
	}
	atomic.StoreUint64(&p[0], newPtr)
	atomic.StoreUint64(&p[1], newTag)
	return true
}

func (lockedStrategy) mode() CASMode { return CASLocked }

// Tagged holds a handle word paired with a tag word. Every update made
// through Swap, Set or Add bumps the tag, so a compare-and-swap against a
// stale (handle, tag) snapshot fails even if the handle value was reused.
//
// The handle is an opaque uint64: callers store indices or other non-pointer
// values, never Go pointers. A Tagged cell must be initialized with Init and
// must not be copied afterwards.
type Tagged struct {
	_ noCopy
	// three words so that a 16-byte aligned pair always fits.
	words [3]uint64
	lock  SpinLock
	s     strategy
}

// NewTagged returns an initialized cell.
func NewTagged(mode CASMode) (*Tagged, error) {
	c := &Tagged{}
	if err := c.Init(mode); err != nil {
		return nil, err
	}
	return c, nil
}

// Init zeroes the cell and selects its strategy.
func (c *Tagged) Init(mode CASMode) error {
	if c == nil {
		return ErrNilCell
	}
	var s strategy
	switch mode {
	case CASAuto:
		if NativeCAS2() {
			s = nativeStrategy{}
		} else {
			s = lockedStrategy{}
		}
	case CASNative:
		if !NativeCAS2() {
			return ErrNativeUnsupported
		}
		s = nativeStrategy{}
	case CASLocked:
		s = lockedStrategy{}
	default:
		return errors.New("atomics: unknown mode " + mode.String())
	}
	c.words = [3]uint64{}
	c.s = s
	return nil
}

// Deinit releases the strategy. The cell must be initialized again before
// further use.
func (c *Tagged) Deinit() error {
	if c == nil {
		return ErrNilCell
	}
	c.s = nil
	c.words = [3]uint64{}
	return nil
}

// Mode returns the strategy the cell runs on.
func (c *Tagged) Mode() CASMode {
	return c.strategy().mode()
}

// Load returns a consistent snapshot of the pair.
func (c *Tagged) Load() (ptr, tag uint64) {
	return c.strategy().load(c)
}

// LoadUnchecked reads both words without synchronizing them. The result
// may be torn if a writer runs concurrently.
func (c *Tagged) LoadUnchecked() (ptr, tag uint64) {
	p := c.pair()
	return atomic.LoadUint64(&p[0]), atomic.LoadUint64(&p[1])
}

// CompareAndSwap replaces the pair only if both words match.
func (c *Tagged) CompareAndSwap(oldPtr, oldTag, newPtr, newTag uint64) bool {
	return c.strategy().compareAndSwap(c, oldPtr, oldTag, newPtr, newTag)
}

// Swap stores ptr, bumps the tag and returns the previous handle.
func (c *Tagged) Swap(ptr uint64) uint64 {
	s := c.strategy()
	for {
		old, tag := s.load(c)
		if s.compareAndSwap(c, old, tag, ptr, tag+1) {
			return old
		}
	}
}

// Set stores ptr and bumps the tag.
func (c *Tagged) Set(ptr uint64) {
	c.Swap(ptr)
}

// SwapAll stores the pair as given and returns the previous one.
func (c *Tagged) SwapAll(ptr, tag uint64) (oldPtr, oldTag uint64) {
	s := c.strategy()
	for {
		oldPtr, oldTag = s.load(c)
		if s.compareAndSwap(c, oldPtr, oldTag, ptr, tag) {
			return oldPtr, oldTag
		}
	}
}

// SetAll stores the pair as given.
func (c *Tagged) SetAll(ptr, tag uint64) {
	c.SwapAll(ptr, tag)
}

// Add adds delta to the handle word, bumps the tag and returns the new
// handle.
func (c *Tagged) Add(delta int64) uint64 {
	s := c.strategy()
	for {
		old, tag := s.load(c)
		next := old + uint64(delta)
		if s.compareAndSwap(c, old, tag, next, tag+1) {
			return next
		}
	}
}

func (c *Tagged) strategy() strategy {
	if c.s == nil {
		panic("atomics: Tagged cell used before Init")
	}
	return c.s
}

// pair returns the 16-byte aligned words of the cell.
func (c *Tagged) pair() *[2]uint64 {
	p := unsafe.Pointer(&c.words[0])
	if uintptr(p)&15 != 0 {
		p = unsafe.Pointer(&c.words[1])
	}
	return (*[2]uint64)(p)
}
