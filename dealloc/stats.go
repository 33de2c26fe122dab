package dealloc

import "github.com/dudk/plinth/atomics"

// NumClasses is the number of power-of-two size classes tracked by Stats.
const NumClasses = 64

// Stats records allocation diagnostics. One Stats may be shared by several
// Memory instances.
type Stats struct {
	blocks  [NumClasses]atomics.Int64
	largest atomics.Int64
}

// NewStats returns empty statistics.
func NewStats() *Stats {
	return &Stats{}
}

// Blocks returns the number of live blocks of 1<<class bytes.
func (s *Stats) Blocks(class int) int64 {
	if class < 0 || class >= NumClasses {
		return 0
	}
	return s.blocks[class].Get()
}

// BlockCounts returns a snapshot of live blocks per class.
func (s *Stats) BlockCounts() [NumClasses]int64 {
	var counts [NumClasses]int64
	for i := range s.blocks {
		counts[i] = s.blocks[i].Get()
	}
	return counts
}

// LargestSize returns the largest block size ever allocated.
func (s *Stats) LargestSize() int64 {
	return s.largest.Get()
}

func (s *Stats) allocated(class int) {
	s.blocks[class].Increment()
	s.largest.SetIfLarger(int64(1) << class)
}

func (s *Stats) released(class int) {
	s.blocks[class].Decrement()
}
