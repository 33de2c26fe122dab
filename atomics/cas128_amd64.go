package atomics

import "golang.org/x/sys/cpu"

func hasCAS2() bool {
	return cpu.X86.HasCX16
}

// cas128 runs LOCK CMPXCHG16B on a 16-byte aligned pair.
//
//go:noescape
func cas128(addr *[2]uint64, oldLo, oldHi, newLo, newHi uint64) (swapped bool)

// load128 reads a 16-byte aligned pair atomically.
//
//go:noescape
func load128(addr *[2]uint64) (lo, hi uint64)
