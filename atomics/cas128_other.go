//go:build !amd64

package atomics

func hasCAS2() bool { return false }

func cas128(*[2]uint64, uint64, uint64, uint64, uint64) bool {
	panic("atomics: native double-width compare-and-swap unavailable")
}

func load128(*[2]uint64) (uint64, uint64) {
	panic("atomics: native double-width compare-and-swap unavailable")
}
