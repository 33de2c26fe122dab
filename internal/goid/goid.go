// Package goid identifies the calling goroutine.
package goid

import "runtime"

const prefix = "goroutine "

// Current returns the id of the calling goroutine, or 0 if it cannot be
// determined. It reads the header of the goroutine's own stack trace and
// does not allocate.
func Current() int64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	return parse(buf[:n])
}

// parse reads the id from a "goroutine 123 [running]:" header.
func parse(buf []byte) int64 {
	if len(buf) < len(prefix) || string(buf[:len(prefix)]) != prefix {
		return 0
	}
	var id int64
	for _, c := range buf[len(prefix):] {
		if c < '0' || c > '9' {
			break
		}
		id = id*10 + int64(c-'0')
	}
	return id
}
