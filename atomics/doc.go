// Package atomics provides atomic cells for integer, floating-point and
// pointer values, plus a double-word cell pairing a handle with a tag
// counter for ABA-safe lock-free structures.
//
// Every cell is meant to live inline in an owning structure and must not be
// copied after first use. Operations never allocate and never block, with
// one exception: a Tagged cell that runs on the locked strategy spins on a
// per-cell lock when the hardware lacks a double-width compare-and-swap.
package atomics
