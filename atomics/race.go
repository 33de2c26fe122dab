//go:build race

package atomics

// The race detector cannot observe the native instruction, so cells run on
// the locked strategy under -race.
const raceEnabled = true
