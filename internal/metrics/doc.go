// Package metrics holds the mutable aggregate of one run: the five phase
// timers, payload and fragment counters, data-phase counters and the
// amortization cycle history.
//
// A State is created zeroed by New and is owned by exactly one engine for
// the run's lifetime. Nothing in this package is shared between runs, so
// several runs can be analyzed concurrently in one process.
//
// The mutation methods here are the only way the engine changes a State.
// Each documents its write policy (first-write, overwrite, counter) so that
// replaying a duplicated marker cannot corrupt a timer.
package metrics
