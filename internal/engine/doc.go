// Package engine implements the metrics state machine for one simulation
// run.
//
// ARCHITECTURE:
//
// Single-Writer Event Loop:
// One goroutine owns the engine and its metrics.State. Lines are processed
// strictly in arrival order:
//  1. Stamp with the next logical seq and hand to observers
//  2. Fail the run if the line is past the simulated deadline
//  3. Classify the text (dialect of the injected profile)
//  4. Apply the per-field transition (transition.go)
//  5. Evaluate the completion policy (policy.go)
//
// Run-Once:
// The first terminal outcome (success, timeout, deadline, end of input or
// cancellation) is recorded by finish(), which notifies observers exactly
// once. Later lines are still passed to observers for the transcript but
// never mutate the state.
//
// Simulator timestamps are microseconds. Timestamp 0 means "not observed";
// elapsed times with an unset endpoint, or with end before start, are 0.
package engine
