package engine

import (
	"github.com/roach88/authmetrics/internal/ir"
	"github.com/roach88/authmetrics/internal/metrics"
)

// Replay feeds a recorded line sequence through a fresh engine and returns
// the verdict and the final state.
//
// Replay is the normal code path, not a special mode: every line goes
// through Process and an input that never completes ends as stream_ended,
// exactly as in a live run. The engine holds no wall-clock or random
// input apart from the run id, so the same profile and lines always give
// the same state. Pass WithRunIDGenerator to pin the run id as well.
func Replay(p ir.Profile, c Classifier, events []ir.Event, opts ...EngineOption) (Result, *metrics.State, error) {
	e, err := New(p, c, opts...)
	if err != nil {
		return Result{}, nil, err
	}
	for _, ev := range events {
		e.Process(ev)
	}
	res := e.Finish()
	return res, e.State(), nil
}
