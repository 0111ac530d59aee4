package engine

import (
	"github.com/roach88/authmetrics/internal/ir"
	"github.com/roach88/authmetrics/internal/metrics"
)

// Policy decides when a run has succeeded.
// Failure is never inferred from counters; it comes from a timeout marker,
// the deadline, or the host, and is recorded on the state by the engine.
type Policy struct {
	thresholds ir.Thresholds
}

// NewPolicy returns the completion policy for a profile.
func NewPolicy(p ir.Profile) Policy {
	return Policy{thresholds: p.Thresholds}
}

// Thresholds returns the success thresholds in effect.
func (p Policy) Thresholds() ir.Thresholds {
	return p.thresholds
}

// Evaluate returns the outcome for s. A completed state keeps its recorded
// outcome; otherwise the run succeeds once enough data messages were
// decrypted across enough completed session setups.
func (p Policy) Evaluate(s *metrics.State) metrics.Outcome {
	if s.Completed {
		return s.Outcome
	}
	if s.DataRecv >= p.thresholds.MinReceived && s.RenewalCount >= p.thresholds.MinRenewals {
		return metrics.OutcomeSuccess
	}
	return metrics.OutcomeRunning
}
