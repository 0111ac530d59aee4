package harness

import (
	"github.com/roach88/authmetrics/internal/metrics"
	"github.com/roach88/authmetrics/internal/report"
)

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true when every assertion and principle held.
	Pass bool `json:"pass"`

	RunID   string          `json:"run_id"`
	Outcome metrics.Outcome `json:"outcome"`
	Reason  string          `json:"reason,omitempty"`

	// Summary is the report view of the final state.
	Summary report.Summary `json:"summary"`

	// Notes are the inline progress notes in emission order.
	Notes []string `json:"notes"`

	// Transcript is everything the transcript writer produced.
	Transcript string `json:"transcript"`

	// Events is the number of lines handed to the engine.
	Events int `json:"events"`

	// Errors contains assertion and principle failures.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Notes:  []string{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
