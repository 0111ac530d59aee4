package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/authmetrics/internal/ir"
	"github.com/roach88/authmetrics/internal/logging"
	"github.com/roach88/authmetrics/internal/metrics"
)

// Classifier maps log text to an event kind.
// Implemented by *classify.Classifier.
type Classifier interface {
	Classify(text string) ir.Classification
}

// Observer receives the engine's side outputs. Implementations must not
// retain the snapshot's Cycles slice beyond the call unless they copy it.
//
// All methods are called from the goroutine that drives the engine.
type Observer interface {
	// OnEvent is called for every line handed to the engine, including
	// lines that arrive after the run completed.
	OnEvent(seq int64, ev ir.Event)

	// OnNote is called for inline progress notes.
	OnNote(note string)

	// OnComplete is called exactly once, when the run reaches a terminal
	// outcome.
	OnComplete(res Result, final *metrics.State)
}

// Result is the engine's verdict for a run.
type Result struct {
	RunID   string
	Outcome metrics.Outcome
	Reason  string

	// Err is set for failures and nil on success or while running.
	Err *RunError

	// Events is the number of events applied to the state.
	Events int
}

// Done reports whether the run reached a terminal outcome.
func (r Result) Done() bool {
	return r.Outcome != metrics.OutcomeRunning
}

// Engine is the single-writer metrics state machine for one run.
//
// The engine owns its metrics.State exclusively. Every line goes through
// Process: it is stamped with a logical seq, passed to observers, checked
// against the deadline, classified, applied, and then the completion policy
// runs. The first terminal outcome is final; later lines reach observers
// but never touch the state.
//
// Thread-safety model:
//   - Process, Finish, Cancel: must be called from exactly one goroutine
//   - Run: drives Process from a channel; do not mix with direct calls
//   - State: returns a snapshot; same goroutine as Process
type Engine struct {
	profile    ir.Profile
	classifier Classifier
	policy     Policy
	seq        int64 // last stamped line; simulator timestamps repeat within a tick
	runIDs     RunIDGenerator
	runID      string
	observers  []Observer
	logger     *slog.Logger

	state  *metrics.State
	result Result
}

// EngineOption allows configuration of engine parameters.
type EngineOption func(*Engine)

// WithObserver registers an observer. Observers are called in
// registration order.
func WithObserver(o Observer) EngineOption {
	return func(e *Engine) {
		if o != nil {
			e.observers = append(e.observers, o)
		}
	}
}

// WithRunIDGenerator replaces the default UUIDv7 run id generator.
func WithRunIDGenerator(g RunIDGenerator) EngineOption {
	return func(e *Engine) {
		e.runIDs = g
	}
}

// WithStartSeq makes the first processed line seq n+1.
func WithStartSeq(n int64) EngineOption {
	return func(e *Engine) {
		e.seq = n
	}
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) EngineOption {
	return func(e *Engine) {
		e.logger = l
	}
}

// New creates an engine for one run of the given profile.
//
// The profile is validated and copied; later changes to the caller's value
// do not affect the run.
func New(p ir.Profile, c Classifier, opts ...EngineOption) (*Engine, error) {
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("invalid profile: %w", err)
	}
	if c == nil {
		return nil, fmt.Errorf("classifier is required")
	}

	e := &Engine{
		profile:    p,
		classifier: c,
		policy:     NewPolicy(p),
		runIDs:     UUIDv7Generator{},
		state:      metrics.New(),
	}

	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = logging.New("engine")
	}

	e.runID = e.runIDs.Generate()
	e.result = Result{RunID: e.runID, Outcome: metrics.OutcomeRunning}
	e.logger = e.logger.With("run_id", e.runID, "variant", string(p.Variant))

	return e, nil
}

// RunID returns the identifier assigned at construction.
func (e *Engine) RunID() string {
	return e.runID
}

// Profile returns the profile the engine was built with.
func (e *Engine) Profile() ir.Profile {
	return e.profile
}

// State returns a snapshot of the current metrics.
func (e *Engine) State() *metrics.State {
	return e.state.Snapshot()
}

// Result returns the current verdict without processing anything.
func (e *Engine) Result() Result {
	return e.result
}

// Process handles one line and returns the verdict after it.
func (e *Engine) Process(ev ir.Event) Result {
	e.seq++
	seq := e.seq
	for _, o := range e.observers {
		o.OnEvent(seq, ev)
	}

	if e.result.Done() {
		return e.result
	}

	if deadline := e.profile.RunDeadlineMicros(); ev.Timestamp > deadline {
		e.finish(metrics.OutcomeFailure, NewDeadlineError(ev.Timestamp, deadline))
		return e.result
	}

	c := e.classifier.Classify(ev.Text)
	eff := Apply(e.state, e.profile, ev, c)
	e.result.Events = e.state.Events

	if c.Kind != ir.KindUnclassified {
		e.logger.Debug("event applied",
			"seq", seq,
			"kind", c.Kind.String(),
			"timestamp", ev.Timestamp,
			"source_id", ev.SourceID,
		)
	}

	for _, note := range eff.Notes {
		e.note(note)
	}
	if eff.Closed != nil {
		e.logger.Info("auth cycle closed",
			"cycle", eff.Closed.Index+1,
			"auth_ms", eff.Closed.AuthMs,
			"verify_ms", eff.Closed.VerifyMs,
			"session_ms", eff.Closed.SessionMs,
		)
	}

	if eff.Timeout {
		e.finish(metrics.OutcomeFailure, NewTimeoutError(ev.Timestamp))
		return e.result
	}

	if e.policy.Evaluate(e.state) == metrics.OutcomeSuccess {
		e.finish(metrics.OutcomeSuccess, nil)
	}

	return e.result
}

// Finish ends the run because the input is exhausted. A run that already
// completed keeps its outcome.
func (e *Engine) Finish() Result {
	if !e.result.Done() {
		e.finish(metrics.OutcomeFailure, NewStreamEndedError(e.state.LastTimestamp, e.state.Events))
	}
	return e.result
}

// Cancel ends the run because the host gave up. A run that already
// completed keeps its outcome.
func (e *Engine) Cancel(cause error) Result {
	if !e.result.Done() {
		e.finish(metrics.OutcomeFailure, NewCancelledError(e.state.LastTimestamp, cause))
	}
	return e.result
}

// Run consumes events in order until the run completes, the channel closes,
// or ctx is cancelled. It returns ctx.Err() only when cancellation ended an
// otherwise running run.
//
// CRITICAL: Must be the only caller of Process for this engine.
func (e *Engine) Run(ctx context.Context, events <-chan ir.Event) (Result, error) {
	e.logger.Info("engine starting", "deadline_ms", e.profile.RunDeadlineMs)

	for !e.result.Done() {
		select {
		case <-ctx.Done():
			e.logger.Info("engine stopping: context cancelled")
			return e.Cancel(ctx.Err()), ctx.Err()

		case ev, ok := <-events:
			if !ok {
				e.logger.Info("engine stopping: input closed")
				return e.Finish(), nil
			}
			e.Process(ev)
		}
	}

	return e.result, nil
}

func (e *Engine) note(text string) {
	e.logger.Info("progress", "note", text)
	for _, o := range e.observers {
		o.OnNote(text)
	}
}

// finish records the terminal outcome exactly once and notifies observers.
// CRITICAL: the only place a run becomes terminal.
func (e *Engine) finish(outcome metrics.Outcome, runErr *RunError) {
	reason := ""
	if runErr != nil {
		reason = runErr.Code.Reason()
	}
	if !e.state.Complete(outcome, reason) {
		return
	}

	e.result = Result{
		RunID:   e.runID,
		Outcome: outcome,
		Reason:  reason,
		Err:     runErr,
		Events:  e.state.Events,
	}

	if runErr != nil {
		e.logger.Warn("run failed",
			"code", string(runErr.Code),
			"error", runErr.Error(),
			"events", e.state.Events,
		)
	} else {
		e.logger.Info("run succeeded",
			"data_recv", e.state.DataRecv,
			"renewals", e.state.RenewalCount,
			"events", e.state.Events,
		)
	}

	final := e.state.Snapshot()
	for _, o := range e.observers {
		o.OnComplete(e.result, final)
	}
}
