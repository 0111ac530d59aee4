package metrics

import "fmt"

// Outcome is the terminal state of a run.
type Outcome int

const (
	// OutcomeRunning means no terminal condition has fired yet.
	OutcomeRunning Outcome = iota
	// OutcomeSuccess means the profile's success thresholds were met.
	OutcomeSuccess
	// OutcomeFailure means a timeout, deadline or early end of input.
	OutcomeFailure
)

// String returns "running", "success" or "failure".
func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeFailure:
		return "failure"
	default:
		return "running"
	}
}

// ParseOutcome is the inverse of Outcome.String.
func ParseOutcome(s string) (Outcome, error) {
	switch s {
	case "running":
		return OutcomeRunning, nil
	case "success":
		return OutcomeSuccess, nil
	case "failure":
		return OutcomeFailure, nil
	}
	return OutcomeRunning, fmt.Errorf("unknown outcome %q", s)
}

// CycleRecord summarizes one completed authenticate-then-establish round.
type CycleRecord struct {
	Index        int     `json:"index"`
	AuthMs       float64 `json:"auth_ms"`
	VerifyMs     float64 `json:"verify_ms"`
	SessionMs    float64 `json:"session_ms"`
	DataMessages int     `json:"data_messages"`

	// Partial marks a round that started but never reached the session ACK.
	// Partial records are produced by OpenCycle and never stored in Cycles.
	Partial bool `json:"partial,omitempty"`
}

// State is the aggregate metrics record of one run.
//
// Fields are exported for readers (report, store). Mutation goes through
// the methods below; the engine hands readers a Snapshot, never the live
// value.
type State struct {
	Keygen       TimerPair `json:"keygen"`
	Sign         TimerPair `json:"sign"`
	Auth         TimerPair `json:"auth"`
	Verify       TimerPair `json:"verify"`
	SessionSetup TimerPair `json:"session_setup"`

	AuthPayloadBytes int `json:"auth_payload_bytes"`
	AuthFragments    int `json:"auth_fragments"` // sender fragments in the current cycle

	DataPayloadBytes int   `json:"data_payload_bytes"` // last encrypted size
	DataSent         int   `json:"data_sent"`
	DataRecv         int   `json:"data_recv"`
	FirstDataSent    int64 `json:"first_data_sent"`
	FirstDataRecv    int64 `json:"first_data_recv"`

	Cycles         []CycleRecord `json:"cycles"`
	RenewalCount   int           `json:"renewal_count"`
	CycleDataCount int           `json:"cycle_data_count"`

	Events        int   `json:"events"`         // events applied
	LastTimestamp int64 `json:"last_timestamp"` // timestamp of the last applied event

	Completed bool    `json:"completed"`
	Outcome   Outcome `json:"outcome"`
	Reason    string  `json:"reason,omitempty"`

	// lastClosedAuthStart is Auth.Start at the most recent CloseCycle.
	lastClosedAuthStart int64
}

// New returns a zeroed state for a fresh run.
func New() *State {
	return &State{Cycles: []CycleRecord{}}
}

// Observe records that an event at t was applied.
func (s *State) Observe(t int64) {
	s.Events++
	if t > s.LastTimestamp {
		s.LastTimestamp = t
	}
}

// StartKeygen sets keygen.start. First-write: a repeated marker is ignored.
func (s *State) StartKeygen(t int64) {
	if s.Keygen.Start == 0 {
		s.Keygen.Start = t
	}
}

// EndKeygen sets keygen.end. First-write: the first completion wins.
func (s *State) EndKeygen(t int64) {
	if s.Keygen.End == 0 {
		s.Keygen.End = t
	}
}

// StartAuthCycle opens a new authentication round: auth.start and
// sign.start are overwritten and the per-cycle fragment counter resets.
func (s *State) StartAuthCycle(t int64) {
	s.Auth.Start = t
	s.Sign.Start = t
	s.AuthFragments = 0
}

// CompleteSign sets sign.end. Overwrite.
func (s *State) CompleteSign(t int64) {
	s.Sign.End = t
}

// ReportAuthPayload records the authentication payload size. Last write wins.
func (s *State) ReportAuthPayload(n int) {
	s.AuthPayloadBytes = n
}

// CountFragment increments the per-cycle sender fragment counter.
func (s *State) CountFragment() {
	s.AuthFragments++
}

// StartVerify sets verify.start. Overwrite.
func (s *State) StartVerify(t int64) {
	s.Verify.Start = t
}

// EndVerify sets verify.end. Overwrite.
func (s *State) EndVerify(t int64) {
	s.Verify.End = t
}

// EndAuth sets auth.end. Overwrite.
func (s *State) EndAuth(t int64) {
	s.Auth.End = t
}

// StartSessionSetup sets session.start. Overwrite.
func (s *State) StartSessionSetup(t int64) {
	s.SessionSetup.Start = t
}

// EndSessionSetup sets session.end. Overwrite.
func (s *State) EndSessionSetup(t int64) {
	s.SessionSetup.End = t
}

// CloseCycle appends a CycleRecord computed from the current auth, verify
// and session timers, increments RenewalCount and resets the per-cycle data
// counter. The new record's DataMessages starts at 0 and is back-filled by
// RecordDataSent.
func (s *State) CloseCycle() CycleRecord {
	rec := CycleRecord{
		Index:     s.RenewalCount,
		AuthMs:    s.Auth.ElapsedMs(),
		VerifyMs:  s.Verify.ElapsedMs(),
		SessionMs: s.SessionSetup.ElapsedMs(),
	}
	s.Cycles = append(s.Cycles, rec)
	s.RenewalCount++
	s.CycleDataCount = 0
	s.lastClosedAuthStart = s.Auth.Start
	return rec
}

// RecordDataSent counts an encrypted data message. When hasBytes is set the
// data payload size is overwritten. The count is attributed to the most
// recent cycle. Returns true for the first message of the run.
func (s *State) RecordDataSent(t int64, bytes int, hasBytes bool) bool {
	if hasBytes {
		s.DataPayloadBytes = bytes
	}
	s.DataSent++
	s.CycleDataCount++
	if n := len(s.Cycles); n > 0 {
		s.Cycles[n-1].DataMessages = s.CycleDataCount
	}
	if s.DataSent == 1 {
		s.FirstDataSent = t
		return true
	}
	return false
}

// RecordDataRecv counts a decrypted data message. Returns true for the
// first message of the run.
func (s *State) RecordDataRecv(t int64) bool {
	s.DataRecv++
	if s.DataRecv == 1 {
		s.FirstDataRecv = t
		return true
	}
	return false
}

// DataLatencyMs is the E2E latency of the first data message: first sent to
// first decrypted. Later messages are not averaged in.
func (s *State) DataLatencyMs() float64 {
	return ElapsedMs(s.FirstDataSent, s.FirstDataRecv)
}

// OpenCycle returns the round that started after the last CloseCycle but
// never reached its session ACK, if any.
func (s *State) OpenCycle() (CycleRecord, bool) {
	if s.Auth.Start == 0 || s.Auth.Start <= s.lastClosedAuthStart {
		return CycleRecord{}, false
	}
	rec := CycleRecord{
		Index:   s.RenewalCount,
		AuthMs:  s.Auth.ElapsedMs(),
		Partial: true,
	}
	if s.Verify.Start >= s.Auth.Start {
		rec.VerifyMs = s.Verify.ElapsedMs()
	}
	if s.SessionSetup.Start >= s.Auth.Start {
		rec.SessionMs = s.SessionSetup.ElapsedMs()
	}
	if len(s.Cycles) == 0 {
		rec.DataMessages = s.CycleDataCount
	}
	return rec, true
}

// Complete marks the run terminal. Returns false if it was already
// completed; the first outcome and reason are kept.
func (s *State) Complete(outcome Outcome, reason string) bool {
	if s.Completed {
		return false
	}
	s.Completed = true
	s.Outcome = outcome
	s.Reason = reason
	return true
}

// Snapshot returns a deep copy safe to hand to readers.
func (s *State) Snapshot() *State {
	cp := *s
	cp.Cycles = make([]CycleRecord, len(s.Cycles))
	copy(cp.Cycles, s.Cycles)
	return &cp
}
