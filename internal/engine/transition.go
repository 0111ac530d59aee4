package engine

import (
	"fmt"

	"github.com/roach88/authmetrics/internal/ir"
	"github.com/roach88/authmetrics/internal/metrics"
)

// Effect is what a transition reports back to the engine beyond the state
// mutation itself.
type Effect struct {
	// Notes are inline progress lines for the transcript.
	Notes []string

	// Closed is set when the event closed an authentication cycle.
	Closed *metrics.CycleRecord

	// Timeout is set when the event is an authentication timeout marker.
	Timeout bool
}

// Apply mutates s for one classified event according to the per-field
// write policy. It never fails: unknown kinds and unmatched text are no-ops.
//
// Apply does not evaluate completion and does not check the run-once guard;
// the engine owns both.
func Apply(s *metrics.State, p ir.Profile, ev ir.Event, c ir.Classification) Effect {
	var eff Effect
	t := ev.Timestamp
	s.Observe(t)

	switch c.Kind {
	case ir.KindKeygenStart:
		s.StartKeygen(t)

	case ir.KindKeygenEnd:
		s.EndKeygen(t)

	case ir.KindAuthCycleStart:
		s.StartAuthCycle(t)

	case ir.KindSignComplete:
		s.CompleteSign(t)

	case ir.KindPayloadSizeReported:
		if c.HasBytes {
			s.ReportAuthPayload(c.Bytes)
		}

	case ir.KindFragmentSent:
		if ev.SourceID == p.SenderID {
			s.CountFragment()
		}

	case ir.KindVerifyStart:
		s.StartVerify(t)

	case ir.KindVerifyEnd:
		s.EndVerify(t)
		if p.AuthCompletion == ir.AuthAtVerify {
			s.EndAuth(t)
		}

	case ir.KindSessionSetupStart:
		s.StartSessionSetup(t)

	case ir.KindSessionSetupEnd:
		s.EndSessionSetup(t)
		if p.AuthCompletion == ir.AuthAtSessionAck {
			s.EndAuth(t)
		}
		rec := s.CloseCycle()
		eff.Closed = &rec
		eff.Notes = append(eff.Notes, CycleNote(s.RenewalCount, rec, s.AuthPayloadBytes))

	case ir.KindDataMessageEncrypted:
		s.RecordDataSent(t, c.Bytes, c.HasBytes)

	case ir.KindDataMessageDecrypted:
		first := s.RecordDataRecv(t)
		if first && p.DecryptCompletesAuth && s.Auth.End == 0 {
			s.EndAuth(t)
			s.EndVerify(t)
		}

	case ir.KindAmortizationThresholdReached:
		eff.Notes = append(eff.Notes, AmortizationNote(s.CycleDataCount))

	case ir.KindAuthTimeout:
		eff.Timeout = true
	}

	return eff
}

// CycleNote formats the inline summary written when a cycle closes.
// n is the 1-based cycle number.
func CycleNote(n int, rec metrics.CycleRecord, authBytes int) string {
	return fmt.Sprintf(">>> [Cycle %d Auth Summary] Auth=%.1fms Verify=%.1fms SessionSetup=%.1fms AuthPayload=%dB",
		n, rec.AuthMs, rec.VerifyMs, rec.SessionMs, authBytes)
}

// AmortizationNote formats the inline note written when the sender reports
// that its per-session message budget is spent.
func AmortizationNote(messages int) string {
	return fmt.Sprintf(">>> [AMORTIZATION] Session renewal triggered after %d messages. Starting new handshake...", messages)
}
