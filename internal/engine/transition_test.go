package engine

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/authmetrics/internal/ir"
	"github.com/roach88/authmetrics/internal/metrics"
)

type step struct {
	t     int64
	id    int
	kind  ir.EventKind
	bytes int
}

func applyAll(s *metrics.State, p ir.Profile, steps []step) []Effect {
	var effs []Effect
	for _, st := range steps {
		c := ir.Classification{Kind: st.kind}
		if st.bytes > 0 {
			c.Bytes, c.HasBytes = st.bytes, true
		}
		id := st.id
		if id == 0 {
			id = 1
		}
		effs = append(effs, Apply(s, p, ir.Event{Timestamp: st.t, SourceID: id}, c))
	}
	return effs
}

func TestApply_AmortizedEndToEnd(t *testing.T) {
	p := ir.MustProfile(ir.VariantAmortizedGCM)
	s := metrics.New()

	applyAll(s, p, []step{
		{t: 0, kind: ir.KindKeygenStart},
		{t: 50000, kind: ir.KindKeygenEnd},
		{t: 50000, kind: ir.KindAuthCycleStart},
		{t: 60000, kind: ir.KindSignComplete},
		{t: 61000, kind: ir.KindPayloadSizeReported, bytes: 2637},
		{t: 62000, kind: ir.KindVerifyStart},
		{t: 65000, kind: ir.KindVerifyEnd},
		{t: 65000, kind: ir.KindSessionSetupStart},
		{t: 70000, kind: ir.KindSessionSetupEnd},
	})

	want := []metrics.CycleRecord{{Index: 0, AuthMs: 20.0, VerifyMs: 3.0, SessionMs: 5.0}}
	if diff := cmp.Diff(want, s.Cycles); diff != "" {
		t.Errorf("cycles mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, 1, s.RenewalCount)
	assert.Equal(t, 2637, s.AuthPayloadBytes)
	assert.Equal(t, 10.0, s.Sign.ElapsedMs())
	assert.Equal(t, 0.0, s.Keygen.ElapsedMs(), "timestamp 0 reads as unset")
	assert.Equal(t, 9, s.Events)
}

func TestApply_AuthCompletionPoint(t *testing.T) {
	steps := []step{
		{t: 10000, kind: ir.KindAuthCycleStart},
		{t: 20000, kind: ir.KindVerifyEnd},
		{t: 30000, kind: ir.KindSessionSetupEnd},
	}

	gcm := metrics.New()
	applyAll(gcm, ir.MustProfile(ir.VariantAmortizedGCM), steps)
	assert.Equal(t, int64(30000), gcm.Auth.End, "amortized auth ends at the session ACK")

	bp := metrics.New()
	applyAll(bp, ir.MustProfile(ir.VariantBasepaper), steps)
	assert.Equal(t, int64(20000), bp.Auth.End, "basepaper auth ends at verification")
}

func TestApply_KeygenFirstWrite(t *testing.T) {
	s := metrics.New()
	applyAll(s, ir.MustProfile(ir.VariantAmortizedGCM), []step{
		{t: 1000, kind: ir.KindKeygenStart},
		{t: 4000, kind: ir.KindKeygenEnd},
		{t: 5000, kind: ir.KindKeygenStart},
		{t: 9000, kind: ir.KindKeygenEnd},
	})
	assert.Equal(t, metrics.TimerPair{Start: 1000, End: 4000}, s.Keygen)
}

func TestApply_PayloadLastWriteWins(t *testing.T) {
	s := metrics.New()
	applyAll(s, ir.MustProfile(ir.VariantAmortizedGCM), []step{
		{t: 1, kind: ir.KindPayloadSizeReported, bytes: 2637},
		{t: 2, kind: ir.KindPayloadSizeReported, bytes: 8429},
		{t: 3, kind: ir.KindPayloadSizeReported},
	})
	assert.Equal(t, 8429, s.AuthPayloadBytes, "a report without a size leaves the last one")
}

func TestApply_FragmentsCountSenderOnly(t *testing.T) {
	p := ir.MustProfile(ir.VariantAmortizedGCM)
	s := metrics.New()
	applyAll(s, p, []step{
		{t: 1, kind: ir.KindAuthCycleStart},
		{t: 2, id: 1, kind: ir.KindFragmentSent},
		{t: 3, id: 1, kind: ir.KindFragmentSent},
		{t: 4, id: 2, kind: ir.KindFragmentSent},
		{t: 5, id: 3, kind: ir.KindFragmentSent},
	})
	assert.Equal(t, 2, s.AuthFragments)

	applyAll(s, p, []step{{t: 6, kind: ir.KindAuthCycleStart}})
	assert.Equal(t, 0, s.AuthFragments, "a new cycle resets the counter")
}

func TestApply_DataPhase(t *testing.T) {
	s := metrics.New()
	p := ir.MustProfile(ir.VariantAmortizedGCM)

	var steps []step
	for i := 0; i < 5; i++ {
		steps = append(steps, step{t: int64(100000 + i*1000), kind: ir.KindDataMessageEncrypted, bytes: 28})
	}
	for i := 0; i < 5; i++ {
		steps = append(steps, step{t: int64(140000 + i*7000), kind: ir.KindDataMessageDecrypted})
	}
	applyAll(s, p, steps)

	assert.Equal(t, 5, s.DataSent)
	assert.Equal(t, 5, s.DataRecv)
	assert.Equal(t, 28, s.DataPayloadBytes)
	assert.Equal(t, 40.0, s.DataLatencyMs(), "first sent to first decrypted only")
}

func TestApply_CycleDataBackfill(t *testing.T) {
	s := metrics.New()
	p := ir.MustProfile(ir.VariantAmortizedGCM)

	applyAll(s, p, []step{
		{t: 10, kind: ir.KindAuthCycleStart},
		{t: 20, kind: ir.KindSessionSetupEnd},
		{t: 30, kind: ir.KindDataMessageEncrypted, bytes: 28},
		{t: 40, kind: ir.KindDataMessageEncrypted, bytes: 28},
		{t: 50, kind: ir.KindAuthCycleStart},
		{t: 60, kind: ir.KindSessionSetupEnd},
		{t: 70, kind: ir.KindDataMessageEncrypted, bytes: 28},
	})

	require.Len(t, s.Cycles, 2)
	assert.Equal(t, 2, s.Cycles[0].DataMessages)
	assert.Equal(t, 1, s.Cycles[1].DataMessages)
	assert.Equal(t, s.RenewalCount, len(s.Cycles))
}

func TestApply_BaselineDecryptCompletesAuth(t *testing.T) {
	p := ir.MustProfile(ir.VariantBaseline)

	s := metrics.New()
	applyAll(s, p, []step{
		{t: 1000, kind: ir.KindAuthCycleStart},
		{t: 9000, kind: ir.KindDataMessageDecrypted},
	})
	assert.Equal(t, int64(9000), s.Auth.End)
	assert.Equal(t, int64(9000), s.Verify.End)

	s = metrics.New()
	applyAll(s, p, []step{
		{t: 1000, kind: ir.KindAuthCycleStart},
		{t: 5000, kind: ir.KindVerifyEnd},
		{t: 9000, kind: ir.KindDataMessageDecrypted},
	})
	assert.Equal(t, int64(5000), s.Auth.End, "verification already ended auth")

	gcm := metrics.New()
	applyAll(gcm, ir.MustProfile(ir.VariantAmortizedGCM), []step{
		{t: 1000, kind: ir.KindAuthCycleStart},
		{t: 9000, kind: ir.KindDataMessageDecrypted},
	})
	assert.Equal(t, int64(0), gcm.Auth.End, "only the baseline completes auth on decrypt")
}

func TestApply_Notes(t *testing.T) {
	s := metrics.New()
	p := ir.MustProfile(ir.VariantAmortizedGCM)

	effs := applyAll(s, p, []step{
		{t: 50000, kind: ir.KindAuthCycleStart},
		{t: 61000, kind: ir.KindPayloadSizeReported, bytes: 2637},
		{t: 62000, kind: ir.KindVerifyStart},
		{t: 65000, kind: ir.KindVerifyEnd},
		{t: 65000, kind: ir.KindSessionSetupStart},
		{t: 70000, kind: ir.KindSessionSetupEnd},
		{t: 80000, kind: ir.KindDataMessageEncrypted, bytes: 28},
		{t: 90000, kind: ir.KindAmortizationThresholdReached, bytes: 20},
	})

	closed := effs[5]
	require.NotNil(t, closed.Closed)
	assert.Equal(t,
		[]string{">>> [Cycle 1 Auth Summary] Auth=20.0ms Verify=3.0ms SessionSetup=5.0ms AuthPayload=2637B"},
		closed.Notes)

	assert.Equal(t,
		[]string{">>> [AMORTIZATION] Session renewal triggered after 1 messages. Starting new handshake..."},
		effs[7].Notes, "the note reports the messages counted in this cycle")
	assert.Nil(t, effs[7].Closed)
}

func TestApply_TimeoutAndNoops(t *testing.T) {
	s := metrics.New()
	p := ir.MustProfile(ir.VariantAmortizedGCM)

	effs := applyAll(s, p, []step{
		{t: 5, kind: ir.KindUnclassified},
		{t: 6, kind: ir.KindAuthTimeout},
	})
	assert.False(t, effs[0].Timeout)
	assert.True(t, effs[1].Timeout)
	assert.Equal(t, 2, s.Events, "every applied line is counted")
	assert.False(t, s.Completed, "Apply never completes the run")
}

func TestApply_ElapsedNeverNegative(t *testing.T) {
	s := metrics.New()
	applyAll(s, ir.MustProfile(ir.VariantBasepaper), []step{
		{t: 9000, kind: ir.KindVerifyStart},
		{t: 3000, kind: ir.KindVerifyEnd},
		{t: 8000, kind: ir.KindSessionSetupEnd},
	})
	require.Len(t, s.Cycles, 1)
	assert.Equal(t, 0.0, s.Cycles[0].VerifyMs)
	assert.Equal(t, 0.0, s.Cycles[0].AuthMs)
}
