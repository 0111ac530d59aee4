package metrics

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimerPair_ElapsedMs(t *testing.T) {
	tests := []struct {
		name string
		pair TimerPair
		want float64
	}{
		{"both set", TimerPair{Start: 50000, End: 70000}, 20.0},
		{"sub-millisecond", TimerPair{Start: 1000, End: 1500}, 0.5},
		{"start unset", TimerPair{End: 70000}, 0},
		{"end unset", TimerPair{Start: 50000}, 0},
		{"both unset", TimerPair{}, 0},
		{"end before start", TimerPair{Start: 70000, End: 50000}, 0},
		{"zero elapsed", TimerPair{Start: 1000, End: 1000}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.pair.ElapsedMs()
			assert.Equal(t, tt.want, got)
			assert.GreaterOrEqual(t, got, 0.0, "elapsed must never be negative")
		})
	}
}

func TestTimerPair_IsSet(t *testing.T) {
	assert.True(t, TimerPair{Start: 1, End: 2}.IsSet())
	assert.False(t, TimerPair{Start: 1}.IsSet())
	assert.False(t, TimerPair{}.IsSet())
}

func TestState_KeygenFirstWrite(t *testing.T) {
	s := New()
	s.StartKeygen(1000)
	s.StartKeygen(9000)
	s.EndKeygen(51000)
	s.EndKeygen(99000)

	assert.Equal(t, TimerPair{Start: 1000, End: 51000}, s.Keygen)
	assert.Equal(t, 50.0, s.Keygen.ElapsedMs())
}

func TestState_StartAuthCycleResetsFragments(t *testing.T) {
	s := New()
	s.StartAuthCycle(100)
	s.CountFragment()
	s.CountFragment()
	require.Equal(t, 2, s.AuthFragments)

	s.StartAuthCycle(200)
	assert.Equal(t, 0, s.AuthFragments)
	assert.Equal(t, int64(200), s.Auth.Start)
	assert.Equal(t, int64(200), s.Sign.Start)
}

func TestState_CloseCycle(t *testing.T) {
	s := New()
	s.StartAuthCycle(50000)
	s.StartVerify(62000)
	s.EndVerify(65000)
	s.StartSessionSetup(65000)
	s.EndSessionSetup(70000)
	s.EndAuth(70000)

	rec := s.CloseCycle()

	want := CycleRecord{Index: 0, AuthMs: 20.0, VerifyMs: 3.0, SessionMs: 5.0}
	if diff := cmp.Diff(want, rec); diff != "" {
		t.Errorf("cycle record mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, 1, s.RenewalCount)
	assert.Len(t, s.Cycles, s.RenewalCount)
}

func TestState_DataBackfillsLastCycle(t *testing.T) {
	s := New()
	s.StartAuthCycle(10)
	s.EndAuth(20)
	s.CloseCycle()

	for i := 0; i < 3; i++ {
		s.RecordDataSent(int64(100+i), 28, true)
	}
	assert.Equal(t, 3, s.Cycles[0].DataMessages)

	s.StartAuthCycle(200)
	s.EndAuth(300)
	s.CloseCycle()
	s.RecordDataSent(400, 28, true)

	assert.Equal(t, 3, s.Cycles[0].DataMessages, "closed cycle keeps its count")
	assert.Equal(t, 1, s.Cycles[1].DataMessages)
	assert.Equal(t, 4, s.DataSent)
}

func TestState_DataBeforeAnyCycle(t *testing.T) {
	s := New()
	first := s.RecordDataSent(100, 0, false)
	assert.True(t, first)
	assert.Equal(t, 0, s.DataPayloadBytes, "payload size untouched without bytes")
	assert.Equal(t, 1, s.CycleDataCount)
	assert.Empty(t, s.Cycles)
}

func TestState_DataLatencyUsesFirstPairOnly(t *testing.T) {
	s := New()
	for i := 0; i < 5; i++ {
		s.RecordDataSent(int64(100000+i*10000), 28, true)
	}
	for i := 0; i < 5; i++ {
		s.RecordDataRecv(int64(130000 + i*50000))
	}

	assert.Equal(t, 5, s.DataSent)
	assert.Equal(t, 5, s.DataRecv)
	assert.Equal(t, int64(100000), s.FirstDataSent)
	assert.Equal(t, int64(130000), s.FirstDataRecv)
	assert.Equal(t, 30.0, s.DataLatencyMs())
}

func TestState_CompleteOnce(t *testing.T) {
	s := New()
	assert.True(t, s.Complete(OutcomeFailure, "auth_timeout"))
	assert.False(t, s.Complete(OutcomeSuccess, ""))

	assert.True(t, s.Completed)
	assert.Equal(t, OutcomeFailure, s.Outcome)
	assert.Equal(t, "auth_timeout", s.Reason)
}

func TestState_OpenCycle(t *testing.T) {
	s := New()
	_, ok := s.OpenCycle()
	assert.False(t, ok, "no round started")

	s.StartAuthCycle(1000)
	s.EndAuth(5000)
	s.CloseCycle()
	_, ok = s.OpenCycle()
	assert.False(t, ok, "round already closed")

	s.StartAuthCycle(9000)
	s.StartVerify(9500)
	s.EndVerify(10500)
	rec, ok := s.OpenCycle()
	require.True(t, ok)
	assert.True(t, rec.Partial)
	assert.Equal(t, 1, rec.Index)
	assert.Equal(t, 0.0, rec.AuthMs, "auth end belongs to the previous round")
	assert.Equal(t, 1.0, rec.VerifyMs)
	assert.Equal(t, 1, s.RenewalCount, "open round does not count as a renewal")
}

func TestState_SnapshotIsDeep(t *testing.T) {
	s := New()
	s.StartAuthCycle(1)
	s.CloseCycle()

	snap := s.Snapshot()
	s.RecordDataSent(10, 28, true)

	assert.Equal(t, 0, snap.Cycles[0].DataMessages)
	assert.Equal(t, 1, s.Cycles[0].DataMessages)
}

func TestState_Observe(t *testing.T) {
	s := New()
	s.Observe(500)
	s.Observe(400)
	assert.Equal(t, 2, s.Events)
	assert.Equal(t, int64(500), s.LastTimestamp)
}

func TestOutcome_RoundTrip(t *testing.T) {
	for _, o := range []Outcome{OutcomeRunning, OutcomeSuccess, OutcomeFailure} {
		got, err := ParseOutcome(o.String())
		require.NoError(t, err)
		assert.Equal(t, o, got)
	}
	_, err := ParseOutcome("aborted")
	assert.Error(t, err)
}
