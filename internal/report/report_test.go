package report

import (
	"bytes"
	"encoding/csv"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/authmetrics/internal/ir"
	"github.com/roach88/authmetrics/internal/metrics"
)

// gcmState builds one closed amortized cycle followed by five data
// messages: keygen 50ms, sign 10ms, auth 20ms, verify 3ms, session 5ms.
func gcmState() *metrics.State {
	s := metrics.New()
	s.StartKeygen(1_000)
	s.EndKeygen(51_000)
	s.StartAuthCycle(100_000)
	s.CompleteSign(110_000)
	s.ReportAuthPayload(2637)
	s.StartVerify(112_000)
	s.EndVerify(115_000)
	s.StartSessionSetup(115_000)
	s.EndSessionSetup(120_000)
	s.EndAuth(120_000)
	s.CloseCycle()
	for i := 0; i < 5; i++ {
		s.RecordDataSent(int64(130_000+i*10_000), 28, true)
	}
	for i := 0; i < 5; i++ {
		s.RecordDataRecv(int64(160_000 + i*10_000))
	}
	s.Complete(metrics.OutcomeSuccess, "")
	return s
}

func TestSummarize_AmortizedGCM(t *testing.T) {
	p := ir.MustProfile(ir.VariantAmortizedGCM)
	s := Summarize(gcmState(), p)

	assert.Equal(t, "AES256GCM_Amortized", s.Label)
	assert.Equal(t, 50.0, s.KeygenMs)
	assert.Equal(t, 10.0, s.SignMs)
	assert.Equal(t, 20.0, s.AuthMs)
	assert.Equal(t, 3.0, s.VerifyMs)
	assert.Equal(t, 5.0, s.SessionMs)
	assert.Equal(t, 30.0, s.DataLatencyMs)

	assert.Equal(t, 2637, s.AuthPayloadBytes)
	assert.Equal(t, 42, s.AuthFragments, "ceil(2637/64) without observed fragments")
	assert.Equal(t, 42*9, s.FragmentOverheadBytes)
	assert.Equal(t, 2637+42*9, s.OverTheAirBytes)

	assert.Equal(t, 5, s.MsgsPerSession)
	assert.Equal(t, 2110, s.BandwidthSavedBytes, "round(4*2637/5)")
	assert.InDelta(t, 2637.0/(2637.0+5*43.0)*100.0, s.AuthOverheadPct, 1e-9)
	assert.Empty(t, s.Synthetic)

	want := []metrics.CycleRecord{{Index: 0, AuthMs: 20, VerifyMs: 3, SessionMs: 5, DataMessages: 5}}
	if diff := cmp.Diff(want, s.Cycles); diff != "" {
		t.Errorf("cycles mismatch (-want +got):\n%s", diff)
	}
}

func TestSummarize_ObservedFragmentsWin(t *testing.T) {
	st := gcmState()
	st.CountFragment()
	st.CountFragment()
	s := Summarize(st, ir.MustProfile(ir.VariantAmortizedGCM))
	assert.Equal(t, 2, s.AuthFragments)
}

func TestSummarize_BaselineSynthetic(t *testing.T) {
	st := metrics.New()
	st.StartKeygen(1_000)
	st.EndKeygen(1_000)
	st.RecordDataSent(100_000, 28, true)
	st.RecordDataRecv(190_000)

	s := Summarize(st, ir.MustProfile(ir.VariantBaseline))
	assert.Equal(t, 214.5, s.KeygenMs)
	assert.Equal(t, 1985.4, s.AuthMs)
	assert.Equal(t, 453.2, s.VerifyMs)
	assert.Equal(t, 0.5, s.SessionMs)
	assert.Equal(t, 2682, s.AuthPayloadBytes)
	assert.Equal(t,
		[]string{SyntheticKeygen, SyntheticAuth, SyntheticVerify, SyntheticSession, SyntheticAuthPayload},
		s.Synthetic)
	assert.Equal(t, "keygen;auth;verify;session;auth_payload", s.SyntheticColumn())

	// Same zero keygen under an amortized profile stays zero.
	gcm := Summarize(st, ir.MustProfile(ir.VariantAmortizedGCM))
	assert.Equal(t, 0.0, gcm.KeygenMs)
	assert.Empty(t, gcm.Synthetic)
}

func TestSummarize_SyntheticIgnoredOffBaseline(t *testing.T) {
	st := metrics.New()
	st.StartKeygen(1_000)
	st.EndKeygen(1_000)

	p := ir.MustProfile(ir.VariantAmortizedGCM)
	delays := ir.BaselineSyntheticDelays
	p.Synthetic = &delays

	s := Summarize(st, p)
	assert.Equal(t, 0.0, s.KeygenMs)
	assert.Equal(t, 0.0, s.AuthMs)
	assert.Equal(t, 0, s.AuthPayloadBytes)
	assert.Empty(t, s.Synthetic)
}

func TestSummarize_MeasuredBeatsSynthetic(t *testing.T) {
	st := metrics.New()
	st.StartKeygen(1_000)
	st.EndKeygen(3_000)
	st.ReportAuthPayload(8429)

	s := Summarize(st, ir.MustProfile(ir.VariantBaseline))
	assert.Equal(t, 2.0, s.KeygenMs)
	assert.Equal(t, 8429, s.AuthPayloadBytes)
	assert.False(t, s.IsSynthetic(SyntheticKeygen))
	assert.False(t, s.IsSynthetic(SyntheticAuthPayload))
	assert.True(t, s.IsSynthetic(SyntheticAuth))
}

func TestSummarize_EmptyState(t *testing.T) {
	s := Summarize(metrics.New(), ir.MustProfile(ir.VariantBasepaper))
	assert.Equal(t, 0.0, s.KeygenMs)
	assert.Equal(t, 0, s.AuthFragments)
	assert.Equal(t, -1, s.BandwidthSavedBytes)
	assert.Equal(t, 0.0, s.AuthOverheadPct)
	assert.Empty(t, s.Cycles)
}

func TestSummarize_TimeoutMidCycle(t *testing.T) {
	st := gcmState()
	st.Completed = false
	st.StartAuthCycle(300_000)
	st.CompleteSign(308_000)
	st.StartVerify(310_000)
	st.EndVerify(314_000)
	st.Complete(metrics.OutcomeFailure, "auth_timeout")

	s := Summarize(st, ir.MustProfile(ir.VariantAmortizedGCM))
	assert.Equal(t, 1, s.Renewals)
	assert.Len(t, s.Cycles, s.Renewals, "only closed cycles are renewals")

	require.NotNil(t, s.OpenCycle)
	assert.True(t, s.OpenCycle.Partial)
	assert.Equal(t, 1, s.OpenCycle.Index)
	assert.Equal(t, 4.0, s.OpenCycle.VerifyMs)

	rows := s.CycleRows()
	require.Len(t, rows, 2)
	assert.Equal(t, *s.OpenCycle, rows[1])
	assert.Contains(t, RenderText(s, ir.MustProfile(ir.VariantAmortizedGCM)), "2 (partial)")
}

func TestSummarize_OpenCycleWithoutTiming(t *testing.T) {
	st := gcmState()
	st.StartAuthCycle(300_000)

	s := Summarize(st, ir.MustProfile(ir.VariantAmortizedGCM))
	assert.Nil(t, s.OpenCycle)
	assert.Len(t, s.CycleRows(), 1)
}

func TestDigest_CoversOpenCycle(t *testing.T) {
	p := ir.MustProfile(ir.VariantAmortizedGCM)
	closed, err := Digest(Summarize(gcmState(), p))
	require.NoError(t, err)

	st := gcmState()
	st.StartAuthCycle(300_000)
	st.StartVerify(310_000)
	st.EndVerify(314_000)
	open, err := Digest(Summarize(st, p))
	require.NoError(t, err)
	assert.NotEqual(t, closed, open)
}

func TestFragmentCount(t *testing.T) {
	tests := []struct {
		observed, payload, size, want int
	}{
		{0, 2637, 64, 42},
		{0, 64, 64, 1},
		{0, 65, 64, 2},
		{0, 0, 64, 0},
		{0, 100, 0, 0},
		{7, 2637, 64, 7},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FragmentCount(tt.observed, tt.payload, tt.size),
			"observed=%d payload=%d size=%d", tt.observed, tt.payload, tt.size)
	}
}

func TestExpectedPayloadBytes(t *testing.T) {
	assert.Equal(t, 2637, ExpectedPayloadBytes(ir.Params{PolyDegree: 128, RingSize: 3, LDPCRows: 102}))

	comps := PayloadBreakdown(ir.Params{PolyDegree: 128, RingSize: 3, LDPCRows: 102})
	require.Len(t, comps, 8)
	assert.Equal(t, 13, comps[0].Bytes)
	assert.Equal(t, "Sig.S[2] (n*4)", comps[4].Name)
}

func TestRenderText_Sections(t *testing.T) {
	p := ir.MustProfile(ir.VariantAmortizedGCM)
	txt, _ := Render(gcmState(), p)

	for _, sec := range []string{"[A]", "[B]", "[C]", "[D]", "[E]", "[F]", "[G]", "[H]", "[I]"} {
		assert.Contains(t, txt, sec)
	}
	assert.Contains(t, txt, "50.000 ms")
	assert.Contains(t, txt, "2637 bytes")
	assert.Contains(t, txt, "Expected Total")
	assert.Contains(t, txt, "RESULT: SUCCESS")
	assert.NotContains(t, txt, "(synthetic)")
}

func TestRenderText_BaselineMarksSynthetic(t *testing.T) {
	txt, _ := Render(metrics.New(), ir.MustProfile(ir.VariantBaseline))
	assert.Contains(t, txt, "214.500 ms (synthetic)")
	assert.Contains(t, txt, "2682 bytes (synthetic)")
	assert.Contains(t, txt, "RESULT: INCOMPLETE")
}

func TestRenderText_FailureBanner(t *testing.T) {
	st := gcmState()
	st.Completed = false
	st.Complete(metrics.OutcomeFailure, "auth_timeout")
	txt, _ := Render(st, ir.MustProfile(ir.VariantAmortizedGCM))
	assert.Contains(t, txt, "RESULT: FAILURE (auth_timeout)")
}

func TestCycleTable_PartialLabel(t *testing.T) {
	out := CycleTable([]metrics.CycleRecord{
		{Index: 0, AuthMs: 20, VerifyMs: 3, SessionMs: 5, DataMessages: 20},
		{Index: 1, AuthMs: 12.3, Partial: true},
	})
	assert.Contains(t, out, "20.0")
	assert.Contains(t, out, "12.3")
	assert.Contains(t, out, "2 (partial)")
}

func TestRenderCSV(t *testing.T) {
	_, out := Render(gcmState(), ir.MustProfile(ir.VariantAmortizedGCM))

	blocks := strings.SplitN(out, "\n\n", 2)
	require.Len(t, blocks, 2)

	metricsRows, err := csv.NewReader(strings.NewReader(blocks[0])).ReadAll()
	require.NoError(t, err)
	assert.Equal(t, MetricHeader, metricsRows[0])
	assert.Equal(t, []string{"KeyGen_Delay", "50.000", "ms", "Ring-LWE key generation"}, metricsRows[1])

	row, err := csv.NewReader(strings.NewReader(blocks[1])).ReadAll()
	require.NoError(t, err)
	require.Len(t, row, 2)
	assert.Equal(t,
		"Variant,n,N,KeyGen_ms,Sign_ms,Auth_ms,Verify_ms,Session_ms,DataLatency_ms,AuthPayload_B,AuthFragments,DataSent,DataRecv,Renewals,AEAD_Overhead_B,Outcome,Synthetic",
		strings.Join(row[0], ","))
	assert.Equal(t,
		"AES256GCM_Amortized,512,3,50.000,10.000,20.000,3.000,5.000,30.000,2637,42,5,5,1,28,success,",
		strings.Join(row[1], ","))
}

func TestWriteCSV(t *testing.T) {
	a := Summarize(gcmState(), ir.MustProfile(ir.VariantAmortizedGCM))
	b := Summarize(metrics.New(), ir.MustProfile(ir.VariantBaseline))

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, []Summary{a, b}))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "Unamortized_Baseline", rows[2][0])
	assert.Equal(t, "214.500", rows[2][3])
	assert.Equal(t, "running", rows[2][15])
}

func TestRender_NoSideEffects(t *testing.T) {
	st := gcmState()
	before := st.Snapshot()
	Render(st, ir.MustProfile(ir.VariantAmortizedGCM))
	assert.Equal(t, before, st)
}

func TestDigest(t *testing.T) {
	p := ir.MustProfile(ir.VariantAmortizedGCM)
	a, err := Digest(Summarize(gcmState(), p))
	require.NoError(t, err)
	b, err := Digest(Summarize(gcmState(), p))
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Len(t, a, 64)

	st := gcmState()
	st.RecordDataRecv(999_000)
	c, err := Digest(Summarize(st, p))
	require.NoError(t, err)
	assert.NotEqual(t, a, c)
}
