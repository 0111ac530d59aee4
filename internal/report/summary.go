package report

import (
	"fmt"
	"math"
	"strings"

	"github.com/roach88/authmetrics/internal/ir"
	"github.com/roach88/authmetrics/internal/metrics"
)

// Synthetic field names, as listed in Summary.Synthetic and the CSV
// Synthetic column.
const (
	SyntheticKeygen      = "keygen"
	SyntheticAuth        = "auth"
	SyntheticVerify      = "verify"
	SyntheticSession     = "session"
	SyntheticAuthPayload = "auth_payload"
)

// Fixed component sizes of the authentication payload.
const (
	CommitmentBytes = 32 // SHA-256 commitment
	KeywordBytes    = 32
)

// Summary is the flat, report-ready view of one run. Every derived number
// of the text report and the CSV comes from here.
type Summary struct {
	Variant    ir.Variant `json:"variant"`
	Label      string     `json:"label"`
	PolyDegree int        `json:"n"`
	RingSize   int        `json:"ring_size"`
	LDPCRows   int        `json:"ldpc_rows"`
	LDPCCols   int        `json:"ldpc_cols"`

	KeygenMs      float64 `json:"keygen_ms"`
	SignMs        float64 `json:"sign_ms"`
	AuthMs        float64 `json:"auth_ms"`
	VerifyMs      float64 `json:"verify_ms"`
	SessionMs     float64 `json:"session_ms"`
	DataLatencyMs float64 `json:"data_latency_ms"`

	AuthPayloadBytes      int `json:"auth_payload_bytes"`
	AuthFragments         int `json:"auth_fragments"`
	FragmentOverheadBytes int `json:"fragment_overhead_bytes"`
	OverTheAirBytes       int `json:"over_the_air_bytes"`

	DataPayloadBytes  int `json:"data_payload_bytes"`
	DataSent          int `json:"data_sent"`
	DataRecv          int `json:"data_recv"`
	Renewals          int `json:"renewals"`
	MsgsPerSession    int `json:"msgs_per_session"`
	AEADOverheadBytes int `json:"aead_overhead_bytes"`

	// AuthOverheadPct is the authentication share of all bytes sent, in
	// percent. Zero when no data was sent.
	AuthOverheadPct float64 `json:"auth_overhead_pct"`

	// BandwidthSavedBytes estimates the per-session saving over sending the
	// handshake with every message. -1 when no data was sent.
	BandwidthSavedBytes int `json:"bandwidth_saved_bytes"`

	Outcome metrics.Outcome `json:"outcome"`
	Reason  string          `json:"reason,omitempty"`

	// Synthetic names the fields that carry a substituted constant instead
	// of a measured value, in a fixed order.
	Synthetic []string `json:"synthetic"`

	// Cycles are the closed amortization cycles, one per renewal.
	Cycles []metrics.CycleRecord `json:"cycles"`

	// OpenCycle is the cycle still in progress when the run ended, if it
	// produced auth or verify timing. It is never a renewal.
	OpenCycle *metrics.CycleRecord `json:"open_cycle,omitempty"`
}

// CycleRows returns the rows of the cycle table: the closed cycles, then
// the open cycle when there is one.
func (s Summary) CycleRows() []metrics.CycleRecord {
	rows := make([]metrics.CycleRecord, 0, len(s.Cycles)+1)
	rows = append(rows, s.Cycles...)
	if s.OpenCycle != nil {
		rows = append(rows, *s.OpenCycle)
	}
	return rows
}

// IsSynthetic reports whether field was substituted.
func (s Summary) IsSynthetic(field string) bool {
	for _, f := range s.Synthetic {
		if f == field {
			return true
		}
	}
	return false
}

// SyntheticColumn is the CSV form of Synthetic: names joined by ';'.
func (s Summary) SyntheticColumn() string {
	return strings.Join(s.Synthetic, ";")
}

// Summarize derives the summary of st under profile p. It has no side
// effects and never fails: unset timers read as 0 (or their synthetic
// constant for a baseline profile that carries one).
func Summarize(st *metrics.State, p ir.Profile) Summary {
	s := Summary{
		Variant:           p.Variant,
		Label:             p.Label,
		PolyDegree:        p.Params.PolyDegree,
		RingSize:          p.Params.RingSize,
		LDPCRows:          p.Params.LDPCRows,
		LDPCCols:          p.Params.LDPCCols,
		SignMs:            st.Sign.ElapsedMs(),
		DataLatencyMs:     st.DataLatencyMs(),
		DataPayloadBytes:  st.DataPayloadBytes,
		DataSent:          st.DataSent,
		DataRecv:          st.DataRecv,
		Renewals:          st.RenewalCount,
		AEADOverheadBytes: p.AEADOverhead,
		Outcome:           st.Outcome,
		Reason:            st.Reason,
		Synthetic:         []string{},
	}

	var syn *ir.SyntheticDelays
	if p.Variant == ir.VariantBaseline {
		syn = p.Synthetic
	}
	s.KeygenMs = s.substitute(st.Keygen.ElapsedMs(), syn, SyntheticKeygen)
	s.AuthMs = s.substitute(st.Auth.ElapsedMs(), syn, SyntheticAuth)
	s.VerifyMs = s.substitute(st.Verify.ElapsedMs(), syn, SyntheticVerify)
	s.SessionMs = s.substitute(st.SessionSetup.ElapsedMs(), syn, SyntheticSession)

	s.AuthPayloadBytes = st.AuthPayloadBytes
	if s.AuthPayloadBytes == 0 && syn != nil && syn.AuthPayloadBytes > 0 {
		s.AuthPayloadBytes = syn.AuthPayloadBytes
		s.Synthetic = append(s.Synthetic, SyntheticAuthPayload)
	}

	s.AuthFragments = FragmentCount(st.AuthFragments, s.AuthPayloadBytes, p.FragmentPayloadSize)
	s.FragmentOverheadBytes = s.AuthFragments * p.FragmentHeaderOverhead
	s.OverTheAirBytes = s.AuthPayloadBytes + s.FragmentOverheadBytes

	s.MsgsPerSession = s.DataSent
	if s.Renewals > 0 {
		s.MsgsPerSession = s.DataSent / s.Renewals
	}

	dataTotal := s.DataSent * (s.DataPayloadBytes + p.DataHeaderOverhead)
	if dataTotal > 0 {
		s.AuthOverheadPct = float64(s.AuthPayloadBytes) / float64(s.AuthPayloadBytes+dataTotal) * 100.0
	}

	s.BandwidthSavedBytes = -1
	if s.DataSent > 0 {
		s.BandwidthSavedBytes = int(math.Round(float64((s.DataSent-1)*s.AuthPayloadBytes) / float64(s.DataSent)))
	}

	s.Cycles = make([]metrics.CycleRecord, len(st.Cycles))
	copy(s.Cycles, st.Cycles)
	if open, ok := st.OpenCycle(); ok && (open.AuthMs > 0 || open.VerifyMs > 0) {
		s.OpenCycle = &open
	}

	return s
}

func (s *Summary) substitute(measured float64, syn *ir.SyntheticDelays, field string) float64 {
	if measured != 0 || syn == nil {
		return measured
	}
	var v float64
	switch field {
	case SyntheticKeygen:
		v = syn.KeygenMs
	case SyntheticAuth:
		v = syn.AuthMs
	case SyntheticVerify:
		v = syn.VerifyMs
	case SyntheticSession:
		v = syn.SessionMs
	}
	if v == 0 {
		return measured
	}
	s.Synthetic = append(s.Synthetic, field)
	return v
}

// FragmentCount is the number of link-layer fragments of the
// authentication payload: the observed sender count when there is one,
// otherwise ceil(payload / fragmentSize).
func FragmentCount(observed, payloadBytes, fragmentSize int) int {
	if observed > 0 {
		return observed
	}
	if payloadBytes <= 0 || fragmentSize <= 0 {
		return 0
	}
	return (payloadBytes + fragmentSize - 1) / fragmentSize
}

// Component is one line of the authentication payload breakdown.
type Component struct {
	Name  string
	Bytes int
}

// PayloadBreakdown returns the expected size of each payload component for
// the profile's parameters: LDPC syndrome, public key, one vector per ring
// member, the w vector, commitment and keyword.
func PayloadBreakdown(params ir.Params) []Component {
	vec := params.PolyDegree * 4
	comps := []Component{
		{Name: "Syndrome (LDPC_ROWS/8)", Bytes: (params.LDPCRows + 7) / 8},
		{Name: "Public Key (n*4)", Bytes: vec},
	}
	for i := 0; i < params.RingSize; i++ {
		comps = append(comps, Component{Name: fmt.Sprintf("Sig.S[%d] (n*4)", i), Bytes: vec})
	}
	return append(comps,
		Component{Name: "Sig.w (n*4)", Bytes: vec},
		Component{Name: "Commitment (SHA256)", Bytes: CommitmentBytes},
		Component{Name: "Keyword", Bytes: KeywordBytes},
	)
}

// ExpectedPayloadBytes sums PayloadBreakdown.
func ExpectedPayloadBytes(params ir.Params) int {
	total := 0
	for _, c := range PayloadBreakdown(params) {
		total += c.Bytes
	}
	return total
}
