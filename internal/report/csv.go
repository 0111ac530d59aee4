package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// CSVHeader is the fixed header of the horizontal comparison row.
var CSVHeader = []string{
	"Variant",
	"n",
	"N",
	"KeyGen_ms",
	"Sign_ms",
	"Auth_ms",
	"Verify_ms",
	"Session_ms",
	"DataLatency_ms",
	"AuthPayload_B",
	"AuthFragments",
	"DataSent",
	"DataRecv",
	"Renewals",
	"AEAD_Overhead_B",
	"Outcome",
	"Synthetic",
}

// MetricHeader is the header of the vertical metric block.
var MetricHeader = []string{"Metric", "Value", "Unit", "Note"}

// Record returns s as one row under CSVHeader.
func (s Summary) Record() []string {
	return []string{
		s.Label,
		strconv.Itoa(s.PolyDegree),
		strconv.Itoa(s.RingSize),
		ff(s.KeygenMs),
		ff(s.SignMs),
		ff(s.AuthMs),
		ff(s.VerifyMs),
		ff(s.SessionMs),
		ff(s.DataLatencyMs),
		strconv.Itoa(s.AuthPayloadBytes),
		strconv.Itoa(s.AuthFragments),
		strconv.Itoa(s.DataSent),
		strconv.Itoa(s.DataRecv),
		strconv.Itoa(s.Renewals),
		strconv.Itoa(s.AEADOverheadBytes),
		OutcomeColumn(s),
		s.SyntheticColumn(),
	}
}

// OutcomeColumn is "success", "failure:<reason>" or "running".
func OutcomeColumn(s Summary) string {
	if s.Reason == "" {
		return s.Outcome.String()
	}
	return s.Outcome.String() + ":" + s.Reason
}

// MetricRows returns the vertical Metric,Value,Unit,Note block for s,
// without the header.
func MetricRows(s Summary) [][]string {
	note := func(base, field string) string {
		if s.IsSynthetic(field) {
			return base + " (synthetic)"
		}
		return base
	}
	return [][]string{
		{"KeyGen_Delay", ff(s.KeygenMs), "ms", note("Ring-LWE key generation", SyntheticKeygen)},
		{"RingSign_Delay", ff(s.SignMs), "ms", "ring signature generation"},
		{"RingVerify_Delay", ff(s.VerifyMs), "ms", note("ring signature verification", SyntheticVerify)},
		{"Auth_E2E_Delay", ff(s.AuthMs), "ms", note("end-to-end authentication", SyntheticAuth)},
		{"Session_Setup_Delay", ff(s.SessionMs), "ms", note("session key establishment", SyntheticSession)},
		{"E2E_Data_Latency", ff(s.DataLatencyMs), "ms", "first data message"},
		{"Auth_Payload", strconv.Itoa(s.AuthPayloadBytes), "bytes", note("ring signature handshake", SyntheticAuthPayload)},
		{"Auth_Fragments", strconv.Itoa(s.AuthFragments), "count", "link-layer fragments"},
		{"Fragment_Overhead", strconv.Itoa(s.FragmentOverheadBytes), "bytes", "fragment headers"},
		{"Over_The_Air", strconv.Itoa(s.OverTheAirBytes), "bytes", "payload plus fragment headers"},
		{"Data_Payload", strconv.Itoa(s.DataPayloadBytes), "bytes", "last encrypted message"},
		{"AEAD_Overhead", strconv.Itoa(s.AEADOverheadBytes), "bytes", "per data packet"},
		{"Data_Sent", strconv.Itoa(s.DataSent), "count", ""},
		{"Data_Recv", strconv.Itoa(s.DataRecv), "count", ""},
		{"Session_Renewals", strconv.Itoa(s.Renewals), "count", ""},
		{"Msgs_Per_Session", strconv.Itoa(s.MsgsPerSession), "count", ""},
		{"Auth_Overhead_Share", strconv.FormatFloat(s.AuthOverheadPct, 'f', 1, 64), "percent", ""},
		{"POLY_DEGREE", strconv.Itoa(s.PolyDegree), "n", ""},
		{"RING_SIZE", strconv.Itoa(s.RingSize), "N", ""},
		{"LDPC_ROWS", strconv.Itoa(s.LDPCRows), "rows", ""},
		{"LDPC_COLS", strconv.Itoa(s.LDPCCols), "cols", ""},
	}
}

// RenderCSV returns the metric block, a blank line, and the horizontal
// header and row for s.
func RenderCSV(s Summary) string {
	var b strings.Builder
	w := csv.NewWriter(&b)

	_ = w.Write(MetricHeader)
	_ = w.WriteAll(MetricRows(s))
	b.WriteString("\n")
	_ = w.Write(CSVHeader)
	_ = w.Write(s.Record())
	w.Flush()

	return b.String()
}

// WriteCSV writes CSVHeader followed by one row per summary.
func WriteCSV(out io.Writer, sums []Summary) error {
	w := csv.NewWriter(out)
	if err := w.Write(CSVHeader); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, s := range sums {
		if err := w.Write(s.Record()); err != nil {
			return fmt.Errorf("write row %s: %w", s.Label, err)
		}
	}
	w.Flush()
	return w.Error()
}

func ff(v float64) string {
	return strconv.FormatFloat(v, 'f', 3, 64)
}
