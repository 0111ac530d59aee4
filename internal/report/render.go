package report

import (
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/roach88/authmetrics/internal/ir"
	"github.com/roach88/authmetrics/internal/metrics"
)

const rule = "======================================================================"

// Render produces the human-readable report and the CSV block for a final
// state. It is a pure function of its inputs; callers decide where the
// output goes and make sure it is produced once per run.
func Render(st *metrics.State, p ir.Profile) (string, string) {
	s := Summarize(st, p)
	return RenderText(s, p), RenderCSV(s)
}

// RenderText formats the sectioned text report for s.
func RenderText(s Summary, p ir.Profile) string {
	var b strings.Builder

	fmt.Fprintln(&b, rule)
	fmt.Fprintf(&b, "  PROTOCOL METRICS SUMMARY: %s\n", s.Label)
	fmt.Fprintf(&b, "  variant=%s n=%d N=%d LDPC=%dx%d\n",
		s.Variant, s.PolyDegree, s.RingSize, s.LDPCRows, s.LDPCCols)
	fmt.Fprintln(&b, rule)

	section(&b, "A", "KEY GENERATION")
	phase(&b, "Ring-LWE KeyGen Delay", s.KeygenMs, s.IsSynthetic(SyntheticKeygen))

	section(&b, "B", "RING SIGNATURE GENERATION")
	phase(&b, "Ring Sign Delay", s.SignMs, false)

	section(&b, "C", "RING SIGNATURE VERIFICATION")
	phase(&b, "Ring Verify Delay", s.VerifyMs, s.IsSynthetic(SyntheticVerify))

	section(&b, "D", "END-TO-END AUTHENTICATION")
	phase(&b, "Auth E2E Delay ("+p.AuthCompletion.String()+")", s.AuthMs, s.IsSynthetic(SyntheticAuth))

	section(&b, "E", "COMMUNICATION OVERHEAD")
	writeBreakdown(&b, s, p)

	section(&b, "F", "SESSION SETUP")
	phase(&b, "Session Setup Delay", s.SessionMs, s.IsSynthetic(SyntheticSession))

	section(&b, "G", "DATA PHASE")
	fmt.Fprintf(&b, "  %-34s: %d bytes\n", "Data Payload Size", s.DataPayloadBytes)
	fmt.Fprintf(&b, "  %-34s: %d bytes\n", "AEAD Overhead per Packet", s.AEADOverheadBytes)
	fmt.Fprintf(&b, "  %-34s: %.3f ms\n", "E2E Data Latency (first message)", s.DataLatencyMs)
	fmt.Fprintf(&b, "  %-34s: %d\n", "Messages Sent", s.DataSent)
	fmt.Fprintf(&b, "  %-34s: %d\n", "Messages Decrypted", s.DataRecv)
	fmt.Fprintf(&b, "  %-34s: %.1f %%\n", "Auth Share of Bytes Sent", s.AuthOverheadPct)
	if s.BandwidthSavedBytes >= 0 {
		fmt.Fprintf(&b, "  %-34s: %d bytes/msg\n", "Bandwidth Saved (amortized)", s.BandwidthSavedBytes)
	} else {
		fmt.Fprintf(&b, "  %-34s: N/A\n", "Bandwidth Saved (amortized)")
	}

	section(&b, "H", "AMORTIZATION")
	fmt.Fprintf(&b, "  %-34s: %d\n", "Session Renewals", s.Renewals)
	fmt.Fprintf(&b, "  %-34s: %d\n", "Renewal Threshold (msgs)", p.Params.RenewalThreshold)
	fmt.Fprintf(&b, "  %-34s: %d\n", "Avg Messages per Session", s.MsgsPerSession)
	if rows := s.CycleRows(); len(rows) > 0 {
		b.WriteString(CycleTable(rows))
		b.WriteString("\n")
	}

	section(&b, "I", "COMPARISON")
	b.WriteString(ComparisonTable(s))
	b.WriteString("\n")

	fmt.Fprintln(&b, rule)
	fmt.Fprintf(&b, "  RESULT: %s\n", Banner(s.Outcome, s.Reason))
	fmt.Fprintln(&b, rule)

	return b.String()
}

// Banner is the one-line outcome shown at the end of the report.
func Banner(o metrics.Outcome, reason string) string {
	switch o {
	case metrics.OutcomeSuccess:
		return "SUCCESS"
	case metrics.OutcomeFailure:
		if reason == "" {
			return "FAILURE"
		}
		return "FAILURE (" + reason + ")"
	default:
		return "INCOMPLETE"
	}
}

// CycleTable renders the per-cycle breakdown with one decimal per phase.
// Partial cycles are labeled.
func CycleTable(cycles []metrics.CycleRecord) string {
	w := newTable()
	w.AppendHeader(table.Row{"Cycle", "Auth (ms)", "Verify (ms)", "Session (ms)", "Data Msgs"})
	for _, c := range cycles {
		label := fmt.Sprintf("%d", c.Index+1)
		if c.Partial {
			label += " (partial)"
		}
		w.AppendRow(table.Row{
			label,
			fmt.Sprintf("%.1f", c.AuthMs),
			fmt.Sprintf("%.1f", c.VerifyMs),
			fmt.Sprintf("%.1f", c.SessionMs),
			c.DataMessages,
		})
	}
	w.SetColumnConfigs(rightAligned(2, 3, 4, 5))
	return w.Render()
}

// ComparisonTable sets this run beside the measured unamortized baseline.
func ComparisonTable(s Summary) string {
	ref := ir.BaselineSyntheticDelays

	perMsg := s.AuthPayloadBytes
	if s.MsgsPerSession > 1 {
		perMsg = s.AuthPayloadBytes / s.MsgsPerSession
	}

	w := newTable()
	w.AppendHeader(table.Row{"Metric", s.Label, "Baseline (measured)"})
	w.AppendRows([]table.Row{
		{"KeyGen (ms)", ms(s.KeygenMs), ms(ref.KeygenMs)},
		{"Auth E2E (ms)", ms(s.AuthMs), ms(ref.AuthMs)},
		{"Verify (ms)", ms(s.VerifyMs), ms(ref.VerifyMs)},
		{"Session Setup (ms)", ms(s.SessionMs), ms(ref.SessionMs)},
		{"Auth Payload (B)", s.AuthPayloadBytes, ref.AuthPayloadBytes},
		{"Auth Bytes per Data Msg", perMsg, ref.AuthPayloadBytes},
		{"AEAD Overhead (B)", s.AEADOverheadBytes, ir.MustProfile(ir.VariantBaseline).AEADOverhead},
	})
	w.SetColumnConfigs(rightAligned(2, 3))
	return w.Render()
}

func writeBreakdown(b *strings.Builder, s Summary, p ir.Profile) {
	w := newTable()
	w.AppendHeader(table.Row{"Component", "Bytes"})
	for _, c := range PayloadBreakdown(p.Params) {
		w.AppendRow(table.Row{c.Name, c.Bytes})
	}
	w.AppendFooter(table.Row{"Expected Total", ExpectedPayloadBytes(p.Params)})
	w.SetColumnConfigs(rightAligned(2))
	b.WriteString(w.Render())
	b.WriteString("\n")

	payload := fmt.Sprintf("%d bytes", s.AuthPayloadBytes)
	if s.IsSynthetic(SyntheticAuthPayload) {
		payload += " (synthetic)"
	}
	fmt.Fprintf(b, "  %-34s: %s\n", "Reported Auth Payload", payload)
	fmt.Fprintf(b, "  %-34s: %d x %d B\n", "Fragments", s.AuthFragments, p.FragmentPayloadSize)
	fmt.Fprintf(b, "  %-34s: %d bytes\n", "Fragment Header Overhead", s.FragmentOverheadBytes)
	fmt.Fprintf(b, "  %-34s: %d bytes\n", "Total Over-the-Air", s.OverTheAirBytes)
}

func section(b *strings.Builder, letter, title string) {
	fmt.Fprintf(b, "\n[%s] %s\n", letter, title)
}

func phase(b *strings.Builder, name string, v float64, synthetic bool) {
	fmt.Fprintf(b, "  %-34s: %.3f ms", name, v)
	if synthetic {
		b.WriteString(" (synthetic)")
	}
	b.WriteString("\n")
}

func ms(v float64) string {
	return fmt.Sprintf("%.1f", v)
}

func newTable() table.Writer {
	w := table.NewWriter()
	w.SetStyle(table.StyleLight)
	return w
}

func rightAligned(cols ...int) []table.ColumnConfig {
	cfgs := make([]table.ColumnConfig, len(cols))
	for i, n := range cols {
		cfgs[i] = table.ColumnConfig{Number: n, Align: text.AlignRight}
	}
	return cfgs
}
