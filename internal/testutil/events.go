package testutil

import (
	"fmt"
	"sort"
	"strings"

	"github.com/roach88/authmetrics/internal/ir"
)

// Node ids used by the fixtures.
const (
	SenderID  = 1
	GatewayID = 2
)

// Line builds one event.
func Line(t int64, id int, text string) ir.Event {
	return ir.Event{Timestamp: t, SourceID: id, Text: text}
}

// GCMKeygen returns the sender's key generation lines: start at t0, done
// 50ms later.
func GCMKeygen(t0 int64) []ir.Event {
	return []ir.Event{
		Line(t0, SenderID, "[Phase 1] Generating Ring-LWE keys..."),
		Line(t0+50_000, SenderID, "Ring-LWE key generation successful"),
	}
}

// GCMHandshake returns one amortized handshake starting at t0. Auth takes
// 20ms, verify 3ms and session setup 5ms; the sender reports a 2637 byte
// payload and sends fragments sender fragments.
func GCMHandshake(t0 int64, fragments int) []ir.Event {
	evs := []ir.Event{
		Line(t0, SenderID, "[Phase 2] Starting Ring Signature Authentication..."),
		Line(t0+10_000, SenderID, "Ring signature generated successfully"),
		Line(t0+11_000, SenderID, "Total payload: 2637 bytes"),
	}
	for i := 1; i <= fragments; i++ {
		evs = append(evs, Line(t0+11_000, SenderID, fmt.Sprintf("Sending Fragment %d/%d", i, fragments)))
	}
	return append(evs,
		Line(t0+12_000, GatewayID, "Reassembly complete. Verifying signature..."),
		Line(t0+15_000, GatewayID, "Ring signature verified: SUCCESS"),
		Line(t0+15_000, GatewayID, "Decoding LDPC syndrome..."),
		Line(t0+20_000, GatewayID, "ACK sent! Session established"),
	)
}

// GCMData returns n data messages starting at t0, one every 10ms, each
// decrypted 30ms after it was sent. Lines are in timestamp order.
func GCMData(t0 int64, n int) []ir.Event {
	var evs []ir.Event
	for i := 0; i < n; i++ {
		sent := t0 + int64(i)*10_000
		evs = append(evs,
			Line(sent, SenderID, fmt.Sprintf("Message %d encrypted (28 bytes)", i+1)),
			Line(sent+30_000, GatewayID, fmt.Sprintf("DECRYPTED MESSAGE: hello #%d", i+1)),
		)
	}
	sort.SliceStable(evs, func(i, j int) bool { return evs[i].Timestamp < evs[j].Timestamp })
	return evs
}

// GCMRun returns a complete successful amortized run: keygen, then cycles
// handshakes of 20 messages each, the last cycle carrying extra messages.
func GCMRun(cycles, extra int) []ir.Event {
	var evs []ir.Event
	evs = append(evs, GCMKeygen(1_000)...)
	t := int64(100_000)
	for c := 0; c < cycles; c++ {
		evs = append(evs, GCMHandshake(t, 0)...)
		n := ir.DefaultRenewalThreshold
		if c == cycles-1 {
			n += extra
		}
		evs = append(evs, GCMData(t+30_000, n)...)
		t += 30_000 + int64(n)*10_000 + 40_000
		if c < cycles-1 {
			evs = append(evs, Line(t-10_000, SenderID,
				fmt.Sprintf("AMORTIZATION THRESHOLD REACHED (%d msgs)", n)))
		}
	}
	return evs
}

// BaselineRun returns n unamortized handshakes, each carrying one KEM
// message. Every phase happens inside one tick, as the simulator logs it.
func BaselineRun(n int) []ir.Event {
	evs := []ir.Event{
		Line(1_000, GatewayID, "1. Generating Ring-LWE keys..."),
		Line(1_000, GatewayID, "   Ring-LWE key generation: SUCCESS"),
	}
	for i := 0; i < n; i++ {
		t := int64(100_000 + i*200_000)
		evs = append(evs,
			Line(t, SenderID, fmt.Sprintf("*** [BASELINE] GENERATING NEW CONSTANT-TIME HANDSHAKE #%d ***", i+1)),
			Line(t, SenderID, "Generating ring signature (N=3 members)..."),
			Line(t, SenderID, "Executing KEM AES-128-CTR Encrytion..."),
			Line(t, SenderID, "Total Baseline Payload: 2682 bytes (42 fragments)"),
			Line(t+90_000, GatewayID, "Reassembly complete. Verifying baseline payload..."),
			Line(t+90_000, GatewayID, "Ring signature verified: SUCCESS"),
			Line(t+90_000, GatewayID, "Decoding LDPC syndrome to recover session error vector..."),
			Line(t+90_000, GatewayID, "Running KEM AES-128-CTR Decryption..."),
			Line(t+90_000, GatewayID, fmt.Sprintf("*** BASELINE NOT AMORTIZED DECRYPTED DATA: hello #%d ***", i+1)),
		)
	}
	return evs
}

// Feed returns a closed, buffered channel holding evs in order.
func Feed(evs []ir.Event) <-chan ir.Event {
	ch := make(chan ir.Event, len(evs))
	for _, ev := range evs {
		ch <- ev
	}
	close(ch)
	return ch
}

// Transcript renders evs in the tab-separated transcript form, one per line.
func Transcript(evs []ir.Event) string {
	var b strings.Builder
	for _, ev := range evs {
		b.WriteString(ev.String())
		b.WriteByte('\n')
	}
	return b.String()
}
