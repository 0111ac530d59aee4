package classify

import (
	"fmt"
	"regexp"
	"sort"

	"github.com/roach88/authmetrics/internal/ir"
)

var (
	reTotalPayload    = regexp.MustCompile(`Total payload: (\d+) bytes`)
	reBaselinePayload = regexp.MustCompile(`Total Baseline Payload: (\d+) bytes`)
	reEncrypted       = regexp.MustCompile(`encrypted \((\d+) bytes\)`)
)

// DefaultKEMMessageBytes is the data payload assumed for a baseline
// "Executing KEM AES-128-CTR" line, which does not print its size.
const DefaultKEMMessageBytes = 28

func rule(kind ir.EventKind, contains ...string) ir.MarkerRule {
	return ir.MarkerRule{Kind: kind, Contains: contains}
}

func amortizedGCM() ir.Dialect {
	return ir.Dialect{
		Name: string(ir.VariantAmortizedGCM),
		Rules: []ir.MarkerRule{
			rule(ir.KindKeygenStart, "[Phase 1] Generating Ring-LWE keys"),
			rule(ir.KindKeygenEnd, "Ring-LWE key generation successful"),
			rule(ir.KindAuthCycleStart, "[Phase 2] Starting Ring Signature Authentication"),
			rule(ir.KindSignComplete, "Ring signature generated successfully"),
			{Kind: ir.KindPayloadSizeReported, Contains: []string{"Total payload:"}, Pattern: reTotalPayload},
			rule(ir.KindFragmentSent, "Sending Fragment"),
			rule(ir.KindVerifyStart, "Reassembly complete. Verifying signature"),
			rule(ir.KindVerifyEnd, "Ring signature verified: SUCCESS"),
			rule(ir.KindSessionSetupStart, "Decoding LDPC syndrome"),
			rule(ir.KindSessionSetupEnd, "ACK sent! Session established"),
			rule(ir.KindDataMessageDecrypted, "DECRYPTED MESSAGE:"),
			{Kind: ir.KindDataMessageEncrypted, AllOf: []string{"Message", "encrypted"}, Pattern: reEncrypted},
			rule(ir.KindAmortizationThresholdReached, "AMORTIZATION THRESHOLD REACHED"),
			rule(ir.KindAuthTimeout, "Authentication timeout!"),
		},
	}
}

func basepaperAmortized() ir.Dialect {
	return ir.Dialect{
		Name: string(ir.VariantBasepaper),
		Rules: []ir.MarkerRule{
			rule(ir.KindKeygenStart, "[Phase 1] Generating Ring-LWE keys"),
			rule(ir.KindKeygenEnd, "Ring-LWE key generation successful"),
			rule(ir.KindAuthCycleStart, "[Phase 2] Starting Ring Signature Authentication"),
			rule(ir.KindSignComplete, "Ring signature generated successfully"),
			{Kind: ir.KindPayloadSizeReported, Contains: []string{"Total payload:"}, Pattern: reTotalPayload},
			rule(ir.KindFragmentSent, "Sending Fragment"),
			rule(ir.KindVerifyStart, "Reassembly complete. Verifying signature"),
			rule(ir.KindVerifyEnd, "Ring signature verified: SUCCESS"),
			rule(ir.KindSessionSetupStart, "Decoding LDPC syndrome"),
			rule(ir.KindSessionSetupEnd, "Session created"),
			rule(ir.KindDataMessageDecrypted, "Decrypted:"),
			{Kind: ir.KindDataMessageEncrypted, Contains: []string{"encrypted ("}, Pattern: reEncrypted},
			rule(ir.KindAuthTimeout, "Authentication timeout!"),
		},
	}
}

// unamortizedBaseline accepts both the baseline firmware's markers and the
// amortized spellings it was derived from. "Total Baseline Payload" reports
// the handshake size only; data messages are counted from the KEM lines.
func unamortizedBaseline() ir.Dialect {
	return ir.Dialect{
		Name: string(ir.VariantBaseline),
		Rules: []ir.MarkerRule{
			rule(ir.KindKeygenStart, "1. Generating Ring-LWE keys", "[Phase 1] Generating Ring-LWE keys"),
			rule(ir.KindKeygenEnd, "Ring-LWE key generation: SUCCESS", "Ring-LWE key generation successful"),
			rule(ir.KindAuthCycleStart, "Generating ring signature", "[Phase 2] Starting Ring Signature Authentication"),
			rule(ir.KindSignComplete, "Ring signature generated successfully"),
			{Kind: ir.KindPayloadSizeReported, Contains: []string{"Total Baseline Payload:"}, Pattern: reBaselinePayload},
			{Kind: ir.KindPayloadSizeReported, Contains: []string{"Total payload:"}, Pattern: reTotalPayload},
			rule(ir.KindFragmentSent, "Sending Fragment"),
			rule(ir.KindVerifyStart, "Reassembly complete. Verifying baseline payload", "Reassembly complete. Verifying signature"),
			rule(ir.KindVerifyEnd, "Ring signature verified: SUCCESS"),
			rule(ir.KindSessionSetupStart, "Decoding LDPC syndrome"),
			rule(ir.KindSessionSetupEnd, "Running KEM AES-128-CTR Decryption", "Session created"),
			rule(ir.KindDataMessageDecrypted, "*** BASELINE NOT AMORTIZED", "Decrypted:"),
			{Kind: ir.KindDataMessageEncrypted, Contains: []string{"Executing KEM AES-128-CTR"}, Pattern: reEncrypted, DefaultBytes: DefaultKEMMessageBytes},
			{Kind: ir.KindDataMessageEncrypted, Contains: []string{"encrypted ("}, Pattern: reEncrypted},
			rule(ir.KindAuthTimeout, "Authentication timeout!"),
		},
	}
}

var builtins = map[string]func() ir.Dialect{
	string(ir.VariantAmortizedGCM): amortizedGCM,
	string(ir.VariantBasepaper):    basepaperAmortized,
	string(ir.VariantBaseline):     unamortizedBaseline,
}

// Builtin returns a fresh copy of a built-in dialect.
func Builtin(name string) (ir.Dialect, error) {
	fn, ok := builtins[name]
	if !ok {
		return ir.Dialect{}, fmt.Errorf("unknown dialect %q (want one of %v)", name, Builtins())
	}
	return fn(), nil
}

// Builtins returns the built-in dialect names in sorted order.
func Builtins() []string {
	names := make([]string, 0, len(builtins))
	for name := range builtins {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
