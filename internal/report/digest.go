package report

import (
	"github.com/roach88/authmetrics/internal/ir"
)

// Digest identifies a summary by the values it reports. Floats enter the
// digest in their rendered form, so two summaries that print the same CSV
// row and cycle table share a digest.
func Digest(s Summary) (string, error) {
	m := make(map[string]any, len(CSVHeader)+1)
	for i, v := range s.Record() {
		m[CSVHeader[i]] = v
	}
	rows := s.CycleRows()
	cycles := make([]any, len(rows))
	for i, c := range rows {
		cycles[i] = map[string]any{
			"index":   c.Index,
			"auth":    ms(c.AuthMs),
			"verify":  ms(c.VerifyMs),
			"session": ms(c.SessionMs),
			"data":    c.DataMessages,
			"partial": c.Partial,
		}
	}
	m["cycles"] = cycles
	return ir.Digest(ir.DomainSummary, m)
}
