package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/roach88/authmetrics/internal/ir"
	"github.com/roach88/authmetrics/internal/report"
)

// marshalJSON encodes v as compact JSON TEXT without HTML escaping, so
// marker text such as "->" and "<" is stored verbatim.
func marshalJSON(v any) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return "", err
	}
	// Encoder adds a trailing newline, remove it
	return strings.TrimSpace(buf.String()), nil
}

func marshalProfile(p ir.Profile) (string, error) {
	data, err := marshalJSON(p)
	if err != nil {
		return "", fmt.Errorf("marshal profile: %w", err)
	}
	return data, nil
}

func marshalSummary(s report.Summary) (string, error) {
	data, err := marshalJSON(s)
	if err != nil {
		return "", fmt.Errorf("marshal summary: %w", err)
	}
	return data, nil
}

func unmarshalProfile(data string) (ir.Profile, error) {
	var p ir.Profile
	if err := json.Unmarshal([]byte(data), &p); err != nil {
		return ir.Profile{}, fmt.Errorf("unmarshal profile: %w", err)
	}
	return p, nil
}

func unmarshalSummary(data string) (report.Summary, error) {
	var s report.Summary
	if err := json.Unmarshal([]byte(data), &s); err != nil {
		return report.Summary{}, fmt.Errorf("unmarshal summary: %w", err)
	}
	if s.Synthetic == nil {
		s.Synthetic = []string{}
	}
	return s, nil
}
