package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content digests.
// Version suffix enables future algorithm migration.
const (
	DomainTranscript = "authmetrics/transcript/v1"
	DomainSummary    = "authmetrics/summary/v1"
)

// hashWithDomain computes SHA-256 with domain separation.
// Format: SHA256(domain + 0x00 + data)
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// Digest computes a domain-separated digest of v's canonical JSON.
func Digest(domain string, v any) (string, error) {
	canonical, err := MarshalCanonical(v)
	if err != nil {
		return "", fmt.Errorf("digest %s: %w", domain, err)
	}
	return hashWithDomain(domain, canonical), nil
}

// TranscriptDigest identifies an ordered event sequence. Two runs fed the
// same lines in the same order share a digest.
func TranscriptDigest(events []Event) (string, error) {
	list := make([]any, len(events))
	for i, ev := range events {
		list[i] = map[string]any{
			"t":    ev.Timestamp,
			"id":   ev.SourceID,
			"text": ev.Text,
		}
	}
	return Digest(DomainTranscript, list)
}
