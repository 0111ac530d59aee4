package ir

import (
	"fmt"
	"regexp"
)

// Event is one line observed from the simulation.
// Produced by ingestion, consumed once by the engine.
type Event struct {
	Timestamp int64  `json:"timestamp"` // Simulator microseconds, non-negative
	SourceID  int    `json:"source_id"` // Mote / node id that printed the line
	Text      string `json:"text"`
}

// String renders the event in transcript form: timestamp, source id and text
// separated by tabs.
func (e Event) String() string {
	return fmt.Sprintf("%d\t%d\t%s", e.Timestamp, e.SourceID, e.Text)
}

// EventKind is the closed set of protocol markers the classifier recognizes.
type EventKind int

const (
	// KindUnclassified is any text that matches no marker. Always a no-op.
	KindUnclassified EventKind = iota
	KindKeygenStart
	KindKeygenEnd
	KindAuthCycleStart
	KindSignComplete
	KindPayloadSizeReported
	KindFragmentSent
	KindVerifyStart
	KindVerifyEnd
	KindSessionSetupStart
	KindSessionSetupEnd
	KindDataMessageEncrypted
	KindDataMessageDecrypted
	KindAmortizationThresholdReached
	KindAuthTimeout
)

var kindNames = [...]string{
	KindUnclassified:                 "Unclassified",
	KindKeygenStart:                  "KeygenStart",
	KindKeygenEnd:                    "KeygenEnd",
	KindAuthCycleStart:               "AuthCycleStart",
	KindSignComplete:                 "SignComplete",
	KindPayloadSizeReported:          "PayloadSizeReported",
	KindFragmentSent:                 "FragmentSent",
	KindVerifyStart:                  "VerifyStart",
	KindVerifyEnd:                    "VerifyEnd",
	KindSessionSetupStart:            "SessionSetupStart",
	KindSessionSetupEnd:              "SessionSetupEnd",
	KindDataMessageEncrypted:         "DataMessageEncrypted",
	KindDataMessageDecrypted:         "DataMessageDecrypted",
	KindAmortizationThresholdReached: "AmortizationThresholdReached",
	KindAuthTimeout:                  "AuthTimeout",
}

// KindAuthCycleEnd is the glossary alias for the session-established marker.
const KindAuthCycleEnd = KindSessionSetupEnd

// String returns the kind name as used in dialect files and scenarios.
func (k EventKind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return fmt.Sprintf("EventKind(%d)", int(k))
	}
	return kindNames[k]
}

// Valid reports whether k is a recognized marker kind.
// KindUnclassified is not valid as a rule target.
func (k EventKind) Valid() bool {
	return k > KindUnclassified && int(k) < len(kindNames)
}

// ParseEventKind resolves a kind name ("KeygenStart", "AuthCycleEnd", ...).
func ParseEventKind(name string) (EventKind, error) {
	if name == "AuthCycleEnd" {
		return KindAuthCycleEnd, nil
	}
	for i, n := range kindNames {
		if n == name {
			return EventKind(i), nil
		}
	}
	return KindUnclassified, fmt.Errorf("unknown event kind %q", name)
}

// AllKinds returns every recognized kind except KindUnclassified, in
// declaration order.
func AllKinds() []EventKind {
	kinds := make([]EventKind, 0, len(kindNames)-1)
	for i := 1; i < len(kindNames); i++ {
		kinds = append(kinds, EventKind(i))
	}
	return kinds
}

// Classification is the classifier's verdict for one line.
// Bytes is meaningful only when HasBytes is set: the payload size for
// PayloadSizeReported and DataMessageEncrypted, or the message count of
// AmortizationThresholdReached.
type Classification struct {
	Kind     EventKind `json:"kind"`
	Bytes    int       `json:"bytes,omitempty"`
	HasBytes bool      `json:"has_bytes,omitempty"`
}

// Unclassified is the zero classification.
var Unclassified = Classification{Kind: KindUnclassified}

// MarkerRule maps marker text to an EventKind.
//
// A rule matches when the text contains any of Contains and every entry of
// AllOf. If Pattern is set, its first capture group is parsed as the numeric
// payload; when the pattern does not match, DefaultBytes is used if non-zero.
type MarkerRule struct {
	Kind         EventKind      `json:"kind"`
	Contains     []string       `json:"contains"`
	AllOf        []string       `json:"all_of,omitempty"`
	Pattern      *regexp.Regexp `json:"-"`
	DefaultBytes int            `json:"default_bytes,omitempty"`
}

// Dialect is an ordered rule set. The first matching rule wins.
type Dialect struct {
	Name  string       `json:"name"`
	Rules []MarkerRule `json:"rules"`
}
