// Package harness runs conformance scenarios against the metrics engine.
//
// A scenario feeds a fixed set of log lines through the classifier, the
// engine and the transcript writer exactly as the CLI does, then checks the
// resulting summary, notes and transcript.
//
// # Scenario Format
//
// Scenarios are YAML files:
//
//	name: gcm_single_cycle
//	description: "One amortized handshake followed by five messages"
//	profile: amortized-gcm
//	overrides:
//	  thresholds: {min_received: 5, min_renewals: 1}
//	lines:
//	  - '1000:1:[Phase 1] Generating Ring-LWE keys...'
//	  - '51000:1:Ring-LWE key generation successful'
//	assertions:
//	  - type: outcome
//	    outcome: success
//	  - type: metric
//	    column: Auth_ms
//	    value: "20.000"
//
// Lines use any form the ingest parser accepts. Instead of inline lines a
// scenario may name a log file; paths are relative to the scenario file.
// A dialect file replaces the profile's built-in marker set.
//
// # Assertion Types
//
//   - outcome: the CSV outcome column ("success", "failure:auth_timeout"),
//     or just the outcome when no reason is given
//   - metric: a CSV column or vertical metric equals a value
//   - cycle_count: the number of closed cycles; an open cycle is not counted
//   - note_contains: some inline note contains a substring
//   - transcript_contains: the rendered transcript contains a substring
//
// # Protocol Principles
//
// Every run is also checked against the protocol principles in
// principle.go: elapsed times are never negative, each renewal is one
// closed cycle, the fragment count follows from the payload size when the
// sender logged none, and the report is rendered exactly once.
//
// # Deterministic Testing
//
// Runs use a fixed run id (the scenario's run_id or a default) and discard
// logs, so identical scenarios produce identical transcripts and CSV rows
// for golden file comparison.
package harness
