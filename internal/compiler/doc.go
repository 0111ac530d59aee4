// Package compiler turns CUE dialect files into marker rule sets.
//
// A dialect file declares one or more dialects under the top-level
// "dialect" struct:
//
//	dialect: "gcm-lab": {
//		profile: "amortized-gcm"
//		rules: [
//			{kind: "KeygenStart", contains: ["[Phase 1] Generating Ring-LWE keys"]},
//			{kind: "PayloadSizeReported", contains: ["Total payload:"], pattern: "Total payload: (\\d+) bytes"},
//		]
//		thresholds: {min_received: 25, min_renewals: 2}
//	}
//
// Rule order is preserved; the classifier applies first-match-wins.
package compiler
