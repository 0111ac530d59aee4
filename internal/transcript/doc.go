// Package transcript writes the raw, append-only run transcript.
//
// A Writer is an engine.Observer: every line handed to the engine is
// written as "timestamp\tsourceId\tmessage", progress notes are written
// inline, and when the run completes the failure annotation (if any) and
// the final report follow. Writing is best effort. A failed write is
// logged and counted and never stops the run.
package transcript
