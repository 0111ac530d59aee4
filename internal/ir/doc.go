// Package ir provides the shared data model for authmetrics.
//
// This package contains type definitions only. All other internal packages
// import ir; ir imports nothing internal. This keeps the event model, the
// variant profiles and the marker dialects at the bottom of the dependency
// graph so the classifier, engine, report and store can all agree on them.
//
// Key design constraints:
//   - Timestamps are simulator microseconds (int64), never wall-clock time
//   - Events are immutable once produced by ingestion
//   - EventKind is a closed enumeration; unknown text is KindUnclassified
//   - Digests use canonical JSON (sorted keys, NFC strings, no floats)
package ir
