// Package report turns a final metrics.State into the human-readable
// summary and the CSV block.
//
// Summarize derives every number once; RenderText and RenderCSV only
// format. Baseline runs substitute measured hardware constants for phases
// whose simulated duration is zero and mark them synthetic in both outputs.
package report
