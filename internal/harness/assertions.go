package harness

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/roach88/authmetrics/internal/report"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string   // Assertion type for categorization
	Expected string   // Human-readable expected outcome
	Actual   string   // Human-readable actual outcome
	Notes    []string // Inline notes for context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Notes) > 0 {
		fmt.Fprintf(&buf, "\nNotes:\n")
		for i, note := range e.Notes {
			fmt.Fprintf(&buf, "  [%d] %s\n", i+1, note)
		}
	}

	return buf.String()
}

// assertOutcome compares the CSV outcome column. An expected value without
// a reason matches the outcome alone.
func assertOutcome(r *Result, a Assertion) error {
	actual := report.OutcomeColumn(r.Summary)
	if !strings.Contains(a.Outcome, ":") {
		actual = r.Summary.Outcome.String()
	}
	if actual == a.Outcome {
		return nil
	}
	return &AssertionError{
		Type:     AssertOutcome,
		Expected: a.Outcome,
		Actual:   report.OutcomeColumn(r.Summary),
		Notes:    r.Notes,
	}
}

// assertMetric looks the column up in the horizontal CSV row first, then
// in the vertical metric block.
func assertMetric(r *Result, a Assertion) error {
	actual, ok := MetricValue(r.Summary, a.Column)
	if !ok {
		return &AssertionError{
			Type:     AssertMetric,
			Expected: fmt.Sprintf("%s = %s", a.Column, a.Value),
			Actual:   "no such column",
		}
	}
	if actual == a.Value {
		return nil
	}
	return &AssertionError{
		Type:     AssertMetric,
		Expected: fmt.Sprintf("%s = %s", a.Column, a.Value),
		Actual:   fmt.Sprintf("%s = %s", a.Column, actual),
	}
}

// MetricValue returns the rendered value of a CSV column or vertical
// metric for s.
func MetricValue(s report.Summary, column string) (string, bool) {
	record := s.Record()
	for i, h := range report.CSVHeader {
		if h == column {
			return record[i], true
		}
	}
	for _, row := range report.MetricRows(s) {
		if row[0] == column {
			return row[1], true
		}
	}
	return "", false
}

func assertCycleCount(r *Result, a Assertion) error {
	if len(r.Summary.Cycles) == a.Count {
		return nil
	}
	return &AssertionError{
		Type:     AssertCycleCount,
		Expected: strconv.Itoa(a.Count) + " cycles",
		Actual:   strconv.Itoa(len(r.Summary.Cycles)) + " cycles",
		Notes:    r.Notes,
	}
}

func assertNoteContains(r *Result, a Assertion) error {
	for _, note := range r.Notes {
		if strings.Contains(note, a.Contains) {
			return nil
		}
	}
	return &AssertionError{
		Type:     AssertNoteContains,
		Expected: fmt.Sprintf("a note containing %q", a.Contains),
		Actual:   fmt.Sprintf("not found in %d notes", len(r.Notes)),
		Notes:    r.Notes,
	}
}

func assertTranscriptContains(r *Result, a Assertion) error {
	if strings.Contains(r.Transcript, a.Contains) {
		return nil
	}
	return &AssertionError{
		Type:     AssertTranscriptContains,
		Expected: fmt.Sprintf("transcript containing %q", a.Contains),
		Actual:   fmt.Sprintf("not found in %d bytes", len(r.Transcript)),
	}
}

// EvaluateAssertions runs all assertions against the result.
// Returns a list of error messages for failed assertions.
// All assertions are evaluated (not fail-fast) to show all failures.
func EvaluateAssertions(r *Result, assertions []Assertion) []string {
	var errs []string

	for i, a := range assertions {
		var err error

		switch a.Type {
		case AssertOutcome:
			err = assertOutcome(r, a)
		case AssertMetric:
			err = assertMetric(r, a)
		case AssertCycleCount:
			err = assertCycleCount(r, a)
		case AssertNoteContains:
			err = assertNoteContains(r, a)
		case AssertTranscriptContains:
			err = assertTranscriptContains(r, a)
		default:
			err = fmt.Errorf("unknown assertion type: %s", a.Type)
		}

		if err != nil {
			errs = append(errs, fmt.Sprintf("assertion %d (%s): %v", i, a.Type, err))
		}
	}

	return errs
}
