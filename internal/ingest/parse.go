package ingest

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/roach88/authmetrics/internal/ir"
)

// ErrSkip is returned by Parse for blank, header and banner lines.
var ErrSkip = errors.New("skip line")

// ParseError describes a line that is neither an event nor skippable.
type ParseError struct {
	Line    int // 1-based; 0 when unknown
	Text    string
	Message string
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("line %d: %s: %q", e.Line, e.Message, e.Text)
	}
	return fmt.Sprintf("%s: %q", e.Message, e.Text)
}

// IsParseError reports whether err is a *ParseError.
func IsParseError(err error) bool {
	var pe *ParseError
	return errors.As(err, &pe)
}

// Parse converts one line into an event. The message text is kept
// verbatim apart from a trailing carriage return.
func Parse(line string) (ir.Event, error) {
	line = strings.TrimRight(line, "\r\n")
	trimmed := strings.TrimSpace(line)
	if trimmed == "" || isHeader(trimmed) {
		return ir.Event{}, ErrSkip
	}

	if strings.Contains(line, "\t") {
		parts := strings.SplitN(line, "\t", 3)
		if len(parts) == 3 {
			return build(parts[0], strings.TrimPrefix(parts[1], "ID:"), parts[2], line)
		}
	}

	parts := strings.SplitN(line, ":", 3)
	if len(parts) == 3 {
		return build(parts[0], parts[1], parts[2], line)
	}

	return ir.Event{}, &ParseError{Text: line, Message: "unrecognized line form"}
}

func build(ts, id, msg, line string) (ir.Event, error) {
	t, err := strconv.ParseInt(strings.TrimSpace(ts), 10, 64)
	if err != nil || t < 0 {
		return ir.Event{}, &ParseError{Text: line, Message: "invalid timestamp"}
	}
	n, err := strconv.Atoi(strings.TrimSpace(id))
	if err != nil {
		return ir.Event{}, &ParseError{Text: line, Message: "invalid source id"}
	}
	return ir.Event{Timestamp: t, SourceID: n, Text: msg}, nil
}

func isHeader(s string) bool {
	return strings.HasPrefix(s, "#") ||
		strings.HasPrefix(s, "===") ||
		strings.HasPrefix(s, ">>>") ||
		strings.HasPrefix(s, "Timestamp") ||
		strings.HasPrefix(s, "Time\t")
}
