package ingest

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/authmetrics/internal/ir"
	"github.com/roach88/authmetrics/internal/logging"
	"github.com/roach88/authmetrics/internal/testutil"
)

func TestParse_LineForms(t *testing.T) {
	tests := []struct {
		name string
		line string
		want ir.Event
	}{
		{"transcript", "1234567\t1\tTotal payload: 2637 bytes", ir.Event{Timestamp: 1234567, SourceID: 1, Text: "Total payload: 2637 bytes"}},
		{"export", "1234567\tID:2\tACK sent! Session established", ir.Event{Timestamp: 1234567, SourceID: 2, Text: "ACK sent! Session established"}},
		{"raw", "1234567:1:Sending Fragment 1/42", ir.Event{Timestamp: 1234567, SourceID: 1, Text: "Sending Fragment 1/42"}},
		{"raw with colons in text", "42:3:DECRYPTED MESSAGE: hi", ir.Event{Timestamp: 42, SourceID: 3, Text: "DECRYPTED MESSAGE: hi"}},
		{"crlf", "10\t1\tx\r", ir.Event{Timestamp: 10, SourceID: 1, Text: "x"}},
		{"leading spaces kept", "10\t1\t   Ring-LWE key generation: SUCCESS", ir.Event{Timestamp: 10, SourceID: 1, Text: "   Ring-LWE key generation: SUCCESS"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.line)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParse_Skip(t *testing.T) {
	for _, line := range []string{
		"",
		"   ",
		"# ============",
		"# AES-256-GCM AMORTIZATION - SIMULATION METRICS",
		"Timestamp(us)\tMoteID\tMessage",
		"======================================================================",
		">>> [Cycle 1 Auth Summary] Auth=20.0ms",
	} {
		_, err := Parse(line)
		assert.ErrorIs(t, err, ErrSkip, "line %q", line)
	}
}

func TestParse_Malformed(t *testing.T) {
	for _, line := range []string{
		"just some text",
		"abc\t1\tmsg",
		"10\tnode\tmsg",
		"-5:1:msg",
		"  KeyGen Delay : 50.000 ms",
	} {
		_, err := Parse(line)
		require.Error(t, err, "line %q", line)
		assert.True(t, IsParseError(err), "line %q", line)
	}
}

func TestSource_RoundTripsTranscript(t *testing.T) {
	evs := testutil.GCMRun(1, 0)
	input := "# banner\n" + "Timestamp(us)\tMoteID\tMessage\n" + testutil.Transcript(evs) + "garbage line\n"

	got, stats, err := ReadAll(strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, evs, got)
	assert.Equal(t, Stats{Lines: len(evs) + 3, Events: len(evs), Skipped: 2, Malformed: 1}, stats)
}

func TestSource_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	src := NewSource(strings.NewReader("1\t1\ta\n2\t1\tb\n"), WithLogger(logging.Discard()), WithName("test.log"))
	ch := make(chan ir.Event)
	err := src.Run(ctx, ch)
	assert.True(t, errors.Is(err, context.Canceled))

	_, open := <-ch
	assert.False(t, open, "Run closes the channel")
}

func TestSource_LineTooLong(t *testing.T) {
	long := "1\t1\t" + strings.Repeat("x", MaxLineBytes+1) + "\n"
	_, _, err := ReadAll(strings.NewReader(long))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read log")
}
