package ingest

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/roach88/authmetrics/internal/ir"
	"github.com/roach88/authmetrics/internal/logging"
)

// MaxLineBytes bounds a single log line.
const MaxLineBytes = 1 << 20

// Stats counts what a Source saw.
type Stats struct {
	Lines     int `json:"lines"`
	Events    int `json:"events"`
	Skipped   int `json:"skipped"`
	Malformed int `json:"malformed"`
}

// Source reads log lines from a reader and emits events in input order.
type Source struct {
	r      io.Reader
	name   string
	logger *slog.Logger
	stats  Stats
}

// SourceOption configures a Source.
type SourceOption func(*Source)

// WithName labels the source in log output, usually with the file path.
func WithName(name string) SourceOption {
	return func(s *Source) {
		s.name = name
	}
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) SourceOption {
	return func(s *Source) {
		s.logger = l
	}
}

// NewSource returns a Source over r.
func NewSource(r io.Reader, opts ...SourceOption) *Source {
	s := &Source{r: r}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logging.New("ingest")
	}
	if s.name != "" {
		s.logger = s.logger.With("source", s.name)
	}
	return s
}

// Stats returns the counters. Only meaningful after Run returned.
func (s *Source) Stats() Stats {
	return s.stats
}

// Run scans the input and sends each event on out, closing out when it
// returns. It stops early when ctx is cancelled and returns ctx.Err().
func (s *Source) Run(ctx context.Context, out chan<- ir.Event) error {
	defer close(out)

	sc := bufio.NewScanner(s.r)
	sc.Buffer(make([]byte, 0, 64*1024), MaxLineBytes)

	for sc.Scan() {
		s.stats.Lines++
		ev, err := Parse(sc.Text())
		if err != nil {
			if errors.Is(err, ErrSkip) {
				s.stats.Skipped++
				continue
			}
			var pe *ParseError
			if errors.As(err, &pe) {
				pe.Line = s.stats.Lines
			}
			s.stats.Malformed++
			s.logger.Debug("malformed line", "line", s.stats.Lines, "error", err)
			continue
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case out <- ev:
			s.stats.Events++
		}
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("read log: %w", err)
	}

	s.logger.Debug("input exhausted",
		"lines", s.stats.Lines,
		"events", s.stats.Events,
		"skipped", s.stats.Skipped,
		"malformed", s.stats.Malformed,
	)
	return nil
}

// ReadAll parses every line of r. Malformed lines are reported through
// the returned Stats, not as an error.
func ReadAll(r io.Reader) ([]ir.Event, Stats, error) {
	src := NewSource(r, WithLogger(logging.Discard()))
	ch := make(chan ir.Event, 64)
	errc := make(chan error, 1)
	go func() { errc <- src.Run(context.Background(), ch) }()

	var evs []ir.Event
	for ev := range ch {
		evs = append(evs, ev)
	}
	if err := <-errc; err != nil {
		return nil, src.Stats(), err
	}
	return evs, src.Stats(), nil
}
