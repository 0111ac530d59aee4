package transcript

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/roach88/authmetrics/internal/engine"
	"github.com/roach88/authmetrics/internal/ir"
	"github.com/roach88/authmetrics/internal/logging"
	"github.com/roach88/authmetrics/internal/metrics"
	"github.com/roach88/authmetrics/internal/report"
)

// ColumnHeader is the first non-banner line of every transcript.
const ColumnHeader = "Timestamp(us)\tMoteID\tMessage"

// Annotation returns the failure line written before the report, or ""
// when the reason has none.
func Annotation(reason string) string {
	switch reason {
	case engine.ReasonAuthTimeout:
		return "# TEST FAILED: Auth Timeout"
	case engine.ReasonDeadlineExceeded:
		return "# TEST FAILED: TIMEOUT"
	case engine.ReasonStreamEnded:
		return "# TEST FAILED: Stream Ended"
	case engine.ReasonCancelled:
		return "# TEST FAILED: Cancelled"
	}
	return ""
}

// Writer is the transcript sink for one run.
type Writer struct {
	out     io.Writer
	closer  io.Closer
	profile ir.Profile
	logger  *slog.Logger

	failures int
	lastErr  error

	rendered bool
	text     string
	csv      string
}

// Option configures a Writer.
type Option func(*Writer)

// WithLogger sets the logger used to report write failures.
func WithLogger(l *slog.Logger) Option {
	return func(w *Writer) {
		w.logger = l
	}
}

// New returns a Writer on out and writes the header banner.
func New(out io.Writer, p ir.Profile, opts ...Option) *Writer {
	w := &Writer{out: out, profile: p}
	for _, opt := range opts {
		opt(w)
	}
	if w.logger == nil {
		w.logger = logging.New("transcript")
	}
	w.writeHeader()
	return w
}

// Open appends to the transcript file at path, creating it if needed.
// The caller must Close the Writer.
func Open(path string, p ir.Profile, opts ...Option) (*Writer, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open transcript: %w", err)
	}
	w := New(f, p, opts...)
	w.closer = f
	return w, nil
}

// Close closes the underlying file, if the Writer owns one.
func (w *Writer) Close() error {
	if w.closer == nil {
		return nil
	}
	return w.closer.Close()
}

// Failures returns the number of writes that failed.
func (w *Writer) Failures() int {
	return w.failures
}

// Err returns the most recent write error, or nil.
func (w *Writer) Err() error {
	return w.lastErr
}

// Report returns the report rendered at completion. ok is false until the
// run completed.
func (w *Writer) Report() (text, csv string, ok bool) {
	return w.text, w.csv, w.rendered
}

// OnEvent implements engine.Observer.
func (w *Writer) OnEvent(_ int64, ev ir.Event) {
	w.printf("%d\t%d\t%s\n", ev.Timestamp, ev.SourceID, ev.Text)
}

// OnNote implements engine.Observer.
func (w *Writer) OnNote(note string) {
	w.printf("%s\n", note)
}

// OnComplete implements engine.Observer. It renders the report once.
func (w *Writer) OnComplete(res engine.Result, final *metrics.State) {
	if w.rendered {
		return
	}
	w.rendered = true

	if a := Annotation(res.Reason); a != "" {
		w.printf("%s\n", a)
	}

	w.text, w.csv = report.Render(final, w.profile)
	w.printf("\n%s\n%s", w.text, w.csv)
}

func (w *Writer) writeHeader() {
	bar := strings.Repeat("=", 60)
	w.printf("# %s\n# %s\n# variant=%s label=%s\n# %s\n%s\n",
		bar, w.profile.Title, w.profile.Variant, w.profile.Label, bar, ColumnHeader)
}

func (w *Writer) printf(format string, args ...any) {
	if _, err := fmt.Fprintf(w.out, format, args...); err != nil {
		w.failures++
		w.lastErr = err
		w.logger.Warn("transcript write failed", "error", err, "failures", w.failures)
	}
}

var _ engine.Observer = (*Writer)(nil)
