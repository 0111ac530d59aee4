package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/roach88/authmetrics/internal/classify"
	"github.com/roach88/authmetrics/internal/engine"
	"github.com/roach88/authmetrics/internal/ingest"
	"github.com/roach88/authmetrics/internal/ir"
	"github.com/roach88/authmetrics/internal/logging"
	"github.com/roach88/authmetrics/internal/metrics"
	"github.com/roach88/authmetrics/internal/report"
	"github.com/roach88/authmetrics/internal/store"
	"github.com/roach88/authmetrics/internal/transcript"
)

// AnalyzeOptions holds flags for the analyze command.
type AnalyzeOptions struct {
	*RootOptions
	ProfileFlags

	Database      string
	TranscriptDir string
	CSV           string
	Parallel      int
	Timeout       time.Duration

	// RunIDs allows overriding the run id generator (for testing).
	// If nil, defaults to UUIDv7Generator.
	RunIDs engine.RunIDGenerator
}

// AnalyzeRun is the outcome of analyzing one log.
type AnalyzeRun struct {
	Source     string         `json:"source"`
	RunID      string         `json:"run_id"`
	Outcome    string         `json:"outcome"`
	Lines      int            `json:"lines"`
	Events     int            `json:"events"`
	Malformed  int            `json:"malformed"`
	Stored     bool           `json:"stored"`
	Transcript string         `json:"transcript,omitempty"`
	Summary    report.Summary `json:"summary"`

	report string
}

// NewAnalyzeCommand creates the analyze command.
func NewAnalyzeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &AnalyzeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "analyze <log>...",
		Short: "Extract metrics from simulation logs",
		Long: `Classify every line of each simulation log, run it through the metrics
state machine, and print the report once the run succeeds or fails.

Logs are analyzed independently; --parallel bounds how many run at once.
Use "-" to read a log from stdin.

Exit codes:
  0 - Every run succeeded
  1 - At least one run failed (auth timeout, deadline, stream ended, cancelled)
  2 - Command error (unreadable log, bad profile or dialect, database error)

Examples:
  authmetrics analyze sim.log
  authmetrics analyze --profile basepaper-amortized --db runs.db a.log b.log
  authmetrics analyze --dialect lab.cue --transcripts out/ --csv compare.csv *.log`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnalyze(opts, args, cmd)
		},
	}

	opts.ProfileFlags.register(cmd.Flags())
	cmd.Flags().StringVar(&opts.Database, "db", "", "store runs in this SQLite database")
	cmd.Flags().StringVar(&opts.TranscriptDir, "transcripts", "", "write one transcript per log into this directory")
	cmd.Flags().StringVar(&opts.CSV, "csv", "", "write the comparison CSV of all runs to this file")
	cmd.Flags().IntVar(&opts.Parallel, "parallel", 1, "logs analyzed concurrently")
	cmd.Flags().DurationVar(&opts.Timeout, "timeout", 0, "wall-clock limit per invocation (0 = none)")

	return cmd
}

func runAnalyze(opts *AnalyzeOptions, paths []string, cmd *cobra.Command) error {
	out := newFormatter(opts.RootOptions, cmd)
	logger := logging.New("cli")

	if opts.Parallel < 1 {
		return NewExitError(ExitCommandError, fmt.Sprintf("--parallel must be at least 1, got %d", opts.Parallel))
	}

	p, cls, err := opts.resolve(cmd.Flags())
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to resolve profile", err)
	}
	logger.Info("profile resolved",
		"variant", p.Variant,
		"dialect", p.Dialect,
		"min_received", p.Thresholds.MinReceived,
		"min_renewals", p.Thresholds.MinRenewals,
	)

	if opts.TranscriptDir != "" {
		if err := os.MkdirAll(opts.TranscriptDir, 0o755); err != nil {
			return WrapExitError(ExitCommandError, "failed to create transcript directory", err)
		}
	}

	var st *store.Store
	if opts.Database != "" {
		st, err = store.Open(opts.Database)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to open database", err)
		}
		defer func() {
			if closeErr := st.Close(); closeErr != nil {
				logger.Error("error closing database", "error", closeErr)
			}
		}()
	}

	ctx, cancel := signalContext(cmd.Context(), opts.Timeout)
	defer cancel()

	runIDs := opts.RunIDs
	if runIDs == nil {
		runIDs = engine.UUIDv7Generator{}
	}

	runs := make([]AnalyzeRun, len(paths))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Parallel)
	for i, path := range paths {
		g.Go(func() error {
			run, err := analyzeLog(gctx, opts, p, cls, runIDs, st, path, cmd.InOrStdin())
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			runs[i] = run
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return WrapExitError(ExitCommandError, "analysis failed", err)
	}

	sums := make([]report.Summary, len(runs))
	failed := 0
	for i, r := range runs {
		sums[i] = r.Summary
		if r.Summary.Outcome != metrics.OutcomeSuccess {
			failed++
		}
	}

	if opts.CSV != "" {
		if err := writeCSVFile(opts.CSV, sums); err != nil {
			return WrapExitError(ExitCommandError, "failed to write comparison CSV", err)
		}
	}

	var failure *CLIError
	if failed > 0 {
		failure = &CLIError{
			Code:    "E_RUN_FAILED",
			Message: fmt.Sprintf("%d of %d runs failed", failed, len(runs)),
		}
	}
	if err := out.Emit(runs, failure, func(w io.Writer) { writeAnalyzeText(w, runs) }); err != nil {
		return WrapExitError(ExitCommandError, "failed to write output", err)
	}

	if failure != nil {
		return NewExitError(ExitFailure, failure.Message)
	}
	return nil
}

// analyzeLog runs one log through a fresh engine.
//
// The source and the engine run as two goroutines joined by a channel.
// Once the run completes, the remaining lines are still drained through
// the engine so they reach the transcript.
func analyzeLog(ctx context.Context, opts *AnalyzeOptions, p ir.Profile, cls *classify.Classifier,
	runIDs engine.RunIDGenerator, st *store.Store, path string, stdin io.Reader) (AnalyzeRun, error) {
	r, name, closeInput, err := openLog(path, stdin)
	if err != nil {
		return AnalyzeRun{}, err
	}
	defer closeInput()

	tw, transcriptPath, err := openTranscript(opts.TranscriptDir, name, p)
	if err != nil {
		return AnalyzeRun{}, err
	}
	defer tw.Close()

	rec := &eventRecorder{}
	eng, err := engine.New(p, cls,
		engine.WithObserver(tw),
		engine.WithObserver(rec),
		engine.WithRunIDGenerator(runIDs),
		engine.WithLogger(logging.New("engine").With("source", name)),
	)
	if err != nil {
		return AnalyzeRun{}, err
	}

	src := ingest.NewSource(r, ingest.WithName(name), ingest.WithLogger(logging.New("ingest")))
	events := make(chan ir.Event, 256)

	var res engine.Result
	g := new(errgroup.Group)
	g.Go(func() error {
		return src.Run(ctx, events)
	})
	g.Go(func() error {
		res, _ = eng.Run(ctx, events)
		for ev := range events {
			eng.Process(ev)
		}
		return nil
	})
	if err := g.Wait(); err != nil && ctx.Err() == nil {
		return AnalyzeRun{}, err
	}

	if tw.Failures() > 0 {
		slog.Warn("transcript writes failed", "source", name, "failures", tw.Failures(), "error", tw.Err())
	}

	final := eng.State()
	sum := report.Summarize(final, p)
	stats := src.Stats()
	run := AnalyzeRun{
		Source:     name,
		RunID:      res.RunID,
		Outcome:    report.OutcomeColumn(sum),
		Lines:      stats.Lines,
		Events:     res.Events,
		Malformed:  stats.Malformed,
		Transcript: transcriptPath,
		Summary:    sum,
	}
	run.report, _, _ = tw.Report()

	// A cancelled run depends on wall-clock input, so it cannot replay.
	if st != nil && res.Reason == engine.ReasonCancelled {
		slog.Warn("cancelled run not stored", "source", name, "run_id", res.RunID)
	} else if st != nil {
		stored, err := store.NewRun(name, res, p, final, rec.events)
		if err != nil {
			return AnalyzeRun{}, err
		}
		inserted, err := st.WriteRun(ctx, stored, rec.events)
		if err != nil {
			return AnalyzeRun{}, fmt.Errorf("store run: %w", err)
		}
		run.Stored = inserted
	}

	return run, nil
}

// eventRecorder keeps every line fed to the engine, for the store.
type eventRecorder struct {
	events []ir.Event
}

func (r *eventRecorder) OnEvent(_ int64, ev ir.Event)             { r.events = append(r.events, ev) }
func (r *eventRecorder) OnNote(string)                           {}
func (r *eventRecorder) OnComplete(engine.Result, *metrics.State) {}

func openLog(path string, stdin io.Reader) (io.Reader, string, func(), error) {
	if path == "-" {
		return stdin, "stdin", func() {}, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, "", nil, fmt.Errorf("open log: %w", err)
	}
	return f, path, func() { _ = f.Close() }, nil
}

// openTranscript returns a writer into dir, or one that only keeps the
// rendered report when dir is empty.
func openTranscript(dir, source string, p ir.Profile) (*transcript.Writer, string, error) {
	opts := transcript.WithLogger(logging.New("transcript"))
	if dir == "" {
		return transcript.New(io.Discard, p, opts), "", nil
	}
	base := strings.TrimSuffix(filepath.Base(source), filepath.Ext(source))
	path := filepath.Join(dir, base+".transcript.log")
	tw, err := transcript.Open(path, p, opts)
	if err != nil {
		return nil, "", err
	}
	return tw, path, nil
}

func writeCSVFile(path string, sums []report.Summary) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := report.WriteCSV(f, sums); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func writeAnalyzeText(w io.Writer, runs []AnalyzeRun) {
	for _, r := range runs {
		fmt.Fprintf(w, "== %s (run %s)\n", r.Source, r.RunID)
		fmt.Fprint(w, r.report)
		fmt.Fprintf(w, "lines=%d events=%d malformed=%d", r.Lines, r.Events, r.Malformed)
		if r.Transcript != "" {
			fmt.Fprintf(w, " transcript=%s", r.Transcript)
		}
		if r.Stored {
			fmt.Fprint(w, " stored")
		}
		fmt.Fprintln(w)
	}
	if len(runs) > 1 {
		fmt.Fprintln(w)
		sums := make([]report.Summary, len(runs))
		for i, r := range runs {
			sums[i] = r.Summary
		}
		_ = report.WriteCSV(w, sums)
	}
}

// signalContext derives a context that is cancelled on SIGINT/SIGTERM or
// after timeout, when timeout is positive.
func signalContext(parent context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	// Use command's context if available (for testing), otherwise create one
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)
	stopTimer := func() {}
	if timeout > 0 {
		var cancelTimeout context.CancelFunc
		ctx, cancelTimeout = context.WithTimeout(ctx, timeout)
		stopTimer = cancelTimeout
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		select {
		case sig := <-sigChan:
			slog.Info("received signal, cancelling runs", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, func() {
		signal.Stop(sigChan) // Prevent signal handler leak
		stopTimer()
		cancel()
	}
}
