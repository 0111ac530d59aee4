package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/authmetrics/internal/engine"
	"github.com/roach88/authmetrics/internal/logging"
	"github.com/roach88/authmetrics/internal/report"
	"github.com/roach88/authmetrics/internal/store"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	Database string
	RunID    string // optional - specific run only
	Dialect  string // CUE dialects for runs that used a custom one
}

// ReplayRunResult holds the replay result for a single run.
type ReplayRunResult struct {
	RunID         string `json:"run_id"`
	Source        string `json:"source"`
	Variant       string `json:"variant"`
	Outcome       string `json:"outcome"`
	Events        int    `json:"events"`
	StoredDigest  string `json:"stored_digest"`
	ReplayDigest  string `json:"replay_digest"`
	Deterministic bool   `json:"deterministic"`
}

// ReplayResult holds the overall replay result.
type ReplayResult struct {
	Runs             []ReplayRunResult `json:"runs"`
	TotalRuns        int               `json:"total_runs"`
	AllDeterministic bool              `json:"all_deterministic"`
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Replay stored runs and verify determinism",
		Long: `Re-run stored input lines through a fresh engine and verify the result.

Each run is replayed twice with its stored profile. Both replays must
produce the summary digest recorded when the run was analyzed.

Exit codes:
  0 - All runs are deterministic
  1 - Determinism verification failed (digests differ)
  2 - Command error (database not found, damaged input, unknown dialect, etc.)

Examples:
  authmetrics replay --db ./runs.db
  authmetrics replay --db ./runs.db --run 0190a6d2-...
  authmetrics replay --db ./runs.db --dialect lab.cue --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.RunID, "run", "", "replay specific run only")
	cmd.Flags().StringVar(&opts.Dialect, "dialect", "", "CUE dialect file or directory for custom dialects")

	return cmd
}

func runReplay(opts *ReplayOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	out := newFormatter(opts.RootOptions, cmd)

	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	var ids []string
	if opts.RunID != "" {
		ids = []string{opts.RunID}
	} else {
		ids, err = st.ListRunIDs(ctx)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to list runs", err)
		}
	}

	result := ReplayResult{
		Runs:             make([]ReplayRunResult, 0, len(ids)),
		TotalRuns:        len(ids),
		AllDeterministic: true,
	}

	for _, id := range ids {
		out.VerboseLog("replaying run %s", id)
		runResult, err := replayAndVerifyRun(ctx, st, id, opts.Dialect)
		if err != nil {
			return WrapExitError(ExitCommandError, fmt.Sprintf("failed to replay run %s", id), err)
		}
		result.Runs = append(result.Runs, runResult)
		if !runResult.Deterministic {
			result.AllDeterministic = false
		}
	}

	var failure *CLIError
	if !result.AllDeterministic {
		failure = &CLIError{Code: "E_NONDETERMINISTIC", Message: "replay produced a different summary"}
	}
	if err := out.Emit(result, failure, func(w io.Writer) { outputReplayText(w, result) }); err != nil {
		return WrapExitError(ExitCommandError, "failed to write output", err)
	}

	if failure != nil {
		return NewExitError(ExitFailure, "determinism verification failed")
	}
	return nil
}

// replayAndVerifyRun replays a single run twice and compares both summary
// digests with the stored one.
func replayAndVerifyRun(ctx context.Context, st *store.Store, id, dialectPath string) (ReplayRunResult, error) {
	run, events, err := st.ReplayInput(ctx, id)
	if err != nil {
		return ReplayRunResult{}, err
	}

	cls, err := classifierFor(run.Profile, dialectPath)
	if err != nil {
		return ReplayRunResult{}, err
	}

	digests := make([]string, 2)
	var last report.Summary
	for i := range digests {
		_, final, err := engine.Replay(run.Profile, cls, events,
			engine.WithRunIDGenerator(engine.NewFixedGenerator(run.ID)),
			engine.WithLogger(logging.Discard()),
		)
		if err != nil {
			return ReplayRunResult{}, fmt.Errorf("replay %d failed: %w", i+1, err)
		}
		last = report.Summarize(final, run.Profile)
		if digests[i], err = report.Digest(last); err != nil {
			return ReplayRunResult{}, err
		}
	}

	return ReplayRunResult{
		RunID:         run.ID,
		Source:        run.Source,
		Variant:       string(run.Profile.Variant),
		Outcome:       report.OutcomeColumn(last),
		Events:        len(events),
		StoredDigest:  run.SummaryDigest,
		ReplayDigest:  digests[0],
		Deterministic: digests[0] == digests[1] && digests[0] == run.SummaryDigest,
	}, nil
}

func outputReplayText(w io.Writer, result ReplayResult) {
	if result.TotalRuns == 0 {
		fmt.Fprintln(w, "No runs found in database.")
		return
	}

	fmt.Fprintf(w, "Replayed %d run(s)\n\n", result.TotalRuns)
	for _, r := range result.Runs {
		mark := "✓"
		if !r.Deterministic {
			mark = "✗"
		}
		fmt.Fprintf(w, "%s Run: %s\n", mark, r.RunID)
		fmt.Fprintf(w, "  Source: %s\n", r.Source)
		fmt.Fprintf(w, "  Variant: %s\n", r.Variant)
		fmt.Fprintf(w, "  Outcome: %s\n", r.Outcome)
		fmt.Fprintf(w, "  Events: %d\n", r.Events)
		if !r.Deterministic {
			fmt.Fprintf(w, "  Stored digest: %s\n", r.StoredDigest)
			fmt.Fprintf(w, "  Replay digest: %s\n", r.ReplayDigest)
		}
		fmt.Fprintln(w)
	}

	if result.AllDeterministic {
		fmt.Fprintln(w, "All runs are deterministic.")
	} else {
		fmt.Fprintln(w, "Determinism verification FAILED.")
	}
}
