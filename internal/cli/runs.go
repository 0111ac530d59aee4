package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/roach88/authmetrics/internal/ir"
	"github.com/roach88/authmetrics/internal/report"
	"github.com/roach88/authmetrics/internal/store"
)

// RunsOptions holds flags for the runs command.
type RunsOptions struct {
	*RootOptions
	Database string
	Variant  string
	Latest   bool   // only the most recently stored run
	Cycles   string // run id whose cycle table is printed instead
}

// RunEntry is one stored run as listed.
type RunEntry struct {
	Seq     int64  `json:"seq"`
	ID      string `json:"id"`
	Source  string `json:"source"`
	Variant string `json:"variant"`
	Outcome string `json:"outcome"`
	Events  int    `json:"events"`
	Engine  string `json:"engine_version"`
}

// NewRunsCommand creates the runs command.
func NewRunsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List stored runs",
		Long: `List the runs stored by "analyze --db", oldest first.

With --cycles, print the stored amortization cycle table of one run
instead; an open cycle is listed last and marked partial.

Examples:
  authmetrics runs --db ./runs.db
  authmetrics runs --db ./runs.db --latest
  authmetrics runs --db ./runs.db --variant unamortized-baseline --format json
  authmetrics runs --db ./runs.db --cycles 01927c1e-...`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRuns(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.Variant, "variant", "", "only runs of this variant")
	cmd.Flags().BoolVar(&opts.Latest, "latest", false, "only the most recently stored run")
	cmd.Flags().StringVar(&opts.Cycles, "cycles", "", "print the cycle table of this run")
	cmd.MarkFlagsMutuallyExclusive("latest", "variant", "cycles")

	return cmd
}

func runRuns(opts *RunsOptions, cmd *cobra.Command) error {
	if opts.Cycles != "" {
		return runRunCycles(opts, cmd)
	}

	var (
		runs []store.Run
		err  error
	)
	if opts.Latest {
		runs, err = latestStoredRun(cmd, opts.Database)
	} else {
		runs, err = listStoredRuns(cmd, opts.Database, opts.Variant)
	}
	if err != nil {
		return err
	}

	entries := make([]RunEntry, len(runs))
	for i, r := range runs {
		entries[i] = RunEntry{
			Seq:     r.Seq,
			ID:      r.ID,
			Source:  r.Source,
			Variant: string(r.Profile.Variant),
			Outcome: report.OutcomeColumn(r.Summary),
			Events:  r.Events,
			Engine:  r.EngineVersion,
		}
	}

	out := newFormatter(opts.RootOptions, cmd)
	return out.Emit(entries, nil, func(w io.Writer) { writeRunsTable(w, entries) })
}

// listStoredRuns opens the database read side and lists runs, optionally
// of one variant.
func listStoredRuns(cmd *cobra.Command, dbPath, variant string) ([]store.Run, error) {
	var v ir.Variant
	if variant != "" {
		parsed, err := ir.ParseVariant(variant)
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "invalid variant", err)
		}
		v = parsed
	}

	st, err := store.Open(dbPath)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	runs, err := st.ListRuns(cmd.Context(), v)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to list runs", err)
	}
	return runs, nil
}

// latestStoredRun returns the most recently stored run, or none for an
// empty database.
func latestStoredRun(cmd *cobra.Command, dbPath string) ([]store.Run, error) {
	st, err := store.Open(dbPath)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	run, err := st.LatestRun(cmd.Context())
	if errors.Is(err, store.ErrRunNotFound) {
		return []store.Run{}, nil
	}
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to read latest run", err)
	}
	return []store.Run{run}, nil
}

func runRunCycles(opts *RunsOptions, cmd *cobra.Command) error {
	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	ctx := cmd.Context()
	run, err := st.ReadRun(ctx, opts.Cycles)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read run", err)
	}
	cycles, err := st.ReadCycles(ctx, run.ID)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read cycles", err)
	}

	out := newFormatter(opts.RootOptions, cmd)
	return out.Emit(cycles, nil, func(w io.Writer) {
		fmt.Fprintf(w, "Run %s (%s): %d renewal(s)\n", run.ID, report.OutcomeColumn(run.Summary), run.Summary.Renewals)
		if len(cycles) == 0 {
			fmt.Fprintln(w, "No cycles recorded.")
			return
		}
		fmt.Fprintln(w, report.CycleTable(cycles))
	})
}

func writeRunsTable(w io.Writer, entries []RunEntry) {
	if len(entries) == 0 {
		fmt.Fprintln(w, "No runs found in database.")
		return
	}
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Seq", "Run", "Variant", "Outcome", "Events", "Source"})
	for _, e := range entries {
		t.AppendRow(table.Row{e.Seq, e.ID, e.Variant, e.Outcome, e.Events, e.Source})
	}
	t.Render()
}
