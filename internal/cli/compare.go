package cli

import (
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/authmetrics/internal/report"
)

// CompareOptions holds flags for the compare command.
type CompareOptions struct {
	*RootOptions
	Database string
	Variant  string
}

// NewCompareCommand creates the compare command.
func NewCompareCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompareOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compare",
		Short: "Print the comparison CSV of stored runs",
		Long: `Print one comparison row per stored run under the fixed CSV header,
so amortized and baseline runs can be set side by side.

Examples:
  authmetrics compare --db ./runs.db > compare.csv
  authmetrics compare --db ./runs.db --variant amortized-gcm --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompare(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.Variant, "variant", "", "only runs of this variant")

	return cmd
}

func runCompare(opts *CompareOptions, cmd *cobra.Command) error {
	runs, err := listStoredRuns(cmd, opts.Database, opts.Variant)
	if err != nil {
		return err
	}

	sums := make([]report.Summary, len(runs))
	for i, r := range runs {
		sums[i] = r.Summary
	}

	out := newFormatter(opts.RootOptions, cmd)
	var writeErr error
	if err := out.Emit(sums, nil, func(w io.Writer) { writeErr = report.WriteCSV(w, sums) }); err != nil {
		return WrapExitError(ExitCommandError, "failed to write output", err)
	}
	if writeErr != nil {
		return WrapExitError(ExitCommandError, "failed to write CSV", writeErr)
	}
	return nil
}
