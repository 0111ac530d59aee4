package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/roach88/authmetrics/internal/ir"
)

// NewProfilesCommand creates the profiles command.
func NewProfilesCommand(rootOpts *RootOptions) *cobra.Command {
	flags := &ProfileFlags{}

	cmd := &cobra.Command{
		Use:   "profiles [variant]",
		Short: "Print variant profiles",
		Long: `Print the default profile of each variant, or the effective profile of
one variant after --config, --dialect and threshold overrides.

The YAML output is a valid --config file.

Examples:
  authmetrics profiles
  authmetrics profiles unamortized-baseline
  authmetrics profiles --profile amortized-gcm --config lab.yaml --min-renewals 3`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProfiles(rootOpts, flags, args, cmd)
		},
	}

	flags.register(cmd.Flags())
	return cmd
}

func runProfiles(opts *RootOptions, flags *ProfileFlags, args []string, cmd *cobra.Command) error {
	var profiles []ir.Profile
	switch {
	case len(args) == 1:
		flags.Profile = args[0]
		p, _, err := flags.resolve(cmd.Flags())
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to resolve profile", err)
		}
		profiles = append(profiles, p)
	case flags.Config != "" || flags.Dialect != "" || cmd.Flags().Changed("profile"):
		p, _, err := flags.resolve(cmd.Flags())
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to resolve profile", err)
		}
		profiles = append(profiles, p)
	default:
		for _, v := range ir.Variants() {
			profiles = append(profiles, ir.MustProfile(v))
		}
	}

	out := newFormatter(opts, cmd)
	var writeErr error
	if err := out.Emit(profiles, nil, func(w io.Writer) { writeErr = writeProfilesYAML(w, profiles) }); err != nil {
		return WrapExitError(ExitCommandError, "failed to write output", err)
	}
	if writeErr != nil {
		return WrapExitError(ExitCommandError, "failed to encode profiles", writeErr)
	}
	return nil
}

// writeProfilesYAML writes profiles as a stream of YAML documents.
func writeProfilesYAML(w io.Writer, profiles []ir.Profile) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	for _, p := range profiles {
		if err := enc.Encode(p); err != nil {
			return fmt.Errorf("encode %s: %w", p.Variant, err)
		}
	}
	return enc.Close()
}
