package cli

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/roach88/authmetrics/internal/classify"
	"github.com/roach88/authmetrics/internal/compiler"
	"github.com/roach88/authmetrics/internal/ir"
)

// DialectsOptions holds flags for the dialects subcommands.
type DialectsOptions struct {
	*RootOptions
	File string // CUE dialect file or directory
}

// DialectInfo describes one dialect.
type DialectInfo struct {
	Name    string `json:"name"`
	Source  string `json:"source"` // "builtin" or the CUE path
	Profile string `json:"profile,omitempty"`
	Rules   int    `json:"rules"`
}

// ValidationResult holds dialect validation results.
type ValidationResult struct {
	Valid    bool                       `json:"valid"`
	Dialects []string                   `json:"dialects,omitempty"`
	Errors   []compiler.ValidationError `json:"errors,omitempty"`
}

// NewDialectsCommand creates the dialects command and its subcommands.
func NewDialectsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DialectsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "dialects",
		Short: "Inspect and validate marker dialects",
		Long: `A dialect is the ordered marker rule set that classifies log lines.
Three dialects are built in, one per variant. Custom dialects are written
in CUE and extend a variant profile.`,
	}

	list := &cobra.Command{
		Use:           "list",
		Short:         "List built-in and CUE dialects",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDialectsList(opts, cmd)
		},
	}
	list.Flags().StringVar(&opts.File, "file", "", "also list the dialects of this CUE file or directory")

	show := &cobra.Command{
		Use:   "show <name>",
		Short: "Print the rules of a dialect in match order",
		Example: `  authmetrics dialects show amortized-gcm
  authmetrics dialects show lab-gcm --file lab.cue`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDialectsShow(opts, args[0], cmd)
		},
	}
	show.Flags().StringVar(&opts.File, "file", "", "CUE file or directory holding the dialect")

	validate := &cobra.Command{
		Use:   "validate <path>",
		Short: "Validate CUE dialects without running them",
		Long: `Compile every dialect of a CUE file or directory and report all
errors: syntax, unknown profiles or kinds, bad patterns, shadowed rules.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDialectsValidate(opts, args[0], cmd)
		},
	}

	cmd.AddCommand(list, show, validate)
	return cmd
}

func runDialectsList(opts *DialectsOptions, cmd *cobra.Command) error {
	var infos []DialectInfo
	for _, name := range classify.Builtins() {
		d, err := classify.Builtin(name)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to load built-in dialect", err)
		}
		infos = append(infos, DialectInfo{Name: name, Source: "builtin", Profile: name, Rules: len(d.Rules)})
	}

	if opts.File != "" {
		loaded, errs := compiler.LoadDialects(opts.File, compiler.LoadModeFailFast)
		if len(errs) > 0 {
			return WrapExitError(ExitCommandError, "failed to load dialects", errors.Join(errs...))
		}
		for _, spec := range loaded.Dialects {
			infos = append(infos, DialectInfo{
				Name:    spec.Dialect.Name,
				Source:  opts.File,
				Profile: string(spec.Profile),
				Rules:   len(spec.Dialect.Rules),
			})
		}
	}

	out := newFormatter(opts.RootOptions, cmd)
	return out.Emit(infos, nil, func(w io.Writer) {
		t := table.NewWriter()
		t.SetOutputMirror(w)
		t.SetStyle(table.StyleLight)
		t.AppendHeader(table.Row{"Dialect", "Profile", "Rules", "Source"})
		for _, d := range infos {
			t.AppendRow(table.Row{d.Name, d.Profile, d.Rules, d.Source})
		}
		t.Render()
	})
}

func runDialectsShow(opts *DialectsOptions, name string, cmd *cobra.Command) error {
	var d ir.Dialect
	if opts.File != "" {
		spec, err := loadDialect(opts.File, name)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to load dialect", err)
		}
		d = spec.Dialect
	} else {
		builtin, err := classify.Builtin(name)
		if err != nil {
			return WrapExitError(ExitCommandError, "unknown dialect", err)
		}
		d = builtin
	}

	out := newFormatter(opts.RootOptions, cmd)
	return out.Emit(d, nil, func(w io.Writer) { writeRulesTable(w, d) })
}

func writeRulesTable(w io.Writer, d ir.Dialect) {
	fmt.Fprintf(w, "Dialect: %s\n", d.Name)
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"#", "Kind", "Contains", "All Of", "Pattern", "Default"})
	for i, r := range d.Rules {
		pattern := ""
		if r.Pattern != nil {
			pattern = r.Pattern.String()
		}
		def := ""
		if r.DefaultBytes > 0 {
			def = fmt.Sprintf("%d", r.DefaultBytes)
		}
		t.AppendRow(table.Row{
			i + 1,
			r.Kind.String(),
			strings.Join(r.Contains, " | "),
			strings.Join(r.AllOf, " & "),
			pattern,
			def,
		})
	}
	t.Render()
}

func runDialectsValidate(opts *DialectsOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	loaded, loadErrors := compiler.LoadDialects(path, compiler.LoadModeCollectAll)

	// Handle load errors (path not found, no files, syntax, etc.)
	if loaded == nil && len(loadErrors) > 0 {
		var loadErr *compiler.LoadError
		if errors.As(loadErrors[0], &loadErr) {
			return outputValidateError(formatter, loadErr.Code, loadErr.Message)
		}
		return outputValidateError(formatter, compiler.ErrCodeGeneric, loadErrors[0].Error())
	}

	formatter.VerboseLog("Found %d CUE file(s) in %s", loaded.FileCount, path)

	result := ValidationResult{Valid: len(loadErrors) == 0}
	for _, spec := range loaded.Dialects {
		result.Dialects = append(result.Dialects, spec.Dialect.Name)
	}
	for _, err := range loadErrors {
		result.Errors = append(result.Errors, toValidationError(err))
	}

	if result.Valid {
		return formatter.Emit(result, nil, func(w io.Writer) {
			fmt.Fprintf(w, "✓ %d dialect(s) valid: %s\n", len(result.Dialects), strings.Join(result.Dialects, ", "))
		})
	}

	failure := &CLIError{
		Code:    "E_VALIDATION",
		Message: fmt.Sprintf("validation failed with %d error(s)", len(result.Errors)),
		Details: result.Errors,
	}
	if err := formatter.Emit(result, failure, func(w io.Writer) {
		fmt.Fprintf(w, "✗ %s\n", failure.Message)
		for _, e := range result.Errors {
			fmt.Fprintf(w, "  %s\n", e.Error())
		}
	}); err != nil {
		return WrapExitError(ExitCommandError, "failed to write output", err)
	}
	return NewExitError(ExitFailure, failure.Message)
}

// toValidationError converts a load error into the validation report form.
func toValidationError(err error) compiler.ValidationError {
	var loadErr *compiler.LoadError
	if !errors.As(err, &loadErr) {
		return compiler.ValidationError{Field: "load", Message: err.Error(), Code: compiler.ErrCodeGeneric}
	}
	field, message := "load", loadErr.Message
	if head, rest, ok := strings.Cut(loadErr.Message, ": "); ok && strings.HasPrefix(head, "dialect.") {
		field, message = head, rest
	}
	ve := compiler.ValidationError{Field: field, Message: message, Code: loadErr.Code}
	if loadErr.Pos.IsValid() {
		ve.Line = loadErr.Pos.Line()
	}
	return ve
}

// outputValidateError reports an error that stopped validation entirely.
func outputValidateError(formatter *OutputFormatter, code, message string) error {
	if err := formatter.Error(code, message, nil); err != nil {
		return WrapExitError(ExitCommandError, "failed to write output", err)
	}
	return NewExitError(ExitCommandError, message)
}
