package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/pflag"

	"github.com/roach88/authmetrics/internal/classify"
	"github.com/roach88/authmetrics/internal/compiler"
	"github.com/roach88/authmetrics/internal/config"
	"github.com/roach88/authmetrics/internal/ir"
)

// ProfileFlags selects the profile and dialect for a run.
//
// Resolution order: the variant's default profile, then the YAML config,
// then the CUE dialect's overrides, then explicit threshold flags.
type ProfileFlags struct {
	Profile     string
	Config      string
	Dialect     string
	DialectName string
	MinReceived int
	MinRenewals int
	DeadlineMs  int64
}

func (f *ProfileFlags) register(fs *pflag.FlagSet) {
	fs.StringVar(&f.Profile, "profile", string(ir.VariantAmortizedGCM), "protocol variant (amortized-gcm|basepaper-amortized|unamortized-baseline)")
	fs.StringVar(&f.Config, "config", "", "YAML profile overrides")
	fs.StringVar(&f.Dialect, "dialect", "", "CUE dialect file or directory")
	fs.StringVar(&f.DialectName, "dialect-name", "", "dialect to use when --dialect defines several")
	fs.IntVar(&f.MinReceived, "min-received", 0, "override the decrypted-message threshold")
	fs.IntVar(&f.MinRenewals, "min-renewals", 0, "override the session-renewal threshold")
	fs.Int64Var(&f.DeadlineMs, "deadline-ms", 0, "override the simulated run deadline")
}

// resolve returns the profile and classifier for a run. fs reports which
// threshold flags were set explicitly.
func (f *ProfileFlags) resolve(fs *pflag.FlagSet) (ir.Profile, *classify.Classifier, error) {
	v, err := ir.ParseVariant(f.Profile)
	if err != nil {
		return ir.Profile{}, nil, err
	}

	var p ir.Profile
	if f.Config != "" {
		p, err = config.LoadProfile(f.Config, v)
	} else {
		p, err = ir.DefaultProfile(v)
	}
	if err != nil {
		return ir.Profile{}, nil, err
	}

	var cls *classify.Classifier
	if f.Dialect != "" {
		spec, err := loadDialect(f.Dialect, f.DialectName)
		if err != nil {
			return ir.Profile{}, nil, err
		}
		if spec.Profile != p.Variant {
			return ir.Profile{}, nil, fmt.Errorf("dialect %s extends %s, profile is %s", spec.Dialect.Name, spec.Profile, p.Variant)
		}
		if cls, err = classify.New(spec.Dialect); err != nil {
			return ir.Profile{}, nil, err
		}
		p = spec.ApplyTo(p)
	} else if cls, err = classify.ForProfile(p); err != nil {
		return ir.Profile{}, nil, err
	}

	if fs.Changed("min-received") {
		p.Thresholds.MinReceived = f.MinReceived
	}
	if fs.Changed("min-renewals") {
		p.Thresholds.MinRenewals = f.MinRenewals
	}
	if fs.Changed("deadline-ms") {
		p.RunDeadlineMs = f.DeadlineMs
	}
	if err := p.Validate(); err != nil {
		return ir.Profile{}, nil, err
	}
	return p, cls, nil
}

// loadDialect compiles a CUE dialect file or directory and selects one.
func loadDialect(path, name string) (*compiler.DialectSpec, error) {
	loaded, errs := compiler.LoadDialects(path, compiler.LoadModeFailFast)
	if len(errs) > 0 {
		return nil, fmt.Errorf("load dialect: %w", errors.Join(errs...))
	}
	spec, err := loaded.Select(name)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return spec, nil
}

// classifierFor rebuilds the classifier for a stored profile: its built-in
// dialect, or one from dialectPath when the profile names a custom one.
func classifierFor(p ir.Profile, dialectPath string) (*classify.Classifier, error) {
	if d, err := classify.Builtin(p.Dialect); err == nil {
		return classify.New(d)
	}
	if dialectPath == "" {
		return nil, fmt.Errorf("dialect %q is not built in; pass --dialect", p.Dialect)
	}
	spec, err := loadDialect(dialectPath, p.Dialect)
	if err != nil {
		return nil, err
	}
	return classify.New(spec.Dialect)
}
