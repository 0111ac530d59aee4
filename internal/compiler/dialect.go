package compiler

import (
	"fmt"
	"regexp"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/authmetrics/internal/ir"
)

// DialectSpec is a compiled dialect file: an ordered marker rule set plus
// the variant profile it extends and optional profile overrides.
type DialectSpec struct {
	Dialect ir.Dialect
	Profile ir.Variant

	// Thresholds, when set, replace the base profile's success thresholds.
	Thresholds *ir.Thresholds

	// RenewalThreshold, when non-zero, replaces the base profile's
	// messages-per-session parameter.
	RenewalThreshold int
}

// ApplyTo returns base with the dialect's name and overrides applied.
func (s *DialectSpec) ApplyTo(base ir.Profile) ir.Profile {
	p := base
	p.Dialect = s.Dialect.Name
	if s.Thresholds != nil {
		p.Thresholds = *s.Thresholds
	}
	if s.RenewalThreshold > 0 {
		p.Params.RenewalThreshold = s.RenewalThreshold
	}
	return p
}

// CompileDialect parses a CUE value into a DialectSpec.
//
// The CUE value should be the dialect struct itself, e.g.:
//
//	ctx := cuecontext.New()
//	v := ctx.CompileString(`dialect: lab: { profile: "amortized-gcm", rules: [...] }`)
//	spec, err := CompileDialect(v.LookupPath(cue.ParsePath("dialect.lab")))
func CompileDialect(v cue.Value) (*DialectSpec, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	spec := &DialectSpec{}

	labels := v.Path().Selectors()
	if len(labels) > 0 {
		spec.Dialect.Name = labelString(labels[len(labels)-1])
	}

	profileVal := v.LookupPath(cue.ParsePath("profile"))
	if !profileVal.Exists() {
		return nil, &CompileError{
			Field:   "profile",
			Message: "profile is required",
			Pos:     v.Pos(),
		}
	}
	profileName, err := profileVal.String()
	if err != nil {
		return nil, formatCUEError(err)
	}
	variant, err := ir.ParseVariant(profileName)
	if err != nil {
		return nil, &CompileError{
			Field:   "profile",
			Message: err.Error(),
			Pos:     profileVal.Pos(),
		}
	}
	spec.Profile = variant

	spec.Dialect.Rules, err = parseRules(v)
	if err != nil {
		return nil, err
	}
	if len(spec.Dialect.Rules) == 0 {
		return nil, &CompileError{
			Field:   "rules",
			Message: "at least one rule is required",
			Pos:     v.Pos(),
		}
	}

	thresholdsVal := v.LookupPath(cue.ParsePath("thresholds"))
	if thresholdsVal.Exists() {
		th, err := parseThresholds(thresholdsVal)
		if err != nil {
			return nil, err
		}
		spec.Thresholds = th
	}

	renewalVal := v.LookupPath(cue.ParsePath("renewal_threshold"))
	if renewalVal.Exists() {
		n, err := intField(renewalVal, "renewal_threshold")
		if err != nil {
			return nil, err
		}
		spec.RenewalThreshold = n
	}

	return spec, nil
}

// labelString strips the quotes CUE keeps on non-identifier labels such as
// "amortized-gcm".
func labelString(sel cue.Selector) string {
	if sel.LabelType() == cue.StringLabel {
		return sel.Unquoted()
	}
	return sel.String()
}

// parseRules extracts the ordered rule list. Order is significant.
func parseRules(v cue.Value) ([]ir.MarkerRule, error) {
	var rules []ir.MarkerRule

	rulesVal := v.LookupPath(cue.ParsePath("rules"))
	if !rulesVal.Exists() {
		return rules, nil
	}

	iter, err := rulesVal.List()
	if err != nil {
		return nil, formatCUEError(err)
	}

	for i := 0; iter.Next(); i++ {
		rule, err := parseRule(iter.Value(), i)
		if err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}

	return rules, nil
}

func parseRule(v cue.Value, index int) (ir.MarkerRule, error) {
	var rule ir.MarkerRule
	field := fmt.Sprintf("rules[%d]", index)

	kindVal := v.LookupPath(cue.ParsePath("kind"))
	if !kindVal.Exists() {
		return rule, &CompileError{
			Field:   field + ".kind",
			Message: "kind is required",
			Pos:     v.Pos(),
		}
	}
	kindName, err := kindVal.String()
	if err != nil {
		return rule, formatCUEError(err)
	}
	kind, err := ir.ParseEventKind(kindName)
	if err != nil || !kind.Valid() {
		return rule, &CompileError{
			Field:   field + ".kind",
			Message: fmt.Sprintf("unknown event kind %q", kindName),
			Pos:     kindVal.Pos(),
		}
	}
	rule.Kind = kind

	rule.Contains, err = stringList(v.LookupPath(cue.ParsePath("contains")))
	if err != nil {
		return rule, err
	}
	rule.AllOf, err = stringList(v.LookupPath(cue.ParsePath("all_of")))
	if err != nil {
		return rule, err
	}
	if len(rule.Contains) == 0 && len(rule.AllOf) == 0 {
		return rule, &CompileError{
			Field:   field + ".contains",
			Message: "contains or all_of is required",
			Pos:     v.Pos(),
		}
	}

	patternVal := v.LookupPath(cue.ParsePath("pattern"))
	if patternVal.Exists() {
		src, err := patternVal.String()
		if err != nil {
			return rule, formatCUEError(err)
		}
		re, err := regexp.Compile(src)
		if err != nil {
			return rule, &CompileError{
				Field:   field + ".pattern",
				Message: err.Error(),
				Pos:     patternVal.Pos(),
			}
		}
		rule.Pattern = re
	}

	bytesVal := v.LookupPath(cue.ParsePath("default_bytes"))
	if bytesVal.Exists() {
		rule.DefaultBytes, err = intField(bytesVal, field+".default_bytes")
		if err != nil {
			return rule, err
		}
	}

	return rule, nil
}

func parseThresholds(v cue.Value) (*ir.Thresholds, error) {
	th := &ir.Thresholds{}
	var err error

	if mv := v.LookupPath(cue.ParsePath("min_received")); mv.Exists() {
		if th.MinReceived, err = intField(mv, "thresholds.min_received"); err != nil {
			return nil, err
		}
	}
	if mv := v.LookupPath(cue.ParsePath("min_renewals")); mv.Exists() {
		if th.MinRenewals, err = intField(mv, "thresholds.min_renewals"); err != nil {
			return nil, err
		}
	}
	return th, nil
}

func stringList(v cue.Value) ([]string, error) {
	if !v.Exists() {
		return nil, nil
	}
	if s, err := v.String(); err == nil {
		return []string{s}, nil
	}
	iter, err := v.List()
	if err != nil {
		return nil, formatCUEError(err)
	}
	var out []string
	for iter.Next() {
		s, err := iter.Value().String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		out = append(out, s)
	}
	return out, nil
}

// intField reads an integer. Floats are rejected: byte counts and
// thresholds are whole numbers.
func intField(v cue.Value, field string) (int, error) {
	switch v.IncompleteKind() {
	case cue.IntKind:
	case cue.FloatKind, cue.NumberKind:
		return 0, &CompileError{
			Field:   field,
			Message: "float values are forbidden, use int",
			Pos:     v.Pos(),
		}
	default:
		return 0, &CompileError{
			Field:   field,
			Message: fmt.Sprintf("expected int, got %v", v.IncompleteKind()),
			Pos:     v.Pos(),
		}
	}
	n, err := v.Int64()
	if err != nil {
		return 0, formatCUEError(err)
	}
	return int(n), nil
}

// CompileError represents a compilation error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	firstErr := errs[0]
	positions := errors.Positions(firstErr)
	if len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: firstErr.Error(),
			Pos:     positions[0],
		}
	}

	return err
}
