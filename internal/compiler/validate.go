package compiler

import (
	"fmt"
	"strings"

	"github.com/roach88/authmetrics/internal/ir"
)

// Validation error codes (E100-E199)
const (
	// General validation errors (E100)
	ErrUnsupportedIRType = "E100" // unsupported IR type for validation

	// Dialect errors (E101-E109)
	ErrDialectNoRules   = "E101" // at least one rule required
	ErrRuleNoMarker     = "E102" // rule needs contains or all_of text
	ErrRuleInvalidKind  = "E103" // kind is Unclassified or out of range
	ErrPatternNoCapture = "E104" // pattern needs one integer capture group
	ErrNegativeValue    = "E105" // default_bytes or threshold below zero
	ErrShadowedRule     = "E106" // an earlier rule of another kind always wins
	ErrDialectNoName    = "E107" // dialect name is empty
)

// ValidationError represents a schema validation error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Line    int    `json:"line,omitempty"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("[%s] line %d: %s: %s", e.Code, e.Line, e.Field, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// Validate checks a compiled dialect for rules that can never fire or carry
// meaningless values. Returns all errors found (does not fail-fast).
// Supports DialectSpec and ir.Dialect.
func Validate(v any) []ValidationError {
	switch d := v.(type) {
	case *DialectSpec:
		return validateDialectSpec(d)
	case DialectSpec:
		return validateDialectSpec(&d)
	case ir.Dialect:
		return validateDialect(d)
	case *ir.Dialect:
		return validateDialect(*d)
	default:
		return []ValidationError{{
			Field:   "type",
			Message: fmt.Sprintf("unsupported IR type: %T", v),
			Code:    ErrUnsupportedIRType,
		}}
	}
}

func validateDialectSpec(spec *DialectSpec) []ValidationError {
	errs := validateDialect(spec.Dialect)

	if spec.Thresholds != nil {
		if spec.Thresholds.MinReceived < 0 {
			errs = append(errs, ValidationError{
				Field:   "thresholds.min_received",
				Message: "must be non-negative",
				Code:    ErrNegativeValue,
			})
		}
		if spec.Thresholds.MinRenewals < 0 {
			errs = append(errs, ValidationError{
				Field:   "thresholds.min_renewals",
				Message: "must be non-negative",
				Code:    ErrNegativeValue,
			})
		}
	}
	if spec.RenewalThreshold < 0 {
		errs = append(errs, ValidationError{
			Field:   "renewal_threshold",
			Message: "must be non-negative",
			Code:    ErrNegativeValue,
		})
	}

	return errs
}

func validateDialect(d ir.Dialect) []ValidationError {
	var errs []ValidationError

	// E107: name is required
	if strings.TrimSpace(d.Name) == "" {
		errs = append(errs, ValidationError{
			Field:   "name",
			Message: "dialect name is required",
			Code:    ErrDialectNoName,
		})
	}

	// E101: at least one rule
	if len(d.Rules) == 0 {
		errs = append(errs, ValidationError{
			Field:   "rules",
			Message: "at least one rule is required",
			Code:    ErrDialectNoRules,
		})
	}

	for i, rule := range d.Rules {
		field := fmt.Sprintf("rules[%d]", i)

		// E103: kind must be a real marker
		if !rule.Kind.Valid() {
			errs = append(errs, ValidationError{
				Field:   field + ".kind",
				Message: fmt.Sprintf("invalid kind %s", rule.Kind),
				Code:    ErrRuleInvalidKind,
			})
		}

		// E102: some marker text
		if len(nonEmpty(rule.Contains)) == 0 && len(nonEmpty(rule.AllOf)) == 0 {
			errs = append(errs, ValidationError{
				Field:   field + ".contains",
				Message: "rule has no marker text",
				Code:    ErrRuleNoMarker,
			})
		}

		// E104: pattern must capture
		if rule.Pattern != nil && rule.Pattern.NumSubexp() < 1 {
			errs = append(errs, ValidationError{
				Field:   field + ".pattern",
				Message: fmt.Sprintf("pattern %q has no capture group", rule.Pattern.String()),
				Code:    ErrPatternNoCapture,
			})
		}

		// E105: no negative defaults
		if rule.DefaultBytes < 0 {
			errs = append(errs, ValidationError{
				Field:   field + ".default_bytes",
				Message: "must be non-negative",
				Code:    ErrNegativeValue,
			})
		}

		// E106: unreachable under first-match-wins
		for j := 0; j < i; j++ {
			earlier := d.Rules[j]
			if earlier.Kind != rule.Kind && shadows(earlier, rule) {
				errs = append(errs, ValidationError{
					Field: field,
					Message: fmt.Sprintf("rule %s is unreachable: rules[%d] (%s) matches every line it matches",
						rule.Kind, j, earlier.Kind),
					Code: ErrShadowedRule,
				})
				break
			}
		}
	}

	return errs
}

// shadows reports whether every text matched by later is also matched by
// earlier. Only plain any-of rules can shadow.
func shadows(earlier, later ir.MarkerRule) bool {
	if len(earlier.AllOf) > 0 || len(earlier.Contains) == 0 {
		return false
	}
	implied := func(marker string) bool {
		for _, c := range earlier.Contains {
			if c != "" && strings.Contains(marker, c) {
				return true
			}
		}
		return false
	}

	for _, a := range later.AllOf {
		if implied(a) {
			return true
		}
	}
	if len(later.Contains) == 0 {
		return false
	}
	for _, m := range later.Contains {
		if !implied(m) {
			return false
		}
	}
	return true
}

func nonEmpty(ss []string) []string {
	var out []string
	for _, s := range ss {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
