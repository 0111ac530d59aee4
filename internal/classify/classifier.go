package classify

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/roach88/authmetrics/internal/ir"
)

// Classifier classifies log text against one dialect.
// Safe for concurrent use; it holds no mutable state.
type Classifier struct {
	dialect ir.Dialect
}

// New validates d and returns a classifier for it.
func New(d ir.Dialect) (*Classifier, error) {
	if err := Validate(d); err != nil {
		return nil, err
	}
	return &Classifier{dialect: d}, nil
}

// ForProfile returns a classifier for the profile's built-in dialect.
func ForProfile(p ir.Profile) (*Classifier, error) {
	d, err := Builtin(p.Dialect)
	if err != nil {
		return nil, fmt.Errorf("profile %s: %w", p.Variant, err)
	}
	return New(d)
}

// Dialect returns the dialect this classifier was built from.
func (c *Classifier) Dialect() ir.Dialect {
	return c.dialect
}

// Classify returns the first rule that matches text, or ir.Unclassified.
func (c *Classifier) Classify(text string) ir.Classification {
	for _, rule := range c.dialect.Rules {
		if !matches(rule, text) {
			continue
		}
		cl := ir.Classification{Kind: rule.Kind}
		if n, ok := extract(rule, text); ok {
			cl.Bytes = n
			cl.HasBytes = true
		} else if rule.DefaultBytes > 0 {
			cl.Bytes = rule.DefaultBytes
			cl.HasBytes = true
		}
		return cl
	}
	return ir.Unclassified
}

func matches(rule ir.MarkerRule, text string) bool {
	if len(rule.Contains) > 0 {
		found := false
		for _, s := range rule.Contains {
			if strings.Contains(text, s) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	for _, s := range rule.AllOf {
		if !strings.Contains(text, s) {
			return false
		}
	}
	return true
}

func extract(rule ir.MarkerRule, text string) (int, bool) {
	if rule.Pattern == nil {
		return 0, false
	}
	m := rule.Pattern.FindStringSubmatch(text)
	if len(m) < 2 {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// Validate checks that every rule of d can match something and carries a
// real kind.
func Validate(d ir.Dialect) error {
	if d.Name == "" {
		return fmt.Errorf("dialect name is empty")
	}
	if len(d.Rules) == 0 {
		return fmt.Errorf("dialect %s: no rules", d.Name)
	}
	for i, rule := range d.Rules {
		if !rule.Kind.Valid() {
			return fmt.Errorf("dialect %s: rule %d: invalid kind %s", d.Name, i, rule.Kind)
		}
		if len(rule.Contains) == 0 && len(rule.AllOf) == 0 {
			return fmt.Errorf("dialect %s: rule %d (%s): no marker text", d.Name, i, rule.Kind)
		}
		for _, s := range append(append([]string{}, rule.Contains...), rule.AllOf...) {
			if s == "" {
				return fmt.Errorf("dialect %s: rule %d (%s): empty marker text", d.Name, i, rule.Kind)
			}
		}
		if rule.Pattern != nil && rule.Pattern.NumSubexp() < 1 {
			return fmt.Errorf("dialect %s: rule %d (%s): pattern %q has no capture group",
				d.Name, i, rule.Kind, rule.Pattern.String())
		}
		if rule.DefaultBytes < 0 {
			return fmt.Errorf("dialect %s: rule %d (%s): negative default_bytes", d.Name, i, rule.Kind)
		}
	}
	return nil
}
