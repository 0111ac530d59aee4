// Package config loads run profiles from YAML.
//
// A config file names a variant and overrides any subset of that
// variant's default profile:
//
//	variant: amortized-gcm
//	thresholds:
//	  min_received: 40
//	  min_renewals: 2
//	run_deadline_ms: 600000
//	params:
//	  poly_degree: 256
//
// Unknown keys are rejected so a typo never silently falls back to a
// default.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/authmetrics/internal/ir"
)

// LoadProfile reads a YAML config file. fallback is used when the file
// does not name a variant.
func LoadProfile(path string, fallback ir.Variant) (ir.Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return ir.Profile{}, fmt.Errorf("read config: %w", err)
	}
	p, err := DecodeProfile(data, fallback)
	if err != nil {
		return ir.Profile{}, fmt.Errorf("%s: %w", path, err)
	}
	return p, nil
}

// DecodeProfile applies YAML overrides to the default profile of the
// variant they name, or of fallback.
func DecodeProfile(data []byte, fallback ir.Variant) (ir.Profile, error) {
	var head struct {
		Variant string `yaml:"variant"`
	}
	if err := yaml.Unmarshal(data, &head); err != nil {
		return ir.Profile{}, fmt.Errorf("parse config yaml: %w", err)
	}

	v := fallback
	if head.Variant != "" {
		parsed, err := ir.ParseVariant(head.Variant)
		if err != nil {
			return ir.Profile{}, err
		}
		v = parsed
	}

	p, err := ir.DefaultProfile(v)
	if err != nil {
		return ir.Profile{}, err
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&p); err != nil && !errors.Is(err, io.EOF) {
		return ir.Profile{}, fmt.Errorf("parse config yaml: %w", err)
	}
	// The variant decides the dialect's completion semantics, which
	// are not configurable.
	p.Variant = v

	if err := p.Validate(); err != nil {
		return ir.Profile{}, fmt.Errorf("invalid config: %w", err)
	}
	return p, nil
}
