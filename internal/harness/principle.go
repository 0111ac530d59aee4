package harness

import (
	"context"
	"fmt"

	"github.com/roach88/authmetrics/internal/ir"
	"github.com/roach88/authmetrics/internal/metrics"
	"github.com/roach88/authmetrics/internal/report"
)

// Principle is a protocol property every run must satisfy, whatever its
// log contains.
type Principle struct {
	Name  string
	Check func(final *metrics.State, p ir.Profile, r *Result) error
}

// PrincipleViolation is a principle that did not hold for a run.
type PrincipleViolation struct {
	Principle string
	Detail    string
}

// Error implements the error interface.
func (v *PrincipleViolation) Error() string {
	return fmt.Sprintf("principle %q violated: %s", v.Principle, v.Detail)
}

// Principles are checked after every scenario run.
var Principles = []Principle{
	{Name: "elapsed_never_negative", Check: checkElapsed},
	{Name: "renewals_are_closed_cycles", Check: checkRenewals},
	{Name: "fragments_follow_payload", Check: checkFragments},
	{Name: "report_rendered_once", Check: checkRenderedOnce},
}

// CheckPrinciples returns every violated principle, in Principles order.
func CheckPrinciples(final *metrics.State, p ir.Profile, r *Result) []*PrincipleViolation {
	var out []*PrincipleViolation
	for _, pr := range Principles {
		if err := pr.Check(final, p, r); err != nil {
			out = append(out, &PrincipleViolation{Principle: pr.Name, Detail: err.Error()})
		}
	}
	return out
}

func checkElapsed(_ *metrics.State, _ ir.Profile, r *Result) error {
	s := r.Summary
	phases := map[string]float64{
		"keygen":       s.KeygenMs,
		"sign":         s.SignMs,
		"auth":         s.AuthMs,
		"verify":       s.VerifyMs,
		"session":      s.SessionMs,
		"data_latency": s.DataLatencyMs,
	}
	for name, v := range phases {
		if v < 0 {
			return fmt.Errorf("%s elapsed %.3f ms", name, v)
		}
	}
	for _, c := range s.CycleRows() {
		if c.AuthMs < 0 || c.VerifyMs < 0 || c.SessionMs < 0 {
			return fmt.Errorf("cycle %d has negative timing", c.Index+1)
		}
	}
	return nil
}

func checkRenewals(final *metrics.State, _ ir.Profile, r *Result) error {
	if final.RenewalCount != len(final.Cycles) {
		return fmt.Errorf("renewal count %d, closed cycles %d", final.RenewalCount, len(final.Cycles))
	}
	if r.Summary.Renewals != len(r.Summary.Cycles) {
		return fmt.Errorf("reported renewals %d, reported cycles %d", r.Summary.Renewals, len(r.Summary.Cycles))
	}
	return nil
}

func checkFragments(final *metrics.State, p ir.Profile, r *Result) error {
	if final.AuthFragments > 0 {
		if r.Summary.AuthFragments != final.AuthFragments {
			return fmt.Errorf("observed %d fragments, reported %d", final.AuthFragments, r.Summary.AuthFragments)
		}
		return nil
	}
	want := report.FragmentCount(0, r.Summary.AuthPayloadBytes, p.FragmentPayloadSize)
	if r.Summary.AuthFragments != want {
		return fmt.Errorf("payload %d B over %d B fragments needs %d, reported %d",
			r.Summary.AuthPayloadBytes, p.FragmentPayloadSize, want, r.Summary.AuthFragments)
	}
	return nil
}

func checkRenderedOnce(final *metrics.State, _ ir.Profile, r *Result) error {
	want := 0
	if final.Completed {
		want = 1
	}
	if got := countReports(r.Transcript); got != want {
		return fmt.Errorf("report rendered %d times", got)
	}
	return nil
}

// SuiteResult contains results from running a directory of scenarios.
type SuiteResult struct {
	TotalScenarios int               `json:"total_scenarios"`
	Passed         int               `json:"passed"`
	Failed         int               `json:"failed"`
	Failures       []ScenarioFailure `json:"failures,omitempty"`
}

// ScenarioFailure represents a scenario that failed to load, run or pass.
type ScenarioFailure struct {
	Scenario string `json:"scenario"`
	Path     string `json:"path"`
	Error    string `json:"error"`
}

// RunSuite loads and runs every scenario file in dir.
//
// For each scenario file:
// 1. Load it with paths relative to dir
// 2. Run it via harness.Run
// 3. Collect pass/fail
func RunSuite(ctx context.Context, dir string) (*SuiteResult, error) {
	paths, err := FindScenarios(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", dir, err)
	}

	result := &SuiteResult{}
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		result.TotalScenarios++

		scenario, err := LoadScenario(path)
		if err != nil {
			result.Failed++
			result.Failures = append(result.Failures, ScenarioFailure{
				Path:  path,
				Error: fmt.Sprintf("failed to load scenario: %v", err),
			})
			continue
		}

		runResult, err := Run(scenario)
		if err != nil {
			result.Failed++
			result.Failures = append(result.Failures, ScenarioFailure{
				Scenario: scenario.Name,
				Path:     path,
				Error:    fmt.Sprintf("scenario execution failed: %v", err),
			})
			continue
		}

		if !runResult.Pass {
			result.Failed++
			result.Failures = append(result.Failures, ScenarioFailure{
				Scenario: scenario.Name,
				Path:     path,
				Error:    fmt.Sprintf("scenario assertions failed: %v", runResult.Errors),
			})
			continue
		}

		result.Passed++
	}

	return result, nil
}
