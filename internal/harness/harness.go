package harness

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roach88/authmetrics/internal/classify"
	"github.com/roach88/authmetrics/internal/compiler"
	"github.com/roach88/authmetrics/internal/config"
	"github.com/roach88/authmetrics/internal/engine"
	"github.com/roach88/authmetrics/internal/ingest"
	"github.com/roach88/authmetrics/internal/ir"
	"github.com/roach88/authmetrics/internal/logging"
	"github.com/roach88/authmetrics/internal/metrics"
	"github.com/roach88/authmetrics/internal/report"
	"github.com/roach88/authmetrics/internal/testutil"
	"github.com/roach88/authmetrics/internal/transcript"
)

// noteRecorder collects inline notes for note assertions.
type noteRecorder struct {
	notes []string
}

func (r *noteRecorder) OnEvent(int64, ir.Event)                 {}
func (r *noteRecorder) OnNote(note string)                      { r.notes = append(r.notes, note) }
func (r *noteRecorder) OnComplete(engine.Result, *metrics.State) {}

// Run executes a scenario and returns the result.
//
// Execution flow:
// 1. Resolve the profile and its overrides
// 2. Build the classifier from the built-in or CUE dialect
// 3. Feed every line through the engine with a transcript writer attached
// 4. Finish the run and summarize the final state
// 5. Check protocol principles and evaluate assertions
//
// An error is returned only when the scenario cannot be executed; a run
// that fails its assertions returns a result with Pass false.
func Run(scenario *Scenario) (*Result, error) {
	profile, err := resolveProfile(scenario)
	if err != nil {
		return nil, err
	}

	cls, profile, err := resolveClassifier(scenario, profile)
	if err != nil {
		return nil, err
	}

	events, err := scenarioEvents(scenario)
	if err != nil {
		return nil, err
	}

	runID := scenario.RunID
	if runID == "" {
		runID = DefaultRunID
	}

	var out bytes.Buffer
	tw := transcript.New(&out, profile, transcript.WithLogger(logging.Discard()))
	notes := &noteRecorder{}

	eng, err := engine.New(profile, cls,
		engine.WithObserver(tw),
		engine.WithObserver(notes),
		engine.WithRunIDGenerator(testutil.NewFixedRunIDGenerator(runID)),
		engine.WithLogger(logging.Discard()),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create engine: %w", err)
	}

	for _, ev := range events {
		eng.Process(ev)
	}
	res := eng.Finish()
	final := eng.State()

	result := NewResult()
	result.RunID = res.RunID
	result.Outcome = res.Outcome
	result.Reason = res.Reason
	result.Summary = report.Summarize(final, profile)
	result.Notes = append(result.Notes, notes.notes...)
	result.Transcript = out.String()
	result.Events = len(events)

	for _, v := range CheckPrinciples(final, profile, result) {
		result.AddError(v.Error())
	}
	for _, errMsg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(errMsg)
	}

	return result, nil
}

func resolveProfile(s *Scenario) (ir.Profile, error) {
	v, err := ir.ParseVariant(s.Profile)
	if err != nil {
		return ir.Profile{}, err
	}
	if s.Overrides.Kind == 0 {
		return ir.DefaultProfile(v)
	}

	data, err := yaml.Marshal(&s.Overrides)
	if err != nil {
		return ir.Profile{}, fmt.Errorf("failed to encode overrides: %w", err)
	}
	p, err := config.DecodeProfile(data, v)
	if err != nil {
		return ir.Profile{}, fmt.Errorf("overrides: %w", err)
	}
	if p.Variant != v {
		return ir.Profile{}, fmt.Errorf("overrides: variant %s conflicts with profile %s", p.Variant, v)
	}
	return p, nil
}

// resolveClassifier returns the classifier for the scenario, and the
// profile with any dialect overrides applied.
func resolveClassifier(s *Scenario, p ir.Profile) (*classify.Classifier, ir.Profile, error) {
	if s.Dialect == "" {
		cls, err := classify.ForProfile(p)
		return cls, p, err
	}

	loaded, errs := compiler.LoadDialects(s.Dialect, compiler.LoadModeFailFast)
	if len(errs) > 0 {
		return nil, p, fmt.Errorf("failed to load dialect: %w", errors.Join(errs...))
	}

	spec, err := loaded.Select(s.DialectName)
	if err != nil {
		return nil, p, fmt.Errorf("%s: %w", s.Dialect, err)
	}

	if spec.Profile != p.Variant {
		return nil, p, fmt.Errorf("dialect %s extends %s, scenario profile is %s", spec.Dialect.Name, spec.Profile, p.Variant)
	}

	cls, err := classify.New(spec.Dialect)
	if err != nil {
		return nil, p, err
	}
	return cls, spec.ApplyTo(p), nil
}

func scenarioEvents(s *Scenario) ([]ir.Event, error) {
	if s.Log != "" {
		f, err := os.Open(s.Log)
		if err != nil {
			return nil, fmt.Errorf("failed to open log: %w", err)
		}
		defer f.Close()

		events, _, err := ingest.ReadAll(f)
		if err != nil {
			return nil, err
		}
		return events, nil
	}

	events := make([]ir.Event, 0, len(s.Lines))
	for i, line := range s.Lines {
		ev, err := ingest.Parse(line)
		if errors.Is(err, ingest.ErrSkip) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("lines[%d]: %w", i, err)
		}
		events = append(events, ev)
	}
	return events, nil
}

// countReports returns how many rendered reports a transcript holds.
func countReports(transcriptText string) int {
	return strings.Count(transcriptText, "  RESULT: ")
}
