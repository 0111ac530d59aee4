package harness

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/authmetrics/internal/metrics"
)

func TestRun_TestdataScenarios(t *testing.T) {
	paths, err := FindScenarios("testdata/scenarios")
	require.NoError(t, err)
	require.Len(t, paths, 4)

	for _, path := range paths {
		t.Run(filepath.Base(path), func(t *testing.T) {
			scenario, err := LoadScenario(path)
			require.NoError(t, err)

			result, err := Run(scenario)
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors: %v", result.Errors)
			assert.Empty(t, result.Errors)
		})
	}
}

func TestRun_InlineStreamEnded(t *testing.T) {
	scenario := &Scenario{
		Name:        "stream_ended",
		Description: "Log ends before thresholds are met",
		Profile:     "amortized-gcm",
		Lines: []string{
			"1000:1:[Phase 1] Generating Ring-LWE keys...",
			"51000:1:Ring-LWE key generation successful",
		},
		Assertions: []Assertion{
			{Type: AssertOutcome, Outcome: "failure:stream_ended"},
			{Type: AssertTranscriptContains, Contains: "# TEST FAILED: Stream Ended"},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Equal(t, metrics.OutcomeFailure, result.Outcome)
	assert.Equal(t, "stream_ended", result.Reason)
	assert.Equal(t, DefaultRunID, result.RunID)
	assert.Equal(t, 2, result.Events)
	assert.Equal(t, 50.0, result.Summary.KeygenMs)
}

func TestRun_FailingAssertionReported(t *testing.T) {
	scenario, err := LoadScenario("testdata/scenarios/gcm_single_cycle.yaml")
	require.NoError(t, err)
	scenario.Assertions = []Assertion{
		{Type: AssertMetric, Column: "Auth_ms", Value: "99.000"},
		{Type: AssertOutcome, Outcome: "success"},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "Auth_ms = 20.000")
}

func TestRun_Deterministic(t *testing.T) {
	scenario, err := LoadScenario("testdata/scenarios/lab_dialect.yaml")
	require.NoError(t, err)

	first, err := Run(scenario)
	require.NoError(t, err)
	second, err := Run(scenario)
	require.NoError(t, err)

	assert.Equal(t, "lab-run-1", first.RunID)
	assert.Equal(t, first.Transcript, second.Transcript)
	assert.Equal(t, first.Summary, second.Summary)
	assert.Equal(t, first.Notes, second.Notes)
}

func TestRun_OverridesApplied(t *testing.T) {
	scenario, err := LoadScenario("testdata/scenarios/gcm_single_cycle.yaml")
	require.NoError(t, err)

	p, err := resolveProfile(scenario)
	require.NoError(t, err)
	assert.Equal(t, 5, p.Thresholds.MinReceived)
	assert.Equal(t, 1, p.Thresholds.MinRenewals)
	assert.Equal(t, 28, p.AEADOverhead, "unset keys keep the variant default")
}

func TestRun_Errors(t *testing.T) {
	tests := []struct {
		name     string
		scenario *Scenario
		wantErr  string
	}{
		{
			name: "unknown profile",
			scenario: &Scenario{
				Profile: "nope",
				Lines:   []string{"1:1:x"},
			},
			wantErr: "unknown variant",
		},
		{
			name: "malformed line",
			scenario: &Scenario{
				Profile: "amortized-gcm",
				Lines:   []string{"not a log line"},
			},
			wantErr: "lines[0]",
		},
		{
			name: "dialect for another variant",
			scenario: &Scenario{
				Profile: "basepaper-amortized",
				Dialect: "testdata/dialects/lab.cue",
				Lines:   []string{"1:1:x"},
			},
			wantErr: "extends amortized-gcm",
		},
		{
			name: "unknown dialect name",
			scenario: &Scenario{
				Profile:     "amortized-gcm",
				Dialect:     "testdata/dialects/lab.cue",
				DialectName: "other",
				Lines:       []string{"1:1:x"},
			},
			wantErr: `dialect "other" not found`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Run(tt.scenario)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestRun_NotesInOrder(t *testing.T) {
	scenario := &Scenario{
		Profile: "amortized-gcm",
		Lines: []string{
			"10000:1:[Phase 2] Starting Ring Signature Authentication...",
			"30000:2:ACK sent! Session established",
			"40000:1:Message 1 encrypted (28 bytes)",
			"50000:1:AMORTIZATION THRESHOLD REACHED (1 msgs)",
		},
		Assertions: []Assertion{{Type: AssertCycleCount, Count: 1}},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	require.Len(t, result.Notes, 2)
	assert.Contains(t, result.Notes[0], "[Cycle 1 Auth Summary] Auth=20.0ms")
	assert.Contains(t, result.Notes[1], "Session renewal triggered after 1 messages")
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestRun_TimeoutDuringRenewal(t *testing.T) {
	scenario := &Scenario{
		Profile: "amortized-gcm",
		Lines: []string{
			"100000:1:[Phase 2] Starting Ring Signature Authentication...",
			"112000:2:Reassembly complete. Verifying signature...",
			"115000:2:Ring signature verified: SUCCESS",
			"120000:2:ACK sent! Session established",
			"130000:1:Message 1 encrypted (28 bytes)",
			"160000:2:DECRYPTED MESSAGE: hello #1",
			"200000:1:[Phase 2] Starting Ring Signature Authentication...",
			"212000:2:Reassembly complete. Verifying signature...",
			"216000:2:Ring signature verified: SUCCESS",
			"500000:1:Authentication timeout! Restarting...",
		},
		Assertions: []Assertion{
			{Type: AssertOutcome, Outcome: "failure:auth_timeout"},
			{Type: AssertMetric, Column: "Renewals", Value: "1"},
			{Type: AssertCycleCount, Count: 1},
			{Type: AssertTranscriptContains, Contains: "2 (partial)"},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Equal(t, result.Summary.Renewals, len(result.Summary.Cycles))
	require.NotNil(t, result.Summary.OpenCycle)
	assert.Equal(t, 4.0, result.Summary.OpenCycle.VerifyMs)
}
