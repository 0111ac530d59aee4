package store

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/authmetrics/internal/ir"
	"github.com/roach88/authmetrics/internal/testutil"
)

func TestReadRun_RoundTrip(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)
	evs := testutil.BaselineRun(3)
	run := createTestRun(t, "run-1", ir.VariantBaseline, evs)

	_, err := s.WriteRun(ctx, run, evs)
	require.NoError(t, err)

	got, err := s.ReadRun(ctx, "run-1")
	require.NoError(t, err)

	run.Seq = 1
	if diff := cmp.Diff(run, got); diff != "" {
		t.Errorf("run mismatch (-want +got):\n%s", diff)
	}
	assert.True(t, got.Summary.IsSynthetic("keygen"))
}

func TestReadRun_NotFound(t *testing.T) {
	s := createTestStore(t)
	_, err := s.ReadRun(context.Background(), "nope")
	assert.True(t, errors.Is(err, ErrRunNotFound))

	_, err = s.LatestRun(context.Background())
	assert.True(t, errors.Is(err, ErrRunNotFound))
}

func TestListRuns(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)

	gcm := testutil.GCMRun(2, 5)
	base := testutil.BaselineRun(3)
	for _, r := range []struct {
		id  string
		v   ir.Variant
		evs []ir.Event
	}{
		{"r1", ir.VariantAmortizedGCM, gcm},
		{"r2", ir.VariantBaseline, base},
		{"r3", ir.VariantAmortizedGCM, gcm},
	} {
		_, err := s.WriteRun(ctx, createTestRun(t, r.id, r.v, r.evs), r.evs)
		require.NoError(t, err)
	}

	all, err := s.ListRuns(ctx, "")
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "r1", all[0].ID)
	assert.Equal(t, "r3", all[2].ID)

	onlyGCM, err := s.ListRuns(ctx, ir.VariantAmortizedGCM)
	require.NoError(t, err)
	require.Len(t, onlyGCM, 2)
	assert.Equal(t, "AES256GCM_Amortized", onlyGCM[1].Summary.Label)

	latest, err := s.LatestRun(ctx)
	require.NoError(t, err)
	assert.Equal(t, "r3", latest.ID)
}

func TestListRuns_Empty(t *testing.T) {
	runs, err := createTestStore(t).ListRuns(context.Background(), "")
	require.NoError(t, err)
	assert.NotNil(t, runs)
	assert.Empty(t, runs)
}

func TestReadEvents_Order(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)

	// Out-of-order timestamps must come back in feed order.
	evs := []ir.Event{
		testutil.Line(300, 1, "c"),
		testutil.Line(100, 1, "a"),
		testutil.Line(200, 2, "b"),
	}
	_, err := s.WriteRun(ctx, createTestRun(t, "r", ir.VariantBasepaper, evs), evs)
	require.NoError(t, err)

	got, err := s.ReadEvents(ctx, "r")
	require.NoError(t, err)
	assert.Equal(t, evs, got)
}

func TestReadCycles(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)

	evs := testutil.GCMRun(2, 5)
	run := createTestRun(t, "r", ir.VariantAmortizedGCM, evs)
	_, err := s.WriteRun(ctx, run, evs)
	require.NoError(t, err)

	got, err := s.ReadCycles(ctx, "r")
	require.NoError(t, err)
	if diff := cmp.Diff(run.Summary.Cycles, got); diff != "" {
		t.Errorf("cycles mismatch (-want +got):\n%s", diff)
	}
}

func TestReadCycles_OpenCycleLast(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)

	evs := append(testutil.GCMRun(1, 0),
		testutil.Line(900_000, testutil.SenderID, "[Phase 2] Starting Ring Signature Authentication..."),
		testutil.Line(912_000, testutil.GatewayID, "Reassembly complete. Verifying signature..."),
		testutil.Line(916_000, testutil.GatewayID, "Ring signature verified: SUCCESS"),
		testutil.Line(990_000, testutil.SenderID, "Authentication timeout! Restarting..."),
	)
	run := createTestRun(t, "r", ir.VariantAmortizedGCM, evs)
	require.NotNil(t, run.Summary.OpenCycle)
	assert.Len(t, run.Summary.Cycles, run.Summary.Renewals)

	_, err := s.WriteRun(ctx, run, evs)
	require.NoError(t, err)

	got, err := s.ReadCycles(ctx, "r")
	require.NoError(t, err)
	if diff := cmp.Diff(run.Summary.CycleRows(), got); diff != "" {
		t.Errorf("cycles mismatch (-want +got):\n%s", diff)
	}
	assert.True(t, got[len(got)-1].Partial)

	stored, err := s.ReadRun(ctx, "r")
	require.NoError(t, err)
	if diff := cmp.Diff(run.Summary, stored.Summary); diff != "" {
		t.Errorf("summary mismatch (-want +got):\n%s", diff)
	}
}
