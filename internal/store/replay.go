package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/roach88/authmetrics/internal/ir"
)

// ErrTranscriptMismatch is returned when stored lines no longer hash to
// the digest recorded with the run.
var ErrTranscriptMismatch = errors.New("stored events do not match transcript digest")

// ReplayInput returns a run and its input lines, ready to be fed to a
// fresh engine. The lines are checked against the run's transcript digest
// so a replay never silently runs on damaged input.
func (s *Store) ReplayInput(ctx context.Context, runID string) (Run, []ir.Event, error) {
	run, err := s.ReadRun(ctx, runID)
	if err != nil {
		return Run{}, nil, err
	}

	events, err := s.ReadEvents(ctx, runID)
	if err != nil {
		return Run{}, nil, fmt.Errorf("replay input %s: %w", runID, err)
	}

	digest, err := ir.TranscriptDigest(events)
	if err != nil {
		return Run{}, nil, fmt.Errorf("replay input %s: %w", runID, err)
	}
	if digest != run.TranscriptDigest {
		return Run{}, nil, fmt.Errorf("replay input %s: %w", runID, ErrTranscriptMismatch)
	}

	return run, events, nil
}

// ListRunIDs returns all run ids in store order.
func (s *Store) ListRunIDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id FROM runs
		ORDER BY seq ASC, id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list run ids: %w", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan run id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate run ids: %w", err)
	}
	return ids, nil
}
