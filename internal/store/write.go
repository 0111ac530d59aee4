package store

import (
	"context"
	"fmt"

	"github.com/roach88/authmetrics/internal/engine"
	"github.com/roach88/authmetrics/internal/ir"
	"github.com/roach88/authmetrics/internal/metrics"
	"github.com/roach88/authmetrics/internal/report"
)

// Run is one analyzed run as stored.
type Run struct {
	ID      string
	Seq     int64 // assigned by the store on write
	Source  string
	Profile ir.Profile
	Summary report.Summary
	Events  int

	TranscriptDigest string
	SummaryDigest    string
	EngineVersion    string
	SchemaVersion    string
}

// NewRun builds the record for a completed engine run: summary, digests
// and version stamps. events are the lines the engine was fed, in order.
func NewRun(source string, res engine.Result, p ir.Profile, final *metrics.State, events []ir.Event) (Run, error) {
	sum := report.Summarize(final, p)

	sd, err := report.Digest(sum)
	if err != nil {
		return Run{}, fmt.Errorf("new run: %w", err)
	}
	td, err := ir.TranscriptDigest(events)
	if err != nil {
		return Run{}, fmt.Errorf("new run: %w", err)
	}

	return Run{
		ID:               res.RunID,
		Source:           source,
		Profile:          p,
		Summary:          sum,
		Events:           res.Events,
		TranscriptDigest: td,
		SummaryDigest:    sd,
		EngineVersion:    ir.EngineVersion,
		SchemaVersion:    ir.SchemaVersion,
	}, nil
}

// WriteRun stores a run with its cycles and input lines in one transaction.
// Uses ON CONFLICT(id) DO NOTHING for idempotency: writing an existing run
// id is silently ignored and inserted is false.
//
// The run's seq is assigned here, one past the highest stored seq.
func (s *Store) WriteRun(ctx context.Context, run Run, events []ir.Event) (inserted bool, err error) {
	if run.ID == "" {
		return false, fmt.Errorf("write run: empty run id")
	}

	profileJSON, err := marshalProfile(run.Profile)
	if err != nil {
		return false, fmt.Errorf("write run: %w", err)
	}
	summaryJSON, err := marshalSummary(run.Summary)
	if err != nil {
		return false, fmt.Errorf("write run: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("write run: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	result, err := tx.ExecContext(ctx, `
		INSERT INTO runs
		(id, seq, source, variant, label, outcome, reason, events, profile, summary,
		 transcript_digest, summary_digest, engine_version, schema_version)
		VALUES (?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM runs), ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		run.ID,
		run.Source,
		string(run.Profile.Variant),
		run.Summary.Label,
		run.Summary.Outcome.String(),
		run.Summary.Reason,
		run.Events,
		profileJSON,
		summaryJSON,
		run.TranscriptDigest,
		run.SummaryDigest,
		run.EngineVersion,
		run.SchemaVersion,
	)
	if err != nil {
		return false, fmt.Errorf("write run: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("write run: rows affected: %w", err)
	}
	if rows == 0 {
		return false, nil
	}

	for _, c := range run.Summary.CycleRows() {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO cycles
			(run_id, idx, auth_ms, verify_ms, session_ms, data_messages, partial)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`,
			run.ID, c.Index, c.AuthMs, c.VerifyMs, c.SessionMs, c.DataMessages, c.Partial,
		); err != nil {
			return false, fmt.Errorf("write run: cycle %d: %w", c.Index, err)
		}
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO events (run_id, seq, timestamp, source_id, text)
		VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		return false, fmt.Errorf("write run: prepare events: %w", err)
	}
	defer stmt.Close()

	for i, ev := range events {
		if _, err := stmt.ExecContext(ctx, run.ID, int64(i+1), ev.Timestamp, ev.SourceID, ev.Text); err != nil {
			return false, fmt.Errorf("write run: event %d: %w", i+1, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("write run: commit: %w", err)
	}
	return true, nil
}
