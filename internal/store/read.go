package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/authmetrics/internal/ir"
	"github.com/roach88/authmetrics/internal/metrics"
)

// ErrRunNotFound is returned when a run id is not in the store.
var ErrRunNotFound = errors.New("run not found")

const runColumns = `id, seq, source, profile, summary, events,
	transcript_digest, summary_digest, engine_version, schema_version`

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// ReadRun returns the run with the given id.
// Returns an error wrapping ErrRunNotFound if there is none.
func (s *Store) ReadRun(ctx context.Context, id string) (Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("read run %s: %w", id, ErrRunNotFound)
	}
	if err != nil {
		return Run{}, fmt.Errorf("read run %s: %w", id, err)
	}
	return run, nil
}

// LatestRun returns the most recently written run.
func (s *Store) LatestRun(ctx context.Context) (Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs ORDER BY seq DESC LIMIT 1`)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("latest run: %w", ErrRunNotFound)
	}
	if err != nil {
		return Run{}, fmt.Errorf("latest run: %w", err)
	}
	return run, nil
}

// ListRuns returns stored runs, optionally restricted to one variant.
// Results are ordered deterministically: ORDER BY seq ASC, id ASC COLLATE BINARY.
//
// Returns an empty slice (not nil) if no runs match.
func (s *Store) ListRuns(ctx context.Context, variant ir.Variant) ([]Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs`
	var args []any
	if variant != "" {
		query += ` WHERE variant = ?`
		args = append(args, string(variant))
	}
	query += ` ORDER BY seq ASC, id COLLATE BINARY ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// ReadEvents returns the input lines of a run in the order they were fed
// to the engine.
func (s *Store) ReadEvents(ctx context.Context, runID string) ([]ir.Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT timestamp, source_id, text
		FROM events
		WHERE run_id = ?
		ORDER BY seq ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	events := []ir.Event{}
	for rows.Next() {
		var ev ir.Event
		if err := rows.Scan(&ev.Timestamp, &ev.SourceID, &ev.Text); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return events, nil
}

// ReadCycles returns the stored cycle table of a run, closed cycles first
// and a partial cycle, if any, last.
func (s *Store) ReadCycles(ctx context.Context, runID string) ([]metrics.CycleRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT idx, auth_ms, verify_ms, session_ms, data_messages, partial
		FROM cycles
		WHERE run_id = ?
		ORDER BY partial ASC, idx ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query cycles: %w", err)
	}
	defer rows.Close()

	cycles := []metrics.CycleRecord{}
	for rows.Next() {
		var c metrics.CycleRecord
		if err := rows.Scan(&c.Index, &c.AuthMs, &c.VerifyMs, &c.SessionMs, &c.DataMessages, &c.Partial); err != nil {
			return nil, fmt.Errorf("scan cycle: %w", err)
		}
		cycles = append(cycles, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cycles: %w", err)
	}
	return cycles, nil
}

func scanRun(row rowScanner) (Run, error) {
	var (
		run         Run
		profileJSON string
		summaryJSON string
	)
	err := row.Scan(
		&run.ID,
		&run.Seq,
		&run.Source,
		&profileJSON,
		&summaryJSON,
		&run.Events,
		&run.TranscriptDigest,
		&run.SummaryDigest,
		&run.EngineVersion,
		&run.SchemaVersion,
	)
	if err != nil {
		return Run{}, err
	}

	if run.Profile, err = unmarshalProfile(profileJSON); err != nil {
		return Run{}, fmt.Errorf("run %s: %w", run.ID, err)
	}
	if run.Summary, err = unmarshalSummary(summaryJSON); err != nil {
		return Run{}, fmt.Errorf("run %s: %w", run.ID, err)
	}
	return run, nil
}
