package store

import (
	"path/filepath"
	"testing"

	"github.com/roach88/authmetrics/internal/classify"
	"github.com/roach88/authmetrics/internal/engine"
	"github.com/roach88/authmetrics/internal/ir"
	"github.com/roach88/authmetrics/internal/logging"
)

// createTestStore creates a new store in a temp dir for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestRun analyzes events under the variant's default profile and
// returns the record to store.
func createTestRun(t *testing.T, id string, v ir.Variant, events []ir.Event) Run {
	t.Helper()
	p := ir.MustProfile(v)
	c, err := classify.ForProfile(p)
	if err != nil {
		t.Fatalf("ForProfile() failed: %v", err)
	}
	res, final, err := engine.Replay(p, c, events,
		engine.WithRunIDGenerator(engine.NewFixedGenerator(id)),
		engine.WithLogger(logging.Discard()),
	)
	if err != nil {
		t.Fatalf("Replay() failed: %v", err)
	}
	run, err := NewRun("test.log", res, p, final, events)
	if err != nil {
		t.Fatalf("NewRun() failed: %v", err)
	}
	return run
}
