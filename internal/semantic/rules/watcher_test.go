package rules

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestReloadSchemaSwapsProgramInfo(t *testing.T) {
	e, err := New()
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	before := e.programInfo

	if err := e.ReloadSchema(schema); err != nil {
		t.Fatalf("ReloadSchema() error = %v", err)
	}
	if e.programInfo == before {
		t.Fatal("expected ReloadSchema to install a new ProgramInfo, got the same pointer")
	}
}

func TestReloadSchemaRejectsInvalidSource(t *testing.T) {
	e, err := New()
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	before := e.programInfo

	if err := e.ReloadSchema("not valid mangle ("); err == nil {
		t.Fatal("expected ReloadSchema to reject malformed source")
	}
	if e.programInfo != before {
		t.Fatal("a failed reload must not disturb the previously compiled schema")
	}
}

func TestWatchSchemaReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "schema.mg")
	if err := os.WriteFile(path, []byte(schema), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	e, err := New()
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	before := e.programInfo

	w, err := WatchSchema(e, path)
	if err != nil {
		t.Fatalf("WatchSchema() error = %v", err)
	}
	defer w.Stop()

	// A distinct but still-valid schema: same declarations and rules, plus
	// a harmless extra derived predicate, so a successful reload is
	// observable as a changed ProgramInfo pointer without depending on
	// any particular derived fact.
	updated := schema + "\nalways_true(\"x\") :- cnv_verb(\"x\").\n"
	if err := os.WriteFile(path, []byte(updated), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	deadline := time.After(2 * time.Second)
	tick := time.NewTicker(20 * time.Millisecond)
	defer tick.Stop()
	for {
		select {
		case <-tick.C:
			e.mu.Lock()
			changed := e.programInfo != before
			e.mu.Unlock()
			if changed {
				return
			}
		case <-deadline:
			t.Fatal("schema was not hot-reloaded within the deadline")
		}
	}
}

func TestWatchSchemaStopIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "schema.mg")
	if err := os.WriteFile(path, []byte(schema), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	e, err := New()
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	w, err := WatchSchema(e, path)
	if err != nil {
		t.Fatalf("WatchSchema() error = %v", err)
	}
	w.Stop()
	w.Stop() // must not panic or deadlock on a second call
}
