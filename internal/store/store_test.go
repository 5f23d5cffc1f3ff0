package store

import (
	"context"
	"path/filepath"
	"testing"
)

func TestOpen_Pragmas(t *testing.T) {
	s := createTestStore(t)

	tests := []struct {
		name     string
		expected string
	}{
		{"journal_mode", "wal"},
		{"synchronous", "1"},
		{"busy_timeout", "5000"},
		{"foreign_keys", "1"},
	}
	for _, tt := range tests {
		got, err := s.pragma(context.Background(), tt.name)
		if err != nil {
			t.Fatalf("pragma(%s): %v", tt.name, err)
		}
		if got != tt.expected {
			t.Errorf("%s = %q, want %q", tt.name, got, tt.expected)
		}
	}
}

func TestOpen_InMemory(t *testing.T) {
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open(:memory:) failed: %v", err)
	}
	defer s.Close()

	fk, err := s.pragma(context.Background(), "foreign_keys")
	if err != nil {
		t.Fatalf("pragma(foreign_keys): %v", err)
	}
	if fk != "1" {
		t.Errorf("foreign_keys = %q, want 1", fk)
	}
}

func TestOpen_SchemaVersion(t *testing.T) {
	s := createTestStore(t)

	version, err := s.userVersion(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if version != schemaVersion() {
		t.Errorf("user_version = %d, want %d", version, schemaVersion())
	}

	var name string
	err = s.DB().QueryRow(
		`SELECT name FROM sqlite_master WHERE type = 'index' AND name = 'idx_events_run_label'`,
	).Scan(&name)
	if err != nil {
		t.Errorf("label index missing: %v", err)
	}
}

// TestOpen_MigratesOldDatabase tests that a database written before the
// label index existed gains it on the next Open.
func TestOpen_MigratesOldDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "old.db")

	s1, err := Open(path)
	if err != nil {
		t.Fatalf("first Open() failed: %v", err)
	}
	if _, err := s1.DB().Exec(`DROP INDEX idx_events_run_label`); err != nil {
		t.Fatal(err)
	}
	if _, err := s1.DB().Exec(`PRAGMA user_version = 0`); err != nil {
		t.Fatal(err)
	}
	s1.Close()

	s2, err := Open(path)
	if err != nil {
		t.Fatalf("second Open() failed: %v", err)
	}
	defer s2.Close()

	var n int
	if err := s2.DB().QueryRow(
		`SELECT COUNT(*) FROM sqlite_master WHERE type = 'index' AND name = 'idx_events_run_label'`,
	).Scan(&n); err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("label index count = %d, want 1", n)
	}
	if v, _ := s2.userVersion(context.Background()); v != schemaVersion() {
		t.Errorf("user_version = %d, want %d", v, schemaVersion())
	}
}

func TestOpen_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := OpenContext(ctx, filepath.Join(t.TempDir(), "never.db")); err == nil {
		t.Error("OpenContext() with a canceled context succeeded")
	}
}

func TestOpen_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "twice.db")

	s1, err := Open(path)
	if err != nil {
		t.Fatalf("first Open() failed: %v", err)
	}
	s1.Close()

	s2, err := Open(path)
	if err != nil {
		t.Fatalf("second Open() failed: %v", err)
	}
	defer s2.Close()

	for _, table := range []string{"runs", "events"} {
		var n int
		if err := s2.DB().QueryRow("SELECT COUNT(*) FROM " + table).Scan(&n); err != nil {
			t.Errorf("table %s: %v", table, err)
		}
	}
}

func TestClose_Nil(t *testing.T) {
	var s Store
	if err := s.Close(); err != nil {
		t.Errorf("Close() on empty store = %v", err)
	}
}
