package tablestore

import (
	"errors"
	"testing"

	"github.com/helpdesk-stack/ticketflow/internal/logging"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(t.TempDir(), logging.NewForTest())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	return s
}

func TestInsertAndGet(t *testing.T) {
	s := newTestStore(t)
	row := Row{"ticket_id": "T-1", "description": "db timeout", "status": "open"}
	if err := s.Insert("tickets", row); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	got, err := s.Get("tickets", "T-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got["status"] != "open" || got["description"] != "db timeout" {
		t.Fatalf("unexpected row: %v", got)
	}
}

func TestDuplicateInsertLeavesTableUntouched(t *testing.T) {
	s := newTestStore(t)
	row := Row{"ticket_id": "T-1", "description": "first", "status": "open"}
	if err := s.Insert("tickets", row); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	dup := Row{"ticket_id": "T-1", "description": "second", "status": "closed"}
	err := s.Insert("tickets", dup)
	if !errors.Is(err, ErrDuplicateKey) {
		t.Fatalf("expected ErrDuplicateKey, got %v", err)
	}
	n, err := s.Count("tickets")
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if n != 1 {
		t.Fatalf("row count changed after duplicate insert: %d", n)
	}
	got, _ := s.Get("tickets", "T-1")
	if got["description"] != "first" {
		t.Fatalf("duplicate insert overwrote row: %v", got)
	}
}

func TestUpdate(t *testing.T) {
	s := newTestStore(t)
	for _, r := range []Row{
		{"ticket_id": "T-1", "status": "open"},
		{"ticket_id": "T-2", "status": "open"},
		{"ticket_id": "T-3", "status": "closed"},
	} {
		if err := s.Insert("tickets", r); err != nil {
			t.Fatalf("Insert: %v", err)
		}
	}
	n, err := s.Update("tickets", "status", "open", "status", "resolved")
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if n != 2 {
		t.Fatalf("Update changed %d rows, want 2", n)
	}
	n, err = s.Update("tickets", "status", "open", "status", "resolved")
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if n != 0 {
		t.Fatalf("second Update changed %d rows, want 0", n)
	}
	if _, err := s.Update("tickets", "nope", "x", "status", "y"); err == nil {
		t.Fatal("expected error for unknown search column")
	}
}

func TestFind(t *testing.T) {
	s := newTestStore(t)
	for _, r := range []Row{
		{"ticket_id": "T-1", "status": "open"},
		{"ticket_id": "T-2", "status": "open"},
		{"ticket_id": "T-3", "status": "closed"},
	} {
		if err := s.Insert("tickets", r); err != nil {
			t.Fatalf("Insert: %v", err)
		}
	}
	open, err := s.Find("tickets", "status", "open")
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if len(open) != 2 {
		t.Fatalf("Find matched %d rows, want 2", len(open))
	}
	none, err := s.Find("tickets", "status", "pending")
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if len(none) != 0 {
		t.Fatalf("Find matched %d rows, want 0", len(none))
	}
	if _, err := s.Find("tickets", "nope", "x"); err == nil {
		t.Fatal("expected error for unknown column")
	}
}

func TestGetMissing(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.Get("tickets", "T-404"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := s.Insert("tickets", Row{"ticket_id": "T-1"}); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if _, err := s.Get("tickets", "T-404"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestEnsureTable(t *testing.T) {
	s := newTestStore(t)
	if err := s.EnsureTable("agents", []string{"agent_id", "name"}); err != nil {
		t.Fatalf("EnsureTable: %v", err)
	}
	// Idempotent, and keeps existing data.
	if err := s.Insert("agents", Row{"agent_id": "A-1", "name": "pat"}); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if err := s.EnsureTable("agents", []string{"agent_id", "name"}); err != nil {
		t.Fatalf("EnsureTable again: %v", err)
	}
	n, _ := s.Count("agents")
	if n != 1 {
		t.Fatalf("EnsureTable dropped rows: count %d", n)
	}
}
