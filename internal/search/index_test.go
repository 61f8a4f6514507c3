package search

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestTicketIndexSearch(t *testing.T) {
	ix := NewTicketIndex(DefaultCorpus().Tickets)
	got, err := ix.Search(context.Background(), "database connection timeout in production", 3)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(got) == 0 {
		t.Fatal("no matches for a query straight from the corpus")
	}
	if got[0].ID != "TICKET-2" {
		t.Fatalf("top match %s, want TICKET-2", got[0].ID)
	}
	if len(got) > 3 {
		t.Fatalf("k not honored: %d results", len(got))
	}
	for i := 1; i < len(got); i++ {
		if got[i].Score > got[i-1].Score {
			t.Fatalf("results not sorted by score: %v", got)
		}
	}
}

func TestTicketIndexSearchDeterministic(t *testing.T) {
	ix := NewTicketIndex(DefaultCorpus().Tickets)
	a, _ := ix.Search(context.Background(), "errors in production", 10)
	b, _ := ix.Search(context.Background(), "errors in production", 10)
	if len(a) != len(b) {
		t.Fatalf("result sizes differ: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i].ID != b[i].ID {
			t.Fatalf("ordering unstable at %d: %s vs %s", i, a[i].ID, b[i].ID)
		}
	}
}

func TestSchemaIndexSearch(t *testing.T) {
	ix := NewSchemaIndex(DefaultCorpus().Schemas)

	got, err := ix.SearchSchemas(context.Background(), "ticket status description", 5, "")
	if err != nil {
		t.Fatalf("SearchSchemas: %v", err)
	}
	if len(got) == 0 || got[0].TableName != "tickets" {
		t.Fatalf("unexpected matches: %+v", got)
	}

	filtered, err := ix.SearchSchemas(context.Background(), "anything at all", 5, "agents")
	if err != nil {
		t.Fatalf("SearchSchemas: %v", err)
	}
	if len(filtered) != 1 || filtered[0].TableName != "agents" {
		t.Fatalf("table filter not applied: %+v", filtered)
	}
}

func TestLoadCorpusStrict(t *testing.T) {
	dir := t.TempDir()
	write := func(name, body string) string {
		t.Helper()
		p := filepath.Join(dir, name)
		if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
		return p
	}

	good := write("good.yaml", "tickets:\n  - id: T-1\n    content: db down\nschemas: []\n")
	c, err := LoadCorpus(good)
	if err != nil {
		t.Fatalf("LoadCorpus: %v", err)
	}
	if len(c.Tickets) != 1 || c.Tickets[0].ID != "T-1" {
		t.Fatalf("unexpected corpus: %+v", c)
	}

	bad := write("bad.yaml", "tickets: []\nschemas: []\nextra_key: true\n")
	if _, err := LoadCorpus(bad); err == nil {
		t.Fatal("expected error for unknown key")
	}

	empty := write("empty.yaml", "tickets: []\nschemas: []\n")
	if _, err := LoadCorpus(empty); err == nil {
		t.Fatal("expected error for empty corpus")
	}
}
