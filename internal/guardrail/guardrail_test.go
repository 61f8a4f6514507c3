package guardrail

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/helpdesk-stack/ticketflow/internal/logging"
)

type stubChecker struct {
	finding Finding
	err     error
}

func (c *stubChecker) Check(ctx context.Context, text string) (Finding, error) {
	return c.finding, c.err
}

func TestScreenFailsClosedOnBackendError(t *testing.T) {
	gate, err := NewGate(&stubChecker{err: errors.New("connection reset")}, logging.NewForTest())
	if err != nil {
		t.Fatalf("NewGate: %v", err)
	}
	if _, err := gate.Screen(context.Background(), "some ticket text"); err == nil {
		t.Fatal("expected error from unreachable detector")
	}
}

func TestScreenConvertsBlockIndicatorErrors(t *testing.T) {
	gate, _ := NewGate(&stubChecker{err: errors.New("request refused: EMAIL_ADDRESS and US_SSN detected, PII policy")}, logging.NewForTest())
	f, err := gate.Screen(context.Background(), "contact me at a@b.com")
	if err != nil {
		t.Fatalf("Screen: %v", err)
	}
	if !f.Blocked {
		t.Fatal("expected blocked finding")
	}
	want := map[string]bool{"EMAIL_ADDRESS": true, "US_SSN": true}
	for _, c := range f.Categories {
		delete(want, c)
	}
	if len(want) != 0 {
		t.Fatalf("categories missing from %v", f.Categories)
	}
}

func TestScreenExcerptIsBounded(t *testing.T) {
	long := strings.Repeat("a", 500)
	gate, _ := NewGate(&stubChecker{finding: Finding{Blocked: true}}, logging.NewForTest())
	f, err := gate.Screen(context.Background(), long)
	if err != nil {
		t.Fatalf("Screen: %v", err)
	}
	if len(f.Excerpt) > MaxExcerptLen+len("...") {
		t.Fatalf("excerpt too long: %d", len(f.Excerpt))
	}
	if len(f.Categories) == 0 {
		t.Fatal("blocked finding must carry at least one category")
	}
}

func TestPatternChecker(t *testing.T) {
	pc := NewPatternChecker()
	cases := []struct {
		name    string
		text    string
		blocked bool
		cat     string
	}{
		{"clean", "database timeout in production", false, ""},
		{"email", "reach me at jane.doe@example.com please", true, "EMAIL_ADDRESS"},
		{"ssn", "my ssn is 123-45-6789", true, "US_SSN"},
		{"ip", "server 10.0.0.15 is down", true, "IP_ADDRESS"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f, err := pc.Check(context.Background(), tc.text)
			if err != nil {
				t.Fatalf("Check: %v", err)
			}
			if f.Blocked != tc.blocked {
				t.Fatalf("blocked = %v, want %v (categories %v)", f.Blocked, tc.blocked, f.Categories)
			}
			if tc.cat != "" {
				found := false
				for _, c := range f.Categories {
					if c == tc.cat {
						found = true
					}
				}
				if !found {
					t.Fatalf("category %s missing from %v", tc.cat, f.Categories)
				}
			}
		})
	}
}
