package ticket

import (
	"strings"
	"testing"
)

func TestDecodePlanPayload(t *testing.T) {
	good := `{
		"summary": "fix it",
		"steps": [
			{"action": "VERIFY", "description": "check", "target": "tickets"},
			{"action": "INSERT", "description": "record", "params": "ticket_id=T-1"}
		],
		"confidence": 0.8
	}`
	p, err := DecodePlanPayload([]byte(good))
	if err != nil {
		t.Fatalf("DecodePlanPayload: %v", err)
	}
	if len(p.Steps) != 2 || p.Steps[0].Action != "VERIFY" {
		t.Fatalf("unexpected payload: %+v", p)
	}

	bad := []struct {
		name string
		raw  string
	}{
		{"not json", "verify then insert"},
		{"no steps", `{"summary": "x", "steps": []}`},
		{"unknown action", `{"steps": [{"action": "DROP", "description": "x"}]}`},
		{"confidence out of range", `{"steps": [{"action": "VERIFY", "description": "x"}], "confidence": 3}`},
	}
	for _, tc := range bad {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := DecodePlanPayload([]byte(tc.raw)); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}

func TestDecodeIntakePayload(t *testing.T) {
	p, err := DecodeIntakePayload([]byte(`{"incomplete": true, "reason": "too short", "confidence": 0.3}`))
	if err != nil {
		t.Fatalf("DecodeIntakePayload: %v", err)
	}
	if !p.Incomplete || p.Confidence != 0.3 {
		t.Fatalf("unexpected payload: %+v", p)
	}
	if _, err := DecodeIntakePayload([]byte(`{"reason": "missing required fields"}`)); err == nil {
		t.Fatal("expected error for missing required fields")
	}
}

func TestDecodeReportPayloadStatusEnum(t *testing.T) {
	if _, err := DecodeReportPayload([]byte(`{"status": "DONE", "summary": "x"}`)); err == nil {
		t.Fatal("expected error for unknown status")
	}
	p, err := DecodeReportPayload([]byte(`{"status": "PARTIALLY_RESOLVED", "summary": "mostly fixed"}`))
	if err != nil {
		t.Fatalf("DecodeReportPayload: %v", err)
	}
	if !strings.Contains(p.Summary, "fixed") {
		t.Fatalf("unexpected payload: %+v", p)
	}
}
