package llm

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
)

// SimulatedUnit is a deterministic reasoning unit for local runs and
// examples: no network, no model, stable output for a given input.
type SimulatedUnit struct{}

func (u *SimulatedUnit) Invoke(ctx context.Context, req Request) (Reply, error) {
	if err := ctx.Err(); err != nil {
		return Reply{}, err
	}
	switch req.Stage {
	case "intake":
		return u.intake(req.Input), nil
	case "refine":
		return structuredReply(map[string]any{
			"improved_text": strings.TrimSpace(req.Input) + " (reported via support portal; environment: production; scope: all users)",
			"reason":        "added environment and scope context",
			"confidence":    0.70,
		}), nil
	case "plan":
		return u.plan(req.Input), nil
	case "dispatch":
		return structuredReply(map[string]any{
			"next_stage":    "",
			"justification": "proceeding through the plan in ordinal order",
		}), nil
	case "report":
		return structuredReply(map[string]any{
			"status":     "RESOLVED",
			"summary":    "All plan steps were executed and verified against the ticket store.",
			"follow_ups": []string{"Monitor system for 24 hours", "Document solution in knowledge base"},
			"confidence": 0.92,
		}), nil
	default:
		return Reply{Text: "Acknowledged: " + req.Input}, nil
	}
}

// The intake heuristic mirrors the refinement check used before a real
// model is wired in: short or question-form tickets are treated as
// incomplete and routed to refinement.
func (u *SimulatedUnit) intake(text string) Reply {
	trimmed := strings.TrimSpace(text)
	if len(trimmed) < 20 || strings.HasSuffix(trimmed, "?") {
		return structuredReply(map[string]any{
			"incomplete":   true,
			"reason":       "ticket text is too short to plan against",
			"confidence":   0.35,
			"routing_hint": "needs refinement",
		})
	}
	return structuredReply(map[string]any{
		"incomplete":   false,
		"reason":       "ticket describes symptom, impact and timing",
		"confidence":   0.85,
		"routing_hint": "proceed to planning",
	})
}

func (u *SimulatedUnit) plan(text string) Reply {
	id := "TF-" + shortDigest(text)
	return structuredReply(map[string]any{
		"summary": "Verify the reported failure against known tickets, then record it for tracking.",
		"steps": []map[string]any{
			{
				"action":      "VERIFY",
				"description": "Cross-check the reported symptom against the ticket store",
				"target":      "tickets",
				"lookup":      false,
			},
			{
				"action":      "INSERT",
				"description": "Record the incident in the ticket store",
				"target":      "tickets",
				"params":      fmt.Sprintf("ticket_id=%s;description=%s;status=open", id, sanitizeParam(text)),
			},
		},
		"complexity":         "low",
		"estimated_duration": "30m",
		"confidence":         0.80,
	})
}

func structuredReply(v any) Reply {
	b, err := json.Marshal(v)
	if err != nil {
		return Reply{Text: fmt.Sprint(v)}
	}
	return Reply{Text: string(b), Structured: b}
}

func shortDigest(s string) string {
	sum := sha256.Sum256([]byte(s))
	return strings.ToUpper(hex.EncodeToString(sum[:4]))
}

func sanitizeParam(s string) string {
	s = strings.ReplaceAll(s, ";", ",")
	s = strings.ReplaceAll(s, "=", ":")
	return strings.TrimSpace(s)
}
