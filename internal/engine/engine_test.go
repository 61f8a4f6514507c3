package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/helpdesk-stack/ticketflow/internal/guardrail"
	"github.com/helpdesk-stack/ticketflow/internal/llm"
	"github.com/helpdesk-stack/ticketflow/internal/logging"
	"github.com/helpdesk-stack/ticketflow/internal/prompts"
	"github.com/helpdesk-stack/ticketflow/internal/search"
	"github.com/helpdesk-stack/ticketflow/internal/session"
	"github.com/helpdesk-stack/ticketflow/internal/tablestore"
)

const actionableTicket = "Database connection timeout errors in production, all API requests failing since 09:00 UTC."

func newTestEngine(t *testing.T, unit llm.Unit) *Engine {
	t.Helper()
	log := logging.NewForTest()
	sessions, err := session.NewStore(t.TempDir(), nil, log)
	if err != nil {
		t.Fatalf("session store: %v", err)
	}
	tables, err := tablestore.NewStore(t.TempDir(), log)
	if err != nil {
		t.Fatalf("table store: %v", err)
	}
	gate, err := guardrail.NewGate(guardrail.NewPatternChecker(), log)
	if err != nil {
		t.Fatalf("gate: %v", err)
	}
	corpus := search.DefaultCorpus()
	eng, err := New(Deps{
		Sessions: sessions,
		Unit:     unit,
		Guard:    gate,
		Tickets:  search.NewTicketIndex(corpus.Tickets),
		Schemas:  search.NewSchemaIndex(corpus.Schemas),
		Tables:   tables,
		Prompts:  prompts.Default(),
		Log:      log,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return eng
}

func jsonReply(s string) llm.Reply {
	return llm.Reply{Text: s, Structured: []byte(s)}
}

func TestRunEndToEndSimulatedUnit(t *testing.T) {
	eng := newTestEngine(t, &llm.SimulatedUnit{})
	res, err := eng.Run(context.Background(), actionableTicket)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	st := res.State

	if st.Refinement != nil {
		t.Fatal("confident intake should not trigger refinement")
	}
	if st.Plan == nil || len(st.Plan.Steps) != 2 {
		t.Fatalf("unexpected plan: %+v", st.Plan)
	}
	// Two plan steps allow at most three decisions.
	if len(st.Decisions) > len(st.Plan.Steps)+1 {
		t.Fatalf("%d decisions for a %d-step plan", len(st.Decisions), len(st.Plan.Steps))
	}
	last := st.Decisions[len(st.Decisions)-1]
	if last.Stage != nodeReport {
		t.Fatalf("final decision routed to %s, not report", last.Stage)
	}
	if len(st.Validations) != 1 || len(st.Executions) != 1 {
		t.Fatalf("expected one validation and one execution visit, got %d and %d",
			len(st.Validations), len(st.Executions))
	}
	if res.Report.Status != "RESOLVED" {
		t.Fatalf("status %s, want RESOLVED", res.Report.Status)
	}

	// Stage artifacts land in the session directory.
	for _, name := range []string{"session.json", "guardrail.json", "intake.json", "plan.json", "report.json", "report.md"} {
		if _, err := os.Stat(filepath.Join(st.Session.Dir, name)); err != nil {
			t.Fatalf("artifact %s missing: %v", name, err)
		}
	}
}

func TestRunGuardrailBlocks(t *testing.T) {
	eng := newTestEngine(t, &llm.SimulatedUnit{})
	_, err := eng.Run(context.Background(), "user jane.doe@example.com cannot log in to the billing portal")
	if !errors.Is(err, ErrBlocked) {
		t.Fatalf("expected ErrBlocked, got %v", err)
	}
}

func TestIntakeRoutingBoundary(t *testing.T) {
	plan := `{"summary":"s","steps":[{"action":"VERIFY","description":"check","target":"tickets"}],"confidence":0.8}`
	refine := `{"improved_text":"database timeout in production billing cluster","reason":"added scope","confidence":0.7}`

	cases := []struct {
		name       string
		confidence float64
		wantRefine bool
	}{
		{"just below threshold", 0.49, true},
		{"at threshold", 0.50, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			unit := llm.NewScriptedUnit().
				Queue(nodeIntake, jsonReply(fmt.Sprintf(`{"incomplete":%t,"reason":"r","confidence":%.2f}`, tc.wantRefine, tc.confidence))).
				Queue(nodePlan, jsonReply(plan))
			if tc.wantRefine {
				unit.Queue(nodeRefine, jsonReply(refine))
			}
			eng := newTestEngine(t, unit)
			res, err := eng.Run(context.Background(), actionableTicket)
			if err != nil {
				t.Fatalf("Run: %v", err)
			}
			gotRefine := res.State.Refinement != nil
			if gotRefine != tc.wantRefine {
				t.Fatalf("refinement ran = %v, want %v (intake confidence %.2f)",
					gotRefine, tc.wantRefine, tc.confidence)
			}
		})
	}
}

func TestIntakeParseFailureFallsBack(t *testing.T) {
	unit := llm.NewScriptedUnit().
		Queue(nodeIntake, llm.Reply{Text: "the ticket looks complete to me"})
	eng := newTestEngine(t, unit)
	res, err := eng.Run(context.Background(), actionableTicket)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	// Zero-confidence fallback routes down the conservative path: refine
	// (itself degrading to passthrough on its empty queue), then the
	// fallback plan, and the run still reaches a report.
	in := res.State.Intake
	if in == nil || in.Confidence != 0 || in.RoutingHint != "needs refinement" {
		t.Fatalf("fallback intake not applied: %+v", in)
	}
	if res.State.Refinement == nil {
		t.Fatal("zero-confidence intake must route to refinement")
	}
	if res.State.Refinement.ImprovedText != actionableTicket {
		t.Fatalf("refinement fallback must pass the text through unchanged, got %q",
			res.State.Refinement.ImprovedText)
	}
	if res.Report == nil {
		t.Fatal("run did not produce a report")
	}
}

func TestPlanParseFailureFallsBackToSingleVerify(t *testing.T) {
	unit := llm.NewScriptedUnit().
		Queue(nodeIntake, jsonReply(`{"incomplete":false,"reason":"ok","confidence":0.9}`)).
		Queue(nodePlan, llm.Reply{Text: "step one: do the thing, step two: check it"})
	eng := newTestEngine(t, unit)
	res, err := eng.Run(context.Background(), actionableTicket)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	p := res.State.Plan
	if p == nil || len(p.Steps) != 1 {
		t.Fatalf("fallback plan should have exactly one step: %+v", p)
	}
	if p.Steps[0].Action != "VERIFY" {
		t.Fatalf("fallback step action %s, want VERIFY", p.Steps[0].Action)
	}
	if len(res.State.Decisions) > 2 {
		t.Fatalf("%d decisions for a 1-step plan", len(res.State.Decisions))
	}
}

func TestDuplicateInsertIsPartiallyResolved(t *testing.T) {
	plan := `{"summary":"s","steps":[
		{"action":"INSERT","description":"record","target":"tickets","params":"ticket_id=T-9;status=open"}
	],"confidence":0.8}`
	intake := `{"incomplete":false,"reason":"ok","confidence":0.9}`

	run := func(eng *Engine) *Result {
		t.Helper()
		res, err := eng.Run(context.Background(), actionableTicket)
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
		return res
	}

	unit := llm.NewScriptedUnit().
		Queue(nodeIntake, jsonReply(intake)).Queue(nodePlan, jsonReply(plan)).
		Queue(nodeIntake, jsonReply(intake)).Queue(nodePlan, jsonReply(plan))
	eng := newTestEngine(t, unit)

	first := run(eng)
	if first.Report.Status != "RESOLVED" {
		t.Fatalf("first run status %s, want RESOLVED", first.Report.Status)
	}
	second := run(eng)
	if second.Report.Status != "PARTIALLY_RESOLVED" {
		t.Fatalf("second run status %s, want PARTIALLY_RESOLVED", second.Report.Status)
	}
	steps := second.State.Executions[0].Steps
	if len(steps) != 1 || steps[0].Status != "already_exists" {
		t.Fatalf("unexpected execution outcome: %+v", steps)
	}
}
