package engine

import (
	"testing"

	"github.com/helpdesk-stack/ticketflow/internal/ticket"
)

func TestStateSlotsAreWriteOnce(t *testing.T) {
	st := &WorkflowState{}
	if err := st.SetIntake(&ticket.IntakeResult{}); err != nil {
		t.Fatalf("SetIntake: %v", err)
	}
	if err := st.SetIntake(&ticket.IntakeResult{}); err == nil {
		t.Fatal("second SetIntake must fail")
	}
	if err := st.SetPlan(&ticket.ResolutionPlan{}); err != nil {
		t.Fatalf("SetPlan: %v", err)
	}
	if err := st.SetPlan(&ticket.ResolutionPlan{}); err == nil {
		t.Fatal("second SetPlan must fail")
	}
}

func TestBestDescription(t *testing.T) {
	st := &WorkflowState{TicketText: "original"}
	if got := st.BestDescription(); got != "original" {
		t.Fatalf("got %q", got)
	}
	st.Intake = &ticket.IntakeResult{RefinedText: "intake rewrite"}
	if got := st.BestDescription(); got != "intake rewrite" {
		t.Fatalf("got %q", got)
	}
	st.Refinement = &ticket.RefinementResult{ImprovedText: "refined"}
	if got := st.BestDescription(); got != "refined" {
		t.Fatalf("got %q", got)
	}
}

func TestCompletedOrdinalsCountsAllOutcomes(t *testing.T) {
	st := &WorkflowState{
		Retrievals: []ticket.RetrievalResult{{StepOrdinals: []int{1}, Status: ticket.StatusError}},
		Executions: []ticket.ExecutionResult{{Steps: []ticket.ExecutedStep{
			{Ordinal: 2, Status: ticket.StepAlreadyExists},
			{Ordinal: 3, Status: ticket.StepError},
		}}},
		Validations: []ticket.ValidationResult{{StepOrdinals: []int{4}}},
	}
	done := st.CompletedOrdinals()
	for _, o := range []int{1, 2, 3, 4} {
		if !done[o] {
			t.Fatalf("ordinal %d not marked attempted: %v", o, done)
		}
	}
}
