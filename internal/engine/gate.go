package engine

import (
	"context"
	"fmt"
	"strings"
)

// guardrailStage screens the raw ticket before any other stage sees it.
// A blocked finding terminates the run with ErrBlocked; the finding is
// still persisted so the block is auditable.
type guardrailStage struct {
	deps *Deps
}

func (s *guardrailStage) Name() string { return nodeGuardrail }

func (s *guardrailStage) Run(ctx context.Context, st *WorkflowState) error {
	f, err := s.deps.Guard.Screen(ctx, st.TicketText)
	if err != nil {
		return fmt.Errorf("guardrail: %w", err)
	}
	st.Guard = &f
	s.deps.Sessions.WriteStageOutput(st.Session, nodeGuardrail, 0, f)
	if f.Blocked {
		st.appendMessage("system", nodeGuardrail,
			"ticket blocked: "+strings.Join(f.Categories, ", "))
		return fmt.Errorf("%w: %s", ErrBlocked, strings.Join(f.Categories, ", "))
	}
	st.appendMessage("system", nodeGuardrail, "ticket passed guardrail screening")
	return nil
}
