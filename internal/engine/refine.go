package engine

import (
	"context"

	"github.com/helpdesk-stack/ticketflow/internal/llm"
	"github.com/helpdesk-stack/ticketflow/internal/ticket"
)

// refineStage rewrites an incomplete ticket into an actionable description.
// Like intake, it degrades rather than aborts: when the unit can't help,
// the original text passes through unchanged at zero confidence so the run
// keeps moving.
type refineStage struct {
	deps *Deps
}

func (s *refineStage) Name() string { return nodeRefine }

func (s *refineStage) Run(ctx context.Context, st *WorkflowState) error {
	res := s.refine(ctx, st)
	if err := st.SetRefinement(res); err != nil {
		return err
	}
	s.deps.Sessions.WriteStageOutput(st.Session, nodeRefine, 0, res)
	st.appendMessage("assistant", nodeRefine, res.ImprovedText)
	return nil
}

func (s *refineStage) refine(ctx context.Context, st *WorkflowState) *ticket.RefinementResult {
	reply, err := s.deps.Unit.Invoke(ctx, llm.Request{
		Stage:  nodeRefine,
		Prompt: s.deps.Prompts.Refine,
		Input:  st.TicketText,
	})
	if err == nil {
		if raw, ok := llm.Payload(reply); ok {
			if p, derr := ticket.DecodeRefinePayload(raw); derr == nil {
				return &ticket.RefinementResult{
					StageMeta:    ticket.NewStageMeta(st.Session.ID, p.Confidence),
					ImprovedText: p.ImprovedText,
					Reason:       p.Reason,
				}
			} else {
				err = derr
			}
		}
	}
	s.deps.Log.Warn("refinement degraded to passthrough",
		"session_id", st.Session.ID, "error", err)
	reason := "refinement fallback, original text kept"
	if err != nil {
		reason += ": " + err.Error()
	}
	return &ticket.RefinementResult{
		StageMeta:    ticket.NewStageMeta(st.Session.ID, 0),
		ImprovedText: st.TicketText,
		Reason:       reason,
	}
}
