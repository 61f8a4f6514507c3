package engine

import (
	"context"

	"github.com/helpdesk-stack/ticketflow/internal/llm"
	"github.com/helpdesk-stack/ticketflow/internal/ticket"
)

// intakeStage asks the reasoning unit whether the ticket is complete enough
// to plan against. A failed call or an unusable payload falls back to a
// zero-confidence result, which routes to refinement, the conservative
// path; intake never aborts the run.
type intakeStage struct {
	deps *Deps
}

func (s *intakeStage) Name() string { return nodeIntake }

func (s *intakeStage) Run(ctx context.Context, st *WorkflowState) error {
	res := s.assess(ctx, st)
	if err := st.SetIntake(res); err != nil {
		return err
	}
	s.deps.Sessions.WriteStageOutput(st.Session, nodeIntake, 0, res)
	st.appendMessage("assistant", nodeIntake, res.Reason)
	return nil
}

func (s *intakeStage) assess(ctx context.Context, st *WorkflowState) *ticket.IntakeResult {
	reply, err := s.deps.Unit.Invoke(ctx, llm.Request{
		Stage:  nodeIntake,
		Prompt: s.deps.Prompts.Intake,
		Input:  st.TicketText,
	})
	if err != nil {
		s.deps.Log.Warn("intake unit call failed, using fallback",
			"session_id", st.Session.ID, "error", err)
		return s.fallback(st, err.Error())
	}
	raw, ok := llm.Payload(reply)
	if !ok {
		s.deps.Log.Warn("intake reply had no structured payload, using fallback",
			"session_id", st.Session.ID)
		return s.fallback(st, "reply had no structured payload")
	}
	p, err := ticket.DecodeIntakePayload(raw)
	if err != nil {
		s.deps.Log.Warn("intake payload rejected, using fallback",
			"session_id", st.Session.ID, "error", err)
		return s.fallback(st, err.Error())
	}
	return &ticket.IntakeResult{
		StageMeta:   ticket.NewStageMeta(st.Session.ID, p.Confidence),
		Incomplete:  p.Incomplete,
		Reason:      p.Reason,
		RefinedText: p.RefinedText,
		RoutingHint: p.RoutingHint,
	}
}

// fallback is the fail-safe: zero confidence always sends the ticket to
// refinement on ambiguity. The raw failure is kept in the reason.
func (s *intakeStage) fallback(st *WorkflowState, cause string) *ticket.IntakeResult {
	return &ticket.IntakeResult{
		StageMeta:   ticket.NewStageMeta(st.Session.ID, 0),
		Incomplete:  true,
		Reason:      "intake fallback: " + cause,
		RoutingHint: "needs refinement",
	}
}
