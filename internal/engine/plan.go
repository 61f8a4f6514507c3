package engine

import (
	"context"

	"github.com/helpdesk-stack/ticketflow/internal/llm"
	"github.com/helpdesk-stack/ticketflow/internal/ticket"
)

// planStage turns the best available ticket description into an ordered
// resolution plan. Ordinals are assigned here, in reply order, starting at
// 1; the reasoning unit never controls them. An unusable reply degrades to
// a minimal single-VERIFY plan so the run still reaches a report.
type planStage struct {
	deps *Deps
}

func (s *planStage) Name() string { return nodePlan }

func (s *planStage) Run(ctx context.Context, st *WorkflowState) error {
	plan := s.plan(ctx, st)
	if err := plan.Validate(); err != nil {
		// A decoded payload that fails plan invariants is treated the
		// same as a malformed one.
		s.deps.Log.Warn("plan rejected, using fallback",
			"session_id", st.Session.ID, "error", err)
		plan = s.fallback(st, err.Error())
	}
	if err := st.SetPlan(plan); err != nil {
		return err
	}
	s.deps.Sessions.WriteStageOutput(st.Session, nodePlan, 0, plan)
	st.appendMessage("assistant", nodePlan, plan.Summary)
	return nil
}

func (s *planStage) plan(ctx context.Context, st *WorkflowState) *ticket.ResolutionPlan {
	reply, err := s.deps.Unit.Invoke(ctx, llm.Request{
		Stage:  nodePlan,
		Prompt: s.deps.Prompts.Plan,
		Input:  st.BestDescription(),
	})
	if err != nil {
		s.deps.Log.Warn("plan unit call failed, using fallback",
			"session_id", st.Session.ID, "error", err)
		return s.fallback(st, err.Error())
	}
	raw, ok := llm.Payload(reply)
	if !ok {
		s.deps.Log.Warn("plan reply had no structured payload, using fallback",
			"session_id", st.Session.ID)
		return s.fallback(st, "reply had no structured payload")
	}
	p, err := ticket.DecodePlanPayload(raw)
	if err != nil {
		s.deps.Log.Warn("plan payload rejected, using fallback",
			"session_id", st.Session.ID, "error", err)
		return s.fallback(st, err.Error())
	}

	steps := make([]ticket.PlanStep, 0, len(p.Steps))
	for i, sp := range p.Steps {
		action, aerr := ticket.ParseActionType(sp.Action)
		if aerr != nil {
			s.deps.Log.Warn("plan step dropped",
				"session_id", st.Session.ID, "step", i, "error", aerr)
			continue
		}
		steps = append(steps, ticket.PlanStep{
			Ordinal:     len(steps) + 1,
			Action:      action,
			Description: sp.Description,
			Target:      sp.Target,
			Params:      sp.Params,
			Lookup:      sp.Lookup,
		})
	}
	return &ticket.ResolutionPlan{
		StageMeta:         ticket.NewStageMeta(st.Session.ID, p.Confidence),
		Summary:           p.Summary,
		Steps:             steps,
		Complexity:        p.Complexity,
		EstimatedDuration: p.EstimatedDuration,
	}
}

// fallback is the minimal plan: verify the reported symptom and nothing
// else. Exactly one step so the dispatch budget stays tight; the failure
// that forced the fallback is restated in the step.
func (s *planStage) fallback(st *WorkflowState, cause string) *ticket.ResolutionPlan {
	return &ticket.ResolutionPlan{
		StageMeta: ticket.NewStageMeta(st.Session.ID, 0),
		Summary:   "Planning degraded: " + cause,
		Steps: []ticket.PlanStep{{
			Ordinal:     1,
			Action:      ticket.ActionVerify,
			Description: "Verify the reported symptom against the ticket store (planning failed: " + cause + ")",
			Target:      "tickets",
		}},
		Complexity: "unknown",
	}
}
