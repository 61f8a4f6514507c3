package engine

import (
	"context"
	"fmt"

	"github.com/oklog/ulid/v2"

	"github.com/helpdesk-stack/ticketflow/internal/llm"
	"github.com/helpdesk-stack/ticketflow/internal/ticket"
)

// dispatchStage is the center of the loop. Every decision is a pure
// function of the plan and the completed-ordinal set: the first uncompleted
// step (in plan order) picks the stage, and consecutive uncompleted steps
// eligible for that same stage ride along. When no step remains the
// decision is Report. The reasoning unit is consulted only for a
// justification; its next-stage suggestion is recorded and ignored.
type dispatchStage struct {
	deps *Deps
}

func (s *dispatchStage) Name() string { return nodeDispatch }

func (s *dispatchStage) Run(ctx context.Context, st *WorkflowState) error {
	if st.Plan == nil {
		return fmt.Errorf("dispatch: no plan in state")
	}

	// A run over a plan of n steps needs at most n stage dispatches plus
	// the final Report decision. One more is a routing bug, not progress.
	budget := len(st.Plan.Steps) + 1
	if len(st.Decisions) >= budget {
		return &BudgetExceededError{Budget: budget, Decisions: len(st.Decisions) + 1}
	}

	stage, ordinals := selectStage(st.Plan, st.CompletedOrdinals())

	justification := fmt.Sprintf("steps %v map to stage %s", ordinals, stage)
	if stage == nodeReport {
		justification = "all plan steps satisfied, producing report"
	}

	decision := ticket.DispatchDecision{
		StageMeta:     ticket.NewStageMeta(st.Session.ID, 1.0),
		ID:            ulid.Make().String(),
		Decision:      len(st.Decisions) + 1,
		Stage:         stage,
		StepOrdinals:  ordinals,
		Justification: justification,
		AdvisoryNext:  s.advisory(ctx, st, stage, ordinals),
	}
	st.Decisions = append(st.Decisions, decision)
	s.deps.Sessions.WriteStageOutput(st.Session, nodeDispatch, decision.Decision, decision)
	st.appendMessage("assistant", nodeDispatch, decision.Justification)
	s.deps.Log.Info("dispatch decision",
		"session_id", st.Session.ID,
		"decision", decision.Decision,
		"stage", stage,
		"step_ordinals", ordinals,
		"advisory_next", decision.AdvisoryNext)
	return nil
}

// selectStage maps the first uncompleted plan step to its eligible stage
// and batches the consecutive uncompleted steps that share it.
func selectStage(plan *ticket.ResolutionPlan, done map[int]bool) (string, []int) {
	var stage string
	var ordinals []int
	for _, step := range plan.Steps {
		if done[step.Ordinal] {
			if stage != "" {
				break
			}
			continue
		}
		s := stageFor(step)
		if stage == "" {
			stage = s
		} else if s != stage {
			break
		}
		ordinals = append(ordinals, step.Ordinal)
	}
	if stage == "" {
		return nodeReport, nil
	}
	return stage, ordinals
}

// stageFor is the fixed action-to-stage mapping. Lookup steps go to
// retrieval regardless of action.
func stageFor(step ticket.PlanStep) string {
	if step.Lookup {
		return nodeRetrieve
	}
	if step.Action == ticket.ActionVerify {
		return nodeValidate
	}
	return nodeExecute
}

// advisory asks the unit what it would do next. Best effort: failures are
// logged and the decision stands on its own.
func (s *dispatchStage) advisory(ctx context.Context, st *WorkflowState, stage string, ordinals []int) string {
	reply, err := s.deps.Unit.Invoke(ctx, llm.Request{
		Stage:  nodeDispatch,
		Prompt: s.deps.Prompts.Dispatch,
		Input:  fmt.Sprintf("plan: %s; completed: %d of %d; chosen: %s %v", st.Plan.Summary, len(st.CompletedOrdinals()), len(st.Plan.Steps), stage, ordinals),
	})
	if err != nil {
		s.deps.Log.Debug("dispatch advisory unavailable", "session_id", st.Session.ID, "error", err)
		return ""
	}
	raw, ok := llm.Payload(reply)
	if !ok {
		return ""
	}
	p, err := ticket.DecodeDispatchPayload(raw)
	if err != nil {
		s.deps.Log.Debug("dispatch advisory payload rejected", "session_id", st.Session.ID, "error", err)
		return ""
	}
	if p.NextStage != "" && p.NextStage != stage {
		s.deps.Log.Info("dispatch advisory disagrees with routing",
			"session_id", st.Session.ID, "advisory", p.NextStage, "chosen", stage)
	}
	return p.NextStage
}
