package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/helpdesk-stack/ticketflow/internal/tablestore"
	"github.com/helpdesk-stack/ticketflow/internal/ticket"
)

// executeStage applies the dispatched mutation steps to the table store.
// Per-step failures are recorded, never thrown: a duplicate key is an
// already_exists outcome, any other backend failure an error outcome, and
// in both cases the ordinal counts as attempted.
type executeStage struct {
	deps *Deps
}

func (s *executeStage) Name() string { return nodeExecute }

func (s *executeStage) Run(ctx context.Context, st *WorkflowState) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	ordinals := lastDispatchedOrdinals(st, nodeExecute)
	steps := planSteps(st.Plan, ordinals)

	executed := make([]ticket.ExecutedStep, 0, len(steps))
	status := ticket.StatusOK
	for _, step := range steps {
		es := s.apply(step)
		if es.Status == ticket.StepError {
			status = ticket.StatusError
		}
		executed = append(executed, es)
	}

	conf := 0.90
	if status == ticket.StatusError {
		conf = 0.40
	}
	res := ticket.ExecutionResult{
		StageMeta: ticket.NewStageMeta(st.Session.ID, conf),
		Steps:     executed,
		Status:    status,
	}
	st.Executions = append(st.Executions, res)
	s.deps.Sessions.WriteStageOutput(st.Session, nodeExecute, len(st.Executions), res)
	st.appendMessage("assistant", nodeExecute,
		fmt.Sprintf("executed %d steps, status %s", len(executed), status))
	return nil
}

func (s *executeStage) apply(step ticket.PlanStep) ticket.ExecutedStep {
	es := ticket.ExecutedStep{
		Ordinal: step.Ordinal,
		Action:  step.Action,
		Target:  targetTable(step),
	}

	switch step.Action {
	case ticket.ActionInsert:
		row := parseParams(step.Params)
		if len(row) == 0 {
			es.Status = ticket.StepError
			es.Detail = "insert step has no params"
			return es
		}
		key := row["ticket_id"]
		err := s.deps.Tables.Insert(es.Target, tablestore.Row(row))
		switch {
		case errors.Is(err, tablestore.ErrDuplicateKey):
			es.Status = ticket.StepAlreadyExists
			es.Key = key
			es.Detail = fmt.Sprintf("row %s already present in %s", key, es.Target)
		case err != nil:
			es.Status = ticket.StepError
			es.Detail = err.Error()
		default:
			es.Status = ticket.StepCompleted
			es.Key = key
			es.RowsAffected = 1
			es.Detail = fmt.Sprintf("inserted row %s into %s", key, es.Target)
		}

	case ticket.ActionUpdate:
		p := parseParams(step.Params)
		n, err := s.deps.Tables.Update(es.Target,
			p["search_column"], p["search_value"], p["update_column"], p["new_value"])
		if err != nil {
			es.Status = ticket.StepError
			es.Detail = err.Error()
			return es
		}
		es.Status = ticket.StepCompleted
		es.RowsAffected = n
		es.Key = p["search_value"]
		es.Detail = fmt.Sprintf("updated %d rows in %s", n, es.Target)

	case ticket.ActionDelete, ticket.ActionConfigure:
		// The table backend exposes no delete or configure operation;
		// these steps are recorded for manual follow-up.
		es.Status = ticket.StepCompleted
		es.Detail = fmt.Sprintf("%s recorded for manual action: %s", step.Action, step.Description)

	default:
		es.Status = ticket.StepError
		es.Detail = fmt.Sprintf("action %s is not executable", step.Action)
	}
	return es
}

func targetTable(step ticket.PlanStep) string {
	if step.Target != "" {
		return step.Target
	}
	return "tickets"
}

// parseParams splits "k=v;k=v" pairs. Malformed fragments are dropped.
func parseParams(s string) map[string]string {
	out := map[string]string{}
	for _, pair := range strings.Split(s, ";") {
		k, v, ok := strings.Cut(pair, "=")
		if !ok {
			continue
		}
		k = strings.TrimSpace(k)
		if k == "" {
			continue
		}
		out[k] = strings.TrimSpace(v)
	}
	return out
}

// planSteps resolves ordinals back to their plan steps, in plan order.
func planSteps(plan *ticket.ResolutionPlan, ordinals []int) []ticket.PlanStep {
	want := make(map[int]bool, len(ordinals))
	for _, o := range ordinals {
		want[o] = true
	}
	var out []ticket.PlanStep
	for _, step := range plan.Steps {
		if want[step.Ordinal] {
			out = append(out, step)
		}
	}
	return out
}
