package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/helpdesk-stack/ticketflow/internal/tablestore"
	"github.com/helpdesk-stack/ticketflow/internal/ticket"
)

// validateStage cross-checks the run so far: every row a completed INSERT
// claims to have written must be readable back from the table store, and
// failed or conflicted executions are surfaced as issues. The check is
// deterministic; no reasoning-unit call is involved.
type validateStage struct {
	deps *Deps
}

func (s *validateStage) Name() string { return nodeValidate }

func (s *validateStage) Run(ctx context.Context, st *WorkflowState) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	ordinals := lastDispatchedOrdinals(st, nodeValidate)

	var issues []ticket.ValidationIssue
	status := ticket.StatusOK
	for _, exec := range st.Executions {
		for _, step := range exec.Steps {
			switch step.Status {
			case ticket.StepError:
				issues = append(issues, ticket.ValidationIssue{
					Severity:    ticket.SeverityCritical,
					Description: fmt.Sprintf("step %d (%s) failed: %s", step.Ordinal, step.Action, step.Detail),
				})
			case ticket.StepAlreadyExists:
				issues = append(issues, ticket.ValidationIssue{
					Severity:    ticket.SeverityWarning,
					Description: fmt.Sprintf("step %d (%s) hit an existing row: %s", step.Ordinal, step.Action, step.Detail),
				})
			case ticket.StepCompleted:
				if step.Action != ticket.ActionInsert || step.Key == "" {
					continue
				}
				_, err := s.deps.Tables.Get(step.Target, step.Key)
				if errors.Is(err, tablestore.ErrNotFound) {
					issues = append(issues, ticket.ValidationIssue{
						Severity:    ticket.SeverityCritical,
						Description: fmt.Sprintf("row %s missing from %s after insert", step.Key, step.Target),
					})
				} else if err != nil {
					status = ticket.StatusError
					issues = append(issues, ticket.ValidationIssue{
						Severity:    ticket.SeverityWarning,
						Description: fmt.Sprintf("could not re-read %s[%s]: %v", step.Target, step.Key, err),
					})
				}
			}
		}
	}

	valid := true
	conf := 0.92
	for _, is := range issues {
		if is.Severity == ticket.SeverityCritical {
			valid = false
			conf = 0.30
			break
		}
		conf = 0.70
	}

	res := ticket.ValidationResult{
		StageMeta:    ticket.NewStageMeta(st.Session.ID, conf),
		StepOrdinals: ordinals,
		Valid:        valid,
		Issues:       issues,
		Recommendations: []string{
			"Monitor system for 24 hours",
			"Document solution in knowledge base",
		},
		Status: status,
	}
	st.Validations = append(st.Validations, res)
	s.deps.Sessions.WriteStageOutput(st.Session, nodeValidate, len(st.Validations), res)
	st.appendMessage("assistant", nodeValidate,
		fmt.Sprintf("validation valid=%t with %d issues", valid, len(issues)))
	return nil
}
