package engine

import (
	"fmt"
	"time"

	"github.com/helpdesk-stack/ticketflow/internal/guardrail"
	"github.com/helpdesk-stack/ticketflow/internal/session"
	"github.com/helpdesk-stack/ticketflow/internal/ticket"
)

// Message is one entry in the session's append-only conversation log.
type Message struct {
	Role      string    `json:"role"`
	Stage     string    `json:"stage"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// WorkflowState is the single record threaded through every stage. The
// message log and the per-visit slices are append-only; the single-shot
// slots (Guard, Intake, Refinement, Plan, Report) are write-once. Stages
// read earlier slots but never overwrite them.
type WorkflowState struct {
	Session    *session.Session
	TicketText string

	Messages []Message

	Guard      *guardrail.Finding
	Intake     *ticket.IntakeResult
	Refinement *ticket.RefinementResult
	Plan       *ticket.ResolutionPlan
	Report     *ticket.Report

	Retrievals  []ticket.RetrievalResult
	Executions  []ticket.ExecutionResult
	Validations []ticket.ValidationResult
	Decisions   []ticket.DispatchDecision
}

func (s *WorkflowState) appendMessage(role, stage, content string) {
	s.Messages = append(s.Messages, Message{
		Role:      role,
		Stage:     stage,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	})
}

func (s *WorkflowState) setSlot(name string, occupied bool) error {
	if occupied {
		return fmt.Errorf("stage slot %q already set", name)
	}
	return nil
}

// SetIntake stores the intake result; a second write is a routing bug.
func (s *WorkflowState) SetIntake(r *ticket.IntakeResult) error {
	if err := s.setSlot("intake", s.Intake != nil); err != nil {
		return err
	}
	s.Intake = r
	return nil
}

func (s *WorkflowState) SetRefinement(r *ticket.RefinementResult) error {
	if err := s.setSlot("refinement", s.Refinement != nil); err != nil {
		return err
	}
	s.Refinement = r
	return nil
}

func (s *WorkflowState) SetPlan(p *ticket.ResolutionPlan) error {
	if err := s.setSlot("plan", s.Plan != nil); err != nil {
		return err
	}
	s.Plan = p
	return nil
}

func (s *WorkflowState) SetReport(r *ticket.Report) error {
	if err := s.setSlot("report", s.Report != nil); err != nil {
		return err
	}
	s.Report = r
	return nil
}

// BestDescription is the text later stages should reason about: the refined
// text when refinement ran, else any intake rewrite, else the original.
func (s *WorkflowState) BestDescription() string {
	if s.Refinement != nil && s.Refinement.ImprovedText != "" {
		return s.Refinement.ImprovedText
	}
	if s.Intake != nil && s.Intake.RefinedText != "" {
		return s.Intake.RefinedText
	}
	return s.TicketText
}

// CompletedOrdinals derives the set of satisfied plan ordinals from the
// per-visit results. An ordinal counts as satisfied once any visit recorded
// it, including error and already-exists outcomes; the dispatcher never
// retries an attempted step.
func (s *WorkflowState) CompletedOrdinals() map[int]bool {
	done := map[int]bool{}
	for _, r := range s.Retrievals {
		for _, o := range r.StepOrdinals {
			done[o] = true
		}
	}
	for _, e := range s.Executions {
		for _, st := range e.Steps {
			done[st.Ordinal] = true
		}
	}
	for _, v := range s.Validations {
		for _, o := range v.StepOrdinals {
			done[o] = true
		}
	}
	return done
}
