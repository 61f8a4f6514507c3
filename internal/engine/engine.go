// Package engine runs the ticket-resolution workflow: a fixed stage graph
// driven by deterministic routing, with every stage output persisted to the
// session directory as it is produced.
package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/helpdesk-stack/ticketflow/internal/guardrail"
	"github.com/helpdesk-stack/ticketflow/internal/llm"
	"github.com/helpdesk-stack/ticketflow/internal/prompts"
	"github.com/helpdesk-stack/ticketflow/internal/search"
	"github.com/helpdesk-stack/ticketflow/internal/session"
	"github.com/helpdesk-stack/ticketflow/internal/tablestore"
	"github.com/helpdesk-stack/ticketflow/internal/ticket"
)

// Deps carries everything the stages need. All fields except MaxNodeVisits
// and RetrievalK are required.
type Deps struct {
	Sessions *session.Store
	Unit     llm.Unit
	Guard    *guardrail.Gate
	Tickets  search.TicketSearcher
	Schemas  search.SchemaSearcher
	Tables   *tablestore.Store
	Prompts  prompts.Bundle
	Log      *slog.Logger

	// MaxNodeVisits bounds visits to any one stage in a run. Zero means
	// the default of 25.
	MaxNodeVisits int

	// RetrievalK is the k passed to the lookup backends. Zero means 10.
	RetrievalK int
}

func (d *Deps) validate() error {
	switch {
	case d.Sessions == nil:
		return fmt.Errorf("engine: session store is required")
	case d.Unit == nil:
		return fmt.Errorf("engine: reasoning unit is required")
	case d.Guard == nil:
		return fmt.Errorf("engine: guardrail gate is required")
	case d.Tickets == nil:
		return fmt.Errorf("engine: ticket searcher is required")
	case d.Schemas == nil:
		return fmt.Errorf("engine: schema searcher is required")
	case d.Tables == nil:
		return fmt.Errorf("engine: table store is required")
	}
	return nil
}

// Result is what a completed run hands back.
type Result struct {
	SessionID string
	Report    *ticket.Report
	State     *WorkflowState
}

type Engine struct {
	deps  *Deps
	graph *Graph
	log   *slog.Logger
}

func New(deps Deps) (*Engine, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}
	if deps.Log == nil {
		deps.Log = slog.Default()
	}
	if deps.MaxNodeVisits <= 0 {
		deps.MaxNodeVisits = 25
	}
	if deps.RetrievalK <= 0 {
		deps.RetrievalK = 10
	}
	return &Engine{deps: &deps, graph: assembleGraph(&deps), log: deps.Log}, nil
}

// Run processes one ticket end to end. It returns ErrBlocked (wrapped) when
// the guardrail stops the run, a BudgetExceededError when the dispatcher
// overruns its decision budget, and the stage's error for any other abort.
// The session directory holds whatever stages completed before the failure.
func (e *Engine) Run(ctx context.Context, ticketText string) (*Result, error) {
	sess, err := e.deps.Sessions.Create()
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	log := e.log.With("session_id", sess.ID)
	log.Info("workflow started", "ticket_len", len(ticketText))

	st := &WorkflowState{Session: sess, TicketText: ticketText}
	st.appendMessage("user", nodeGuardrail, ticketText)

	visits := map[string]int{}
	node := e.graph.entry
	for node != nodeDone {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		visits[node]++
		if visits[node] > e.deps.MaxNodeVisits {
			return nil, &BudgetExceededError{
				Budget:    e.deps.MaxNodeVisits,
				Decisions: visits[node],
				State:     st,
			}
		}

		h, err := e.graph.handler(node)
		if err != nil {
			return nil, err
		}
		log.Debug("stage starting", "stage", node, "visit", visits[node])
		if err := h.Run(ctx, st); err != nil {
			log.Error("stage failed", "stage", node, "error", err)
			if be, ok := err.(*BudgetExceededError); ok {
				be.State = st
			}
			return nil, err
		}

		next, err := e.graph.next(node, st)
		if err != nil {
			return nil, err
		}
		node = next
	}

	if st.Report == nil {
		return nil, fmt.Errorf("workflow ended without a report")
	}
	log.Info("workflow finished", "status", st.Report.Status, "decisions", len(st.Decisions))
	return &Result{SessionID: sess.ID, Report: st.Report, State: st}, nil
}
