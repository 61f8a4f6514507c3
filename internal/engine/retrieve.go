package engine

import (
	"context"
	"fmt"

	"github.com/helpdesk-stack/ticketflow/internal/ticket"
)

// retrieveStage queries the read-only lookup backends for historical
// tickets and table schemas. A backend failure becomes an error-status
// result, which still marks the dispatched ordinals as attempted; the
// dispatcher never re-issues them.
type retrieveStage struct {
	deps *Deps
}

func (s *retrieveStage) Name() string { return nodeRetrieve }

func (s *retrieveStage) Run(ctx context.Context, st *WorkflowState) error {
	ordinals := lastDispatchedOrdinals(st, nodeRetrieve)
	query := st.BestDescription()

	res := ticket.RetrievalResult{
		StepOrdinals: ordinals,
		Status:       ticket.StatusOK,
	}

	similar, err := s.deps.Tickets.Search(ctx, query, s.deps.RetrievalK)
	if err != nil {
		res.Status = ticket.StatusError
		res.Error = fmt.Sprintf("ticket search: %v", err)
	} else {
		res.SimilarTickets = similar
	}

	schemas, err := s.deps.Schemas.SearchSchemas(ctx, query, s.deps.RetrievalK, "")
	if err != nil {
		res.Status = ticket.StatusError
		if res.Error != "" {
			res.Error += "; "
		}
		res.Error += fmt.Sprintf("schema search: %v", err)
	} else {
		res.Schemas = schemas
	}

	conf := 0.75
	if res.Status == ticket.StatusError {
		conf = 0
		s.deps.Log.Warn("retrieval backend unavailable",
			"session_id", st.Session.ID, "error", res.Error)
	}
	res.StageMeta = ticket.NewStageMeta(st.Session.ID, conf)

	st.Retrievals = append(st.Retrievals, res)
	s.deps.Sessions.WriteStageOutput(st.Session, nodeRetrieve, len(st.Retrievals), res)
	st.appendMessage("assistant", nodeRetrieve,
		fmt.Sprintf("retrieved %d similar tickets, %d schema matches", len(res.SimilarTickets), len(res.Schemas)))
	return nil
}

// lastDispatchedOrdinals returns the step ordinals of the most recent
// dispatch decision targeting the given stage.
func lastDispatchedOrdinals(st *WorkflowState, stage string) []int {
	for i := len(st.Decisions) - 1; i >= 0; i-- {
		if st.Decisions[i].Stage == stage {
			return st.Decisions[i].StepOrdinals
		}
	}
	return nil
}
