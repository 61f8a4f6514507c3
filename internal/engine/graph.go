package engine

import (
	"context"
	"fmt"
)

// Stage node identifiers. These are also the stage names on reasoning-unit
// requests and session artifacts.
const (
	nodeGuardrail = "guardrail"
	nodeIntake    = "intake"
	nodeRefine    = "refine"
	nodePlan      = "plan"
	nodeDispatch  = "dispatch"
	nodeRetrieve  = "retrieve"
	nodeExecute   = "execute"
	nodeValidate  = "validate"
	nodeReport    = "report"

	// nodeDone is the terminal marker returned by the router.
	nodeDone = ""
)

// refineThreshold is the intake-confidence cut: strictly below it the
// ticket goes to refinement, at or above it straight to planning.
const refineThreshold = 0.50

// stageHandler runs one stage against the shared state. Handlers mutate
// state only through its append/write-once methods; routing is the graph's
// job, not theirs.
type stageHandler interface {
	Name() string
	Run(ctx context.Context, st *WorkflowState) error
}

// Graph is the assembled stage graph: an entry node, one handler per node,
// and the routing function over (node, state).
type Graph struct {
	entry    string
	handlers map[string]stageHandler
}

func (g *Graph) handler(node string) (stageHandler, error) {
	h, ok := g.handlers[node]
	if !ok {
		return nil, fmt.Errorf("no handler registered for stage %q", node)
	}
	return h, nil
}

// next decides the node after the given one. All transitions are
// deterministic functions of the state; reasoning-unit suggestions never
// enter here.
func (g *Graph) next(node string, st *WorkflowState) (string, error) {
	switch node {
	case nodeGuardrail:
		return nodeIntake, nil
	case nodeIntake:
		if st.Intake == nil {
			return nodeDone, fmt.Errorf("intake stage left no result")
		}
		if st.Intake.Confidence < refineThreshold {
			return nodeRefine, nil
		}
		return nodePlan, nil
	case nodeRefine:
		return nodePlan, nil
	case nodePlan:
		return nodeDispatch, nil
	case nodeDispatch:
		if len(st.Decisions) == 0 {
			return nodeDone, fmt.Errorf("dispatch stage left no decision")
		}
		return st.Decisions[len(st.Decisions)-1].Stage, nil
	case nodeRetrieve, nodeExecute, nodeValidate:
		return nodeDispatch, nil
	case nodeReport:
		return nodeDone, nil
	default:
		return nodeDone, fmt.Errorf("unknown stage %q", node)
	}
}

// assembleGraph wires every stage handler into the fixed topology.
func assembleGraph(deps *Deps) *Graph {
	handlers := []stageHandler{
		&guardrailStage{deps},
		&intakeStage{deps},
		&refineStage{deps},
		&planStage{deps},
		&dispatchStage{deps},
		&retrieveStage{deps},
		&executeStage{deps},
		&validateStage{deps},
		&reportStage{deps},
	}
	m := make(map[string]stageHandler, len(handlers))
	for _, h := range handlers {
		m[h.Name()] = h
	}
	return &Graph{entry: nodeGuardrail, handlers: m}
}
