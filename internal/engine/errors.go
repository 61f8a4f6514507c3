package engine

import (
	"errors"
	"fmt"
)

// ErrBlocked marks a run stopped by the guardrail gate before any stage ran.
var ErrBlocked = errors.New("ticket blocked by guardrail")

// BudgetExceededError is the fatal loop-safety abort: the dispatcher made
// more decisions than the plan can justify. It carries the last state so
// callers can inspect how far the run got.
type BudgetExceededError struct {
	Budget    int
	Decisions int
	State     *WorkflowState
}

func (e *BudgetExceededError) Error() string {
	return fmt.Sprintf("dispatch budget exceeded: %d decisions, budget %d", e.Decisions, e.Budget)
}
