// Package ticket defines the typed records produced by each workflow stage.
package ticket

import (
	"fmt"
	"strings"
	"time"
)

// ActionType is the closed set of plan-step action categories.
type ActionType string

const (
	ActionInsert    ActionType = "INSERT"
	ActionUpdate    ActionType = "UPDATE"
	ActionDelete    ActionType = "DELETE"
	ActionVerify    ActionType = "VERIFY"
	ActionConfigure ActionType = "CONFIGURE"
)

func ParseActionType(s string) (ActionType, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "INSERT":
		return ActionInsert, nil
	case "UPDATE":
		return ActionUpdate, nil
	case "DELETE":
		return ActionDelete, nil
	case "VERIFY":
		return ActionVerify, nil
	case "CONFIGURE":
		return ActionConfigure, nil
	default:
		return "", fmt.Errorf("invalid action type: %q", s)
	}
}

func (a ActionType) Valid() bool {
	_, err := ParseActionType(string(a))
	return err == nil
}

// StageMeta is embedded in every stage output. Confidence is clamped to [0,1]
// at decode time; CreatedAt is UTC.
type StageMeta struct {
	SessionID  string    `json:"session_id"`
	Confidence float64   `json:"confidence"`
	CreatedAt  time.Time `json:"created_at"`
}

func NewStageMeta(sessionID string, confidence float64) StageMeta {
	return StageMeta{
		SessionID:  sessionID,
		Confidence: ClampConfidence(confidence),
		CreatedAt:  time.Now().UTC(),
	}
}

func ClampConfidence(c float64) float64 {
	if c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}

// IntakeResult is the intake check's verdict on the raw ticket text.
type IntakeResult struct {
	StageMeta
	Incomplete  bool   `json:"incomplete"`
	Reason      string `json:"reason"`
	RefinedText string `json:"refined_text,omitempty"`
	RoutingHint string `json:"routing_hint,omitempty"`
}

// RefinementResult carries the improved ticket description.
type RefinementResult struct {
	StageMeta
	ImprovedText string `json:"improved_text"`
	Reason       string `json:"reason"`
}

// PlanStep is one ordered action in a resolution plan. Lookup marks steps
// that need historical/context retrieval rather than execution or validation.
type PlanStep struct {
	Ordinal     int        `json:"ordinal"`
	Action      ActionType `json:"action"`
	Description string     `json:"description"`
	Target      string     `json:"target,omitempty"`
	Params      string     `json:"params,omitempty"`
	Lookup      bool       `json:"lookup,omitempty"`
}

// ResolutionPlan is produced once per session by the planning stage.
type ResolutionPlan struct {
	StageMeta
	Summary           string     `json:"summary"`
	Steps             []PlanStep `json:"steps"`
	Complexity        string     `json:"complexity,omitempty"`
	EstimatedDuration string     `json:"estimated_duration,omitempty"`
}

// Validate enforces the plan invariants: at least one step, valid action
// categories, and strictly increasing, unique ordinals.
func (p *ResolutionPlan) Validate() error {
	if p == nil || len(p.Steps) == 0 {
		return fmt.Errorf("plan has no steps")
	}
	prev := 0
	for i, s := range p.Steps {
		if !s.Action.Valid() {
			return fmt.Errorf("step %d: invalid action %q", i, s.Action)
		}
		if s.Ordinal <= prev && i > 0 {
			return fmt.Errorf("step ordinals must be strictly increasing: %d after %d", s.Ordinal, prev)
		}
		if s.Ordinal < 1 {
			return fmt.Errorf("step ordinal must be >= 1, got %d", s.Ordinal)
		}
		prev = s.Ordinal
	}
	return nil
}

// Ordinals returns the plan's step ordinals in plan order.
func (p *ResolutionPlan) Ordinals() []int {
	out := make([]int, 0, len(p.Steps))
	for _, s := range p.Steps {
		out = append(out, s.Ordinal)
	}
	return out
}

// SimilarTicket is one historical-ticket match from the similarity backend.
type SimilarTicket struct {
	ID      string  `json:"id"`
	Content string  `json:"content"`
	Score   float64 `json:"score"`
}

// SchemaMatch is one table-schema match from the schema lookup backend.
type SchemaMatch struct {
	TableName     string   `json:"table_name"`
	Description   string   `json:"description,omitempty"`
	Columns       []string `json:"columns,omitempty"`
	BusinessRules []string `json:"business_rules,omitempty"`
	Relationships []string `json:"relationships,omitempty"`
	Relevance     float64  `json:"relevance"`
}

// Stage-level status values for repeatable stages. A backend failure is
// recorded as StatusError so the dispatcher can still mark the ordinal
// attempted instead of retrying forever.
const (
	StatusOK    = "ok"
	StatusError = "error"
)

// RetrievalResult is one retrieval-stage visit.
type RetrievalResult struct {
	StageMeta
	StepOrdinals   []int           `json:"step_ordinals"`
	SimilarTickets []SimilarTicket `json:"similar_tickets,omitempty"`
	Schemas        []SchemaMatch   `json:"schemas,omitempty"`
	Status         string          `json:"status"`
	Error          string          `json:"error,omitempty"`
}

// Executed-step status values.
const (
	StepCompleted     = "completed"
	StepAlreadyExists = "already_exists"
	StepError         = "error"
)

// ExecutedStep records the outcome of executing one plan step. Target and
// Key identify the mutated row so validation can re-check it.
type ExecutedStep struct {
	Ordinal      int        `json:"ordinal"`
	Action       ActionType `json:"action"`
	Status       string     `json:"status"`
	Detail       string     `json:"detail,omitempty"`
	Target       string     `json:"target,omitempty"`
	Key          string     `json:"key,omitempty"`
	RowsAffected int        `json:"rows_affected,omitempty"`
}

// ExecutionResult is one execution-stage visit.
type ExecutionResult struct {
	StageMeta
	Steps  []ExecutedStep `json:"steps"`
	Status string         `json:"status"`
}

// ValidationIssue severities.
const (
	SeverityWarning  = "warning"
	SeverityCritical = "critical"
)

type ValidationIssue struct {
	Severity    string `json:"severity"`
	Description string `json:"description"`
}

// ValidationResult is one validation-stage visit.
type ValidationResult struct {
	StageMeta
	StepOrdinals    []int             `json:"step_ordinals"`
	Valid           bool              `json:"valid"`
	Issues          []ValidationIssue `json:"issues,omitempty"`
	Recommendations []string          `json:"recommendations,omitempty"`
	Status          string            `json:"status"`
}

// ResolutionStatus is the final report's verdict.
type ResolutionStatus string

const (
	Resolved          ResolutionStatus = "RESOLVED"
	PartiallyResolved ResolutionStatus = "PARTIALLY_RESOLVED"
	Failed            ResolutionStatus = "FAILED"
)

// Report is the terminal stage's aggregate of the whole run.
type Report struct {
	StageMeta
	Status           ResolutionStatus `json:"status"`
	Summary          string           `json:"summary"`
	StepsTaken       []string         `json:"steps_taken,omitempty"`
	TimeToResolution string           `json:"time_to_resolution,omitempty"`
	FollowUps        []string         `json:"follow_ups,omitempty"`
}

// DispatchDecision is the router's trace record of one dispatch choice.
// AdvisoryNext is whatever next-stage suggestion the reasoning unit offered;
// it is logged for traceability and never drives routing.
type DispatchDecision struct {
	StageMeta
	ID            string `json:"id"`
	Decision      int    `json:"decision"`
	Stage         string `json:"stage"`
	StepOrdinals  []int  `json:"step_ordinals,omitempty"`
	Justification string `json:"justification"`
	AdvisoryNext  string `json:"advisory_next,omitempty"`
}
