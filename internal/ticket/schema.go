package ticket

import (
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Wire payloads for structured reasoning-unit output. Each payload is
// validated against its schema before decoding so a malformed reply is
// rejected as a whole rather than half-applied.

type IntakePayload struct {
	Incomplete  bool    `json:"incomplete"`
	Reason      string  `json:"reason"`
	Confidence  float64 `json:"confidence"`
	RefinedText string  `json:"refined_text"`
	RoutingHint string  `json:"routing_hint"`
}

type RefinePayload struct {
	ImprovedText string  `json:"improved_text"`
	Reason       string  `json:"reason"`
	Confidence   float64 `json:"confidence"`
}

type PlanStepPayload struct {
	Action      string `json:"action"`
	Description string `json:"description"`
	Target      string `json:"target"`
	Params      string `json:"params"`
	Lookup      bool   `json:"lookup"`
}

type PlanPayload struct {
	Summary           string            `json:"summary"`
	Steps             []PlanStepPayload `json:"steps"`
	Complexity        string            `json:"complexity"`
	EstimatedDuration string            `json:"estimated_duration"`
	Confidence        float64           `json:"confidence"`
}

type ReportPayload struct {
	Status     string   `json:"status"`
	Summary    string   `json:"summary"`
	FollowUps  []string `json:"follow_ups"`
	Confidence float64  `json:"confidence"`
}

type DispatchPayload struct {
	NextStage     string `json:"next_stage"`
	Justification string `json:"justification"`
}

var (
	intakeSchema = mustCompile("intake.json", `{
		"type": "object",
		"required": ["incomplete", "confidence"],
		"properties": {
			"incomplete": {"type": "boolean"},
			"reason": {"type": "string"},
			"confidence": {"type": "number", "minimum": 0, "maximum": 1},
			"refined_text": {"type": "string"},
			"routing_hint": {"type": "string"}
		}
	}`)

	refineSchema = mustCompile("refine.json", `{
		"type": "object",
		"required": ["improved_text"],
		"properties": {
			"improved_text": {"type": "string", "minLength": 1},
			"reason": {"type": "string"},
			"confidence": {"type": "number", "minimum": 0, "maximum": 1}
		}
	}`)

	planSchema = mustCompile("plan.json", `{
		"type": "object",
		"required": ["steps"],
		"properties": {
			"summary": {"type": "string"},
			"steps": {
				"type": "array",
				"minItems": 1,
				"items": {
					"type": "object",
					"required": ["action", "description"],
					"properties": {
						"action": {"type": "string", "enum": ["INSERT", "UPDATE", "DELETE", "VERIFY", "CONFIGURE"]},
						"description": {"type": "string", "minLength": 1},
						"target": {"type": "string"},
						"params": {"type": "string"},
						"lookup": {"type": "boolean"}
					}
				}
			},
			"complexity": {"type": "string"},
			"estimated_duration": {"type": "string"},
			"confidence": {"type": "number", "minimum": 0, "maximum": 1}
		}
	}`)

	reportSchema = mustCompile("report.json", `{
		"type": "object",
		"required": ["status", "summary"],
		"properties": {
			"status": {"type": "string", "enum": ["RESOLVED", "PARTIALLY_RESOLVED", "FAILED"]},
			"summary": {"type": "string", "minLength": 1},
			"follow_ups": {"type": "array", "items": {"type": "string"}},
			"confidence": {"type": "number", "minimum": 0, "maximum": 1}
		}
	}`)

	dispatchSchema = mustCompile("dispatch.json", `{
		"type": "object",
		"properties": {
			"next_stage": {"type": "string"},
			"justification": {"type": "string"}
		}
	}`)
)

func mustCompile(name, src string) *jsonschema.Schema {
	return jsonschema.MustCompileString(name, src)
}

func decodeValidated(raw []byte, schema *jsonschema.Schema, out any) error {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return fmt.Errorf("payload is not valid JSON: %w", err)
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("payload schema validation failed: %w", err)
	}
	return json.Unmarshal(raw, out)
}

func DecodeIntakePayload(raw []byte) (*IntakePayload, error) {
	var p IntakePayload
	if err := decodeValidated(raw, intakeSchema, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func DecodeRefinePayload(raw []byte) (*RefinePayload, error) {
	var p RefinePayload
	if err := decodeValidated(raw, refineSchema, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func DecodePlanPayload(raw []byte) (*PlanPayload, error) {
	var p PlanPayload
	if err := decodeValidated(raw, planSchema, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func DecodeReportPayload(raw []byte) (*ReportPayload, error) {
	var p ReportPayload
	if err := decodeValidated(raw, reportSchema, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func DecodeDispatchPayload(raw []byte) (*DispatchPayload, error) {
	var p DispatchPayload
	if err := decodeValidated(raw, dispatchSchema, &p); err != nil {
		return nil, err
	}
	return &p, nil
}
