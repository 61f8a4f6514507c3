// Package prompts holds the per-stage instructions sent to the reasoning
// unit. A bundle can be loaded from a YAML file; stages missing from the
// file keep their built-in text.
package prompts

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Bundle maps each stage to its prompt text.
type Bundle struct {
	Intake   string `yaml:"intake"`
	Refine   string `yaml:"refine"`
	Plan     string `yaml:"plan"`
	Retrieve string `yaml:"retrieve"`
	Execute  string `yaml:"execute"`
	Validate string `yaml:"validate"`
	Dispatch string `yaml:"dispatch"`
	Report   string `yaml:"report"`
}

// Default returns the built-in bundle.
func Default() Bundle {
	return Bundle{
		Intake: "You triage incoming support tickets. Decide whether the ticket text " +
			"is complete enough to plan a resolution. Respond with JSON: " +
			`{"incomplete": bool, "reason": string, "confidence": number}.`,
		Refine: "Rewrite the ticket so an engineer can act on it: name the affected " +
			"system, the symptom, and the scope. Respond with JSON: " +
			`{"improved_text": string, "reason": string, "confidence": number}.`,
		Plan: "Produce an ordered resolution plan for the ticket. Each step has an " +
			"action (INSERT, UPDATE, DELETE, VERIFY, CONFIGURE), a description, " +
			"an optional target table, optional key=value params separated by " +
			"semicolons, and a lookup flag when historical context is needed. " +
			"Respond with JSON: " +
			`{"summary": string, "steps": [...], "confidence": number}.`,
		Retrieve: "Summarize how the retrieved historical tickets and table schemas " +
			"bear on the current ticket.",
		Execute: "Narrate the outcome of the executed plan steps for the audit trail.",
		Validate: "Assess whether the executed steps resolved the ticket. Respond " +
			"with JSON: " +
			`{"valid": bool, "issues": [...], "recommendations": [...], "confidence": number}.`,
		Dispatch: "Given the plan and the steps completed so far, suggest the next " +
			"stage and justify it. Respond with JSON: " +
			`{"next_stage": string, "justification": string}.`,
		Report: "Write the final resolution report. Respond with JSON: " +
			`{"status": "RESOLVED"|"PARTIALLY_RESOLVED"|"FAILED", "summary": string, "follow_ups": [...], "confidence": number}.`,
	}
}

// Load reads a bundle from path, overlaying the defaults. Unknown keys are
// rejected.
func Load(path string) (Bundle, error) {
	f, err := os.Open(path)
	if err != nil {
		return Bundle{}, fmt.Errorf("open prompts: %w", err)
	}
	defer f.Close()

	var loaded Bundle
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&loaded); err != nil {
		return Bundle{}, fmt.Errorf("parse prompts %s: %w", path, err)
	}
	return overlay(Default(), loaded), nil
}

func overlay(base, over Bundle) Bundle {
	pick := func(b, o string) string {
		if o != "" {
			return o
		}
		return b
	}
	return Bundle{
		Intake:   pick(base.Intake, over.Intake),
		Refine:   pick(base.Refine, over.Refine),
		Plan:     pick(base.Plan, over.Plan),
		Retrieve: pick(base.Retrieve, over.Retrieve),
		Execute:  pick(base.Execute, over.Execute),
		Validate: pick(base.Validate, over.Validate),
		Dispatch: pick(base.Dispatch, over.Dispatch),
		Report:   pick(base.Report, over.Report),
	}
}
