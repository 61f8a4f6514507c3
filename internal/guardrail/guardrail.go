// Package guardrail screens raw ticket text for sensitive personal data
// before any stage processes it. The gate fails closed: a detector error
// that cannot be read as a block decision aborts the run.
package guardrail

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// Finding is the gate's verdict. Excerpt never contains more than
// MaxExcerptLen characters of the original text.
type Finding struct {
	Blocked    bool     `json:"blocked"`
	Categories []string `json:"categories,omitempty"`
	Excerpt    string   `json:"excerpt,omitempty"`
}

// Checker is the PII-detection backend contract.
type Checker interface {
	Check(ctx context.Context, text string) (Finding, error)
}

// MaxExcerptLen caps how much ticket text may appear in logs and artifacts.
const MaxExcerptLen = 150

// Detector errors containing one of these markers are treated as block
// decisions rather than infrastructure failures. Some detector stacks signal
// refusals by raising instead of returning.
var blockIndicators = []string{"pii", "personal", "sensitive", "refuse", "block"}

// Category tags a detector may report; used to salvage categories from
// error text on indicator errors.
var knownCategories = []string{
	"PERSON", "EMAIL_ADDRESS", "PHONE_NUMBER", "CREDIT_CARD",
	"US_SSN", "IP_ADDRESS", "LOCATION", "DATE_TIME",
}

type Gate struct {
	checker Checker
	log     *slog.Logger
}

func NewGate(checker Checker, log *slog.Logger) (*Gate, error) {
	if checker == nil {
		return nil, fmt.Errorf("guardrail checker is required")
	}
	if log == nil {
		log = slog.Default()
	}
	return &Gate{checker: checker, log: log}, nil
}

// Screen checks the ticket text. A blocked finding stops the workflow; a
// detector failure unrelated to a block decision propagates so the caller
// aborts rather than processing unscreened text.
func (g *Gate) Screen(ctx context.Context, text string) (Finding, error) {
	if strings.TrimSpace(text) == "" {
		return Finding{}, nil
	}

	f, err := g.checker.Check(ctx, text)
	if err != nil {
		if !isBlockIndicator(err) {
			return Finding{}, fmt.Errorf("pii check: %w", err)
		}
		cats := categoriesFromText(err.Error())
		g.log.Warn("guardrail blocked ticket via detector error", "categories", cats)
		return Finding{
			Blocked:    true,
			Categories: cats,
			Excerpt:    Excerpt(text),
		}, nil
	}

	if !f.Blocked {
		return Finding{Excerpt: Excerpt(text)}, nil
	}
	if len(f.Categories) == 0 {
		f.Categories = []string{"PII_DETECTED"}
	}
	f.Excerpt = Excerpt(text)
	g.log.Warn("guardrail blocked ticket", "categories", f.Categories)
	return f, nil
}

// Excerpt returns a logging-safe excerpt of the text.
func Excerpt(text string) string {
	if len(text) <= MaxExcerptLen {
		return text
	}
	return text[:MaxExcerptLen] + "..."
}

func isBlockIndicator(err error) bool {
	msg := strings.ToLower(err.Error())
	for _, kw := range blockIndicators {
		if strings.Contains(msg, kw) {
			return true
		}
	}
	return false
}

func categoriesFromText(s string) []string {
	upper := strings.ToUpper(s)
	var found []string
	for _, c := range knownCategories {
		if strings.Contains(upper, c) {
			found = append(found, c)
		}
	}
	if len(found) == 0 {
		return []string{"PII_DETECTED"}
	}
	return found
}
