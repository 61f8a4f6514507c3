package guardrail

import (
	"context"
	"regexp"
)

// PatternChecker is a regex-based detector for runs without an external
// analyzer. It covers the high-signal identifier shapes only; a production
// deployment swaps in a real analyzer behind the Checker interface.
type PatternChecker struct {
	patterns []categoryPattern
}

type categoryPattern struct {
	category string
	re       *regexp.Regexp
}

func NewPatternChecker() *PatternChecker {
	return &PatternChecker{patterns: []categoryPattern{
		{"EMAIL_ADDRESS", regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`)},
		{"US_SSN", regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`)},
		{"CREDIT_CARD", regexp.MustCompile(`\b(?:\d[ \-]?){13,16}\b`)},
		{"PHONE_NUMBER", regexp.MustCompile(`\b(?:\+?1[ \-.]?)?\(?\d{3}\)?[ \-.]?\d{3}[ \-.]?\d{4}\b`)},
		{"IP_ADDRESS", regexp.MustCompile(`\b(?:\d{1,3}\.){3}\d{1,3}\b`)},
	}}
}

func (c *PatternChecker) Check(ctx context.Context, text string) (Finding, error) {
	if err := ctx.Err(); err != nil {
		return Finding{}, err
	}
	var cats []string
	for _, p := range c.patterns {
		if p.re.MatchString(text) {
			cats = append(cats, p.category)
		}
	}
	if len(cats) == 0 {
		return Finding{}, nil
	}
	return Finding{Blocked: true, Categories: cats}, nil
}
