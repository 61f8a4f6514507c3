// Package llm models the reasoning unit each stage invokes: an opaque
// function from prompt + input to free text with an optional structured
// payload. Real providers live behind this interface; the core never
// assumes the payload is present or well-formed.
package llm

import (
	"context"
	"encoding/json"
)

// Request identifies one reasoning-unit invocation. Stage names the calling
// stage so backends can route and logs can attribute the call.
type Request struct {
	Stage  string
	Prompt string
	Input  string
}

// Reply is the raw result of an invocation. Structured is nil when the
// backend returned only free text.
type Reply struct {
	Text       string
	Structured json.RawMessage
}

// Unit is the reasoning-unit contract. Invoke blocks until the backend
// answers or ctx is done.
type Unit interface {
	Invoke(ctx context.Context, req Request) (Reply, error)
}

// Payload returns the reply's structured payload, falling back to
// best-effort extraction of JSON embedded in the free text.
func Payload(r Reply) (json.RawMessage, bool) {
	if len(r.Structured) > 0 && json.Valid(r.Structured) {
		return r.Structured, true
	}
	return ExtractJSON(r.Text)
}
