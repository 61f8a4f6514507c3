package llm

import (
	"encoding/json"
	"strings"
)

// ExtractJSON scans free text for an embedded JSON object: the span from the
// first '{' to the last '}'. When that span doesn't parse, it retries with
// progressively earlier closing braces, which tolerates trailing prose after
// the object. Returns false when no valid object is found.
func ExtractJSON(text string) (json.RawMessage, bool) {
	start := strings.IndexByte(text, '{')
	if start < 0 {
		return nil, false
	}
	end := strings.LastIndexByte(text, '}')
	for end > start {
		candidate := text[start : end+1]
		if json.Valid([]byte(candidate)) {
			return json.RawMessage(candidate), true
		}
		end = strings.LastIndexByte(text[:end], '}')
	}
	return nil, false
}
