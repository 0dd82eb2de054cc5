package analyzer

import (
	"encoding/json"
	"strings"
)

// ExtractJSONObject locates the first '{' and the last '}' in text and
// returns the substring between them, verified to be valid JSON. Model
// output routinely wraps the object in prose or code fences; everything
// outside the braces is discarded.
func ExtractJSONObject(text string) (json.RawMessage, error) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end < 0 || end <= start {
		return nil, NewMalformedOutputError("no JSON object found in model output", text)
	}

	candidate := text[start : end+1]
	if !json.Valid([]byte(candidate)) {
		return nil, NewMalformedOutputError("model output is not valid JSON", candidate)
	}
	return json.RawMessage(candidate), nil
}

// StripCodeFences removes a leading ```json (or bare ```) fence and a
// trailing ``` fence from model output.
func StripCodeFences(text string) string {
	trimmed := strings.TrimSpace(text)
	if strings.HasPrefix(trimmed, "```") {
		if idx := strings.Index(trimmed, "\n"); idx >= 0 {
			trimmed = trimmed[idx+1:]
		}
	}
	if strings.HasSuffix(trimmed, "```") {
		trimmed = strings.TrimSuffix(trimmed, "```")
	}
	return strings.TrimSpace(trimmed)
}
