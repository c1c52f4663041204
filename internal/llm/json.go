// ABOUTME: Helpers for decoding structured JSON out of free-form model output
// ABOUTME: Strips markdown fences and surrounding prose before unmarshalling
package llm

import (
	"encoding/json"
	"errors"
	"strings"
)

// ErrNoJSON is returned when a response contains no JSON object or array
var ErrNoJSON = errors.New("no JSON found in response")

// DecodeJSON finds the outermost JSON object or array in content and unmarshals it into v
func DecodeJSON(content string, v any) error {
	raw := ExtractJSON(content)
	if raw == "" {
		return ErrNoJSON
	}
	return json.Unmarshal([]byte(raw), v)
}

// ExtractJSON returns the first balanced {...} or [...] block in content
func ExtractJSON(content string) string {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")

	start := strings.IndexAny(content, "{[")
	if start < 0 {
		return ""
	}
	open := content[start]
	closing := byte('}')
	if open == '[' {
		closing = ']'
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(content); i++ {
		ch := content[i]
		switch {
		case escaped:
			escaped = false
		case ch == '\\' && inString:
			escaped = true
		case ch == '"':
			inString = !inString
		case inString:
		case ch == open:
			depth++
		case ch == closing:
			depth--
			if depth == 0 {
				return content[start : i+1]
			}
		}
	}
	return ""
}
