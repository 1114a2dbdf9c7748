package ai

import (
	"bytes"
	"encoding/json"
	"strings"
)

// extractJSONObject returns the JSON object in text. It accepts a bare
// object, a fenced code block, or an object surrounded by prose (first '{'
// to last '}').
func extractJSONObject(text string) ([]byte, bool) {
	return extractJSON(text, '{', '}')
}

// extractJSONArray is extractJSONObject for arrays.
func extractJSONArray(text string) ([]byte, bool) {
	return extractJSON(text, '[', ']')
}

func extractJSON(text string, open, close byte) ([]byte, bool) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil, false
	}
	if strings.HasPrefix(trimmed, "```") {
		trimmed = stripCodeFence(trimmed)
	}

	// Well-formed JSON of the wrong shape is never searched for a nested match.
	if candidate := []byte(trimmed); json.Valid(candidate) {
		if candidate[0] != open {
			return nil, false
		}
		return candidate, true
	}

	start := strings.IndexByte(trimmed, open)
	end := strings.LastIndexByte(trimmed, close)
	if start >= 0 && end > start {
		candidate := []byte(trimmed[start : end+1])
		if isJSONOfShape(candidate, open) {
			return candidate, true
		}
	}
	return nil, false
}

func isJSONOfShape(candidate []byte, open byte) bool {
	trimmed := bytes.TrimSpace(candidate)
	if len(trimmed) == 0 || trimmed[0] != open {
		return false
	}
	return json.Valid(trimmed)
}

func stripCodeFence(text string) string {
	trimmed := strings.TrimSpace(text)
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimPrefix(trimmed, "json")
	trimmed = strings.TrimSuffix(trimmed, "```")
	return strings.TrimSpace(trimmed)
}
