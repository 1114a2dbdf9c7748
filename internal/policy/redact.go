package policy

import (
	"encoding/json"
	"regexp"
	"strings"
)

var (
	emailPattern = regexp.MustCompile(`(?i)\b[a-z0-9._%+\-]+@[a-z0-9.\-]+\.[a-z]{2,}\b`)
	phonePattern = regexp.MustCompile(`(?:\+?\d[\d()\-\s.]{7,}\d)`)
	cardPattern  = regexp.MustCompile(`\b(?:\d[ -]*?){13,16}\b`)
	tokenPattern = regexp.MustCompile(`(?i)\b(bearer\s+|sk-or-[a-z0-9-]*|eyJ)[A-Za-z0-9._\-]{12,}`)
)

// RedactText masks addresses, phone numbers, card numbers and credentials
// so prompts can be written to debug logs.
func RedactText(value string) string {
	masked := tokenPattern.ReplaceAllString(value, "[token_redacted]")
	masked = emailPattern.ReplaceAllString(masked, "[email_redacted]")
	masked = cardPattern.ReplaceAllStringFunc(masked, maskCardNumber)
	masked = phonePattern.ReplaceAllString(masked, "[phone_redacted]")
	return masked
}

// RedactJSON applies RedactText to every string value of a JSON document.
// Input that is not JSON is redacted as plain text.
func RedactJSON(payload json.RawMessage) json.RawMessage {
	if strings.TrimSpace(string(payload)) == "" {
		return append(json.RawMessage(nil), payload...)
	}

	var decoded any
	if err := json.Unmarshal(payload, &decoded); err != nil {
		return json.RawMessage(RedactText(string(payload)))
	}

	encoded, err := json.Marshal(redactValue(decoded))
	if err != nil {
		return append(json.RawMessage(nil), payload...)
	}
	return encoded
}

func redactValue(value any) any {
	switch typed := value.(type) {
	case map[string]any:
		cloned := make(map[string]any, len(typed))
		for key, child := range typed {
			cloned[key] = redactValue(child)
		}
		return cloned
	case []any:
		cloned := make([]any, 0, len(typed))
		for _, child := range typed {
			cloned = append(cloned, redactValue(child))
		}
		return cloned
	case string:
		return RedactText(typed)
	default:
		return value
	}
}

func maskCardNumber(value string) string {
	digits := make([]rune, 0, len(value))
	for _, char := range value {
		if char >= '0' && char <= '9' {
			digits = append(digits, char)
		}
	}
	if len(digits) < 8 {
		return "[card_redacted]"
	}
	return "**** **** **** " + string(digits[len(digits)-4:])
}
