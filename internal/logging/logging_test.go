package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"
)

func TestNewJSONLogger(t *testing.T) {
	var buffer bytes.Buffer
	logger := New(&buffer, "json", "debug")

	logger.Debug("hello", Model("m1"), Task("email_classification"))

	var record map[string]any
	if err := json.Unmarshal(buffer.Bytes(), &record); err != nil {
		t.Fatalf("expected json output, got %q: %v", buffer.String(), err)
	}
	if record["model"] != "m1" {
		t.Fatalf("expected model attribute, got %v", record["model"])
	}
	if record["service"] != "brody-api" {
		t.Fatalf("expected service attribute, got %v", record["service"])
	}
}

func TestNewTextLoggerRespectsLevel(t *testing.T) {
	var buffer bytes.Buffer
	logger := New(&buffer, "text", "warn")

	logger.Info("dropped")
	logger.Warn("kept")

	output := buffer.String()
	if strings.Contains(output, "dropped") {
		t.Fatalf("info line should be filtered at warn level: %q", output)
	}
	if !strings.Contains(output, "kept") {
		t.Fatalf("expected warn line, got %q", output)
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"":        slog.LevelInfo,
		"DEBUG":   slog.LevelDebug,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"bogus":   slog.LevelInfo,
	}
	for input, want := range cases {
		if got := ParseLevel(input); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", input, got, want)
		}
	}
}

func TestErrAttr(t *testing.T) {
	attr := Err(errors.New("boom"))
	if attr.Key != KeyError || attr.Value.String() != "boom" {
		t.Fatalf("unexpected attr %v", attr)
	}

	var buffer bytes.Buffer
	New(&buffer, "json", "info").Info("ok", Err(nil))
	if strings.Contains(buffer.String(), `"error"`) {
		t.Fatalf("nil error should be omitted: %q", buffer.String())
	}
}

func TestAnonymizeEmail(t *testing.T) {
	if AnonymizeEmail("") != "" {
		t.Fatalf("expected empty hash for empty email")
	}
	first := AnonymizeEmail("User@Example.com")
	second := AnonymizeEmail("user@example.com")
	if first != second {
		t.Fatalf("expected case-insensitive hash, got %q and %q", first, second)
	}
	if !strings.HasPrefix(first, "user:") || strings.Contains(first, "example") {
		t.Fatalf("unexpected anonymized value %q", first)
	}
	if UserHash("user@example.com").Value.String() != first {
		t.Fatalf("UserHash should match AnonymizeEmail")
	}
}
