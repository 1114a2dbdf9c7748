package logging

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"log/slog"
	"strings"
)

const (
	KeyOperation = "operation"
	KeyModel     = "model"
	KeyTask      = "task"
	KeyUserHash  = "user_hash"
	KeyRequestID = "request_id"
	KeyJobID     = "job_id"
	KeyError     = "error"
)

// New builds the process logger. format is "json" or "text"; level is one of
// debug, info, warn, error and defaults to info.
func New(w io.Writer, format, level string) *slog.Logger {
	options := &slog.HandlerOptions{Level: ParseLevel(level)}

	var handler slog.Handler
	if strings.EqualFold(strings.TrimSpace(format), "json") {
		handler = slog.NewJSONHandler(w, options)
	} else {
		handler = slog.NewTextHandler(w, options)
	}
	return slog.New(handler).With(slog.String("service", "brody-api"))
}

func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Discard returns a logger that drops everything. Used as the nil default.
func Discard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func Operation(op string) slog.Attr {
	return slog.String(KeyOperation, op)
}

func Model(model string) slog.Attr {
	return slog.String(KeyModel, model)
}

func Task(task string) slog.Attr {
	return slog.String(KeyTask, task)
}

func RequestID(id string) slog.Attr {
	return slog.String(KeyRequestID, id)
}

func JobID(id string) slog.Attr {
	return slog.String(KeyJobID, id)
}

// Err returns the error attribute, or an empty group slog omits when err is
// nil.
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Group("")
	}
	return slog.String(KeyError, err.Error())
}

// AnonymizeEmail hashes an address so log lines can be correlated without
// storing it.
func AnonymizeEmail(email string) string {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return ""
	}
	hash := sha256.Sum256([]byte(email))
	return "user:" + hex.EncodeToString(hash[:8])
}

func UserHash(email string) slog.Attr {
	return slog.String(KeyUserHash, AnonymizeEmail(email))
}
