package middleware

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/brody/brody-back/internal/auth"
	"github.com/brody/brody-back/internal/domain"
	"github.com/brody/brody-back/internal/service"
)

type stubAuthenticator struct {
	users map[string]*domain.User
	err   error
}

func (s stubAuthenticator) Authenticate(_ context.Context, token string) (*domain.User, error) {
	if s.err != nil {
		return nil, s.err
	}
	user, ok := s.users[token]
	if !ok {
		return nil, auth.ErrInvalidToken
	}
	return user, nil
}

func TestRequireUserStoresUserInContext(t *testing.T) {
	authenticator := stubAuthenticator{users: map[string]*domain.User{"good": {ID: "u1"}}}
	var seen string
	handler := RequireUser(authenticator)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := UserFromContext(r.Context())
		if !ok {
			t.Fatalf("expected user in context")
		}
		seen = user.ID
		w.WriteHeader(http.StatusNoContent)
	}))

	request := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	request.Header.Set("Authorization", "Bearer good")
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, request)

	if recorder.Code != http.StatusNoContent || seen != "u1" {
		t.Fatalf("expected authenticated passthrough, got status %d user %q", recorder.Code, seen)
	}
}

func TestRequireUserRejections(t *testing.T) {
	cases := []struct {
		name   string
		header string
		err    error
		status int
	}{
		{name: "missing header", header: "", status: http.StatusUnauthorized},
		{name: "unknown token", header: "Bearer nope", status: http.StatusUnauthorized},
		{name: "inactive", header: "Bearer x", err: service.ErrInactiveUser, status: http.StatusBadRequest},
		{name: "backend failure", header: "Bearer x", err: errors.New("db down"), status: http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			handler := RequireUser(stubAuthenticator{err: tc.err})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				t.Fatalf("handler must not run")
			}))
			request := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
			if tc.header != "" {
				request.Header.Set("Authorization", tc.header)
			}
			recorder := httptest.NewRecorder()
			handler.ServeHTTP(recorder, request)

			if recorder.Code != tc.status {
				t.Fatalf("expected %d, got %d", tc.status, recorder.Code)
			}
			if !strings.Contains(recorder.Body.String(), `"error"`) {
				t.Fatalf("expected error envelope, got %s", recorder.Body.String())
			}
		})
	}
}

func TestRateLimitRejectsBurstOverflow(t *testing.T) {
	handler := RateLimit(1, 2)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	statuses := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		request := httptest.NewRequest(http.MethodGet, "/health", nil)
		request.RemoteAddr = "10.0.0.1:5555"
		recorder := httptest.NewRecorder()
		handler.ServeHTTP(recorder, request)
		statuses = append(statuses, recorder.Code)
	}
	if statuses[0] != http.StatusOK || statuses[1] != http.StatusOK || statuses[2] != http.StatusTooManyRequests {
		t.Fatalf("unexpected statuses %v", statuses)
	}

	other := httptest.NewRequest(http.MethodGet, "/health", nil)
	other.RemoteAddr = "10.0.0.2:5555"
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, other)
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected separate bucket per ip, got %d", recorder.Code)
	}
}

func TestRequestIDPropagatesOrGenerates(t *testing.T) {
	var seen string
	handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
	}))

	request := httptest.NewRequest(http.MethodGet, "/", nil)
	request.Header.Set("X-Request-Id", "abc-123")
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, request)
	if seen != "abc-123" || recorder.Header().Get("X-Request-Id") != "abc-123" {
		t.Fatalf("expected propagated id, got %q", seen)
	}

	request = httptest.NewRequest(http.MethodGet, "/", nil)
	request.Header.Set("X-Request-Id", "bad id\n")
	handler.ServeHTTP(httptest.NewRecorder(), request)
	if seen == "bad id\n" || len(seen) != 36 {
		t.Fatalf("expected generated uuid, got %q", seen)
	}
}

func TestTraceLogsStatus(t *testing.T) {
	var buffer bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buffer, nil))
	handler := Trace(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/missing", nil))

	line := buffer.String()
	if !strings.Contains(line, "status=404") || !strings.Contains(line, "path=/missing") {
		t.Fatalf("unexpected trace line %q", line)
	}
}
