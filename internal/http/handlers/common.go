package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"hash/fnv"
	"log/slog"
	"net/http"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/brody/brody-back/internal/auth"
	"github.com/brody/brody-back/internal/calendar"
	"github.com/brody/brody-back/internal/http/middleware"
	"github.com/brody/brody-back/internal/logging"
	"github.com/brody/brody-back/internal/mail"
	"github.com/brody/brody-back/internal/service"
)

const (
	maxBodyBytes   = 1 << 20
	idempotencyTTL = 24 * time.Hour
)

var errInvalidPayload = errors.New("invalid payload")

// MailFetcher reads recent messages from a remote mailbox.
type MailFetcher interface {
	FetchRecent(ctx context.Context, creds mail.Credentials) ([]mail.Message, error)
}

type Dependencies struct {
	Triage      *service.TriageService
	Jobs        *service.JobsService
	Auth        *service.AuthService
	Preferences *service.PreferencesService
	Mail        MailFetcher
	Calendar    calendar.Source
	Google      *auth.GoogleOAuth
	Logger      *slog.Logger
	Version     string
}

type API struct {
	triage      *service.TriageService
	jobs        *service.JobsService
	auth        *service.AuthService
	preferences *service.PreferencesService
	mail        MailFetcher
	calendar    calendar.Source
	google      *auth.GoogleOAuth
	logger      *slog.Logger
	version     string
	idempotency *idempotencyStore
}

func NewAPI(deps Dependencies) *API {
	if deps.Logger == nil {
		deps.Logger = logging.Discard()
	}
	if deps.Calendar == nil {
		deps.Calendar = calendar.NewMockCalendar(nil)
	}
	if deps.Version == "" {
		deps.Version = "0.1.0"
	}
	return &API{
		triage:      deps.Triage,
		jobs:        deps.Jobs,
		auth:        deps.Auth,
		preferences: deps.Preferences,
		mail:        deps.Mail,
		calendar:    deps.Calendar,
		google:      deps.Google,
		logger:      deps.Logger,
		version:     deps.Version,
		idempotency: newIdempotencyStore(),
	}
}

type errorPayload struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
	RequestID string `json:"request_id"`
}

func writeJSON(w http.ResponseWriter, statusCode int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(value)
}

func writeError(w http.ResponseWriter, r *http.Request, statusCode int, code, message string) {
	payload := errorPayload{RequestID: middleware.GetRequestID(r.Context())}
	payload.Error.Code = code
	payload.Error.Message = message
	writeJSON(w, statusCode, payload)
}

// writeServiceError maps service and auth sentinels onto HTTP statuses.
func (api *API) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, service.ErrValidation):
		writeError(w, r, http.StatusBadRequest, "invalid_request", err.Error())
	case errors.Is(err, service.ErrInvalidPreferenceKey):
		writeError(w, r, http.StatusBadRequest, "invalid_preference_key", err.Error())
	case errors.Is(err, service.ErrEmailTaken):
		writeError(w, r, http.StatusBadRequest, "email_taken", "Email already registered")
	case errors.Is(err, service.ErrInactiveUser):
		writeError(w, r, http.StatusBadRequest, "inactive_user", "Inactive user")
	case errors.Is(err, service.ErrNotFound):
		writeError(w, r, http.StatusNotFound, "not_found", "not found")
	case errors.Is(err, auth.ErrInvalidCredentials):
		w.Header().Set("WWW-Authenticate", "Bearer")
		writeError(w, r, http.StatusUnauthorized, "invalid_credentials", "Incorrect email or password")
	case errors.Is(err, auth.ErrInvalidToken):
		w.Header().Set("WWW-Authenticate", "Bearer")
		writeError(w, r, http.StatusUnauthorized, "invalid_token", "Invalid token")
	default:
		api.logger.Error(
			"request failed",
			logging.RequestID(middleware.GetRequestID(r.Context())),
			slog.String("path", r.URL.Path),
			logging.Err(err),
		)
		writeError(w, r, http.StatusInternalServerError, "internal_error", "internal error")
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, value any) error {
	// Unknown fields are ignored.
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := decoder.Decode(value); err != nil {
		return errInvalidPayload
	}
	return nil
}

type idempotencyEntry struct {
	PayloadHash uint64
	JobID       string
}

// idempotencyStore remembers Idempotency-Key values for a day.
type idempotencyStore struct {
	entries *cache.Cache
}

func newIdempotencyStore() *idempotencyStore {
	return &idempotencyStore{entries: cache.New(idempotencyTTL, time.Hour)}
}

func (s *idempotencyStore) Get(key string) (idempotencyEntry, bool) {
	value, ok := s.entries.Get(key)
	if !ok {
		return idempotencyEntry{}, false
	}
	return value.(idempotencyEntry), true
}

func (s *idempotencyStore) Put(key string, payloadHash uint64, jobID string) {
	s.entries.SetDefault(key, idempotencyEntry{PayloadHash: payloadHash, JobID: jobID})
}

func hashPayload(value any) uint64 {
	payload, _ := json.Marshal(value)
	hasher := fnv.New64a()
	_, _ = hasher.Write(payload)
	return hasher.Sum64()
}
