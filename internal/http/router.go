package httpserver

import (
	"log/slog"
	"net/http"

	"github.com/brody/brody-back/internal/http/handlers"
	"github.com/brody/brody-back/internal/http/middleware"
	"github.com/brody/brody-back/internal/logging"
	"github.com/brody/brody-back/internal/metrics"
)

type RouterDependencies struct {
	API            *handlers.API
	Logger         *slog.Logger
	Authenticator  middleware.Authenticator
	Metrics        *metrics.Metrics
	CORSOrigins    []string
	RateLimitRPS   float64
	RateLimitBurst int
}

func NewRouter(deps RouterDependencies) http.Handler {
	if deps.Logger == nil {
		deps.Logger = logging.Discard()
	}
	protected := middleware.RequireUser(deps.Authenticator)
	guard := func(handler http.HandlerFunc) http.Handler {
		return protected(handler)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", deps.API.Root)
	mux.HandleFunc("GET /health", deps.API.Health)
	if deps.Metrics != nil {
		mux.Handle("GET /metrics", deps.Metrics.Handler())
	}

	mux.HandleFunc("POST /api/classify-email", deps.API.ClassifyEmail)
	mux.HandleFunc("POST /api/suggest-task", deps.API.SuggestTask)
	mux.HandleFunc("GET /api/prepare-day", deps.API.PrepareDay)
	mux.HandleFunc("POST /api/meeting-brief", deps.API.MeetingBrief)

	mux.HandleFunc("POST /email/imap/test", deps.API.IMAPTest)
	mux.HandleFunc("POST /email/parse", deps.API.ParseEmail)
	mux.HandleFunc("POST /email/fetch-and-classify", deps.API.FetchAndClassify)

	mux.HandleFunc("GET /calendar/events", deps.API.CalendarEvents)
	mux.HandleFunc("POST /calendar/meeting-brief", deps.API.CalendarMeetingBrief)

	mux.HandleFunc("POST /auth/register", deps.API.Register)
	mux.HandleFunc("POST /auth/login", deps.API.Login)
	mux.HandleFunc("POST /auth/refresh", deps.API.Refresh)
	mux.HandleFunc("POST /auth/logout", deps.API.Logout)
	mux.Handle("GET /auth/me", guard(deps.API.Me))
	mux.HandleFunc("GET /auth/google/login", deps.API.GoogleLogin)
	mux.HandleFunc("GET /auth/google/callback", deps.API.GoogleCallback)

	mux.Handle("GET /user/preferences", guard(deps.API.GetPreferences))
	mux.Handle("PUT /user/preferences", guard(deps.API.UpdatePreferences))
	mux.Handle("POST /user/preferences/reset", guard(deps.API.ResetPreferences))
	mux.Handle("PATCH /user/preferences/{key}", guard(deps.API.SetPreference))

	mux.Handle("POST /api/triage-jobs", guard(deps.API.CreateTriageJob))
	mux.Handle("GET /api/triage-jobs", guard(deps.API.ListJobs))
	mux.Handle("GET /api/triage-jobs/{id}", guard(deps.API.JobStatus))

	handler := http.Handler(mux)
	if deps.Metrics != nil {
		handler = deps.Metrics.Middleware(handler)
	}
	handler = middleware.RateLimit(deps.RateLimitRPS, deps.RateLimitBurst)(handler)
	handler = middleware.CORS(middleware.CORSConfig{
		AllowedOrigins:   deps.CORSOrigins,
		AllowCredentials: true,
	})(handler)
	handler = middleware.Trace(deps.Logger)(handler)
	handler = middleware.RequestID(handler)

	return handler
}
