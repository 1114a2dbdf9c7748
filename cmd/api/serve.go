package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/brody/brody-back/internal/ai"
	"github.com/brody/brody-back/internal/auth"
	"github.com/brody/brody-back/internal/calendar"
	"github.com/brody/brody-back/internal/config"
	httpserver "github.com/brody/brody-back/internal/http"
	"github.com/brody/brody-back/internal/http/handlers"
	"github.com/brody/brody-back/internal/logging"
	"github.com/brody/brody-back/internal/mail"
	"github.com/brody/brody-back/internal/metrics"
	"github.com/brody/brody-back/internal/queue"
	"github.com/brody/brody-back/internal/repository"
	"github.com/brody/brody-back/internal/service"
	"github.com/brody/brody-back/internal/worker"
)

func newServeCmd() *cobra.Command {
	var port string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API and the triage worker",
		RunE: func(cmd *cobra.Command, _ []string) error {
			dotenvErr := config.LoadDotEnv(".env", ".env.local")
			cfg := config.Load()
			if port != "" {
				cfg.Port = port
			}
			logger := logging.New(os.Stdout, cfg.LogFormat, cfg.LogLevel)
			if dotenvErr != nil {
				logger.Warn("failed loading .env files", logging.Err(dotenvErr))
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServer(ctx, cfg, logger)
		},
	}
	cmd.Flags().StringVar(&port, "port", "", "listen port (overrides PORT)")
	return cmd
}

func runServer(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	tokens, err := auth.NewTokenIssuer(cfg.SecretKey, cfg.AccessTokenTTL(), cfg.RefreshTokenTTL())
	if err != nil {
		return fmt.Errorf("token issuer: %w", err)
	}

	stores, storesCloser := setupRepositories(ctx, cfg, logger)
	defer storesCloser()

	sessions, sessionsCloser := setupSessions(ctx, cfg, logger)
	defer sessionsCloser()

	producer, consumer, queueCloser := setupQueue(ctx, cfg, logger)
	defer queueCloser()

	registry := metrics.New()
	gateway := newGateway(cfg, logger, registry)
	if gateway.Available() {
		logger.Info("ai gateway enabled", logging.Model(cfg.ModelConfig().DefaultModel()))
	} else {
		logger.Warn("OPENROUTER_API_KEY not configured, using heuristic fallbacks")
	}

	events := calendar.NewMockCalendar(nil)
	triage := service.NewTriageService(service.TriageDependencies{
		Assistant: ai.NewAssistant(gateway),
		Calendar:  events,
		Logger:    logger,
	})
	jobsService := service.NewJobsService(stores.jobs, producer)
	authService := service.NewAuthService(service.AuthDependencies{
		Users:    stores.users,
		Sessions: sessions,
		Tokens:   tokens,
		Logger:   logger,
	})

	api := handlers.NewAPI(handlers.Dependencies{
		Triage:      triage,
		Jobs:        jobsService,
		Auth:        authService,
		Preferences: service.NewPreferencesService(stores.users, logger),
		Mail:        mail.NewClient(mail.ClientConfig{Logger: logger}),
		Calendar:    events,
		Google: auth.NewGoogleOAuth(auth.GoogleOAuthConfig{
			ClientID:     cfg.GmailClientID,
			ClientSecret: cfg.GmailClientSecret,
			RedirectURI:  cfg.GmailRedirectURI,
		}),
		Logger:  logger,
		Version: version,
	})

	handler := httpserver.NewRouter(httpserver.RouterDependencies{
		API:            api,
		Logger:         logger,
		Authenticator:  authService,
		Metrics:        registry,
		CORSOrigins:    cfg.CORSAllowedOrigins,
		RateLimitRPS:   cfg.RateLimitRPS,
		RateLimitBurst: cfg.RateLimitBurst,
	})

	if cfg.WorkerEnabled {
		processor := worker.NewProcessor(worker.ProcessorDependencies{
			Consumer: consumer,
			Repo:     stores.jobs,
			Triage:   triage,
			Logger:   logger,
			Observer: registry,
		})
		go processor.Start(ctx)
		logger.Info("worker enabled and started")
	} else {
		logger.Info("worker disabled by configuration")
	}

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		logger.Info("api listening", slog.String("addr", server.Addr))
		errChan <- server.ListenAndServe()
	}()

	var serveErr error
	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errChan:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr = fmt.Errorf("server failed: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", logging.Err(err))
	}
	return serveErr
}

func newGateway(cfg config.Config, logger *slog.Logger, observer ai.Observer) *ai.Gateway {
	return ai.NewOpenRouterGateway(
		ai.OpenRouterClientConfig{
			APIKey:   cfg.OpenRouterAPIKey,
			BaseURL:  cfg.OpenRouterBaseURL,
			Timeout:  cfg.OpenRouterTimeout(),
			Referrer: cfg.OpenRouterReferrer,
			Title:    cfg.OpenRouterTitle,
			Logger:   logger,
		},
		cfg.ModelConfig(),
		cfg.FreeTierPolicy(),
		observer,
	)
}

type stores struct {
	users repository.UsersRepository
	jobs  repository.JobsRepository
}

func memoryStores() stores {
	return stores{
		users: repository.NewMemoryUsersRepository(),
		jobs:  repository.NewMemoryJobsRepository(),
	}
}

// setupRepositories picks Postgres or SQLite from DATABASE_URL and falls back
// to memory when the URL is empty or the database cannot be opened.
func setupRepositories(ctx context.Context, cfg config.Config, logger *slog.Logger) (stores, func()) {
	databaseURL := strings.TrimSpace(cfg.DatabaseURL)
	switch {
	case databaseURL == "":
		logger.Info("DATABASE_URL not configured, using in-memory repositories")
		return memoryStores(), func() {}
	case strings.HasPrefix(databaseURL, "postgres://"), strings.HasPrefix(databaseURL, "postgresql://"):
		pool, err := repository.OpenPostgres(ctx, databaseURL)
		if err != nil {
			logger.Warn("failed to initialize postgres, fallback to memory", logging.Err(err))
			return memoryStores(), func() {}
		}
		logger.Info("postgres repositories initialized")
		return stores{
			users: repository.NewPostgresUsersRepository(pool),
			jobs:  repository.NewPostgresJobsRepository(pool),
		}, pool.Close
	case strings.HasPrefix(databaseURL, "sqlite:"):
		db, err := repository.OpenSQLite(repository.SQLitePath(databaseURL))
		if err != nil {
			logger.Warn("failed to initialize sqlite, fallback to memory", logging.Err(err))
			return memoryStores(), func() {}
		}
		logger.Info("sqlite repositories initialized", slog.String("path", repository.SQLitePath(databaseURL)))
		return stores{
			users: repository.NewSQLiteUsersRepository(db),
			jobs:  repository.NewSQLiteJobsRepository(db),
		}, func() { _ = db.Close() }
	default:
		logger.Warn("unsupported DATABASE_URL scheme, using in-memory repositories")
		return memoryStores(), func() {}
	}
}

func setupSessions(ctx context.Context, cfg config.Config, logger *slog.Logger) (repository.SessionStore, func()) {
	if cfg.RedisAddr == "" {
		logger.Info("REDIS_ADDR not configured, using in-memory session store")
		return repository.NewMemorySessionStore(), func() {}
	}
	store, err := repository.NewRedisSessionStore(ctx, repository.RedisSessionConfig{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err != nil {
		logger.Warn("failed to initialize redis sessions, fallback to memory", logging.Err(err))
		return repository.NewMemorySessionStore(), func() {}
	}
	logger.Info("redis session store initialized")
	return store, func() { _ = store.Close() }
}

func setupQueue(ctx context.Context, cfg config.Config, logger *slog.Logger) (queue.Producer, queue.Consumer, func()) {
	if cfg.RedisAddr == "" {
		logger.Info("REDIS_ADDR not configured, using local queue fallback")
		local := queue.NewLocalQueue(512, 3, logger)
		return local, local, func() {}
	}

	streams, err := queue.NewStreamsQueue(ctx, queue.StreamsConfig{
		Addr:        cfg.RedisAddr,
		Password:    cfg.RedisPassword,
		DB:          cfg.RedisDB,
		Stream:      cfg.RedisStream,
		DLQStream:   cfg.RedisDLQ,
		Group:       cfg.RedisGroup,
		Consumer:    cfg.RedisConsumer,
		MaxAttempts: 3,
		Logger:      logger,
	})
	if err != nil {
		logger.Warn("failed to initialize redis streams queue, fallback to local", logging.Err(err))
		local := queue.NewLocalQueue(512, 3, logger)
		return local, local, func() {}
	}
	logger.Info("redis streams queue initialized")
	return streams, streams, func() { _ = streams.Close() }
}
