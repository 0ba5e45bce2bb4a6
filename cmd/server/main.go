package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/openclaw/inbox-sync-go/internal/backend"
	"github.com/openclaw/inbox-sync-go/internal/config"
	"github.com/openclaw/inbox-sync-go/internal/database"
	"github.com/openclaw/inbox-sync-go/internal/handler"
	"github.com/openclaw/inbox-sync-go/internal/inbox"
	"github.com/openclaw/inbox-sync-go/internal/jobs"
	"github.com/openclaw/inbox-sync-go/internal/middleware"
	"github.com/openclaw/inbox-sync-go/internal/model"
	"github.com/openclaw/inbox-sync-go/internal/redis"
	"github.com/openclaw/inbox-sync-go/internal/repository"
	"github.com/openclaw/inbox-sync-go/internal/session"
	"github.com/openclaw/inbox-sync-go/internal/sse"
	"github.com/openclaw/inbox-sync-go/internal/statusprovider"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	setLogLevel(cfg.LogLevel)

	isProduction := os.Getenv("FLY_APP_NAME") != ""
	if err := cfg.Validate(isProduction); err != nil {
		log.Fatal().Err(err).Msg("invalid config")
	}

	redisClient, err := redis.NewClient(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}
	defer redisClient.Close()
	log.Info().Msg("redis connected")

	var db *database.DB
	var selectionRepo repository.SelectionRepository
	if cfg.UsesPostgresSelections() {
		db, err = database.Connect(cfg.DatabaseURL)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to database")
		}
		defer db.Close()

		ctx, cancel := context.WithTimeout(context.Background(), config.PingTimeout)
		if err := db.Ping(ctx); err != nil {
			log.Fatal().Err(err).Msg("failed to ping database")
		}
		cancel()
		log.Info().Msg("database connected")

		selectionRepo = repository.NewSelectionRepository(db.DB)
	}

	broker := sse.NewBroker(redisClient)
	defer broker.Close()

	backendClient := backend.NewClient(cfg.BackendURL, config.BackendRequestTimeout)
	statusClient := statusprovider.NewClient(cfg.StatusProviderURL, config.ProviderRequestTimeout)

	sessions := session.NewManager(func(p model.Principal) inbox.Deps {
		userBackend := backendClient.ForToken(p.Token)
		deps := inbox.Deps{
			Backend:    userBackend,
			Selections: userBackend,
			Provider:   statusClient,
		}
		if selectionRepo != nil {
			deps.Selections = repository.NewUserSelections(selectionRepo, p.UserID)
		}
		return deps
	}, broker, session.Config{
		Session: inbox.Config{
			PollInterval: cfg.StatusPollInterval(),
			PollEnabled:  cfg.StatusPollEnabled,
		},
		IdleTTL: cfg.SessionIdleTTL(),
	})

	authMiddleware := middleware.NewAuthMiddleware(cfg.JWTSecret)
	bodyLimitMiddleware := middleware.NewBodyLimitMiddleware(0)
	securityHeadersMiddleware := middleware.NewSecurityHeadersMiddleware(isProduction)
	rateLimit := middleware.RateLimit(middleware.NewRedisRateLimiter(redisClient.Client), cfg.RateLimitPerMin)

	inboxHandler := handler.NewInboxHandler(sessions)
	eventsHandler := handler.NewEventsHandler(broker, sessions)

	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestLogger)
	r.Use(chimiddleware.Recoverer)
	r.Use(bodyLimitMiddleware.Handler)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), config.PingTimeout)
		defer cancel()

		status := http.StatusOK
		checks := map[string]string{"redis": "ok"}
		if err := redisClient.Ping(ctx).Err(); err != nil {
			status = http.StatusServiceUnavailable
			checks["redis"] = err.Error()
		}
		if db != nil {
			checks["database"] = "ok"
			if err := db.Ping(ctx); err != nil {
				status = http.StatusServiceUnavailable
				checks["database"] = err.Error()
			}
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(map[string]any{
			"status":     http.StatusText(status),
			"checks":     checks,
			"sessions":   sessions.Count(),
			"sseClients": broker.TotalClients(),
			"timestamp":  time.Now().UnixMilli(),
		})
	})

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/console/", http.StatusFound)
	})

	r.Route("/v1", func(r chi.Router) {
		r.Use(authMiddleware.Handler)
		r.Get("/events", eventsHandler.ServeHTTP)

		r.Group(func(r chi.Router) {
			r.Use(chimiddleware.Timeout(config.ServerRequestTimeout))
			r.Use(rateLimit)
			r.Mount("/inbox", inboxHandler.Routes())
		})
	})

	r.Route("/console", func(r chi.Router) {
		r.Use(securityHeadersMiddleware.Handler)
		r.NotFound(handler.StaticFileServer(cfg.StaticDir, "/console").ServeHTTP)
	})

	var staleSelections jobs.StaleSelectionStore
	if selectionRepo != nil {
		staleSelections = selectionRepo
	}
	cleanupJob := jobs.NewCleanupJob(sessions, staleSelections, config.StaleSelectionMaxAge, config.SessionReapInterval)
	cleanupJob.Start()
	defer cleanupJob.Stop()

	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      r,
		ReadTimeout:  config.ServerReadTimeout,
		WriteTimeout: 0,
		IdleTimeout:  config.ServerIdleTimeout,
	}

	go func() {
		log.Info().
			Str("addr", cfg.Addr()).
			Str("selectionStore", cfg.SelectionStore).
			Dur("pollInterval", cfg.StatusPollInterval()).
			Bool("pollEnabled", cfg.StatusPollEnabled).
			Msg("starting server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), config.ServerShutdownTimeout)
	defer shutdownCancel()

	sessions.Close()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}

func setLogLevel(level string) {
	switch level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}
