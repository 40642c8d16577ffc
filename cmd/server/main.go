package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/handlers"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/friendsforever/server-go/internal/config"
	"github.com/friendsforever/server-go/internal/database"
	"github.com/friendsforever/server-go/internal/handler"
	"github.com/friendsforever/server-go/internal/jobs"
	"github.com/friendsforever/server-go/internal/matchmaking"
	"github.com/friendsforever/server-go/internal/middleware"
	"github.com/friendsforever/server-go/internal/orchestrator"
	"github.com/friendsforever/server-go/internal/presence"
	"github.com/friendsforever/server-go/internal/realtime"
	"github.com/friendsforever/server-go/internal/redis"
	"github.com/friendsforever/server-go/internal/repository"
	"github.com/friendsforever/server-go/internal/service"
	"github.com/friendsforever/server-go/internal/timer"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	setLogLevel(cfg.LogLevel)

	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid config")
	}

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), config.DBPingTimeout)
	if err := db.Ping(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to ping database")
	}
	if err := db.Migrate(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to apply schema")
	}
	cancel()
	log.Info().Msg("database connected")

	redisClient, err := redis.NewClient(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}
	defer redisClient.Close()
	log.Info().Msg("redis connected")

	userRepo := repository.NewUserRepository(db.DB)
	authSessionRepo := repository.NewAuthSessionRepository(db.DB)
	convRepo := repository.NewConversationRepository(db.DB)
	messageRepo := repository.NewMessageRepository(db.DB)
	voteRepo := repository.NewVoteRepository(db.DB)
	photoRepo := repository.NewPhotoRepository(db.DB)
	ratingRepo := repository.NewRatingRepository(db.DB)
	pointsRepo := repository.NewPointsRepository(db)

	rules := service.RulesFromConfig(cfg)

	queue := matchmaking.NewQueue()
	tracker := presence.NewTracker(queue)
	hub := realtime.NewHub(tracker)

	convService := service.NewConversationService(convRepo)
	messageService := service.NewMessageService(messageRepo, convRepo)
	profileService := service.NewProfileService(userRepo)
	pointsService := service.NewPointsService(pointsRepo, redisClient.Client)
	timers := timer.NewManager(convService, hub, cfg.TimerDuration(), cfg.WarningLead())
	photoCoordinator := service.NewPhotoCoordinator(convService, photoRepo, ratingRepo, pointsService, hub, timers, rules)
	voteResolver := service.NewVoteResolver(convService, voteRepo, pointsService, hub, timers, photoCoordinator, rules)

	orch := orchestrator.New(orchestrator.Deps{
		Queue:         queue,
		Presence:      tracker,
		Hub:           hub,
		Timers:        timers,
		Conversations: convService,
		Messages:      messageService,
		Profiles:      profileService,
		Points:        pointsService,
		Votes:         voteResolver,
		Photos:        photoCoordinator,
		Rules:         rules,
	}, cfg.DisconnectGrace())

	runCtx, stopOrchestrator := context.WithCancel(context.Background())
	orchestratorDone := make(chan struct{})
	go func() {
		defer close(orchestratorDone)
		orch.Run(runCtx)
	}()

	authMiddleware := middleware.NewAuthMiddleware(authSessionRepo)
	rateLimitMiddleware := middleware.NewRedisRateLimitMiddleware(redisClient.Client, cfg.RateLimitPerMin)
	securityHeadersMiddleware := middleware.NewSecurityHeadersMiddleware(cfg.IsProduction())

	apiHandler := handler.NewAPIHandler(convService, messageService, profileService, pointsService, cfg.LeaderboardSize)
	wsHandler := handler.NewWebSocketHandler(orch, cfg.AllowedOrigins)
	healthHandler := handler.NewHealthHandler(map[string]handler.Check{
		"database": db.Ping,
		"redis": func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		},
	}, tracker.Online)

	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestLogger)
	r.Use(chimiddleware.Recoverer)

	r.Get("/health", healthHandler.ServeHTTP)

	// No request timeout here: the connection lives as long as the client.
	r.With(authMiddleware.Handler).Get("/ws", wsHandler.ServeHTTP)

	r.Route("/v1", func(r chi.Router) {
		r.Use(chimiddleware.Timeout(config.ServerRequestTimeout))
		r.Use(securityHeadersMiddleware.Handler)
		r.Use(authMiddleware.Handler)
		r.Use(rateLimitMiddleware.Handler)
		r.Mount("/", apiHandler.Routes())
	})

	cors := handlers.CORS(
		handlers.MaxAge(3600),
		handlers.AllowedOrigins(cfg.AllowedOrigins),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Authorization", "Content-Type", "Accept"}),
	)

	cleanupJob := jobs.NewCleanupJob(authSessionRepo, config.CleanupJobInterval)
	cleanupJob.Start()
	defer cleanupJob.Stop()

	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      cors(r),
		ReadTimeout:  config.ServerReadTimeout,
		WriteTimeout: 0,
		IdleTimeout:  config.ServerIdleTimeout,
	}

	go func() {
		log.Info().Str("addr", cfg.Addr()).Msg("starting server")
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

	// Hijacked websockets are not tracked by Shutdown.
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	orch.Shutdown()
	stopOrchestrator()
	<-orchestratorDone

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
