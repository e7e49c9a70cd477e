package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"plant-photo-backend/internal/cache"
	"plant-photo-backend/internal/config"
	"plant-photo-backend/internal/handlers"
	"plant-photo-backend/internal/migrate"
	"plant-photo-backend/internal/models"
	"plant-photo-backend/internal/repository"
	"plant-photo-backend/internal/repository/memory"
	"plant-photo-backend/internal/repository/postgres"
	"plant-photo-backend/internal/services"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func Run() {
	// Load configuration
	cfg, err := config.Load(configPath())
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Setup logger
	setupLogger(cfg.Log.Level)

	if cfg.JWT.Secret == config.DefaultJWTSecret {
		log.Warn().Msg("Using the default JWT secret; tokens can be forged")
	}

	ctx := context.Background()

	store, err := openStore(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.Storage.Driver).Msg("Failed to open storage")
	}
	defer store.Close()

	var statsCache services.StatsCache
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Warn().Err(err).Str("addr", cfg.Redis.Addr).Msg("Redis unreachable, stats cache disabled")
		} else {
			statsCache = cache.NewStatsCache(rdb, cfg.Redis.TTL)
			log.Info().Str("addr", cfg.Redis.Addr).Msg("Stats cache enabled")
		}
	}

	verifier, err := newVerifier(ctx, cfg.Verifier)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create verifier")
	}

	uploadOpts := []services.UploadOption{services.WithMaxSize(cfg.Upload.MaxSizeBytes)}
	if cfg.AWS.S3Bucket != "" {
		archive, err := services.NewS3Archive(ctx, services.S3Options{
			Region:    cfg.AWS.Region,
			Bucket:    cfg.AWS.S3Bucket,
			AccessKey: cfg.AWS.AccessKey,
			SecretKey: cfg.AWS.SecretKey,
			Endpoint:  cfg.AWS.Endpoint,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create image archive")
		}
		uploadOpts = append(uploadOpts, services.WithArchive(archive))
		log.Info().Str("bucket", cfg.AWS.S3Bucket).Msg("Image archive enabled")
	}

	// Initialize services
	wsHub := services.NewWSHub()
	uploadOpts = append(uploadOpts, services.WithFeed(wsHub))

	statsService := services.NewStatsService(store.Stats(), statsCache, wsHub)
	userService := services.NewUserService(store.Users(), store.Uploads(), statsService, cfg.JWT.Secret, cfg.Demo.Username)
	uploadService := services.NewUploadService(
		store.Uploads(),
		services.NewTimeoutVerifier(verifier, cfg.Verifier.Timeout),
		services.NewScoringPolicy(cfg.Scoring.Award),
		statsService,
		uploadOpts...,
	)

	if _, err := userService.EnsureDemoUser(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to seed demo user")
	}
	if _, err := statsService.Recompute(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to compute initial stats")
	}

	router := handlers.NewRouter(handlers.Services{
		Users:   userService,
		Uploads: uploadService,
		Stats:   statsService,
		Hub:     wsHub,
	})

	// Create HTTP server
	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info().
			Str("host", cfg.Server.Host).
			Int("port", cfg.Server.Port).
			Str("storage", cfg.Storage.Driver).
			Str("verifier", cfg.Verifier.Mode).
			Msg("Starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed to start")
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	// hijacked WebSocket connections are not closed by Shutdown
	wsHub.Close()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}

func configPath() string {
	if p := os.Getenv("CONFIG_PATH"); p != "" {
		return p
	}
	return "config.yaml"
}

// openStore returns the configured backend. Postgres is migrated before use.
func openStore(ctx context.Context, cfg *config.Config) (repository.Store, error) {
	if cfg.Storage.Driver != "postgres" {
		log.Info().Msg("Using in-memory storage")
		return memory.New(), nil
	}

	dsn := cfg.Database.DSN()
	if err := migrate.Up(ctx, dsn); err != nil {
		return nil, err
	}
	db, err := postgres.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	log.Info().Msg("Database connection established")
	return postgres.NewStore(db), nil
}

func newVerifier(ctx context.Context, cfg config.VerifierConfig) (services.Verifier, error) {
	switch cfg.Mode {
	case "fixed":
		return services.FixedVerifier{Outcome: models.VerificationStatus(cfg.FixedStatus)}, nil
	case "gemini":
		return services.NewGeminiVerifier(ctx, cfg.Gemini.APIKey, cfg.Gemini.Model)
	default:
		return services.NewRandomVerifier(cfg.SuccessRate, nil), nil
	}
}

// setupLogger configures zerolog logger
func setupLogger(level string) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

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
