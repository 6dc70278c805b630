package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/clinscribe/backend/internal/adapters/cache"
	"github.com/clinscribe/backend/internal/adapters/database"
	"github.com/clinscribe/backend/internal/adapters/events"
	"github.com/clinscribe/backend/internal/adapters/providers/notegen"
	"github.com/clinscribe/backend/internal/adapters/providers/transcription"
	"github.com/clinscribe/backend/internal/api/handlers"
	"github.com/clinscribe/backend/internal/api/routes"
	"github.com/clinscribe/backend/internal/application/services"
	"github.com/clinscribe/backend/internal/domain/providers"
	"github.com/clinscribe/backend/internal/infrastructure/clients/postgres"
	"github.com/clinscribe/backend/internal/infrastructure/clients/redis"
	"github.com/clinscribe/backend/internal/infrastructure/observability"
	"github.com/clinscribe/backend/pkg/config"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	observability.InitLogger(cfg.OTEL.ServiceName, cfg.Environment)
	logger := observability.GetLogger()

	// Set up context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize OpenTelemetry if enabled
	if cfg.OTEL.Enabled && cfg.OTEL.Endpoint != "" {
		shutdown, err := observability.Setup(
			ctx,
			cfg.OTEL.ServiceName,
			cfg.OTEL.ServiceVersion,
			cfg.OTEL.Endpoint,
		)
		if err != nil {
			logger.Warn().Err(err).Msg("failed to set up OpenTelemetry")
		} else {
			defer func() {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := shutdown(ctx); err != nil {
					logger.Error().Err(err).Msg("error shutting down OpenTelemetry")
				}
			}()
			logger.Info().Msg("OpenTelemetry initialized")
		}
	}

	// Initialize metrics
	metrics, err := observability.InitMetrics()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize metrics")
	}

	// Initialize database client
	pgClient, err := postgres.NewClient(&cfg.Database)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize PostgreSQL client")
	}
	defer pgClient.Close()
	logger.Info().Msg("PostgreSQL client initialized")

	// Initialize Redis client
	redisClient, err := redis.NewClient(&cfg.Redis)
	if err != nil {
		// Continue without Redis - caching and events degrade gracefully
		logger.Warn().Err(err).Msg("failed to initialize Redis client")
		redisClient = nil
	} else {
		defer redisClient.Close()
		logger.Info().Msg("Redis client initialized")
	}

	// Initialize adapters
	consultationAdapter := database.NewConsultationAdapter(pgClient)
	audioFileAdapter := database.NewAudioFileAdapter(pgClient)
	soapNoteAdapter := database.NewSOAPNoteAdapter(pgClient)
	patientProfileAdapter := database.NewPatientProfileAdapter(pgClient)

	var cacheProvider providers.CacheProvider
	if redisClient != nil {
		cacheProvider = cache.NewRedisAdapter(redisClient)
	}

	// Initialize event bus for real-time consultation updates
	var eventBus providers.EventBus
	if redisClient != nil {
		eventBus = events.NewRedisEventBus(redisClient)
		logger.Info().Msg("event bus initialized")
	} else {
		logger.Info().Msg("event bus disabled (Redis not available)")
	}

	// Initialize external providers
	transcriptionProvider, err := transcription.NewTranscriptionProvider(&cfg.Transcription, metrics)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize transcription provider")
	}
	logger.Info().Str("provider", cfg.Transcription.Provider).Msg("transcription provider initialized")

	noteGenProvider, err := notegen.NewNoteGenerationProvider(&cfg.NoteGen, metrics)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize note generation provider")
	}
	logger.Info().Str("provider", cfg.NoteGen.Provider).Msg("note generation provider initialized")

	// Initialize services
	patientContextService := services.NewPatientContextService(patientProfileAdapter)

	processor := services.NewConsultationProcessor(
		consultationAdapter,
		audioFileAdapter,
		patientContextService,
		transcriptionProvider,
		noteGenProvider,
		eventBus,
		metrics,
	)

	queryService := services.NewConsultationQueryService(
		consultationAdapter,
		soapNoteAdapter,
		cacheProvider,
	)

	// Initialize handlers
	consultationHandler := handlers.NewConsultationHandler(processor, queryService)

	// Set up router
	router := routes.NewRouter(consultationHandler, metrics)
	handler := router.SetupRoutes()

	// Create HTTP server
	serverAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         serverAddr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Info().Str("addr", serverAddr).Msg("server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server failed to start")
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("server shutting down")

	// Graceful shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("error during server shutdown")
	}

	// Close event bus
	if eventBus != nil {
		if err := eventBus.Close(); err != nil {
			logger.Error().Err(err).Msg("error closing event bus")
		}
	}

	logger.Info().Msg("server stopped")
}
