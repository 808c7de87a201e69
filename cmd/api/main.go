package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/dvloznov/statement-insights/internal/api"
	"github.com/dvloznov/statement-insights/internal/classifier"
	"github.com/dvloznov/statement-insights/internal/config"
	"github.com/dvloznov/statement-insights/internal/jobs/inmemory"
	"github.com/dvloznov/statement-insights/internal/logger"
	"github.com/dvloznov/statement-insights/internal/oracle"
	"github.com/dvloznov/statement-insights/internal/pipeline"
	"github.com/dvloznov/statement-insights/internal/session"
	"github.com/dvloznov/statement-insights/internal/source"
)

func main() {
	bootLog := logger.New()

	cfg, err := config.Load()
	if err != nil {
		bootLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log, err := logger.NewWithLevel(cfg.LogLevel)
	if err != nil {
		bootLog.Fatal().Err(err).Msg("Invalid log level")
	}

	ctx := context.Background()

	// A missing credential does not stop the server; uploads are refused
	// until one is configured.
	var batcher *classifier.Batcher
	if err := cfg.RequireOracleCredential(); err != nil {
		log.Warn().Err(err).Msg("Oracle not configured - statement uploads will be rejected")
	} else {
		batcher, err = newBatcher(ctx, cfg, log)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create classifier")
		}
		log.Info().
			Str("model", cfg.OracleModel).
			Str("credential_source", cfg.CredentialSource).
			Msg("Oracle configured")
	}

	sessions := session.NewStore(cfg.SessionTTL)

	deps := pipeline.Deps{
		Loader:          source.NewLoader(source.GCSFetcher{CredentialsFile: cfg.GCSCredentialsFile}),
		Sessions:        sessions,
		DefaultEncoding: cfg.StatementEncoding,
	}
	// Assigning a nil *Batcher would give the interface a non-nil value.
	if batcher != nil {
		deps.Classifier = batcher
	}
	statementPipeline := pipeline.NewStatementPipeline(deps)

	// Initialize job infrastructure
	jobStore := inmemory.NewStore()
	jobQueue := inmemory.NewQueue(cfg.JobQueueSize, cfg.JobWorkers, jobStore, log)

	workerCtx, cancelWorker := context.WithCancel(ctx)
	defer cancelWorker()

	if err := jobQueue.Start(workerCtx, statementPipeline.JobHandler(log)); err != nil {
		log.Fatal().Err(err).Msg("Failed to start job workers")
	}
	log.Info().Int("workers", cfg.JobWorkers).Msg("Job workers started")

	if cfg.SessionTTL > 0 {
		go expireSessions(workerCtx, sessions, cfg.SessionTTL, log)
	}

	server := api.New(api.Config{
		Port:            cfg.Port,
		Log:             log,
		Sessions:        sessions,
		JobStore:        jobStore,
		Publisher:       jobQueue,
		CheckCredential: cfg.RequireOracleCredential,
	})

	go func() {
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	// Let in-flight jobs finish before cancelling their context.
	if err := jobQueue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error stopping job queue")
	}
	cancelWorker()

	log.Info().Msg("Server exited")
}

func newBatcher(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*classifier.Batcher, error) {
	gemini, err := oracle.NewGeminiOracle(ctx, oracle.Config{
		APIKey:          cfg.OracleAPIKey,
		Model:           cfg.OracleModel,
		Temperature:     cfg.OracleTemperature,
		ItemConcurrency: cfg.OracleItemConcurrency,
		Logger:          log,
	})
	if err != nil {
		return nil, err
	}

	policy := classifier.Permissive
	if cfg.StrictLabels {
		policy = classifier.Strict
	}

	return classifier.New(gemini,
		classifier.WithBatchSize(cfg.BatchSize),
		classifier.WithConcurrency(cfg.BatchConcurrency),
		classifier.WithCallTimeout(cfg.OracleCallTimeout),
		classifier.WithLabelPolicy(policy),
		classifier.WithLogger(log),
	)
}

func expireSessions(ctx context.Context, sessions *session.Store, ttl time.Duration, log zerolog.Logger) {
	ticker := time.NewTicker(ttl / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if n := sessions.Expire(now); n > 0 {
				log.Info().Int("expired", n).Int("remaining", sessions.Len()).Msg("Expired idle sessions")
			}
		}
	}
}
