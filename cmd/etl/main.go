package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"

	httpadapter "github.com/couchcryptid/maritime-event-pipeline/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/maritime-event-pipeline/internal/adapter/kafka"
	"github.com/couchcryptid/maritime-event-pipeline/internal/cache"
	"github.com/couchcryptid/maritime-event-pipeline/internal/config"
	"github.com/couchcryptid/maritime-event-pipeline/internal/detect"
	"github.com/couchcryptid/maritime-event-pipeline/internal/domain"
	"github.com/couchcryptid/maritime-event-pipeline/internal/observability"
	"github.com/couchcryptid/maritime-event-pipeline/internal/pipeline"
	"github.com/couchcryptid/maritime-event-pipeline/internal/source"
)

func main() {
	// Optional .env for local development; absence is fine.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	src, err := newSource(ctx, cfg)
	if err != nil {
		logger.Error("failed to init source", "error", err)
		os.Exit(1)
	}

	store, err := cache.Open(cfg.CachePath)
	if err != nil {
		logger.Error("failed to open snapshot cache", "path", cfg.CachePath, "error", err)
		os.Exit(1)
	}

	vocab, err := loadVocabulary(cfg, logger)
	if err != nil {
		logger.Error("failed to load vocabulary", "path", cfg.VocabPath, "error", err)
		os.Exit(1)
	}

	detector, err := loadDetector(cfg, logger)
	if err != nil {
		logger.Error("failed to load detection rules", "path", cfg.DetectRulesPath, "error", err)
		os.Exit(1)
	}

	// Kafka publishing is feature-flagged via KAFKA_ENABLED.
	var writer *kafkaadapter.Writer
	var sink pipeline.Publisher
	if cfg.KafkaEnabled {
		writer = kafkaadapter.NewWriter(cfg, logger)
		sink = writer
		logger.Info("kafka publishing enabled", "topic", cfg.KafkaTopic, "brokers", cfg.KafkaBrokers)
	} else {
		logger.Info("kafka publishing disabled")
	}

	p := pipeline.New(pipeline.Options{
		Source:         src,
		Cache:          store,
		Sink:           sink,
		Vocabulary:     vocab,
		Detector:       detector,
		MaritimeFilter: cfg.MaritimeFilter,
		CacheKeep:      cfg.CacheKeep,
		Logger:         logger,
		Metrics:        metrics,
	})

	srv := httpadapter.NewServer(cfg.HTTPAddr, p, cfg.EventSampleLimit, logger)

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	// Serve the last cached snapshot immediately, then refresh from source.
	go func() {
		p.Restore(ctx)
		if err := p.Refresh(ctx, false); err != nil {
			logger.Error("initial refresh failed", "error", err)
		}
	}()

	var scheduler *cron.Cron
	if cfg.RefreshSchedule != "" {
		scheduler = cron.New()
		if _, err := scheduler.AddFunc(cfg.RefreshSchedule, func() {
			if err := p.Refresh(ctx, false); err != nil {
				logger.Error("scheduled refresh failed", "error", err)
			}
		}); err != nil {
			logger.Error("invalid refresh schedule", "schedule", cfg.RefreshSchedule, "error", err)
			os.Exit(1)
		}
		scheduler.Start()
		logger.Info("refresh schedule active", "schedule", cfg.RefreshSchedule)
	}

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if scheduler != nil {
		select {
		case <-scheduler.Stop().Done():
		case <-shutdownCtx.Done():
		}
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if writer != nil {
		if err := writer.Close(); err != nil {
			logger.Error("kafka writer close error", "error", err)
		}
	}
	if err := store.Close(); err != nil {
		logger.Error("snapshot cache close error", "error", err)
	}

	logger.Info("shutdown complete")
}

// newSource builds the configured dataset source.
func newSource(ctx context.Context, cfg *config.Config) (source.Source, error) {
	if cfg.SourceKind == "s3" {
		return source.NewS3(ctx, cfg.S3Bucket, cfg.S3Key, source.S3Config{
			Region:       cfg.S3Region,
			Endpoint:     cfg.S3Endpoint,
			UsePathStyle: cfg.S3Endpoint != "",
		})
	}
	return source.NewLocal(cfg.CSVPath), nil
}

// loadVocabulary returns the optional VOCAB_PATH overlay, or nil so the
// pipeline falls back to the built-in vocabulary.
func loadVocabulary(cfg *config.Config, logger *slog.Logger) (*domain.Vocabulary, error) {
	if cfg.VocabPath == "" {
		return nil, nil
	}
	vocab, err := domain.LoadVocabulary(cfg.VocabPath)
	if err != nil {
		return nil, err
	}
	logger.Info("vocabulary overlay loaded", "path", cfg.VocabPath)
	return vocab, nil
}

// loadDetector returns the optional DETECT_RULES_PATH overlay, or nil so the
// pipeline falls back to the built-in detection rules.
func loadDetector(cfg *config.Config, logger *slog.Logger) (*detect.Detector, error) {
	if cfg.DetectRulesPath == "" {
		return nil, nil
	}
	rules, err := detect.LoadRules(cfg.DetectRulesPath)
	if err != nil {
		return nil, err
	}
	detector, err := detect.New(rules)
	if err != nil {
		return nil, err
	}
	logger.Info("detection rules overlay loaded", "path", cfg.DetectRulesPath)
	return detector, nil
}
