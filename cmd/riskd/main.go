package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	httpadapter "github.com/couchcryptid/maternal-heat-risk/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/maternal-heat-risk/internal/adapter/kafka"
	"github.com/couchcryptid/maternal-heat-risk/internal/adapter/llm"
	"github.com/couchcryptid/maternal-heat-risk/internal/adapter/openweather"
	"github.com/couchcryptid/maternal-heat-risk/internal/adapter/sqlite"
	"github.com/couchcryptid/maternal-heat-risk/internal/config"
	"github.com/couchcryptid/maternal-heat-risk/internal/domain"
	"github.com/couchcryptid/maternal-heat-risk/internal/observability"
	"github.com/couchcryptid/maternal-heat-risk/internal/pipeline"
	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := sharedobs.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := sqlite.Open(ctx, cfg.DatabasePath, logger)
	if err != nil {
		logger.Error("failed to open database", "path", cfg.DatabasePath, "error", err)
		os.Exit(1)
	}
	defer store.Close() //nolint:errcheck // closed on exit

	weather := openweather.NewClient(cfg.WeatherAPIKey, cfg.WeatherBaseURL, cfg.WeatherTimeout, metrics, logger)
	if cfg.WeatherAPIKey == "" {
		logger.Warn("WEATHER_API_KEY is not set, location risk will be scored as unavailable")
	}

	// Recommendations are feature-flagged via AI_ENABLED / OPENAI_API_KEY.
	var (
		recommender domain.Recommender
		advisor     domain.Advisor
	)
	if cfg.AIEnabled {
		client := llm.NewClient(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.AIModel, cfg.AITimeout, metrics, logger)
		breaker := llm.NewBreakerRecommender(client, llm.DefaultTripAfter, llm.DefaultOpenTimeout, metrics, logger)
		cached, err := llm.NewCachedRecommender(breaker, cfg.AICacheSize, metrics)
		if err != nil {
			logger.Error("failed to create recommendation cache", "error", err)
			os.Exit(1)
		}
		recommender = cached
		advisor = llm.NewBreakerAdvisor(client, llm.DefaultTripAfter, llm.DefaultOpenTimeout, metrics, logger)
		metrics.AIEnabled.Set(1)
		logger.Info("ai recommendations enabled", "model", cfg.AIModel, "cache_size", cfg.AICacheSize, "timeout", cfg.AITimeout)
	} else {
		logger.Info("ai recommendations disabled")
	}

	checks := httpadapter.Checks{store}

	var (
		reader *kafkaadapter.Reader
		writer *kafkaadapter.Writer
	)
	if cfg.KafkaEnabled {
		reader = kafkaadapter.NewReader(cfg, logger)
		writer = kafkaadapter.NewWriter(cfg, logger)
		loader := pipeline.FanOut{writer, pipeline.NewHistoryLoader(store, logger)}
		p := pipeline.New(reader, pipeline.NewAssessor(weather, metrics, logger), loader, logger, metrics, cfg.BatchSize)
		checks = append(checks, p)

		go func() {
			if err := p.Run(ctx); err != nil {
				logger.Error("pipeline error", "error", err)
			}
		}()
	} else {
		logger.Info("assessment pipeline disabled")
	}

	srv := httpadapter.NewServer(cfg.HTTPAddr, httpadapter.Services{
		Patients:    store,
		History:     store,
		Weather:     weather,
		Recommender: recommender,
		Advisor:     advisor,
		Ready:       checks,
		Metrics:     metrics,
	}, logger)

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if reader != nil {
		if err := reader.Close(); err != nil {
			logger.Error("kafka reader close error", "error", err)
		}
	}
	if writer != nil {
		if err := writer.Close(); err != nil {
			logger.Error("kafka writer close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}
