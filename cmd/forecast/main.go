// Command forecast runs one spawn forecast over a survey CSV export and
// serves the resulting prediction set.
//
// Usage:
//
//	SPAWN_INPUT_PATH=data/spawn_surveys.csv \
//	SPAWN_GEOJSON_PATH=predictions.geojson \
//	SPAWN_HTTP_ADDR=:8080 \
//	go run ./cmd/forecast
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/JTDingwall/herringspawnprediction/internal/adapter/csvfile"
	"github.com/JTDingwall/herringspawnprediction/internal/adapter/geojson"
	httpadapter "github.com/JTDingwall/herringspawnprediction/internal/adapter/http"
	kafkaadapter "github.com/JTDingwall/herringspawnprediction/internal/adapter/kafka"
	"github.com/JTDingwall/herringspawnprediction/internal/adapter/mapbox"
	"github.com/JTDingwall/herringspawnprediction/internal/config"
	"github.com/JTDingwall/herringspawnprediction/internal/domain"
	"github.com/JTDingwall/herringspawnprediction/internal/observability"
	"github.com/JTDingwall/herringspawnprediction/internal/pipeline"
	"github.com/JTDingwall/herringspawnprediction/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if cfg.InputPath == "" {
		slog.Error("SPAWN_INPUT_PATH is required")
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	// Initialize geocoder (feature-flagged via SPAWN_MAPBOX_ENABLED / SPAWN_MAPBOX_TOKEN).
	var geocoder domain.Geocoder
	if cfg.MapboxEnabled {
		client := mapbox.NewClient(cfg.MapboxToken, cfg.MapboxTimeout, metrics, logger)
		geocoder = mapbox.NewCachedGeocoder(client, cfg.MapboxCacheSize, metrics)
		metrics.GeocodeEnabled.Set(1)
		logger.Info("mapbox geocoding enabled", "cache_size", cfg.MapboxCacheSize, "timeout", cfg.MapboxTimeout)
	} else {
		logger.Info("mapbox geocoding disabled")
	}

	source := csvfile.NewSource(cfg.InputPath)

	var sinks []pipeline.PredictionSink
	var publisher *kafkaadapter.Publisher
	if cfg.GeoJSONPath != "" {
		sinks = append(sinks, geojson.NewSink(cfg.GeoJSONPath))
	}
	if len(cfg.KafkaBrokers) > 0 {
		publisher = kafkaadapter.NewPublisher(cfg, logger)
		sinks = append(sinks, publisher)
		logger.Info("kafka publishing enabled", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaTopic)
	}

	p := pipeline.New(source, sinks, geocoder, logger, metrics,
		cfg.Window(), cfg.ForecastParams(), cfg.MinMeasuredEvents)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	report, err := p.Run(ctx)
	if err != nil {
		logger.Error("forecast run failed", "error", err)
		os.Exit(1)
	}

	if cfg.SQLitePath != "" {
		if err := archiveRun(ctx, cfg, logger, report, p.Latest()); err != nil {
			logger.Error("archive run failed", "error", err)
			os.Exit(1)
		}
	}

	if publisher != nil {
		if err := publisher.Close(); err != nil {
			logger.Error("kafka writer close error", "error", err)
		}
	}

	// Batch mode: no HTTP address means run once and exit.
	if cfg.HTTPAddr == "" {
		return
	}

	srv := httpadapter.NewServer(cfg.HTTPAddr, p, logger)
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

	logger.Info("shutdown complete")
}

// archiveRun persists the report and prediction set to the SQLite archive.
func archiveRun(ctx context.Context, cfg *config.Config, logger *slog.Logger,
	report pipeline.Report, preds []domain.Prediction) error {
	st, err := store.Open(cfg.SQLitePath)
	if err != nil {
		return err
	}
	defer st.Close() //nolint:errcheck // read-only after commit

	if err := st.Migrate(ctx); err != nil {
		return err
	}
	runID, err := st.SaveRun(ctx, report, preds)
	if err != nil {
		return err
	}
	logger.Info("forecast run archived", "run_id", runID, "path", cfg.SQLitePath)
	return nil
}
