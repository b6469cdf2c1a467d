package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/couchcryptid/satellite-change-service/internal/adapter/catalog"
	"github.com/couchcryptid/satellite-change-service/internal/adapter/earthengine"
	httpadapter "github.com/couchcryptid/satellite-change-service/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/satellite-change-service/internal/adapter/kafka"
	"github.com/couchcryptid/satellite-change-service/internal/adapter/mapbox"
	"github.com/couchcryptid/satellite-change-service/internal/adapter/overpass"
	"github.com/couchcryptid/satellite-change-service/internal/adapter/remoteclip"
	"github.com/couchcryptid/satellite-change-service/internal/adapter/sample"
	"github.com/couchcryptid/satellite-change-service/internal/adapter/stac"
	"github.com/couchcryptid/satellite-change-service/internal/analysis"
	"github.com/couchcryptid/satellite-change-service/internal/analytics"
	"github.com/couchcryptid/satellite-change-service/internal/config"
	"github.com/couchcryptid/satellite-change-service/internal/domain"
	"github.com/couchcryptid/satellite-change-service/internal/locations"
	"github.com/couchcryptid/satellite-change-service/internal/observability"
	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := sharedobs.NewLogger(cfg.LogLevel, cfg.LogFormat).With("service", "satellite-change")
	metrics := observability.NewMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sources := newRegistry(ctx, cfg, metrics, logger)
	active, err := sources.Activate(domain.DataSource(cfg.DataSource))
	if err != nil {
		logger.Error("no imagery source available", "error", err)
		os.Exit(1)
	}
	logger.Info("imagery source ready", "active", active)

	embedder, err := newEmbedder(cfg, metrics, logger)
	if err != nil {
		logger.Error("failed to create embedder", "error", err)
		os.Exit(1)
	}

	deps := analysis.Deps{Sources: sources, Embedder: embedder}
	var closers []func() error

	// Image catalog: Postgres when configured, local disk otherwise.
	if cfg.PostgresURL != "" {
		store, err := catalog.NewPostgresStore(ctx, cfg.PostgresURL, logger)
		if err != nil {
			logger.Error("failed to connect to postgres", "error", err)
			os.Exit(1)
		}
		deps.Catalog = store
		closers = append(closers, store.Close)
		logger.Info("postgres image catalog enabled")
	} else {
		deps.Catalog = catalog.NewDiskStore(cfg.DataDir, logger)
		logger.Info("disk image catalog enabled", "data_dir", cfg.DataDir)
	}

	// Reverse geocoding (feature-flagged via MAPBOX_ENABLED / MAPBOX_TOKEN).
	if cfg.MapboxEnabled {
		client := mapbox.NewClient(cfg.MapboxToken, cfg.MapboxTimeout, metrics, logger)
		geocoder, err := mapbox.NewCachedGeocoder(client, cfg.MapboxCacheSize, metrics)
		if err != nil {
			logger.Error("failed to create geocode cache", "error", err)
			os.Exit(1)
		}
		deps.Geocoder = geocoder
		logger.Info("mapbox geocoding enabled", "cache_size", cfg.MapboxCacheSize, "timeout", cfg.MapboxTimeout)
	} else {
		logger.Info("mapbox geocoding disabled")
	}

	if cfg.OverpassURL != "" {
		deps.LandCover = overpass.NewClient(cfg.OverpassURL, cfg.OverpassRadiusMeters, cfg.OverpassTimeout, logger)
		logger.Info("overpass land cover enabled", "radius_m", cfg.OverpassRadiusMeters)
	}

	if len(cfg.KafkaBrokers) > 0 {
		writer := kafkaadapter.NewWriter(cfg, metrics, logger)
		deps.Publisher = writer
		closers = append(closers, writer.Close)
		logger.Info("kafka event publishing enabled", "topic", cfg.KafkaTopic)
	}

	if cfg.PostHogAPIKey != "" {
		tracker, err := analytics.NewPostHog(cfg.PostHogAPIKey, cfg.PostHogHost, logger)
		if err != nil {
			logger.Error("failed to create posthog client", "error", err)
			os.Exit(1)
		}
		deps.Tracker = tracker
		closers = append(closers, tracker.Close)
		logger.Info("posthog analytics enabled")
	}

	samples, err := locations.Builtin()
	if err != nil {
		logger.Error("failed to load sample locations", "error", err)
		os.Exit(1)
	}

	svc := analysis.New(deps, analysis.Options{
		MaxCloudCover:    cfg.MaxCloudCover,
		MaxYearSpan:      cfg.MaxYearSpan,
		FetchConcurrency: cfg.FetchConcurrency,
		ImageSize:        cfg.ImageSize,
	}, logger, metrics)

	srv := httpadapter.NewServer(cfg.HTTPAddr, svc, httpadapter.Options{
		AllowedOrigins: cfg.CORSAllowedOrigins,
		UploadMaxBytes: cfg.UploadMaxBytes,
		Locations:      samples,
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
	for _, closeFn := range closers {
		if err := closeFn(); err != nil {
			logger.Error("close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}

// newRegistry registers every imagery source that can be initialised. The
// sample source is always available.
func newRegistry(ctx context.Context, cfg *config.Config, metrics *observability.Metrics, logger *slog.Logger) *analysis.Registry {
	sources := analysis.NewRegistry(metrics, logger)

	ee, err := earthengine.NewClient(ctx, cfg.EarthEngineBaseURL, cfg.EarthEngineProject, cfg.EarthEngineToken,
		cfg.ImageSize, cfg.EarthEngineTimeout, logger)
	if err != nil {
		logger.Warn("earth engine unavailable", "error", err)
		sources.MarkUnavailable(domain.SourceEarthEngine, err)
	} else {
		sources.Register(ee)
	}

	sources.Register(stac.NewClient(cfg.STACURL, cfg.ImageSize, cfg.STACTimeout, logger))
	sources.Register(sample.NewProvider(cfg.ImageSize))
	return sources
}

// newEmbedder returns the RemoteCLIP client when REMOTECLIP_URL is set and
// the local histogram embedder otherwise, behind the embedding cache.
func newEmbedder(cfg *config.Config, metrics *observability.Metrics, logger *slog.Logger) (domain.Embedder, error) {
	if cfg.RemoteCLIPURL == "" {
		logger.Warn("REMOTECLIP_URL not set, using local histogram embedder")
		return remoteclip.NewCachedEmbedder(remoteclip.NewHistogram(cfg.ZeroShotLabels),
			remoteclip.HistogramModel, cfg.EmbeddingCacheSize, metrics)
	}
	client := remoteclip.NewClient(cfg.RemoteCLIPURL, cfg.RemoteCLIPModel, cfg.ZeroShotLabels,
		cfg.EmbeddingDim, cfg.RemoteCLIPTimeout, logger)
	logger.Info("remoteclip embedder enabled", "model", cfg.RemoteCLIPModel, "dim", cfg.EmbeddingDim)
	return remoteclip.NewCachedEmbedder(client, cfg.RemoteCLIPModel, cfg.EmbeddingCacheSize, metrics)
}
