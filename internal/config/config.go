package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
)

// DefaultZeroShotLabels are the land-cover prompts scored by the model.
var DefaultZeroShotLabels = []string{
	"urban area",
	"forest",
	"agricultural land",
	"grassland",
	"water body",
	"barren land",
	"wetland",
	"snow and ice",
}

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr           string
	LogLevel           string
	LogFormat          string
	ShutdownTimeout    time.Duration
	CORSAllowedOrigins []string

	// Imagery.
	DataSource       string
	DataDir          string
	ImageSize        int
	MaxCloudCover    float64
	MaxYearSpan      int
	FetchConcurrency int
	UploadMaxBytes   int64

	EarthEngineProject string
	EarthEngineBaseURL string
	EarthEngineToken   string
	EarthEngineTimeout time.Duration

	STACURL     string
	STACTimeout time.Duration

	// Embedding model.
	RemoteCLIPURL      string
	RemoteCLIPModel    string
	RemoteCLIPTimeout  time.Duration
	EmbeddingDim       int
	EmbeddingCacheSize int
	ZeroShotLabels     []string

	// Mapbox geocoding configuration.
	MapboxToken     string
	MapboxEnabled   bool
	MapboxTimeout   time.Duration
	MapboxCacheSize int

	// OpenStreetMap land-cover context.
	OverpassURL          string
	OverpassTimeout      time.Duration
	OverpassRadiusMeters int

	// Optional sinks.
	KafkaBrokers  []string
	KafkaTopic    string
	PostgresURL   string
	PostHogAPIKey string
	PostHogHost   string
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	var errs []error
	duration := func(key, def string) time.Duration {
		d, err := time.ParseDuration(sharedcfg.EnvOrDefault(key, def))
		if err != nil || d <= 0 {
			errs = append(errs, fmt.Errorf("invalid %s", key))
		}
		return d
	}
	positiveInt := func(key string, def int) int {
		n, err := strconv.Atoi(sharedcfg.EnvOrDefault(key, strconv.Itoa(def)))
		if err != nil || n <= 0 {
			errs = append(errs, fmt.Errorf("invalid %s: must be a positive integer", key))
		}
		return n
	}

	mapboxToken := os.Getenv("MAPBOX_TOKEN")
	mapboxEnabled := mapboxToken != ""
	if v := os.Getenv("MAPBOX_ENABLED"); v != "" {
		mapboxEnabled = v == "true"
	}

	var brokers []string
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		brokers = sharedcfg.ParseBrokers(v)
	}

	cfg := &Config{
		HTTPAddr:           sharedcfg.EnvOrDefault("HTTP_ADDR", ":8000"),
		LogLevel:           sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:          sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout:    shutdownTimeout,
		CORSAllowedOrigins: splitList(sharedcfg.EnvOrDefault("CORS_ALLOWED_ORIGINS", "http://localhost:3000,http://127.0.0.1:3000,http://localhost:3001,http://127.0.0.1:3001")),

		DataSource:       sharedcfg.EnvOrDefault("DATA_SOURCE", "gee"),
		DataDir:          sharedcfg.EnvOrDefault("DATA_DIR", "data"),
		ImageSize:        positiveInt("IMAGE_SIZE", 512),
		MaxYearSpan:      positiveInt("MAX_YEAR_SPAN", 10),
		FetchConcurrency: positiveInt("FETCH_CONCURRENCY", 4),
		UploadMaxBytes:   int64(positiveInt("UPLOAD_MAX_BYTES", 20<<20)),

		EarthEngineProject: sharedcfg.EnvOrDefault("EE_PROJECT", "earthengine-public"),
		EarthEngineBaseURL: strings.TrimRight(sharedcfg.EnvOrDefault("EE_BASE_URL", "https://earthengine.googleapis.com"), "/"),
		EarthEngineToken:   os.Getenv("EE_ACCESS_TOKEN"),
		EarthEngineTimeout: duration("EE_TIMEOUT", "30s"),

		STACURL:     strings.TrimRight(sharedcfg.EnvOrDefault("STAC_URL", "https://earth-search.aws.element84.com/v1"), "/"),
		STACTimeout: duration("STAC_TIMEOUT", "30s"),

		RemoteCLIPURL:      strings.TrimRight(os.Getenv("REMOTECLIP_URL"), "/"),
		RemoteCLIPModel:    sharedcfg.EnvOrDefault("REMOTECLIP_MODEL", "RemoteCLIP-ViT-B-32"),
		RemoteCLIPTimeout:  duration("REMOTECLIP_TIMEOUT", "30s"),
		EmbeddingDim:       positiveInt("EMBEDDING_DIM", 512),
		EmbeddingCacheSize: positiveInt("EMBEDDING_CACHE_SIZE", 256),
		ZeroShotLabels:     DefaultZeroShotLabels,

		MapboxToken:     mapboxToken,
		MapboxEnabled:   mapboxEnabled,
		MapboxTimeout:   duration("MAPBOX_TIMEOUT", "5s"),
		MapboxCacheSize: parseMapboxCacheSize(),

		OverpassURL:          os.Getenv("OVERPASS_URL"),
		OverpassTimeout:      duration("OVERPASS_TIMEOUT", "15s"),
		OverpassRadiusMeters: positiveInt("OVERPASS_RADIUS_METERS", 500),

		KafkaBrokers:  brokers,
		KafkaTopic:    sharedcfg.EnvOrDefault("KAFKA_TOPIC", "satellite-change-events"),
		PostgresURL:   os.Getenv("POSTGRES_URL"),
		PostHogAPIKey: os.Getenv("POSTHOG_API_KEY"),
		PostHogHost:   sharedcfg.EnvOrDefault("POSTHOG_HOST", "https://us.i.posthog.com"),
	}

	if v := os.Getenv("ZERO_SHOT_LABELS"); v != "" {
		cfg.ZeroShotLabels = splitList(v)
	}

	maxCloud, err := strconv.ParseFloat(sharedcfg.EnvOrDefault("MAX_CLOUD_COVER", "20"), 64)
	if err != nil || maxCloud <= 0 || maxCloud > 100 {
		errs = append(errs, errors.New("invalid MAX_CLOUD_COVER: must be in (0, 100]"))
	}
	cfg.MaxCloudCover = maxCloud

	switch cfg.DataSource {
	case "gee", "aws", "sample":
	default:
		errs = append(errs, fmt.Errorf("invalid DATA_SOURCE %q: use gee, aws or sample", cfg.DataSource))
	}
	if cfg.MapboxEnabled && cfg.MapboxToken == "" {
		errs = append(errs, errors.New("MAPBOX_ENABLED is true but MAPBOX_TOKEN is not set"))
	}
	if len(cfg.ZeroShotLabels) == 0 {
		errs = append(errs, errors.New("ZERO_SHOT_LABELS must list at least one label"))
	}

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return cfg, nil
}

func parseMapboxCacheSize() int {
	if s := os.Getenv("MAPBOX_CACHE_SIZE"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			return n
		}
	}
	return 1000
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
