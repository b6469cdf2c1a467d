// Package http serves the analysis REST API alongside health, readiness and
// metrics endpoints.
package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/couchcryptid/satellite-change-service/internal/analysis"
	"github.com/couchcryptid/satellite-change-service/internal/domain"
	"github.com/couchcryptid/satellite-change-service/internal/locations"
	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Analyzer is the analysis service consumed by the handlers.
type Analyzer interface {
	Analyze(ctx context.Context, req analysis.AnalyzeRequest) (analysis.AnalysisResult, error)
	AnalyzeImages(ctx context.Context, req analysis.ImagesRequest) (analysis.AnalysisResult, error)
	Compare(ctx context.Context, req analysis.CompareRequest) (domain.ChangeRecord, error)
	Search(ctx context.Context, req analysis.SearchRequest) (analysis.SearchResult, error)
	Sources() *analysis.Registry
	Catalog() domain.ImageCatalog
	CheckReadiness(ctx context.Context) error
}

// Options configures the API surface.
type Options struct {
	AllowedOrigins []string
	UploadMaxBytes int64
	Locations      []locations.Sample
}

// Server exposes the API plus /healthz, /readyz and /metrics.
type Server struct {
	httpServer *http.Server
	svc        Analyzer
	opts       Options
	logger     *slog.Logger
}

// NewServer creates an HTTP server with every API route registered.
func NewServer(addr string, svc Analyzer, opts Options, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      withCORS(opts.AllowedOrigins, mux),
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 5 * time.Minute,
			IdleTimeout:  60 * time.Second,
		},
		svc:    svc,
		opts:   opts,
		logger: logger,
	}

	mux.HandleFunc("GET /{$}", s.handleRoot)
	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.HandleFunc("GET /api/data-sources", s.handleDataSources)
	mux.HandleFunc("POST /api/data-sources/switch", s.handleSwitchSource)
	mux.HandleFunc("POST /api/search", s.handleSearch)
	mux.HandleFunc("POST /api/analyze", s.handleAnalyze)
	mux.HandleFunc("POST /api/analyze-image", s.handleAnalyzeImage)
	mux.HandleFunc("GET /api/compare", s.handleCompare)
	mux.HandleFunc("GET /api/images", s.handleListImages)
	mux.HandleFunc("GET /api/images/{filename}", s.handleGetImage)
	mux.HandleFunc("GET /api/sample-locations", s.handleSampleLocations)

	mux.HandleFunc("GET /healthz", sharedobs.LivenessHandler())
	mux.HandleFunc("GET /readyz", sharedobs.ReadinessHandler(svc))
	mux.Handle("GET /metrics", promhttp.Handler())

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}
