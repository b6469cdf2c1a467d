// Package analysis orchestrates imagery retrieval, embedding and change
// comparison for a location or a set of uploaded images.
package analysis

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/couchcryptid/satellite-change-service/internal/analytics"
	"github.com/couchcryptid/satellite-change-service/internal/domain"
	"github.com/couchcryptid/satellite-change-service/internal/observability"
)

// Publisher emits analysis events to downstream consumers.
type Publisher interface {
	Publish(ctx context.Context, events ...domain.AnalysisEvent) error
}

// Options tune request defaults and limits.
type Options struct {
	MaxCloudCover    float64
	MaxYearSpan      int
	FetchConcurrency int
	ImageSize        int
}

// Deps are the collaborators of a Service. Sources and Embedder are
// required; the rest are optional and skipped when nil.
type Deps struct {
	Sources   *Registry
	Embedder  domain.Embedder
	Catalog   domain.ImageCatalog
	Geocoder  domain.Geocoder
	LandCover domain.LandCoverSource
	Publisher Publisher
	Tracker   analytics.Tracker
}

// Service runs analyses.
type Service struct {
	deps    Deps
	opts    Options
	logger  *slog.Logger
	metrics *observability.Metrics
}

// New creates a Service.
func New(deps Deps, opts Options, logger *slog.Logger, metrics *observability.Metrics) *Service {
	if deps.Tracker == nil {
		deps.Tracker = analytics.Noop{}
	}
	opts.FetchConcurrency = max(1, opts.FetchConcurrency)
	return &Service{deps: deps, opts: opts, logger: logger, metrics: metrics}
}

// Sources exposes the data-source registry.
func (s *Service) Sources() *Registry { return s.deps.Sources }

// Catalog returns the image catalog, or nil when none is configured.
func (s *Service) Catalog() domain.ImageCatalog { return s.deps.Catalog }

// CheckReadiness reports whether an imagery source is active.
func (s *Service) CheckReadiness(ctx context.Context) error {
	return s.deps.Sources.CheckReadiness(ctx)
}

// observe records the outcome metrics of an endpoint call.
func (s *Service) observe(endpoint string, start time.Time, outcome string) {
	s.metrics.AnalysisRequests.WithLabelValues(endpoint, outcome).Inc()
	s.metrics.AnalysisDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
}

// compareSeries compares consecutive observations and the first with the last.
func (s *Service) compareSeries(obs []domain.Observation) ([]domain.ChangeRecord, *domain.ChangeRecord, error) {
	changes := make([]domain.ChangeRecord, 0, max(0, len(obs)-1))
	for i := 1; i < len(obs); i++ {
		rec, err := domain.Compare(obs[i-1], obs[i])
		if err != nil {
			return nil, nil, fmt.Errorf("compare %d-%d: %w", obs[i-1].Year, obs[i].Year, err)
		}
		s.metrics.ChangeSeverity.Observe(rec.Severity)
		changes = append(changes, rec)
	}
	if len(obs) < 2 {
		return changes, nil, nil
	}
	overall, err := domain.Compare(obs[0], obs[len(obs)-1])
	if err != nil {
		return nil, nil, fmt.Errorf("compare overall: %w", err)
	}
	return changes, &overall, nil
}

// locate builds the location of a request. A non-empty place is resolved
// with the forward geocoder and its coordinates win over lat/lon.
func (s *Service) locate(ctx context.Context, place string, lat, lon float64) (domain.Location, error) {
	place = strings.TrimSpace(place)
	if place == "" {
		loc := domain.Location{Latitude: lat, Longitude: lon}
		return loc, loc.Validate()
	}
	if s.deps.Geocoder == nil {
		return domain.Location{}, fmt.Errorf("%w: place lookup is not configured, send latitude and longitude", domain.ErrInvalidRequest)
	}
	res, err := s.deps.Geocoder.ForwardGeocode(ctx, place)
	if err != nil {
		return domain.Location{}, fmt.Errorf("geocode %q: %w", place, err)
	}
	if res.FormattedAddress == "" && res.Lat == 0 && res.Lon == 0 {
		return domain.Location{}, fmt.Errorf("%w: no match for %q", domain.ErrInvalidLocation, place)
	}
	s.logger.Debug("place resolved", "place", place, "lat", res.Lat, "lon", res.Lon)
	loc := domain.Location{Latitude: res.Lat, Longitude: res.Lon, PlaceName: res.FormattedAddress}
	return loc, loc.Validate()
}

// enrich resolves the place name and land-cover context of loc. Both lookups
// are best effort; an existing place name is kept.
func (s *Service) enrich(ctx context.Context, loc domain.Location) (string, *domain.LandCoverContext) {
	place := loc.PlaceName
	if s.deps.Geocoder != nil && place == "" {
		res, err := s.deps.Geocoder.ReverseGeocode(ctx, loc.Latitude, loc.Longitude)
		if err != nil {
			s.logger.Warn("reverse geocode failed", "error", err)
		} else {
			place = res.FormattedAddress
		}
	}
	if s.deps.LandCover == nil {
		return place, nil
	}
	lc, err := s.deps.LandCover.LandCover(ctx, loc)
	if err != nil {
		s.logger.Warn("land cover lookup failed", "error", err)
		return place, nil
	}
	return place, &lc
}

// catalog stores img and returns its filename, or "" when not stored.
func (s *Service) catalog(ctx context.Context, loc domain.Location, img domain.TemporalImage) string {
	if s.deps.Catalog == nil {
		return ""
	}
	rec, err := s.deps.Catalog.Save(ctx, loc, img)
	if err != nil {
		s.logger.Warn("catalog save failed", "year", img.Year, "error", err)
		return ""
	}
	s.metrics.ImagesCataloged.Inc()
	return rec.Filename
}

// emit publishes and tracks a finished analysis. Failures are logged.
func (s *Service) emit(ctx context.Context, endpoint string, res *AnalysisResult) {
	event := domain.AnalysisEvent{
		ID:           res.AnalysisID,
		Type:         domain.EventAnalysisCompleted,
		Endpoint:     endpoint,
		Status:       res.Status,
		Location:     res.Location,
		StartYear:    res.TimeRange.StartYear,
		EndYear:      res.TimeRange.EndYear,
		Satellite:    res.Satellite,
		Source:       res.DataSource,
		ImagesCount:  res.ImagesCount,
		MissingYears: res.MissingYears,
		Overall:      res.OverallChange,
		CompletedAt:  domain.Now(),
	}
	if s.deps.Publisher != nil {
		if err := s.deps.Publisher.Publish(ctx, event); err != nil {
			s.logger.Warn("publish analysis event failed", "analysis_id", res.AnalysisID, "error", err)
		}
	}

	props := map[string]any{
		"endpoint":     endpoint,
		"status":       res.Status,
		"data_source":  string(res.DataSource),
		"images_count": res.ImagesCount,
		"missing":      len(res.MissingYears),
	}
	if res.OverallChange != nil {
		props["change_level"] = string(res.OverallChange.Level)
	}
	s.deps.Tracker.Track("analysis_completed", props)
}

func dataURL(png []byte) string {
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(png)
}

// outcomeOf classifies an error for metrics.
func outcomeOf(err error) string {
	switch {
	case err == nil:
		return StatusSuccess
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "error"
	}
}
