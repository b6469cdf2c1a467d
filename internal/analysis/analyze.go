package analysis

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/couchcryptid/satellite-change-service/internal/domain"
	"github.com/couchcryptid/satellite-change-service/internal/imaging"
	"github.com/google/uuid"
	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"
)

// firstYear is the first full season each mission was imaging.
var firstYear = map[domain.Satellite]int{
	domain.Sentinel2: 2017,
	domain.Landsat8:  2013,
	domain.Landsat9:  2022,
}

// yearOutcome is the result of fetching and embedding one year.
type yearOutcome struct {
	year   int
	image  domain.TemporalImage
	vector domain.FeatureVector
	err    error
}

// Analyze fetches one image per year at the requested location, embeds each
// and compares them. Years without imagery are reported in MissingYears; the
// request fails only when every year fails.
func (s *Service) Analyze(ctx context.Context, req AnalyzeRequest) (res AnalysisResult, err error) {
	const endpoint = "analyze"
	start := time.Now()
	defer func() {
		outcome := outcomeOf(err)
		if err == nil {
			outcome = res.Status
		}
		s.observe(endpoint, start, outcome)
	}()

	loc, err := s.locate(ctx, req.Place, req.Latitude, req.Longitude)
	if err != nil {
		return AnalysisResult{}, err
	}
	sat, err := domain.ParseSatellite(req.Satellite)
	if err != nil {
		return AnalysisResult{}, err
	}
	startYear, endYear := req.StartYear, req.EndYear
	if startYear == 0 {
		startYear = DefaultStartYear
	}
	if endYear == 0 {
		endYear = DefaultEndYear
	}
	if err := s.validateYears(sat, startYear, endYear); err != nil {
		return AnalysisResult{}, err
	}
	maxCloud, err := s.cloudCeiling(req.MaxCloudCover)
	if err != nil {
		return AnalysisResult{}, err
	}
	provider, err := s.deps.Sources.Active()
	if err != nil {
		return AnalysisResult{}, err
	}

	years := lo.RangeFrom(startYear, endYear-startYear+1)
	logger := s.logger.With("lat", loc.Latitude, "lon", loc.Longitude, "source", provider.Source())
	logger.Info("analysis started", "start_year", startYear, "end_year", endYear, "satellite", sat)

	var (
		place string
		land  *domain.LandCoverContext
	)
	enrichDone := make(chan struct{})
	go func() {
		defer close(enrichDone)
		place, land = s.enrich(ctx, loc)
	}()

	outcomes := make([]yearOutcome, len(years))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.FetchConcurrency)
	for i, year := range years {
		g.Go(func() error {
			outcomes[i] = s.fetchAndEmbed(gctx, provider, loc, year, sat, maxCloud)
			return nil
		})
	}
	_ = g.Wait()
	<-enrichDone
	if err := ctx.Err(); err != nil {
		return AnalysisResult{}, err
	}
	loc.PlaceName = place

	ok := lo.Filter(outcomes, func(o yearOutcome, _ int) bool { return o.err == nil })
	failed := lo.Filter(outcomes, func(o yearOutcome, _ int) bool { return o.err != nil })
	for _, f := range failed {
		logger.Warn("year unavailable", "year", f.year, "error", f.err)
	}
	if len(ok) == 0 {
		return AnalysisResult{}, allYearsFailed(failed)
	}

	changes, overall, err := s.compareSeries(lo.Map(ok, func(o yearOutcome, _ int) domain.Observation {
		return domain.Observation{Year: o.year, Vector: o.vector}
	}))
	if err != nil {
		return AnalysisResult{}, err
	}

	res = AnalysisResult{
		Status:       StatusSuccess,
		AnalysisID:   uuid.NewString(),
		Location:     &loc,
		TimeRange:    TimeRange{StartYear: startYear, EndYear: endYear},
		DataSource:   provider.Source(),
		Satellite:    sat,
		ImagesCount:  len(ok),
		MissingYears: lo.Map(failed, func(o yearOutcome, _ int) int { return o.year }),
		Failures: lo.Map(failed, func(o yearOutcome, _ int) YearFailure {
			return YearFailure{Year: o.year, Reason: o.err.Error()}
		}),
		ChangesDetected: changes,
		OverallChange:   overall,
		LandContext:     land,
	}
	if len(failed) > 0 {
		res.Status = StatusPartial
	}
	for _, o := range ok {
		res.TemporalAnalysis = append(res.TemporalAnalysis, YearAnalysis{
			TemporalImage: o.image,
			Label:         o.vector.Label,
			Confidence:    o.vector.Confidence,
			Model:         o.vector.Model,
			Filename:      s.catalog(ctx, loc, o.image),
			ImageBase64:   dataURL(o.image.PNG),
		})
	}

	logger.Info("analysis completed", "analysis_id", res.AnalysisID, "status", res.Status,
		"images", res.ImagesCount, "missing", res.MissingYears)
	s.emit(ctx, endpoint, &res)
	return res, nil
}

// AnalyzeImages embeds uploaded images and compares them in year order.
// Images without a year are assigned consecutive years ending at the current
// year, in upload order.
func (s *Service) AnalyzeImages(ctx context.Context, req ImagesRequest) (res AnalysisResult, err error) {
	const endpoint = "analyze_image"
	start := time.Now()
	defer func() { s.observe(endpoint, start, outcomeOf(err)) }()

	if len(req.Images) == 0 {
		return AnalysisResult{}, fmt.Errorf("%w: at least one image is required", domain.ErrInvalidRequest)
	}
	if limit := s.opts.MaxYearSpan; limit > 0 && len(req.Images) > limit {
		return AnalysisResult{}, fmt.Errorf("%w: at most %d images per request", domain.ErrInvalidRequest, limit)
	}
	var loc *domain.Location
	if req.Location != nil {
		l := *req.Location
		if err := l.Validate(); err != nil {
			return AnalysisResult{}, err
		}
		loc = &l
	}

	images := assignYears(req.Images, domain.CurrentYear())
	years := lo.Map(images, func(img UploadedImage, _ int) int { return img.Year })
	if dups := lo.FindDuplicates(years); len(dups) > 0 {
		return AnalysisResult{}, fmt.Errorf("%w: duplicate image year %d", domain.ErrInvalidRequest, dups[0])
	}

	outcomes := make([]yearOutcome, len(images))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.FetchConcurrency)
	for i, up := range images {
		g.Go(func() error {
			o, err := s.embedUpload(gctx, up)
			if err != nil {
				return fmt.Errorf("image %q: %w", up.Filename, err)
			}
			outcomes[i] = o
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return AnalysisResult{}, err
	}
	slices.SortFunc(outcomes, func(a, b yearOutcome) int { return a.year - b.year })

	changes, overall, err := s.compareSeries(lo.Map(outcomes, func(o yearOutcome, _ int) domain.Observation {
		return domain.Observation{Year: o.year, Vector: o.vector}
	}))
	if err != nil {
		return AnalysisResult{}, err
	}

	res = AnalysisResult{
		Status:          StatusSuccess,
		AnalysisID:      uuid.NewString(),
		Location:        loc,
		TimeRange:       TimeRange{StartYear: outcomes[0].year, EndYear: outcomes[len(outcomes)-1].year},
		DataSource:      domain.SourceUpload,
		ImagesCount:     len(outcomes),
		ChangesDetected: changes,
		OverallChange:   overall,
		MissingYears:    []int{},
	}
	if loc != nil {
		loc.PlaceName, res.LandContext = s.enrich(ctx, *loc)
	}
	for _, o := range outcomes {
		res.TemporalAnalysis = append(res.TemporalAnalysis, YearAnalysis{
			TemporalImage: o.image,
			Label:         o.vector.Label,
			Confidence:    o.vector.Confidence,
			Model:         o.vector.Model,
			ImageBase64:   dataURL(o.image.PNG),
		})
	}

	s.logger.Info("upload analysis completed", "analysis_id", res.AnalysisID, "images", res.ImagesCount)
	s.emit(ctx, endpoint, &res)
	return res, nil
}

// Compare fetches two years at a location and compares them.
func (s *Service) Compare(ctx context.Context, req CompareRequest) (rec domain.ChangeRecord, err error) {
	const endpoint = "compare"
	start := time.Now()
	defer func() { s.observe(endpoint, start, outcomeOf(err)) }()

	loc, err := s.locate(ctx, req.Place, req.Latitude, req.Longitude)
	if err != nil {
		return domain.ChangeRecord{}, err
	}
	sat, err := domain.ParseSatellite(req.Satellite)
	if err != nil {
		return domain.ChangeRecord{}, err
	}
	if req.Year1 == req.Year2 {
		return domain.ChangeRecord{}, fmt.Errorf("%w: year1 and year2 must differ", domain.ErrInvalidRequest)
	}
	if err := s.checkYearBounds(sat, min(req.Year1, req.Year2), max(req.Year1, req.Year2)); err != nil {
		return domain.ChangeRecord{}, err
	}
	maxCloud, err := s.cloudCeiling(req.MaxCloudCover)
	if err != nil {
		return domain.ChangeRecord{}, err
	}
	provider, err := s.deps.Sources.Active()
	if err != nil {
		return domain.ChangeRecord{}, err
	}

	var pair [2]yearOutcome
	g, gctx := errgroup.WithContext(ctx)
	for i, year := range []int{req.Year1, req.Year2} {
		g.Go(func() error {
			pair[i] = s.fetchAndEmbed(gctx, provider, loc, year, sat, maxCloud)
			return pair[i].err
		})
	}
	if err := g.Wait(); err != nil {
		return domain.ChangeRecord{}, err
	}

	rec, err = domain.Compare(
		domain.Observation{Year: pair[0].year, Vector: pair[0].vector},
		domain.Observation{Year: pair[1].year, Vector: pair[1].vector},
	)
	if err != nil {
		return domain.ChangeRecord{}, err
	}
	s.metrics.ChangeSeverity.Observe(rec.Severity)
	return rec, nil
}

// Search lists scenes on the active source.
func (s *Service) Search(ctx context.Context, req SearchRequest) (SearchResult, error) {
	loc := domain.Location{Latitude: req.Latitude, Longitude: req.Longitude}
	if err := loc.Validate(); err != nil {
		return SearchResult{}, err
	}
	sat, err := domain.ParseSatellite(req.Satellite)
	if err != nil {
		return SearchResult{}, err
	}
	startDate, err := parseDate("start_date", req.StartDate)
	if err != nil {
		return SearchResult{}, err
	}
	endDate, err := parseDate("end_date", req.EndDate)
	if err != nil {
		return SearchResult{}, err
	}
	if endDate.Before(startDate) {
		return SearchResult{}, fmt.Errorf("%w: end_date before start_date", domain.ErrInvalidRequest)
	}
	maxCloud, err := s.cloudCeiling(req.MaxCloudCover)
	if err != nil {
		return SearchResult{}, err
	}
	limit := req.Limit
	if limit <= 0 {
		limit = DefaultSearchLimit
	}
	limit = min(limit, maxSearchLimit)

	provider, err := s.deps.Sources.Active()
	if err != nil {
		return SearchResult{}, err
	}
	scenes, err := provider.Search(ctx, domain.SearchQuery{
		Location:      loc,
		Start:         startDate,
		End:           endDate.Add(24*time.Hour - time.Second),
		Satellite:     sat,
		MaxCloudCover: maxCloud,
		Limit:         limit,
	})
	if err != nil {
		return SearchResult{}, fmt.Errorf("search %s: %w", provider.Source(), err)
	}
	if len(scenes) > limit {
		scenes = scenes[:limit]
	}
	return SearchResult{Source: provider.Source(), Count: len(scenes), Results: scenes}, nil
}

// fetchAndEmbed retrieves and embeds one year. Errors are returned in the
// outcome so one failing year does not cancel the others.
func (s *Service) fetchAndEmbed(ctx context.Context, p domain.ImageProvider, loc domain.Location, year int, sat domain.Satellite, maxCloud float64) yearOutcome {
	out := yearOutcome{year: year}
	source := string(p.Source())

	start := time.Now()
	img, err := domain.FetchYear(ctx, p, loc, year, sat, maxCloud)
	s.metrics.FetchDuration.WithLabelValues(source).Observe(time.Since(start).Seconds())
	switch {
	case errors.Is(err, domain.ErrDataUnavailable):
		s.metrics.ImagesFetched.WithLabelValues(source, "unavailable").Inc()
		out.err = err
		return out
	case err != nil:
		s.metrics.ImagesFetched.WithLabelValues(source, "error").Inc()
		out.err = err
		return out
	}
	s.metrics.ImagesFetched.WithLabelValues(source, "success").Inc()

	vec, err := s.deps.Embedder.Embed(ctx, img.PNG)
	if err != nil {
		out.err = fmt.Errorf("embed %d: %w", year, err)
		return out
	}
	out.image, out.vector = img, vec
	return out
}

func (s *Service) embedUpload(ctx context.Context, up UploadedImage) (yearOutcome, error) {
	png, err := imaging.Normalize(up.Data, s.opts.ImageSize)
	if err != nil {
		return yearOutcome{}, fmt.Errorf("%w: %v", domain.ErrModelInference, err)
	}
	vec, err := s.deps.Embedder.Embed(ctx, png)
	if err != nil {
		return yearOutcome{}, err
	}
	return yearOutcome{
		year: up.Year,
		image: domain.TemporalImage{
			Year:    up.Year,
			Source:  domain.SourceUpload,
			SceneID: up.Filename,
			PNG:     png,
		},
		vector: vec,
	}, nil
}

func (s *Service) validateYears(sat domain.Satellite, start, end int) error {
	if start > end {
		return fmt.Errorf("%w: start_year %d after end_year %d", domain.ErrInvalidRequest, start, end)
	}
	if span := end - start + 1; s.opts.MaxYearSpan > 0 && span > s.opts.MaxYearSpan {
		return fmt.Errorf("%w: year range spans %d years, maximum is %d", domain.ErrInvalidRequest, span, s.opts.MaxYearSpan)
	}
	return s.checkYearBounds(sat, start, end)
}

func (s *Service) checkYearBounds(sat domain.Satellite, start, end int) error {
	if first := firstYear[sat]; start < first {
		return fmt.Errorf("%w: %s imagery starts in %d", domain.ErrInvalidRequest, sat.DisplayName(), first)
	}
	if current := domain.CurrentYear(); end > current {
		return fmt.Errorf("%w: end year %d is in the future", domain.ErrInvalidRequest, end)
	}
	return nil
}

func (s *Service) cloudCeiling(v *float64) (float64, error) {
	if v == nil {
		return s.opts.MaxCloudCover, nil
	}
	if *v <= 0 || *v > 100 {
		return 0, fmt.Errorf("%w: max_cloud_cover must be in (0, 100]", domain.ErrInvalidRequest)
	}
	return *v, nil
}

// assignYears fills zero years with consecutive years ending at current.
func assignYears(images []UploadedImage, current int) []UploadedImage {
	out := slices.Clone(images)
	for i := range out {
		if out[i].Year == 0 {
			out[i].Year = current - (len(out) - 1 - i)
		}
	}
	return out
}

func parseDate(field, v string) (time.Time, error) {
	t, err := time.Parse(time.DateOnly, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %s must be YYYY-MM-DD", domain.ErrInvalidRequest, field)
	}
	return t, nil
}

// allYearsFailed picks the error reported when no year produced an image.
// Upstream failures take precedence over missing data.
func allYearsFailed(failed []yearOutcome) error {
	for _, f := range failed {
		if !errors.Is(f.err, domain.ErrDataUnavailable) {
			return fmt.Errorf("all %d years failed: %w", len(failed), f.err)
		}
	}
	return fmt.Errorf("%w: no imagery for any requested year", domain.ErrDataUnavailable)
}
