package domain

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"time"
)

// SearchQuery selects scenes around a location.
type SearchQuery struct {
	Location      Location
	Start         time.Time
	End           time.Time
	Satellite     Satellite
	MaxCloudCover float64
	Limit         int
}

// ImageProvider is a satellite imagery backend.
type ImageProvider interface {
	// Source identifies the backend.
	Source() DataSource

	// Search returns scenes intersecting the query location and window whose
	// cloud cover is below the ceiling.
	Search(ctx context.Context, q SearchQuery) ([]Scene, error)

	// Download renders an RGB PNG chip of the scene centred on loc.
	Download(ctx context.Context, scene Scene, loc Location) ([]byte, error)
}

// Embedder turns an encoded image into a feature vector.
type Embedder interface {
	Embed(ctx context.Context, image []byte) (FeatureVector, error)
}

// SeasonWindow returns the acquisition window searched for a year.
func SeasonWindow(year int) (time.Time, time.Time) {
	start := time.Date(year, time.March, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(year, time.October, 31, 23, 59, 59, 0, time.UTC)
	return start, end
}

// FetchYear retrieves the least cloudy scene of the year's season window.
func FetchYear(ctx context.Context, p ImageProvider, loc Location, year int, sat Satellite, maxCloud float64) (TemporalImage, error) {
	start, end := SeasonWindow(year)
	scenes, err := p.Search(ctx, SearchQuery{
		Location:      loc,
		Start:         start,
		End:           end,
		Satellite:     sat,
		MaxCloudCover: maxCloud,
		Limit:         20,
	})
	if err != nil {
		return TemporalImage{}, fmt.Errorf("search %d: %w", year, err)
	}

	best, ok := LeastCloudy(scenes)
	if !ok {
		return TemporalImage{}, fmt.Errorf("%w: no scene below %.0f%% cloud cover for %d", ErrDataUnavailable, maxCloud, year)
	}

	png, err := p.Download(ctx, best, loc)
	if err != nil {
		return TemporalImage{}, fmt.Errorf("download scene %s: %w", best.ID, err)
	}

	return TemporalImage{
		Year:       year,
		Date:       best.Date(),
		Satellite:  sat,
		Source:     p.Source(),
		CloudCover: best.CloudCover,
		SceneID:    best.ID,
		PNG:        png,
	}, nil
}

// LeastCloudy picks the scene with the lowest cloud cover, breaking ties by
// the earliest acquisition.
func LeastCloudy(scenes []Scene) (Scene, bool) {
	if len(scenes) == 0 {
		return Scene{}, false
	}
	return slices.MinFunc(scenes, func(a, b Scene) int {
		if c := cmp.Compare(a.CloudCover, b.CloudCover); c != 0 {
			return c
		}
		return a.AcquiredAt.Compare(b.AcquiredAt)
	}), true
}
