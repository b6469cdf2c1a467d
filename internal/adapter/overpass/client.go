// Package overpass summarises OpenStreetMap land use around a location using
// the Overpass API.
package overpass

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/couchcryptid/satellite-change-service/internal/domain"
	"github.com/serjvanilla/go-overpass"
)

// tagKeys are the OSM keys that describe land cover.
var tagKeys = []string{"landuse", "natural"}

// Client implements domain.LandCoverSource.
type Client struct {
	client  overpass.Client
	radius  int
	timeout time.Duration
	logger  *slog.Logger
}

// NewClient creates an Overpass client for endpoint (the interpreter URL).
func NewClient(endpoint string, radiusMeters int, timeout time.Duration, logger *slog.Logger) *Client {
	httpClient := &http.Client{
		Timeout: timeout,
	}
	return &Client{
		client:  overpass.NewWithSettings(endpoint, 2, httpClient),
		radius:  radiusMeters,
		timeout: timeout,
		logger:  logger,
	}
}

// LandCover counts landuse and natural tags of mapped features within the
// configured radius of loc.
func (c *Client) LandCover(ctx context.Context, loc domain.Location) (domain.LandCoverContext, error) {
	query := buildQuery(loc, c.radius, c.timeout)

	type outcome struct {
		result overpass.Result
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		r, err := c.client.Query(query)
		done <- outcome{r, err}
	}()

	var res overpass.Result
	select {
	case <-ctx.Done():
		return domain.LandCoverContext{}, ctx.Err()
	case o := <-done:
		if o.err != nil {
			return domain.LandCoverContext{}, fmt.Errorf("overpass query failed: %w", o.err)
		}
		res = o.result
	}

	lc := summarise(res)
	lc.RadiusMeters = c.radius
	c.logger.Debug("land cover context", "features", lc.Features, "dominant", lc.Dominant)
	return lc, nil
}

func buildQuery(loc domain.Location, radius int, timeout time.Duration) string {
	around := fmt.Sprintf("(around:%d,%.6f,%.6f)", radius, loc.Latitude, loc.Longitude)
	return fmt.Sprintf(`
		[out:json][timeout:%d];
		(
			way["landuse"]%[2]s;
			way["natural"]%[2]s;
			relation["landuse"]%[2]s;
			relation["natural"]%[2]s;
			node["natural"]%[2]s;
		);
		out tags;
	`, max(1, int(timeout.Seconds())), around)
}

func summarise(res overpass.Result) domain.LandCoverContext {
	lc := domain.LandCoverContext{Tags: map[string]int{}}
	count := func(tags map[string]string) {
		matched := false
		for _, k := range tagKeys {
			if v, ok := tags[k]; ok {
				lc.Tags[k+"="+v]++
				matched = true
			}
		}
		if matched {
			lc.Features++
		}
	}

	for _, n := range res.Nodes {
		count(n.Tags)
	}
	for _, w := range res.Ways {
		count(w.Tags)
	}
	for _, r := range res.Relations {
		count(r.Tags)
	}

	if len(lc.Tags) > 0 {
		keys := make([]string, 0, len(lc.Tags))
		for k := range lc.Tags {
			keys = append(keys, k)
		}
		lc.Dominant = slices.MinFunc(keys, func(a, b string) int {
			if c := cmp.Compare(lc.Tags[b], lc.Tags[a]); c != 0 {
				return c
			}
			return cmp.Compare(a, b)
		})
	}
	return lc
}
