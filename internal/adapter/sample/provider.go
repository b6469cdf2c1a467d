// Package sample generates deterministic synthetic imagery for development
// and demos. A location starts as mostly vegetation and accumulates built-up
// area year over year, so change detection has something to find.
package sample

import (
	"context"
	"fmt"
	"hash/fnv"
	"image"
	"image/color"
	"math"
	"math/rand/v2"
	"time"

	"github.com/couchcryptid/satellite-change-service/internal/domain"
	"github.com/couchcryptid/satellite-change-service/internal/imaging"
)

// baseYear is the first year with any built-up area.
const baseYear = 2015

// Provider implements domain.ImageProvider with generated scenes.
type Provider struct {
	size int
}

// NewProvider creates a sample provider rendering size×size chips.
func NewProvider(size int) *Provider {
	return &Provider{size: size}
}

func (p *Provider) Source() domain.DataSource { return domain.SourceSample }

// Search returns up to three scenes per year inside the query window. The
// first scene of every year is nearly cloud free.
func (p *Provider) Search(_ context.Context, q domain.SearchQuery) ([]domain.Scene, error) {
	var scenes []domain.Scene
	for year := q.Start.Year(); year <= q.End.Year(); year++ {
		rng := rand.New(rand.NewPCG(seed(q.Location, year, q.Satellite), 1))
		for i := range 3 {
			cloud := rng.Float64() * 35
			if i == 0 {
				cloud = rng.Float64() * 10
			}
			acquired := time.Date(year, time.Month(4+i*2), 1+rng.IntN(28), 10, 30, 0, 0, time.UTC)
			if acquired.Before(q.Start) || acquired.After(q.End) || cloud >= q.MaxCloudCover {
				continue
			}
			id := fmt.Sprintf("SAMPLE_%s_%s_%d", q.Satellite, acquired.Format("20060102"), i)
			scenes = append(scenes, domain.Scene{
				ID:         id,
				AcquiredAt: acquired,
				CloudCover: math.Floor(cloud*10) / 10,
				Platform:   q.Satellite.DisplayName(),
				Satellite:  q.Satellite,
				Source:     domain.SourceSample,
				Ref:        id,
			})
			if q.Limit > 0 && len(scenes) >= q.Limit {
				return scenes, nil
			}
		}
	}
	return scenes, nil
}

// Download renders the scene for loc.
func (p *Provider) Download(_ context.Context, scene domain.Scene, loc domain.Location) ([]byte, error) {
	return imaging.EncodePNG(Render(loc, scene.AcquiredAt.Year(), scene.Satellite, p.size))
}

// Render draws the synthetic landscape of loc in year.
func Render(loc domain.Location, year int, sat domain.Satellite, size int) *image.RGBA {
	rng := rand.New(rand.NewPCG(seed(loc, 0, ""), 2))
	cx, cy := 0.3+rng.Float64()*0.4, 0.3+rng.Float64()*0.4
	waterX, waterY := rng.Float64(), rng.Float64()

	urban := math.Max(0, math.Min(0.45, float64(year-baseYear)*0.045))
	noise := rand.New(rand.NewPCG(seed(loc, year, sat), 3))

	img := image.NewRGBA(image.Rect(0, 0, size, size))
	for y := range size {
		for x := range size {
			fx, fy := float64(x)/float64(size), float64(y)/float64(size)
			jitter := uint8(noise.IntN(18))

			var c color.RGBA
			switch {
			case math.Hypot(fx-waterX, fy-waterY) < 0.12:
				c = color.RGBA{R: 20 + jitter/2, G: 60 + jitter, B: 120 + jitter, A: 255}
			case math.Hypot(fx-cx, fy-cy) < urban:
				g := 120 + jitter*2
				c = color.RGBA{R: g, G: g, B: g + 5, A: 255}
			default:
				c = color.RGBA{R: 40 + jitter, G: 110 + jitter*2, B: 35 + jitter, A: 255}
			}
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

func seed(loc domain.Location, year int, sat domain.Satellite) uint64 {
	h := fnv.New64a()
	fmt.Fprintf(h, "%s|%d|%s", loc.Key(), year, sat)
	return h.Sum64()
}
