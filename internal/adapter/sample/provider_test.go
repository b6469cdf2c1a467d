package sample

import (
	"context"
	"testing"

	"github.com/couchcryptid/satellite-change-service/internal/domain"
	"github.com/couchcryptid/satellite-change-service/internal/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var delhi = domain.Location{Latitude: 28.6139, Longitude: 77.2090}

func TestProvider_FetchYearIsDeterministic(t *testing.T) {
	p := NewProvider(32)
	ctx := context.Background()

	a, err := domain.FetchYear(ctx, p, delhi, 2020, domain.Sentinel2, 20)
	require.NoError(t, err)
	b, err := domain.FetchYear(ctx, p, delhi, 2020, domain.Sentinel2, 20)
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.Equal(t, domain.SourceSample, a.Source)
	assert.Less(t, a.CloudCover, 10.0)

	img, format, err := imaging.Decode(a.PNG)
	require.NoError(t, err)
	assert.Equal(t, "png", format)
	assert.Equal(t, 32, img.Bounds().Dx())
}

func TestProvider_SearchRespectsCloudCeilingAndLimit(t *testing.T) {
	p := NewProvider(8)
	start, end := domain.SeasonWindow(2022)

	scenes, err := p.Search(context.Background(), domain.SearchQuery{
		Location: delhi, Start: start, End: end, Satellite: domain.Landsat9, MaxCloudCover: 100, Limit: 2,
	})
	require.NoError(t, err)
	assert.Len(t, scenes, 2)

	scenes, err = p.Search(context.Background(), domain.SearchQuery{
		Location: delhi, Start: start, End: end, Satellite: domain.Landsat9, MaxCloudCover: 10,
	})
	require.NoError(t, err)
	require.NotEmpty(t, scenes)
	for _, s := range scenes {
		assert.Less(t, s.CloudCover, 10.0)
		assert.Equal(t, "Landsat-9", s.Platform)
	}
}

func TestRender_BuiltUpAreaGrows(t *testing.T) {
	grey := func(year int) int {
		img := Render(delhi, year, domain.Sentinel2, 64)
		n := 0
		for i := 0; i < len(img.Pix); i += 4 {
			r, g, b := img.Pix[i], img.Pix[i+1], img.Pix[i+2]
			if r > 100 && g < r+20 && b >= g {
				n++
			}
		}
		return n
	}
	assert.Zero(t, grey(2014))
	assert.Greater(t, grey(2024), grey(2018))
}
