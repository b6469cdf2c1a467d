package domain

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubProvider struct {
	scenes     []Scene
	searchErr  error
	downloaded []string
	lastQuery  SearchQuery
}

func (s *stubProvider) Source() DataSource { return SourceSample }

func (s *stubProvider) Search(_ context.Context, q SearchQuery) ([]Scene, error) {
	s.lastQuery = q
	return s.scenes, s.searchErr
}

func (s *stubProvider) Download(_ context.Context, scene Scene, _ Location) ([]byte, error) {
	s.downloaded = append(s.downloaded, scene.ID)
	return []byte("png-" + scene.ID), nil
}

func TestFetchYear_PicksLeastCloudyScene(t *testing.T) {
	p := &stubProvider{scenes: []Scene{
		{ID: "a", CloudCover: 12, AcquiredAt: time.Date(2021, 5, 1, 0, 0, 0, 0, time.UTC)},
		{ID: "b", CloudCover: 3.5, AcquiredAt: time.Date(2021, 7, 9, 0, 0, 0, 0, time.UTC)},
		{ID: "c", CloudCover: 3.5, AcquiredAt: time.Date(2021, 8, 2, 0, 0, 0, 0, time.UTC)},
	}}
	loc := Location{Latitude: 28.6, Longitude: 77.2}

	img, err := FetchYear(context.Background(), p, loc, 2021, Landsat8, 20)
	require.NoError(t, err)

	assert.Equal(t, []string{"b"}, p.downloaded)
	assert.Equal(t, 2021, img.Year)
	assert.Equal(t, "2021-07-09", img.Date)
	assert.Equal(t, Landsat8, img.Satellite)
	assert.Equal(t, SourceSample, img.Source)
	assert.Equal(t, 3.5, img.CloudCover)
	assert.Equal(t, []byte("png-b"), img.PNG)

	start, end := SeasonWindow(2021)
	assert.Equal(t, start, p.lastQuery.Start)
	assert.Equal(t, end, p.lastQuery.End)
	assert.Equal(t, 20.0, p.lastQuery.MaxCloudCover)
}

func TestFetchYear_NoScenes(t *testing.T) {
	_, err := FetchYear(context.Background(), &stubProvider{}, Location{}, 2019, Sentinel2, 20)
	require.ErrorIs(t, err, ErrDataUnavailable)
}

func TestFetchYear_SearchError(t *testing.T) {
	boom := errors.New("provider down")
	_, err := FetchYear(context.Background(), &stubProvider{searchErr: boom}, Location{}, 2019, Sentinel2, 20)
	require.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, ErrDataUnavailable)
}

func TestParseSatellite(t *testing.T) {
	for in, want := range map[string]Satellite{"": Sentinel2, "sentinel2": Sentinel2, "landsat": Landsat8, "landsat9": Landsat9} {
		got, err := ParseSatellite(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseSatellite("modis")
	require.ErrorIs(t, err, ErrInvalidRequest)
}
