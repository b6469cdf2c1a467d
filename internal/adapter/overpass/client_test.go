package overpass

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/couchcryptid/satellite-change-service/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleResponse = `{
  "version": 0.6,
  "osm3s": {"timestamp_osm_base": "2024-06-01T00:00:00Z"},
  "elements": [
    {"type": "way", "id": 1, "tags": {"landuse": "residential"}},
    {"type": "way", "id": 2, "tags": {"landuse": "residential", "name": "Sector 4"}},
    {"type": "way", "id": 3, "tags": {"natural": "water"}},
    {"type": "relation", "id": 4, "tags": {"landuse": "forest", "natural": "wood"}},
    {"type": "node", "id": 5, "lat": 28.61, "lon": 77.20, "tags": {"natural": "tree"}},
    {"type": "node", "id": 6, "lat": 28.61, "lon": 77.21, "tags": {"amenity": "cafe"}}
  ]
}`

func testClient(endpoint string) *Client {
	return NewClient(endpoint, 500, 5*time.Second, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestClient_LandCover(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		var q string
		for _, v := range r.Form {
			q += strings.Join(v, "")
		}
		assert.Contains(t, q, "(around:500,28.613900,77.209000)")
		assert.Contains(t, q, `way["landuse"]`)
		assert.Contains(t, q, "out tags;")

		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, sampleResponse)
	}))
	defer srv.Close()

	lc, err := testClient(srv.URL).LandCover(context.Background(), domain.Location{Latitude: 28.6139, Longitude: 77.2090})
	require.NoError(t, err)

	assert.Equal(t, 500, lc.RadiusMeters)
	assert.Equal(t, 5, lc.Features)
	assert.Equal(t, map[string]int{
		"landuse=residential": 2,
		"natural=water":       1,
		"landuse=forest":      1,
		"natural=wood":        1,
		"natural=tree":        1,
	}, lc.Tags)
	assert.Equal(t, "landuse=residential", lc.Dominant)
}

func TestClient_LandCover_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).LandCover(context.Background(), domain.Location{})
	require.Error(t, err)
}

func TestClient_LandCover_ContextCancelled(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		<-release
		_, _ = io.WriteString(w, sampleResponse)
	}))
	defer srv.Close()
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := testClient(srv.URL).LandCover(ctx, domain.Location{})
	require.ErrorIs(t, err, context.Canceled)
}

func serve(t *testing.T, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestClient_LandCover_NoFeatures(t *testing.T) {
	srv := serve(t, `{"osm3s": {"timestamp_osm_base": "2024-06-01T00:00:00Z"}, "elements": []}`)

	lc, err := testClient(srv.URL).LandCover(context.Background(), domain.Location{})
	require.NoError(t, err)
	assert.Zero(t, lc.Features)
	assert.Empty(t, lc.Dominant)
	assert.NotNil(t, lc.Tags)
}

func TestClient_LandCover_TieBrokenAlphabetically(t *testing.T) {
	srv := serve(t, `{"osm3s": {"timestamp_osm_base": "2024-06-01T00:00:00Z"}, "elements": [
		{"type": "way", "id": 1, "tags": {"natural": "water"}},
		{"type": "way", "id": 2, "tags": {"landuse": "farmland"}}
	]}`)

	lc, err := testClient(srv.URL).LandCover(context.Background(), domain.Location{})
	require.NoError(t, err)
	assert.Equal(t, "landuse=farmland", lc.Dominant)
}
