//go:build mapbox

package mapbox

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/couchcryptid/satellite-change-service/internal/observability"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// These tests hit the real Mapbox API and require a valid MAPBOX_TOKEN env var.
// Run with: go test -tags=mapbox ./internal/adapter/mapbox/ -v -count=1

func smokeClient(t *testing.T) *Client {
	t.Helper()
	token := os.Getenv("MAPBOX_TOKEN")
	if token == "" {
		t.Fatal("MAPBOX_TOKEN must be set to run smoke tests")
	}
	return &Client{
		token:      token,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		baseURL:    defaultBaseURL,
		metrics:    observability.NewMetricsForTesting(),
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func TestSmoke_ForwardGeocode(t *testing.T) {
	c := smokeClient(t)

	result, err := c.ForwardGeocode(context.Background(), "New Delhi, India")
	require.NoError(t, err)

	assert.InDelta(t, 28.61, result.Lat, 0.2, "lat should be near New Delhi")
	assert.InDelta(t, 77.21, result.Lon, 0.2, "lon should be near New Delhi")
	assert.Contains(t, result.FormattedAddress, "Delhi")
	assert.Greater(t, result.Confidence, 0.5)
}

func TestSmoke_ReverseGeocode(t *testing.T) {
	c := smokeClient(t)

	// Amazon Basin sample location.
	result, err := c.ReverseGeocode(context.Background(), -3.4653, -62.2159)
	require.NoError(t, err)

	assert.NotEmpty(t, result.FormattedAddress)
	assert.Contains(t, result.FormattedAddress, "Brazil")
}

func TestSmoke_CachedGeocoder(t *testing.T) {
	c := smokeClient(t)
	cached, err := NewCachedGeocoder(c, 10, observability.NewMetricsForTesting())
	require.NoError(t, err)

	// First call: cache miss, real API call.
	r1, err := cached.ReverseGeocode(context.Background(), 25.2048, 55.2708)
	require.NoError(t, err)
	assert.Contains(t, r1.FormattedAddress, "Dubai")

	// Second call: cache hit, no API call.
	r2, err := cached.ReverseGeocode(context.Background(), 25.2048, 55.2708)
	require.NoError(t, err)
	assert.Equal(t, r1, r2)
}
