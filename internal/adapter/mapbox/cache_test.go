package mapbox

import (
	"context"
	"errors"
	"testing"

	"github.com/couchcryptid/satellite-change-service/internal/domain"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- mock for cache tests ---

type countingGeocoder struct {
	forwardCalls int
	reverseCalls int
	result       domain.GeocodingResult
	err          error
}

func (m *countingGeocoder) ForwardGeocode(_ context.Context, _ string) (domain.GeocodingResult, error) {
	m.forwardCalls++
	return m.result, m.err
}

func (m *countingGeocoder) ReverseGeocode(_ context.Context, _, _ float64) (domain.GeocodingResult, error) {
	m.reverseCalls++
	return m.result, m.err
}

func newCached(t *testing.T, inner domain.Geocoder, size int) *CachedGeocoder {
	t.Helper()
	c, err := NewCachedGeocoder(inner, size, testMetrics())
	require.NoError(t, err)
	return c
}

// --- CachedGeocoder tests ---

func TestCachedGeocoder_ForwardCacheHit(t *testing.T) {
	inner := &countingGeocoder{
		result: domain.GeocodingResult{Lat: 25.2, Lon: 55.27, PlaceName: "Dubai", FormattedAddress: "Dubai, United Arab Emirates"},
	}
	cached := newCached(t, inner, 10)

	r1, err := cached.ForwardGeocode(context.Background(), "Dubai")
	require.NoError(t, err)
	assert.Equal(t, "Dubai", r1.PlaceName)

	// Keys are case and whitespace insensitive.
	r2, err := cached.ForwardGeocode(context.Background(), "  dubai ")
	require.NoError(t, err)
	assert.Equal(t, "Dubai", r2.PlaceName)

	assert.Equal(t, 1, inner.forwardCalls, "should only call inner once")
	assert.Equal(t, 1.0, testutil.ToFloat64(cached.metrics.GeocodeCache.WithLabelValues("forward", "hit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(cached.metrics.GeocodeCache.WithLabelValues("forward", "miss")))
}

func TestCachedGeocoder_ReverseCacheHit(t *testing.T) {
	inner := &countingGeocoder{
		result: domain.GeocodingResult{FormattedAddress: "Beijing, China"},
	}
	cached := newCached(t, inner, 10)

	_, err := cached.ReverseGeocode(context.Background(), 39.9042, 116.4074)
	require.NoError(t, err)

	_, err = cached.ReverseGeocode(context.Background(), 39.9042, 116.4074)
	require.NoError(t, err)

	assert.Equal(t, 1, inner.reverseCalls, "should only call inner once")
}

func TestCachedGeocoder_DifferentKeysMiss(t *testing.T) {
	inner := &countingGeocoder{
		result: domain.GeocodingResult{PlaceName: "Place", FormattedAddress: "Place, India"},
	}
	cached := newCached(t, inner, 10)

	_, _ = cached.ForwardGeocode(context.Background(), "Mumbai")
	_, _ = cached.ForwardGeocode(context.Background(), "New Delhi")

	assert.Equal(t, 2, inner.forwardCalls)
}

func TestCachedGeocoder_EmptyResultNotCached(t *testing.T) {
	inner := &countingGeocoder{}
	cached := newCached(t, inner, 10)

	_, _ = cached.ReverseGeocode(context.Background(), -3.4653, -62.2159)
	_, _ = cached.ReverseGeocode(context.Background(), -3.4653, -62.2159)

	assert.Equal(t, 2, inner.reverseCalls)
}

func TestCachedGeocoder_ErrorNotCached(t *testing.T) {
	inner := &countingGeocoder{err: errors.New("boom")}
	cached := newCached(t, inner, 10)

	_, err := cached.ForwardGeocode(context.Background(), "Mumbai")
	require.Error(t, err)
	_, err = cached.ForwardGeocode(context.Background(), "Mumbai")
	require.Error(t, err)

	assert.Equal(t, 2, inner.forwardCalls)
}

func TestCachedGeocoder_Eviction(t *testing.T) {
	inner := &countingGeocoder{
		result: domain.GeocodingResult{FormattedAddress: "somewhere"},
	}
	cached := newCached(t, inner, 2)

	_, _ = cached.ForwardGeocode(context.Background(), "a")
	_, _ = cached.ForwardGeocode(context.Background(), "b")
	_, _ = cached.ForwardGeocode(context.Background(), "a") // promote "a"
	_, _ = cached.ForwardGeocode(context.Background(), "c") // evicts "b"
	assert.Equal(t, 3, inner.forwardCalls)

	_, _ = cached.ForwardGeocode(context.Background(), "a")
	assert.Equal(t, 3, inner.forwardCalls, "a was accessed recently, should not be evicted")

	_, _ = cached.ForwardGeocode(context.Background(), "b")
	assert.Equal(t, 4, inner.forwardCalls, "b should have been evicted")
}

func TestNewCachedGeocoder_InvalidSize(t *testing.T) {
	_, err := NewCachedGeocoder(&countingGeocoder{}, 0, testMetrics())
	require.Error(t, err)
}
