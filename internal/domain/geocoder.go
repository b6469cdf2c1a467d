package domain

import "context"

// GeocodingResult contains location data returned by a geocoding provider.
type GeocodingResult struct {
	Lat              float64
	Lon              float64
	FormattedAddress string
	PlaceName        string
	Confidence       float64 // 0.0–1.0 provider confidence score
}

// Geocoder resolves place names and coordinates.
type Geocoder interface {
	// ForwardGeocode converts a free-text place query to coordinates.
	ForwardGeocode(ctx context.Context, query string) (GeocodingResult, error)

	// ReverseGeocode converts coordinates to place details.
	ReverseGeocode(ctx context.Context, lat, lon float64) (GeocodingResult, error)
}

// LandCoverContext summarises mapped land use around a location.
type LandCoverContext struct {
	RadiusMeters int            `json:"radius_meters"`
	Features     int            `json:"features"`
	Tags         map[string]int `json:"tags"`
	Dominant     string         `json:"dominant,omitempty"`
}

// LandCoverSource looks up mapped land-cover features near a location.
type LandCoverSource interface {
	LandCover(ctx context.Context, loc Location) (LandCoverContext, error)
}
