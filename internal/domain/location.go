package domain

import (
	"fmt"
	"math"
)

// Location is a WGS-84 coordinate pair.
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	PlaceName string  `json:"place_name,omitempty"`
}

// Validate checks that the coordinates are finite and within range.
func (l Location) Validate() error {
	if math.IsNaN(l.Latitude) || l.Latitude < -90 || l.Latitude > 90 {
		return fmt.Errorf("%w: latitude %v out of range [-90, 90]", ErrInvalidLocation, l.Latitude)
	}
	if math.IsNaN(l.Longitude) || l.Longitude < -180 || l.Longitude > 180 {
		return fmt.Errorf("%w: longitude %v out of range [-180, 180]", ErrInvalidLocation, l.Longitude)
	}
	return nil
}

// BBox returns [minLon, minLat, maxLon, maxLat] around the location, buffered
// by the given number of degrees and clipped to valid coordinates.
func (l Location) BBox(buffer float64) [4]float64 {
	return [4]float64{
		math.Max(l.Longitude-buffer, -180),
		math.Max(l.Latitude-buffer, -90),
		math.Min(l.Longitude+buffer, 180),
		math.Min(l.Latitude+buffer, 90),
	}
}

// Key renders the location with six decimals for cache keys and filenames.
func (l Location) Key() string {
	return fmt.Sprintf("%.6f_%.6f", l.Latitude, l.Longitude)
}
