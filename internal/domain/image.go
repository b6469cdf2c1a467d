package domain

import (
	"fmt"
	"time"
)

// Satellite identifies an optical imagery mission.
type Satellite string

const (
	Sentinel2 Satellite = "sentinel2"
	Landsat8  Satellite = "landsat8"
	Landsat9  Satellite = "landsat9"
)

// Satellites lists every supported mission in display order.
var Satellites = []Satellite{Sentinel2, Landsat8, Landsat9}

// ParseSatellite maps a request value to a Satellite. Empty selects Sentinel-2,
// and the bare "landsat" alias selects Landsat 8.
func ParseSatellite(s string) (Satellite, error) {
	switch s {
	case "", string(Sentinel2):
		return Sentinel2, nil
	case "landsat", string(Landsat8):
		return Landsat8, nil
	case string(Landsat9):
		return Landsat9, nil
	default:
		return "", fmt.Errorf("%w: unknown satellite %q", ErrInvalidRequest, s)
	}
}

// DisplayName is the human-readable mission name.
func (s Satellite) DisplayName() string {
	switch s {
	case Landsat8:
		return "Landsat-8"
	case Landsat9:
		return "Landsat-9"
	default:
		return "Sentinel-2"
	}
}

// IsLandsat reports whether the mission belongs to the Landsat program.
func (s Satellite) IsLandsat() bool {
	return s == Landsat8 || s == Landsat9
}

// DataSource identifies an imagery provider backend.
type DataSource string

const (
	SourceEarthEngine DataSource = "gee"
	SourceAWS         DataSource = "aws"
	SourceSample      DataSource = "sample"

	// SourceUpload marks user-supplied images. It is never an active source.
	SourceUpload DataSource = "upload"
)

// DataSources lists the selectable providers in fallback order.
var DataSources = []DataSource{SourceEarthEngine, SourceAWS, SourceSample}

// Description is a one-line summary of the provider.
func (d DataSource) Description() string {
	switch d {
	case SourceEarthEngine:
		return "Google Earth Engine (Sentinel-2 and Landsat surface reflectance)"
	case SourceAWS:
		return "AWS Open Data via Earth Search STAC (Sentinel-2 L2A and Landsat C2 L2)"
	case SourceSample:
		return "Synthetic sample imagery for offline development"
	case SourceUpload:
		return "User uploaded images"
	default:
		return string(d)
	}
}

// ParseDataSource validates a data source identifier.
func ParseDataSource(s string) (DataSource, error) {
	switch DataSource(s) {
	case SourceEarthEngine, SourceAWS, SourceSample:
		return DataSource(s), nil
	default:
		return "", fmt.Errorf("%w: unknown data source %q, use one of gee, aws, sample", ErrInvalidRequest, s)
	}
}

// Scene is a provider search hit that can be downloaded.
type Scene struct {
	ID         string     `json:"id"`
	AcquiredAt time.Time  `json:"acquired_at"`
	CloudCover float64    `json:"cloud_cover"`
	Platform   string     `json:"platform"`
	Satellite  Satellite  `json:"satellite"`
	Source     DataSource `json:"source"`

	// Ref is the provider-specific download reference (asset name or URL).
	Ref string `json:"-"`
}

// Date formats the acquisition date as YYYY-MM-DD.
func (s Scene) Date() string {
	return s.AcquiredAt.Format(time.DateOnly)
}

// TemporalImage is the representative image for one year.
type TemporalImage struct {
	Year       int        `json:"year"`
	Date       string     `json:"date"`
	Satellite  Satellite  `json:"satellite"`
	Source     DataSource `json:"source"`
	CloudCover float64    `json:"cloud_cover"`
	SceneID    string     `json:"scene_id,omitempty"`
	PNG        []byte     `json:"-"`
}
