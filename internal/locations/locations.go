// Package locations provides the curated sample locations offered to users.
package locations

import (
	_ "embed"
	"fmt"

	"github.com/couchcryptid/satellite-change-service/internal/domain"
	"gopkg.in/yaml.v3"
)

//go:embed locations.yaml
var builtin []byte

// Sample is a named location with a short note on what changes there.
type Sample struct {
	Name        string  `json:"name" yaml:"name"`
	Latitude    float64 `json:"latitude" yaml:"latitude"`
	Longitude   float64 `json:"longitude" yaml:"longitude"`
	Description string  `json:"description" yaml:"description"`
}

// Location converts the sample to a domain location.
func (s Sample) Location() domain.Location {
	return domain.Location{Latitude: s.Latitude, Longitude: s.Longitude, PlaceName: s.Name}
}

// Builtin returns the embedded sample locations.
func Builtin() ([]Sample, error) {
	return Parse(builtin)
}

// Parse decodes and validates a YAML list of samples.
func Parse(data []byte) ([]Sample, error) {
	var samples []Sample
	if err := yaml.Unmarshal(data, &samples); err != nil {
		return nil, fmt.Errorf("decode sample locations: %w", err)
	}
	for i, s := range samples {
		if s.Name == "" {
			return nil, fmt.Errorf("sample location %d: missing name", i)
		}
		if err := s.Location().Validate(); err != nil {
			return nil, fmt.Errorf("sample location %q: %w", s.Name, err)
		}
	}
	return samples, nil
}
