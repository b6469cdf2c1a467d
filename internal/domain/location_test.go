package domain

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocation_Validate(t *testing.T) {
	tests := []struct {
		name    string
		loc     Location
		wantErr bool
	}{
		{"new delhi", Location{Latitude: 28.6139, Longitude: 77.2090}, false},
		{"origin", Location{}, false},
		{"poles and antimeridian", Location{Latitude: -90, Longitude: 180}, false},
		{"latitude too high", Location{Latitude: 90.1}, true},
		{"longitude too low", Location{Longitude: -180.5}, true},
		{"NaN latitude", Location{Latitude: math.NaN()}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.loc.Validate()
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidLocation)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestLocation_BBoxClipsToValidRange(t *testing.T) {
	loc := Location{Latitude: 89.98, Longitude: -179.99}
	assert.Equal(t, [4]float64{-180, 89.93, -179.94, 90}, roundBBox(loc.BBox(0.05)))
}

func TestLocation_Key(t *testing.T) {
	assert.Equal(t, "28.613900_77.209000", Location{Latitude: 28.6139, Longitude: 77.209}.Key())
}

func roundBBox(b [4]float64) [4]float64 {
	for i := range b {
		b[i] = round4(b[i])
	}
	return b
}

func TestImageFilename(t *testing.T) {
	loc := Location{Latitude: 19.076, Longitude: 72.8777}
	img := TemporalImage{Year: 2020, Date: "2020-04-12", Satellite: Sentinel2}
	name := ImageFilename(loc, img)

	assert.Equal(t, "19.076000_72.877700_sentinel2_2020_2020-04-12.png", name)
	assert.True(t, ValidImageFilename(name))
}

func TestValidImageFilename(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"a.png", true},
		{"", false},
		{"../secret.png", false},
		{"dir/a.png", false},
		{`dir\a.png`, false},
		{".hidden.png", false},
		{"a.json", false},
		{"*.png", false},
		{"?.png", false},
		{"[.png", false},
		{"a[0-9].png", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ValidImageFilename(tt.name))
		})
	}
}
