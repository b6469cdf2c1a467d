package domain

import (
	"context"
	"fmt"
	"path"
	"strings"
	"time"
)

// ImageRecord describes a catalogued image.
type ImageRecord struct {
	Filename   string     `json:"filename" db:"filename"`
	Source     DataSource `json:"source" db:"source"`
	Satellite  Satellite  `json:"satellite" db:"satellite"`
	Year       int        `json:"year" db:"year"`
	Date       string     `json:"date" db:"acquired_date"`
	CloudCover float64    `json:"cloud_cover" db:"cloud_cover"`
	SceneID    string     `json:"scene_id" db:"scene_id"`
	Latitude   float64    `json:"latitude" db:"latitude"`
	Longitude  float64    `json:"longitude" db:"longitude"`
	SizeBytes  int        `json:"size_bytes" db:"size_bytes"`
	CreatedAt  time.Time  `json:"created_at" db:"created_at"`
}

// ImageCatalog stores fetched images and serves them back by filename.
type ImageCatalog interface {
	Save(ctx context.Context, loc Location, img TemporalImage) (ImageRecord, error)

	// List returns records newest first. An empty source lists every source.
	List(ctx context.Context, source DataSource) ([]ImageRecord, error)

	// Open returns the PNG bytes of a catalogued image.
	Open(ctx context.Context, filename string) ([]byte, ImageRecord, error)
}

// NewImageRecord derives the catalog record of an image fetched at loc.
func NewImageRecord(loc Location, img TemporalImage) ImageRecord {
	return ImageRecord{
		Filename:   ImageFilename(loc, img),
		Source:     img.Source,
		Satellite:  img.Satellite,
		Year:       img.Year,
		Date:       img.Date,
		CloudCover: img.CloudCover,
		SceneID:    img.SceneID,
		Latitude:   loc.Latitude,
		Longitude:  loc.Longitude,
		SizeBytes:  len(img.PNG),
		CreatedAt:  Now(),
	}
}

// ImageFilename names the stored PNG of an image.
func ImageFilename(loc Location, img TemporalImage) string {
	return fmt.Sprintf("%s_%s_%d_%s.png", loc.Key(), img.Satellite, img.Year, img.Date)
}

// ValidImageFilename reports whether name is a bare PNG filename with no
// path separators or glob metacharacters.
func ValidImageFilename(name string) bool {
	return name != "" &&
		path.Base(name) == name &&
		!strings.ContainsAny(name, `/\*?[]`) &&
		!strings.HasPrefix(name, ".") &&
		strings.HasSuffix(name, ".png")
}
