package domain

import (
	"fmt"
	"math"
)

// ChangeLevel buckets the severity of a change.
type ChangeLevel string

const (
	LevelNone     ChangeLevel = "none"
	LevelMinor    ChangeLevel = "minor"
	LevelModerate ChangeLevel = "moderate"
	LevelMajor    ChangeLevel = "major"
)

const (
	// severityScale is the cosine distance that maps to severity 1.
	severityScale = 0.5

	categoryNoChange      = "no significant change"
	categorySurfaceChange = "surface change"
)

// Observation pairs a year with the embedding of its image.
type Observation struct {
	Year   int
	Vector FeatureVector
}

// ChangeRecord describes how a location changed between two years.
type ChangeRecord struct {
	FromYear    int         `json:"from_year"`
	ToYear      int         `json:"to_year"`
	Similarity  float64     `json:"similarity"`
	Distance    float64     `json:"distance"`
	Severity    float64     `json:"severity"`
	Level       ChangeLevel `json:"level"`
	Category    string      `json:"category"`
	FromLabel   string      `json:"from_label,omitempty"`
	ToLabel     string      `json:"to_label,omitempty"`
	Description string      `json:"description"`
}

// Compare derives a ChangeRecord from two observations. The result does not
// depend on argument order: the earlier year is always FromYear, and equal
// years are ordered by label.
func Compare(a, b Observation) (ChangeRecord, error) {
	if a.Year > b.Year || (a.Year == b.Year && a.Vector.Label > b.Vector.Label) {
		a, b = b, a
	}

	sim, err := CosineSimilarity(a.Vector, b.Vector)
	if err != nil {
		return ChangeRecord{}, fmt.Errorf("compare %d and %d: %w", a.Year, b.Year, err)
	}

	distance := round4(math.Max(0, 1-sim))
	severity := round4(math.Min(1, distance/severityScale))
	level := levelFor(distance)

	rec := ChangeRecord{
		FromYear:   a.Year,
		ToYear:     b.Year,
		Similarity: round4(sim),
		Distance:   distance,
		Severity:   severity,
		Level:      level,
		FromLabel:  a.Vector.Label,
		ToLabel:    b.Vector.Label,
	}
	rec.Category = categoryFor(level, rec.FromLabel, rec.ToLabel)
	rec.Description = describe(rec)
	return rec, nil
}

func levelFor(distance float64) ChangeLevel {
	switch {
	case distance < 0.02:
		return LevelNone
	case distance < 0.08:
		return LevelMinor
	case distance < 0.20:
		return LevelModerate
	default:
		return LevelMajor
	}
}

// Land-cover classes used to name label transitions.
const (
	coverBuilt  = "built"
	coverForest = "forest"
	coverCrops  = "crops"
	coverGrass  = "grass"
	coverWater  = "water"
	coverBare   = "bare"
	coverSnow   = "snow"
	coverWet    = "wetland"
)

var labelCover = map[string]string{
	"urban area":        coverBuilt,
	"residential area":  coverBuilt,
	"industrial area":   coverBuilt,
	"forest":            coverForest,
	"agricultural land": coverCrops,
	"farmland":          coverCrops,
	"grassland":         coverGrass,
	"water body":        coverWater,
	"river":             coverWater,
	"barren land":       coverBare,
	"desert":            coverBare,
	"snow and ice":      coverSnow,
	"wetland":           coverWet,
}

func isVegetated(cover string) bool {
	return cover == coverForest || cover == coverCrops || cover == coverGrass || cover == coverWet
}

func categoryFor(level ChangeLevel, from, to string) string {
	if level == LevelNone {
		return categoryNoChange
	}
	if from == "" || to == "" || from == to {
		return categorySurfaceChange
	}

	fc, tc := labelCover[from], labelCover[to]
	switch {
	case fc == "" || tc == "":
		return "land cover change"
	case fc == tc:
		return categorySurfaceChange
	case tc == coverBuilt:
		return "urbanization"
	case fc == coverBuilt:
		return "built-up loss"
	case tc == coverWater:
		return "water expansion"
	case fc == coverWater:
		return "water loss"
	case tc == coverSnow:
		return "snow and ice gain"
	case fc == coverSnow:
		return "snow and ice loss"
	case fc == coverForest && (tc == coverCrops || tc == coverGrass || tc == coverBare):
		return "deforestation"
	case isVegetated(fc) && tc == coverBare:
		return "land degradation"
	case fc == coverBare && isVegetated(tc):
		return "revegetation"
	case isVegetated(fc) && isVegetated(tc):
		return "vegetation change"
	default:
		return "land cover change"
	}
}

func describe(r ChangeRecord) string {
	switch {
	case r.Level == LevelNone:
		return fmt.Sprintf("No significant change detected between %d and %d (similarity %.2f).",
			r.FromYear, r.ToYear, r.Similarity)
	case r.FromLabel != "" && r.ToLabel != "" && r.FromLabel != r.ToLabel:
		return fmt.Sprintf("Between %d and %d the area shifted from %s to %s, indicating %s (%s change, severity %.2f).",
			r.FromYear, r.ToYear, r.FromLabel, r.ToLabel, r.Category, r.Level, r.Severity)
	case r.ToLabel != "":
		return fmt.Sprintf("Between %d and %d the surface showed a %s change (severity %.2f) while the dominant cover remained %s.",
			r.FromYear, r.ToYear, r.Level, r.Severity, r.ToLabel)
	default:
		return fmt.Sprintf("Between %d and %d the surface showed a %s change (severity %.2f).",
			r.FromYear, r.ToYear, r.Level, r.Severity)
	}
}

func round4(x float64) float64 {
	return math.Round(x*1e4) / 1e4
}
