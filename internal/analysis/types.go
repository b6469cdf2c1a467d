package analysis

import (
	"github.com/couchcryptid/satellite-change-service/internal/domain"
)

// Result statuses.
const (
	StatusSuccess = "success"
	StatusPartial = "partial"
)

// Default request values.
const (
	DefaultStartYear   = 2020
	DefaultEndYear     = 2024
	DefaultSearchLimit = 10
	maxSearchLimit     = 100
)

// AnalyzeRequest asks for a multi-year analysis of a location. A non-empty
// Place is geocoded and replaces the coordinates.
type AnalyzeRequest struct {
	Place         string   `json:"place"`
	Latitude      float64  `json:"latitude"`
	Longitude     float64  `json:"longitude"`
	StartYear     int      `json:"start_year"`
	EndYear       int      `json:"end_year"`
	Satellite     string   `json:"satellite"`
	MaxCloudCover *float64 `json:"max_cloud_cover"`
}

// UploadedImage is one user-supplied image. A zero Year is assigned by the
// service.
type UploadedImage struct {
	Filename string
	Data     []byte
	Year     int
}

// ImagesRequest asks for an analysis of uploaded images.
type ImagesRequest struct {
	Images   []UploadedImage
	Location *domain.Location
}

// CompareRequest asks for the change between two years at a location.
type CompareRequest struct {
	Place         string
	Year1         int
	Year2         int
	Latitude      float64
	Longitude     float64
	Satellite     string
	MaxCloudCover *float64
}

// SearchRequest lists scenes on the active source.
type SearchRequest struct {
	Latitude      float64  `json:"latitude"`
	Longitude     float64  `json:"longitude"`
	StartDate     string   `json:"start_date"`
	EndDate       string   `json:"end_date"`
	MaxCloudCover *float64 `json:"max_cloud_cover"`
	Limit         int      `json:"limit"`
	Satellite     string   `json:"satellite"`
}

// SearchResult is the response of Search.
type SearchResult struct {
	Source  domain.DataSource `json:"source"`
	Count   int               `json:"count"`
	Results []domain.Scene    `json:"results"`
}

// TimeRange is the inclusive year range of an analysis.
type TimeRange struct {
	StartYear int `json:"start_year"`
	EndYear   int `json:"end_year"`
}

// YearAnalysis is the per-image section of a result.
type YearAnalysis struct {
	domain.TemporalImage
	Label       string  `json:"label,omitempty"`
	Confidence  float64 `json:"confidence,omitempty"`
	Model       string  `json:"model"`
	Filename    string  `json:"filename,omitempty"`
	ImageBase64 string  `json:"image_base64"`
}

// YearFailure explains why a year has no image.
type YearFailure struct {
	Year   int    `json:"year"`
	Reason string `json:"reason"`
}

// AnalysisResult is the response shared by Analyze and AnalyzeImages.
type AnalysisResult struct {
	Status           string                   `json:"status"`
	AnalysisID       string                   `json:"analysis_id"`
	Location         *domain.Location         `json:"location,omitempty"`
	TimeRange        TimeRange                `json:"time_range"`
	DataSource       domain.DataSource        `json:"data_source"`
	Satellite        domain.Satellite         `json:"satellite,omitempty"`
	ImagesCount      int                      `json:"images_count"`
	TemporalAnalysis []YearAnalysis           `json:"temporal_analysis"`
	ChangesDetected  []domain.ChangeRecord    `json:"changes_detected"`
	OverallChange    *domain.ChangeRecord     `json:"overall_change,omitempty"`
	MissingYears     []int                    `json:"missing_years"`
	Failures         []YearFailure            `json:"failures,omitempty"`
	LandContext      *domain.LandCoverContext `json:"land_context,omitempty"`
}
