package domain

import "time"

// EventAnalysisCompleted is the type of events emitted after an analysis.
const EventAnalysisCompleted = "analysis.completed"

// AnalysisEvent summarises a finished analysis for downstream consumers.
type AnalysisEvent struct {
	ID           string        `json:"id"`
	Type         string        `json:"type"`
	Endpoint     string        `json:"endpoint"`
	Status       string        `json:"status"`
	Location     *Location     `json:"location,omitempty"`
	StartYear    int           `json:"start_year,omitempty"`
	EndYear      int           `json:"end_year,omitempty"`
	Satellite    Satellite     `json:"satellite,omitempty"`
	Source       DataSource    `json:"data_source,omitempty"`
	ImagesCount  int           `json:"images_count"`
	MissingYears []int         `json:"missing_years,omitempty"`
	Overall      *ChangeRecord `json:"overall_change,omitempty"`
	CompletedAt  time.Time     `json:"completed_at"`
}
