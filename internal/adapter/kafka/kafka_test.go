package kafka

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/couchcryptid/satellite-change-service/internal/config"
	"github.com/couchcryptid/satellite-change-service/internal/domain"
	"github.com/couchcryptid/satellite-change-service/internal/observability"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSerializeToMessage(t *testing.T) {
	now := time.Date(2024, 4, 26, 15, 10, 0, 0, time.UTC)
	event := domain.AnalysisEvent{
		ID:           "0b6f3a1c-8c1e-4a57-9d1c-7b8e2f1a9c00",
		Type:         domain.EventAnalysisCompleted,
		Endpoint:     "analyze",
		Status:       "partial",
		Location:     &domain.Location{Latitude: 28.6139, Longitude: 77.2090},
		StartYear:    2019,
		EndYear:      2023,
		Satellite:    domain.Sentinel2,
		Source:       domain.SourceSample,
		ImagesCount:  4,
		MissingYears: []int{2021},
		Overall:      &domain.ChangeRecord{FromYear: 2019, ToYear: 2023, Level: domain.LevelMajor},
		CompletedAt:  now,
	}

	msg, err := serializeToMessage(event)
	require.NoError(t, err)

	assert.Equal(t, []byte(event.ID), msg.Key)
	assert.Len(t, msg.Headers, 2)
	assert.Equal(t, "event_type", msg.Headers[0].Key)
	assert.Equal(t, []byte("analysis.completed"), msg.Headers[0].Value)
	assert.Equal(t, "completed_at", msg.Headers[1].Key)
	assert.Equal(t, []byte(now.Format(time.RFC3339)), msg.Headers[1].Value)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, "partial", decoded["status"])
	assert.Equal(t, "sample", decoded["data_source"])
	assert.Equal(t, []any{2021.0}, decoded["missing_years"])
	assert.Contains(t, decoded, "overall_change")
}

func TestSerializeToMessage_OmitsEmptyFields(t *testing.T) {
	msg, err := serializeToMessage(domain.AnalysisEvent{ID: "x", Type: domain.EventAnalysisCompleted, Endpoint: "analyze_image"})
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.NotContains(t, decoded, "location")
	assert.NotContains(t, decoded, "overall_change")
	assert.NotContains(t, decoded, "missing_years")
}

func TestWriter_PublishNothing(t *testing.T) {
	cfg := &config.Config{KafkaBrokers: []string{"localhost:0"}, KafkaTopic: "unused"}
	w := NewWriter(cfg, observability.NewMetricsForTesting(), slog.New(slog.NewTextHandler(io.Discard, nil)))
	t.Cleanup(func() { _ = w.Close() })

	require.NoError(t, w.Publish(context.Background()))
}
