//go:build integration

package integration_test

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/couchcryptid/satellite-change-service/internal/adapter/kafka"
	"github.com/couchcryptid/satellite-change-service/internal/config"
	"github.com/couchcryptid/satellite-change-service/internal/domain"
	"github.com/couchcryptid/satellite-change-service/internal/observability"
	"github.com/prometheus/client_golang/prometheus/testutil"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testEventTopic = "test-analysis-events"

// TestKafkaWriter verifies analysis events arrive keyed by ID with headers.
func TestKafkaWriter(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testEventTopic)

	cfg := &config.Config{KafkaBrokers: []string{broker}, KafkaTopic: testEventTopic}
	metrics := observability.NewMetricsForTesting()
	writer := kafka.NewWriter(cfg, metrics, discardLogger())
	t.Cleanup(func() { _ = writer.Close() })

	completed := time.Date(2025, time.March, 3, 9, 30, 0, 0, time.UTC)
	event := domain.AnalysisEvent{
		ID:           "0b6c1c8e-5a7e-4f4b-9a53-0d2b9f0f7d11",
		Type:         domain.EventAnalysisCompleted,
		Endpoint:     "analyze",
		Status:       "partial",
		Location:     &domain.Location{Latitude: 19.076, Longitude: 72.8777, PlaceName: "Mumbai, India"},
		StartYear:    2019,
		EndYear:      2023,
		Satellite:    domain.Sentinel2,
		Source:       domain.SourceAWS,
		ImagesCount:  4,
		MissingYears: []int{2021},
		Overall:      &domain.ChangeRecord{FromYear: 2019, ToYear: 2023, Severity: 0.31, Level: domain.LevelModerate},
		CompletedAt:  completed,
	}
	require.NoError(t, writer.Publish(ctx, event))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.EventsPublished))

	consumer := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     []string{broker},
		Topic:       testEventTopic,
		GroupID:     fmt.Sprintf("test-consumer-%d", time.Now().UnixNano()),
		StartOffset: kafkago.FirstOffset,
	})
	t.Cleanup(func() { _ = consumer.Close() })

	msg := readMessage(ctx, t, consumer)
	assert.Equal(t, event.ID, string(msg.Key))

	h := headers(msg)
	assert.Equal(t, domain.EventAnalysisCompleted, h["event_type"])
	ts, err := time.Parse(time.RFC3339, h["completed_at"])
	require.NoError(t, err, "completed_at should be valid RFC3339")
	assert.True(t, completed.Equal(ts))

	var got domain.AnalysisEvent
	require.NoError(t, json.Unmarshal(msg.Value, &got))
	assert.Equal(t, event.ID, got.ID)
	assert.Equal(t, []int{2021}, got.MissingYears)
	assert.Equal(t, domain.SourceAWS, got.Source)
	require.NotNil(t, got.Overall)
	assert.Equal(t, domain.LevelModerate, got.Overall.Level)
	require.NotNil(t, got.Location)
	assert.Equal(t, "Mumbai, India", got.Location.PlaceName)
}
