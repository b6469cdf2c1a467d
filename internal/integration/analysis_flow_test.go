//go:build integration

package integration_test

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/couchcryptid/satellite-change-service/internal/adapter/catalog"
	"github.com/couchcryptid/satellite-change-service/internal/adapter/kafka"
	"github.com/couchcryptid/satellite-change-service/internal/adapter/remoteclip"
	"github.com/couchcryptid/satellite-change-service/internal/adapter/sample"
	"github.com/couchcryptid/satellite-change-service/internal/analysis"
	"github.com/couchcryptid/satellite-change-service/internal/config"
	"github.com/couchcryptid/satellite-change-service/internal/domain"
	"github.com/couchcryptid/satellite-change-service/internal/observability"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestAnalysisFlow runs an analysis over sample imagery with the Postgres
// catalog and Kafka publisher attached, then checks both sinks.
func TestAnalysisFlow(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testEventTopic)
	dsn := startPostgres(ctx, t)

	logger := discardLogger()
	metrics := observability.NewMetricsForTesting()

	store, err := catalog.NewPostgresStore(ctx, dsn, logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	writer := kafka.NewWriter(&config.Config{KafkaBrokers: []string{broker}, KafkaTopic: testEventTopic}, metrics, logger)
	t.Cleanup(func() { _ = writer.Close() })

	sources := analysis.NewRegistry(metrics, logger)
	sources.Register(sample.NewProvider(64))
	_, err = sources.Activate(domain.SourceSample)
	require.NoError(t, err)

	embedder, err := remoteclip.NewCachedEmbedder(remoteclip.NewHistogram(config.DefaultZeroShotLabels),
		remoteclip.HistogramModel, 32, metrics)
	require.NoError(t, err)

	svc := analysis.New(analysis.Deps{
		Sources:   sources,
		Embedder:  embedder,
		Catalog:   store,
		Publisher: writer,
	}, analysis.Options{MaxCloudCover: 20, MaxYearSpan: 10, FetchConcurrency: 3, ImageSize: 64}, logger, metrics)

	res, err := svc.Analyze(ctx, analysis.AnalyzeRequest{
		Latitude:  -3.4653,
		Longitude: -62.2159,
		StartYear: 2018,
		EndYear:   2022,
	})
	require.NoError(t, err)
	require.Equal(t, 5, res.ImagesCount)

	records, err := store.List(ctx, domain.SourceSample)
	require.NoError(t, err)
	assert.Len(t, records, 5)
	for _, ya := range res.TemporalAnalysis {
		data, _, err := store.Open(ctx, ya.Filename)
		require.NoError(t, err)
		assert.Equal(t, ya.PNG, data)
	}

	consumer := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     []string{broker},
		Topic:       testEventTopic,
		GroupID:     fmt.Sprintf("test-flow-%d", time.Now().UnixNano()),
		StartOffset: kafkago.FirstOffset,
	})
	t.Cleanup(func() { _ = consumer.Close() })

	msg := readMessage(ctx, t, consumer)
	assert.Equal(t, res.AnalysisID, string(msg.Key))

	var event domain.AnalysisEvent
	require.NoError(t, json.Unmarshal(msg.Value, &event))
	assert.Equal(t, "analyze", event.Endpoint)
	assert.Equal(t, 5, event.ImagesCount)
	require.NotNil(t, event.Overall)
	assert.Equal(t, res.OverallChange.Severity, event.Overall.Severity)
}
