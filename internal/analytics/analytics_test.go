package analytics

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostHog_TrackFlushedOnClose(t *testing.T) {
	var (
		mu     sync.Mutex
		bodies []string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.URL.Path, "batch") {
			data, _ := io.ReadAll(r.Body)
			mu.Lock()
			bodies = append(bodies, string(data))
			mu.Unlock()
		}
		w.WriteHeader(http.StatusOK)
		_, _ = io.WriteString(w, `{}`)
	}))
	defer srv.Close()

	tracker, err := NewPostHog("phc_test", srv.URL, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)

	tracker.Track("analysis_completed", map[string]any{"endpoint": "analyze", "images": 3})
	require.NoError(t, tracker.Close())

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, bodies)

	var batch struct {
		Batch []struct {
			Event      string         `json:"event"`
			DistinctID string         `json:"distinct_id"`
			Properties map[string]any `json:"properties"`
		} `json:"batch"`
	}
	require.NoError(t, json.Unmarshal([]byte(bodies[0]), &batch))
	require.Len(t, batch.Batch, 1)
	assert.Equal(t, "analysis_completed", batch.Batch[0].Event)
	assert.Equal(t, distinctID, batch.Batch[0].DistinctID)
	assert.Equal(t, "analyze", batch.Batch[0].Properties["endpoint"])
	assert.Equal(t, 3.0, batch.Batch[0].Properties["images"])
}

func TestNoop(t *testing.T) {
	var tr Tracker = Noop{}
	tr.Track("anything", nil)
	assert.NoError(t, tr.Close())
}
