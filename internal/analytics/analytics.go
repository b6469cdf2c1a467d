// Package analytics reports anonymous usage events to PostHog.
package analytics

import (
	"fmt"
	"log/slog"
	"runtime"

	"github.com/posthog/posthog-go"
)

// distinctID identifies the backend as a single anonymous PostHog person.
const distinctID = "satellite-change-service"

// Tracker records usage events.
type Tracker interface {
	Track(event string, props map[string]any)
	Close() error
}

// PostHog sends events to a PostHog project.
type PostHog struct {
	client posthog.Client
	logger *slog.Logger
}

// NewPostHog creates a tracker for the project identified by apiKey.
func NewPostHog(apiKey, host string, logger *slog.Logger) (*PostHog, error) {
	client, err := posthog.NewWithConfig(apiKey, posthog.Config{
		Endpoint: host,
	})
	if err != nil {
		return nil, fmt.Errorf("init posthog: %w", err)
	}
	return &PostHog{client: client, logger: logger}, nil
}

// Track enqueues an event; delivery happens in the background.
func (p *PostHog) Track(event string, props map[string]any) {
	properties := posthog.NewProperties().
		Set("go_version", runtime.Version()).
		Set("os", runtime.GOOS)
	for k, v := range props {
		properties.Set(k, v)
	}
	if err := p.client.Enqueue(posthog.Capture{
		DistinctId: distinctID,
		Event:      event,
		Properties: properties,
	}); err != nil {
		p.logger.Warn("analytics event dropped", "event", event, "error", err)
	}
}

// Close flushes queued events.
func (p *PostHog) Close() error {
	return p.client.Close()
}

// Noop discards every event.
type Noop struct{}

func (Noop) Track(string, map[string]any) {}
func (Noop) Close() error                 { return nil }
