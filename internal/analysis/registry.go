package analysis

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/couchcryptid/satellite-change-service/internal/domain"
	"github.com/couchcryptid/satellite-change-service/internal/observability"
)

// SourceStatus reports whether a data source can serve requests.
type SourceStatus struct {
	Source      domain.DataSource `json:"source"`
	Description string            `json:"description"`
	Available   bool              `json:"available"`
	Active      bool              `json:"active"`
	Error       string            `json:"error,omitempty"`
}

// Registry holds the configured imagery providers and the active one.
// Providers are registered at startup; switching is safe concurrently.
type Registry struct {
	mu        sync.RWMutex
	providers map[domain.DataSource]domain.ImageProvider
	failures  map[domain.DataSource]error

	active  atomic.Pointer[domain.DataSource]
	metrics *observability.Metrics
	logger  *slog.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(metrics *observability.Metrics, logger *slog.Logger) *Registry {
	return &Registry{
		providers: make(map[domain.DataSource]domain.ImageProvider),
		failures:  make(map[domain.DataSource]error),
		metrics:   metrics,
		logger:    logger,
	}
}

// Register makes a provider selectable.
func (r *Registry) Register(p domain.ImageProvider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[p.Source()] = p
	delete(r.failures, p.Source())
}

// MarkUnavailable records why a source could not be initialised.
func (r *Registry) MarkUnavailable(src domain.DataSource, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.providers, src)
	r.failures[src] = err
}

// Activate selects preferred, falling back through the remaining sources in
// order when it is unavailable. It returns the source actually activated.
func (r *Registry) Activate(preferred domain.DataSource) (domain.DataSource, error) {
	if err := r.Switch(preferred); err == nil {
		return preferred, nil
	}
	for _, src := range domain.DataSources {
		if src == preferred {
			continue
		}
		if err := r.Switch(src); err == nil {
			r.logger.Warn("preferred data source unavailable, falling back",
				"preferred", preferred, "active", src, "error", r.failure(preferred))
			return src, nil
		}
	}
	return "", fmt.Errorf("%w: no data source could be initialised", domain.ErrSourceUnavailable)
}

// Switch makes src the active source.
func (r *Registry) Switch(src domain.DataSource) error {
	r.mu.RLock()
	_, ok := r.providers[src]
	r.mu.RUnlock()
	if !ok {
		if err := r.failure(src); err != nil {
			return fmt.Errorf("%w: %s: %v", domain.ErrSourceUnavailable, src, err)
		}
		return fmt.Errorf("%w: %s is not configured", domain.ErrSourceUnavailable, src)
	}

	prev := r.active.Swap(&src)
	if prev != nil {
		r.metrics.ActiveSource.WithLabelValues(string(*prev)).Set(0)
	}
	r.metrics.ActiveSource.WithLabelValues(string(src)).Set(1)
	r.logger.Info("data source activated", "source", src)
	return nil
}

// Active returns the provider currently serving requests.
func (r *Registry) Active() (domain.ImageProvider, error) {
	src := r.active.Load()
	if src == nil {
		return nil, fmt.Errorf("%w: no active data source", domain.ErrSourceUnavailable)
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[*src]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrSourceUnavailable, *src)
	}
	return p, nil
}

// ActiveSource returns the active source identifier, or "" before activation.
func (r *Registry) ActiveSource() domain.DataSource {
	if src := r.active.Load(); src != nil {
		return *src
	}
	return ""
}

// List reports every selectable source in fallback order.
func (r *Registry) List() []SourceStatus {
	active := r.ActiveSource()
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]SourceStatus, 0, len(domain.DataSources))
	for _, src := range domain.DataSources {
		st := SourceStatus{
			Source:      src,
			Description: src.Description(),
			Active:      src == active,
		}
		_, st.Available = r.providers[src]
		if err, failed := r.failures[src]; failed {
			st.Error = err.Error()
		} else if !st.Available {
			st.Error = "not configured"
		}
		out = append(out, st)
	}
	return out
}

// CheckReadiness returns nil once a source is active.
func (r *Registry) CheckReadiness(_ context.Context) error {
	_, err := r.Active()
	return err
}

func (r *Registry) failure(src domain.DataSource) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.failures[src]
}
