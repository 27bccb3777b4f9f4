// Package cache holds the in-memory service provider directory snapshot.
//
// The snapshot is always replaced wholesale: a refresh fetches the full
// document, transforms it, and swaps it in as a unit. Concurrent refreshes
// are collapsed through singleflight; racing a refresh is safe because any
// winner installs a complete, self-consistent snapshot.
package cache

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"rtpbridge/internal/registry/metrics"
	"rtpbridge/internal/registry/models"
	"rtpbridge/pkg/platform/sentinel"
)

// Fetcher retrieves the full directory document from the external source.
type Fetcher interface {
	Fetch(ctx context.Context) (models.RegistryData, error)
}

// Cache exposes get-or-refresh resolution of service providers. It is the
// single shared mutable resource of the core: one refresh writes, everyone
// else reads.
type Cache struct {
	fetcher Fetcher
	ttl     time.Duration
	logger  *slog.Logger
	metrics *metrics.Metrics

	group singleflight.Group

	mu        sync.RWMutex
	snapshot  map[string]models.ServiceProviderFullData
	expiresAt time.Time
	loaded    bool
}

type Option func(*Cache)

func WithLogger(logger *slog.Logger) Option {
	return func(c *Cache) { c.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Cache) { c.metrics = m }
}

// New builds a cache over fetcher with a time-based expiration policy.
func New(fetcher Fetcher, ttl time.Duration, opts ...Option) *Cache {
	c := &Cache{fetcher: fetcher, ttl: ttl, logger: slog.Default()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Resolve returns the joined directory entry for providerID, refreshing the
// snapshot first when it is missing or expired. A fetch failure propagates
// as a retrieval error and leaves any previous snapshot in place.
func (c *Cache) Resolve(ctx context.Context, providerID string) (models.ServiceProviderFullData, error) {
	if err := c.ensureFresh(ctx); err != nil {
		return models.ServiceProviderFullData{}, err
	}

	c.mu.RLock()
	entry, ok := c.snapshot[providerID]
	c.mu.RUnlock()
	if !ok {
		if c.metrics != nil {
			c.metrics.ResolveMisses.Inc()
		}
		return models.ServiceProviderFullData{}, fmt.Errorf("service provider %s: %w", providerID, sentinel.ErrNotFound)
	}
	return entry, nil
}

func (c *Cache) ensureFresh(ctx context.Context) error {
	c.mu.RLock()
	fresh := c.loaded && time.Now().Before(c.expiresAt)
	c.mu.RUnlock()
	if fresh {
		return nil
	}

	_, err, _ := c.group.Do("registry", func() (any, error) {
		return nil, c.refresh(ctx)
	})
	return err
}

func (c *Cache) refresh(ctx context.Context) error {
	data, err := c.fetcher.Fetch(ctx)
	if err != nil {
		if c.metrics != nil {
			c.metrics.Refreshes.WithLabelValues("error").Inc()
		}
		return fmt.Errorf("registry retrieval: %w", err)
	}

	snapshot := buildSnapshot(data)

	c.mu.Lock()
	c.snapshot = snapshot
	c.expiresAt = time.Now().Add(c.ttl)
	c.loaded = true
	c.mu.Unlock()

	if c.metrics != nil {
		c.metrics.Refreshes.WithLabelValues("ok").Inc()
		c.metrics.SnapshotSize.Set(float64(len(snapshot)))
	}
	c.logger.Debug("registry snapshot refreshed", "providers", len(snapshot))
	return nil
}

// buildSnapshot indexes both arrays in one pass each, then joins service
// providers to their technical provider by TSPID. An unresolved TSPID
// leaves TSP nil rather than failing the refresh.
func buildSnapshot(data models.RegistryData) map[string]models.ServiceProviderFullData {
	tspByID := make(map[string]models.TechnicalServiceProvider, len(data.TSPs))
	for _, tsp := range data.TSPs {
		tspByID[tsp.ID] = tsp
	}

	snapshot := make(map[string]models.ServiceProviderFullData, len(data.SPs))
	for _, sp := range data.SPs {
		entry := models.ServiceProviderFullData{SP: sp}
		if tsp, ok := tspByID[sp.TSPID]; ok {
			entry.TSP = &tsp
		}
		snapshot[sp.ID] = entry
	}
	return snapshot
}
