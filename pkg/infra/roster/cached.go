package roster

import (
	"context"
	"sync"
	"time"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"

	"github.com/docpack/docpack/pkg/domain/interfaces"
	"github.com/docpack/docpack/pkg/domain/model"
	"github.com/docpack/docpack/pkg/utils/async"
	"github.com/docpack/docpack/pkg/utils/metrics"
)

// CacheKey is the key the raw roster is stored under
const CacheKey = "docpack:roster"

// refreshTimeout bounds a background refresh
const refreshTimeout = time.Minute

// CachedClient serves the roster from a cache for at most ttl. Once an entry
// is older than ttl/2 a refresh is dispatched in the background while the
// cached copy is still served.
type CachedClient struct {
	base      interfaces.RosterClient
	cache     interfaces.RosterCache
	ttl       time.Duration
	now       func() time.Time
	metrics   *metrics.Metrics
	refresher *async.Task

	// mu orders cache writes against Invalidate; generation counts invalidations
	mu         sync.Mutex
	generation uint64
}

var _ interfaces.RosterClient = (*CachedClient)(nil)
var _ interfaces.RosterInvalidator = (*CachedClient)(nil)

// CachedOption configures CachedClient
type CachedOption func(*CachedClient)

// WithClock overrides time.Now
func WithClock(now func() time.Time) CachedOption {
	return func(x *CachedClient) {
		x.now = now
	}
}

// WithMetrics records cache hits and misses
func WithMetrics(m *metrics.Metrics) CachedOption {
	return func(x *CachedClient) {
		x.metrics = m
	}
}

// NewCachedClient wraps base with cache
func NewCachedClient(base interfaces.RosterClient, cache interfaces.RosterCache, ttl time.Duration, opts ...CachedOption) *CachedClient {
	c := &CachedClient{
		base:      base,
		cache:     cache,
		ttl:       ttl,
		now:       time.Now,
		refresher: async.NewTask("roster_refresh", refreshTimeout),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FetchRoster returns the cached roster if fresh, otherwise fetches it
func (c *CachedClient) FetchRoster(ctx context.Context) (*model.Roster, error) {
	logger := ctxlog.From(ctx)

	item, err := c.cache.Get(ctx, CacheKey)
	if err != nil {
		// a broken cache must not break listing
		logger.Warn("Failed to read roster cache", "error", err)
		item = nil
	}

	if item != nil {
		age := c.now().Sub(item.StoredAt)
		if age < c.ttl {
			roster, err := Decode(item.Data)
			if err == nil {
				c.metrics.CacheResult("hit")
				if age >= c.ttl/2 {
					c.refreshAsync(ctx)
				}
				return roster, nil
			}
			logger.Warn("Dropping undecodable cached roster", "error", err)
		}
	}

	c.metrics.CacheResult("miss")
	return c.refresh(ctx)
}

// FetchStudent looks id up in the (possibly cached) roster
func (c *CachedClient) FetchStudent(ctx context.Context, id string) (*model.Student, error) {
	roster, err := c.FetchRoster(ctx)
	if err != nil {
		return nil, err
	}
	return Lookup(roster, id)
}

// Invalidate drops the cached roster
func (c *CachedClient) Invalidate(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.generation++
	if err := c.cache.Delete(ctx, CacheKey); err != nil {
		return goerr.Wrap(err, "failed to invalidate roster cache")
	}
	ctxlog.From(ctx).Info("Roster cache invalidated")
	return nil
}

// refresh fetches from upstream and stores the result unless the cache was
// invalidated while the fetch was in flight.
func (c *CachedClient) refresh(ctx context.Context) (*model.Roster, error) {
	c.mu.Lock()
	gen := c.generation
	c.mu.Unlock()

	roster, err := c.base.FetchRoster(ctx)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.generation != gen {
		ctxlog.From(ctx).Debug("Discarding roster fetched before invalidation")
		return roster, nil
	}

	item := &model.CacheItem{Data: roster.Raw, StoredAt: c.now()}
	if err := c.cache.Set(ctx, CacheKey, item, c.ttl); err != nil {
		ctxlog.From(ctx).Warn("Failed to store roster in cache", "error", err)
	}
	return roster, nil
}

func (c *CachedClient) refreshAsync(ctx context.Context) {
	c.refresher.Dispatch(ctx, func(ctx context.Context) error {
		if _, err := c.refresh(ctx); err != nil {
			return goerr.Wrap(err, "background roster refresh failed")
		}
		ctxlog.From(ctx).Debug("Roster cache refreshed in background")
		return nil
	})
}
