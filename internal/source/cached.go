package source

import (
	"context"
	"time"

	"github.com/Peleke/colloquium/internal/cache"
)

// CachedLookup fronts a Lookup with a bounded TTL cache. Source
// material changes rarely, so a short TTL keeps the database off the
// session-start hot path.
type CachedLookup struct {
	inner Lookup
	cache *cache.Cache[string, Material]
}

// NewCachedLookup wraps inner with a cache of the given capacity and
// ttl. A nil clock defaults to wall time.
func NewCachedLookup(inner Lookup, capacity int, ttl time.Duration, clk cache.Clock) *CachedLookup {
	return &CachedLookup{
		inner: inner,
		cache: cache.New[string, Material](capacity, ttl, clk),
	}
}

func (c *CachedLookup) Get(ctx context.Context, id string) (*Material, error) {
	if m, ok := c.cache.Get(id); ok {
		cp := m
		cp.Roles = append([]string(nil), m.Roles...)
		return &cp, nil
	}

	m, err := c.inner.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	// Cache a detached copy so callers mutating the returned material
	// cannot poison later hits.
	cp := *m
	cp.Roles = append([]string(nil), m.Roles...)
	c.cache.Set(id, cp)
	return m, nil
}

// List always hits the inner lookup; listing is not on the hot path.
func (c *CachedLookup) List(ctx context.Context) ([]*Material, error) {
	return c.inner.List(ctx)
}
