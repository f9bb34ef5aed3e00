package graph

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

const (
	defaultCacheEntries = 64
	defaultFetchTimeout = 30 * time.Second
)

type cacheEntry struct {
	graph   *StreetGraph
	expires time.Time
}

// CachingProvider wraps a provider, sharing one fetch between concurrent
// identical requests and keeping results for ttl. Graphs handed out are shared
// and must be treated as read-only.
//
// The shared fetch is detached from any single caller: a caller that gives up
// only stops waiting, and the fetch runs on under fetchTimeout for the others.
type CachingProvider struct {
	next         Provider
	ttl          time.Duration
	maxEntries   int
	fetchTimeout time.Duration
	now          func() time.Time

	group   singleflight.Group
	mu      sync.Mutex
	entries map[string]cacheEntry
}

// NewCachingProvider creates a caching wrapper around next. A ttl of zero
// disables retention but still deduplicates in-flight fetches. fetchTimeout
// bounds each shared upstream fetch.
func NewCachingProvider(next Provider, ttl time.Duration, maxEntries int, fetchTimeout time.Duration) *CachingProvider {
	if maxEntries <= 0 {
		maxEntries = defaultCacheEntries
	}
	if fetchTimeout <= 0 {
		fetchTimeout = defaultFetchTimeout
	}
	return &CachingProvider{
		next:         next,
		ttl:          ttl,
		maxEntries:   maxEntries,
		fetchTimeout: fetchTimeout,
		now:          time.Now,
		entries:      make(map[string]cacheEntry),
	}
}

// WalkGraph implements Provider
func (c *CachingProvider) WalkGraph(ctx context.Context, bbox BBox) (*StreetGraph, error) {
	key := bbox.Key()

	if g, ok := c.lookup(key); ok {
		cacheLookups.WithLabelValues("hit").Inc()
		return g, nil
	}
	cacheLookups.WithLabelValues("miss").Inc()

	ch := c.group.DoChan(key, func() (any, error) {
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.fetchTimeout)
		defer cancel()

		g, err := c.next.WalkGraph(fetchCtx, bbox)
		if err != nil {
			return nil, err
		}
		c.store(key, g)
		return g, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*StreetGraph), nil
	}
}

func (c *CachingProvider) lookup(key string) (*StreetGraph, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if !c.now().Before(e.expires) {
		delete(c.entries, key)
		return nil, false
	}
	return e.graph, true
}

func (c *CachingProvider) store(key string, g *StreetGraph) {
	if c.ttl <= 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for k, e := range c.entries {
		if !now.Before(e.expires) {
			delete(c.entries, k)
		}
	}
	for len(c.entries) >= c.maxEntries {
		var oldest string
		var oldestExp time.Time
		for k, e := range c.entries {
			if oldest == "" || e.expires.Before(oldestExp) {
				oldest, oldestExp = k, e.expires
			}
		}
		delete(c.entries, oldest)
	}
	c.entries[key] = cacheEntry{graph: g, expires: now.Add(c.ttl)}
}
