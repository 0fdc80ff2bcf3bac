package cache

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/nao1215/cssfinder/internal/model"
)

// CrawlFunc produces the crawl result for a key on a cache miss.
type CrawlFunc func(ctx context.Context) (*model.CrawlResult, error)

// Cache maps crawl keys to completed crawl results.
// It is safe for concurrent use.
type Cache struct {
	mu      sync.RWMutex
	entries map[model.CrawlKey]*model.CrawlResult

	// group collapses concurrent misses for the same key into one crawl.
	group singleflight.Group

	// flights tracks the callers waiting on each running crawl. Guarded by mu.
	flights map[model.CrawlKey]*flight
}

// flight is the context of one shared crawl. It is detached from every
// caller and cancelled only once no caller waits for it anymore.
type flight struct {
	ctx     context.Context
	cancel  context.CancelFunc
	waiters int
}

// flightResult is what a shared crawl hands to its callers.
type flightResult struct {
	result *model.CrawlResult

	// abandoned is set when the crawl stopped because every caller left.
	abandoned bool
}

// New creates an empty cache.
func New() *Cache {
	return &Cache{
		entries: make(map[model.CrawlKey]*model.CrawlResult),
		flights: make(map[model.CrawlKey]*flight),
	}
}

// Lookup returns the result stored under key.
func (c *Cache) Lookup(key model.CrawlKey) (*model.CrawlResult, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	r, ok := c.entries[key]
	return r, ok
}

// Store saves result under key, replacing any previous entry.
// A nil result is ignored.
func (c *Cache) Store(key model.CrawlKey, result *model.CrawlResult) {
	if result == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = result
}

// Clear drops every entry.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[model.CrawlKey]*model.CrawlResult)
}

// Len returns the number of stored crawls.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Keys returns the stored keys ordered by their string form.
func (c *Cache) Keys() []model.CrawlKey {
	c.mu.RLock()
	keys := make([]model.CrawlKey, 0, len(c.entries))
	for k := range c.entries {
		keys = append(keys, k)
	}
	c.mu.RUnlock()

	slices.SortFunc(keys, func(a, b model.CrawlKey) int {
		return strings.Compare(a.String(), b.String())
	})
	return keys
}

// GetOrCrawl returns the cached result for key, or runs crawl and stores its
// result. Concurrent callers that miss on the same key share one crawl.
// The second return value reports whether the result came from the cache.
// Results returned together with an error are never stored.
//
// Each caller waits on its own ctx: a cancelled caller returns ctx.Err()
// while the others keep waiting. The shared crawl is cancelled only when the
// last waiting caller gives up; that caller receives the partial result.
func (c *Cache) GetOrCrawl(ctx context.Context, key model.CrawlKey, crawl CrawlFunc) (*model.CrawlResult, bool, error) {
	for {
		if r, ok := c.Lookup(key); ok {
			return r, true, nil
		}
		if err := ctx.Err(); err != nil {
			return nil, false, err
		}

		f := c.join(ctx, key)
		ch := c.group.DoChan(key.String(), func() (any, error) {
			// Another flight may have finished between Lookup and DoChan.
			if r, ok := c.Lookup(key); ok {
				return flightResult{result: r}, nil
			}
			r, err := crawl(f.ctx)
			if err != nil {
				return flightResult{result: r, abandoned: f.ctx.Err() != nil}, err
			}
			c.Store(key, r)
			return flightResult{result: r}, nil
		})

		select {
		case res := <-ch:
			c.leave(key, f)
			fr, _ := res.Val.(flightResult)
			// Joined a crawl that its earlier callers abandoned: start over.
			if fr.abandoned && errors.Is(res.Err, context.Canceled) {
				continue
			}
			if fr.result == nil && res.Err == nil {
				return nil, false, fmt.Errorf("crawl for %s returned no result", key)
			}
			return fr.result, false, res.Err
		case <-ctx.Done():
			if !c.leave(key, f) {
				return nil, false, ctx.Err()
			}
			res := <-ch
			fr, _ := res.Val.(flightResult)
			return fr.result, false, ctx.Err()
		}
	}
}

// join registers a caller on the running crawl for key, starting a new
// flight context when there is none.
func (c *Cache) join(ctx context.Context, key model.CrawlKey) *flight {
	c.mu.Lock()
	defer c.mu.Unlock()
	f, ok := c.flights[key]
	if !ok {
		fctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		f = &flight{ctx: fctx, cancel: cancel}
		c.flights[key] = f
	}
	f.waiters++
	return f
}

// leave unregisters a caller and reports whether it was the last one, in
// which case the flight is cancelled and forgotten.
func (c *Cache) leave(key model.CrawlKey, f *flight) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	f.waiters--
	if f.waiters > 0 {
		return false
	}
	if c.flights[key] == f {
		delete(c.flights, key)
	}
	f.cancel()
	return true
}
