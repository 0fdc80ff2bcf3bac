// Package cache keeps completed crawl results in memory for the lifetime of
// a session.
//
// Entries are keyed by model.CrawlKey and matched exactly: a crawl with a
// different page limit or scope is a different entry. There is no eviction;
// entries live until Clear is called. Only completed crawls are stored, so a
// reader never observes a result that is still being built.
//
// Usage:
//
//	c := cache.New()
//	result, cached, err := c.GetOrCrawl(ctx, key, func(ctx context.Context) (*model.CrawlResult, error) {
//	    return spider.Crawl(ctx, key.StartURL)
//	})
package cache
