// Package crawler fetches a website breadth-first and indexes every page.
//
// # Components
//
//   - URL helpers (Normalize, Resolve, OriginOf, IsSameDomain, IsFetchable)
//   - Fetcher: a single GET with its own timeout and typed failures
//   - Index helpers (Parse, ExtractClassedElements, ExtractLinks)
//   - Spider: the sequential breadth-first crawl bounded by a page limit
//
// # Crawl loop
//
// The spider keeps a visited set and a FIFO queue seeded with the start URL.
// A URL counts toward the page limit as soon as it is accepted from the
// queue, whether or not the fetch succeeds, so a crawl makes at most
// pageLimit fetch attempts and always terminates, even on cyclic sites.
// Deduplication happens only at dequeue time; the queue may hold the same URL
// more than once.
//
// Fetch failures are recorded on the result and logged as warnings. They
// never abort the crawl.
//
// # Usage
//
//	fetcher := crawler.NewFetcher(httpClient)
//	spider := crawler.NewSpider(fetcher, crawler.WithMaxPages(20), crawler.WithSameDomainOnly(true))
//	result, err := spider.Crawl(ctx, "https://example.com")
package crawler
