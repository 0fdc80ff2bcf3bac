// Package model defines the data structures shared by the crawler, the cache,
// the search layer and the report writers.
//
// This package contains the following main types:
//   - CrawlKey: identity of a crawl (start URL, page limit, domain scope)
//   - PageRecord: one fetched and indexed page
//   - ElementRef: a reference to one element of a parsed page
//   - CrawlResult: the ordered, immutable outcome of a crawl
//   - MatchRecord and SelectedMatch: derived search results
//
// Models live in their own package because crawler, cache, search, session
// and report all need them, and keeping them here avoids import cycles.
package model
