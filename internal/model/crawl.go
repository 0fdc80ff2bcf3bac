package model

import (
	"fmt"
	"slices"
	"time"
)

// CrawlKey identifies a crawl. Two crawls with equal keys are interchangeable.
// The struct is comparable and is used directly as a map key.
type CrawlKey struct {
	// StartURL is the URL the crawl starts from, exactly as given.
	StartURL string `json:"start_url"`

	// PageLimit is the maximum number of URLs the crawl may visit.
	PageLimit int `json:"page_limit"`

	// SameDomainOnly restricts link expansion to the start URL's scheme+host.
	SameDomainOnly bool `json:"same_domain_only"`
}

// String renders the key as "<url>_<limit>_<scope>".
func (k CrawlKey) String() string {
	return fmt.Sprintf("%s_%d_%t", k.StartURL, k.PageLimit, k.SameDomainOnly)
}

// FailureKind classifies a fetch failure.
type FailureKind string

const (
	// FailureTimeout means the request did not complete within its timeout.
	FailureTimeout FailureKind = "timeout"

	// FailureConnection means the connection could not be established
	// (DNS, refused, reset, TLS).
	FailureConnection FailureKind = "connection"

	// FailureStatus means the server answered with a non-2xx status.
	FailureStatus FailureKind = "status"

	// FailureOther covers everything else (bad URL, body read errors).
	FailureOther FailureKind = "other"
)

// FetchFailure records a URL that could not be fetched during a crawl.
// Failures are non-fatal: the URL consumed a visited slot but produced no
// PageRecord and no links.
type FetchFailure struct {
	URL        string      `json:"url"`
	Kind       FailureKind `json:"kind"`
	StatusCode int         `json:"status_code,omitempty"`
	Message    string      `json:"message"`
}

// CrawlResult is the ordered mapping from canonical URL to PageRecord that a
// crawl produces, plus the bookkeeping needed to report on it.
//
// A CrawlResult is never mutated after NewCrawlResult returns. Readers may
// share it freely across goroutines.
type CrawlResult struct {
	key       CrawlKey
	pages     []*PageRecord
	byURL     map[string]*PageRecord
	failures  []FetchFailure
	frontier  []string
	visited   int
	startedAt time.Time
	duration  time.Duration
}

// CrawlStats carries timing and counters that are not part of the mapping.
type CrawlStats struct {
	// Visited is the number of URLs accepted from the queue.
	Visited int

	// StartedAt is when the crawl began.
	StartedAt time.Time

	// Duration is the wall-clock time of the crawl.
	Duration time.Duration
}

// NewCrawlResult builds a CrawlResult from pages in insertion order.
// A page whose URL is already present is dropped so that no URL appears
// twice; nil pages are ignored.
func NewCrawlResult(key CrawlKey, pages []*PageRecord, failures []FetchFailure, frontier []string, stats CrawlStats) *CrawlResult {
	r := &CrawlResult{
		key:       key,
		pages:     make([]*PageRecord, 0, len(pages)),
		byURL:     make(map[string]*PageRecord, len(pages)),
		failures:  slices.Clone(failures),
		frontier:  slices.Clone(frontier),
		visited:   stats.Visited,
		startedAt: stats.StartedAt,
		duration:  stats.Duration,
	}
	for _, p := range pages {
		if p == nil {
			continue
		}
		if _, dup := r.byURL[p.URL]; dup {
			continue
		}
		r.byURL[p.URL] = p
		r.pages = append(r.pages, p)
	}
	return r
}

// Key returns the key the crawl was run with.
func (r *CrawlResult) Key() CrawlKey {
	return r.key
}

// Len returns the number of pages.
func (r *CrawlResult) Len() int {
	return len(r.pages)
}

// Pages returns the pages in insertion order.
// The returned slice is a copy; the records themselves are shared.
func (r *CrawlResult) Pages() []*PageRecord {
	return slices.Clone(r.pages)
}

// Page looks up a page by canonical URL.
func (r *CrawlResult) Page(url string) (*PageRecord, bool) {
	p, ok := r.byURL[url]
	return p, ok
}

// URLs returns page URLs in insertion order.
func (r *CrawlResult) URLs() []string {
	urls := make([]string, len(r.pages))
	for i, p := range r.pages {
		urls[i] = p.URL
	}
	return urls
}

// SortedURLs returns page URLs in lexical order.
func (r *CrawlResult) SortedURLs() []string {
	urls := r.URLs()
	slices.Sort(urls)
	return urls
}

// Failures returns the per-URL fetch failures in the order they happened.
func (r *CrawlResult) Failures() []FetchFailure {
	return slices.Clone(r.failures)
}

// Frontier returns the URLs still queued when the crawl stopped, followed by
// the eligible links of the page that reached the limit. It may contain
// duplicates and already visited URLs.
func (r *CrawlResult) Frontier() []string {
	return slices.Clone(r.frontier)
}

// Visited returns the number of URLs the crawl accepted, successful or not.
func (r *CrawlResult) Visited() int {
	return r.visited
}

// Stopped reports whether the page limit ended the crawl while URLs were
// still queued.
func (r *CrawlResult) Stopped() bool {
	return r.visited >= r.key.PageLimit && len(r.frontier) > 0
}

// StartedAt returns when the crawl began.
func (r *CrawlResult) StartedAt() time.Time {
	return r.startedAt
}

// Duration returns how long the crawl took.
func (r *CrawlResult) Duration() time.Duration {
	return r.duration
}
