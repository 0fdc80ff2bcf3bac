package crawler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"path"
	"slices"
	"strings"
	"time"

	"github.com/gobwas/glob"

	"github.com/nao1215/cssfinder/internal/model"
)

// DefaultMaxPages is the page limit used when none is configured.
const DefaultMaxPages = 20

// PageFetcher fetches one URL. *Fetcher is the production implementation.
type PageFetcher interface {
	Fetch(ctx context.Context, rawURL string) (*FetchResult, error)
}

// Progress is reported after every URL the crawl accepts from its queue.
type Progress struct {
	// Visited is the number of URLs accepted so far, including this one.
	Visited int

	// Limit is the page limit of the crawl.
	Limit int

	// URL is the canonical URL that was just processed.
	URL string

	// Queued is the queue length after processing URL.
	Queued int

	// Pages is the number of pages fetched successfully so far.
	Pages int

	// Bytes is the size of the fetched body, zero on failure.
	Bytes int

	// Err is the fetch error for URL, if any.
	Err error
}

// ProgressFunc receives crawl progress. It is called synchronously from the
// crawl loop.
type ProgressFunc func(Progress)

// Spider crawls a site breadth-first, one request at a time.
//
// Spider holds no per-crawl state, so one instance can run several crawls
// one after another.
type Spider struct {
	// fetcher performs the HTTP requests.
	fetcher PageFetcher

	// maxPages limits the number of URLs accepted from the queue.
	// A URL that fails to fetch still counts.
	maxPages int

	// sameDomainOnly restricts expansion to links whose scheme and host
	// equal the start URL's.
	sameDomainOnly bool

	// ignorePatterns are URL path globs never enqueued.
	ignorePatterns []string

	// followPatterns are URL path globs; when set, only matching links are
	// enqueued.
	followPatterns []string

	// progress is called after each accepted URL.
	progress ProgressFunc

	// logger receives fetch warnings.
	logger *slog.Logger
}

// SpiderOption configures a Spider.
type SpiderOption func(*Spider)

// WithMaxPages sets the maximum number of URLs to visit.
func WithMaxPages(maxPages int) SpiderOption {
	return func(s *Spider) {
		s.maxPages = maxPages
	}
}

// WithSameDomainOnly enables or disables same-domain scoping.
func WithSameDomainOnly(enabled bool) SpiderOption {
	return func(s *Spider) {
		s.sameDomainOnly = enabled
	}
}

// WithIgnorePatterns sets URL path patterns to skip during crawling.
// Patterns use glob syntax (e.g., "/admin/*", "*.pdf", "/logout*").
// A pattern without a slash is matched against the last path segment.
func WithIgnorePatterns(patterns []string) SpiderOption {
	return func(s *Spider) {
		s.ignorePatterns = patterns
	}
}

// WithFollowPatterns sets URL path patterns to follow during crawling.
// If set, only links matching at least one pattern are enqueued.
// The start URL is never filtered.
func WithFollowPatterns(patterns []string) SpiderOption {
	return func(s *Spider) {
		s.followPatterns = patterns
	}
}

// WithProgress registers a progress callback.
func WithProgress(fn ProgressFunc) SpiderOption {
	return func(s *Spider) {
		s.progress = fn
	}
}

// WithSpiderLogger sets the logger used for fetch warnings.
func WithSpiderLogger(logger *slog.Logger) SpiderOption {
	return func(s *Spider) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewSpider creates a Spider that fetches pages with fetcher.
func NewSpider(fetcher PageFetcher, opts ...SpiderOption) *Spider {
	s := &Spider{
		fetcher:        fetcher,
		maxPages:       DefaultMaxPages,
		sameDomainOnly: true,
		logger:         slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Key returns the cache key a crawl of startURL with this spider produces.
func (s *Spider) Key(startURL string) model.CrawlKey {
	return model.CrawlKey{
		StartURL:       startURL,
		PageLimit:      s.maxPages,
		SameDomainOnly: s.sameDomainOnly,
	}
}

// Crawl visits at most maxPages URLs breadth-first starting at startURL.
//
// Per-URL fetch failures never abort the crawl; they are recorded on the
// result. An error is returned only for invalid input, which is detected
// before any request, or when ctx is cancelled, in which case the partial
// result is returned alongside ctx.Err().
func (s *Spider) Crawl(ctx context.Context, startURL string) (*model.CrawlResult, error) {
	if s.maxPages < 1 {
		return nil, ErrInvalidPageLimit
	}
	start := Normalize(startURL)
	if !IsFetchable(start) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStartURL, startURL)
	}
	origin, err := OriginOf(start)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidStartURL, err)
	}
	ignore, err := compilePatterns(s.ignorePatterns)
	if err != nil {
		return nil, err
	}
	follow, err := compilePatterns(s.followPatterns)
	if err != nil {
		return nil, err
	}

	key := s.Key(startURL)
	startedAt := time.Now()
	visited := make(map[string]struct{}, s.maxPages)
	queue := []string{start}
	var pages []*model.PageRecord
	var failures []model.FetchFailure
	// pending holds links found on the page that reached the limit. They
	// are never queued but are reported as part of the frontier.
	var pending []string

	finish := func() *model.CrawlResult {
		frontier := append(slices.Clone(queue), pending...)
		return model.NewCrawlResult(key, pages, failures, frontier, model.CrawlStats{
			Visited:   len(visited),
			StartedAt: startedAt,
			Duration:  time.Since(startedAt),
		})
	}

	for len(queue) > 0 && len(visited) < s.maxPages {
		if err := ctx.Err(); err != nil {
			return finish(), err
		}

		current := Normalize(queue[0])
		queue = queue[1:]
		if _, seen := visited[current]; seen {
			continue
		}
		visited[current] = struct{}{}

		page, err := s.visit(ctx, current)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return finish(), ctxErr
			}
			var fetchErr *FetchError
			if !errors.As(err, &fetchErr) {
				fetchErr = &FetchError{URL: current, Kind: model.FailureOther, Err: err}
			}
			failures = append(failures, fetchErr.Failure())
			s.logger.Warn("failed to fetch page",
				"url", current,
				"kind", string(fetchErr.Kind),
				"error", err,
			)
			s.emit(Progress{
				Visited: len(visited),
				Limit:   s.maxPages,
				URL:     current,
				Queued:  len(queue),
				Pages:   len(pages),
				Err:     err,
			})
			continue
		}
		pages = append(pages, page)

		for _, href := range page.Links {
			link, err := Resolve(current, href)
			if err != nil {
				s.logger.Debug("skipping unparsable link", "page", current, "href", href, "error", err)
				continue
			}
			if s.sameDomainOnly && !IsSameDomain(link, origin) {
				continue
			}
			if !IsFetchable(link) {
				continue
			}
			if _, seen := visited[link]; seen {
				continue
			}
			if !allowed(link, ignore, follow) {
				continue
			}
			if len(visited) < s.maxPages {
				queue = append(queue, link)
			} else {
				pending = append(pending, link)
			}
		}

		s.emit(Progress{
			Visited: len(visited),
			Limit:   s.maxPages,
			URL:     current,
			Queued:  len(queue),
			Pages:   len(pages),
			Bytes:   len(page.Raw),
		})
	}

	return finish(), nil
}

// visit fetches and indexes one page.
func (s *Spider) visit(ctx context.Context, pageURL string) (*model.PageRecord, error) {
	res, err := s.fetcher.Fetch(ctx, pageURL)
	if err != nil {
		return nil, err
	}
	doc, err := Parse(res.Body)
	if err != nil {
		return nil, &FetchError{URL: pageURL, Kind: model.FailureOther, Err: err}
	}
	page := &model.PageRecord{
		URL:         pageURL,
		StatusCode:  res.StatusCode,
		ContentType: res.ContentType,
		Title:       Title(doc),
		Raw:         res.Body,
		Document:    doc,
		Elements:    ExtractClassedElements(doc),
		Links:       ExtractLinks(doc),
		Truncated:   res.Truncated,
	}
	page.ComputeHash()
	if res.Truncated {
		s.logger.Warn("page body exceeded the size limit and was truncated; elements past the limit are missing",
			"url", pageURL,
			"bytes", len(res.Body),
		)
	}
	return page, nil
}

func (s *Spider) emit(p Progress) {
	if s.progress != nil {
		s.progress(p)
	}
}

// pathPattern is a compiled ignore/follow pattern.
type pathPattern struct {
	glob glob.Glob

	// basename is true for patterns without a slash, which are matched
	// against the last path segment.
	basename bool
}

func compilePatterns(patterns []string) ([]pathPattern, error) {
	compiled := make([]pathPattern, 0, len(patterns))
	for _, p := range patterns {
		g, err := glob.Compile(p, '/')
		if err != nil {
			return nil, fmt.Errorf("%w %q: %v", ErrInvalidPattern, p, err)
		}
		compiled = append(compiled, pathPattern{glob: g, basename: !strings.Contains(p, "/")})
	}
	return compiled, nil
}

func (p pathPattern) match(urlPath string) bool {
	if p.basename {
		return p.glob.Match(path.Base(urlPath))
	}
	return p.glob.Match(urlPath)
}

// allowed applies ignore patterns first, then follow patterns if any.
func allowed(link string, ignore, follow []pathPattern) bool {
	if len(ignore) == 0 && len(follow) == 0 {
		return true
	}
	u, err := url.Parse(link)
	if err != nil {
		return false
	}
	p := u.Path
	if p == "" {
		p = "/"
	}
	for _, pat := range ignore {
		if pat.match(p) {
			return false
		}
	}
	if len(follow) == 0 {
		return true
	}
	for _, pat := range follow {
		if pat.match(p) {
			return true
		}
	}
	return false
}
