package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/nao1215/cssfinder/internal/cache"
	"github.com/nao1215/cssfinder/internal/config"
	"github.com/nao1215/cssfinder/internal/crawler"
	"github.com/nao1215/cssfinder/internal/database"
	"github.com/nao1215/cssfinder/internal/httpclient"
	"github.com/nao1215/cssfinder/internal/metrics"
	"github.com/nao1215/cssfinder/internal/model"
)

// Session holds the crawl cache and everything needed to fill it.
// It is safe for concurrent use.
type Session struct {
	cfg     *config.Config
	cache   *cache.Cache
	fetcher crawler.PageFetcher
	metrics *metrics.Metrics
	history *database.HistoryDB
	logger  *slog.Logger
}

// Option configures a Session.
type Option func(*Session)

// WithFetcher replaces the HTTP fetcher.
func WithFetcher(f crawler.PageFetcher) Option {
	return func(s *Session) {
		s.fetcher = f
	}
}

// WithMetrics sets the metrics the session reports to.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Session) {
		s.metrics = m
	}
}

// WithHistory enables recording searches into h.
func WithHistory(h *database.HistoryDB) Option {
	return func(s *Session) {
		s.history = h
	}
}

// WithLogger sets the session logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Session) {
		if l != nil {
			s.logger = l
		}
	}
}

// New creates a Session from cfg. Unless WithFetcher is given, requests go
// through an HTTP client built from the proxy, timeout, user agent and body
// size settings of cfg.
func New(cfg *config.Config, opts ...Option) (*Session, error) {
	if cfg == nil {
		cfg = config.NewConfig()
	}
	s := &Session{
		cfg:    cfg,
		cache:  cache.New(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.metrics == nil {
		s.metrics = metrics.New()
	}
	if s.fetcher == nil {
		client, err := httpclient.New(httpclient.Options{ProxyAddress: cfg.ProxyAddress})
		if err != nil {
			return nil, fmt.Errorf("failed to create HTTP client: %w", err)
		}
		s.fetcher = crawler.NewFetcher(client,
			crawler.WithFetchTimeout(cfg.Timeout),
			crawler.WithUserAgent(cfg.UserAgent),
			crawler.WithMaxBodySize(cfg.MaxBodySize),
		)
	}
	return s, nil
}

// Metrics returns the metrics the session reports to.
func (s *Session) Metrics() *metrics.Metrics {
	return s.metrics
}

// Close releases the history database, if any.
func (s *Session) Close() error {
	if s.history == nil {
		return nil
	}
	return s.history.Close()
}

// CrawlOutcome is the result of Crawl.
type CrawlOutcome struct {
	Result *model.CrawlResult

	// Cached is true when Result came from the cache.
	Cached bool
}

// Crawl returns the crawl result for req, crawling only on a cache miss.
// progress may be nil; it is not called for cached results.
//
// When ctx is cancelled mid-crawl, the partial result is returned together
// with the context error and nothing is cached.
func (s *Session) Crawl(ctx context.Context, req CrawlRequest, progress crawler.ProgressFunc) (*CrawlOutcome, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	key := req.Key()

	result, cached, err := s.cache.GetOrCrawl(ctx, key, func(ctx context.Context) (*model.CrawlResult, error) {
		return s.crawl(ctx, req, progress)
	})
	s.metrics.CacheLookup(cached)
	if err != nil {
		if result != nil {
			return &CrawlOutcome{Result: result}, err
		}
		return nil, err
	}

	s.logger.Debug("crawl ready",
		"crawl_key", key.String(),
		"cached", cached,
		"pages", result.Len(),
	)
	return &CrawlOutcome{Result: result, Cached: cached}, nil
}

// crawl runs one spider over req.
func (s *Session) crawl(ctx context.Context, req CrawlRequest, progress crawler.ProgressFunc) (*model.CrawlResult, error) {
	ignore, follow := s.patternsFor(req.StartURL)
	spider := crawler.NewSpider(s.fetcher,
		crawler.WithMaxPages(req.PageLimit),
		crawler.WithSameDomainOnly(req.SameDomainOnly),
		crawler.WithIgnorePatterns(ignore),
		crawler.WithFollowPatterns(follow),
		crawler.WithSpiderLogger(s.logger),
		crawler.WithProgress(func(p crawler.Progress) {
			s.observe(p)
			if progress != nil {
				progress(p)
			}
		}),
	)

	start := time.Now()
	result, err := spider.Crawl(ctx, req.Key().StartURL)
	s.metrics.CrawlFinished(time.Since(start))
	if err != nil {
		return result, err
	}
	s.logger.Info("crawl finished",
		"url", req.StartURL,
		"pages", result.Len(),
		"failures", len(result.Failures()),
		"elapsed", time.Since(start),
	)
	return result, nil
}

// observe feeds crawl progress into the metrics.
func (s *Session) observe(p crawler.Progress) {
	if p.Err == nil {
		s.metrics.PageFetched(p.Bytes)
		return
	}
	kind := model.FailureOther
	var fetchErr *crawler.FetchError
	if errors.As(p.Err, &fetchErr) {
		kind = fetchErr.Kind
	}
	s.metrics.FetchFailed(string(kind))
}

// patternsFor returns the ignore and follow patterns for the start URL's
// host: site-specific patterns from the configuration file win over the
// global ones.
func (s *Session) patternsFor(startURL string) (ignore, follow []string) {
	ignore, follow = s.cfg.IgnorePatterns, s.cfg.FollowPatterns
	if s.cfg.SiteConfigs == nil {
		return ignore, follow
	}
	u, err := url.Parse(startURL)
	if err != nil {
		return ignore, follow
	}
	site := s.cfg.SiteConfigs.GetSiteConfig(u.Host)
	if len(site.IgnorePatterns) > 0 {
		ignore = site.IgnorePatterns
	}
	if len(site.FollowPatterns) > 0 {
		follow = site.FollowPatterns
	}
	return ignore, follow
}

// ClearCache drops every cached crawl.
func (s *Session) ClearCache() {
	s.cache.Clear()
	s.logger.Info("crawl cache cleared")
}

// CacheLen returns the number of cached crawls.
func (s *Session) CacheLen() int {
	return s.cache.Len()
}

// CacheKeys returns the keys of the cached crawls.
func (s *Session) CacheKeys() []model.CrawlKey {
	return s.cache.Keys()
}
