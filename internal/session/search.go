package session

import (
	"context"
	"fmt"

	"github.com/nao1215/cssfinder/internal/crawler"
	"github.com/nao1215/cssfinder/internal/database"
	"github.com/nao1215/cssfinder/internal/model"
	"github.com/nao1215/cssfinder/internal/search"
)

// SearchOutcome is the result of Search.
type SearchOutcome struct {
	Result  *model.CrawlResult
	Cached  bool
	Query   model.Query
	Records []model.MatchRecord
	Total   int
}

// Search crawls (or reuses a cached crawl) and runs one query.
// The query is validated before anything else.
func (s *Session) Search(ctx context.Context, req SearchRequest, progress crawler.ProgressFunc) (*SearchOutcome, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	crawled, err := s.Crawl(ctx, req.CrawlRequest, progress)
	if err != nil {
		return nil, err
	}

	records, err := search.Find(crawled.Result, req.Query)
	if err != nil {
		return nil, err
	}
	out := &SearchOutcome{
		Result:  crawled.Result,
		Cached:  crawled.Cached,
		Query:   req.Query,
		Records: records,
		Total:   search.Total(records),
	}
	s.metrics.SearchDone(string(req.Query.Kind), out.Total)
	s.record(ctx, crawled, req.Query, records)
	return out, nil
}

// BatchOutcome is the result of SearchAll.
type BatchOutcome struct {
	Result  *model.CrawlResult
	Cached  bool
	Results []search.QueryResult
}

// SearchAll crawls once and runs every query against the result.
func (s *Session) SearchAll(ctx context.Context, req CrawlRequest, queries []model.Query, progress crawler.ProgressFunc) (*BatchOutcome, error) {
	if len(queries) == 0 {
		return nil, ErrNoQueries
	}
	for _, q := range queries {
		if err := ValidateQuery(q); err != nil {
			return nil, err
		}
	}
	crawled, err := s.Crawl(ctx, req, progress)
	if err != nil {
		return nil, err
	}

	results, err := search.FindAll(ctx, crawled.Result, queries,
		search.WithConcurrency(s.cfg.Concurrency),
		search.WithBatchLogger(s.logger),
	)
	if err != nil {
		return nil, err
	}
	for _, qr := range results {
		s.metrics.SearchDone(string(qr.Query.Kind), qr.Total)
		s.record(ctx, crawled, qr.Query, qr.Records)
	}
	return &BatchOutcome{Result: crawled.Result, Cached: crawled.Cached, Results: results}, nil
}

// record stores a search in the history database when one is configured.
// Failures are logged and never fail the search.
func (s *Session) record(ctx context.Context, crawled *CrawlOutcome, q model.Query, records []model.MatchRecord) {
	if s.history == nil {
		return
	}
	rec := database.NewSearchRecord(crawled.Result, q, records, crawled.Cached)
	if _, err := s.history.InsertSearch(ctx, rec); err != nil {
		s.logger.Warn("failed to record search", "error", err)
		return
	}
	if crawled.Cached {
		return
	}
	changed, err := s.history.ChangedPages(ctx, crawled.Result.Pages())
	if err != nil {
		s.logger.Warn("failed to compare page snapshots", "error", err)
	} else if len(changed) > 0 {
		s.logger.Info("pages changed since last crawl", "count", len(changed), "urls", changed)
	}
	if err := s.history.UpsertPages(ctx, crawled.Result.Pages()); err != nil {
		s.logger.Warn("failed to store page snapshots", "error", err)
	}
}

// History lists recorded searches, newest first.
func (s *Session) History(ctx context.Context, limit int) ([]database.SearchRecord, error) {
	if s.history == nil {
		return nil, fmt.Errorf("search history is disabled")
	}
	return s.history.ListSearches(ctx, limit)
}
