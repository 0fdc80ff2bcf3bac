package search

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nao1215/cssfinder/internal/model"
)

// QueryResult holds the records of one query of a batch.
type QueryResult struct {
	// Query is the query that was run.
	Query model.Query

	// Records are the per-page matches, possibly empty.
	Records []model.MatchRecord

	// Total is the number of matched elements across all pages.
	Total int
}

// batchConfig holds FindAll settings.
type batchConfig struct {
	concurrency int
	logger      *slog.Logger
}

// BatchOption configures FindAll.
type BatchOption func(*batchConfig)

// WithConcurrency sets how many queries run at once.
// Default is 4 if not specified.
func WithConcurrency(n int) BatchOption {
	return func(c *batchConfig) {
		if n > 0 {
			c.concurrency = n
		}
	}
}

// WithBatchLogger sets a custom logger for batch searches.
func WithBatchLogger(logger *slog.Logger) BatchOption {
	return func(c *batchConfig) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// FindAll runs every query against result concurrently and returns the
// results in query order.
//
// The crawl result is only read, so queries share it without locking. An
// invalid query kind fails the whole batch, as does cancelling ctx.
func FindAll(ctx context.Context, result *model.CrawlResult, queries []model.Query, opts ...BatchOption) ([]QueryResult, error) {
	if result == nil {
		return nil, ErrNoCrawlResult
	}
	cfg := &batchConfig{concurrency: 4, logger: slog.Default()}
	for _, opt := range opts {
		opt(cfg)
	}

	start := time.Now()
	results := make([]QueryResult, len(queries))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.concurrency)

	for i, q := range queries {
		g.Go(func() error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}

			records, err := Find(result, q)
			if err != nil {
				return err
			}
			// Each goroutine writes only its own slot.
			results[i] = QueryResult{Query: q, Records: records, Total: Total(records)}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	cfg.logger.Debug("batch search complete",
		"queries", len(queries),
		"pages", result.Len(),
		"elapsed", time.Since(start),
	)
	return results, nil
}
