package session

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/nao1215/cssfinder/internal/config"
	"github.com/nao1215/cssfinder/internal/crawler"
	"github.com/nao1215/cssfinder/internal/database"
	"github.com/nao1215/cssfinder/internal/model"
	"github.com/nao1215/cssfinder/internal/search"
)

// fakeFetcher serves pages from memory and counts requests.
type fakeFetcher struct {
	mu    sync.Mutex
	pages map[string]string
	calls int
}

func (f *fakeFetcher) Fetch(_ context.Context, rawURL string) (*crawler.FetchResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	body, ok := f.pages[rawURL]
	if !ok {
		return nil, &crawler.FetchError{URL: rawURL, Kind: model.FailureStatus, StatusCode: 404}
	}
	return &crawler.FetchResult{URL: rawURL, StatusCode: 200, ContentType: "text/html", Body: []byte(body)}, nil
}

func (f *fakeFetcher) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func newSite() *fakeFetcher {
	return &fakeFetcher{pages: map[string]string{
		"http://site.test/": `<html><head><title>Home</title></head><body>
			<div class="card" id="intro">Welcome</div>
			<a href="/about">About</a>
			<a href="/missing">Missing</a>
			<a href="http://other.test/">Elsewhere</a>
		</body></html>`,
		"http://site.test/about": `<html><head></head><body>
			<p class="card">one</p>
			<section class="card wide">two</section>
			<p class="card">three</p>
		</body></html>`,
	}}
}

func newTestSession(t *testing.T, f crawler.PageFetcher, opts ...Option) *Session {
	t.Helper()
	cfg := config.NewConfig()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s, err := New(cfg, append([]Option{WithFetcher(f), WithLogger(logger)}, opts...)...)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func classSearch(value string) SearchRequest {
	return SearchRequest{
		CrawlRequest: CrawlRequest{StartURL: "http://site.test/", PageLimit: 10, SameDomainOnly: true},
		Query:        model.Query{Kind: model.SearchClass, Value: value},
	}
}

func TestValidation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		req  SearchRequest
		want error
	}{
		{
			name: "missing search value",
			req:  SearchRequest{CrawlRequest: CrawlRequest{StartURL: "http://site.test/", PageLimit: 1}, Query: model.Query{Kind: model.SearchClass, Value: "  "}},
			want: ErrMissingSearchValue,
		},
		{
			name: "unknown kind",
			req:  SearchRequest{CrawlRequest: CrawlRequest{StartURL: "http://site.test/", PageLimit: 1}, Query: model.Query{Kind: "tag", Value: "div"}},
			want: ErrInvalidSearchKind,
		},
		{
			name: "query is checked before url",
			req:  SearchRequest{Query: model.Query{Kind: model.SearchClass}},
			want: ErrMissingSearchValue,
		},
		{
			name: "missing url",
			req:  SearchRequest{CrawlRequest: CrawlRequest{PageLimit: 1}, Query: model.Query{Kind: model.SearchClass, Value: "card"}},
			want: ErrMissingURL,
		},
		{
			name: "unsupported scheme",
			req:  SearchRequest{CrawlRequest: CrawlRequest{StartURL: "ftp://site.test/", PageLimit: 1}, Query: model.Query{Kind: model.SearchID, Value: "x"}},
			want: ErrUnsupportedURL,
		},
		{
			name: "relative url",
			req:  SearchRequest{CrawlRequest: CrawlRequest{StartURL: "site.test/page", PageLimit: 1}, Query: model.Query{Kind: model.SearchID, Value: "x"}},
			want: ErrUnsupportedURL,
		},
		{
			name: "zero page limit",
			req:  SearchRequest{CrawlRequest: CrawlRequest{StartURL: "http://site.test/"}, Query: model.Query{Kind: model.SearchID, Value: "x"}},
			want: ErrInvalidPageLimit,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			f := newSite()
			s := newTestSession(t, f)

			_, err := s.Search(context.Background(), tt.req, nil)
			if !errors.Is(err, tt.want) {
				t.Errorf("Search() error = %v, want %v", err, tt.want)
			}
			_, err = s.Preview(context.Background(), PreviewRequest{SearchRequest: tt.req}, nil)
			if !errors.Is(err, tt.want) {
				t.Errorf("Preview() error = %v, want %v", err, tt.want)
			}
			if f.count() != 0 {
				t.Errorf("invalid input caused %d fetches", f.count())
			}
			if s.CacheLen() != 0 {
				t.Error("invalid input should not touch the cache")
			}
		})
	}
}

func TestSearch(t *testing.T) {
	t.Parallel()

	s := newTestSession(t, newSite())

	out, err := s.Search(context.Background(), classSearch("card"), nil)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if out.Cached {
		t.Error("first search should not be cached")
	}
	if out.Result.Len() != 2 {
		t.Errorf("expected 2 pages, got %d", out.Result.Len())
	}
	if len(out.Result.Failures()) != 1 {
		t.Errorf("expected the missing page to be recorded as a failure, got %v", out.Result.Failures())
	}
	if out.Total != 4 || len(out.Records) != 2 {
		t.Fatalf("expected 4 matches on 2 pages, got %d on %d", out.Total, len(out.Records))
	}
	if out.Records[0].PageURL != "http://site.test/" || out.Records[1].Count != 3 {
		t.Errorf("unexpected records %+v", out.Records)
	}
}

func TestSearch_UsesCache(t *testing.T) {
	t.Parallel()

	f := newSite()
	s := newTestSession(t, f)
	ctx := context.Background()

	first, err := s.Search(ctx, classSearch("card"), nil)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	fetches := f.count()

	var progressCalls int
	second, err := s.Search(ctx, classSearch("wide"), func(crawler.Progress) { progressCalls++ })
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if !second.Cached {
		t.Error("second search with the same key should be cached")
	}
	if f.count() != fetches {
		t.Errorf("cached search fetched %d more pages", f.count()-fetches)
	}
	if progressCalls != 0 {
		t.Error("progress should not be reported for cached crawls")
	}
	if second.Result != first.Result {
		t.Error("cached search should reuse the same crawl result")
	}
	if second.Total != 1 {
		t.Errorf("expected 1 wide card, got %d", second.Total)
	}

	// A different page limit is a different key.
	other := classSearch("card")
	other.PageLimit = 1
	third, err := s.Search(ctx, other, nil)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if third.Cached {
		t.Error("a new key should crawl again")
	}
	if s.CacheLen() != 2 {
		t.Errorf("expected 2 cached crawls, got %d", s.CacheLen())
	}

	s.ClearCache()
	if s.CacheLen() != 0 || len(s.CacheKeys()) != 0 {
		t.Error("ClearCache should empty the cache")
	}
	again, err := s.Search(ctx, classSearch("card"), nil)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if again.Cached {
		t.Error("search after clearing should crawl again")
	}
}

func TestSearch_Progress(t *testing.T) {
	t.Parallel()

	s := newTestSession(t, newSite())

	var events []crawler.Progress
	_, err := s.Search(context.Background(), classSearch("card"), func(p crawler.Progress) {
		events = append(events, p)
	})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("expected 3 progress events, got %d", len(events))
	}
	if events[0].Visited != 1 || events[0].Limit != 10 || events[0].URL != "http://site.test/" {
		t.Errorf("unexpected first event %+v", events[0])
	}
	if events[2].Err == nil {
		t.Error("the missing page should report an error")
	}
}

func TestSearch_Cancelled(t *testing.T) {
	t.Parallel()

	s := newTestSession(t, newSite())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := s.Search(ctx, classSearch("card"), nil); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if s.CacheLen() != 0 {
		t.Error("a cancelled crawl must not be cached")
	}
}

func TestSearchAll(t *testing.T) {
	t.Parallel()

	f := newSite()
	s := newTestSession(t, f)

	queries := []model.Query{
		{Kind: model.SearchClass, Value: "card"},
		{Kind: model.SearchID, Value: "intro"},
		{Kind: model.SearchClass, Value: "none"},
	}
	out, err := s.SearchAll(context.Background(), classSearch("").CrawlRequest, queries, nil)
	if err != nil {
		t.Fatalf("SearchAll failed: %v", err)
	}
	if len(out.Results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(out.Results))
	}
	totals := []int{out.Results[0].Total, out.Results[1].Total, out.Results[2].Total}
	if totals[0] != 4 || totals[1] != 1 || totals[2] != 0 {
		t.Errorf("unexpected totals %v", totals)
	}

	t.Run("rejects empty and invalid queries", func(t *testing.T) {
		t.Parallel()

		if _, err := s.SearchAll(context.Background(), classSearch("").CrawlRequest, nil, nil); !errors.Is(err, ErrNoQueries) {
			t.Errorf("expected ErrNoQueries, got %v", err)
		}
		bad := []model.Query{{Kind: model.SearchClass, Value: "ok"}, {Kind: model.SearchID}}
		if _, err := s.SearchAll(context.Background(), classSearch("").CrawlRequest, bad, nil); !errors.Is(err, ErrMissingSearchValue) {
			t.Errorf("expected ErrMissingSearchValue, got %v", err)
		}
	})
}

func TestPreview(t *testing.T) {
	t.Parallel()

	s := newTestSession(t, newSite())
	ctx := context.Background()

	t.Run("defaults to the first page with a match", func(t *testing.T) {
		t.Parallel()

		out, err := s.Preview(ctx, PreviewRequest{SearchRequest: classSearch("card")}, nil)
		if err != nil {
			t.Fatalf("Preview failed: %v", err)
		}
		if out.Selection.PageURL != "http://site.test/" || out.Selection.Tag != "div" {
			t.Errorf("unexpected selection %+v", out.Selection)
		}
		if !out.Highlighted.Found || out.Warning != "" {
			t.Errorf("element should be found, warning %q", out.Warning)
		}
		if !strings.Contains(out.Highlighted.HTML, search.MarkerClass) {
			t.Error("highlighted page lacks the marker class")
		}
	})

	t.Run("third instance on a page with mixed signatures", func(t *testing.T) {
		t.Parallel()

		req := PreviewRequest{SearchRequest: classSearch("card"), PageURL: "http://site.test/about#top", MatchIndex: 2}
		out, err := s.Preview(ctx, req, nil)
		if err != nil {
			t.Fatalf("Preview failed: %v", err)
		}
		if out.Selection.Instance() != 3 || out.Selection.Tag != "p" {
			t.Errorf("unexpected selection %+v", out.Selection)
		}
		if out.Selection.SignatureIndex != 1 {
			t.Errorf("SignatureIndex = %d, want 1", out.Selection.SignatureIndex)
		}
		if !strings.Contains(out.Highlighted.HTML, `<p class="card highlight-match">three</p>`) {
			t.Error("the third card should be the highlighted element")
		}
	})

	t.Run("index out of range", func(t *testing.T) {
		t.Parallel()

		req := PreviewRequest{SearchRequest: classSearch("card"), PageURL: "http://site.test/about", MatchIndex: 3}
		if _, err := s.Preview(ctx, req, nil); !errors.Is(err, search.ErrMatchIndexOutOfRange) {
			t.Errorf("expected ErrMatchIndexOutOfRange, got %v", err)
		}
	})

	t.Run("unknown page", func(t *testing.T) {
		t.Parallel()

		req := PreviewRequest{SearchRequest: classSearch("card"), PageURL: "http://site.test/nope"}
		if _, err := s.Preview(ctx, req, nil); !errors.Is(err, search.ErrPageNotFound) {
			t.Errorf("expected ErrPageNotFound, got %v", err)
		}
	})

	t.Run("no matches", func(t *testing.T) {
		t.Parallel()

		if _, err := s.Preview(ctx, PreviewRequest{SearchRequest: classSearch("absent")}, nil); !errors.Is(err, ErrNoMatches) {
			t.Errorf("expected ErrNoMatches, got %v", err)
		}
	})
}

func TestSitePatterns(t *testing.T) {
	t.Parallel()

	f := newSite()
	cfg := config.NewConfig()
	cfg.SiteConfigs = &config.File{
		Sites: map[string]config.SiteConfig{
			"site.test": {IgnorePatterns: []string{"/missing"}},
		},
	}
	s, err := New(cfg, WithFetcher(f), WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	out, err := s.Search(context.Background(), classSearch("card"), nil)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(out.Result.Failures()) != 0 {
		t.Errorf("ignored page should not be fetched, failures %v", out.Result.Failures())
	}
	if f.count() != 2 {
		t.Errorf("expected 2 fetches, got %d", f.count())
	}
}

func TestHistory(t *testing.T) {
	t.Parallel()

	db, err := database.Open(t.TempDir(), database.DefaultOptions())
	if err != nil {
		t.Fatalf("failed to open history: %v", err)
	}
	s := newTestSession(t, newSite(), WithHistory(db))
	ctx := context.Background()

	if _, err := s.Search(ctx, classSearch("card"), nil); err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if _, err := s.Search(ctx, classSearch("wide"), nil); err != nil {
		t.Fatalf("Search failed: %v", err)
	}

	list, err := s.History(ctx, 10)
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 recorded searches, got %d", len(list))
	}
	if list[0].Query.Value != "wide" || !list[0].Cached {
		t.Errorf("newest record should be the cached wide search, got %+v", list[0])
	}
	if list[1].TotalMatches != 4 || list[1].PagesCrawled != 2 {
		t.Errorf("unexpected first record %+v", list[1])
	}

	snap, err := db.GetPage(ctx, "http://site.test/about")
	if err != nil || snap == nil {
		t.Fatalf("page snapshot not stored: %v", err)
	}
}

func TestHistory_Disabled(t *testing.T) {
	t.Parallel()

	s := newTestSession(t, newSite())
	if _, err := s.History(context.Background(), 1); err == nil {
		t.Error("expected an error without a history database")
	}
}
