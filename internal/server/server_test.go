package server

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/nao1215/cssfinder/internal/config"
	"github.com/nao1215/cssfinder/internal/crawler"
	"github.com/nao1215/cssfinder/internal/session"
)

// newSite serves a two-page site.
func newSite(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, `<html><head><title>Home</title></head><body><div class="card" id="main">Home</div><a href="/list">list</a></body></html>`)
	})
	mux.HandleFunc("/list", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, `<html><head></head><body><p class="card">a</p><p class="card">b</p></body></html>`)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestServer(t *testing.T, site *httptest.Server) *Server {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	sess, err := session.New(config.NewConfig(),
		session.WithFetcher(crawler.NewFetcher(site.Client())),
		session.WithLogger(logger),
	)
	if err != nil {
		t.Fatalf("session.New failed: %v", err)
	}
	return NewServer(sess, WithVersion("test"), WithDefaults(5, true), WithLogger(logger))
}

func do(t *testing.T, h http.Handler, method, target string, body io.Reader) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, body)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, newSite(t))
	rec := do(t, srv, http.MethodGet, "/api/v1/health", nil)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if body["status"] != "ok" || body["version"] != "test" {
		t.Errorf("unexpected body %v", body)
	}
}

func TestCrawl(t *testing.T) {
	t.Parallel()

	site := newSite(t)
	srv := newTestServer(t, site)

	t.Run("crawls and caches", func(t *testing.T) {
		t.Parallel()

		body := fmt.Sprintf(`{"url": %q}`, site.URL+"/")
		var first, second crawlResponse
		rec := do(t, srv, http.MethodPost, "/api/v1/crawl", strings.NewReader(body))
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
		}
		if err := json.NewDecoder(rec.Body).Decode(&first); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		if first.Pages != 2 || first.Crawl.PageLimit != 5 || !first.Crawl.SameDomainOnly {
			t.Errorf("unexpected response %+v", first)
		}

		rec = do(t, srv, http.MethodPost, "/api/v1/crawl", strings.NewReader(body))
		if err := json.NewDecoder(rec.Body).Decode(&second); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		if !second.Cached {
			t.Error("second crawl should come from the cache")
		}
	})

	t.Run("explicit limit", func(t *testing.T) {
		t.Parallel()

		body := fmt.Sprintf(`{"url": %q, "max_pages": 1, "same_domain_only": false}`, site.URL+"/")
		rec := do(t, srv, http.MethodPost, "/api/v1/crawl", strings.NewReader(body))
		var res crawlResponse
		if err := json.NewDecoder(rec.Body).Decode(&res); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		if res.Pages != 1 || !res.Stopped || len(res.Frontier) != 1 || res.Crawl.SameDomainOnly {
			t.Errorf("unexpected response %+v", res)
		}
	})

	t.Run("invalid input", func(t *testing.T) {
		t.Parallel()

		tests := []struct {
			name string
			body string
		}{
			{name: "not json", body: "{"},
			{name: "missing url", body: `{}`},
			{name: "bad scheme", body: `{"url": "ftp://example.com/"}`},
			{name: "zero limit", body: `{"url": "http://example.com/", "max_pages": 0}`},
		}
		for _, tt := range tests {
			rec := do(t, srv, http.MethodPost, "/api/v1/crawl", strings.NewReader(tt.body))
			if rec.Code != http.StatusBadRequest {
				t.Errorf("%s: status = %d, want 400", tt.name, rec.Code)
			}
		}
	})

	t.Run("wrong method", func(t *testing.T) {
		t.Parallel()

		rec := do(t, srv, http.MethodGet, "/api/v1/crawl", nil)
		if rec.Code != http.StatusMethodNotAllowed {
			t.Errorf("status = %d, want 405", rec.Code)
		}
	})
}

func TestSearch(t *testing.T) {
	t.Parallel()

	site := newSite(t)
	srv := newTestServer(t, site)
	base := "/api/v1/search?url=" + site.URL + "/"

	t.Run("json", func(t *testing.T) {
		t.Parallel()

		rec := do(t, srv, http.MethodGet, base+"&class=card&id=main", nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
		}
		var body struct {
			Version  string `json:"version"`
			Searches []struct {
				Total int `json:"total"`
			} `json:"searches"`
			CrawledURLs []string `json:"crawled_urls"`
		}
		if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		if len(body.Searches) != 2 || body.Searches[0].Total != 3 || body.Searches[1].Total != 1 {
			t.Errorf("unexpected searches %+v", body.Searches)
		}
		if body.Version != "test" || len(body.CrawledURLs) != 2 {
			t.Errorf("unexpected body %+v", body)
		}
	})

	t.Run("markdown", func(t *testing.T) {
		t.Parallel()

		rec := do(t, srv, http.MethodGet, base+"&class=card&format=markdown", nil)
		if !strings.HasPrefix(rec.Header().Get("Content-Type"), "text/markdown") {
			t.Errorf("content type = %s", rec.Header().Get("Content-Type"))
		}
		if !strings.Contains(rec.Body.String(), "# CSS Finder Report") {
			t.Error("expected a markdown report")
		}
	})

	t.Run("text", func(t *testing.T) {
		t.Parallel()

		rec := do(t, srv, http.MethodGet, base+"&class=card&format=text", nil)
		if !strings.Contains(rec.Body.String(), "CSS FINDER REPORT") {
			t.Error("expected a text report")
		}
	})

	t.Run("errors", func(t *testing.T) {
		t.Parallel()

		tests := []struct {
			name   string
			target string
			want   int
		}{
			{name: "no query", target: base, want: http.StatusBadRequest},
			{name: "empty class", target: base + "&class=", want: http.StatusBadRequest},
			{name: "missing url", target: "/api/v1/search?class=card", want: http.StatusBadRequest},
			{name: "bad limit", target: base + "&class=card&max_pages=x", want: http.StatusBadRequest},
			{name: "bad format", target: base + "&class=card&format=xml", want: http.StatusBadRequest},
		}
		for _, tt := range tests {
			if rec := do(t, srv, http.MethodGet, tt.target, nil); rec.Code != tt.want {
				t.Errorf("%s: status = %d, want %d", tt.name, rec.Code, tt.want)
			}
		}
	})
}

func TestPreview(t *testing.T) {
	t.Parallel()

	site := newSite(t)
	srv := newTestServer(t, site)
	base := "/api/v1/preview?url=" + site.URL + "/"

	t.Run("highlights the chosen element", func(t *testing.T) {
		t.Parallel()

		rec := do(t, srv, http.MethodGet, base+"&class=card&page="+site.URL+"/list&index=1", nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
		}
		if !strings.HasPrefix(rec.Header().Get("Content-Type"), "text/html") {
			t.Errorf("content type = %s", rec.Header().Get("Content-Type"))
		}
		if !strings.Contains(rec.Body.String(), `<p class="card highlight-match">b</p>`) {
			t.Errorf("second card not highlighted: %s", rec.Body.String())
		}
		if rec.Header().Get(WarningHeader) != "" {
			t.Error("no warning expected")
		}
	})

	t.Run("crawled markup is sandboxed", func(t *testing.T) {
		t.Parallel()

		rec := do(t, srv, http.MethodGet, base+"&class=card", nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
		}
		csp := rec.Header().Get("Content-Security-Policy")
		if !strings.HasPrefix(csp, "sandbox") || strings.Contains(csp, "allow-same-origin") {
			t.Errorf("Content-Security-Policy = %q, want an opaque-origin sandbox", csp)
		}
		if got := rec.Header().Get("X-Content-Type-Options"); got != "nosniff" {
			t.Errorf("X-Content-Type-Options = %q", got)
		}
	})

	t.Run("errors", func(t *testing.T) {
		t.Parallel()

		tests := []struct {
			name   string
			target string
			want   int
		}{
			{name: "two queries", target: base + "&class=card&id=main", want: http.StatusBadRequest},
			{name: "bad index", target: base + "&class=card&index=x", want: http.StatusBadRequest},
			{name: "index out of range", target: base + "&class=card&index=5", want: http.StatusBadRequest},
			{name: "unknown page", target: base + "&class=card&page=" + site.URL + "/nope", want: http.StatusNotFound},
			{name: "no matches", target: base + "&class=absent", want: http.StatusNotFound},
		}
		for _, tt := range tests {
			if rec := do(t, srv, http.MethodGet, tt.target, nil); rec.Code != tt.want {
				t.Errorf("%s: status = %d, want %d", tt.name, rec.Code, tt.want)
			}
		}
	})
}

func TestCache(t *testing.T) {
	t.Parallel()

	site := newSite(t)
	srv := newTestServer(t, site)

	do(t, srv, http.MethodPost, "/api/v1/crawl", strings.NewReader(fmt.Sprintf(`{"url": %q}`, site.URL+"/")))

	var status struct {
		Entries int `json:"entries"`
		Keys    []struct {
			StartURL string `json:"start_url"`
		} `json:"keys"`
	}
	rec := do(t, srv, http.MethodGet, "/api/v1/cache", nil)
	if err := json.NewDecoder(rec.Body).Decode(&status); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if status.Entries != 1 || len(status.Keys) != 1 || status.Keys[0].StartURL != site.URL+"/" {
		t.Errorf("unexpected cache status %+v", status)
	}

	if rec := do(t, srv, http.MethodDelete, "/api/v1/cache", nil); rec.Code != http.StatusNoContent {
		t.Errorf("DELETE status = %d, want 204", rec.Code)
	}
	rec = do(t, srv, http.MethodGet, "/api/v1/cache", nil)
	if !strings.Contains(rec.Body.String(), `"entries":0`) || !strings.Contains(rec.Body.String(), `"keys":[]`) {
		t.Errorf("cache should be empty, got %s", rec.Body.String())
	}
}

func TestHistory_Disabled(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, newSite(t))
	if rec := do(t, srv, http.MethodGet, "/api/v1/history", nil); rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
	if rec := do(t, srv, http.MethodGet, "/api/v1/history?limit=-1", nil); rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestMetrics(t *testing.T) {
	t.Parallel()

	site := newSite(t)
	srv := newTestServer(t, site)
	do(t, srv, http.MethodGet, "/api/v1/search?url="+site.URL+"/&class=card", nil)

	rec := do(t, srv, http.MethodGet, "/metrics", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	for _, want := range []string{"cssfinder_pages_fetched_total 2", `cssfinder_searches_total{kind="class"} 1`} {
		if !strings.Contains(rec.Body.String(), want) {
			t.Errorf("metrics missing %q", want)
		}
	}
}
