// Package server exposes a Session over a small local HTTP API.
//
// Routes:
//
//	GET    /api/v1/health
//	POST   /api/v1/crawl
//	GET    /api/v1/search?url=...&class=...&id=...
//	GET    /api/v1/preview?url=...&class=...|id=...&page=...&index=...
//	GET    /api/v1/cache
//	DELETE /api/v1/cache
//	GET    /api/v1/history?limit=...
//	GET    /metrics
package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/nao1215/cssfinder/internal/model"
	"github.com/nao1215/cssfinder/internal/report"
	"github.com/nao1215/cssfinder/internal/search"
	"github.com/nao1215/cssfinder/internal/session"
)

// WarningHeader carries the preview warning when the element could not be
// highlighted.
const WarningHeader = "X-Cssfinder-Warning"

// previewPolicy serves crawled markup in an opaque origin so that its scripts
// cannot reach the API origin.
const previewPolicy = "sandbox allow-scripts"

// Server is the HTTP handler of `cssfinder serve`.
type Server struct {
	session *session.Session
	mux     *http.ServeMux
	logger  *slog.Logger
	version string

	// defaultMaxPages and defaultSameDomain apply when a request omits them.
	defaultMaxPages   int
	defaultSameDomain bool
}

// Option configures a Server.
type Option func(*Server)

// WithDefaults sets the crawl settings used when a request omits them.
func WithDefaults(maxPages int, sameDomainOnly bool) Option {
	return func(s *Server) {
		s.defaultMaxPages = maxPages
		s.defaultSameDomain = sameDomainOnly
	}
}

// WithVersion sets the version reported by the health endpoint.
func WithVersion(v string) Option {
	return func(s *Server) {
		s.version = v
	}
}

// WithLogger sets the request logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewServer creates a Server backed by sess.
func NewServer(sess *session.Session, opts ...Option) *Server {
	s := &Server{
		session:           sess,
		mux:               http.NewServeMux(),
		logger:            slog.Default(),
		version:           "dev",
		defaultMaxPages:   20,
		defaultSameDomain: true,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.registerRoutes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	s.mux.ServeHTTP(w, r)
	s.logger.Debug("request", "method", r.Method, "path", r.URL.Path, "elapsed", time.Since(start))
}

// registerRoutes registers all HTTP routes.
func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /api/v1/health", s.handleHealth)
	s.mux.HandleFunc("POST /api/v1/crawl", s.handleCrawl)
	s.mux.HandleFunc("GET /api/v1/search", s.handleSearch)
	s.mux.HandleFunc("GET /api/v1/preview", s.handlePreview)
	s.mux.HandleFunc("GET /api/v1/cache", s.handleCacheStatus)
	s.mux.HandleFunc("DELETE /api/v1/cache", s.handleCacheClear)
	s.mux.HandleFunc("GET /api/v1/history", s.handleHistory)
	s.mux.Handle("GET /metrics", s.session.Metrics().Handler())
}

// handleHealth returns server health status.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": s.version,
	})
}

// crawlBody is the body of POST /api/v1/crawl. Pointer fields distinguish
// omitted values from explicit zero values.
type crawlBody struct {
	URL            string `json:"url"`
	MaxPages       *int   `json:"max_pages"`
	SameDomainOnly *bool  `json:"same_domain_only"`
}

// crawlResponse summarizes a crawl.
type crawlResponse struct {
	Crawl       model.CrawlKey       `json:"crawl"`
	Cached      bool                 `json:"cached"`
	Pages       int                  `json:"pages"`
	Visited     int                  `json:"visited"`
	Stopped     bool                 `json:"stopped_at_limit"`
	DurationMS  int64                `json:"duration_ms"`
	CrawledURLs []string             `json:"crawled_urls"`
	Failures    []model.FetchFailure `json:"failures"`
	Frontier    []string             `json:"frontier"`
}

// handleCrawl handles POST /api/v1/crawl.
func (s *Server) handleCrawl(w http.ResponseWriter, r *http.Request) {
	var body crawlBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, errors.New("invalid request body"))
		return
	}
	req := session.CrawlRequest{
		StartURL:       body.URL,
		PageLimit:      s.defaultMaxPages,
		SameDomainOnly: s.defaultSameDomain,
	}
	if body.MaxPages != nil {
		req.PageLimit = *body.MaxPages
	}
	if body.SameDomainOnly != nil {
		req.SameDomainOnly = *body.SameDomainOnly
	}

	out, err := s.session.Crawl(r.Context(), req, nil)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	res := out.Result
	writeJSON(w, http.StatusOK, crawlResponse{
		Crawl:       res.Key(),
		Cached:      out.Cached,
		Pages:       res.Len(),
		Visited:     res.Visited(),
		Stopped:     res.Stopped(),
		DurationMS:  res.Duration().Milliseconds(),
		CrawledURLs: res.SortedURLs(),
		Failures:    nonNil(res.Failures()),
		Frontier:    nonNil(res.Frontier()),
	})
}

// handleSearch handles GET /api/v1/search. The "format" parameter selects
// json (default), markdown or text output.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	req, err := s.crawlRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	queries := queriesFrom(r)

	out, err := s.session.SearchAll(r.Context(), req, queries, nil)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	rep := report.New(out.Result, out.Results, out.Cached)
	rep.Version = s.version

	var writer report.Writer
	switch r.URL.Query().Get("format") {
	case "", "json":
		w.Header().Set("Content-Type", "application/json")
		writer = report.NewJSONWriter(w)
	case "markdown", "md":
		w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
		writer = report.NewMarkdownWriter(w)
	case "text":
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		writer = report.NewSimpleWriter(w)
	default:
		writeError(w, http.StatusBadRequest, errors.New("format must be json, markdown or text"))
		return
	}
	if _, err := writer.Write(rep); err != nil {
		s.logger.Warn("failed to write search response", "error", err)
	}
}

// handlePreview handles GET /api/v1/preview and responds with the
// highlighted page.
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	req, err := s.crawlRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	queries := queriesFrom(r)
	if len(queries) != 1 {
		writeError(w, http.StatusBadRequest, errors.New("preview needs exactly one class or id"))
		return
	}
	q := r.URL.Query()
	index := 0
	if v := q.Get("index"); v != "" {
		index, err = strconv.Atoi(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, errors.New("index must be an integer"))
			return
		}
	}

	out, err := s.session.Preview(r.Context(), session.PreviewRequest{
		SearchRequest: session.SearchRequest{CrawlRequest: req, Query: queries[0]},
		PageURL:       q.Get("page"),
		MatchIndex:    index,
	}, nil)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	if out.Warning != "" {
		w.Header().Set(WarningHeader, out.Warning)
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Content-Security-Policy", previewPolicy)
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(out.Highlighted.HTML))
}

// handleCacheStatus handles GET /api/v1/cache.
func (s *Server) handleCacheStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"entries": s.session.CacheLen(),
		"keys":    nonNil(s.session.CacheKeys()),
	})
}

// handleCacheClear handles DELETE /api/v1/cache.
func (s *Server) handleCacheClear(w http.ResponseWriter, _ *http.Request) {
	s.session.ClearCache()
	w.WriteHeader(http.StatusNoContent)
}

// handleHistory handles GET /api/v1/history.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, errors.New("limit must be a non-negative integer"))
			return
		}
		limit = n
	}
	list, err := s.session.History(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(list))
}

// crawlRequest reads url, max_pages and same_domain from the query string.
func (s *Server) crawlRequest(r *http.Request) (session.CrawlRequest, error) {
	q := r.URL.Query()
	req := session.CrawlRequest{
		StartURL:       q.Get("url"),
		PageLimit:      s.defaultMaxPages,
		SameDomainOnly: s.defaultSameDomain,
	}
	if v := q.Get("max_pages"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return req, errors.New("max_pages must be an integer")
		}
		req.PageLimit = n
	}
	if v := q.Get("same_domain"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return req, errors.New("same_domain must be true or false")
		}
		req.SameDomainOnly = b
	}
	return req, nil
}

// queriesFrom collects every class and id parameter, classes first.
func queriesFrom(r *http.Request) []model.Query {
	q := r.URL.Query()
	var queries []model.Query
	for _, v := range q["class"] {
		queries = append(queries, model.Query{Kind: model.SearchClass, Value: v})
	}
	for _, v := range q["id"] {
		queries = append(queries, model.Query{Kind: model.SearchID, Value: v})
	}
	return queries
}

// statusFor maps session and search errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, session.ErrMissingURL),
		errors.Is(err, session.ErrUnsupportedURL),
		errors.Is(err, session.ErrInvalidPageLimit),
		errors.Is(err, session.ErrMissingSearchValue),
		errors.Is(err, session.ErrInvalidSearchKind),
		errors.Is(err, session.ErrNoQueries),
		errors.Is(err, search.ErrMatchIndexOutOfRange):
		return http.StatusBadRequest
	case errors.Is(err, search.ErrPageNotFound),
		errors.Is(err, session.ErrNoMatches):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// nonNil keeps empty lists as [] rather than null in JSON.
func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
