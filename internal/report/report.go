package report

import (
	"time"
	"unicode/utf8"

	"github.com/nao1215/cssfinder/internal/model"
	"github.com/nao1215/cssfinder/internal/search"
)

const (
	// MaxHTMLLength is the number of characters of element HTML kept.
	MaxHTMLLength = 1000

	// MaxTextLength is the number of characters of element text kept.
	MaxTextLength = 300
)

// Report is the serializable view of one or more searches over one crawl.
type Report struct {
	// Version is the cssfinder version that produced the report.
	Version string `json:"version,omitempty"`

	// Crawl identifies the crawl the searches ran against.
	Crawl model.CrawlKey `json:"crawl"`

	// Cached is true when the crawl came from the cache.
	Cached bool `json:"cached"`

	// GeneratedAt is when the report was built.
	GeneratedAt time.Time `json:"generated_at"`

	// PagesCrawled is the number of pages fetched successfully.
	PagesCrawled int `json:"pages_crawled"`

	// Stopped is true when the crawl reached its page limit with links left.
	Stopped bool `json:"stopped_at_limit"`

	// Searches holds one section per query, in query order.
	Searches []Search `json:"searches"`

	// CrawledURLs lists every fetched page, sorted alphabetically.
	CrawledURLs []string `json:"crawled_urls"`

	// Failures lists URLs that could not be fetched.
	Failures []model.FetchFailure `json:"failures,omitempty"`
}

// Search is the result of one query.
type Search struct {
	Query model.Query `json:"query"`
	Total int         `json:"total"`
	Pages []Page      `json:"pages"`
}

// Page lists the matches found on one page.
type Page struct {
	URL       string     `json:"url"`
	Count     int        `json:"count"`
	Instances []Instance `json:"instances"`
}

// Instance describes one matching element.
type Instance struct {
	// Number is the one-based instance number within the page.
	Number  int      `json:"number"`
	Tag     string   `json:"tag"`
	Classes []string `json:"classes"`
	ID      string   `json:"id,omitempty"`
	HTML    string   `json:"html"`
	Text    string   `json:"text"`
}

// New builds a Report from a crawl result and the queries run against it.
func New(result *model.CrawlResult, results []search.QueryResult, cached bool) *Report {
	r := &Report{
		Crawl:        result.Key(),
		Cached:       cached,
		GeneratedAt:  time.Now(),
		PagesCrawled: result.Len(),
		Stopped:      result.Stopped(),
		Searches:     make([]Search, 0, len(results)),
		CrawledURLs:  result.SortedURLs(),
		Failures:     result.Failures(),
	}
	for _, qr := range results {
		r.Searches = append(r.Searches, newSearch(qr))
	}
	return r
}

// TotalMatches returns the number of matches across all searches.
func (r *Report) TotalMatches() int {
	var total int
	for _, s := range r.Searches {
		total += s.Total
	}
	return total
}

func newSearch(qr search.QueryResult) Search {
	s := Search{
		Query: qr.Query,
		Total: qr.Total,
		Pages: make([]Page, 0, len(qr.Records)),
	}
	for _, rec := range qr.Records {
		p := Page{
			URL:       rec.PageURL,
			Count:     rec.Count,
			Instances: make([]Instance, 0, len(rec.Matches)),
		}
		for i, el := range rec.Matches {
			id, _ := el.ID()
			p.Instances = append(p.Instances, Instance{
				Number:  i + 1,
				Tag:     el.Tag(),
				Classes: el.Classes(),
				ID:      id,
				HTML:    truncate(el.HTML(), MaxHTMLLength),
				Text:    truncate(el.Text(), MaxTextLength),
			})
		}
		s.Pages = append(s.Pages, p)
	}
	return s
}

// truncate shortens s to maxLen characters with "..." appended.
func truncate(s string, maxLen int) string {
	if utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	runes := []rune(s)
	return string(runes[:maxLen]) + "..."
}
