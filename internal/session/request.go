package session

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/nao1215/cssfinder/internal/model"
)

// CrawlRequest describes a crawl.
type CrawlRequest struct {
	// StartURL is the absolute http or https URL to start from.
	StartURL string `json:"url"`

	// PageLimit is the maximum number of URLs to visit.
	PageLimit int `json:"max_pages"`

	// SameDomainOnly keeps the crawl on the start URL's scheme and host.
	SameDomainOnly bool `json:"same_domain_only"`
}

// Validate checks the request without touching the network.
func (r CrawlRequest) Validate() error {
	raw := strings.TrimSpace(r.StartURL)
	if raw == "" {
		return ErrMissingURL
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnsupportedURL, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: %q", ErrUnsupportedURL, raw)
	}
	if r.PageLimit < 1 {
		return ErrInvalidPageLimit
	}
	return nil
}

// Key returns the cache key of the request.
func (r CrawlRequest) Key() model.CrawlKey {
	return model.CrawlKey{
		StartURL:       strings.TrimSpace(r.StartURL),
		PageLimit:      r.PageLimit,
		SameDomainOnly: r.SameDomainOnly,
	}
}

// SearchRequest is a crawl followed by one query.
type SearchRequest struct {
	CrawlRequest
	Query model.Query `json:"query"`
}

// Validate checks the query first, then the crawl.
func (r SearchRequest) Validate() error {
	if err := ValidateQuery(r.Query); err != nil {
		return err
	}
	return r.CrawlRequest.Validate()
}

// ValidateQuery rejects empty values and unknown kinds.
func ValidateQuery(q model.Query) error {
	if strings.TrimSpace(q.Value) == "" {
		return ErrMissingSearchValue
	}
	if q.Kind != model.SearchClass && q.Kind != model.SearchID {
		return fmt.Errorf("%w: %q", ErrInvalidSearchKind, q.Kind)
	}
	return nil
}

// PreviewRequest selects one match of a search for highlighting.
type PreviewRequest struct {
	SearchRequest

	// PageURL is the page holding the match. When empty, the first page
	// with a match is used.
	PageURL string `json:"page_url"`

	// MatchIndex is the zero-based position within that page's matches.
	MatchIndex int `json:"match_index"`
}
