package session

import (
	"context"
	"fmt"

	"github.com/nao1215/cssfinder/internal/crawler"
	"github.com/nao1215/cssfinder/internal/model"
	"github.com/nao1215/cssfinder/internal/search"
)

// PreviewOutcome is the result of Preview.
type PreviewOutcome struct {
	Selection   model.SelectedMatch
	Highlighted *search.Highlighted
	Cached      bool

	// Warning is set when the element could not be found again in the
	// page markup. The page is still rendered, without highlighting.
	Warning string
}

// Preview renders the page holding the selected match with that element
// highlighted.
func (s *Session) Preview(ctx context.Context, req PreviewRequest, progress crawler.ProgressFunc) (*PreviewOutcome, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	crawled, err := s.Crawl(ctx, req.CrawlRequest, progress)
	if err != nil {
		return nil, err
	}
	result := crawled.Result

	pageURL := req.PageURL
	if pageURL == "" {
		records, err := search.Find(result, req.Query)
		if err != nil {
			return nil, err
		}
		if len(records) == 0 {
			return nil, fmt.Errorf("%w: %s %q", ErrNoMatches, req.Query.Kind.Label(), req.Query.Value)
		}
		pageURL = records[0].PageURL
	} else {
		pageURL = crawler.Normalize(pageURL)
	}

	sel, err := search.Select(result, req.Query, pageURL, req.MatchIndex)
	if err != nil {
		return nil, err
	}
	page, _ := result.Page(sel.PageURL)
	h, err := search.HighlightSelection(page, sel)
	if err != nil {
		return nil, err
	}

	out := &PreviewOutcome{Selection: sel, Highlighted: h, Cached: crawled.Cached}
	if !h.Found {
		out.Warning = fmt.Sprintf("element to highlight not found (index %d, total %d)", h.Index, h.Candidates)
		s.logger.Warn("element to highlight not found",
			"url", sel.PageURL,
			"index", h.Index,
			"total", h.Candidates,
		)
	}
	return out, nil
}
