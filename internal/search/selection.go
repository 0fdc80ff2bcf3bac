package search

import (
	"fmt"

	"golang.org/x/net/html"

	"github.com/nao1215/cssfinder/internal/model"
)

// Select describes the matchIndex-th match of q on pageURL.
//
// Besides the display data it computes SignatureIndex, the element's rank
// among all elements of the page sharing its tag and class-token set. That
// rank, not matchIndex, relocates the element in a fresh parse, because one
// page's match list can mix elements of different signatures.
func Select(result *model.CrawlResult, q model.Query, pageURL string, matchIndex int) (model.SelectedMatch, error) {
	if result == nil {
		return model.SelectedMatch{}, ErrNoCrawlResult
	}
	match, err := matcherFor(q)
	if err != nil {
		return model.SelectedMatch{}, err
	}
	page, ok := result.Page(pageURL)
	if !ok {
		return model.SelectedMatch{}, fmt.Errorf("%w: %s", ErrPageNotFound, pageURL)
	}
	matches := pageMatches(page, match)
	if matchIndex < 0 || matchIndex >= len(matches) {
		return model.SelectedMatch{}, fmt.Errorf("%w: %d not in [0, %d)", ErrMatchIndexOutOfRange, matchIndex, len(matches))
	}

	elem := matches[matchIndex]
	id, hasID := elem.ID()
	return model.SelectedMatch{
		PageURL:        page.URL,
		MatchIndex:     matchIndex,
		Tag:            elem.Tag(),
		Classes:        elem.Classes(),
		HTML:           elem.HTML(),
		ID:             id,
		HasID:          hasID,
		SignatureIndex: signatureIndex(page, elem),
	}, nil
}

// signatureIndex counts the elements before elem, in document order, that
// share its signature.
func signatureIndex(page *model.PageRecord, elem model.ElementRef) int {
	if page.Document == nil {
		return 0
	}
	sig := elem.Signature()
	target := elem.Node()
	rank := 0
	found := false
	for _, root := range page.Document.Nodes {
		walk(root, func(n *html.Node) bool {
			if n == target {
				found = true
				return false
			}
			if sig.Matches(n) {
				rank++
			}
			return true
		})
		if found {
			break
		}
	}
	return rank
}

// walk visits n and its descendants in pre-order until fn returns false.
func walk(n *html.Node, fn func(*html.Node) bool) bool {
	if !fn(n) {
		return false
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if !walk(c, fn) {
			return false
		}
	}
	return true
}
