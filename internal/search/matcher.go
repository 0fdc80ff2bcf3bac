package search

import (
	"fmt"

	"github.com/nao1215/cssfinder/internal/model"
)

// FindByClass returns, per page, the elements that carry class as one of
// their class tokens. Substrings do not match: "container" does not match
// class="containers".
func FindByClass(result *model.CrawlResult, class string) []model.MatchRecord {
	return find(result, classMatcher(class))
}

// FindByID returns, per page, the elements whose id equals id exactly.
func FindByID(result *model.CrawlResult, id string) []model.MatchRecord {
	return find(result, idMatcher(id))
}

// Find dispatches q to FindByClass or FindByID.
func Find(result *model.CrawlResult, q model.Query) ([]model.MatchRecord, error) {
	match, err := matcherFor(q)
	if err != nil {
		return nil, err
	}
	return find(result, match), nil
}

// Total returns the number of matched elements across records.
func Total(records []model.MatchRecord) int {
	n := 0
	for _, r := range records {
		n += r.Count
	}
	return n
}

type elementMatcher func(model.ElementRef) bool

func classMatcher(class string) elementMatcher {
	return func(e model.ElementRef) bool {
		return e.HasClass(class)
	}
}

func idMatcher(id string) elementMatcher {
	return func(e model.ElementRef) bool {
		v, ok := e.ID()
		return ok && v == id
	}
}

func matcherFor(q model.Query) (elementMatcher, error) {
	switch q.Kind {
	case model.SearchClass:
		return classMatcher(q.Value), nil
	case model.SearchID:
		return idMatcher(q.Value), nil
	default:
		return nil, fmt.Errorf("%w: %q", model.ErrUnknownSearchKind, q.Kind)
	}
}

// find returns one record per page with at least one match, in crawl order.
// The result is never nil.
func find(result *model.CrawlResult, match elementMatcher) []model.MatchRecord {
	records := []model.MatchRecord{}
	if result == nil {
		return records
	}
	for _, page := range result.Pages() {
		if matches := pageMatches(page, match); len(matches) > 0 {
			records = append(records, model.MatchRecord{
				PageURL: page.URL,
				Matches: matches,
				Count:   len(matches),
			})
		}
	}
	return records
}

func pageMatches(page *model.PageRecord, match elementMatcher) []model.ElementRef {
	var matches []model.ElementRef
	for _, e := range page.Elements {
		if match(e) {
			matches = append(matches, e)
		}
	}
	return matches
}
