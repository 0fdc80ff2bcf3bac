package search

import "errors"

var (
	// ErrPageNotFound is returned when a page URL is not part of the crawl
	// result.
	ErrPageNotFound = errors.New("page not found in crawl result")

	// ErrMatchIndexOutOfRange is returned when a match index does not
	// address a match on the page.
	ErrMatchIndexOutOfRange = errors.New("match index out of range")

	// ErrNoCrawlResult is returned when a search is run without a result.
	ErrNoCrawlResult = errors.New("no crawl result to search")
)
