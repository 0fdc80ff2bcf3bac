package session

import "errors"

var (
	// ErrMissingURL is returned when no start URL is given.
	ErrMissingURL = errors.New("please enter a URL")

	// ErrUnsupportedURL is returned for URLs that are not absolute http or
	// https URLs.
	ErrUnsupportedURL = errors.New("URL must start with http:// or https://")

	// ErrInvalidPageLimit is returned when the page limit is below 1.
	ErrInvalidPageLimit = errors.New("page limit must be at least 1")

	// ErrMissingSearchValue is returned when the class or id to search for
	// is empty.
	ErrMissingSearchValue = errors.New("please enter a class or ID to search for")

	// ErrInvalidSearchKind is returned for search kinds other than class and id.
	ErrInvalidSearchKind = errors.New("search kind must be class or id")

	// ErrNoMatches is returned by Preview when no page is given and the
	// search found nothing to preview.
	ErrNoMatches = errors.New("no matching elements to preview")

	// ErrNoQueries is returned by SearchAll when the query list is empty.
	ErrNoQueries = errors.New("at least one query is required")
)
