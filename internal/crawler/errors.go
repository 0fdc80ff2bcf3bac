package crawler

import (
	"errors"
	"fmt"

	"github.com/nao1215/cssfinder/internal/model"
)

var (
	// ErrInvalidStartURL is returned by Crawl when the start URL cannot be
	// parsed or does not use http/https. No request is made in that case.
	ErrInvalidStartURL = errors.New("invalid start URL: must be an absolute http or https URL")

	// ErrInvalidPageLimit is returned by Crawl when the page limit is below 1.
	ErrInvalidPageLimit = errors.New("page limit must be at least 1")

	// ErrNotAbsolute is returned when a URL lacks a scheme or a host.
	ErrNotAbsolute = errors.New("URL is not absolute")

	// ErrInvalidPattern is returned when an ignore or follow pattern does not
	// compile.
	ErrInvalidPattern = errors.New("invalid URL path pattern")
)

// FetchError describes why a single URL could not be fetched.
type FetchError struct {
	// URL is the URL that was requested.
	URL string

	// Kind classifies the failure.
	Kind model.FailureKind

	// StatusCode is set when Kind is FailureStatus.
	StatusCode int

	// Err is the underlying error, if any.
	Err error
}

// Error implements the error interface.
func (e *FetchError) Error() string {
	if e.Kind == model.FailureStatus {
		return fmt.Sprintf("fetch %s: unexpected status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("fetch %s: %s: %v", e.URL, e.Kind, e.Err)
}

// Unwrap returns the underlying error.
func (e *FetchError) Unwrap() error {
	return e.Err
}

// Failure converts the error into the record kept on a CrawlResult.
func (e *FetchError) Failure() model.FetchFailure {
	return model.FetchFailure{
		URL:        e.URL,
		Kind:       e.Kind,
		StatusCode: e.StatusCode,
		Message:    e.Error(),
	}
}
