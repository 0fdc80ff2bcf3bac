package config

import "errors"

// Configuration validation errors.
// These errors are returned by Config.Validate() and provide specific
// information about what is wrong with the configuration.
var (
	// ErrInvalidMaxPages is returned when the page limit is below 1.
	ErrInvalidMaxPages = errors.New("invalid page limit: must be at least 1")

	// ErrInvalidTimeout is returned when the timeout is not positive.
	// A timeout of zero or negative would cause immediate request failures.
	ErrInvalidTimeout = errors.New("invalid timeout: must be positive")

	// ErrConflictingReportFormats is returned when both --json and --markdown
	// are specified. Only one output format can be used at a time.
	ErrConflictingReportFormats = errors.New("conflicting report formats: --json and --markdown cannot be used together")

	// ErrInvalidMaxBodySize is returned when the max body size is negative.
	// A negative body size is invalid; use 0 to use the default limit.
	ErrInvalidMaxBodySize = errors.New("invalid max body size: must be non-negative")

	// ErrInvalidProxyAddress is returned when the SOCKS5 proxy address is
	// not in "host:port" format.
	ErrInvalidProxyAddress = errors.New("invalid proxy address: expected host:port")

	// ErrInvalidPattern is returned when an ignore or follow pattern in the
	// configuration file does not compile.
	ErrInvalidPattern = errors.New("invalid URL path pattern")

	// ErrInvalidConcurrency is returned when the search concurrency is below 1.
	ErrInvalidConcurrency = errors.New("invalid concurrency: must be at least 1")
)
