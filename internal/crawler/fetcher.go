package crawler

import (
	"context"
	"crypto/tls"
	"errors"
	"io"
	"net"
	"net/http"
	"time"

	"golang.org/x/net/html/charset"

	"github.com/nao1215/cssfinder/internal/model"
)

const (
	// DefaultFetchTimeout bounds each request independently.
	DefaultFetchTimeout = 10 * time.Second

	// DefaultMaxBodySize limits how much of a response body is read.
	DefaultMaxBodySize = 5 * 1024 * 1024

	// DefaultUserAgent identifies the crawler in requests.
	DefaultUserAgent = "cssfinder (+https://github.com/nao1215/cssfinder)"
)

// FetchResult is a successful GET response.
type FetchResult struct {
	// URL is the URL that was requested.
	URL string

	// StatusCode is the 2xx status of the response.
	StatusCode int

	// ContentType is the Content-Type header value.
	ContentType string

	// Body is the response body decoded to UTF-8.
	Body []byte

	// Truncated is set when the body was longer than the size limit and
	// only its first part was read.
	Truncated bool
}

// Fetcher performs single GET requests.
type Fetcher struct {
	// client is the HTTP client used for all requests.
	client *http.Client

	// timeout applies to each request separately.
	timeout time.Duration

	// userAgent is the User-Agent header value.
	userAgent string

	// maxBodySize limits the size of response bodies to read.
	maxBodySize int64
}

// FetcherOption configures a Fetcher.
type FetcherOption func(*Fetcher)

// WithFetchTimeout sets the per-request timeout.
func WithFetchTimeout(d time.Duration) FetcherOption {
	return func(f *Fetcher) {
		if d > 0 {
			f.timeout = d
		}
	}
}

// WithUserAgent sets a custom User-Agent header.
func WithUserAgent(ua string) FetcherOption {
	return func(f *Fetcher) {
		if ua != "" {
			f.userAgent = ua
		}
	}
}

// WithMaxBodySize sets the maximum response body size.
func WithMaxBodySize(size int64) FetcherOption {
	return func(f *Fetcher) {
		if size > 0 {
			f.maxBodySize = size
		}
	}
}

// NewFetcher creates a Fetcher that sends requests with client.
// A nil client falls back to a plain http.Client without a cookie jar.
func NewFetcher(client *http.Client, opts ...FetcherOption) *Fetcher {
	if client == nil {
		client = &http.Client{}
	}
	f := &Fetcher{
		client:      client,
		timeout:     DefaultFetchTimeout,
		userAgent:   DefaultUserAgent,
		maxBodySize: DefaultMaxBodySize,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch issues one GET request for rawURL. Any failure is returned as a
// *FetchError.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*FetchResult, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, &FetchError{URL: rawURL, Kind: model.FailureOther, Err: err}
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &FetchError{URL: rawURL, Kind: classify(err), Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &FetchError{URL: rawURL, Kind: model.FailureStatus, StatusCode: resp.StatusCode}
	}

	contentType := resp.Header.Get("Content-Type")
	limited := &capReader{r: resp.Body, n: f.maxBodySize}
	reader, err := charset.NewReader(limited, contentType)
	if err != nil {
		return nil, &FetchError{URL: rawURL, Kind: classify(err), Err: err}
	}
	body, err := io.ReadAll(reader)
	if err != nil {
		return nil, &FetchError{URL: rawURL, Kind: classify(err), Err: err}
	}

	return &FetchResult{
		URL:         rawURL,
		StatusCode:  resp.StatusCode,
		ContentType: contentType,
		Body:        body,
		Truncated:   limited.truncated,
	}, nil
}

// capReader reads at most n bytes from r. Once the limit is reached it peeks
// one more byte to tell whether the body was cut off.
type capReader struct {
	r         io.Reader
	n         int64
	truncated bool
}

func (c *capReader) Read(p []byte) (int, error) {
	if c.n <= 0 {
		var one [1]byte
		if k, _ := io.ReadFull(c.r, one[:]); k > 0 {
			c.truncated = true
		}
		return 0, io.EOF
	}
	if int64(len(p)) > c.n {
		p = p[:c.n]
	}
	k, err := c.r.Read(p)
	c.n -= int64(k)
	return k, err
}

// classify maps a transport error to a failure kind.
func classify(err error) model.FailureKind {
	if errors.Is(err, context.DeadlineExceeded) {
		return model.FailureTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return model.FailureTimeout
	}

	var opErr *net.OpError
	var dnsErr *net.DNSError
	var certErr *tls.CertificateVerificationError
	if errors.As(err, &opErr) || errors.As(err, &dnsErr) || errors.As(err, &certErr) {
		return model.FailureConnection
	}
	return model.FailureOther
}
