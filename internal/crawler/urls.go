package crawler

import (
	"fmt"
	"net/url"
	"strings"
)

// Normalize removes the fragment from a URL. Nothing else is changed: query,
// path, scheme and host casing are preserved, and trailing slashes or default
// ports are left alone.
func Normalize(raw string) string {
	if i := strings.IndexByte(raw, '#'); i >= 0 {
		return raw[:i]
	}
	return raw
}

// Resolve resolves href against base following RFC 3986 reference
// resolution, then normalizes the result.
func Resolve(base, href string) (string, error) {
	b, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid base URL %q: %w", base, err)
	}
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return "", fmt.Errorf("invalid link %q: %w", href, err)
	}
	return Normalize(b.ResolveReference(ref).String()), nil
}

// OriginOf returns "scheme://host" for raw.
func OriginOf(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("%w: %q", ErrNotAbsolute, raw)
	}
	return u.Scheme + "://" + u.Host, nil
}

// IsSameDomain reports whether raw has exactly the given origin.
// Only scheme and host (including any port) are compared; the path is ignored.
func IsSameDomain(raw, origin string) bool {
	o, err := OriginOf(raw)
	if err != nil {
		return false
	}
	return o == origin
}

// IsFetchable reports whether raw uses the http or https scheme.
func IsFetchable(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
