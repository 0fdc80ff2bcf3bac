// Package httpclient builds the HTTP client used for crawling.
//
// The client keeps no cookies between requests and follows at most ten
// redirects. Requests can optionally be routed through a SOCKS5 proxy such
// as an SSH tunnel or a local Tor daemon.
package httpclient
