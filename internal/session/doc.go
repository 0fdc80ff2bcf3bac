// Package session ties crawling, caching and searching together.
//
// A Session owns one crawl cache for its lifetime. The CLI creates one per
// command; `cssfinder serve` keeps one for the whole process and shares it
// between concurrent requests. Every request is validated before any
// network activity.
package session
