package model

import (
	"strconv"

	"github.com/PuerkitoBio/goquery"
	"github.com/cespare/xxhash/v2"
)

// PageRecord represents a fetched page together with its parsed document and
// the elements that carry a class or an id.
//
// A PageRecord is created once by the crawler and must not be modified
// afterwards. It is owned by the CrawlResult that produced it.
type PageRecord struct {
	// URL is the canonical (fragment-stripped) URL of the page.
	URL string `json:"url"`

	// StatusCode is the HTTP response status code.
	StatusCode int `json:"status_code"`

	// ContentType is the value of the Content-Type response header.
	ContentType string `json:"content_type"`

	// Title is the trimmed text of the <title> element, if any.
	Title string `json:"title,omitempty"`

	// Hash is the xxhash64 of Raw in hexadecimal.
	Hash string `json:"hash"`

	// Raw is the UTF-8 markup as it was fetched.
	// The highlighter re-parses this, never Document.
	Raw []byte `json:"-"`

	// Document is the parsed form of Raw.
	Document *goquery.Document `json:"-"`

	// Elements holds every element with a class token or an id attribute,
	// in document order.
	Elements []ElementRef `json:"-"`

	// Links holds the raw href values of all anchors, in document order.
	Links []string `json:"links,omitempty"`

	// Truncated is set when the body exceeded the size limit, so Raw and
	// Elements only cover its beginning.
	Truncated bool `json:"truncated,omitempty"`
}

// ComputeHash calculates and sets the hash of the page's raw content.
// This should be called after setting the Raw field.
func (p *PageRecord) ComputeHash() {
	if len(p.Raw) == 0 {
		p.Hash = ""
		return
	}
	p.Hash = strconv.FormatUint(xxhash.Sum64(p.Raw), 16)
}
