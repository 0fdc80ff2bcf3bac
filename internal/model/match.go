package model

import (
	"errors"
)

// SearchKind selects which attribute a search inspects.
type SearchKind string

const (
	// SearchClass matches one exact class token.
	SearchClass SearchKind = "class"

	// SearchID matches the id attribute exactly.
	SearchID SearchKind = "id"
)

// ErrUnknownSearchKind is returned when a query carries a kind other than
// SearchClass or SearchID.
var ErrUnknownSearchKind = errors.New("unknown search kind: expected class or id")

// Label returns the user-facing name of the kind.
func (k SearchKind) Label() string {
	if k == SearchID {
		return "ID"
	}
	return "class"
}

// Query is one search: a kind and the exact value to look for.
type Query struct {
	Kind  SearchKind `json:"kind"`
	Value string     `json:"value"`
}

// MatchRecord lists the matching elements of one page.
// It is derived from a CrawlResult on every search and never stored.
type MatchRecord struct {
	// PageURL is the canonical URL of the page.
	PageURL string

	// Matches holds the matching elements in document order.
	Matches []ElementRef

	// Count equals len(Matches).
	Count int
}

// SelectedMatch is the serializable description of one match chosen for
// preview. Only Signature and SignatureIndex are needed to find the element
// again; HTML is kept for diagnostics.
type SelectedMatch struct {
	// PageURL is the canonical URL of the page holding the match.
	PageURL string `json:"page_url"`

	// MatchIndex is the zero-based position within the page's MatchRecord.
	MatchIndex int `json:"match_index"`

	// Tag is the element's tag name.
	Tag string `json:"tag"`

	// Classes are the element's class tokens in source order.
	Classes []string `json:"classes"`

	// HTML is a snapshot of the element's outer HTML.
	HTML string `json:"html"`

	// ID is the id attribute value; HasID tells whether it was present.
	ID    string `json:"id,omitempty"`
	HasID bool   `json:"has_id"`

	// SignatureIndex is the zero-based rank of the element among all
	// elements of the page that share its tag and class-token set.
	SignatureIndex int `json:"signature_index"`
}

// Signature returns the tag and class tokens of the selected element.
func (s SelectedMatch) Signature() Signature {
	return Signature{Tag: s.Tag, Classes: s.Classes}
}

// Instance returns the one-based instance number shown to users.
func (s SelectedMatch) Instance() int {
	return s.MatchIndex + 1
}
