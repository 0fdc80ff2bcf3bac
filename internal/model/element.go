package model

import (
	"slices"
	"strings"

	"golang.org/x/net/html"
)

// ElementRef references one element node inside a PageRecord's document.
//
// An ElementRef is only valid together with the document it was taken from.
// A node pointer does not survive a re-parse, so anything that must find the
// element again in a fresh document uses Signature plus a positional index.
type ElementRef struct {
	node *html.Node
}

// NewElementRef wraps an element node.
func NewElementRef(n *html.Node) ElementRef {
	return ElementRef{node: n}
}

// Node returns the underlying node.
func (e ElementRef) Node() *html.Node {
	return e.node
}

// Tag returns the lower-case tag name.
func (e ElementRef) Tag() string {
	if e.node == nil {
		return ""
	}
	return e.node.Data
}

// Classes returns the class tokens in source order.
// Duplicates are kept.
func (e ElementRef) Classes() []string {
	return ClassTokens(e.node)
}

// HasClass reports whether token is exactly one of the element's class tokens.
func (e ElementRef) HasClass(token string) bool {
	return slices.Contains(e.Classes(), token)
}

// ID returns the id attribute and whether it is present.
func (e ElementRef) ID() (string, bool) {
	return attr(e.node, "id")
}

// HTML returns the serialized outer HTML of the element.
func (e ElementRef) HTML() string {
	if e.node == nil {
		return ""
	}
	var sb strings.Builder
	if err := html.Render(&sb, e.node); err != nil {
		return ""
	}
	return sb.String()
}

// Text returns the element's text content. Each text node is trimmed, empty
// pieces are dropped and the rest are concatenated. Script and style bodies
// are skipped.
func (e ElementRef) Text() string {
	if e.node == nil {
		return ""
	}
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			sb.WriteString(strings.TrimSpace(n.Data))
			return
		case html.ElementNode:
			if n.Data == "script" || n.Data == "style" {
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(e.node)
	return sb.String()
}

// Signature returns the identity used to relocate the element in another
// parse of the same markup.
func (e ElementRef) Signature() Signature {
	return Signature{Tag: e.Tag(), Classes: e.Classes()}
}

// Signature is the tag name plus the class-token set of an element.
type Signature struct {
	Tag     string   `json:"tag"`
	Classes []string `json:"classes"`
}

// Matches reports whether n is an element with the same tag and exactly the
// same set of class tokens. Token order and duplicates are ignored.
func (s Signature) Matches(n *html.Node) bool {
	if n == nil || n.Type != html.ElementNode || n.Data != s.Tag {
		return false
	}
	return sameTokenSet(ClassTokens(n), s.Classes)
}

// ClassTokens splits the class attribute of n on whitespace.
func ClassTokens(n *html.Node) []string {
	v, ok := attr(n, "class")
	if !ok {
		return nil
	}
	return strings.Fields(v)
}

func sameTokenSet(a, b []string) bool {
	as := uniqueSorted(a)
	bs := uniqueSorted(b)
	return slices.Equal(as, bs)
}

func uniqueSorted(tokens []string) []string {
	out := slices.Clone(tokens)
	slices.Sort(out)
	return slices.Compact(out)
}

// attr retrieves an attribute value from an HTML node.
func attr(n *html.Node, key string) (string, bool) {
	if n == nil {
		return "", false
	}
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}
