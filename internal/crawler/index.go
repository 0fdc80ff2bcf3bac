package crawler

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/nao1215/cssfinder/internal/model"
)

// Parse builds a document from raw markup.
// Parsing follows the HTML5 algorithm, so unclosed tags and missing
// structure are repaired rather than rejected.
func Parse(raw []byte) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}
	return doc, nil
}

// ExtractClassedElements returns every element that has at least one class
// token or an id attribute, in document order (depth-first, pre-order).
func ExtractClassedElements(doc *goquery.Document) []model.ElementRef {
	if doc == nil {
		return nil
	}
	var elements []model.ElementRef
	for _, root := range doc.Nodes {
		walk(root, func(n *html.Node) {
			if n.Type != html.ElementNode {
				return
			}
			if len(model.ClassTokens(n)) > 0 || hasAttr(n, "id") {
				elements = append(elements, model.NewElementRef(n))
			}
		})
	}
	return elements
}

// ExtractLinks returns the href of every anchor in document order.
// Values are neither resolved nor filtered.
func ExtractLinks(doc *goquery.Document) []string {
	if doc == nil {
		return nil
	}
	var links []string
	for _, root := range doc.Nodes {
		walk(root, func(n *html.Node) {
			if n.Type != html.ElementNode || n.Data != "a" {
				return
			}
			for _, a := range n.Attr {
				if a.Namespace == "" && a.Key == "href" {
					links = append(links, a.Val)
					break
				}
			}
		})
	}
	return links
}

// Title returns the trimmed text of the first <title> element.
func Title(doc *goquery.Document) string {
	if doc == nil {
		return ""
	}
	return strings.TrimSpace(doc.Find("title").First().Text())
}

// walk visits n and its descendants in pre-order.
func walk(n *html.Node, fn func(*html.Node)) {
	fn(n)
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c, fn)
	}
}

func hasAttr(n *html.Node, key string) bool {
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			return true
		}
	}
	return false
}
