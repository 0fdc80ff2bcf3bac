// Package search finds elements in a crawl result and renders a highlighted
// preview of one of them.
//
// Matching is exact: a class search matches elements that carry the value as
// one whole class token, and an id search matches the id attribute with
// case-sensitive equality. Results follow the crawl's page order and, within
// a page, document order. Searches only read the crawl result.
//
// A match chosen for preview is described by a model.SelectedMatch. The
// highlighter re-parses the page's stored markup into a fresh document and
// finds the element again by its tag, its class-token set and its rank among
// elements sharing both, since node pointers do not survive a re-parse.
package search
