package search

import (
	"bytes"
	"fmt"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/nao1215/cssfinder/internal/model"
)

// MarkerClass is the class token added to the highlighted element.
const MarkerClass = "highlight-match"

// highlightAssets is injected into highlighted pages. It carries no
// timestamp so that equal inputs give byte-identical output.
const highlightAssets = `<style>
.` + MarkerClass + ` {
    background-color: rgba(255, 255, 0, 0.4) !important;
    border: 8px dashed #ffcc00 !important;
    scroll-margin-top: 100px;
    box-shadow: 0 0 10px rgba(255, 204, 0, 0.6) !important;
}
</style>
<script>
window.addEventListener("load", function () {
    var elements = document.getElementsByClassName("` + MarkerClass + `");
    if (elements.length > 0) {
        elements[0].scrollIntoView({behavior: "smooth", block: "center"});
    }
});
</script>`

// Highlighted is the output of Highlight.
type Highlighted struct {
	// HTML is the serialized page. It is the unmodified page when Found is
	// false.
	HTML string

	// Found reports whether the element was located.
	Found bool

	// Index is the requested rank among Candidates.
	Index int

	// Candidates is the number of elements matching the signature.
	Candidates int
}

// Highlight parses markup into a new document, selects the index-th element
// (zero-based, document order) matching sig, marks it with MarkerClass and
// injects the highlight style and scroll script.
//
// markup itself is never modified. An index outside the candidate list is not
// an error: the result has Found set to false and HTML holds the page
// without any highlighting.
func Highlight(markup []byte, sig model.Signature, index int) (*Highlighted, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(markup))
	if err != nil {
		return nil, fmt.Errorf("failed to parse page for highlighting: %w", err)
	}

	var candidates []*html.Node
	for _, root := range doc.Nodes {
		walk(root, func(n *html.Node) bool {
			if sig.Matches(n) {
				candidates = append(candidates, n)
			}
			return true
		})
	}

	out := &Highlighted{Index: index, Candidates: len(candidates)}
	if index < 0 || index >= len(candidates) {
		out.HTML, err = doc.Html()
		if err != nil {
			return nil, fmt.Errorf("failed to render page: %w", err)
		}
		return out, nil
	}

	doc.FindNodes(candidates[index]).AddClass(MarkerClass)
	out.Found = true

	head := doc.Find("head").First()
	if head.Length() > 0 {
		head.PrependHtml(highlightAssets)
		out.HTML, err = doc.Html()
	} else {
		out.HTML, err = doc.Html()
		out.HTML = highlightAssets + out.HTML
	}
	if err != nil {
		return nil, fmt.Errorf("failed to render page: %w", err)
	}
	return out, nil
}

// HighlightSelection highlights sel within page's stored markup.
func HighlightSelection(page *model.PageRecord, sel model.SelectedMatch) (*Highlighted, error) {
	if page == nil {
		return nil, ErrPageNotFound
	}
	return Highlight(page.Raw, sel.Signature(), sel.SignatureIndex)
}
