package report

import (
	"io"
	"strconv"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"
)

// MarkdownWriter outputs reports in Markdown format.
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{
		baseWriter: newBaseWriter(output),
	}
}

// Write outputs the report in Markdown format.
func (w *MarkdownWriter) Write(report *Report) (int, error) {
	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, report)
	for _, s := range report.Searches {
		w.writeSearch(md, s)
	}
	w.writeFailures(md, report)
	w.writeCrawledURLs(md, report)
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

// writeHeader writes the report header with crawl information.
func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, report *Report) {
	md.H1("CSS Finder Report")
	md.PlainText("")

	source := "network"
	if report.Cached {
		source = "cache"
	}
	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Start URL", "`" + report.Crawl.StartURL + "`"},
			{"Page Limit", strconv.Itoa(report.Crawl.PageLimit)},
			{"Same Domain Only", strconv.FormatBool(report.Crawl.SameDomainOnly)},
			{"Pages Crawled", strconv.Itoa(report.PagesCrawled)},
			{"Source", source},
			{"Generated", report.GeneratedAt.Format("2006-01-02 15:04:05 MST")},
		},
	})
	md.PlainText("")

	w.writeAlert(md, report)
}

// writeAlert summarizes the outcome in a GitHub alert.
func (w *MarkdownWriter) writeAlert(md *markdown.Markdown, report *Report) {
	switch {
	case len(report.Failures) > 0:
		md.Warningf("%d URL(s) could not be fetched. Results may be incomplete.", len(report.Failures))
	case report.Stopped:
		md.Notef("The crawl stopped at its limit of %d page(s).", report.Crawl.PageLimit)
	case report.TotalMatches() == 0:
		md.Tip("No matching elements were found.")
	default:
		md.Notef("%d matching element(s) found.", report.TotalMatches())
	}
	md.PlainText("")
}

// writeSearch writes one query section.
func (w *MarkdownWriter) writeSearch(md *markdown.Markdown, s Search) {
	md.H2(heading(s))
	md.PlainText("")

	if s.Total == 0 {
		md.PlainTextf("No elements with %s `%s` found.", s.Query.Kind.Label(), s.Query.Value)
		md.PlainText("")
		return
	}

	rows := make([][]string, len(s.Pages))
	for i, p := range s.Pages {
		rows[i] = []string{p.URL, strconv.Itoa(p.Count)}
	}
	md.Table(markdown.TableSet{
		Header: []string{"Page", "Instances"},
		Rows:   rows,
	})
	md.PlainText("")

	if len(s.Pages) > 1 {
		w.writePieChart(md, s)
	}

	for _, p := range s.Pages {
		md.H3(p.URL)
		md.PlainText("")
		for _, in := range p.Instances {
			md.PlainTextf("**#%d** `<%s>` classes: `%s` id: `%s`", in.Number, in.Tag, classList(in.Classes), orDash(in.ID))
			md.PlainText("")
			if in.Text != "" {
				md.Details("Text", in.Text)
			}
			md.CodeBlocks(markdown.SyntaxHighlight("html"), in.HTML)
			md.PlainText("")
		}
	}
}

// writePieChart writes a mermaid pie chart of matches per page.
func (w *MarkdownWriter) writePieChart(md *markdown.Markdown, s Search) {
	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Matches per page"),
		piechart.WithShowData(true),
	)
	for _, p := range s.Pages {
		chart.LabelAndIntValue(p.URL, uint64(p.Count))
	}
	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

// writeFailures lists URLs that could not be fetched.
func (w *MarkdownWriter) writeFailures(md *markdown.Markdown, report *Report) {
	if len(report.Failures) == 0 {
		return
	}
	md.H2("Failed URLs")
	md.PlainText("")
	rows := make([][]string, len(report.Failures))
	for i, f := range report.Failures {
		status := "-"
		if f.StatusCode != 0 {
			status = strconv.Itoa(f.StatusCode)
		}
		rows[i] = []string{f.URL, string(f.Kind), status}
	}
	md.Table(markdown.TableSet{
		Header: []string{"URL", "Kind", "Status"},
		Rows:   rows,
	})
	md.PlainText("")
}

// writeCrawledURLs lists every fetched page.
func (w *MarkdownWriter) writeCrawledURLs(md *markdown.Markdown, report *Report) {
	md.H2("All Crawled URLs")
	md.PlainText("")
	if len(report.CrawledURLs) == 0 {
		md.PlainText("No pages were fetched.")
		md.PlainText("")
		return
	}
	md.BulletList(report.CrawledURLs...)
	md.PlainText("")
}

// writeFooter writes the report footer.
func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainText("*Report generated by [cssfinder](https://github.com/nao1215/cssfinder)*")
}
