package report

import (
	"fmt"
	"io"
	"strings"
)

// SimpleWriter outputs human-readable text reports for the terminal.
type SimpleWriter struct {
	baseWriter

	// showHTML controls whether element HTML is printed.
	showHTML bool

	// showURLs controls whether the list of crawled URLs is printed.
	showURLs bool
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithHTML enables or disables element HTML in the output.
func WithHTML(show bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.showHTML = show
	}
}

// WithCrawledURLs enables or disables the crawled URL list.
func WithCrawledURLs(show bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.showURLs = show
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
// HTML and the crawled URL list are shown by default.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{
		baseWriter: newBaseWriter(output),
		showHTML:   true,
		showURLs:   true,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Write outputs the report in human-readable format.
func (w *SimpleWriter) Write(report *Report) (int, error) {
	var sb strings.Builder

	w.writeHeader(&sb, report)
	for _, s := range report.Searches {
		w.writeSearch(&sb, s)
	}
	w.writeFailures(&sb, report)
	if w.showURLs {
		w.writeCrawledURLs(&sb, report)
	}

	return io.WriteString(w.output, sb.String())
}

func rule(sb *strings.Builder, c string) {
	sb.WriteString(strings.Repeat(c, 70))
	sb.WriteString("\n")
}

// writeHeader writes the crawl summary.
func (w *SimpleWriter) writeHeader(sb *strings.Builder, report *Report) {
	rule(sb, "=")
	sb.WriteString("                          CSS FINDER REPORT\n")
	rule(sb, "=")
	sb.WriteString("\n")

	fmt.Fprintf(sb, "Start URL:      %s\n", report.Crawl.StartURL)
	fmt.Fprintf(sb, "Page Limit:     %d\n", report.Crawl.PageLimit)
	fmt.Fprintf(sb, "Same Domain:    %t\n", report.Crawl.SameDomainOnly)
	fmt.Fprintf(sb, "Pages Crawled:  %d\n", report.PagesCrawled)
	if report.Cached {
		sb.WriteString("Source:         cache\n")
	}
	if report.Stopped {
		sb.WriteString("Status:         stopped at page limit\n")
	}
	sb.WriteString("\n")
}

// writeSearch writes the matches of one query.
func (w *SimpleWriter) writeSearch(sb *strings.Builder, s Search) {
	rule(sb, "-")
	sb.WriteString(heading(s))
	sb.WriteString("\n")
	rule(sb, "-")
	sb.WriteString("\n")

	if s.Total == 0 {
		fmt.Fprintf(sb, "  No elements with %s %q found\n\n", s.Query.Kind.Label(), s.Query.Value)
		return
	}
	fmt.Fprintf(sb, "  Found %d element(s) on %d page(s)\n\n", s.Total, len(s.Pages))

	for _, p := range s.Pages {
		fmt.Fprintf(sb, "[+] %s (%d instance(s))\n", p.URL, p.Count)
		for _, in := range p.Instances {
			fmt.Fprintf(sb, "  #%d <%s>\n", in.Number, in.Tag)
			fmt.Fprintf(sb, "    Classes: %s\n", classList(in.Classes))
			fmt.Fprintf(sb, "    ID:      %s\n", orDash(in.ID))
			if in.Text != "" {
				fmt.Fprintf(sb, "    Text:    %s\n", in.Text)
			}
			if w.showHTML {
				fmt.Fprintf(sb, "    HTML:    %s\n", in.HTML)
			}
		}
		sb.WriteString("\n")
	}
}

// writeFailures writes the URLs that could not be fetched.
func (w *SimpleWriter) writeFailures(sb *strings.Builder, report *Report) {
	if len(report.Failures) == 0 {
		return
	}
	rule(sb, "-")
	sb.WriteString("FAILED URLS\n")
	rule(sb, "-")
	sb.WriteString("\n")
	for _, f := range report.Failures {
		fmt.Fprintf(sb, "  [!] %s (%s)\n", f.URL, f.Kind)
	}
	sb.WriteString("\n")
}

// writeCrawledURLs writes the sorted list of fetched pages.
func (w *SimpleWriter) writeCrawledURLs(sb *strings.Builder, report *Report) {
	rule(sb, "-")
	fmt.Fprintf(sb, "ALL CRAWLED URLS (%d)\n", len(report.CrawledURLs))
	rule(sb, "-")
	sb.WriteString("\n")
	for _, u := range report.CrawledURLs {
		fmt.Fprintf(sb, "  %s\n", u)
	}
	sb.WriteString("\n")
}
