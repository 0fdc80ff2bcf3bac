// Package report renders search results for people and tools.
//
// A Report is built once from a crawl result and the query results run
// against it, then handed to a Writer:
//   - SimpleWriter: plain text for the terminal
//   - MarkdownWriter: Markdown for sharing
//   - JSONWriter: JSON for tool integration
//
// Long element HTML and text are truncated when the Report is built, so
// every writer shows the same excerpt.
package report
