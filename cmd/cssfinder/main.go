// Package main provides the entry point for the cssfinder CLI.
//
// cssfinder crawls a website breadth-first and lists every element that
// carries a given CSS class or id, page by page. A single match can be
// previewed as a copy of its page with the element highlighted.
//
// Usage:
//
//	cssfinder find https://example.com --class card
//	cssfinder preview https://example.com --class card --index 2 -o card.html
//	cssfinder serve
//
// See --help for all available options.
package main

func main() {
	Execute()
}
