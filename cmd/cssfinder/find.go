package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nao1215/cssfinder/internal/report"
)

// NewFindCmd creates the find command.
func NewFindCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "find <url>",
		Short: "List elements with a CSS class or id on every crawled page",
		Long: `Find crawls a website breadth-first from the given URL and lists every
element carrying the requested class or id, grouped by page.

The crawl visits at most --max-pages URLs (failed URLs count too) and by
default stays on the start URL's scheme and host. Several --class and --id
flags may be combined; the site is crawled once for all of them.

Examples:
  # Find every element with class "card"
  cssfinder find https://example.com --class card

  # Search a class and an id in one crawl of up to 50 pages
  cssfinder find https://example.com --class card --id main -p 50

  # Write a Markdown report
  cssfinder find https://example.com --class card -m -o report.md

  # Save a JSON report and still see the results in the terminal
  cssfinder find https://example.com --class card -j -o report.json --tee

  # Record the search in the history database
  cssfinder find https://example.com --class card --record`,
		Args: cobra.ExactArgs(1),
		RunE: runFindCmd,
	}

	cmd.Flags().StringArray("class", nil, "CSS class to search for (repeatable)")
	cmd.Flags().StringArray("id", nil, "Element id to search for (repeatable)")
	addCrawlFlags(cmd)

	// Report flags
	cmd.Flags().BoolP("json", "j", false,
		"Output JSON report (mutually exclusive with --markdown)")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output Markdown report (mutually exclusive with --json)")
	cmd.Flags().StringP("output", "o", "",
		"Write report to specified file path (creates directories if needed)")
	cmd.Flags().Bool("tee", false, "With --output, also print the text report to stdout")
	cmd.Flags().Bool("no-html", false, "Omit element HTML from the text report")
	cmd.Flags().Bool("no-urls", false, "Omit the list of crawled URLs from the text report")
	cmd.Flags().BoolP("quiet", "q", false, "Do not print crawl progress")
	cmd.Flags().Bool("record", false, "Record the search in the history database")

	return cmd
}

// runFindCmd executes the find command.
func runFindCmd(cmd *cobra.Command, args []string) error {
	startURL := args[0]
	cfg, err := buildConfig(cmd, startURL)
	if err != nil {
		return err
	}
	if cfg.JSONReport, err = cmd.Flags().GetBool("json"); err != nil {
		return err
	}
	if cfg.MarkdownReport, err = cmd.Flags().GetBool("markdown"); err != nil {
		return err
	}
	if cfg.ReportFile, err = cmd.Flags().GetString("output"); err != nil {
		return err
	}
	noHTML, err := cmd.Flags().GetBool("no-html")
	if err != nil {
		return err
	}
	noURLs, err := cmd.Flags().GetBool("no-urls")
	if err != nil {
		return err
	}
	tee, err := cmd.Flags().GetBool("tee")
	if err != nil {
		return err
	}
	quiet, err := cmd.Flags().GetBool("quiet")
	if err != nil {
		return err
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	queries, err := queriesFromFlags(cmd)
	if err != nil {
		return err
	}
	if len(queries) == 0 {
		return errors.New("specify at least one --class or --id")
	}

	logger := setupLogger(cfg)
	ctx, cancel := signalContext(cmd)
	defer cancel()

	sess, err := openSession(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer sess.Close()

	logger.Info("starting search",
		"url", startURL,
		"max_pages", cfg.MaxPages,
		"same_domain_only", cfg.SameDomainOnly,
		"queries", len(queries),
	)

	out, err := sess.SearchAll(ctx, crawlRequest(cfg, startURL), queries,
		progressPrinter(cmd.ErrOrStderr(), quiet))
	if err != nil {
		return err
	}

	rep := report.New(out.Result, out.Results, out.Cached)
	opts := reportOptions{showHTML: !noHTML, showURLs: !noURLs, tee: tee}
	if err := outputReport(cfg, rep, cmd.OutOrStdout(), opts); err != nil {
		return err
	}
	if cfg.ReportFile != "" {
		fmt.Fprintf(cmd.ErrOrStderr(), "Report written to %s (%d matches on %d pages crawled)\n",
			cfg.ReportFile, rep.TotalMatches(), rep.PagesCrawled)
	}
	return nil
}
