package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/nao1215/cssfinder/internal/model"
	"github.com/nao1215/cssfinder/internal/session"
)

// NewPreviewCmd creates the preview command.
func NewPreviewCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "preview <url>",
		Short: "Render a page with one matching element highlighted",
		Long: `Preview crawls the site like 'find', picks one match and writes a copy of
its page with that element highlighted and scrolled into view.

--page selects the page holding the match; without it the first page with
a match is used. --index is the zero-based position of the match within
that page.

Examples:
  # Highlight the third "card" on the first page that has one
  cssfinder preview https://example.com --class card --index 2 -o card.html

  # Highlight the element with id "main" on a specific page
  cssfinder preview https://example.com --id main --page https://example.com/about`,
		Args: cobra.ExactArgs(1),
		RunE: runPreviewCmd,
	}

	cmd.Flags().String("class", "", "CSS class of the element")
	cmd.Flags().String("id", "", "Element id")
	cmd.Flags().String("page", "", "URL of the page holding the match (default: first page with a match)")
	cmd.Flags().Int("index", 0, "Zero-based match index within the page")
	addCrawlFlags(cmd)
	cmd.Flags().StringP("output", "o", "",
		"Write the highlighted page to this file instead of stdout")
	cmd.Flags().BoolP("quiet", "q", false, "Do not print crawl progress")

	return cmd
}

// previewQuery returns the single query given with --class or --id.
func previewQuery(cmd *cobra.Command) (model.Query, error) {
	class, err := cmd.Flags().GetString("class")
	if err != nil {
		return model.Query{}, err
	}
	id, err := cmd.Flags().GetString("id")
	if err != nil {
		return model.Query{}, err
	}
	switch {
	case changed(cmd, "class") && changed(cmd, "id"):
		return model.Query{}, errors.New("specify exactly one of --class or --id")
	case changed(cmd, "class"):
		return model.Query{Kind: model.SearchClass, Value: class}, nil
	case changed(cmd, "id"):
		return model.Query{Kind: model.SearchID, Value: id}, nil
	default:
		return model.Query{}, errors.New("specify exactly one of --class or --id")
	}
}

// runPreviewCmd executes the preview command.
func runPreviewCmd(cmd *cobra.Command, args []string) error {
	startURL := args[0]
	cfg, err := buildConfig(cmd, startURL)
	if err != nil {
		return err
	}
	if cfg.ReportFile, err = cmd.Flags().GetString("output"); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	query, err := previewQuery(cmd)
	if err != nil {
		return err
	}
	pageURL, err := cmd.Flags().GetString("page")
	if err != nil {
		return err
	}
	index, err := cmd.Flags().GetInt("index")
	if err != nil {
		return err
	}
	quiet, err := cmd.Flags().GetBool("quiet")
	if err != nil {
		return err
	}

	logger := setupLogger(cfg)
	ctx, cancel := signalContext(cmd)
	defer cancel()

	sess, err := openSession(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer sess.Close()

	stderr := cmd.ErrOrStderr()
	out, err := sess.Preview(ctx, session.PreviewRequest{
		SearchRequest: session.SearchRequest{
			CrawlRequest: crawlRequest(cfg, startURL),
			Query:        query,
		},
		PageURL:    pageURL,
		MatchIndex: index,
	}, progressPrinter(stderr, quiet))
	if err != nil {
		return err
	}

	if out.Warning != "" {
		fmt.Fprintf(stderr, "Warning: %s; the page is shown without highlighting\n", out.Warning)
	}

	output, closeOutput, err := openOutput(cfg.ReportFile, cmd.OutOrStdout())
	if err != nil {
		return err
	}
	if _, err := io.WriteString(output, out.Highlighted.HTML); err != nil {
		_ = closeOutput() //nolint:errcheck // the write error is reported
		return fmt.Errorf("failed to write preview: %w", err)
	}
	if err := closeOutput(); err != nil {
		return err
	}

	sel := out.Selection
	fmt.Fprintf(stderr, "Instance #%d of %s %q on %s (<%s>)\n",
		sel.Instance(), query.Kind.Label(), query.Value, sel.PageURL, sel.Tag)
	if cfg.ReportFile != "" {
		fmt.Fprintf(stderr, "Preview written to %s\n", cfg.ReportFile)
	}
	return nil
}
