package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nao1215/cssfinder/internal/database"
	"github.com/nao1215/cssfinder/internal/model"
)

// NewHistoryCmd creates the history command.
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recorded searches",
		Long: `History lists the searches recorded with 'cssfinder find --record' or
'cssfinder serve --record', newest first.

Examples:
  # List the 20 most recent searches
  cssfinder history

  # Show the per-page match counts of search 5
  cssfinder history --show 5

  # Output as JSON
  cssfinder history -n 100 --json`,
		Args: cobra.NoArgs,
		RunE: runHistoryCmd,
	}

	cmd.Flags().IntP("limit", "n", 20, "Maximum number of searches to list (0 lists all)")
	cmd.Flags().Int64P("show", "s", 0, "Show the per-page match counts of one search by ID")
	cmd.Flags().BoolP("json", "j", false, "Output in JSON format")

	return cmd
}

// runHistoryCmd executes the history command.
func runHistoryCmd(cmd *cobra.Command, _ []string) error {
	limit, err := cmd.Flags().GetInt("limit")
	if err != nil {
		return err
	}
	showID, err := cmd.Flags().GetInt64("show")
	if err != nil {
		return err
	}
	jsonOutput, err := cmd.Flags().GetBool("json")
	if err != nil {
		return err
	}

	cfg, err := buildConfig(cmd, "")
	if err != nil {
		return err
	}
	setupLogger(cfg)

	out := cmd.OutOrStdout()
	opts := database.DefaultOptions()
	opts.CreateIfNotExists = false
	db, err := database.Open(cfg.DBDir, opts)
	if errors.Is(err, database.ErrNotFound) {
		fmt.Fprintln(out, "No search history found.")
		fmt.Fprintln(out, "\nUse 'cssfinder find --record <url> --class <name>' to record searches.")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	if showID != 0 {
		return showSearch(ctx, out, db, showID, jsonOutput)
	}
	return listSearches(ctx, out, db, limit, jsonOutput)
}

// listSearches prints recorded searches, newest first.
func listSearches(ctx context.Context, out io.Writer, db *database.HistoryDB, limit int, jsonOutput bool) error {
	records, err := db.ListSearches(ctx, limit)
	if err != nil {
		return fmt.Errorf("failed to list searches: %w", err)
	}

	if jsonOutput {
		if records == nil {
			records = []database.SearchRecord{}
		}
		return writeIndentedJSON(out, records)
	}

	if len(records) == 0 {
		fmt.Fprintln(out, "No searches recorded yet.")
		return nil
	}

	fmt.Fprintf(out, "Recorded searches (%d):\n\n", len(records))
	fmt.Fprintf(out, "  %-6s  %-19s  %-12s  %-7s  %-7s  %s\n", "ID", "Date", "Query", "Pages", "Matches", "URL")
	fmt.Fprintln(out, "  "+strings.Repeat("-", 78))
	for _, r := range records {
		cached := ""
		if r.Cached {
			cached = " (cached)"
		}
		fmt.Fprintf(out, "  %-6d  %-19s  %-12s  %-7d  %-7d  %s%s\n",
			r.ID,
			r.Timestamp.Local().Format("2006-01-02 15:04:05"),
			queryLabel(r),
			r.PagesCrawled,
			r.TotalMatches,
			r.Crawl.StartURL,
			cached,
		)
	}
	fmt.Fprintln(out, "\nUse 'cssfinder history --show <id>' to see the matches per page.")
	return nil
}

// showSearch prints one recorded search with its per-page counts.
func showSearch(ctx context.Context, out io.Writer, db *database.HistoryDB, id int64, jsonOutput bool) error {
	rec, err := db.GetSearch(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to get search: %w", err)
	}
	if rec == nil {
		return fmt.Errorf("search not found: %d", id)
	}

	if jsonOutput {
		return writeIndentedJSON(out, rec)
	}

	fmt.Fprintf(out, "Search #%d: %s on %s\n", rec.ID, queryLabel(*rec), rec.Crawl.StartURL)
	fmt.Fprintf(out, "  Date:         %s\n", rec.Timestamp.Local().Format("2006-01-02 15:04:05"))
	fmt.Fprintf(out, "  Max pages:    %d\n", rec.Crawl.PageLimit)
	fmt.Fprintf(out, "  Same domain:  %t\n", rec.Crawl.SameDomainOnly)
	fmt.Fprintf(out, "  Pages:        %d\n", rec.PagesCrawled)
	fmt.Fprintf(out, "  Matches:      %d\n\n", rec.TotalMatches)

	if len(rec.Pages) == 0 {
		fmt.Fprintln(out, "  No matching pages.")
		return nil
	}
	fmt.Fprintf(out, "  %-8s  %s\n", "Count", "Page")
	fmt.Fprintln(out, "  "+strings.Repeat("-", 60))
	for _, p := range rec.Pages {
		fmt.Fprintf(out, "  %-8d  %s\n", p.Count, p.URL)
	}
	return nil
}

// queryLabel renders a recorded query as `.name` or `#name`.
func queryLabel(r database.SearchRecord) string {
	if r.Query.Kind == model.SearchID {
		return "#" + r.Query.Value
	}
	return "." + r.Query.Value
}

func writeIndentedJSON(out io.Writer, v any) error {
	encoder := json.NewEncoder(out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}
