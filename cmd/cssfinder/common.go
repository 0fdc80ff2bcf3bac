package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nao1215/cssfinder/internal/config"
	"github.com/nao1215/cssfinder/internal/crawler"
	"github.com/nao1215/cssfinder/internal/database"
	"github.com/nao1215/cssfinder/internal/httpclient"
	"github.com/nao1215/cssfinder/internal/log"
	"github.com/nao1215/cssfinder/internal/model"
	"github.com/nao1215/cssfinder/internal/report"
	"github.com/nao1215/cssfinder/internal/session"
)

// addCrawlFlags registers the flags shared by commands that crawl.
func addCrawlFlags(cmd *cobra.Command) {
	cmd.Flags().IntP("max-pages", "p", config.DefaultMaxPages,
		"Maximum number of URLs to visit, failed ones included")
	cmd.Flags().Bool("same-domain", true,
		"Only follow links with the start URL's scheme and host")
}

// getBoolFlag retrieves a bool flag from the command or its parent.
func getBoolFlag(cmd *cobra.Command, name string) bool {
	v, err := cmd.Flags().GetBool(name)
	if err != nil {
		v, err = cmd.Root().PersistentFlags().GetBool(name)
		if err != nil {
			return false
		}
	}
	return v
}

// getStringFlag retrieves a string flag from the command or its parent.
func getStringFlag(cmd *cobra.Command, name string) string {
	v, err := cmd.Flags().GetString(name)
	if err != nil {
		v, err = cmd.Root().PersistentFlags().GetString(name)
		if err != nil {
			return ""
		}
	}
	return v
}

// changed reports whether a local flag exists and was set by the user.
func changed(cmd *cobra.Command, name string) bool {
	f := cmd.Flags().Lookup(name)
	return f != nil && f.Changed
}

// buildConfig creates a Config from defaults, .env, the configuration file
// and command flags, in that order. startURL selects the site section of the
// configuration file; it may be empty.
func buildConfig(cmd *cobra.Command, startURL string) (*config.Config, error) {
	cfg := config.NewConfig()
	cfg.UserAgent = userAgent()

	if err := cfg.LoadEnv(config.DefaultEnvFile); err != nil {
		return nil, err
	}

	cfg.Verbose = getBoolFlag(cmd, "verbose")
	cfg.JSONLog = getBoolFlag(cmd, "json-log")
	cfg.ConfigFilePath = getStringFlag(cmd, "config")
	if proxy := getStringFlag(cmd, "proxy"); proxy != "" {
		cfg.ProxyAddress = proxy
	}

	// If user explicitly specified a config file path, error if not found.
	// If no path specified, silently use empty config if no file found.
	explicitConfigPath := cfg.ConfigFilePath != ""
	configPath := config.FindConfigFile(cfg.ConfigFilePath)

	var err error
	if configPath != "" {
		cfg.SiteConfigs, err = config.LoadConfigFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	} else if explicitConfigPath {
		return nil, fmt.Errorf("configuration file not found: %s", cfg.ConfigFilePath)
	} else {
		cfg.SiteConfigs = &config.File{
			Sites: make(map[string]config.SiteConfig),
		}
	}

	var host string
	if startURL != "" {
		if u, err := url.Parse(startURL); err == nil {
			host = u.Host
		}
	}
	cfg.ApplySite(cfg.SiteConfigs.GetSiteConfig(host))

	// Flags win over the configuration file only when given.
	if changed(cmd, "max-pages") {
		if cfg.MaxPages, err = cmd.Flags().GetInt("max-pages"); err != nil {
			return nil, err
		}
	}
	if changed(cmd, "same-domain") {
		if cfg.SameDomainOnly, err = cmd.Flags().GetBool("same-domain"); err != nil {
			return nil, err
		}
	}
	if cmd.Flags().Lookup("record") != nil {
		if cfg.Record, err = cmd.Flags().GetBool("record"); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// setupLogger creates the structured logger for cfg and makes it the
// default.
func setupLogger(cfg *config.Config) *slog.Logger {
	var logger *slog.Logger
	if cfg.JSONLog {
		logger = log.NewJSONLogger(os.Stderr, cfg.Verbose)
	} else {
		logger = log.NewLogger(os.Stderr, cfg.Verbose)
	}
	slog.SetDefault(logger)
	return logger
}

// signalContext returns a context cancelled on SIGINT or SIGTERM.
func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

// openSession verifies the proxy, opens the history database when
// recording, and creates the Session.
func openSession(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*session.Session, error) {
	if cfg.ProxyAddress != "" {
		if status := httpclient.CheckProxy(ctx, cfg.ProxyAddress); status != httpclient.ProxyStatusOK {
			return nil, fmt.Errorf("proxy check failed: %s (make sure a SOCKS5 proxy is running at %s)",
				status, cfg.ProxyAddress)
		}
		logger.Info("proxy connection verified", "address", cfg.ProxyAddress)
	}

	opts := []session.Option{session.WithLogger(logger)}
	var db *database.HistoryDB
	if cfg.Record {
		var err error
		db, err = database.Open(cfg.DBDir, database.DefaultOptions())
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
		logger.Info("database opened", "path", db.Path())
		opts = append(opts, session.WithHistory(db))
	}

	sess, err := session.New(cfg, opts...)
	if err != nil {
		if db != nil {
			_ = db.Close() //nolint:errcheck // best effort cleanup
		}
		return nil, err
	}
	return sess, nil
}

// crawlRequest builds the crawl request of cfg for startURL.
func crawlRequest(cfg *config.Config, startURL string) session.CrawlRequest {
	return session.CrawlRequest{
		StartURL:       startURL,
		PageLimit:      cfg.MaxPages,
		SameDomainOnly: cfg.SameDomainOnly,
	}
}

// queriesFromFlags collects --class and --id values, classes first.
func queriesFromFlags(cmd *cobra.Command) ([]model.Query, error) {
	classes, err := cmd.Flags().GetStringArray("class")
	if err != nil {
		return nil, err
	}
	ids, err := cmd.Flags().GetStringArray("id")
	if err != nil {
		return nil, err
	}
	queries := make([]model.Query, 0, len(classes)+len(ids))
	for _, v := range classes {
		queries = append(queries, model.Query{Kind: model.SearchClass, Value: v})
	}
	for _, v := range ids {
		queries = append(queries, model.Query{Kind: model.SearchID, Value: v})
	}
	return queries, nil
}

// progressPrinter returns a ProgressFunc that reports each visited URL to w.
// It returns nil when quiet is set.
func progressPrinter(w io.Writer, quiet bool) crawler.ProgressFunc {
	if quiet {
		return nil
	}
	return func(p crawler.Progress) {
		if p.Err != nil {
			fmt.Fprintf(w, "Crawling page %d/%d: %s (failed: %v)\n", p.Visited, p.Limit, p.URL, p.Err)
			return
		}
		fmt.Fprintf(w, "Crawling page %d/%d: %s\n", p.Visited, p.Limit, p.URL)
	}
}

// openOutput returns the report destination: path when set, stdout
// otherwise. The returned close function is never nil.
func openOutput(path string, stdout io.Writer) (io.Writer, func() error, error) {
	if path == "" {
		return stdout, func() error { return nil }, nil
	}

	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, nil, fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	// Reports may contain page content, so only the owner can read them.
	f, err := os.OpenFile(filepath.Clean(path), os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create output file: %w", err)
	}
	return f, f.Close, nil
}

// reportOptions holds the text report switches of the find command.
type reportOptions struct {
	showHTML bool
	showURLs bool

	// tee also prints the text report to stdout when the report goes to a
	// file.
	tee bool
}

// outputReport writes rep in the format selected by cfg.
func outputReport(cfg *config.Config, rep *report.Report, stdout io.Writer, opts reportOptions) error {
	output, closeOutput, err := openOutput(cfg.ReportFile, stdout)
	if err != nil {
		return err
	}

	textOpts := []report.SimpleWriterOption{
		report.WithHTML(opts.showHTML),
		report.WithCrawledURLs(opts.showURLs),
	}

	var writer report.Writer
	switch {
	case cfg.JSONReport:
		writer = report.NewJSONWriter(output, report.WithPrettyPrint())
	case cfg.MarkdownReport:
		writer = report.NewMarkdownWriter(output)
	default:
		writer = report.NewSimpleWriter(output, textOpts...)
	}
	if opts.tee && cfg.ReportFile != "" {
		writer = report.NewMultiWriter(writer, report.NewSimpleWriter(stdout, textOpts...))
	}

	if _, err := writer.Write(rep); err != nil {
		_ = closeOutput() //nolint:errcheck // the write error is reported
		return fmt.Errorf("failed to write report: %w", err)
	}
	return closeOutput()
}
