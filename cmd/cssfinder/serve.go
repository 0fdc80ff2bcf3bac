package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/nao1215/cssfinder/internal/config"
	"github.com/nao1215/cssfinder/internal/server"
)

// shutdownTimeout bounds the graceful shutdown of the HTTP server.
const shutdownTimeout = 10 * time.Second

// NewServeCmd creates the serve command.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the search API over HTTP",
		Long: `Serve starts a local HTTP API backed by one crawl cache, so repeated
searches and previews of the same site reuse the pages already fetched.

--max-pages and --same-domain set the defaults for requests that omit them.

Routes:
  GET    /api/v1/health
  POST   /api/v1/crawl
  GET    /api/v1/search?url=...&class=...&id=...&format=json|markdown|text
  GET    /api/v1/preview?url=...&class=...&page=...&index=...
  GET    /api/v1/cache
  DELETE /api/v1/cache
  GET    /api/v1/history?limit=...
  GET    /metrics

Examples:
  cssfinder serve
  cssfinder serve --listen 127.0.0.1:9000 --record`,
		Args: cobra.NoArgs,
		RunE: runServeCmd,
	}

	cmd.Flags().StringP("listen", "l", config.DefaultListenAddress, "Address to listen on")
	addCrawlFlags(cmd)
	cmd.Flags().Bool("record", false, "Record searches in the history database")

	return cmd
}

// runServeCmd executes the serve command.
func runServeCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := buildConfig(cmd, "")
	if err != nil {
		return err
	}
	if changed(cmd, "listen") {
		if cfg.ListenAddress, err = cmd.Flags().GetString("listen"); err != nil {
			return err
		}
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger := setupLogger(cfg)
	ctx, cancel := signalContext(cmd)
	defer cancel()

	sess, err := openSession(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer sess.Close()

	handler := server.NewServer(sess,
		server.WithDefaults(cfg.MaxPages, cfg.SameDomainOnly),
		server.WithVersion(getVersion()),
		server.WithLogger(logger),
	)

	// A search crawls synchronously, so writes may take minutes.
	srv := &http.Server{
		Addr:              cfg.ListenAddress,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      5 * time.Minute,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		fmt.Fprintf(cmd.ErrOrStderr(), "cssfinder %s listening on http://%s\n", getVersion(), cfg.ListenAddress)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("received shutdown signal, shutting down server...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	fmt.Fprintln(cmd.ErrOrStderr(), "Server stopped")
	return nil
}
