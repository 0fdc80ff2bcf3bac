package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for cssfinder.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cssfinder",
		Short: "Find elements by CSS class or id across a website",
		Long: `cssfinder crawls a website breadth-first, up to a page limit, and reports
every element that carries a given CSS class or id.

Crawls are cached for the lifetime of the process, so repeated searches
against the same site (for example through 'cssfinder serve') reuse the
pages already fetched.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags that apply to all commands
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")
	cmd.PersistentFlags().Bool("json-log", false, "Write logs as JSON lines")
	cmd.PersistentFlags().StringP("config", "c", "",
		"Configuration file path (default: .cssfinder in current, XDG config or home directory)")
	cmd.PersistentFlags().String("proxy", "",
		"SOCKS5 proxy address for all requests (e.g., 127.0.0.1:1080)")

	cmd.AddCommand(NewFindCmd())
	cmd.AddCommand(NewPreviewCmd())
	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewHistoryCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
