package config

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"

	"github.com/nao1215/cssfinder/internal/httpclient"
)

// Default configuration values.
const (
	// DefaultTimeout is the fixed per-request timeout.
	DefaultTimeout = 10 * time.Second

	// DefaultMaxPages is the number of URLs a crawl may visit when no limit
	// is given.
	DefaultMaxPages = 20

	// DefaultMaxBodySize limits the maximum response body size to read.
	DefaultMaxBodySize = 5 * 1024 * 1024 // 5MB

	// DefaultListenAddress is where `cssfinder serve` listens.
	DefaultListenAddress = "127.0.0.1:8501"

	// DefaultConcurrency is the number of queries searched at once.
	DefaultConcurrency = 4

	// AppName is the application name used for XDG directory paths.
	AppName = "cssfinder"
)

// DefaultUserAgent identifies cssfinder in HTTP requests.
var DefaultUserAgent = "cssfinder/dev (+https://github.com/nao1215/cssfinder)"

// Config holds all configuration options for cssfinder.
// It is populated from defaults, the configuration file, .env files and CLI
// flags, in that order, and passed down explicitly.
type Config struct {
	// MaxPages is the maximum number of URLs a crawl visits, including URLs
	// that fail to fetch.
	MaxPages int

	// SameDomainOnly restricts the crawl to the start URL's scheme and host.
	SameDomainOnly bool

	// Timeout is the per-request timeout. It is not exposed as a flag.
	Timeout time.Duration

	// UserAgent is the User-Agent header sent with HTTP requests.
	UserAgent string

	// MaxBodySize is the maximum response body size in bytes to read.
	// Set to 0 to use the default (5MB).
	MaxBodySize int64

	// ProxyAddress is an optional SOCKS5 proxy in "host:port" format.
	ProxyAddress string

	// IgnorePatterns and FollowPatterns filter crawled URL paths.
	// They come from the configuration file.
	IgnorePatterns []string
	FollowPatterns []string

	// Concurrency is the number of queries searched at once.
	Concurrency int

	// Verbose enables detailed log output using slog.LevelDebug.
	// When false, only warnings and errors are logged.
	Verbose bool

	// JSONLog switches log output to JSON lines.
	JSONLog bool

	// ConfigFilePath is the path to the configuration file.
	// If empty, FindConfigFile searches the default locations.
	ConfigFilePath string

	// SiteConfigs holds the parsed configuration file, if any.
	SiteConfigs *File

	// JSONReport enables JSON output instead of the human-readable format.
	// Mutually exclusive with MarkdownReport.
	JSONReport bool

	// MarkdownReport enables Markdown output instead of the human-readable
	// format. Mutually exclusive with JSONReport.
	MarkdownReport bool

	// ReportFile is the output file path for the report.
	// When set, the report is written to this file instead of stdout.
	ReportFile string

	// DBDir is the directory holding the search history database.
	// Defaults to the XDG data directory.
	DBDir string

	// Record stores a summary of each search in the history database.
	Record bool

	// ListenAddress is the address `cssfinder serve` listens on.
	ListenAddress string
}

// NewConfig creates a new Config with default values.
func NewConfig() *Config {
	return &Config{
		MaxPages:       DefaultMaxPages,
		SameDomainOnly: true,
		Timeout:        DefaultTimeout,
		UserAgent:      DefaultUserAgent,
		MaxBodySize:    DefaultMaxBodySize,
		Concurrency:    DefaultConcurrency,
		DBDir:          XDGDataDir(),
		ListenAddress:  DefaultListenAddress,
	}
}

// XDGDataDir returns the XDG data directory for cssfinder.
// On Linux: ~/.local/share/cssfinder
// On macOS: ~/Library/Application Support/cssfinder
// On Windows: %LOCALAPPDATA%\cssfinder
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for cssfinder.
// On Linux: ~/.config/cssfinder
// On macOS: ~/Library/Application Support/cssfinder
// On Windows: %APPDATA%\cssfinder
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// ApplySite copies the crawl settings of site into c. Zero values in site
// leave c unchanged.
func (c *Config) ApplySite(site SiteConfig) {
	if site.MaxPages != 0 {
		c.MaxPages = site.MaxPages
	}
	if site.SameDomainOnly != nil {
		c.SameDomainOnly = *site.SameDomainOnly
	}
	if len(site.IgnorePatterns) > 0 {
		c.IgnorePatterns = site.IgnorePatterns
	}
	if len(site.FollowPatterns) > 0 {
		c.FollowPatterns = site.FollowPatterns
	}
}

// Validate checks if the configuration is valid.
// It returns the first problem found.
func (c *Config) Validate() error {
	if c.MaxPages < 1 {
		return ErrInvalidMaxPages
	}

	// Timeout must be positive; zero timeout would cause immediate failures
	if c.Timeout <= 0 {
		return ErrInvalidTimeout
	}

	// JSONReport and MarkdownReport are mutually exclusive
	if c.JSONReport && c.MarkdownReport {
		return ErrConflictingReportFormats
	}

	if c.MaxBodySize < 0 {
		return ErrInvalidMaxBodySize
	}

	if c.Concurrency < 1 {
		return ErrInvalidConcurrency
	}

	if c.ProxyAddress != "" && !httpclient.IsValidProxyAddress(c.ProxyAddress) {
		return fmt.Errorf("%w: %q", ErrInvalidProxyAddress, c.ProxyAddress)
	}

	if err := validatePatterns(c.IgnorePatterns); err != nil {
		return err
	}
	return validatePatterns(c.FollowPatterns)
}
