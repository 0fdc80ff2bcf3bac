package config

import (
	"fmt"
	"maps"
	"slices"

	"github.com/gobwas/glob"
)

// SiteConfig holds crawl settings for one host.
type SiteConfig struct {
	// MaxPages overrides the page limit for this site.
	// If zero, the global MaxPages is used.
	MaxPages int `yaml:"maxPages,omitempty"`

	// SameDomainOnly overrides the domain scope for this site.
	SameDomainOnly *bool `yaml:"sameDomainOnly,omitempty"`

	// IgnorePatterns are URL patterns to skip during crawling.
	// Patterns are matched against the URL path using glob syntax.
	IgnorePatterns []string `yaml:"ignorePatterns,omitempty"`

	// FollowPatterns are URL patterns to follow during crawling.
	// If specified, only URLs matching these patterns are crawled.
	FollowPatterns []string `yaml:"followPatterns,omitempty"`
}

// File represents the structure of the .cssfinder configuration file.
type File struct {
	// Sites maps hosts (e.g., "example.com" or "localhost:8080") to their
	// configuration.
	Sites map[string]SiteConfig `yaml:"sites,omitempty"`

	// Defaults contains default site configuration applied to all sites
	// unless overridden in the site-specific configuration.
	Defaults SiteConfig `yaml:"defaults,omitempty"`
}

// GetSiteConfig returns the configuration for host.
// It merges the site-specific configuration with defaults.
func (cf *File) GetSiteConfig(host string) SiteConfig {
	result := cf.Defaults

	if siteConfig, ok := cf.Sites[host]; ok {
		if siteConfig.MaxPages != 0 {
			result.MaxPages = siteConfig.MaxPages
		}
		if siteConfig.SameDomainOnly != nil {
			result.SameDomainOnly = siteConfig.SameDomainOnly
		}
		if len(siteConfig.IgnorePatterns) > 0 {
			result.IgnorePatterns = siteConfig.IgnorePatterns
		}
		if len(siteConfig.FollowPatterns) > 0 {
			result.FollowPatterns = siteConfig.FollowPatterns
		}
	}

	return result
}

// Validate checks every pattern in the file.
func (cf *File) Validate() error {
	sites := append([]SiteConfig{cf.Defaults}, slices.Collect(maps.Values(cf.Sites))...)
	for _, s := range sites {
		if s.MaxPages < 0 {
			return ErrInvalidMaxPages
		}
		if err := validatePatterns(s.IgnorePatterns); err != nil {
			return err
		}
		if err := validatePatterns(s.FollowPatterns); err != nil {
			return err
		}
	}
	return nil
}

func validatePatterns(patterns []string) error {
	for _, p := range patterns {
		if _, err := glob.Compile(p, '/'); err != nil {
			return fmt.Errorf("%w %q: %v", ErrInvalidPattern, p, err)
		}
	}
	return nil
}
