// Package config provides configuration structures and utilities for
// cssfinder. It defines crawl limits, output preferences, the optional
// per-site settings file and environment overrides.
package config
