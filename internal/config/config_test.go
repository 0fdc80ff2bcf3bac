package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// TestNewConfig verifies that NewConfig returns a Config with all expected default values.
func TestNewConfig(t *testing.T) {
	t.Parallel()

	cfg := NewConfig()

	t.Run("default MaxPages is 20", func(t *testing.T) {
		t.Parallel()
		if cfg.MaxPages != 20 {
			t.Errorf("expected MaxPages to be 20, got %d", cfg.MaxPages)
		}
	})

	t.Run("default SameDomainOnly is true", func(t *testing.T) {
		t.Parallel()
		if !cfg.SameDomainOnly {
			t.Error("expected SameDomainOnly to be true")
		}
	})

	t.Run("default Timeout is 10 seconds", func(t *testing.T) {
		t.Parallel()
		if cfg.Timeout != 10*time.Second {
			t.Errorf("expected Timeout to be 10s, got %v", cfg.Timeout)
		}
	})

	t.Run("default MaxBodySize is 5MB", func(t *testing.T) {
		t.Parallel()
		if cfg.MaxBodySize != 5*1024*1024 {
			t.Errorf("expected MaxBodySize to be 5MB, got %d", cfg.MaxBodySize)
		}
	})

	t.Run("default ListenAddress is loopback", func(t *testing.T) {
		t.Parallel()
		if cfg.ListenAddress != "127.0.0.1:8501" {
			t.Errorf("expected ListenAddress to be 127.0.0.1:8501, got %q", cfg.ListenAddress)
		}
	})

	t.Run("defaults are valid", func(t *testing.T) {
		t.Parallel()
		if err := cfg.Validate(); err != nil {
			t.Errorf("expected defaults to validate, got %v", err)
		}
	})

	t.Run("no proxy and no recording by default", func(t *testing.T) {
		t.Parallel()
		if cfg.ProxyAddress != "" || cfg.Record {
			t.Error("expected proxy and recording to be off")
		}
	})
}

// TestConfigValidate tests the Validate method with various invalid configurations.
func TestConfigValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		modify func(*Config)
		want   error
	}{
		{"zero max pages", func(c *Config) { c.MaxPages = 0 }, ErrInvalidMaxPages},
		{"negative max pages", func(c *Config) { c.MaxPages = -3 }, ErrInvalidMaxPages},
		{"zero timeout", func(c *Config) { c.Timeout = 0 }, ErrInvalidTimeout},
		{"both report formats", func(c *Config) { c.JSONReport, c.MarkdownReport = true, true }, ErrConflictingReportFormats},
		{"negative body size", func(c *Config) { c.MaxBodySize = -1 }, ErrInvalidMaxBodySize},
		{"zero concurrency", func(c *Config) { c.Concurrency = 0 }, ErrInvalidConcurrency},
		{"bad proxy", func(c *Config) { c.ProxyAddress = "localhost" }, ErrInvalidProxyAddress},
		{"bad ignore pattern", func(c *Config) { c.IgnorePatterns = []string{"[oops"} }, ErrInvalidPattern},
		{"bad follow pattern", func(c *Config) { c.FollowPatterns = []string{"[a"} }, ErrInvalidPattern},
		{"valid proxy", func(c *Config) { c.ProxyAddress = "127.0.0.1:1080" }, nil},
		{"single report format", func(c *Config) { c.MarkdownReport = true }, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := NewConfig()
			tt.modify(cfg)
			err := cfg.Validate()
			if tt.want == nil {
				if err != nil {
					t.Errorf("expected no error, got %v", err)
				}
				return
			}
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func boolPtr(b bool) *bool { return &b }

// TestFileGetSiteConfig tests merging of defaults and site settings.
func TestFileGetSiteConfig(t *testing.T) {
	t.Parallel()

	cf := &File{
		Defaults: SiteConfig{
			MaxPages:       30,
			IgnorePatterns: []string{"*.pdf"},
		},
		Sites: map[string]SiteConfig{
			"example.com": {
				MaxPages:       5,
				SameDomainOnly: boolPtr(false),
				FollowPatterns: []string{"/docs/**"},
			},
		},
	}

	t.Run("site overrides defaults", func(t *testing.T) {
		t.Parallel()

		got := cf.GetSiteConfig("example.com")
		if got.MaxPages != 5 {
			t.Errorf("expected 5 pages, got %d", got.MaxPages)
		}
		if got.SameDomainOnly == nil || *got.SameDomainOnly {
			t.Error("expected same-domain override to false")
		}
		if len(got.IgnorePatterns) != 1 || got.IgnorePatterns[0] != "*.pdf" {
			t.Errorf("expected default ignore patterns, got %v", got.IgnorePatterns)
		}
		if len(got.FollowPatterns) != 1 {
			t.Errorf("expected site follow patterns, got %v", got.FollowPatterns)
		}
	})

	t.Run("unknown host gets defaults", func(t *testing.T) {
		t.Parallel()

		got := cf.GetSiteConfig("other.test")
		if got.MaxPages != 30 || got.SameDomainOnly != nil || len(got.FollowPatterns) != 0 {
			t.Errorf("unexpected config %+v", got)
		}
	})

	t.Run("ApplySite copies non-zero values", func(t *testing.T) {
		t.Parallel()

		cfg := NewConfig()
		cfg.ApplySite(cf.GetSiteConfig("example.com"))
		if cfg.MaxPages != 5 || cfg.SameDomainOnly {
			t.Errorf("unexpected config %+v", cfg)
		}

		cfg = NewConfig()
		cfg.ApplySite(SiteConfig{})
		if cfg.MaxPages != DefaultMaxPages || !cfg.SameDomainOnly {
			t.Error("an empty site config must not change anything")
		}
	})
}

// TestLoadConfigFile tests loading configuration from YAML files.
func TestLoadConfigFile(t *testing.T) {
	t.Parallel()

	t.Run("returns ErrConfigNotFound for non-existent file", func(t *testing.T) {
		t.Parallel()

		cfg, err := LoadConfigFile("/nonexistent/path/.cssfinder")
		if !errors.Is(err, ErrConfigNotFound) {
			t.Fatalf("expected ErrConfigNotFound, got: %v", err)
		}
		if cfg != nil {
			t.Error("expected nil config when file not found")
		}
	})

	t.Run("loads valid YAML config", func(t *testing.T) {
		t.Parallel()

		configPath := filepath.Join(t.TempDir(), ".cssfinder")
		content := `defaults:
  maxPages: 50
  ignorePatterns:
    - "/logout*"
sites:
  example.com:
    maxPages: 100
    sameDomainOnly: false
    followPatterns:
      - "/blog/**"
`
		if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		cfg, err := LoadConfigFile(configPath)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cfg.Defaults.MaxPages != 50 {
			t.Errorf("expected default max pages 50, got %d", cfg.Defaults.MaxPages)
		}
		site, ok := cfg.Sites["example.com"]
		if !ok {
			t.Fatal("expected example.com in sites")
		}
		if site.MaxPages != 100 || site.SameDomainOnly == nil || *site.SameDomainOnly {
			t.Errorf("unexpected site config %+v", site)
		}
	})

	t.Run("returns error for invalid YAML", func(t *testing.T) {
		t.Parallel()

		configPath := filepath.Join(t.TempDir(), ".cssfinder")
		if err := os.WriteFile(configPath, []byte(`invalid: yaml: content: [}`), 0600); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}
		if _, err := LoadConfigFile(configPath); err == nil {
			t.Error("expected error for invalid YAML")
		}
	})

	t.Run("rejects invalid patterns", func(t *testing.T) {
		t.Parallel()

		configPath := filepath.Join(t.TempDir(), ".cssfinder")
		content := "sites:\n  a.test:\n    ignorePatterns:\n      - \"[broken\"\n"
		if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}
		if _, err := LoadConfigFile(configPath); !errors.Is(err, ErrInvalidPattern) {
			t.Errorf("expected ErrInvalidPattern, got %v", err)
		}
	})

	t.Run("initializes nil Sites map", func(t *testing.T) {
		t.Parallel()

		configPath := filepath.Join(t.TempDir(), ".cssfinder")
		if err := os.WriteFile(configPath, []byte("defaults:\n  maxPages: 25\n"), 0600); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}
		cfg, err := LoadConfigFile(configPath)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cfg.Sites == nil {
			t.Error("expected Sites map to be initialized")
		}
	})
}

// TestFindConfigFile tests the FindConfigFile function.
func TestFindConfigFile(t *testing.T) {
	t.Parallel()

	t.Run("returns explicit path if exists", func(t *testing.T) {
		t.Parallel()

		configPath := filepath.Join(t.TempDir(), "custom.yaml")
		if err := os.WriteFile(configPath, []byte("defaults: {}"), 0600); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}
		if got := FindConfigFile(configPath); got != configPath {
			t.Errorf("expected %q, got %q", configPath, got)
		}
	})

	t.Run("returns empty for non-existent explicit path", func(t *testing.T) {
		t.Parallel()

		if got := FindConfigFile("/nonexistent/path/config.yaml"); got != "" {
			t.Errorf("expected empty string, got %q", got)
		}
	})
}

// TestLoadEnv tests .env and environment overrides.
func TestLoadEnv(t *testing.T) {
	t.Run("reads values from a .env file", func(t *testing.T) {
		envPath := filepath.Join(t.TempDir(), ".env")
		content := "CSSFINDER_USER_AGENT=from-file\nCSSFINDER_PROXY=127.0.0.1:1080\nCSSFINDER_DB_DIR=/tmp/cssfinder-db\n"
		if err := os.WriteFile(envPath, []byte(content), 0600); err != nil {
			t.Fatalf("failed to write env file: %v", err)
		}

		cfg := NewConfig()
		if err := cfg.LoadEnv(envPath); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cfg.UserAgent != "from-file" || cfg.ProxyAddress != "127.0.0.1:1080" || cfg.DBDir != "/tmp/cssfinder-db" {
			t.Errorf("unexpected config %+v", cfg)
		}
		if _, ok := os.LookupEnv(EnvProxy); ok {
			t.Error("the process environment must not be modified")
		}
	})

	t.Run("process environment wins", func(t *testing.T) {
		envPath := filepath.Join(t.TempDir(), ".env")
		if err := os.WriteFile(envPath, []byte("CSSFINDER_USER_AGENT=from-file\n"), 0600); err != nil {
			t.Fatalf("failed to write env file: %v", err)
		}
		t.Setenv(EnvUserAgent, "from-env")

		cfg := NewConfig()
		if err := cfg.LoadEnv(envPath); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cfg.UserAgent != "from-env" {
			t.Errorf("expected from-env, got %q", cfg.UserAgent)
		}
	})

	t.Run("missing files are skipped", func(t *testing.T) {
		cfg := NewConfig()
		if err := cfg.LoadEnv(filepath.Join(t.TempDir(), "missing.env")); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
		if !strings.HasPrefix(cfg.UserAgent, "cssfinder/") {
			t.Errorf("expected the default user agent, got %q", cfg.UserAgent)
		}
	})
}

// TestXDGDirs tests XDG directory functions.
func TestXDGDirs(t *testing.T) {
	t.Parallel()

	for name, dir := range map[string]string{"data": XDGDataDir(), "config": XDGConfigDir()} {
		if filepath.Base(dir) != AppName {
			t.Errorf("%s dir %q does not end with %s", name, dir, AppName)
		}
	}
}
