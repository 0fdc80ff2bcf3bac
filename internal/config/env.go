package config

import (
	"errors"
	"fmt"
	"io/fs"
	"maps"
	"os"

	"github.com/joho/godotenv"
)

// Environment variables read by LoadEnv.
const (
	EnvUserAgent = "CSSFINDER_USER_AGENT"
	EnvProxy     = "CSSFINDER_PROXY"
	EnvDBDir     = "CSSFINDER_DB_DIR"
)

// DefaultEnvFile is the .env file read from the working directory.
const DefaultEnvFile = ".env"

// LoadEnv applies CSSFINDER_* settings to c. Values come from the given .env
// files (missing files are skipped) and are overridden by the process
// environment. The process environment itself is never modified.
func (c *Config) LoadEnv(files ...string) error {
	values := make(map[string]string)
	for _, f := range files {
		vals, err := godotenv.Read(f)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("failed to read %s: %w", f, err)
		}
		maps.Copy(values, vals)
	}

	lookup := func(key string) string {
		if v, ok := os.LookupEnv(key); ok {
			return v
		}
		return values[key]
	}

	if v := lookup(EnvUserAgent); v != "" {
		c.UserAgent = v
	}
	if v := lookup(EnvProxy); v != "" {
		c.ProxyAddress = v
	}
	if v := lookup(EnvDBDir); v != "" {
		c.DBDir = v
	}
	return nil
}
