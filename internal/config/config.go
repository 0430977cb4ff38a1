// Package config loads the core's optional TOML settings file: clangd
// path overrides, timeouts, and discovery limits. Everything has a
// sensible default; the file itself is optional.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Config holds the tunables the core needs that aren't discovered at
// runtime.
type Config struct {
	// ClangdPath overrides the clangd binary location. Empty means
	// resolve "clangd" on PATH, unless CLANGD_PATH is set in the
	// environment (checked by the caller, not here).
	ClangdPath string `toml:"clangd_path"`

	// InitTimeout bounds how long `initialize` may take before a
	// session construction fails with OperationTimeout.
	InitTimeout time.Duration `toml:"-"`
	InitTimeoutMS int64 `toml:"init_timeout_ms"`

	// RequestTimeout is loaded for callers; nothing in this module reads
	// it, and an LSP request is bounded only by the ctx passed with it.
	RequestTimeout time.Duration `toml:"-"`
	RequestTimeoutMS int64 `toml:"request_timeout_ms"`

	// LatchTimeout is loaded for callers; nothing in this module reads
	// it, and EnsureIndexed waits as long as the ctx passed to it allows.
	LatchTimeout time.Duration `toml:"-"`
	LatchTimeoutMS int64 `toml:"latch_timeout_ms"`

	// MaxIndexFileCap bounds how many `*.idx` files Storage.ListIndexFiles
	// will return for one directory, as a defensive cap against a
	// misconfigured or enormous build directory.
	MaxIndexFileCap int `toml:"max_index_file_cap"`

	// MaxScanDepth bounds how deep the project scanner recurses while
	// looking for a build directory during dynamic discovery.
	MaxScanDepth int `toml:"max_scan_depth"`

	// ClangdArgs are extra arguments appended after the core's own
	// required flags when spawning clangd.
	ClangdArgs []string `toml:"clangd_args"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		InitTimeout:    30 * time.Second,
		InitTimeoutMS:  30_000,
		RequestTimeout: 30 * time.Second,
		RequestTimeoutMS: 30_000,
		LatchTimeout:   5 * time.Minute,
		LatchTimeoutMS: 300_000,
		MaxIndexFileCap: 64,
		MaxScanDepth:    6,
	}
}

// Load reads a TOML config file at path, falling back to Default() for any
// field left unset (a zero value in the file for a duration field is
// treated as "use the default", since a zero timeout is never useful).
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	cfg.resolveDurations()
	return cfg, nil
}

func (c *Config) resolveDurations() {
	if c.InitTimeoutMS > 0 {
		c.InitTimeout = time.Duration(c.InitTimeoutMS) * time.Millisecond
	}
	if c.RequestTimeoutMS > 0 {
		c.RequestTimeout = time.Duration(c.RequestTimeoutMS) * time.Millisecond
	}
	if c.LatchTimeoutMS > 0 {
		c.LatchTimeout = time.Duration(c.LatchTimeoutMS) * time.Millisecond
	}
	if c.MaxIndexFileCap <= 0 {
		c.MaxIndexFileCap = Default().MaxIndexFileCap
	}
	if c.MaxScanDepth <= 0 {
		c.MaxScanDepth = Default().MaxScanDepth
	}
}
