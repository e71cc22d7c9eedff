// Package kconfig assembles the recognized options (§6) into a typed,
// immutable configuration record with derived paths, the way the teacher's
// internal/config.Config is assembled once at startup and threaded through
// every call site afterward. Nothing in this package mutates a package-level
// cell; the design notes in SPEC_FULL.md §1 call this out explicitly as the
// fix for the original implementation's global repo-dir/repo-name cells.
package kconfig

import (
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Compression is one of the five tarball codecs the spec's tarball-name
// table (§6) enumerates.
type Compression string

const (
	CompressionGzip  Compression = "gz"
	CompressionBzip2 Compression = "bz2"
	CompressionLZ4   Compression = "lz4"
	CompressionXZ    Compression = "xz"
	CompressionZstd  Compression = "zst"
)

// Config is the fully resolved set of options from §6: debug, force,
// prompt, strip, compress, cache-dir, tmp-dir, root, path. Every field is
// read-only after Load returns.
type Config struct {
	Debug    bool
	Force    bool
	Prompt   bool
	Strip    bool
	Choice   bool
	Compress Compression

	CacheDir string
	TmpDir   string
	Root     string
	RepoPath []string // ordered repository search path (component C)

	Workers WorkersConfig
}

// WorkersConfig mirrors the teacher's WorkersConfig: worker pool sizes for
// the components that may iterate data in parallel per §5.
type WorkersConfig struct {
	Download    uint
	Compression uint
}

// fileConfig is the on-disk YAML shape; any field left zero falls back to
// the built-in default or the environment variable of the same name.
type fileConfig struct {
	Debug    bool     `yaml:"debug,omitempty"`
	Force    bool     `yaml:"force,omitempty"`
	Prompt   bool     `yaml:"prompt,omitempty"`
	Strip    *bool    `yaml:"strip,omitempty"`
	Choice   bool     `yaml:"choice,omitempty"`
	Compress string   `yaml:"compress,omitempty"`
	CacheDir string   `yaml:"cache_dir,omitempty"`
	TmpDir   string   `yaml:"tmp_dir,omitempty"`
	Root     string   `yaml:"root,omitempty"`
	Path     []string `yaml:"path,omitempty"`
	Workers  struct {
		Download    uint `yaml:"download,omitempty"`
		Compression uint `yaml:"compression,omitempty"`
	} `yaml:"workers,omitempty"`
}

// Load builds a Config from, in increasing priority: built-in defaults, an
// optional YAML file at path (skipped silently if path is empty or the
// file does not exist), and environment variables (KISS_PATH, KISS_ROOT,
// KISS_CACHE_DIR, KISS_TMP_DIR, KISS_COMPRESS, KISS_DEBUG, KISS_FORCE,
// KISS_PROMPT, KISS_CHOICE, KISS_STRIP).
func Load(path string) (*Config, error) {
	var fc fileConfig
	if path != "" {
		data, err := os.ReadFile(path)
		if err == nil {
			if err := yaml.Unmarshal(data, &fc); err != nil {
				return nil, err
			}
		} else if !os.IsNotExist(err) {
			return nil, err
		}
	}

	cfg := &Config{
		Debug:    fc.Debug,
		Force:    fc.Force,
		Prompt:   fc.Prompt,
		Strip:    true,
		Choice:   fc.Choice,
		Compress: Compression(fc.Compress),
		CacheDir: fc.CacheDir,
		TmpDir:   fc.TmpDir,
		Root:     fc.Root,
		RepoPath: fc.Path,
		Workers: WorkersConfig{
			Download:    fc.Workers.Download,
			Compression: fc.Workers.Compression,
		},
	}
	if fc.Strip != nil {
		cfg.Strip = *fc.Strip
	}

	applyEnv(cfg)
	cfg.defaults()

	return cfg, nil
}

// applyEnv overlays environment variables, matching the precedence the
// teacher gives GITHUB_TOKEN over an empty config value.
func applyEnv(c *Config) {
	if v := os.Getenv("KISS_PATH"); v != "" {
		c.RepoPath = strings.Split(v, ":")
	}
	if v := os.Getenv("KISS_ROOT"); v != "" {
		c.Root = v
	}
	if v := os.Getenv("KISS_CACHE_DIR"); v != "" {
		c.CacheDir = v
	}
	if v := os.Getenv("KISS_TMP_DIR"); v != "" {
		c.TmpDir = v
	}
	if v := os.Getenv("KISS_COMPRESS"); v != "" {
		c.Compress = Compression(v)
	}
	if v := os.Getenv("KISS_DEBUG"); v != "" {
		c.Debug = isTruthy(v)
	}
	if v := os.Getenv("KISS_FORCE"); v != "" {
		c.Force = isTruthy(v)
	}
	if v := os.Getenv("KISS_PROMPT"); v != "" {
		c.Prompt = isTruthy(v)
	}
	if v := os.Getenv("KISS_CHOICE"); v != "" {
		c.Choice = isTruthy(v)
	}
	if v := os.Getenv("KISS_STRIP"); v != "" {
		c.Strip = isTruthy(v)
	}
}

func isTruthy(v string) bool {
	b, err := strconv.ParseBool(v)
	return err == nil && b
}

// defaults fills in anything still unset after file and environment
// resolution.
func (c *Config) defaults() {
	if c.Root == "" {
		c.Root = "/"
	}
	if c.CacheDir == "" {
		c.CacheDir = "/var/cache/kiss"
	}
	if c.TmpDir == "" {
		c.TmpDir = filepath.Join(c.CacheDir, "proc")
	}
	if c.Compress == "" {
		c.Compress = CompressionGzip
	}
	if len(c.RepoPath) == 0 {
		c.RepoPath = []string{"/var/db/kiss/repo/core", "/var/db/kiss/repo/extra"}
	}
	if c.Workers.Download == 0 {
		c.Workers.Download = 10
	}
	if c.Workers.Compression == 0 {
		c.Workers.Compression = uint(runtime.NumCPU())
	}
}

// SourceCacheDir returns the directory under which downloaded/checked-out
// sources are cached, scoped so it never collides with the scratch build
// area.
func (c *Config) SourceCacheDir() string {
	return filepath.Join(c.CacheDir, "sources")
}

// BinDir returns the directory where built tarballs are written and
// discovered from.
func (c *Config) BinDir() string {
	return filepath.Join(c.CacheDir, "bin")
}

// ScratchDir returns the per-pid scratch directory for the current process,
// the sole owner of which is this process (§5 Shared-resource policy).
func (c *Config) ScratchDir(pid int) string {
	return filepath.Join(c.TmpDir, "proc", strconv.Itoa(pid))
}

// InstalledDBDir returns <root>/var/db/kiss/installed.
func (c *Config) InstalledDBDir() string {
	return filepath.Join(c.Root, "var/db/kiss/installed")
}

// ChoicesDir returns <root>/var/db/kiss/choices.
func (c *Config) ChoicesDir() string {
	return filepath.Join(c.Root, "var/db/kiss/choices")
}

// ChoicesSubdir is ChoicesDir's path relative to a package's staging root,
// the form the conflict detector needs when writing choices underneath a
// not-yet-installed package's own tree.
const ChoicesSubdir = "var/db/kiss/choices"

// ProvidesPath returns <root>/var/db/kiss/provides, mirroring
// original_source's Config::new (kiss_root.join("var/db/kiss/provides")).
func (c *Config) ProvidesPath() string {
	return filepath.Join(c.Root, "var/db/kiss/provides")
}

// BuildDir returns the scratch directory a package's build script runs in,
// under its process-scoped scratch root.
func (c *Config) BuildDir(pid int, pkg string) string {
	return filepath.Join(c.ScratchDir(pid), "build", pkg)
}

// StageDir returns the scratch directory a package's build script installs
// into (its "--prefix"-equivalent target, staged before packing).
func (c *Config) StageDir(pid int, pkg string) string {
	return filepath.Join(c.ScratchDir(pid), "pkg", pkg)
}

// ExtractDir returns the scratch directory archives are unpacked into
// before a built tarball is reinstalled or inspected.
func (c *Config) ExtractDir(pid int, pkg string) string {
	return filepath.Join(c.ScratchDir(pid), "extract", pkg)
}
