// Package config provides configuration management for the cssdedupe CLI.
//
// Values are layered with koanf: built-in defaults, then cssdedupe.yaml,
// then CSSDEDUPE_* environment variables, then explicitly set flags.
package config

import (
	"github.com/leapstack-labs/cssdedupe/internal/manifest"
	"github.com/leapstack-labs/cssdedupe/internal/plugin"
)

// Config holds all CLI configuration options.
type Config struct {
	AssetPattern    string          `koanf:"asset_pattern"`
	AncestorPattern string          `koanf:"ancestor_pattern"`
	EmitWarnings    bool            `koanf:"emit_warnings"`
	Concurrency     int             `koanf:"concurrency"`
	SourceMap       SourceMapConfig `koanf:"source_map"`
	Build           BuildConfig     `koanf:"build"`
	Manifest        string          `koanf:"manifest"`
	Dir             string          `koanf:"dir"`
	StatePath       string          `koanf:"state_path"`
	History         bool            `koanf:"history"`
	Verbose         bool            `koanf:"verbose"`
	OutputFormat    string          `koanf:"output"`

	// ProjectRoot is the directory relative paths are resolved against.
	ProjectRoot string `koanf:"-"`
}

// SourceMapConfig controls source map reading and writing.
type SourceMapConfig struct {
	Enabled        bool   `koanf:"enabled"`
	Prev           string `koanf:"prev"`
	PrevFile       string `koanf:"prev_file"`
	SourcesContent bool   `koanf:"sources_content"`
}

// BuildConfig holds the esbuild options of the build and watch commands.
type BuildConfig struct {
	EntryPoints []string `koanf:"entry_points"`
	Outdir      string   `koanf:"outdir"`
	Minify      bool     `koanf:"minify"`
	Sourcemap   bool     `koanf:"sourcemap"`
	Splitting   bool     `koanf:"splitting"`
	Format      string   `koanf:"format"`
}

// Default configuration values.
const (
	DefaultAssetPattern = plugin.DefaultAssetPattern
	DefaultConcurrency  = 1
	DefaultDir          = "dist"
	DefaultOutdir       = "dist"
	DefaultFormat       = "esm"
	DefaultStateFile    = ".cssdedupe/history.db"
	DefaultOutput       = "auto" // Auto-detect: TTY=text, non-TTY=markdown
)

// ConfigFileNames are looked up, in order, in the project root.
var ConfigFileNames = []string{"cssdedupe.yaml", "cssdedupe.yml"}

// Default returns the configuration used when nothing is loaded.
func Default() *Config {
	return &Config{
		AssetPattern: DefaultAssetPattern,
		EmitWarnings: true,
		Concurrency:  DefaultConcurrency,
		Build: BuildConfig{
			Outdir:    DefaultOutdir,
			Splitting: true,
			Format:    DefaultFormat,
		},
		Dir:          DefaultDir,
		StatePath:    DefaultStateFile,
		History:      true,
		OutputFormat: DefaultOutput,
	}
}

// ManifestPath returns the manifest file, defaulting to chunks.yaml in Dir.
func (c *Config) ManifestPath() string {
	if c.Manifest != "" {
		return c.Manifest
	}
	return joinPath(c.Dir, manifest.DefaultFile)
}
