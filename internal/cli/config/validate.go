package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/leapstack-labs/cssdedupe/internal/plugin"
	"github.com/leapstack-labs/cssdedupe/internal/sourcemap"
)

var (
	validOutputs = []string{"auto", "text", "markdown", "json"}
	validFormats = []string{"esm", "iife", "cjs"}
)

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	var errs []error

	if c.AssetPattern == "" {
		errs = append(errs, errors.New("asset_pattern is required"))
	} else if _, err := regexp.Compile(c.AssetPattern); err != nil {
		errs = append(errs, fmt.Errorf("invalid asset_pattern: %w", err))
	}
	if c.AncestorPattern != "" {
		if _, err := regexp.Compile(c.AncestorPattern); err != nil {
			errs = append(errs, fmt.Errorf("invalid ancestor_pattern: %w", err))
		}
	}
	if c.Concurrency < 1 {
		errs = append(errs, fmt.Errorf("concurrency must be at least 1, got %d", c.Concurrency))
	}
	if c.SourceMap.Prev != "" && c.SourceMap.PrevFile != "" {
		errs = append(errs, errors.New("source_map.prev and source_map.prev_file are mutually exclusive"))
	} else if c.SourceMap.Enabled {
		if err := c.checkPrevMap(); err != nil {
			errs = append(errs, err)
		}
	}
	if !oneOf(c.OutputFormat, validOutputs) {
		errs = append(errs, fmt.Errorf("invalid output %q (want %s)", c.OutputFormat, strings.Join(validOutputs, ", ")))
	}
	if !oneOf(strings.ToLower(c.Build.Format), validFormats) {
		errs = append(errs, fmt.Errorf("invalid build.format %q (want %s)", c.Build.Format, strings.Join(validFormats, ", ")))
	}

	return errors.Join(errs...)
}

// checkPrevMap validates the configured previous map, inline or from file.
func (c *Config) checkPrevMap() error {
	switch {
	case c.SourceMap.Prev != "":
		if err := sourcemap.Check(c.SourceMap.Prev); err != nil {
			return fmt.Errorf("invalid source_map.prev: %w", err)
		}
	case c.SourceMap.PrevFile != "":
		data, err := os.ReadFile(c.SourceMap.PrevFile)
		if err != nil {
			return fmt.Errorf("failed to read source_map.prev_file: %w", err)
		}
		if err := sourcemap.Check(string(data)); err != nil {
			return fmt.Errorf("invalid source_map.prev_file %s: %w", c.SourceMap.PrevFile, err)
		}
	}
	return nil
}

// ValidateDir checks that an output directory exists.
func ValidateDir(dir string) error {
	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return fmt.Errorf("output directory does not exist: %s\nHint: run a build first or use --dir to specify a different path", dir)
	}
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("not a directory: %s", dir)
	}
	return nil
}

// PluginOptions converts the configuration into dedupe options. The
// previous map file, if any, is read here.
func (c *Config) PluginOptions() (plugin.Options, error) {
	opts := plugin.DefaultOptions()

	assetRe, err := regexp.Compile(c.AssetPattern)
	if err != nil {
		return opts, fmt.Errorf("invalid asset_pattern: %w", err)
	}
	opts.AssetPattern = assetRe

	if c.AncestorPattern != "" {
		ancestorRe, err := regexp.Compile(c.AncestorPattern)
		if err != nil {
			return opts, fmt.Errorf("invalid ancestor_pattern: %w", err)
		}
		opts.AncestorPattern = ancestorRe
	}

	opts.EmitWarnings = c.EmitWarnings
	opts.Concurrency = c.Concurrency

	if c.SourceMap.Enabled {
		sm := &plugin.SourceMapOptions{
			Prev:           c.SourceMap.Prev,
			SourcesContent: c.SourceMap.SourcesContent,
		}
		if c.SourceMap.PrevFile != "" {
			data, err := os.ReadFile(c.SourceMap.PrevFile)
			if err != nil {
				return opts, fmt.Errorf("failed to read previous map: %w", err)
			}
			sm.Prev = string(data)
		}
		opts.SourceMap = sm
	}

	return opts, nil
}

func oneOf(v string, allowed []string) bool {
	for _, a := range allowed {
		if v == a {
			return true
		}
	}
	return false
}
