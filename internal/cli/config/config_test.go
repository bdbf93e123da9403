package config

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	tmpDir := t.TempDir()
	cfgPath := filepath.Join(tmpDir, "cssdedupe.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(content), 0600))
	return cfgPath
}

func TestLoadConfig_Defaults(t *testing.T) {
	ResetConfig()
	cfgPath := writeConfig(t, "verbose: false\n")
	root := filepath.Dir(cfgPath)

	cfg, err := LoadConfig(cfgPath, nil)
	require.NoError(t, err)

	assert.Equal(t, DefaultAssetPattern, cfg.AssetPattern)
	assert.Empty(t, cfg.AncestorPattern)
	assert.True(t, cfg.EmitWarnings)
	assert.Equal(t, DefaultConcurrency, cfg.Concurrency)
	assert.False(t, cfg.SourceMap.Enabled)
	assert.Equal(t, DefaultOutdir, cfg.Build.Outdir)
	assert.True(t, cfg.Build.Splitting)
	assert.Equal(t, DefaultFormat, cfg.Build.Format)
	assert.True(t, cfg.History)
	assert.Equal(t, DefaultOutput, cfg.OutputFormat)

	assert.Equal(t, root, cfg.ProjectRoot)
	assert.Equal(t, filepath.Join(root, DefaultDir), cfg.Dir)
	assert.Equal(t, filepath.Join(root, DefaultStateFile), cfg.StatePath)
	assert.Equal(t, filepath.Join(root, DefaultDir, "chunks.yaml"), cfg.ManifestPath())

	assert.Equal(t, cfgPath, GetConfigFileUsed())
	assert.Same(t, cfg, GetCurrentConfig())
}

func TestLoadConfig_File(t *testing.T) {
	ResetConfig()
	cfgPath := writeConfig(t, `asset_pattern: '\.s?css$'
ancestor_pattern: '^vendor.*\.css$'
emit_warnings: false
concurrency: 8
dir: public
manifest: build/chunks.json
source_map:
  enabled: true
  sources_content: true
build:
  entry_points: [src/main.js, src/admin.js]
  outdir: out
  minify: true
  splitting: false
  format: iife
`)
	root := filepath.Dir(cfgPath)

	cfg, err := LoadConfig(cfgPath, nil)
	require.NoError(t, err)

	assert.Equal(t, `\.s?css$`, cfg.AssetPattern)
	assert.Equal(t, `^vendor.*\.css$`, cfg.AncestorPattern)
	assert.False(t, cfg.EmitWarnings)
	assert.Equal(t, 8, cfg.Concurrency)
	assert.Equal(t, filepath.Join(root, "public"), cfg.Dir)
	assert.Equal(t, filepath.Join(root, "build", "chunks.json"), cfg.ManifestPath())
	assert.True(t, cfg.SourceMap.Enabled)
	assert.True(t, cfg.SourceMap.SourcesContent)
	assert.Equal(t, []string{"src/main.js", "src/admin.js"}, cfg.Build.EntryPoints)
	assert.Equal(t, "out", cfg.Build.Outdir)
	assert.True(t, cfg.Build.Minify)
	assert.False(t, cfg.Build.Splitting)
	assert.Equal(t, "iife", cfg.Build.Format)
}

func TestLoadConfig_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{name: "bad yaml", content: "concurrency: [", want: "error reading config file"},
		{name: "bad asset pattern", content: "asset_pattern: '('", want: "invalid asset_pattern"},
		{name: "bad ancestor pattern", content: "ancestor_pattern: '['", want: "invalid ancestor_pattern"},
		{name: "zero concurrency", content: "concurrency: 0", want: "concurrency must be at least 1"},
		{name: "bad output", content: "output: html", want: `invalid output "html"`},
		{name: "bad format", content: "build:\n  format: amd", want: `invalid build.format "amd"`},
		{name: "both prev maps", content: "source_map:\n  prev: '{}'\n  prev_file: a.map", want: "mutually exclusive"},
		{name: "unusable prev map", content: "source_map:\n  enabled: true\n  prev: '{\"version\":2,\"mappings\":\"\"}'", want: "invalid source_map.prev"},
		{name: "missing prev map file", content: "source_map:\n  enabled: true\n  prev_file: missing.map", want: "failed to read source_map.prev_file"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ResetConfig()
			_, err := LoadConfig(writeConfig(t, tt.content), nil)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

// TestLoadConfig_FlagPrecedence tests that flags override env vars and config file.
func TestLoadConfig_FlagPrecedence(t *testing.T) {
	ResetConfig()
	cfgPath := writeConfig(t, "asset_pattern: from_file\nconcurrency: 2\n")

	t.Setenv("CSSDEDUPE_ASSET_PATTERN", "from_env")
	t.Setenv("CSSDEDUPE_CONCURRENCY", "3")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("asset-pattern", "", "asset pattern")
	flags.Int("concurrency", 0, "concurrency")
	require.NoError(t, flags.Set("asset-pattern", "from_flag"))

	cfg, err := LoadConfig(cfgPath, flags)
	require.NoError(t, err)

	assert.Equal(t, "from_flag", cfg.AssetPattern, "flag value should override config file and env var")
	assert.Equal(t, 3, cfg.Concurrency, "env var should be used when flag is not set")
}

// TestLoadConfig_EnvPrecedenceOverFile tests that env vars override config file.
func TestLoadConfig_EnvPrecedenceOverFile(t *testing.T) {
	ResetConfig()
	cfgPath := writeConfig(t, "emit_warnings: true\nbuild:\n  format: esm\n")

	t.Setenv("CSSDEDUPE_EMIT_WARNINGS", "false")
	t.Setenv("CSSDEDUPE_SOURCE_MAP__ENABLED", "true")
	t.Setenv("CSSDEDUPE_BUILD__FORMAT", "cjs")
	t.Setenv("CSSDEDUPE_BUILD__ENTRY_POINTS", "a.js,b.js")

	cfg, err := LoadConfig(cfgPath, nil)
	require.NoError(t, err)

	assert.False(t, cfg.EmitWarnings)
	assert.True(t, cfg.SourceMap.Enabled)
	assert.Equal(t, "cjs", cfg.Build.Format)
	assert.Equal(t, []string{"a.js", "b.js"}, cfg.Build.EntryPoints)
}

func TestLoadConfig_FlagKeys(t *testing.T) {
	ResetConfig()
	cfgPath := writeConfig(t, "")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("state", "", "state path")
	flags.Bool("source-map", false, "maps")
	flags.String("outdir", "", "outdir")
	flags.Bool("minify", false, "minify")
	flags.String("format", "", "format")
	require.NoError(t, flags.Set("state", "history.db"))
	require.NoError(t, flags.Set("source-map", "true"))
	require.NoError(t, flags.Set("outdir", "build"))
	require.NoError(t, flags.Set("minify", "true"))
	require.NoError(t, flags.Set("format", "iife"))

	cfg, err := LoadConfig(cfgPath, flags)
	require.NoError(t, err)

	cwd, err := os.Getwd()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(cwd, "history.db"), cfg.StatePath, "flag paths are relative to the working directory")
	assert.True(t, cfg.SourceMap.Enabled)
	assert.Equal(t, "build", cfg.Build.Outdir)
	assert.True(t, cfg.Build.Minify)
	assert.Equal(t, "iife", cfg.Build.Format)
}

func TestLoadConfig_ProjectDirFlag(t *testing.T) {
	ResetConfig()
	projectDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(projectDir, "cssdedupe.yml"), []byte("dir: www\n"), 0600))

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("project-dir", "", "project root")
	require.NoError(t, flags.Set("project-dir", projectDir))

	cfg, err := LoadConfig("", flags)
	require.NoError(t, err)

	assert.Equal(t, projectDir, cfg.ProjectRoot)
	assert.Equal(t, filepath.Join(projectDir, "www"), cfg.Dir)
	assert.Equal(t, filepath.Join(projectDir, "cssdedupe.yml"), GetConfigFileUsed())
}

func TestFindProjectRootUpward(t *testing.T) {
	root := t.TempDir()
	nested := filepath.Join(root, "a", "b", "c")
	require.NoError(t, os.MkdirAll(nested, 0750))

	assert.Empty(t, findProjectRootUpward(nested))

	require.NoError(t, os.WriteFile(filepath.Join(root, "cssdedupe.yaml"), nil, 0600))
	assert.Equal(t, root, findProjectRootUpward(nested))
}

func TestEnvKey(t *testing.T) {
	assert.Equal(t, "asset_pattern", envKey("CSSDEDUPE_ASSET_PATTERN"))
	assert.Equal(t, "source_map.prev_file", envKey("CSSDEDUPE_SOURCE_MAP__PREV_FILE"))
	assert.Equal(t, "build.entry_points", envKey("CSSDEDUPE_BUILD__ENTRY_POINTS"))
}

func TestFlagKey(t *testing.T) {
	assert.Equal(t, "state_path", flagKey("state"))
	assert.Equal(t, "source_map.prev_file", flagKey("prev-map"))
	assert.Equal(t, "ancestor_pattern", flagKey("ancestor-pattern"))
	assert.Equal(t, "dir", flagKey("dir"))
}

func TestConfig_PluginOptions(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		opts, err := Default().PluginOptions()
		require.NoError(t, err)
		assert.True(t, opts.AssetPattern.MatchString("main.css"))
		assert.Nil(t, opts.AncestorPattern)
		assert.True(t, opts.EmitWarnings)
		assert.Nil(t, opts.SourceMap, "maps are disabled by default")
	})

	t.Run("ancestor pattern and maps", func(t *testing.T) {
		cfg := Default()
		cfg.AncestorPattern = `^vendor`
		cfg.Concurrency = 4
		cfg.SourceMap = SourceMapConfig{Enabled: true, Prev: `{"version":3}`, SourcesContent: true}

		opts, err := cfg.PluginOptions()
		require.NoError(t, err)
		require.NotNil(t, opts.AncestorPattern)
		assert.True(t, opts.AncestorPattern.MatchString("vendor.css"))
		assert.Equal(t, 4, opts.Concurrency)
		require.NotNil(t, opts.SourceMap)
		assert.Equal(t, `{"version":3}`, opts.SourceMap.Prev)
		assert.True(t, opts.SourceMap.SourcesContent)
	})

	t.Run("previous map from file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "prev.map")
		require.NoError(t, os.WriteFile(path, []byte(`{"version":3,"mappings":""}`), 0600))

		cfg := Default()
		cfg.SourceMap = SourceMapConfig{Enabled: true, PrevFile: path}
		opts, err := cfg.PluginOptions()
		require.NoError(t, err)
		assert.Equal(t, `{"version":3,"mappings":""}`, opts.SourceMap.Prev)
	})

	t.Run("missing previous map file", func(t *testing.T) {
		cfg := Default()
		cfg.SourceMap = SourceMapConfig{Enabled: true, PrevFile: filepath.Join(t.TempDir(), "missing.map")}
		_, err := cfg.PluginOptions()
		assert.Error(t, err)
	})

	t.Run("invalid pattern", func(t *testing.T) {
		cfg := Default()
		cfg.AssetPattern = "("
		_, err := cfg.PluginOptions()
		assert.Error(t, err)
	})
}

func TestValidateDir(t *testing.T) {
	dir := t.TempDir()
	assert.NoError(t, ValidateDir(dir))

	err := ValidateDir(filepath.Join(dir, "missing"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not exist")

	file := filepath.Join(dir, "file.css")
	require.NoError(t, os.WriteFile(file, []byte(".a{}"), 0600))
	err = ValidateDir(file)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a directory")
}

func TestGetLogger(t *testing.T) {
	assert.NotNil(t, GetLogger(context.Background()), "falls back to a discard logger")

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ctx := WithLogger(context.Background(), logger)
	assert.Same(t, logger, GetLogger(ctx))
}
