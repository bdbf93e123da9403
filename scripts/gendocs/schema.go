package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"

	"github.com/leapstack-labs/cssdedupe/internal/cli/config"
)

// generateConfigDocs generates the configuration reference.
func generateConfigDocs(outDir string) error {
	log.Printf("Generating config docs to %s", outDir)

	if err := os.MkdirAll(outDir, 0750); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	if err := generateConfigurationDoc(outDir); err != nil {
		return fmt.Errorf("failed to generate configuration.md: %w", err)
	}
	log.Printf("  Generated configuration.md")

	return nil
}

// ConfigField represents a configuration field definition.
type ConfigField struct {
	Name        string
	Type        string
	Default     string
	Description string
	Category    string // "dedupe", "source_map", "build", "cli"
}

// getConfigSchema returns the configuration schema definition.
// This is based on internal/cli/config/types.go Config.
func getConfigSchema() []ConfigField {
	d := config.Default()
	return []ConfigField{
		{Name: "asset_pattern", Type: "regexp", Default: d.AssetPattern, Description: "Selects the assets to dedupe", Category: "dedupe"},
		{Name: "ancestor_pattern", Type: "regexp", Description: "Selects which ancestor files contribute rules (defaults to asset_pattern)", Category: "dedupe"},
		{Name: "emit_warnings", Type: "bool", Default: strconv.FormatBool(d.EmitWarnings), Description: "Log recovered per-asset failures as warnings", Category: "dedupe"},
		{Name: "concurrency", Type: "int", Default: strconv.Itoa(d.Concurrency), Description: "Assets processed at once", Category: "dedupe"},
		{Name: "dir", Type: "string", Default: d.Dir, Description: "Output directory read by dedupe and graph", Category: "dedupe"},
		{Name: "manifest", Type: "string", Default: "<dir>/chunks.yaml", Description: "Chunk graph manifest (YAML or JSON)", Category: "dedupe"},

		{Name: "source_map.enabled", Type: "bool", Default: strconv.FormatBool(d.SourceMap.Enabled), Description: "Read and write <asset>.map files", Category: "source_map"},
		{Name: "source_map.prev", Type: "string", Description: "Previous source map, inline JSON", Category: "source_map"},
		{Name: "source_map.prev_file", Type: "string", Description: "Previous source map file (exclusive with prev)", Category: "source_map"},
		{Name: "source_map.sources_content", Type: "bool", Default: strconv.FormatBool(d.SourceMap.SourcesContent), Description: "Embed original sources in written maps", Category: "source_map"},

		{Name: "build.entry_points", Type: "[]string", Description: "Entry points, relative to the project root", Category: "build"},
		{Name: "build.outdir", Type: "string", Default: d.Build.Outdir, Description: "Output directory", Category: "build"},
		{Name: "build.minify", Type: "bool", Default: strconv.FormatBool(d.Build.Minify), Description: "Minify JavaScript and CSS", Category: "build"},
		{Name: "build.sourcemap", Type: "bool", Default: strconv.FormatBool(d.Build.Sourcemap), Description: "Emit external source maps", Category: "build"},
		{Name: "build.splitting", Type: "bool", Default: strconv.FormatBool(d.Build.Splitting), Description: "Enable code splitting", Category: "build"},
		{Name: "build.format", Type: "string", Default: d.Build.Format, Description: "esm, iife or cjs", Category: "build"},

		{Name: "state_path", Type: "string", Default: d.StatePath, Description: "History database", Category: "cli"},
		{Name: "history", Type: "bool", Default: strconv.FormatBool(d.History), Description: "Record runs in the history database", Category: "cli"},
		{Name: "output", Type: "string", Default: d.OutputFormat, Description: "auto, text, markdown or json", Category: "cli"},
		{Name: "verbose", Type: "bool", Default: strconv.FormatBool(d.Verbose), Description: "Debug logging", Category: "cli"},
	}
}

func fieldRows(category string) [][]string {
	var rows [][]string
	for _, f := range getConfigSchema() {
		if f.Category != category {
			continue
		}
		defVal := "-"
		if f.Default != "" {
			defVal = InlineCode(f.Default)
		}
		rows = append(rows, []string{InlineCode(f.Name), f.Type, defVal, f.Description})
	}
	return rows
}

// generateConfigurationDoc generates the configuration reference page.
func generateConfigurationDoc(outDir string) error {
	w := NewMarkdownWriter()
	headers := []string{"Field", "Type", "Default", "Description"}

	w.Frontmatter("Configuration", "cssdedupe configuration reference")
	w.GeneratedMarker()

	w.Header(1, "Configuration")
	w.Paragraph(fmt.Sprintf("cssdedupe reads %s from the project root. Relative paths are resolved against the directory holding the file.", InlineCode(config.ConfigFileNames[0])))

	w.Header(2, "Dedupe")
	w.Table(headers, fieldRows("dedupe"))

	w.Header(2, "Source Maps")
	w.Paragraph("When enabled, the previous map of every asset is read from `<asset>.map` and the composed map is written back.")
	w.Table(headers, fieldRows("source_map"))

	w.Header(2, "Build")
	w.Paragraph("esbuild options of the build, watch and graph --build commands.")
	w.Table(headers, fieldRows("build"))

	w.Header(2, "CLI")
	w.Table(headers, fieldRows("cli"))

	w.Header(2, "Full Configuration Example")
	w.CodeBlock("yaml", `# cssdedupe.yaml
asset_pattern: '\.css$'
concurrency: 4

source_map:
  enabled: true

build:
  entry_points: [src/main.js, src/admin.js]
  outdir: public
  minify: true

state_path: .cssdedupe/history.db`)

	filename := filepath.Join(outDir, "configuration.md")
	return os.WriteFile(filename, w.Bytes(), 0600)
}
