package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/leapstack-labs/cssdedupe/internal/cli"
	"github.com/leapstack-labs/cssdedupe/internal/cli/commands"
	"github.com/leapstack-labs/cssdedupe/internal/cli/config"
	"github.com/leapstack-labs/cssdedupe/internal/cli/output"
	"github.com/leapstack-labs/cssdedupe/internal/manifest"
	"github.com/leapstack-labs/cssdedupe/internal/plugin"
)

// outputModes describes each --output value.
var outputModes = []struct {
	Mode output.OutputMode
	Desc string
}{
	{output.ModeAuto, "Text on a terminal, markdown when piped"},
	{output.ModeText, "Styled text with status icons and tables"},
	{output.ModeMarkdown, "Markdown tables, for CI logs and pull request comments"},
	{output.ModeJSON, "A single JSON document on stdout"},
}

// assetStatuses describes the per-asset statuses of a run report.
var assetStatuses = []struct {
	Status plugin.Status
	Desc   string
}{
	{plugin.StatusDeduped, "Rules already loaded by an ancestor were removed and the asset rewritten"},
	{plugin.StatusUnchanged, "No ancestors, no ancestor CSS, or nothing to remove; the asset is untouched"},
	{plugin.StatusSkipped, "The asset belongs to no chunk, or to more than one"},
	{plugin.StatusFailed, "Reading, parsing or writing failed; the asset is left as it was"},
}

// jsonOutputs maps each command to the document it writes with --output json.
var jsonOutputs = map[string]reflect.Type{
	"build":   reflect.TypeOf(commands.RunOutput{}),
	"dedupe":  reflect.TypeOf(commands.RunOutput{}),
	"watch":   reflect.TypeOf(commands.RunOutput{}),
	"graph":   reflect.TypeOf(commands.GraphOutput{}),
	"history": reflect.TypeOf(commands.RunSummaryOutput{}),
	"version": reflect.TypeOf(commands.VersionOutput{}),
}

// reportsOutcomes reports whether a command processes assets.
func reportsOutcomes(name string) bool {
	return jsonOutputs[name] == reflect.TypeOf(commands.RunOutput{})
}

func documented(cmd *cobra.Command) bool {
	return !cmd.Hidden && cmd.Name() != "help" && cmd.Name() != "__complete"
}

// generateCLIDocs writes index.md and one page per command.
func generateCLIDocs(outDir string) error {
	log.Printf("Generating CLI docs to %s", outDir)

	if err := os.MkdirAll(outDir, 0750); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	root := cli.NewRootCmd()
	if err := writePage(outDir, "index.md", cliIndex(root)); err != nil {
		return err
	}

	for _, cmd := range root.Commands() {
		if !documented(cmd) {
			continue
		}
		if err := writePage(outDir, cmd.Name()+".md", commandPage(cmd)); err != nil {
			return err
		}
	}
	return nil
}

func writePage(outDir, name string, w *MarkdownWriter) error {
	if err := os.WriteFile(filepath.Join(outDir, name), w.Bytes(), 0600); err != nil {
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	log.Printf("  Generated %s", name)
	return nil
}

func cliIndex(root *cobra.Command) *MarkdownWriter {
	w := NewMarkdownWriter()
	w.Frontmatter("CLI Reference", "Command-line interface reference for cssdedupe")
	w.GeneratedMarker()

	w.Header(1, "CLI Reference")
	w.Paragraph("cssdedupe removes from each chunk's stylesheet the rules its ancestor chunks already load. " +
		"It bundles with esbuild or works on any output directory described by a [" + InlineCode(manifest.DefaultFile) + "](/manifest) manifest.")
	w.CodeBlock("bash", "go install github.com/leapstack-labs/cssdedupe/cmd/cssdedupe@latest")

	w.Header(2, "Commands")
	var rows [][]string
	for _, cmd := range root.Commands() {
		if !documented(cmd) {
			continue
		}
		reports := "-"
		if reportsOutcomes(cmd.Name()) {
			reports = "yes"
		}
		link := fmt.Sprintf("[%s](/cli/%s)", InlineCode(cmd.Name()), cmd.Name())
		rows = append(rows, []string{link, cleanDescription(cmd.Short), reports})
	}
	w.Table([]string{"Command", "Description", "Asset report"}, rows)

	w.Header(2, "Global Options")
	writeFlagsTable(w, root.PersistentFlags())

	w.Header(2, "Output Modes")
	writeOutputModes(w)

	w.Header(2, "Asset Statuses")
	writeAssetStatuses(w)

	w.Header(2, "Environment Variables")
	w.Paragraph(fmt.Sprintf("Every configuration key can be set with a %s variable; nested keys use a double underscore. "+
		"Flags override environment variables, which override the config file.", InlineCode(config.EnvPrefix+"*")))
	var envRows [][]string
	for _, f := range getConfigSchema() {
		envRows = append(envRows, []string{InlineCode(envVar(f.Name)), InlineCode(f.Name)})
	}
	w.Table([]string{"Variable", "Key"}, envRows)

	return w
}

func commandPage(cmd *cobra.Command) *MarkdownWriter {
	w := NewMarkdownWriter()
	w.Frontmatter(cmd.Name(), cmd.Short)
	w.GeneratedMarker()

	w.Header(1, cmd.Name())
	if cmd.Long != "" {
		w.Paragraph(cmd.Long)
	} else {
		w.Paragraph(cmd.Short)
	}

	w.Header(2, "Usage")
	use := cmd.UseLine()
	if !strings.HasPrefix(use, "cssdedupe") {
		use = "cssdedupe " + use
	}
	w.CodeBlock("bash", use)

	if cmd.HasLocalFlags() {
		w.Header(2, "Options")
		writeFlagsTable(w, cmd.LocalFlags())
	}

	if t, ok := jsonOutputs[cmd.Name()]; ok {
		w.Header(2, "JSON Output")
		w.Paragraph(fmt.Sprintf("With %s the command writes one document with these fields:", InlineCode("--output json")))
		w.Table([]string{"Field", "Type", "Always present"}, fieldRowsOf(structFields(t, "json", "")))
	}

	if reportsOutcomes(cmd.Name()) {
		w.Header(2, "Exit Behaviour")
		w.Paragraph(fmt.Sprintf("Assets are processed independently. An asset that ends %s is reported "+
			"(and logged as a warning unless %s) but does not fail the command; the exit code is non-zero "+
			"only when the build, manifest or configuration cannot be loaded.",
			InlineCode(string(plugin.StatusFailed)), InlineCode("--emit-warnings=false")))
		writeAssetStatuses(w)
	}

	if cmd.Example != "" {
		w.Header(2, "Examples")
		w.CodeBlock("bash", cleanExample(cmd.Example))
	}

	return w
}

func writeOutputModes(w *MarkdownWriter) {
	rows := make([][]string, 0, len(outputModes))
	for _, m := range outputModes {
		rows = append(rows, []string{InlineCode(string(m.Mode)), m.Desc})
	}
	w.Table([]string{"Mode", "Output"}, rows)
}

func writeAssetStatuses(w *MarkdownWriter) {
	rows := make([][]string, 0, len(assetStatuses))
	for _, s := range assetStatuses {
		rows = append(rows, []string{InlineCode(string(s.Status)), s.Desc})
	}
	w.Table([]string{"Status", "Meaning"}, rows)
}

func writeFlagsTable(w *MarkdownWriter, flags *pflag.FlagSet) {
	var rows [][]string
	flags.VisitAll(func(f *pflag.Flag) {
		if f.Hidden {
			return
		}
		name := InlineCode("--" + f.Name)
		if f.Shorthand != "" {
			name += ", " + InlineCode("-"+f.Shorthand)
		}
		def := "-"
		if f.DefValue != "" && f.DefValue != "[]" {
			def = InlineCode(f.DefValue)
		}
		rows = append(rows, []string{name, f.Value.Type(), def, cleanDescription(f.Usage)})
	})
	w.Table([]string{"Option", "Type", "Default", "Description"}, rows)
}

// cleanExample strips the indentation shared by every non-blank line.
func cleanExample(example string) string {
	lines := strings.Split(example, "\n")
	indent := -1
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		n := len(line) - len(strings.TrimLeft(line, " \t"))
		if indent < 0 || n < indent {
			indent = n
		}
	}
	for i, line := range lines {
		if len(line) >= indent && indent > 0 {
			lines[i] = line[indent:]
		}
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

// envVar returns the environment variable for a dotted config key.
func envVar(key string) string {
	return config.EnvPrefix + strings.ToUpper(strings.ReplaceAll(key, ".", "__"))
}
