// Package bundle runs esbuild with code splitting and applies the dedupe
// pass to the stylesheets it produces. The chunk graph is rebuilt from the
// build's metafile.
package bundle

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/evanw/esbuild/pkg/api"

	"github.com/leapstack-labs/cssdedupe/internal/chunkgraph"
	"github.com/leapstack-labs/cssdedupe/internal/plugin"
)

// Options configures a build.
type Options struct {
	// EntryPoints are source files, relative to WorkingDir
	EntryPoints []string
	// Outdir receives the output files, relative to WorkingDir
	Outdir string
	// WorkingDir is the project root (defaults to the current directory)
	WorkingDir string
	// Minify enables esbuild whitespace, identifier and syntax minification
	Minify bool
	// Sourcemap makes esbuild emit external .map files
	Sourcemap bool
	// Splitting enables shared chunks (ESM only)
	Splitting bool
	// Format is "esm", "iife" or "cjs" (default "esm")
	Format string
	// Dedupe is the pass to run on output stylesheets; nil disables it
	Dedupe *plugin.Plugin
	// Logger is the structured logger (optional, uses discard if nil)
	Logger *slog.Logger
}

// Result holds the in-memory outputs of a build.
type Result struct {
	OutputFiles []api.OutputFile
	Graph       *chunkgraph.Graph
	Outcomes    []plugin.Outcome
	Warnings    []string
	WorkingDir  string
}

// Build bundles the entry points. Outputs are kept in memory; use
// WriteOutputs to write them.
func Build(ctx context.Context, opts Options) (*Result, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if len(opts.EntryPoints) == 0 {
		return nil, errors.New("no entry points")
	}

	workDir, err := absWorkingDir(opts.WorkingDir)
	if err != nil {
		return nil, err
	}

	format, err := parseFormat(opts.Format)
	if err != nil {
		return nil, err
	}

	outdir := opts.Outdir
	if outdir == "" {
		outdir = "dist"
	}

	buildOpts := api.BuildOptions{
		EntryPoints:   opts.EntryPoints,
		Bundle:        true,
		Write:         false,
		Metafile:      true,
		Outdir:        outdir,
		AbsWorkingDir: workDir,
		Splitting:     opts.Splitting,
		Format:        format,
		Platform:      api.PlatformBrowser,
		Loader: map[string]api.Loader{
			".css": api.LoaderCSS,
		},
		Sourcemap: api.SourceMapNone,
		LogLevel:  api.LogLevelSilent,
	}
	if opts.Sourcemap {
		buildOpts.Sourcemap = api.SourceMapExternal
	}
	if opts.Minify {
		buildOpts.MinifyWhitespace = true
		buildOpts.MinifyIdentifiers = true
		buildOpts.MinifySyntax = true
	}

	var report Report
	if opts.Dedupe != nil {
		buildOpts.Plugins = append(buildOpts.Plugins, DedupePlugin(opts.Dedupe, func(r Report) {
			report = r
		}))
	}

	logger.Debug("starting esbuild", "entry_points", opts.EntryPoints, "outdir", outdir, "splitting", opts.Splitting)

	buildCtx, ctxErr := api.Context(buildOpts)
	if ctxErr != nil {
		return nil, fmt.Errorf("esbuild errors:\n%s", formatMessages(ctxErr.Errors))
	}
	defer buildCtx.Dispose()

	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			buildCtx.Cancel()
		case <-done:
		}
	}()
	result := buildCtx.Rebuild()
	close(done)

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(result.Errors) > 0 {
		return nil, fmt.Errorf("esbuild errors:\n%s", formatMessages(result.Errors))
	}

	res := &Result{
		OutputFiles: result.OutputFiles,
		Graph:       report.Graph,
		Outcomes:    report.Outcomes,
		WorkingDir:  workDir,
	}
	for _, w := range result.Warnings {
		res.Warnings = append(res.Warnings, formatMessage(w))
	}

	logger.Debug("esbuild finished", "outputs", len(result.OutputFiles), "warnings", len(result.Warnings))
	return res, nil
}

// WriteOutputs writes every output file to disk.
func WriteOutputs(files []api.OutputFile) error {
	for _, f := range files {
		if err := os.MkdirAll(filepath.Dir(f.Path), 0750); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
		if err := os.WriteFile(f.Path, f.Contents, 0600); err != nil {
			return fmt.Errorf("failed to write %s: %w", f.Path, err)
		}
	}
	return nil
}

func absWorkingDir(dir string) (string, error) {
	if dir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return "", err
		}
		dir = wd
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}
	// esbuild reports resolved paths; keep the working directory comparable
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		abs = resolved
	}
	return abs, nil
}

func parseFormat(format string) (api.Format, error) {
	switch strings.ToLower(format) {
	case "", "esm":
		return api.FormatESModule, nil
	case "iife":
		return api.FormatIIFE, nil
	case "cjs":
		return api.FormatCommonJS, nil
	default:
		return api.FormatDefault, fmt.Errorf("unknown format %q (want esm, iife or cjs)", format)
	}
}

func formatMessages(msgs []api.Message) string {
	var b strings.Builder
	for _, m := range msgs {
		b.WriteString(formatMessage(m))
		b.WriteByte('\n')
	}
	return b.String()
}

func formatMessage(m api.Message) string {
	text := m.Text
	if m.PluginName != "" {
		text = "[" + m.PluginName + "] " + text
	}
	if m.Location == nil {
		return text
	}
	return fmt.Sprintf("%s:%d:%d: %s", m.Location.File, m.Location.Line, m.Location.Column, text)
}
