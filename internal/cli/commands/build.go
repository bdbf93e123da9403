package commands

import (
	"context"
	"errors"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/cssdedupe/internal/bundle"
	"github.com/leapstack-labs/cssdedupe/internal/plugin"
)

// NewBuildCommand creates the build command.
func NewBuildCommand() *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "build [entry-point...]",
		Short: "Bundle with esbuild and dedupe split stylesheets",
		Long: `Bundle the entry points with esbuild, code splitting enabled, then remove
from every chunk's stylesheet the rules its ancestor chunks already load.

Entry points given as arguments replace build.entry_points from the config
file. Outputs are written to build.outdir unless --dry-run is set.`,
		Example: `  # Build the configured entry points
  cssdedupe build

  # Build explicit entry points into ./public
  cssdedupe build src/main.js src/admin.js --outdir public

  # Show what would be removed without writing anything
  cssdedupe build --dry-run --output json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBuild(cmd, args, dryRun)
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Report outcomes without writing outputs")
	addBuildFlags(cmd)

	return cmd
}

// addBuildFlags registers the esbuild flags shared by build, watch and graph.
// Values flow through the config loader (build.* keys).
func addBuildFlags(cmd *cobra.Command) {
	cmd.Flags().String("outdir", "", "Output directory, relative to the project root (default: dist)")
	cmd.Flags().Bool("minify", false, "Minify JavaScript and CSS outputs")
	cmd.Flags().Bool("sourcemap", false, "Emit external source maps")
	cmd.Flags().Bool("splitting", true, "Enable code splitting (ESM only)")
	cmd.Flags().String("format", "", "Output format (esm|iife|cjs)")

	_ = cmd.RegisterFlagCompletionFunc("format", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{"esm", "iife", "cjs"}, cobra.ShellCompDirectiveNoFileComp
	})
}

func runBuild(cmd *cobra.Command, args []string, dryRun bool) error {
	cmdCtx := NewCommandContext(cmd)
	ctx := cmd.Context()
	started := time.Now()

	res, err := cmdCtx.Build(ctx, args, !dryRun)
	var outcomes []plugin.Outcome
	if res != nil {
		outcomes = res.Outcomes
	}
	run := cmdCtx.RecordRun(ctx, "build", started, outcomes, err)
	if err != nil {
		return err
	}

	for _, w := range res.Warnings {
		cmdCtx.Renderer.Warning(w)
	}
	return renderOutcomes(cmdCtx.Renderer, "build", outcomes, run, time.Since(started))
}

// BuildOptions converts the configuration into esbuild options. Entry
// points given on the command line are relative to the working directory.
func (c *CommandContext) BuildOptions(args []string) (bundle.Options, error) {
	p, err := c.NewPlugin()
	if err != nil {
		return bundle.Options{}, err
	}

	entries := c.Cfg.Build.EntryPoints
	if len(args) > 0 {
		entries = make([]string, 0, len(args))
		for _, a := range args {
			abs, err := filepath.Abs(a)
			if err != nil {
				return bundle.Options{}, err
			}
			entries = append(entries, abs)
		}
	}
	if len(entries) == 0 {
		return bundle.Options{}, errors.New("no entry points\nHint: pass them as arguments or set build.entry_points in cssdedupe.yaml")
	}

	return bundle.Options{
		EntryPoints: entries,
		Outdir:      c.Cfg.Build.Outdir,
		WorkingDir:  c.Cfg.ProjectRoot,
		Minify:      c.Cfg.Build.Minify,
		Sourcemap:   c.Cfg.Build.Sourcemap,
		Splitting:   c.Cfg.Build.Splitting,
		Format:      c.Cfg.Build.Format,
		Dedupe:      p,
		Logger:      c.Logger,
	}, nil
}

// Build runs one esbuild build with the dedupe pass and optionally writes
// the outputs.
func (c *CommandContext) Build(ctx context.Context, args []string, write bool) (*bundle.Result, error) {
	opts, err := c.BuildOptions(args)
	if err != nil {
		return nil, err
	}

	res, err := bundle.Build(ctx, opts)
	if err != nil {
		return nil, err
	}

	if write {
		if err := bundle.WriteOutputs(res.OutputFiles); err != nil {
			return res, err
		}
		c.Logger.Info("outputs written", "files", len(res.OutputFiles), "outdir", opts.Outdir)
	}
	return res, nil
}
