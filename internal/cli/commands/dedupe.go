package commands

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/cssdedupe/internal/assets"
	"github.com/leapstack-labs/cssdedupe/internal/chunkgraph"
	"github.com/leapstack-labs/cssdedupe/internal/cli/config"
	"github.com/leapstack-labs/cssdedupe/internal/manifest"
	"github.com/leapstack-labs/cssdedupe/internal/plugin"
)

// NewDedupeCommand creates the dedupe command.
func NewDedupeCommand() *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "dedupe [dir]",
		Short: "Dedupe stylesheets in an existing output directory",
		Long: `Apply the dedupe pass to a directory produced by any bundler.

The chunk graph is read from a manifest (chunks.yaml in the directory by
default, see --manifest). Asset names in the manifest are paths relative to
the directory. Stylesheets are rewritten in place unless --dry-run is set.`,
		Example: `  # Dedupe ./dist using ./dist/chunks.yaml
  cssdedupe dedupe

  # Dedupe another directory with a separate manifest
  cssdedupe dedupe public --manifest build/chunks.json

  # Also write source maps next to the stylesheets
  cssdedupe dedupe --source-map --sources-content`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDedupe(cmd, args, dryRun)
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Report outcomes without rewriting files")
	cmd.Flags().String("manifest", "", "Chunk graph manifest (default: <dir>/chunks.yaml)")

	return cmd
}

func runDedupe(cmd *cobra.Command, args []string, dryRun bool) error {
	cmdCtx := NewCommandContext(cmd)
	ctx := cmd.Context()
	started := time.Now()

	outcomes, err := cmdCtx.Dedupe(ctx, args, dryRun)
	run := cmdCtx.RecordRun(ctx, "dedupe", started, outcomes, err)
	if err != nil {
		return err
	}
	return renderOutcomes(cmdCtx.Renderer, "dedupe", outcomes, run, time.Since(started))
}

// resolveDir applies a directory argument over the configured dir. The
// manifest follows the directory unless one was configured explicitly.
func (c *CommandContext) resolveDir(args []string) (dir, manifestPath string, err error) {
	dir = c.Cfg.Dir
	manifestPath = c.Cfg.ManifestPath()
	if len(args) > 0 {
		if dir, err = filepath.Abs(args[0]); err != nil {
			return "", "", err
		}
		if c.Cfg.Manifest == "" {
			manifestPath = filepath.Join(dir, manifest.DefaultFile)
		}
	}
	return dir, manifestPath, nil
}

// LoadGraph reads the manifest describing dir.
func (c *CommandContext) LoadGraph(manifestPath string) (*chunkgraph.Graph, error) {
	m, err := manifest.Load(manifestPath)
	if err != nil {
		return nil, err
	}
	g, err := m.Graph()
	if err != nil {
		return nil, fmt.Errorf("invalid chunk graph: %w", err)
	}
	if cyclic, path := g.HasCycle(); cyclic {
		c.Logger.Debug("chunk graph has a parent cycle", "path", path)
	}
	for _, f := range g.AmbiguousFiles() {
		c.Logger.Debug("file owned by several chunks", "file", f)
	}
	return g, nil
}

// Dedupe runs the pass over a directory described by a manifest.
func (c *CommandContext) Dedupe(ctx context.Context, args []string, dryRun bool) ([]plugin.Outcome, error) {
	dir, manifestPath, err := c.resolveDir(args)
	if err != nil {
		return nil, err
	}
	if err := config.ValidateDir(dir); err != nil {
		return nil, err
	}

	p, err := c.NewPlugin()
	if err != nil {
		return nil, err
	}
	graph, err := c.LoadGraph(manifestPath)
	if err != nil {
		return nil, err
	}

	dirStore, err := assets.NewDirStore(dir)
	if err != nil {
		return nil, err
	}
	var store interface {
		assets.Store
		assets.Lister
	} = dirStore
	if dryRun {
		store = assets.NewOverlay(dirStore)
	}

	names, err := store.Names()
	if err != nil {
		return nil, err
	}

	c.Logger.Debug("deduping directory", "dir", dir, "manifest", manifestPath, "assets", len(names), "dry_run", dryRun)
	return p.Process(ctx, graph, store, names)
}
