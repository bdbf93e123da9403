package commands

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/cssdedupe/internal/ancestry"
	"github.com/leapstack-labs/cssdedupe/internal/chunkgraph"
	"github.com/leapstack-labs/cssdedupe/internal/cli/output"
	"github.com/leapstack-labs/cssdedupe/internal/manifest"
)

// GraphOutput is the JSON form of a chunk graph.
type GraphOutput struct {
	Chunks    []ChunkOutput `json:"chunks"`
	Groups    []GroupOutput `json:"groups"`
	Entries   []string      `json:"entry_groups"`
	Cycle     []string      `json:"cycle,omitempty"`
	Ambiguous []string      `json:"ambiguous_files,omitempty"`
}

// ChunkOutput is one chunk and its resolved ancestors.
type ChunkOutput struct {
	Name      string   `json:"name"`
	Files     []string `json:"files"`
	Ancestors []string `json:"ancestors"`
}

// GroupOutput is one chunk group and its parent and child groups.
type GroupOutput struct {
	Name     string   `json:"name"`
	Chunks   []string `json:"chunks"`
	Parents  []string `json:"parents"`
	Children []string `json:"children"`
}

// NewGraphCommand creates the graph command.
func NewGraphCommand() *cobra.Command {
	var (
		fromBuild     bool
		writeManifest string
	)

	cmd := &cobra.Command{
		Use:   "graph [dir]",
		Short: "Show the chunk graph and resolved ancestors",
		Long: `Display the chunks, chunk groups and parent edges of a build, and for
every chunk the ancestors whose styles are guaranteed to be loaded first.

The graph is read from the manifest of an output directory, or derived from
an esbuild build with --build (nothing is written).

Output adapts to environment:
  - Terminal: Styled output with colors
  - Piped/Scripted: Markdown format (agent-friendly)`,
		Example: `  # Show the graph described by ./dist/chunks.yaml
  cssdedupe graph

  # Derive the graph from an esbuild build
  cssdedupe graph --build src/main.js

  # Save the esbuild graph as a manifest
  cssdedupe graph --build --write-manifest chunks.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cmdCtx := NewCommandContext(cmd)

			var (
				g   *chunkgraph.Graph
				err error
			)
			if fromBuild {
				res, buildErr := cmdCtx.Build(cmd.Context(), args, false)
				if buildErr != nil {
					return buildErr
				}
				g = res.Graph
			} else {
				if len(args) > 1 {
					return fmt.Errorf("accepts at most 1 arg without --build, received %d", len(args))
				}
				_, manifestPath, resolveErr := cmdCtx.resolveDir(args)
				if resolveErr != nil {
					return resolveErr
				}
				g, err = cmdCtx.LoadGraph(manifestPath)
				if err != nil {
					return err
				}
			}
			if g == nil {
				return errors.New("build produced no chunk graph")
			}

			if writeManifest != "" {
				data, err := manifest.FromGraph(g).Marshal()
				if err != nil {
					return err
				}
				if err := os.WriteFile(writeManifest, data, 0600); err != nil {
					return fmt.Errorf("failed to write manifest: %w", err)
				}
				cmdCtx.Logger.Info("manifest written", "path", writeManifest)
			}

			return renderGraph(cmdCtx.Renderer, g)
		},
	}

	cmd.Flags().BoolVar(&fromBuild, "build", false, "Derive the graph from an esbuild build of the entry points")
	cmd.Flags().StringVar(&writeManifest, "write-manifest", "", "Write the graph as a manifest to this path")
	cmd.Flags().String("manifest", "", "Chunk graph manifest (default: <dir>/chunks.yaml)")
	addBuildFlags(cmd)

	return cmd
}

func toGraphOutput(g *chunkgraph.Graph) GraphOutput {
	out := GraphOutput{
		Chunks:    []ChunkOutput{},
		Groups:    []GroupOutput{},
		Entries:   g.Roots(),
		Ambiguous: g.AmbiguousFiles(),
	}
	if cyclic, path := g.HasCycle(); cyclic {
		out.Cycle = path
	}
	for _, c := range g.Chunks() {
		out.Chunks = append(out.Chunks, ChunkOutput{
			Name:      c.Name,
			Files:     append([]string{}, c.Files...),
			Ancestors: ancestry.Names(ancestry.Resolve(g, c)),
		})
	}
	for _, grp := range g.Groups() {
		chunks := make([]string, 0, len(grp.Chunks))
		for _, c := range grp.Chunks {
			chunks = append(chunks, c.Name)
		}
		out.Groups = append(out.Groups, GroupOutput{
			Name:     grp.Name,
			Chunks:   chunks,
			Parents:  g.Parents(grp.Name),
			Children: g.Children(grp.Name),
		})
	}
	return out
}

func renderGraph(r *output.Renderer, g *chunkgraph.Graph) error {
	data := toGraphOutput(g)
	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(data)
	}

	r.Header(1, "Chunk Graph")

	r.Header(2, "Groups")
	groupRows := make([][]string, 0, len(data.Groups))
	for _, grp := range data.Groups {
		groupRows = append(groupRows, []string{
			grp.Name,
			output.FormatList(grp.Chunks),
			output.FormatList(grp.Parents),
			output.FormatList(grp.Children),
		})
	}
	r.Table([]string{"Group", "Chunks", "Parents", "Children"}, groupRows)

	r.Header(2, "Chunks")
	chunkRows := make([][]string, 0, len(data.Chunks))
	for _, c := range data.Chunks {
		chunkRows = append(chunkRows, []string{c.Name, output.FormatList(c.Files), output.FormatList(c.Ancestors)})
	}
	r.Table([]string{"Chunk", "Files", "Ancestors"}, chunkRows)

	if len(data.Cycle) > 0 {
		r.StatusLine(output.StatusWarning, "parent cycle: "+strings.Join(data.Cycle, " -> "))
	}
	for _, f := range data.Ambiguous {
		r.StatusLine(output.StatusWarning, f+" is produced by several chunks and will be skipped")
	}

	if r.EffectiveMode() == output.ModeMarkdown {
		r.Println(output.FormatHeader(2, "Summary"))
		r.Println(output.FormatKeyValue("Chunks", fmt.Sprintf("%d", g.ChunkCount())))
		r.Println(output.FormatKeyValue("Groups", fmt.Sprintf("%d", g.GroupCount())))
		r.Println(output.FormatKeyValue("Parent Edges", fmt.Sprintf("%d", g.EdgeCount())))
		r.Println(output.FormatKeyValue("Entry Groups", output.FormatList(data.Entries)))
		return nil
	}
	r.Muted(fmt.Sprintf("Total: %d chunks, %d groups, %d parent edges; entry groups: %s",
		g.ChunkCount(), g.GroupCount(), g.EdgeCount(), output.FormatList(data.Entries)))
	return nil
}
