package bundle

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/evanw/esbuild/pkg/api"

	"github.com/leapstack-labs/cssdedupe/internal/assets"
	"github.com/leapstack-labs/cssdedupe/internal/chunkgraph"
	"github.com/leapstack-labs/cssdedupe/internal/plugin"
)

// PluginName is the name the dedupe pass registers with esbuild.
const PluginName = "cssdedupe"

// Report is what the dedupe pass saw in one build.
type Report struct {
	Graph    *chunkgraph.Graph
	Outcomes []plugin.Outcome
}

// DedupePlugin returns an esbuild plugin that runs p over the output files
// once the build ends. The build must set Write to false and Metafile to
// true; modified stylesheets and maps replace the in-memory outputs.
// onReport, when non-nil, receives the graph and outcomes of each build.
func DedupePlugin(p *plugin.Plugin, onReport func(Report)) api.Plugin {
	return api.Plugin{
		Name: PluginName,
		Setup: func(build api.PluginBuild) {
			workDir := build.InitialOptions.AbsWorkingDir
			build.OnEnd(func(result *api.BuildResult) (api.OnEndResult, error) {
				if len(result.Errors) > 0 {
					return api.OnEndResult{}, nil
				}
				report, err := dedupeOutputs(p, result, workDir)
				if err != nil {
					return api.OnEndResult{}, err
				}
				if onReport != nil {
					onReport(report)
				}

				var end api.OnEndResult
				if p.Options().EmitWarnings {
					end.Warnings = warningMessages(report.Outcomes)
				}
				return end, nil
			})
		},
	}
}

// dedupeOutputs runs p over result's output files and writes changed
// contents back into result.
func dedupeOutputs(p *plugin.Plugin, result *api.BuildResult, workDir string) (Report, error) {
	meta, err := ParseMetafile(result.Metafile)
	if err != nil {
		return Report{}, err
	}
	graph, err := GraphFromMetafile(meta)
	if err != nil {
		return Report{}, fmt.Errorf("failed to build chunk graph: %w", err)
	}

	if workDir == "" {
		if workDir, err = os.Getwd(); err != nil {
			return Report{}, err
		}
	}

	initial := make(map[string]string, len(result.OutputFiles))
	index := make(map[string]int, len(result.OutputFiles))
	for i, f := range result.OutputFiles {
		name, err := outputName(workDir, f.Path)
		if err != nil {
			return Report{}, err
		}
		initial[name] = string(f.Contents)
		index[name] = i
	}
	store := assets.NewMemoryStore(initial)

	names, err := store.Names()
	if err != nil {
		return Report{}, err
	}
	outcomes, err := p.Process(context.Background(), graph, store, names)
	if err != nil {
		return Report{}, err
	}

	final := store.Snapshot()
	changed := make([]string, 0)
	for name, content := range final {
		if prev, ok := initial[name]; ok && prev == content {
			continue
		}
		changed = append(changed, name)
	}
	sort.Strings(changed)

	for _, name := range changed {
		contents := []byte(final[name])
		if i, ok := index[name]; ok {
			result.OutputFiles[i].Contents = contents
			continue
		}
		result.OutputFiles = append(result.OutputFiles, api.OutputFile{
			Path:     filepath.Join(workDir, filepath.FromSlash(name)),
			Contents: contents,
		})
	}

	return Report{Graph: graph, Outcomes: outcomes}, nil
}

// outputName converts an absolute output path to the slash-separated,
// working-directory relative form used by the metafile.
func outputName(workDir, path string) (string, error) {
	rel, err := filepath.Rel(workDir, path)
	if err != nil {
		return "", fmt.Errorf("output %s outside working directory: %w", path, err)
	}
	return filepath.ToSlash(rel), nil
}

func warningMessages(outcomes []plugin.Outcome) []api.Message {
	var msgs []api.Message
	for _, o := range outcomes {
		if o.Status == plugin.StatusSkipped || o.Status == plugin.StatusFailed {
			msgs = append(msgs, api.Message{
				PluginName: PluginName,
				Text:       fmt.Sprintf("dedupe %s for %s: %s", o.Status, o.Asset, o.Reason),
			})
		}
		for _, w := range o.Warnings {
			msgs = append(msgs, api.Message{
				PluginName: PluginName,
				Text:       fmt.Sprintf("%s: %s", o.Asset, w),
			})
		}
	}
	return msgs
}
