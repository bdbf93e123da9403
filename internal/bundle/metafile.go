package bundle

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/leapstack-labs/cssdedupe/internal/chunkgraph"
)

// Import kinds recorded in esbuild metafile outputs.
const (
	kindImportStatement = "import-statement"
	kindRequireCall     = "require-call"
	kindDynamicImport   = "dynamic-import"
)

// ErrNoMetafile is returned when a build result carries no metafile.
var ErrNoMetafile = errors.New("build result has no metafile; enable Metafile")

// Metafile is the subset of esbuild's metafile used to rebuild the chunk
// graph.
type Metafile struct {
	Outputs map[string]MetaOutput `json:"outputs"`
}

// MetaOutput describes one output file.
type MetaOutput struct {
	Bytes      int          `json:"bytes"`
	Imports    []MetaImport `json:"imports"`
	EntryPoint string       `json:"entryPoint,omitempty"`
	CSSBundle  string       `json:"cssBundle,omitempty"`
}

// MetaImport is an import from one output to another.
type MetaImport struct {
	Path     string `json:"path"`
	Kind     string `json:"kind"`
	External bool   `json:"external,omitempty"`
}

// ParseMetafile decodes the metafile JSON of a build result.
func ParseMetafile(data string) (*Metafile, error) {
	if strings.TrimSpace(data) == "" {
		return nil, ErrNoMetafile
	}
	var m Metafile
	if err := json.Unmarshal([]byte(data), &m); err != nil {
		return nil, fmt.Errorf("failed to parse metafile: %w", err)
	}
	return &m, nil
}

// GraphFromMetafile converts the outputs of a build into a chunk graph.
//
// Every JS output (and every CSS output not attached to one as its
// cssBundle) is a chunk named after its output path; a JS chunk also owns
// its CSS bundle. Every entry point output starts a group holding the
// output and the chunks it statically imports, dependencies first. A
// dynamic import makes the importing group a parent of the imported
// entry's group.
func GraphFromMetafile(m *Metafile) (*chunkgraph.Graph, error) {
	paths := make([]string, 0, len(m.Outputs))
	bundled := make(map[string]bool)
	for path, out := range m.Outputs {
		paths = append(paths, path)
		if out.CSSBundle != "" {
			bundled[out.CSSBundle] = true
		}
	}
	sort.Strings(paths)

	g := chunkgraph.NewGraph()
	for _, path := range paths {
		if strings.HasSuffix(path, ".map") || bundled[path] {
			continue
		}
		files := []string{path}
		if css := m.Outputs[path].CSSBundle; css != "" {
			files = append(files, css)
		}
		g.AddChunk(path, files...)
	}

	groupOf := make(map[string]string)
	members := make(map[string][]string)
	for _, path := range paths {
		out := m.Outputs[path]
		if out.EntryPoint == "" {
			continue
		}
		if _, ok := g.Chunk(path); !ok {
			continue
		}
		chunks := staticClosure(m, g, path)
		if err := g.AddGroup(out.EntryPoint, chunks...); err != nil {
			return nil, err
		}
		groupOf[path] = out.EntryPoint
		members[out.EntryPoint] = chunks
	}

	for _, path := range paths {
		group, ok := groupOf[path]
		if !ok {
			continue
		}
		for _, member := range members[group] {
			for _, imp := range m.Outputs[member].Imports {
				if imp.External || imp.Kind != kindDynamicImport {
					continue
				}
				target, ok := groupOf[imp.Path]
				if !ok {
					continue
				}
				if err := g.AddParent(target, group); err != nil {
					return nil, err
				}
			}
		}
	}

	return g, nil
}

// staticClosure returns the chunks loaded together with entry, in
// dependency order.
func staticClosure(m *Metafile, g *chunkgraph.Graph, entry string) []string {
	var order []string
	visited := make(map[string]bool)

	var visit func(path string)
	visit = func(path string) {
		if visited[path] {
			return
		}
		visited[path] = true
		for _, imp := range m.Outputs[path].Imports {
			if imp.External || (imp.Kind != kindImportStatement && imp.Kind != kindRequireCall) {
				continue
			}
			if _, ok := g.Chunk(imp.Path); ok {
				visit(imp.Path)
			}
		}
		order = append(order, path)
	}

	visit(entry)
	return order
}
