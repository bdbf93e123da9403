// Package manifest reads and writes chunk graph manifests: YAML (or JSON)
// files describing the chunks, chunk groups and parent edges of a build
// whose output already sits on disk.
package manifest

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/leapstack-labs/cssdedupe/internal/chunkgraph"
)

// DefaultFile is the manifest name looked up in an output directory.
const DefaultFile = "chunks.yaml"

// Manifest is the file form of a chunk graph.
type Manifest struct {
	Chunks []Chunk `yaml:"chunks" json:"chunks"`
	Groups []Group `yaml:"groups" json:"groups"`
}

// Chunk is one build artifact and the files it produces.
type Chunk struct {
	Name  string   `yaml:"name" json:"name"`
	Files []string `yaml:"files,omitempty" json:"files,omitempty"`
}

// Group is a set of chunks loaded together and the groups loaded before it.
type Group struct {
	Name    string   `yaml:"name" json:"name"`
	Chunks  []string `yaml:"chunks" json:"chunks"`
	Parents []string `yaml:"parents,omitempty" json:"parents,omitempty"`
}

// Load reads a manifest file.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path is provided by the user
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}
	m, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

// Parse decodes a manifest. JSON is accepted since it is valid YAML.
func Parse(data []byte) (*Manifest, error) {
	var m Manifest
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&m); err != nil {
		return nil, fmt.Errorf("invalid manifest: %w", err)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// Validate checks names are present and unique.
func (m *Manifest) Validate() error {
	var errs []error
	chunks := make(map[string]bool, len(m.Chunks))
	for i, c := range m.Chunks {
		switch {
		case c.Name == "":
			errs = append(errs, fmt.Errorf("chunk %d has no name", i))
		case chunks[c.Name]:
			errs = append(errs, fmt.Errorf("duplicate chunk %q", c.Name))
		}
		chunks[c.Name] = true
	}

	groups := make(map[string]bool, len(m.Groups))
	for i, g := range m.Groups {
		switch {
		case g.Name == "":
			errs = append(errs, fmt.Errorf("group %d has no name", i))
		case groups[g.Name]:
			errs = append(errs, fmt.Errorf("duplicate group %q", g.Name))
		}
		groups[g.Name] = true
		for _, c := range g.Chunks {
			if !chunks[c] {
				errs = append(errs, fmt.Errorf("group %q references unknown chunk %q", g.Name, c))
			}
		}
	}
	for _, g := range m.Groups {
		for _, p := range g.Parents {
			if !groups[p] {
				errs = append(errs, fmt.Errorf("group %q references unknown parent %q", g.Name, p))
			}
		}
	}
	return errors.Join(errs...)
}

// Graph builds the chunk graph the manifest describes.
func (m *Manifest) Graph() (*chunkgraph.Graph, error) {
	g := chunkgraph.NewGraph()
	for _, c := range m.Chunks {
		g.AddChunk(c.Name, c.Files...)
	}
	for _, grp := range m.Groups {
		if err := g.AddGroup(grp.Name, grp.Chunks...); err != nil {
			return nil, err
		}
	}
	for _, grp := range m.Groups {
		for _, p := range grp.Parents {
			if err := g.AddParent(grp.Name, p); err != nil {
				return nil, err
			}
		}
	}
	return g, nil
}

// FromGraph describes g as a manifest.
func FromGraph(g *chunkgraph.Graph) *Manifest {
	m := &Manifest{}
	for _, c := range g.Chunks() {
		m.Chunks = append(m.Chunks, Chunk{Name: c.Name, Files: append([]string(nil), c.Files...)})
	}
	for _, grp := range g.Groups() {
		out := Group{Name: grp.Name, Parents: g.Parents(grp.Name)}
		for _, c := range grp.Chunks {
			out.Chunks = append(out.Chunks, c.Name)
		}
		m.Groups = append(m.Groups, out)
	}
	return m
}

// Marshal encodes the manifest as YAML.
func (m *Manifest) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(m); err != nil {
		return nil, fmt.Errorf("failed to encode manifest: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
