// Package chunkgraph models the output chunks of a bundle and the chunk groups
// that load them together. Groups are linked to the groups they depend on
// through parent edges; the graph answers ownership and ancestry queries.
package chunkgraph

import (
	"fmt"
	"sort"
)

// Chunk is a build artifact that produces one or more output files.
type Chunk struct {
	// Name identifies the chunk across groups
	Name string
	// Files are the output files the chunk produces, in emit order
	Files []string
}

// HasFile reports whether the chunk produces the named file.
func (c *Chunk) HasFile(name string) bool {
	return contains(c.Files, name)
}

// Group is a set of chunks that load together, such as an entry point and
// everything split out of it.
type Group struct {
	Name   string
	Chunks []*Chunk
}

// Contains reports whether a chunk with the given name is a member of the group.
func (g *Group) Contains(chunkName string) bool {
	for _, c := range g.Chunks {
		if c.Name == chunkName {
			return true
		}
	}
	return false
}

// Graph holds chunks and the parent/child relations between their groups.
// Cycles and self-references are tolerated; queries never loop on them.
type Graph struct {
	chunks     map[string]*Chunk
	chunkOrder []string
	groups     map[string]*Group
	groupOrder []string
	parents    map[string][]string // group -> parent groups
	children   map[string][]string // group -> child groups
}

// NewGraph creates a new empty graph.
func NewGraph() *Graph {
	return &Graph{
		chunks:   make(map[string]*Chunk),
		groups:   make(map[string]*Group),
		parents:  make(map[string][]string),
		children: make(map[string][]string),
	}
}

// AddChunk adds a chunk to the graph. Adding an existing chunk appends any
// files it does not already produce.
func (g *Graph) AddChunk(name string, files ...string) *Chunk {
	if c, exists := g.chunks[name]; exists {
		for _, f := range files {
			if !contains(c.Files, f) {
				c.Files = append(c.Files, f)
			}
		}
		return c
	}

	c := &Chunk{Name: name, Files: append([]string(nil), files...)}
	g.chunks[name] = c
	g.chunkOrder = append(g.chunkOrder, name)
	return c
}

// AddGroup adds a group made of already-registered chunks.
func (g *Graph) AddGroup(name string, chunkNames ...string) error {
	if _, exists := g.groups[name]; exists {
		return fmt.Errorf("group %q already exists", name)
	}

	group := &Group{Name: name}
	for _, cn := range chunkNames {
		c, ok := g.chunks[cn]
		if !ok {
			return fmt.Errorf("group %q references unknown chunk %q", name, cn)
		}
		if !group.Contains(cn) {
			group.Chunks = append(group.Chunks, c)
		}
	}

	g.groups[name] = group
	g.groupOrder = append(g.groupOrder, name)
	g.parents[name] = []string{}
	g.children[name] = []string{}
	return nil
}

// AddParent records that group child is loaded beneath group parent.
func (g *Graph) AddParent(child, parent string) error {
	if _, exists := g.groups[child]; !exists {
		return fmt.Errorf("child group %q does not exist", child)
	}
	if _, exists := g.groups[parent]; !exists {
		return fmt.Errorf("parent group %q does not exist", parent)
	}

	if !contains(g.parents[child], parent) {
		g.parents[child] = append(g.parents[child], parent)
	}
	if !contains(g.children[parent], child) {
		g.children[parent] = append(g.children[parent], child)
	}
	return nil
}

// Chunk returns a chunk by name.
func (g *Graph) Chunk(name string) (*Chunk, bool) {
	c, ok := g.chunks[name]
	return c, ok
}

// Group returns a group by name.
func (g *Graph) Group(name string) (*Group, bool) {
	grp, ok := g.groups[name]
	return grp, ok
}

// Chunks returns all chunks in insertion order.
func (g *Graph) Chunks() []*Chunk {
	out := make([]*Chunk, 0, len(g.chunkOrder))
	for _, name := range g.chunkOrder {
		out = append(out, g.chunks[name])
	}
	return out
}

// Groups returns all groups in insertion order.
func (g *Graph) Groups() []*Group {
	out := make([]*Group, 0, len(g.groupOrder))
	for _, name := range g.groupOrder {
		out = append(out, g.groups[name])
	}
	return out
}

// Parents returns the direct parent groups of a group.
func (g *Graph) Parents(group string) []string {
	return g.parents[group]
}

// Children returns the direct child groups of a group.
func (g *Graph) Children(group string) []string {
	return g.children[group]
}

// ChunkCount returns the number of chunks in the graph.
func (g *Graph) ChunkCount() int {
	return len(g.chunks)
}

// GroupCount returns the number of groups in the graph.
func (g *Graph) GroupCount() int {
	return len(g.groups)
}

// EdgeCount returns the number of parent edges in the graph.
func (g *Graph) EdgeCount() int {
	count := 0
	for _, ps := range g.parents {
		count += len(ps)
	}
	return count
}

// ChunkOwning returns the single chunk producing filename. It fails with an
// *OwnershipError when no chunk or more than one chunk claims the file.
func (g *Graph) ChunkOwning(filename string) (*Chunk, error) {
	var owners []*Chunk
	for _, name := range g.chunkOrder {
		if c := g.chunks[name]; c.HasFile(filename) {
			owners = append(owners, c)
		}
	}

	if len(owners) != 1 {
		names := make([]string, len(owners))
		for i, c := range owners {
			names[i] = c.Name
		}
		return nil, &OwnershipError{File: filename, Owners: names}
	}
	return owners[0], nil
}

// GroupsContaining returns every group that has a member chunk named chunkName.
func (g *Graph) GroupsContaining(chunkName string) []*Group {
	var out []*Group
	for _, name := range g.groupOrder {
		if grp := g.groups[name]; grp.Contains(chunkName) {
			out = append(out, grp)
		}
	}
	return out
}

// ParentGroupsOf returns every group reachable from group through parent
// edges, nearest first. The group itself appears only when a cycle leads back
// to it.
func (g *Graph) ParentGroupsOf(group string) []string {
	visited := make(map[string]bool)
	var result []string

	queue := append([]string(nil), g.parents[group]...)
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		if visited[id] {
			continue
		}
		visited[id] = true
		result = append(result, id)
		queue = append(queue, g.parents[id]...)
	}
	return result
}

// ParentChunksOf returns the member chunks of every group reachable from
// group through parent edges. Chunks are unique by name and ordered by
// discovery.
func (g *Graph) ParentChunksOf(group string) []*Chunk {
	seen := make(map[string]bool)
	var out []*Chunk
	for _, id := range g.ParentGroupsOf(group) {
		for _, c := range g.groups[id].Chunks {
			if !seen[c.Name] {
				seen[c.Name] = true
				out = append(out, c)
			}
		}
	}
	return out
}

// HasCycle returns true if the parent edges contain a cycle, along with the
// cycle path.
func (g *Graph) HasCycle() (bool, []string) {
	visited := make(map[string]bool)
	recStack := make(map[string]bool)
	path := make(map[string]string)

	var cyclePath []string

	var dfs func(id string) bool
	dfs = func(id string) bool {
		visited[id] = true
		recStack[id] = true

		for _, parentID := range g.parents[id] {
			if !visited[parentID] {
				path[parentID] = id
				if dfs(parentID) {
					return true
				}
			} else if recStack[parentID] {
				cyclePath = []string{parentID}
				for curr := id; curr != parentID; curr = path[curr] {
					cyclePath = append([]string{curr}, cyclePath...)
				}
				cyclePath = append([]string{parentID}, cyclePath...)
				return true
			}
		}

		recStack[id] = false
		return false
	}

	for _, id := range g.groupOrder {
		if !visited[id] {
			if dfs(id) {
				return true, cyclePath
			}
		}
	}

	return false, nil
}

// AmbiguousFiles returns the files produced by more than one chunk, sorted.
// Dedupe is skipped for these files.
func (g *Graph) AmbiguousFiles() []string {
	owners := make(map[string]int)
	for _, c := range g.chunks {
		for _, f := range c.Files {
			owners[f]++
		}
	}
	var out []string
	for f, n := range owners {
		if n > 1 {
			out = append(out, f)
		}
	}
	sort.Strings(out)
	return out
}

// Roots returns groups with no parents (entry groups).
func (g *Graph) Roots() []string {
	var roots []string
	for id, ps := range g.parents {
		if len(ps) == 0 {
			roots = append(roots, id)
		}
	}
	sort.Strings(roots)
	return roots
}

// contains checks if a slice contains a string.
func contains(slice []string, str string) bool {
	for _, s := range slice {
		if s == str {
			return true
		}
	}
	return false
}
