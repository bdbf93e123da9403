// Package ancestry resolves the chunks that are guaranteed to be loaded before
// a given chunk, whichever entry path leads to it.
package ancestry

import "github.com/leapstack-labs/cssdedupe/internal/chunkgraph"

// Querier provides the read-only graph queries the resolver needs.
type Querier interface {
	GroupsContaining(chunkName string) []*chunkgraph.Group
	ParentChunksOf(group string) []*chunkgraph.Chunk
}

// Resolve returns the chunks that are ancestors of chunk along every group
// containing it. A candidate drawn from any group's parent closure is kept only
// when every other group's parent closure has a chunk of the same name.
// The chunk itself is never returned, even through cycles.
//
// An empty result means no chunk is unconditionally loaded first.
func Resolve(g Querier, chunk *chunkgraph.Chunk) []*chunkgraph.Chunk {
	groups := g.GroupsContaining(chunk.Name)
	if len(groups) == 0 {
		return nil
	}

	perGroup := make([]map[string]bool, len(groups))
	var candidates []*chunkgraph.Chunk
	for i, grp := range groups {
		parents := g.ParentChunksOf(grp.Name)
		if len(parents) == 0 {
			// An entry path with nothing loaded before it
			return nil
		}
		names := make(map[string]bool, len(parents))
		for _, p := range parents {
			names[p.Name] = true
		}
		perGroup[i] = names
		candidates = append(candidates, parents...)
	}

	seen := make(map[string]bool)
	var result []*chunkgraph.Chunk
	for _, c := range candidates {
		if c.Name == chunk.Name || seen[c.Name] {
			continue
		}
		seen[c.Name] = true
		if onEveryPath(perGroup, c.Name) {
			result = append(result, c)
		}
	}
	return result
}

// Names returns the names of chunks, preserving order.
func Names(chunks []*chunkgraph.Chunk) []string {
	names := make([]string, len(chunks))
	for i, c := range chunks {
		names[i] = c.Name
	}
	return names
}

func onEveryPath(perGroup []map[string]bool, name string) bool {
	for _, names := range perGroup {
		if !names[name] {
			return false
		}
	}
	return true
}
