package sourcemap

import "strings"

// Mapping ties a generated position to an original one. Lines and columns
// are zero-based.
type Mapping struct {
	GenLine   int
	GenColumn int
	Source    string
	SrcLine   int
	SrcColumn int
}

// Generator accumulates mappings in generated order and encodes them.
type Generator struct {
	file     string
	sources  []string
	index    map[string]int
	contents map[int]string

	mappings strings.Builder
	genLine  int
	genCol   int
	srcIdx   int
	srcLine  int
	srcCol   int
	onLine   bool
}

// NewGenerator creates a generator for the named output file.
func NewGenerator(file string) *Generator {
	return &Generator{
		file:     file,
		index:    make(map[string]int),
		contents: make(map[int]string),
	}
}

// SetSourceContent embeds the content of source in the produced map.
func (g *Generator) SetSourceContent(source, content string) {
	g.contents[g.sourceIndex(source)] = content
}

// Add appends a mapping. Mappings must be added in increasing generated
// position; out-of-order mappings are dropped.
func (g *Generator) Add(m Mapping) {
	if m.GenLine < g.genLine || (m.GenLine == g.genLine && g.onLine && m.GenColumn < g.genCol) {
		return
	}

	for g.genLine < m.GenLine {
		g.mappings.WriteByte(';')
		g.genLine++
		g.genCol = 0
		g.onLine = false
	}
	if g.onLine {
		g.mappings.WriteByte(',')
	}

	idx := g.sourceIndex(m.Source)
	writeVLQ(&g.mappings, m.GenColumn-g.genCol)
	writeVLQ(&g.mappings, idx-g.srcIdx)
	writeVLQ(&g.mappings, m.SrcLine-g.srcLine)
	writeVLQ(&g.mappings, m.SrcColumn-g.srcCol)

	g.genCol = m.GenColumn
	g.srcIdx = idx
	g.srcLine = m.SrcLine
	g.srcCol = m.SrcColumn
	g.onLine = true
}

// Map returns the encoded map.
func (g *Generator) Map() *Map {
	m := &Map{
		Version:  3,
		File:     g.file,
		Sources:  append([]string{}, g.sources...),
		Names:    []string{},
		Mappings: g.mappings.String(),
	}
	if len(g.contents) > 0 {
		m.SourcesContent = make([]*string, len(g.sources))
		for i := range g.sources {
			if c, ok := g.contents[i]; ok {
				c := c
				m.SourcesContent[i] = &c
			}
		}
	}
	return m
}

func (g *Generator) sourceIndex(source string) int {
	if idx, ok := g.index[source]; ok {
		return idx
	}
	idx := len(g.sources)
	g.sources = append(g.sources, source)
	g.index[source] = idx
	return idx
}
