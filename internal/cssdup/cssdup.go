// Package cssdup removes duplicate rules, at-rules and declarations from a
// stylesheet. When two statements are equivalent the last one wins and the
// earlier one is dropped; rules sharing a selector lose the declarations a
// later rule repeats.
//
// Output is the input with the dropped statements cut out. Everything else,
// including comments and formatting, is preserved byte for byte.
package cssdup

import (
	"sort"
	"strings"

	"github.com/leapstack-labs/cssdedupe/internal/sourcemap"
)

// MapOptions requests a source map for the processed stylesheet.
type MapOptions struct {
	// Prev is a map describing the input stylesheet
	Prev string
	// SourcesContent embeds original sources in the produced map
	SourcesContent bool
}

// Options configures one Process call.
type Options struct {
	From string
	To   string
	Map  *MapOptions
}

// Result is the processed stylesheet and, when requested, its map.
type Result struct {
	CSS     string
	Map     string
	Removed int
}

// Remover is the duplicate-removal pass. It holds no state and is safe for
// concurrent use.
type Remover struct{}

// New creates a Remover.
func New() *Remover {
	return &Remover{}
}

// Process removes duplicates from src.
func (r *Remover) Process(src string, opts Options) (*Result, error) {
	nodes, err := parseStylesheet(src)
	if err != nil {
		return nil, err
	}
	dedupe(nodes)

	var removed []*node
	collectRemoved(nodes, &removed)
	sort.Slice(removed, func(i, j int) bool { return removed[i].start < removed[j].start })

	out, segments := cut(src, removed)
	res := &Result{CSS: out, Removed: len(removed)}

	if opts.Map != nil {
		source := opts.From
		if source == "" {
			source = opts.To
		}
		m, err := sourcemap.ForRewrite(src, out, segments, sourcemap.RewriteOptions{
			File:           opts.To,
			Source:         source,
			Prev:           opts.Map.Prev,
			SourcesContent: opts.Map.SourcesContent,
		})
		if err != nil {
			return nil, err
		}
		res.Map = m.String()
	}
	return res, nil
}

// collectRemoved gathers the outermost removed nodes.
func collectRemoved(nodes []*node, acc *[]*node) {
	for _, n := range nodes {
		if n.removed {
			*acc = append(*acc, n)
			continue
		}
		collectRemoved(n.children, acc)
	}
}

// cut returns src without the removed ranges, plus the kept segments.
func cut(src string, removed []*node) (string, []sourcemap.Segment) {
	var b strings.Builder
	b.Grow(len(src))
	var segments []sourcemap.Segment

	keep := func(from, to int) {
		if to <= from {
			return
		}
		segments = append(segments, sourcemap.Segment{Start: from, End: to, Out: b.Len()})
		b.WriteString(src[from:to])
	}

	pos := 0
	for _, n := range removed {
		if n.start < pos {
			continue
		}
		keep(pos, n.start)
		pos = n.end
	}
	keep(pos, len(src))
	return b.String(), segments
}
