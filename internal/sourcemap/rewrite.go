package sourcemap

import (
	"fmt"
	"sort"
	"strings"

	gosourcemap "github.com/go-sourcemap/sourcemap"
)

// Segment is a run of output bytes copied verbatim from the input:
// input[Start:End] appears in the output at offset Out.
type Segment struct {
	Start int
	End   int
	Out   int
}

// RewriteOptions describes the map produced for a rewritten document.
type RewriteOptions struct {
	// File is the generated file recorded in the map
	File string
	// Source names the input document when there is no previous map
	Source string
	// Prev is a map describing the input; positions are composed through it
	Prev string
	// SourcesContent embeds original contents in the produced map
	SourcesContent bool
}

// ForRewrite builds a map for output, which was assembled from the given
// segments of input. A mapping is emitted at the start of each segment and at
// every line start inside it.
func ForRewrite(input, output string, segments []Segment, opts RewriteOptions) (*Map, error) {
	translate, prev, err := translator(opts)
	if err != nil {
		return nil, err
	}

	in := newLineIndex(input)
	out := newLineIndex(output)
	gen := NewGenerator(opts.File)

	emit := func(seg Segment, p int) {
		inLine, inCol := in.position(p)
		outLine, outCol := out.position(seg.Out + p - seg.Start)
		source, line, col, ok := translate(inLine, inCol)
		if !ok {
			return
		}
		gen.Add(Mapping{GenLine: outLine, GenColumn: outCol, Source: source, SrcLine: line, SrcColumn: col})
	}

	for _, seg := range segments {
		if seg.End <= seg.Start {
			continue
		}
		emit(seg, seg.Start)
		for p := seg.Start; p < seg.End-1; p++ {
			if input[p] == '\n' {
				emit(seg, p+1)
			}
		}
	}

	if opts.SourcesContent {
		if prev == nil {
			gen.SetSourceContent(opts.Source, input)
		} else {
			for _, s := range prev.Sources {
				if content, ok := prev.SourceContent(s); ok {
					gen.SetSourceContent(s, content)
				}
			}
		}
	}

	return gen.Map(), nil
}

type translateFunc func(line, col int) (source string, srcLine, srcCol int, ok bool)

// translator returns the position mapping for the input document: identity
// onto opts.Source, or a lookup through the previous map.
func translator(opts RewriteOptions) (translateFunc, *Map, error) {
	if strings.TrimSpace(opts.Prev) == "" {
		return func(line, col int) (string, int, int, bool) {
			return opts.Source, line, col, true
		}, nil, nil
	}

	prev, err := Parse(opts.Prev)
	if err != nil {
		return nil, nil, err
	}
	consumer, err := gosourcemap.Parse("", []byte(opts.Prev))
	if err != nil {
		return nil, nil, fmt.Errorf("invalid previous map: %w", err)
	}

	return func(line, col int) (string, int, int, bool) {
		source, _, srcLine, srcCol, ok := consumer.Source(line+1, col)
		if !ok {
			return "", 0, 0, false
		}
		return source, srcLine - 1, srcCol, true
	}, prev, nil
}

// lineIndex holds the byte offsets at which lines start.
type lineIndex []int

func newLineIndex(s string) lineIndex {
	starts := lineIndex{0}
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			starts = append(starts, i+1)
		}
	}
	return starts
}

// position converts a byte offset into a zero-based line and byte column.
func (li lineIndex) position(off int) (int, int) {
	line := sort.Search(len(li), func(i int) bool { return li[i] > off }) - 1
	return line, off - li[line]
}
