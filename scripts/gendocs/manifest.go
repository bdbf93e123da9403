package main

import (
	"fmt"
	"log"
	"os"
	"reflect"
	"strings"

	"github.com/leapstack-labs/cssdedupe/internal/manifest"
)

// exampleManifest is a two-level split: main loads first, page after it.
var exampleManifest = manifest.Manifest{
	Chunks: []manifest.Chunk{
		{Name: "main", Files: []string{"main.js", "main.css"}},
		{Name: "page", Files: []string{"page.js", "page.css"}},
	},
	Groups: []manifest.Group{
		{Name: "main", Chunks: []string{"main"}},
		{Name: "page", Chunks: []string{"page"}, Parents: []string{"main"}},
	},
}

// generateManifestDocs writes the chunk graph manifest reference.
func generateManifestDocs(outDir string) error {
	log.Printf("Generating manifest docs to %s", outDir)

	if err := os.MkdirAll(outDir, 0750); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	w, err := manifestPage()
	if err != nil {
		return err
	}
	return writePage(outDir, "manifest.md", w)
}

func manifestPage() (*MarkdownWriter, error) {
	w := NewMarkdownWriter()
	w.Frontmatter("Chunk Graph Manifest", "Schema of "+manifest.DefaultFile)
	w.GeneratedMarker()

	w.Header(1, "Chunk Graph Manifest")
	w.Paragraph(fmt.Sprintf("%s and %s read the chunk graph of an existing output directory from %s. "+
		"JSON is accepted too. Unknown fields are rejected.",
		InlineCode("cssdedupe dedupe"), InlineCode("cssdedupe graph"), InlineCode(manifest.DefaultFile)))

	w.Header(2, "Fields")
	w.Table([]string{"Field", "Type", "Required"}, fieldRowsOf(structFields(reflect.TypeOf(manifest.Manifest{}), "yaml", "")))

	w.Header(2, "Rules")
	w.BulletList([]string{
		"Chunk names are unique, and so are group names.",
		"Every chunk listed by a group and every parent of a group must be declared.",
		"A file belongs to one chunk; a stylesheet claimed by several is skipped.",
		fmt.Sprintf("A chunk's ancestors are the chunks loaded by every parent path of every group containing it. Run %s to inspect them.",
			InlineCode("cssdedupe graph")),
	})

	w.Header(2, "Example")
	data, err := exampleManifest.Marshal()
	if err != nil {
		return nil, err
	}
	w.CodeBlock("yaml", "# "+manifest.DefaultFile+"\n"+strings.TrimSpace(string(data)))

	return w, nil
}
