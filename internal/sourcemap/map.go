// Package sourcemap reads, writes and composes revision 3 source maps for
// stylesheets rewritten by the dedupe pass.
package sourcemap

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	gosourcemap "github.com/go-sourcemap/sourcemap"

	"github.com/leapstack-labs/cssdedupe/internal/assets"
)

// Suffix is appended to an asset name to locate its source map.
const Suffix = ".map"

// Map is the JSON form of a revision 3 source map.
type Map struct {
	Version        int       `json:"version"`
	File           string    `json:"file,omitempty"`
	SourceRoot     string    `json:"sourceRoot,omitempty"`
	Sources        []string  `json:"sources"`
	SourcesContent []*string `json:"sourcesContent,omitempty"`
	Names          []string  `json:"names"`
	Mappings       string    `json:"mappings"`
}

// Parse decodes a source map.
func Parse(data string) (*Map, error) {
	var m Map
	if err := json.Unmarshal([]byte(data), &m); err != nil {
		return nil, fmt.Errorf("invalid source map: %w", err)
	}
	return &m, nil
}

// Check reports whether data is a previous map a rewrite can compose
// through: valid JSON that the consumer also accepts.
func Check(data string) error {
	if _, err := Parse(data); err != nil {
		return err
	}
	if _, err := gosourcemap.Parse("", []byte(data)); err != nil {
		return fmt.Errorf("invalid source map: %w", err)
	}
	return nil
}

// Empty reports whether the map carries neither sources nor mappings.
func (m *Map) Empty() bool {
	return len(m.Sources) == 0 && m.Mappings == ""
}

// SourceContent returns the embedded content of source, if present.
func (m *Map) SourceContent(source string) (string, bool) {
	for i, s := range m.Sources {
		if s != source || i >= len(m.SourcesContent) || m.SourcesContent[i] == nil {
			continue
		}
		return *m.SourcesContent[i], true
	}
	return "", false
}

// String encodes the map as JSON.
func (m *Map) String() string {
	var b strings.Builder
	enc := json.NewEncoder(&b)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(m); err != nil {
		// Map only holds strings and ints
		panic(err)
	}
	return strings.TrimSuffix(b.String(), "\n")
}

// LoadPrevious fetches name+Suffix from store for use as the previous map of
// a rewrite. A missing or degenerate map yields "" with no error; a map that
// cannot be decoded or composed through yields an error the caller may treat
// as a warning.
func LoadPrevious(store assets.Store, name string) (string, error) {
	raw, err := store.Get(name + Suffix)
	if errors.Is(err, assets.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(raw) == "" {
		return "", nil
	}

	m, err := Parse(raw)
	if err != nil {
		return "", fmt.Errorf("previous map for %s: %w", name, err)
	}
	if m.Empty() {
		return "", nil
	}
	if err := Check(raw); err != nil {
		return "", fmt.Errorf("previous map for %s: %w", name, err)
	}
	return raw, nil
}
