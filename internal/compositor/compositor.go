// Package compositor removes from a child stylesheet the rules its ancestor
// stylesheets already ship.
//
// The child is joined with its ancestors behind a marker comment, the whole
// document goes through a "last occurrence wins" duplicate-removal pass, and
// everything before the marker is kept. Child rules repeated by an ancestor
// are the earlier occurrence, so they are the ones dropped.
package compositor

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/leapstack-labs/cssdedupe/internal/cssdup"
)

var (
	// ErrMarkerNotFound means the split marker did not survive the
	// duplicate-removal pass, so the residual cannot be located.
	ErrMarkerNotFound = errors.New("split marker not found in deduplicated output")
	// ErrMarkerInContent means the child already contains its own marker.
	ErrMarkerInContent = errors.New("stylesheet already contains its split marker")
)

// Status describes what Dedupe did to the child.
type Status int

const (
	// StatusUnchanged means the child is returned as given.
	StatusUnchanged Status = iota
	// StatusDeduped means rules were removed from the child.
	StatusDeduped
)

func (s Status) String() string {
	if s == StatusDeduped {
		return "deduped"
	}
	return "unchanged"
}

// Remover is the duplicate-removal primitive.
type Remover interface {
	Process(css string, opts cssdup.Options) (*cssdup.Result, error)
}

// Input is one child stylesheet and the content of its ancestors.
type Input struct {
	// Filename names the child asset; it seeds the marker and the map
	Filename string
	// Content is the child stylesheet
	Content string
	// Ancestors are ancestor stylesheets in load order
	Ancestors []string
	// Map requests a source map; Map.Prev is the previous map, if any
	Map *cssdup.MapOptions
}

// Result is the residual child stylesheet.
type Result struct {
	Content string
	// Map describes the whole combined document, not just Content
	Map    string
	Status Status
}

// Compositor runs the marker composition around a Remover.
type Compositor struct {
	remover Remover
	logger  *slog.Logger
}

// New creates a Compositor. A nil remover uses cssdup; a nil logger
// discards.
func New(remover Remover, logger *slog.Logger) *Compositor {
	if remover == nil {
		remover = cssdup.New()
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Compositor{remover: remover, logger: logger}
}

// Marker returns the comment that separates the child from its ancestors.
// A "*/" inside the name is escaped so the comment cannot close early.
func Marker(filename string) string {
	return "/*splitfilename=" + strings.ReplaceAll(filename, "*/", `*\/`) + "*/"
}

// Dedupe returns the child without the rules its ancestors repeat. On error
// the returned Result still carries the original content, so callers can
// always write Result.Content back.
func (c *Compositor) Dedupe(in Input) (Result, error) {
	res := Result{Content: in.Content, Status: StatusUnchanged}

	ancestors := strings.Join(in.Ancestors, "")
	if strings.TrimSpace(ancestors) == "" {
		return res, nil
	}

	marker := Marker(in.Filename)
	if strings.Contains(in.Content, marker) {
		return res, fmt.Errorf("%s: %w", in.Filename, ErrMarkerInContent)
	}

	combined := in.Content + marker + ancestors
	out, err := c.remover.Process(combined, cssdup.Options{
		From: in.Filename,
		To:   in.Filename,
		Map:  in.Map,
	})
	if err != nil {
		return res, fmt.Errorf("remove duplicates from %s: %w", in.Filename, err)
	}

	idx := strings.Index(out.CSS, marker)
	if idx < 0 {
		return res, fmt.Errorf("%s: %w", in.Filename, ErrMarkerNotFound)
	}

	res.Content = out.CSS[:idx]
	if in.Map != nil {
		res.Map = out.Map
	}
	if res.Content != in.Content {
		res.Status = StatusDeduped
	}

	c.logger.Debug("composed stylesheet",
		"file", in.Filename,
		"ancestors", len(in.Ancestors),
		"bytes_before", len(in.Content),
		"bytes_after", len(res.Content),
	)
	return res, nil
}
