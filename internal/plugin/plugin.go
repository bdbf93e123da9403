// Package plugin applies the ancestor dedupe pass to every stylesheet of a
// build. It resolves each asset's owning chunk, collects the content of the
// chunk's guaranteed ancestors and writes the residual stylesheet back.
//
// Failures are local to one asset: they are reported in the asset's Outcome
// and the asset is left untouched.
package plugin

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/leapstack-labs/cssdedupe/internal/ancestry"
	"github.com/leapstack-labs/cssdedupe/internal/assets"
	"github.com/leapstack-labs/cssdedupe/internal/chunkgraph"
	"github.com/leapstack-labs/cssdedupe/internal/compositor"
	"github.com/leapstack-labs/cssdedupe/internal/cssdup"
	"github.com/leapstack-labs/cssdedupe/internal/sourcemap"
)

// Graph is the read-only chunk graph of one build.
type Graph interface {
	ancestry.Querier
	ChunkOwning(filename string) (*chunkgraph.Chunk, error)
}

// Plugin runs the dedupe pass over a store.
type Plugin struct {
	opts       Options
	compositor *compositor.Compositor
	logger     *slog.Logger
}

// New creates a Plugin. A nil remover uses cssdup; a nil logger discards.
func New(opts Options, remover compositor.Remover, logger *slog.Logger) *Plugin {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Plugin{
		opts:       opts.withDefaults(),
		compositor: compositor.New(remover, logger),
		logger:     logger,
	}
}

// Options returns the effective options.
func (p *Plugin) Options() Options {
	return p.opts
}

// Matches reports whether name is an asset the plugin processes.
func (p *Plugin) Matches(name string) bool {
	return p.opts.AssetPattern.MatchString(name)
}

// Process dedupes every matching asset in names. Outcomes are sorted by
// asset name. The returned error is only set when ctx is cancelled.
func (p *Plugin) Process(ctx context.Context, graph Graph, store assets.Store, names []string) ([]Outcome, error) {
	var selected []string
	for _, name := range names {
		if p.Matches(name) {
			selected = append(selected, name)
		}
	}
	sort.Strings(selected)

	p.logger.Debug("processing assets", "matched", len(selected), "total", len(names))

	outcomes := make([]Outcome, len(selected))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(p.opts.Concurrency)
	for i, name := range selected {
		i, name := i, name
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			outcomes[i] = p.ProcessAsset(graph, store, name)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return outcomes, nil
}

// ProcessAsset dedupes one asset against its ancestors.
func (p *Plugin) ProcessAsset(graph Graph, store assets.Store, name string) Outcome {
	out := Outcome{Asset: name}

	content, err := store.Get(name)
	if err != nil {
		return p.fail(out, StatusFailed, "read asset", err)
	}
	out.BytesBefore = len(content)
	out.BytesAfter = len(content)

	chunk, err := graph.ChunkOwning(name)
	if err != nil {
		return p.fail(out, StatusSkipped, "resolve owning chunk", err)
	}
	out.Chunk = chunk.Name

	ancestors := ancestry.Resolve(graph, chunk)
	out.Ancestors = ancestry.Names(ancestors)
	if len(ancestors) == 0 {
		out.Status = StatusUnchanged
		out.Reason = "no ancestors"
		return out
	}

	contents := p.ancestorContents(store, ancestors, &out)
	if strings.TrimSpace(strings.Join(contents, "")) == "" {
		out.Status = StatusUnchanged
		out.Reason = "no ancestor content"
		return out
	}

	var mapOpts *cssdup.MapOptions
	if p.opts.SourceMap != nil {
		mapOpts = &cssdup.MapOptions{
			Prev:           p.opts.SourceMap.Prev,
			SourcesContent: p.opts.SourceMap.SourcesContent,
		}
		if mapOpts.Prev == "" {
			prev, err := sourcemap.LoadPrevious(store, name)
			if err != nil {
				p.warn(&out, "Error getting previous source map", err)
			}
			mapOpts.Prev = prev
		}
	}

	res, err := p.compositor.Dedupe(compositor.Input{
		Filename:  name,
		Content:   content,
		Ancestors: contents,
		Map:       mapOpts,
	})
	if err != nil {
		return p.fail(out, StatusFailed, "dedupe", err)
	}

	if res.Status == compositor.StatusDeduped {
		if err := store.Set(name, res.Content); err != nil {
			return p.fail(out, StatusFailed, "write asset", err)
		}
		out.Status = StatusDeduped
		out.BytesAfter = len(res.Content)
	} else {
		out.Status = StatusUnchanged
		out.Reason = "nothing shared with ancestors"
	}

	if mapOpts != nil && res.Map != "" {
		if err := store.Set(name+sourcemap.Suffix, res.Map); err != nil {
			p.warn(&out, "Error writing source map", err)
		}
	}

	p.logger.Debug("processed asset",
		"asset", name,
		"chunk", out.Chunk,
		"status", string(out.Status),
		"ancestors", len(out.Ancestors),
		"saved", out.Saved(),
	)
	return out
}

// ancestorContents reads the matching files of every ancestor in order.
// Files missing from the store are skipped.
func (p *Plugin) ancestorContents(store assets.Store, ancestors []*chunkgraph.Chunk, out *Outcome) []string {
	var contents []string
	for _, chunk := range ancestors {
		for _, file := range chunk.Files {
			if !p.opts.AncestorPattern.MatchString(file) {
				continue
			}
			content, err := store.Get(file)
			if errors.Is(err, assets.ErrNotFound) {
				p.logger.Debug("ancestor file missing", "asset", out.Asset, "file", file)
				continue
			}
			if err != nil {
				p.warn(out, "Error reading ancestor file", fmt.Errorf("%s: %w", file, err))
				continue
			}
			contents = append(contents, content)
		}
	}
	return contents
}

func (p *Plugin) fail(out Outcome, status Status, step string, err error) Outcome {
	out.Status = status
	out.Reason = step + ": " + err.Error()
	out.Err = err

	if p.opts.EmitWarnings {
		level := slog.LevelWarn
		if errors.Is(err, compositor.ErrMarkerNotFound) {
			level = slog.LevelError
		}
		p.logger.Log(context.Background(), level, "dedupe skipped for asset",
			"asset", out.Asset,
			"status", string(status),
			"step", step,
			"error", err,
		)
	}
	return out
}

func (p *Plugin) warn(out *Outcome, msg string, err error) {
	out.Warnings = append(out.Warnings, msg+": "+err.Error())
	if p.opts.EmitWarnings {
		p.logger.Warn(msg, "asset", out.Asset, "error", err)
	}
}
