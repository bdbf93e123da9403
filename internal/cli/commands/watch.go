package commands

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/leapstack-labs/cssdedupe/internal/bundle"
)

// DefaultDebounce is how long the watcher waits for changes to settle.
const DefaultDebounce = 100 * time.Millisecond

// watchedExts are the source extensions that trigger a rebuild.
var watchedExts = map[string]bool{
	".js": true, ".jsx": true, ".mjs": true, ".cjs": true,
	".ts": true, ".tsx": true, ".mts": true, ".cts": true,
	".css": true,
}

// NewWatchCommand creates the watch command.
func NewWatchCommand() *cobra.Command {
	var debounce time.Duration

	cmd := &cobra.Command{
		Use:   "watch [entry-point...]",
		Short: "Rebuild and dedupe when sources change",
		Long: `Run build once, then watch the project for source changes and rebuild.

Every directory under the project root is watched except the output
directory, node_modules and hidden directories. Press Ctrl+C to stop.`,
		Example: `  # Watch the configured entry points
  cssdedupe watch

  # Watch with a longer settle time
  cssdedupe watch --debounce 500ms`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			cmdCtx := NewCommandContext(cmd)
			w := NewWatcher(cmdCtx, args)
			w.Debounce = debounce
			w.OnBuild = func(res *bundle.Result, started time.Time, err error) {
				cmdCtx.reportWatchBuild(ctx, res, started, err)
			}
			cmdCtx.Renderer.Muted(fmt.Sprintf("Watching %s (Ctrl+C to stop)", w.Root))
			return w.Run(ctx)
		},
	}

	cmd.Flags().DurationVar(&debounce, "debounce", DefaultDebounce, "Wait for changes to settle before rebuilding")
	addBuildFlags(cmd)

	return cmd
}

func (c *CommandContext) reportWatchBuild(ctx context.Context, res *bundle.Result, started time.Time, err error) {
	if res == nil {
		c.RecordRun(ctx, "watch", started, nil, err)
		c.Renderer.Warning(fmt.Sprintf("build failed: %v", err))
		return
	}
	run := c.RecordRun(ctx, "watch", started, res.Outcomes, err)
	if err != nil {
		c.Renderer.Warning(fmt.Sprintf("build failed: %v", err))
		return
	}
	for _, w := range res.Warnings {
		c.Renderer.Warning(w)
	}
	if err := renderOutcomes(c.Renderer, "watch", res.Outcomes, run, time.Since(started)); err != nil {
		c.Logger.Warn("failed to render outcomes", "error", err)
	}
}

// Watcher rebuilds the project when sources change.
type Watcher struct {
	// Root is the directory tree being watched
	Root string
	// Debounce is the settle time before a rebuild
	Debounce time.Duration
	// OnBuild receives the result of every build, including the first
	OnBuild func(res *bundle.Result, started time.Time, err error)

	cmdCtx *CommandContext
	args   []string
	outdir string
	mu     sync.Mutex
}

// NewWatcher creates a watcher for the configured project.
func NewWatcher(cmdCtx *CommandContext, args []string) *Watcher {
	root := cmdCtx.Cfg.ProjectRoot
	if root == "" {
		root, _ = os.Getwd()
	}
	outdir := cmdCtx.Cfg.Build.Outdir
	if outdir == "" {
		outdir = "dist"
	}
	if !filepath.IsAbs(outdir) {
		outdir = filepath.Join(root, outdir)
	}
	return &Watcher{
		Root:     root,
		Debounce: DefaultDebounce,
		cmdCtx:   cmdCtx,
		args:     args,
		outdir:   filepath.Clean(outdir),
	}
}

// Run builds once, then rebuilds on change until ctx is done.
func (w *Watcher) Run(ctx context.Context) error {
	// Initial build
	if err := w.rebuild(ctx); err != nil {
		return fmt.Errorf("initial build failed: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	if err := w.watchDir(watcher, w.Root); err != nil {
		return fmt.Errorf("failed to watch %s: %w", w.Root, err)
	}

	pending := make(chan string, 1)
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return w.watchLoop(ctx, watcher, pending)
	})
	g.Go(func() error {
		for {
			select {
			case <-ctx.Done():
				return nil
			case name := <-pending:
				w.cmdCtx.Logger.Info("change detected", "file", name)
				// Failures are reported through OnBuild; keep watching
				_ = w.rebuild(ctx)
			}
		}
	})
	return g.Wait()
}

// skipDir reports whether a directory is excluded from watching.
func (w *Watcher) skipDir(path string, name string) bool {
	if path == w.Root {
		return false
	}
	if filepath.Clean(path) == w.outdir {
		return true
	}
	return name == "node_modules" || strings.HasPrefix(name, ".")
}

// watchDir recursively adds a directory to the watcher.
func (w *Watcher) watchDir(watcher *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if w.skipDir(path, d.Name()) {
			return filepath.SkipDir
		}
		return watcher.Add(path)
	})
}

// watchLoop handles file system events and schedules debounced rebuilds.
func (w *Watcher) watchLoop(ctx context.Context, watcher *fsnotify.Watcher, pending chan<- string) error {
	var debounceTimer *time.Timer
	defer func() {
		if debounceTimer != nil {
			debounceTimer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
				continue
			}

			if event.Op&fsnotify.Create != 0 {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := w.watchDir(watcher, event.Name); err != nil {
						w.cmdCtx.Logger.Warn("failed to watch new directory", "dir", event.Name, "error", err)
					}
					continue
				}
			}
			if !watchedExts[filepath.Ext(event.Name)] || strings.HasPrefix(filepath.Clean(event.Name), w.outdir+string(filepath.Separator)) {
				continue
			}

			// Debounce rebuilds
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			name := event.Name
			debounceTimer = time.AfterFunc(w.Debounce, func() {
				select {
				case pending <- name:
				default:
					// A rebuild is already queued
				}
			})

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.cmdCtx.Logger.Warn("watcher error", "error", err)
		}
	}
}

// rebuild runs one build and reports it.
func (w *Watcher) rebuild(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	started := time.Now()
	res, err := w.cmdCtx.Build(ctx, w.args, true)
	if errors.Is(err, context.Canceled) {
		return err
	}
	if w.OnBuild != nil {
		w.OnBuild(res, started, err)
	}
	return err
}
