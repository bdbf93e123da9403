package commands

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/cssdedupe/internal/bundle"
	"github.com/leapstack-labs/cssdedupe/internal/cli/config"
	clitestutil "github.com/leapstack-labs/cssdedupe/internal/cli/testutil"
	"github.com/leapstack-labs/cssdedupe/internal/plugin"
	"github.com/leapstack-labs/cssdedupe/internal/state"
	"github.com/leapstack-labs/cssdedupe/internal/testutil"
)

func newTestContext(t *testing.T, tr *clitestutil.TestRenderer) *CommandContext {
	t.Helper()
	cfg := config.Default()
	cfg.History = false
	return &CommandContext{
		Cfg:      cfg,
		Logger:   testutil.NewTestLogger(t),
		Renderer: tr.Renderer,
	}
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func TestNewBuildCommand(t *testing.T) {
	cmd := NewBuildCommand()

	assert.Equal(t, "build [entry-point...]", cmd.Use)
	assert.NotEmpty(t, cmd.Short, "Short should not be empty")
	assert.NotEmpty(t, cmd.Example, "Example should not be empty")

	for _, flag := range []string{"dry-run", "outdir", "minify", "sourcemap", "splitting", "format"} {
		assert.NotNil(t, cmd.Flags().Lookup(flag), "flag %q should exist", flag)
	}
}

func TestNewDedupeCommand(t *testing.T) {
	cmd := NewDedupeCommand()

	assert.Equal(t, "dedupe [dir]", cmd.Use)
	assert.NotEmpty(t, cmd.Short, "Short should not be empty")
	for _, flag := range []string{"dry-run", "manifest"} {
		assert.NotNil(t, cmd.Flags().Lookup(flag), "flag %q should exist", flag)
	}
}

func TestNewGraphCommand(t *testing.T) {
	cmd := NewGraphCommand()

	assert.Equal(t, "graph [dir]", cmd.Use)
	for _, flag := range []string{"build", "write-manifest", "manifest", "outdir"} {
		assert.NotNil(t, cmd.Flags().Lookup(flag), "flag %q should exist", flag)
	}
}

func TestNewWatchCommand(t *testing.T) {
	cmd := NewWatchCommand()

	assert.Equal(t, "watch [entry-point...]", cmd.Use)
	debounce := cmd.Flags().Lookup("debounce")
	require.NotNil(t, debounce)
	assert.Equal(t, DefaultDebounce.String(), debounce.DefValue)
}

func TestNewHistoryCommand(t *testing.T) {
	cmd := NewHistoryCommand()

	assert.Equal(t, "history [run-id]", cmd.Use)
	limit := cmd.Flags().Lookup("limit")
	require.NotNil(t, limit)
	assert.Equal(t, "n", limit.Shorthand)
}

func TestDedupe_RewritesDirectory(t *testing.T) {
	dir := clitestutil.SetupOutputDir(t)
	c := newTestContext(t, clitestutil.NewTestRendererMarkdown())
	c.Cfg.Dir = dir

	outcomes, err := c.Dedupe(context.Background(), nil, false)
	require.NoError(t, err)
	require.Len(t, outcomes, 2)

	assert.Equal(t, "main.css", outcomes[0].Asset)
	assert.Equal(t, plugin.StatusUnchanged, outcomes[0].Status)
	assert.Equal(t, "page.css", outcomes[1].Asset)
	assert.Equal(t, plugin.StatusDeduped, outcomes[1].Status)
	assert.Equal(t, []string{"main"}, outcomes[1].Ancestors)

	assert.Equal(t, ".b{color:blue}", readFile(t, filepath.Join(dir, "page.css")))
	assert.Equal(t, ".a{color:red}", readFile(t, filepath.Join(dir, "main.css")))
	assert.NoFileExists(t, filepath.Join(dir, "page.css.map"), "maps are off by default")
}

func TestDedupe_DryRunLeavesFiles(t *testing.T) {
	dir := clitestutil.SetupOutputDir(t)
	c := newTestContext(t, clitestutil.NewTestRendererMarkdown())

	outcomes, err := c.Dedupe(context.Background(), []string{dir}, true)
	require.NoError(t, err)
	require.Len(t, outcomes, 2)
	assert.Equal(t, plugin.StatusDeduped, outcomes[1].Status)
	assert.Equal(t, ".a{color:red}.b{color:blue}", readFile(t, filepath.Join(dir, "page.css")))
}

func TestDedupe_SourceMaps(t *testing.T) {
	dir := clitestutil.SetupOutputDir(t)
	c := newTestContext(t, clitestutil.NewTestRendererMarkdown())
	c.Cfg.Dir = dir
	c.Cfg.SourceMap.Enabled = true

	_, err := c.Dedupe(context.Background(), nil, false)
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, json.Unmarshal([]byte(readFile(t, filepath.Join(dir, "page.css.map"))), &m))
	assert.EqualValues(t, 3, m["version"])
}

func TestDedupe_MissingManifest(t *testing.T) {
	c := newTestContext(t, clitestutil.NewTestRendererMarkdown())
	c.Cfg.Dir = t.TempDir()

	_, err := c.Dedupe(context.Background(), nil, false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read manifest")
}

func TestDedupe_MissingDir(t *testing.T) {
	c := newTestContext(t, clitestutil.NewTestRendererMarkdown())
	c.Cfg.Dir = filepath.Join(t.TempDir(), "dist")

	_, err := c.Dedupe(context.Background(), nil, false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "output directory does not exist")
	assert.Contains(t, err.Error(), "Hint: run a build first")
}

func TestResolveDir(t *testing.T) {
	c := newTestContext(t, clitestutil.NewTestRendererMarkdown())
	c.Cfg.Dir = "/srv/dist"

	dir, manifestPath, err := c.resolveDir(nil)
	require.NoError(t, err)
	assert.Equal(t, "/srv/dist", dir)
	assert.Equal(t, filepath.Join("/srv/dist", "chunks.yaml"), manifestPath)

	other := t.TempDir()
	dir, manifestPath, err = c.resolveDir([]string{other})
	require.NoError(t, err)
	assert.Equal(t, other, dir)
	assert.Equal(t, filepath.Join(other, "chunks.yaml"), manifestPath, "manifest follows the directory argument")

	c.Cfg.Manifest = "/etc/chunks.json"
	_, manifestPath, err = c.resolveDir([]string{other})
	require.NoError(t, err)
	assert.Equal(t, "/etc/chunks.json", manifestPath, "explicit manifest wins")
}

func TestRenderOutcomes(t *testing.T) {
	outcomes := []plugin.Outcome{
		{Asset: "main.css", Chunk: "main", Status: plugin.StatusUnchanged, Reason: "no ancestors", BytesBefore: 13, BytesAfter: 13},
		{Asset: "page.css", Chunk: "page", Status: plugin.StatusDeduped, Ancestors: []string{"main"}, BytesBefore: 27, BytesAfter: 14},
		{Asset: "odd.css", Status: plugin.StatusSkipped, Reason: "no chunk owns asset"},
	}

	t.Run("markdown", func(t *testing.T) {
		tr := clitestutil.NewTestRendererMarkdown()
		require.NoError(t, renderOutcomes(tr.Renderer, "dedupe", outcomes, &state.Run{ID: "run-1"}, time.Second))

		out := tr.Output()
		clitestutil.AssertNoANSI(t, out)
		clitestutil.AssertValidMarkdown(t, out)
		assert.Contains(t, out, "# cssdedupe dedupe")
		assert.Contains(t, out, "| page.css | page | deduped | main | 13 B |")
		assert.Contains(t, out, "odd.css: no chunk owns asset")
		assert.Contains(t, out, "3 assets: 1 deduped, 1 unchanged, 1 skipped, 0 failed; saved 13 B")
		assert.Contains(t, out, "Run run-1 recorded")
	})

	t.Run("json", func(t *testing.T) {
		tr := clitestutil.NewTestRendererJSON()
		require.NoError(t, renderOutcomes(tr.Renderer, "build", outcomes, nil, 1500*time.Millisecond))

		var got RunOutput
		require.NoError(t, json.Unmarshal(tr.Out.Bytes(), &got))
		assert.Equal(t, "build", got.Command)
		assert.Empty(t, got.RunID)
		assert.Equal(t, int64(1500), got.DurationMS)
		assert.Equal(t, 3, got.Summary.Assets)
		assert.Equal(t, 13, got.Summary.Saved)
		require.Len(t, got.Outcomes, 3)
		assert.Equal(t, "skipped", got.Outcomes[2].Status)
	})

	t.Run("empty", func(t *testing.T) {
		tr := clitestutil.NewTestRendererMarkdown()
		require.NoError(t, renderOutcomes(tr.Renderer, "dedupe", nil, nil, 0))
		assert.Contains(t, tr.Output(), "No matching assets")
	})
}

func TestRenderGraph(t *testing.T) {
	dir := clitestutil.SetupOutputDir(t)
	c := newTestContext(t, clitestutil.NewTestRendererJSON())
	g, err := c.LoadGraph(filepath.Join(dir, "chunks.yaml"))
	require.NoError(t, err)

	t.Run("json", func(t *testing.T) {
		tr := clitestutil.NewTestRendererJSON()
		require.NoError(t, renderGraph(tr.Renderer, g))

		var got GraphOutput
		require.NoError(t, json.Unmarshal(tr.Out.Bytes(), &got))
		require.Len(t, got.Chunks, 2)
		assert.Equal(t, "page", got.Chunks[1].Name)
		assert.Equal(t, []string{"main"}, got.Chunks[1].Ancestors)
		assert.Empty(t, got.Chunks[0].Ancestors)
		require.Len(t, got.Groups, 2)
		assert.Equal(t, []string{"main"}, got.Groups[1].Parents)
		assert.Equal(t, []string{"page"}, got.Groups[0].Children)
		assert.Empty(t, got.Groups[1].Children)
		assert.Equal(t, []string{"main"}, got.Entries)
		assert.Empty(t, got.Cycle)
	})

	t.Run("markdown", func(t *testing.T) {
		tr := clitestutil.NewTestRendererMarkdown()
		require.NoError(t, renderGraph(tr.Renderer, g))

		out := tr.Output()
		clitestutil.AssertValidMarkdown(t, out)
		assert.Contains(t, out, "# Chunk Graph")
		assert.Contains(t, out, "| page | page.js, page.css | main |")
		assert.Contains(t, out, "| main | main | - | page |")
		assert.Contains(t, out, "- **Parent Edges**: 1")
		assert.Contains(t, out, "- **Entry Groups**: main")
	})
}

func TestRecordRunAndHistory(t *testing.T) {
	c := newTestContext(t, clitestutil.NewTestRendererJSON())
	c.Cfg.History = true
	c.Cfg.StatePath = filepath.Join(t.TempDir(), "history.db")
	ctx := context.Background()

	outcomes := []plugin.Outcome{{Asset: "page.css", Chunk: "page", Status: plugin.StatusDeduped, BytesBefore: 20, BytesAfter: 5}}
	run := c.RecordRun(ctx, "dedupe", time.Now(), outcomes, nil)
	require.NotNil(t, run)
	assert.Equal(t, 15, run.Saved())

	store, err := openHistory(c.Cfg.StatePath, c.Logger)
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	cmd := NewHistoryCommand()
	cmd.SetContext(ctx)

	tr := clitestutil.NewTestRendererJSON()
	require.NoError(t, listRuns(cmd, tr.Renderer, store, 10))
	var runs []RunSummaryOutput
	require.NoError(t, json.Unmarshal(tr.Out.Bytes(), &runs))
	require.Len(t, runs, 1)
	assert.Equal(t, run.ID, runs[0].ID)
	assert.Equal(t, 15, runs[0].Saved)

	tr = clitestutil.NewTestRendererMarkdown()
	require.NoError(t, listRuns(cmd, tr.Renderer, store, 10))
	assert.Contains(t, tr.Output(), "(schema version 1)")
	assert.Contains(t, tr.Output(), "| dedupe |")

	tr = clitestutil.NewTestRendererMarkdown()
	require.NoError(t, showRun(cmd, tr.Renderer, store, run.ID))
	assert.Contains(t, tr.Output(), "| page.css | page | deduped | - | 15 B |")

	assert.Error(t, showRun(cmd, tr.Renderer, store, "missing"))
}

func TestRecordRun_Disabled(t *testing.T) {
	c := newTestContext(t, clitestutil.NewTestRendererJSON())
	c.Cfg.StatePath = filepath.Join(t.TempDir(), "history.db")

	assert.Nil(t, c.RecordRun(context.Background(), "dedupe", time.Now(), nil, nil))
	assert.NoFileExists(t, c.Cfg.StatePath)
}

func TestBuildOptions(t *testing.T) {
	c := newTestContext(t, clitestutil.NewTestRendererJSON())

	_, err := c.BuildOptions(nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no entry points")

	c.Cfg.ProjectRoot = "/project"
	c.Cfg.Build.EntryPoints = []string{"src/main.js"}
	opts, err := c.BuildOptions(nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"src/main.js"}, opts.EntryPoints)
	assert.Equal(t, "/project", opts.WorkingDir)
	assert.Equal(t, config.DefaultOutdir, opts.Outdir)
	assert.True(t, opts.Splitting)
	assert.NotNil(t, opts.Dedupe)

	opts, err = c.BuildOptions([]string{"app.js"})
	require.NoError(t, err)
	require.Len(t, opts.EntryPoints, 1)
	assert.True(t, filepath.IsAbs(opts.EntryPoints[0]), "argument entry points are resolved against the working directory")
}

// findCSS returns the contents of the emitted stylesheets whose base names
// start with prefix. Dynamic entries may carry a content hash.
func findCSS(t *testing.T, files map[string]string, prefix string) string {
	t.Helper()
	for path, content := range files {
		base := filepath.Base(path)
		if strings.HasPrefix(base, prefix) && strings.HasSuffix(base, ".css") {
			return content
		}
	}
	t.Fatalf("no stylesheet starting with %q in %v", prefix, files)
	return ""
}

func outputsOf(res *bundle.Result) map[string]string {
	files := make(map[string]string, len(res.OutputFiles))
	for _, f := range res.OutputFiles {
		files[f.Path] = string(f.Contents)
	}
	return files
}

func TestBuild_WritesDedupedOutputs(t *testing.T) {
	root := clitestutil.SetupTestProject(t)
	c := newTestContext(t, clitestutil.NewTestRendererJSON())
	c.Cfg.ProjectRoot = root
	c.Cfg.Build.EntryPoints = []string{"src/main.js"}

	res, err := c.Build(context.Background(), nil, true)
	require.NoError(t, err)

	files := outputsOf(res)
	assert.Contains(t, findCSS(t, files, "main"), "color: red")
	pageCSS := findCSS(t, files, "page")
	assert.NotContains(t, pageCSS, "color: red")
	assert.Contains(t, pageCSS, "color: blue")

	for path, content := range files {
		assert.Equal(t, content, readFile(t, path), "written to disk")
	}
	assert.Equal(t, 1, plugin.Summarize(res.Outcomes).Deduped)
}

func TestWatcher_SkipDir(t *testing.T) {
	root := t.TempDir()
	c := newTestContext(t, clitestutil.NewTestRendererJSON())
	c.Cfg.ProjectRoot = root

	w := NewWatcher(c, nil)
	assert.False(t, w.skipDir(root, filepath.Base(root)), "root is always watched")
	assert.True(t, w.skipDir(filepath.Join(root, "dist"), "dist"), "outdir is skipped")
	assert.True(t, w.skipDir(filepath.Join(root, "node_modules"), "node_modules"))
	assert.True(t, w.skipDir(filepath.Join(root, ".cssdedupe"), ".cssdedupe"))
	assert.False(t, w.skipDir(filepath.Join(root, "src"), "src"))
}

func TestWatcher_RebuildsOnChange(t *testing.T) {
	root := clitestutil.SetupTestProject(t)
	c := newTestContext(t, clitestutil.NewTestRendererJSON())
	c.Cfg.ProjectRoot = root
	c.Cfg.Build.EntryPoints = []string{"src/main.js"}

	builds := make(chan *bundle.Result, 4)
	w := NewWatcher(c, nil)
	w.Debounce = 20 * time.Millisecond
	w.OnBuild = func(res *bundle.Result, _ time.Time, err error) {
		assert.NoError(t, err)
		builds <- res
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	select {
	case <-builds:
	case <-time.After(10 * time.Second):
		t.Fatal("initial build did not finish")
	}

	// Watches are registered right after the first build
	time.Sleep(200 * time.Millisecond)
	clitestutil.WriteFiles(t, root, map[string]string{
		"src/page.css": clitestutil.SharedRule + "\n.page { color: green; }\n",
	})

	select {
	case res := <-builds:
		assert.Contains(t, findCSS(t, outputsOf(res), "page"), "color: green")
	case <-time.After(10 * time.Second):
		t.Fatal("no rebuild after change")
	}

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not stop")
	}
}
