package compositor

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/cssdedupe/internal/cssdup"
	"github.com/leapstack-labs/cssdedupe/internal/sourcemap"
	"github.com/leapstack-labs/cssdedupe/internal/testutil"
)

// fakeRemover returns a fixed result and records the options it was given.
type fakeRemover struct {
	css   string
	err   error
	calls int
	input string
	opts  cssdup.Options
}

func (f *fakeRemover) Process(css string, opts cssdup.Options) (*cssdup.Result, error) {
	f.calls++
	f.input = css
	f.opts = opts
	if f.err != nil {
		return nil, f.err
	}
	return &cssdup.Result{CSS: f.css, Map: `{"version":3}`}, nil
}

func TestMarker(t *testing.T) {
	assert.Equal(t, "/*splitfilename=page.css*/", Marker("page.css"))
	assert.Equal(t, `/*splitfilename=a*\/b.css*/`, Marker("a*/b.css"))
	assert.Equal(t, 1, strings.Count(Marker("a*/b*/c.css"), "*/"))
}

func TestDedupe(t *testing.T) {
	tests := []struct {
		name      string
		content   string
		ancestors []string
		want      string
		status    Status
	}{
		{
			name:      "fully duplicated rule is dropped",
			content:   ".a{color:red}",
			ancestors: []string{".a{color:red}"},
			want:      "",
			status:    StatusDeduped,
		},
		{
			name:      "child only rule survives",
			content:   ".a{color:red}.b{color:blue}",
			ancestors: []string{".a{color:red}"},
			want:      ".b{color:blue}",
			status:    StatusDeduped,
		},
		{
			name:      "ancestors joined in order",
			content:   ".a{color:red}.b{color:blue}.c{x:y}",
			ancestors: []string{".a{color:red}", ".b{color:blue}"},
			want:      ".c{x:y}",
			status:    StatusDeduped,
		},
		{
			name:      "nothing shared",
			content:   ".b{color:blue}",
			ancestors: []string{".a{color:red}"},
			want:      ".b{color:blue}",
			status:    StatusUnchanged,
		},
		{
			name:      "partially shared rule keeps the rest",
			content:   ".a{color:red;margin:0}",
			ancestors: []string{".a{color:red}"},
			want:      ".a{margin:0}",
			status:    StatusDeduped,
		},
	}

	c := New(cssdup.New(), testutil.NewTestLogger(t))
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := c.Dedupe(Input{Filename: "page.css", Content: tt.content, Ancestors: tt.ancestors})
			require.NoError(t, err)
			assert.Equal(t, tt.want, res.Content)
			assert.Equal(t, tt.status, res.Status)
			assert.Empty(t, res.Map)
		})
	}
}

func TestDedupe_NoAncestorsIsByteIdentical(t *testing.T) {
	fake := &fakeRemover{}
	c := New(fake, nil)
	content := "  .a{color:red}\n\n.a{color:red}  "

	for _, ancestors := range [][]string{nil, {}, {"", " \n\t"}} {
		res, err := c.Dedupe(Input{Filename: "page.css", Content: content, Ancestors: ancestors})
		require.NoError(t, err)
		assert.Equal(t, content, res.Content)
		assert.Equal(t, StatusUnchanged, res.Status)
	}
	assert.Zero(t, fake.calls, "remover must not run without ancestor content")
}

func TestDedupe_Idempotent(t *testing.T) {
	c := New(nil, nil)
	ancestors := []string{".a{color:red}", "@media print{.p{display:none}}"}
	in := Input{
		Filename:  "page.css",
		Content:   ".a{color:red;margin:0}.b{x:y}@media print{.p{display:none}}",
		Ancestors: ancestors,
	}

	first, err := c.Dedupe(in)
	require.NoError(t, err)
	assert.Equal(t, StatusDeduped, first.Status)

	in.Content = first.Content
	second, err := c.Dedupe(in)
	require.NoError(t, err)
	assert.Equal(t, first.Content, second.Content)
	assert.Equal(t, StatusUnchanged, second.Status)
}

func TestDedupe_PassesFilenameAndMap(t *testing.T) {
	fake := &fakeRemover{css: ".b{}" + Marker("page.css") + ".a{}"}
	c := New(fake, nil)
	mapOpts := &cssdup.MapOptions{Prev: "prev"}

	res, err := c.Dedupe(Input{
		Filename:  "page.css",
		Content:   ".a{}.b{}",
		Ancestors: []string{".a{}"},
		Map:       mapOpts,
	})
	require.NoError(t, err)

	assert.Equal(t, ".a{}.b{}"+Marker("page.css")+".a{}", fake.input)
	assert.Equal(t, "page.css", fake.opts.From)
	assert.Equal(t, "page.css", fake.opts.To)
	assert.Same(t, mapOpts, fake.opts.Map)
	assert.Equal(t, ".b{}", res.Content)
	assert.Equal(t, `{"version":3}`, res.Map)
}

func TestDedupe_MapOmittedWhenNotRequested(t *testing.T) {
	fake := &fakeRemover{css: Marker("page.css")}
	res, err := New(fake, nil).Dedupe(Input{Filename: "page.css", Content: ".a{}", Ancestors: []string{".a{}"}})
	require.NoError(t, err)
	assert.Nil(t, fake.opts.Map)
	assert.Empty(t, res.Map)
}

func TestDedupe_RealMapDescribesCombinedDocument(t *testing.T) {
	c := New(nil, nil)
	res, err := c.Dedupe(Input{
		Filename:  "page.css",
		Content:   ".a{color:red}",
		Ancestors: []string{".a{color:red}"},
		Map:       &cssdup.MapOptions{SourcesContent: true},
	})
	require.NoError(t, err)
	assert.Empty(t, res.Content)

	m, err := sourcemap.Parse(res.Map)
	require.NoError(t, err)
	assert.Equal(t, []string{"page.css"}, m.Sources)
	content, ok := m.SourceContent("page.css")
	require.True(t, ok)
	assert.Contains(t, content, Marker("page.css"))
}

func TestDedupe_FailsOpen(t *testing.T) {
	tests := []struct {
		name    string
		remover *fakeRemover
		content string
		wantErr error
	}{
		{
			name:    "marker missing from output",
			remover: &fakeRemover{css: ".a{}"},
			content: ".a{}",
			wantErr: ErrMarkerNotFound,
		},
		{
			name:    "remover error",
			remover: &fakeRemover{err: errors.New("boom")},
			content: ".a{}",
		},
		{
			name:    "child already holds marker",
			remover: &fakeRemover{},
			content: ".a{}" + Marker("page.css"),
			wantErr: ErrMarkerInContent,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := New(tt.remover, nil)
			res, err := c.Dedupe(Input{Filename: "page.css", Content: tt.content, Ancestors: []string{".b{}"}})
			require.Error(t, err)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
			assert.Equal(t, tt.content, res.Content)
			assert.Equal(t, StatusUnchanged, res.Status)
			assert.Empty(t, res.Map)
		})
	}
}

func TestStatus_String(t *testing.T) {
	assert.Equal(t, "unchanged", StatusUnchanged.String())
	assert.Equal(t, "deduped", StatusDeduped.String())
}
