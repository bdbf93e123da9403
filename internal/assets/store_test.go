package assets

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_GetSet(t *testing.T) {
	s := NewMemoryStore(map[string]string{"a.css": ".a{}"})

	got, err := s.Get("a.css")
	require.NoError(t, err)
	assert.Equal(t, ".a{}", got)

	_, err = s.Get("missing.css")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Set("b.css", ".b{}"))
	assert.True(t, s.Has("b.css"))

	names, err := s.Names()
	require.NoError(t, err)
	assert.Equal(t, []string{"a.css", "b.css"}, names)
}

func TestMemoryStore_CopiesInitial(t *testing.T) {
	initial := map[string]string{"a.css": ".a{}"}
	s := NewMemoryStore(initial)
	initial["a.css"] = "changed"

	got, err := s.Get("a.css")
	require.NoError(t, err)
	assert.Equal(t, ".a{}", got)

	snap := s.Snapshot()
	snap["a.css"] = "changed"
	got, _ = s.Get("a.css")
	assert.Equal(t, ".a{}", got)
}

func TestMemoryStore_Concurrent(t *testing.T) {
	s := NewMemoryStore(nil)
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			name := filepath.Join("dir", string(rune('a'+i))+".css")
			_ = s.Set(name, "x")
			_, _ = s.Get(name)
		}(i)
	}
	wg.Wait()

	names, err := s.Names()
	require.NoError(t, err)
	assert.Len(t, names, 16)
}

func TestDirStore(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "css"), 0750))
	require.NoError(t, os.WriteFile(filepath.Join(root, "css", "main.css"), []byte(".a{}"), 0600))

	s, err := NewDirStore(root)
	require.NoError(t, err)

	got, err := s.Get("css/main.css")
	require.NoError(t, err)
	assert.Equal(t, ".a{}", got)

	_, err = s.Get("css/missing.css")
	assert.True(t, errors.Is(err, ErrNotFound), "expected ErrNotFound, got %v", err)

	require.NoError(t, s.Set("css/nested/page.css", ".b{}"))
	data, err := os.ReadFile(filepath.Join(root, "css", "nested", "page.css"))
	require.NoError(t, err)
	assert.Equal(t, ".b{}", string(data))

	names, err := s.Names()
	require.NoError(t, err)
	assert.Equal(t, []string{"css/main.css", "css/nested/page.css"}, names)
}

func TestDirStore_RejectsEscapes(t *testing.T) {
	s, err := NewDirStore(t.TempDir())
	require.NoError(t, err)

	_, err = s.Get("../outside.css")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)

	assert.Error(t, s.Set("../../outside.css", "x"))
}

func TestNewDirStore_Invalid(t *testing.T) {
	_, err := NewDirStore(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)

	file := filepath.Join(t.TempDir(), "file.css")
	require.NoError(t, os.WriteFile(file, []byte(""), 0600))
	_, err = NewDirStore(file)
	assert.Error(t, err)
}

func TestOverlay(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "main.css"), []byte(".a{}"), 0600))
	base, err := NewDirStore(dir)
	require.NoError(t, err)

	o := NewOverlay(base)
	got, err := o.Get("main.css")
	require.NoError(t, err)
	assert.Equal(t, ".a{}", got)

	require.NoError(t, o.Set("main.css", ""))
	require.NoError(t, o.Set("main.css.map", "{}"))

	got, err = o.Get("main.css")
	require.NoError(t, err)
	assert.Empty(t, got, "writes shadow the base")

	onDisk, err := os.ReadFile(filepath.Join(dir, "main.css"))
	require.NoError(t, err)
	assert.Equal(t, ".a{}", string(onDisk), "base is untouched")

	names, err := o.Names()
	require.NoError(t, err)
	assert.Equal(t, []string{"main.css", "main.css.map"}, names)
	assert.Equal(t, map[string]string{"main.css": "", "main.css.map": "{}"}, o.Changes())

	_, err = o.Get("missing.css")
	assert.True(t, errors.Is(err, ErrNotFound))
}
