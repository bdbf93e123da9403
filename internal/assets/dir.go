package assets

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// DirStore is a Store backed by files under a root directory. Asset names are
// slash-separated paths relative to the root.
type DirStore struct {
	root string
}

// NewDirStore opens a store rooted at dir, which must exist.
func NewDirStore(dir string) (*DirStore, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", dir, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("failed to open asset directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("asset root is not a directory: %s", abs)
	}
	return &DirStore{root: abs}, nil
}

// Root returns the absolute root directory.
func (s *DirStore) Root() string {
	return s.root
}

// Get reads the named asset.
func (s *DirStore) Get(name string) (string, error) {
	path, err := s.resolve(name)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(path) //nolint:gosec // G304: path is confined to the store root
	if errors.Is(err, fs.ErrNotExist) {
		return "", fmt.Errorf("%s: %w", name, ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("failed to read asset %s: %w", name, err)
	}
	return string(data), nil
}

// Set writes the named asset, creating parent directories as needed.
func (s *DirStore) Set(name, content string) error {
	path, err := s.resolve(name)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", name, err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil { //nolint:gosec // G306: build outputs are world-readable
		return fmt.Errorf("failed to write asset %s: %w", name, err)
	}
	return nil
}

// Names lists every regular file under the root, sorted.
func (s *DirStore) Names() ([]string, error) {
	var names []string
	err := filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(s.root, path)
		if err != nil {
			return err
		}
		names = append(names, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list assets: %w", err)
	}
	sort.Strings(names)
	return names, nil
}

// resolve maps an asset name to a path under the root.
func (s *DirStore) resolve(name string) (string, error) {
	local := filepath.FromSlash(strings.TrimPrefix(name, "/"))
	if !filepath.IsLocal(local) {
		return "", fmt.Errorf("asset name escapes store root: %s", name)
	}
	return filepath.Join(s.root, local), nil
}
