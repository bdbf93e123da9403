package assets

import (
	"sort"
)

// Overlay reads through to a base store and keeps writes in memory. It
// backs dry runs: the base is never modified.
type Overlay struct {
	base    Store
	changes *MemoryStore
}

// NewOverlay wraps base.
func NewOverlay(base Store) *Overlay {
	return &Overlay{base: base, changes: NewMemoryStore(nil)}
}

// Get returns the written content of name, or the base content.
func (o *Overlay) Get(name string) (string, error) {
	if o.changes.Has(name) {
		return o.changes.Get(name)
	}
	return o.base.Get(name)
}

// Set records content without touching the base.
func (o *Overlay) Set(name, content string) error {
	return o.changes.Set(name, content)
}

// Names returns the union of base and written names, sorted. Only written
// names are returned when the base cannot list.
func (o *Overlay) Names() ([]string, error) {
	seen := make(map[string]bool)
	var names []string
	if l, ok := o.base.(Lister); ok {
		base, err := l.Names()
		if err != nil {
			return nil, err
		}
		for _, n := range base {
			seen[n] = true
			names = append(names, n)
		}
	}
	written, _ := o.changes.Names()
	for _, n := range written {
		if !seen[n] {
			names = append(names, n)
		}
	}
	sort.Strings(names)
	return names, nil
}

// Changes returns every write made through the overlay.
func (o *Overlay) Changes() map[string]string {
	return o.changes.Snapshot()
}
