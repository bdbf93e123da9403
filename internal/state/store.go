// Package state records dedupe runs and their per-asset outcomes in SQLite.
package state

import (
	"time"
)

// Run is one recorded invocation of the dedupe pass.
type Run struct {
	ID        string
	Command   string
	StartedAt time.Time
	Duration  time.Duration
	Error     string

	Assets    int
	Deduped   int
	Unchanged int
	Skipped   int
	Failed    int

	BytesBefore int
	BytesAfter  int
}

// Saved returns the bytes removed during the run.
func (r *Run) Saved() int {
	return r.BytesBefore - r.BytesAfter
}

// AssetRecord is the stored outcome of one asset in a run.
type AssetRecord struct {
	RunID     string
	Asset     string
	Chunk     string
	Status    string
	Reason    string
	Ancestors []string
	Warnings  int

	BytesBefore int
	BytesAfter  int
}
