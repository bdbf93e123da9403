package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/leapstack-labs/cssdedupe/internal/plugin"
)

// ErrRunNotFound is returned when a run ID is unknown.
var ErrRunNotFound = errors.New("run not found")

const ancestorSep = "\n"

// timeLayout is fixed width so stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// RecordRun stores a finished run and the outcome of each asset.
func (s *SQLiteStore) RecordRun(ctx context.Context, command string, startedAt time.Time, duration time.Duration, outcomes []plugin.Outcome, runErr error) (*Run, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}

	sum := plugin.Summarize(outcomes)
	run := &Run{
		ID:          generateID(),
		Command:     command,
		StartedAt:   startedAt.UTC(),
		Duration:    duration,
		Assets:      sum.Assets,
		Deduped:     sum.Deduped,
		Unchanged:   sum.Unchanged,
		Skipped:     sum.Skipped,
		Failed:      sum.Failed,
		BytesBefore: sum.BytesBefore,
		BytesAfter:  sum.BytesAfter,
	}
	var errMsg *string
	if runErr != nil {
		run.Error = runErr.Error()
		errMsg = &run.Error
	}

	s.logger.Debug("recording run", slog.String("id", run.ID), slog.String("command", command), slog.Int("assets", run.Assets))

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (id, command, started_at, duration_ms, assets, deduped, unchanged, skipped, failed, bytes_before, bytes_after, error)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Command, run.StartedAt.Format(timeLayout), run.Duration.Milliseconds(),
		run.Assets, run.Deduped, run.Unchanged, run.Skipped, run.Failed,
		run.BytesBefore, run.BytesAfter, errMsg,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO run_assets (run_id, asset, chunk, status, reason, ancestors, warnings, bytes_before, bytes_after)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare asset insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, o := range outcomes {
		if _, err := stmt.ExecContext(ctx,
			run.ID, o.Asset, o.Chunk, string(o.Status), o.Reason,
			strings.Join(o.Ancestors, ancestorSep), len(o.Warnings),
			o.BytesBefore, o.BytesAfter,
		); err != nil {
			return nil, fmt.Errorf("failed to insert outcome for %s: %w", o.Asset, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit run: %w", err)
	}
	return run, nil
}

const runColumns = `id, command, started_at, duration_ms, assets, deduped, unchanged, skipped, failed, bytes_before, bytes_after, error`

// GetRun retrieves a run by ID.
func (s *SQLiteStore) GetRun(ctx context.Context, id string) (*Run, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}

	run, err := scanRun(s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return run, nil
}

// ListRuns retrieves the most recent runs up to the given limit.
func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]*Run, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+runColumns+` FROM runs ORDER BY started_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// RunAssets retrieves the per-asset outcomes of a run, ordered by asset.
func (s *SQLiteStore) RunAssets(ctx context.Context, runID string) ([]*AssetRecord, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, asset, chunk, status, reason, ancestors, warnings, bytes_before, bytes_after
		 FROM run_assets WHERE run_id = ? ORDER BY asset`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to list run assets: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var records []*AssetRecord
	for rows.Next() {
		r := &AssetRecord{}
		var ancestors string
		if err := rows.Scan(&r.RunID, &r.Asset, &r.Chunk, &r.Status, &r.Reason, &ancestors, &r.Warnings, &r.BytesBefore, &r.BytesAfter); err != nil {
			return nil, fmt.Errorf("failed to scan run asset: %w", err)
		}
		if ancestors != "" {
			r.Ancestors = strings.Split(ancestors, ancestorSep)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*Run, error) {
	run := &Run{}
	var startedAt string
	var durationMS int64
	var errMsg sql.NullString

	if err := row.Scan(&run.ID, &run.Command, &startedAt, &durationMS,
		&run.Assets, &run.Deduped, &run.Unchanged, &run.Skipped, &run.Failed,
		&run.BytesBefore, &run.BytesAfter, &errMsg); err != nil {
		return nil, err
	}

	t, err := time.Parse(timeLayout, startedAt)
	if err != nil {
		return nil, fmt.Errorf("invalid started_at %q: %w", startedAt, err)
	}
	run.StartedAt = t
	run.Duration = time.Duration(durationMS) * time.Millisecond
	if errMsg.Valid {
		run.Error = errMsg.String
	}
	return run, nil
}
