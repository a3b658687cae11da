// Package cache persists pipeline snapshots in a local SQLite database.
// A snapshot is keyed by source name plus source fingerprint, so a restart
// against an unchanged file can serve from the cache instead of repeating
// the full clean and filter pass. Payloads are stored as snappy-compressed
// JSON.
package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/golang/snappy"
	_ "github.com/mattn/go-sqlite3"

	"github.com/couchcryptid/maritime-event-pipeline/internal/domain"
)

// ErrMiss reports that no snapshot exists for the requested key.
var ErrMiss = errors.New("snapshot not found")

const createSnapshotsTableSQL = `
CREATE TABLE IF NOT EXISTS snapshots (
    run_id       TEXT PRIMARY KEY,
    source       TEXT NOT NULL,
    fingerprint  TEXT NOT NULL,
    refreshed_at INTEGER NOT NULL,
    rows_loaded  INTEGER NOT NULL,
    duplicates   INTEGER NOT NULL,
    events       BLOB NOT NULL,
    rejects      BLOB NOT NULL,
    excluded     BLOB NOT NULL,
    UNIQUE (source, fingerprint)
)`

const createSnapshotsIndexSQL = `
CREATE INDEX IF NOT EXISTS idx_snapshots_source_time ON snapshots(source, refreshed_at)`

// Store is the SQLite-backed snapshot cache. Reads run concurrently; writes
// serialize behind a mutex on top of SQLite's own single-writer model.
type Store struct {
	db *sql.DB
	mu sync.Mutex
}

// Open opens (or creates) the cache database at path. The parent directory
// is created when missing.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create cache directory %s: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open cache database %s: %w", path, err)
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(4)
	db.SetConnMaxLifetime(5 * time.Minute)

	s := &Store{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize cache schema: %w", err)
	}
	return s, nil
}

func (s *Store) initSchema() error {
	for _, stmt := range []string{createSnapshotsTableSQL, createSnapshotsIndexSQL} {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Store writes a snapshot. A snapshot with the same source and fingerprint
// replaces the old row, so a forced refresh overwrites its predecessor.
func (s *Store) Store(ctx context.Context, snap domain.Snapshot) error {
	events, err := encodePayload(snap.Events)
	if err != nil {
		return fmt.Errorf("encode events payload: %w", err)
	}
	rejects, err := encodePayload(snap.Rejects)
	if err != nil {
		return fmt.Errorf("encode rejects payload: %w", err)
	}
	excluded, err := encodePayload(snap.Excluded)
	if err != nil {
		return fmt.Errorf("encode excluded payload: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err = s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO snapshots (
			run_id, source, fingerprint, refreshed_at,
			rows_loaded, duplicates, events, rejects, excluded
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		snap.RunID, snap.Source, snap.Fingerprint, snap.RefreshedAt.UTC().UnixNano(),
		snap.RowsLoaded, snap.Duplicates, events, rejects, excluded,
	)
	if err != nil {
		return fmt.Errorf("store snapshot %s: %w", snap.RunID, err)
	}
	return nil
}

// Lookup returns the snapshot cached for source at the given fingerprint,
// or ErrMiss when none exists.
func (s *Store) Lookup(ctx context.Context, source, fingerprint string) (domain.Snapshot, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT run_id, source, fingerprint, refreshed_at,
		       rows_loaded, duplicates, events, rejects, excluded
		FROM snapshots
		WHERE source = ? AND fingerprint = ?`,
		source, fingerprint,
	)
	return scanSnapshot(row)
}

// Latest returns the most recently refreshed snapshot for source regardless
// of fingerprint, or ErrMiss when the source has never been cached.
func (s *Store) Latest(ctx context.Context, source string) (domain.Snapshot, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT run_id, source, fingerprint, refreshed_at,
		       rows_loaded, duplicates, events, rejects, excluded
		FROM snapshots
		WHERE source = ?
		ORDER BY refreshed_at DESC, rowid DESC
		LIMIT 1`,
		source,
	)
	return scanSnapshot(row)
}

// Prune deletes all but the newest keep snapshots for source and reports
// how many rows went away.
func (s *Store) Prune(ctx context.Context, source string, keep int) (int, error) {
	if keep < 0 {
		keep = 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `
		DELETE FROM snapshots
		WHERE source = ? AND run_id NOT IN (
			SELECT run_id FROM snapshots
			WHERE source = ?
			ORDER BY refreshed_at DESC, rowid DESC
			LIMIT ?
		)`,
		source, source, keep,
	)
	if err != nil {
		return 0, fmt.Errorf("prune snapshots for %s: %w", source, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("prune snapshots for %s: %w", source, err)
	}
	return int(n), nil
}

func scanSnapshot(row *sql.Row) (domain.Snapshot, error) {
	var (
		snap      domain.Snapshot
		refreshed int64
		events    []byte
		rejects   []byte
		excluded  []byte
	)

	err := row.Scan(
		&snap.RunID, &snap.Source, &snap.Fingerprint, &refreshed,
		&snap.RowsLoaded, &snap.Duplicates, &events, &rejects, &excluded,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Snapshot{}, ErrMiss
	}
	if err != nil {
		return domain.Snapshot{}, fmt.Errorf("scan snapshot: %w", err)
	}

	snap.RefreshedAt = time.Unix(0, refreshed).UTC()
	if err := decodePayload(events, &snap.Events); err != nil {
		return domain.Snapshot{}, fmt.Errorf("decode events payload: %w", err)
	}
	if err := decodePayload(rejects, &snap.Rejects); err != nil {
		return domain.Snapshot{}, fmt.Errorf("decode rejects payload: %w", err)
	}
	if err := decodePayload(excluded, &snap.Excluded); err != nil {
		return domain.Snapshot{}, fmt.Errorf("decode excluded payload: %w", err)
	}
	return snap, nil
}

func encodePayload(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return snappy.Encode(nil, data), nil
}

func decodePayload(blob []byte, v any) error {
	data, err := snappy.Decode(nil, blob)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}
