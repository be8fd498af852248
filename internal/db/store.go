package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	_ "modernc.org/sqlite"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ErrNotFound is returned when no snapshot exists for a view id.
var ErrNotFound = errors.New("view snapshot not found")

type Store struct {
	db *sql.DB
}

// Snapshot is the persisted part of one page view: the config attributes
// it was created from and the encoded controller state.
type Snapshot struct {
	ViewID    string
	Kind      string
	Attrs     map[string]string
	State     []byte
	UpdatedAt time.Time
}

func Open(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite path is empty")
	}

	if path != ":memory:" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if path == ":memory:" {
		// every pooled connection would get its own empty database
		db.SetMaxOpenConns(1)
	}

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, err
	}

	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func applyPragmas(db *sql.DB) error {
	pragma := []string{
		"PRAGMA journal_mode = WAL;",
		"PRAGMA busy_timeout = 5000;",
	}

	for _, stmt := range pragma {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("pragma: %w", err)
		}
	}
	return nil
}

func migrate(db *sql.DB) error {
	schema := `
CREATE TABLE IF NOT EXISTS view_snapshots (
	view_id TEXT PRIMARY KEY,
	kind TEXT NOT NULL,
	attrs TEXT NOT NULL,
	state TEXT NOT NULL,
	updated_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_view_snapshots_updated_at ON view_snapshots(updated_at);

CREATE TABLE IF NOT EXISTS overdue_reports (
	reader_id INTEGER PRIMARY KEY,
	reported_at INTEGER NOT NULL
);
`

	_, err := db.Exec(schema)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// SaveView inserts or replaces the snapshot of a page view.
func (s *Store) SaveView(ctx context.Context, snap Snapshot) error {
	attrs, err := json.Marshal(snap.Attrs)
	if err != nil {
		return fmt.Errorf("encode attrs: %w", err)
	}
	if snap.UpdatedAt.IsZero() {
		snap.UpdatedAt = time.Now()
	}
	_, err = s.db.ExecContext(ctx, `
INSERT INTO view_snapshots (view_id, kind, attrs, state, updated_at)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT(view_id) DO UPDATE SET
	kind = excluded.kind,
	attrs = excluded.attrs,
	state = excluded.state,
	updated_at = excluded.updated_at
`, snap.ViewID, snap.Kind, string(attrs), string(snap.State), snap.UpdatedAt.Unix())
	if err != nil {
		return fmt.Errorf("save view %s: %w", snap.ViewID, err)
	}
	return nil
}

func (s *Store) LoadView(ctx context.Context, viewID string) (Snapshot, error) {
	var (
		snap    Snapshot
		attrs   string
		state   string
		updated int64
	)
	err := s.db.QueryRowContext(ctx, `
SELECT view_id, kind, attrs, state, updated_at
FROM view_snapshots
WHERE view_id = ?
`, viewID).Scan(&snap.ViewID, &snap.Kind, &attrs, &state, &updated)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Snapshot{}, ErrNotFound
		}
		return Snapshot{}, fmt.Errorf("load view %s: %w", viewID, err)
	}
	if err := json.Unmarshal([]byte(attrs), &snap.Attrs); err != nil {
		return Snapshot{}, fmt.Errorf("decode attrs of %s: %w", viewID, err)
	}
	snap.State = []byte(state)
	snap.UpdatedAt = time.Unix(updated, 0)
	return snap, nil
}

func (s *Store) DeleteView(ctx context.Context, viewID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM view_snapshots WHERE view_id = ?`, viewID); err != nil {
		return fmt.Errorf("delete view %s: %w", viewID, err)
	}
	return nil
}

// PurgeViews drops snapshots not updated since cutoff and reports how many.
func (s *Store) PurgeViews(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM view_snapshots WHERE updated_at < ?`, cutoff.Unix())
	if err != nil {
		return 0, fmt.Errorf("purge views: %w", err)
	}
	return res.RowsAffected()
}

// MarkReported records that an overdue reader was announced. It returns
// false when the reader had already been reported.
func (s *Store) MarkReported(ctx context.Context, readerID int, at time.Time) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
INSERT OR IGNORE INTO overdue_reports (reader_id, reported_at)
VALUES (?, ?)
`, readerID, at.Unix())
	if err != nil {
		return false, fmt.Errorf("mark reader %d reported: %w", readerID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("mark reader %d reported: %w", readerID, err)
	}
	return n == 1, nil
}

// KeepReported forgets every reported reader not in overdue, so a reader
// who returns the books and falls overdue again is announced again.
func (s *Store) KeepReported(ctx context.Context, overdue []int) error {
	if len(overdue) == 0 {
		if _, err := s.db.ExecContext(ctx, `DELETE FROM overdue_reports`); err != nil {
			return fmt.Errorf("clear reports: %w", err)
		}
		return nil
	}

	args := make([]any, len(overdue))
	for i, id := range overdue {
		args[i] = id
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(overdue)), ",")
	_, err := s.db.ExecContext(ctx, `DELETE FROM overdue_reports WHERE reader_id NOT IN (`+placeholders+`)`, args...)
	if err != nil {
		return fmt.Errorf("prune reports: %w", err)
	}
	return nil
}
