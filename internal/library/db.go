package library

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/sguzman/lantern-leaf-sub000/internal/protocol"
)

// ErrNotFound is returned when a recents row does not exist.
var ErrNotFound = errors.New("not found")

// DefaultRecentsLimit caps how many rows List returns when the caller does
// not say.
const DefaultRecentsLimit = 20

type migration struct {
	Version int
	UpSQL   string
}

var migrations = []migration{
	{
		Version: 1,
		UpSQL: `
CREATE TABLE IF NOT EXISTS recents (
	resource_id TEXT PRIMARY KEY,
	title TEXT NOT NULL,
	path TEXT NOT NULL,
	last_page INTEGER NOT NULL DEFAULT 0,
	page_count INTEGER NOT NULL DEFAULT 0,
	opened_at TEXT NOT NULL
);
`,
	},
	{
		Version: 2,
		UpSQL: `
CREATE INDEX IF NOT EXISTS idx_recents_opened_at ON recents(opened_at DESC);
`,
	},
}

// Store persists the recently-opened list.
type Store struct {
	db *sql.DB
}

// OpenStore opens (creating if needed) the recents database at path.
func OpenStore(ctx context.Context, path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	if err := applyMigrations(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func applyMigrations(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations(version INTEGER PRIMARY KEY, applied_at TEXT NOT NULL)`); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}
	for _, m := range migrations {
		var exists int
		err := db.QueryRowContext(ctx, `SELECT 1 FROM schema_migrations WHERE version = ?`, m.Version).Scan(&exists)
		if err == nil {
			continue
		}
		if err != sql.ErrNoRows {
			return fmt.Errorf("check migration %d: %w", m.Version, err)
		}
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin tx for migration %d: %w", m.Version, err)
		}
		if _, err := tx.ExecContext(ctx, m.UpSQL); err != nil {
			tx.Rollback() //nolint:errcheck
			return fmt.Errorf("apply migration %d: %w", m.Version, err)
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO schema_migrations(version, applied_at) VALUES (?, datetime('now'))`, m.Version); err != nil {
			tx.Rollback() //nolint:errcheck
			return fmt.Errorf("record migration %d: %w", m.Version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", m.Version, err)
		}
	}
	return nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Touch records that a resource was opened, inserting or refreshing its row.
func (s *Store) Touch(ctx context.Context, entry protocol.RecentEntry) error {
	if entry.OpenedAt.IsZero() {
		entry.OpenedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO recents(resource_id, title, path, last_page, page_count, opened_at)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT(resource_id) DO UPDATE SET
	title=excluded.title,
	path=excluded.path,
	last_page=excluded.last_page,
	page_count=excluded.page_count,
	opened_at=excluded.opened_at
`, entry.ResourceID, entry.Title, entry.Path, entry.LastPage, entry.PageCount, ts(entry.OpenedAt))
	if err != nil {
		return fmt.Errorf("touch recent: %w", err)
	}
	return nil
}

// SavePosition updates just the reading position of an existing row.
func (s *Store) SavePosition(ctx context.Context, resourceID string, lastPage, pageCount int) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE recents SET last_page = ?, page_count = ? WHERE resource_id = ?`,
		lastPage, pageCount, resourceID)
	if err != nil {
		return fmt.Errorf("save position: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// Position returns the saved reading position for a resource.
func (s *Store) Position(ctx context.Context, resourceID string) (int, error) {
	var page int
	err := s.db.QueryRowContext(ctx,
		`SELECT last_page FROM recents WHERE resource_id = ?`, resourceID).Scan(&page)
	if err == sql.ErrNoRows {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("load position: %w", err)
	}
	return page, nil
}

// List returns up to limit rows, most recently opened first.
func (s *Store) List(ctx context.Context, limit int) ([]protocol.RecentEntry, error) {
	if limit <= 0 {
		limit = DefaultRecentsLimit
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT resource_id, title, path, last_page, page_count, opened_at
FROM recents ORDER BY opened_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list recents: %w", err)
	}
	defer rows.Close()

	var out []protocol.RecentEntry
	for rows.Next() {
		var e protocol.RecentEntry
		var opened string
		if err := rows.Scan(&e.ResourceID, &e.Title, &e.Path, &e.LastPage, &e.PageCount, &opened); err != nil {
			return nil, fmt.Errorf("scan recent: %w", err)
		}
		if t, err := parseTS(opened); err == nil {
			e.OpenedAt = t
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Delete removes one row; deleting an absent row is not an error.
func (s *Store) Delete(ctx context.Context, resourceID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM recents WHERE resource_id = ?`, resourceID); err != nil {
		return fmt.Errorf("delete recent: %w", err)
	}
	return nil
}

func ts(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTS(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}
