package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/samvad-hq/soupchef/internal/domain"
)

// sqliteBackend keeps the index in a single SQLite table.
type sqliteBackend struct {
	db *sql.DB
}

func openSQLite(path string) (Backend, error) {
	if err := ensureDir(path); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path+"?mode=rwc")
	if err != nil {
		return nil, fmt.Errorf("%w: open sqlite index %s: %v", domain.ErrIndexCorrupt, path, err)
	}
	db.SetMaxOpenConns(1) // SQLite only supports one writer
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	ctx := context.Background()
	const ddl = `
CREATE TABLE IF NOT EXISTS recipe_index (
	seq INTEGER PRIMARY KEY AUTOINCREMENT,
	id TEXT NOT NULL UNIQUE,
	fetched_at INTEGER NOT NULL
);`
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: enable WAL on %s: %v", domain.ErrIndexCorrupt, path, err)
	}
	if _, err := db.ExecContext(ctx, ddl); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: create index table: %v", domain.ErrIndexCorrupt, err)
	}
	return &sqliteBackend{db: db}, nil
}

func (s *sqliteBackend) Load() ([]domain.IndexEntry, error) {
	rows, err := s.db.QueryContext(context.Background(), `SELECT id, fetched_at FROM recipe_index ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("%w: query index: %v", domain.ErrIndexCorrupt, err)
	}
	defer rows.Close()

	var entries []domain.IndexEntry
	for rows.Next() {
		var (
			id        string
			fetchedAt int64
		)
		if err := rows.Scan(&id, &fetchedAt); err != nil {
			return nil, fmt.Errorf("%w: scan index row: %v", domain.ErrIndexCorrupt, err)
		}
		rid, err := domain.ParseRecipeID(id)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrIndexCorrupt, err)
		}
		entries = append(entries, domain.IndexEntry{ID: rid, FetchedAt: time.Unix(fetchedAt, 0).UTC()})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrIndexCorrupt, err)
	}
	return entries, nil
}

func (s *sqliteBackend) Append(e domain.IndexEntry) error {
	_, err := s.db.ExecContext(context.Background(),
		`INSERT INTO recipe_index(id, fetched_at) VALUES(?, ?) ON CONFLICT(id) DO NOTHING`,
		e.ID.String(), e.FetchedAt.Unix(),
	)
	return err
}

func (s *sqliteBackend) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
