package cache

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore persists slow-tier entries in a local SQLite database, the
// default durable backing for single-node deployments.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (creating if needed) the cache database at path.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening cache database: %w", err)
	}

	const schema = `
		CREATE TABLE IF NOT EXISTS cache_entries (
			key TEXT PRIMARY KEY,
			data BLOB NOT NULL,
			compressed INTEGER NOT NULL DEFAULT 0,
			created_at INTEGER NOT NULL,
			expires_at INTEGER NOT NULL,
			size_estimate INTEGER NOT NULL DEFAULT 0
		)`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating cache schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Load returns all non-expired persisted entries.
func (s *SQLiteStore) Load() (map[string]StoredEntry, error) {
	rows, err := s.db.Query(
		`SELECT key, data, compressed, created_at, expires_at, size_estimate
		 FROM cache_entries WHERE expires_at > ?`, time.Now().Unix())
	if err != nil {
		return nil, fmt.Errorf("loading cache entries: %w", err)
	}
	defer rows.Close()

	entries := make(map[string]StoredEntry)
	for rows.Next() {
		var (
			key                  string
			data                 []byte
			compressed           int
			createdAt, expiresAt int64
			sizeEstimate         int
		)
		if err := rows.Scan(&key, &data, &compressed, &createdAt, &expiresAt, &sizeEstimate); err != nil {
			return nil, fmt.Errorf("scanning cache entry: %w", err)
		}
		entries[key] = StoredEntry{
			Data:         data,
			Compressed:   compressed != 0,
			CreatedAt:    time.Unix(createdAt, 0),
			ExpiresAt:    time.Unix(expiresAt, 0),
			SizeEstimate: sizeEstimate,
		}
	}
	return entries, rows.Err()
}

// Save replaces the persisted snapshot with the given entries.
func (s *SQLiteStore) Save(entries map[string]StoredEntry) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning cache save: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM cache_entries`); err != nil {
		return fmt.Errorf("clearing cache entries: %w", err)
	}
	stmt, err := tx.Prepare(
		`INSERT INTO cache_entries (key, data, compressed, created_at, expires_at, size_estimate)
		 VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing cache insert: %w", err)
	}
	defer stmt.Close()

	for key, e := range entries {
		compressed := 0
		if e.Compressed {
			compressed = 1
		}
		if _, err := stmt.Exec(key, e.Data, compressed, e.CreatedAt.Unix(), e.ExpiresAt.Unix(), e.SizeEstimate); err != nil {
			return fmt.Errorf("inserting cache entry %q: %w", key, err)
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
