package progress

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS progress (
	batch_id TEXT PRIMARY KEY,
	percent INTEGER NOT NULL DEFAULT 0,
	updated_at TEXT NOT NULL
);`

// SQLiteStore persists progress in a single table, one row per batch.
type SQLiteStore struct {
	db   *sql.DB
	keys keyedMutex
}

// OpenSQLite opens (creating if needed) the database at path in WAL mode.
func OpenSQLite(path string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), os.ModePerm); err != nil {
		return nil, fmt.Errorf("create progress db directory: %w", err)
	}
	db, err := sql.Open("sqlite", path+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init progress schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Set(batchID string, percent int) error {
	unlock := s.keys.lock(batchID)
	defer unlock()

	return retryBusy(func() error {
		_, err := s.db.Exec(
			`INSERT INTO progress (batch_id, percent, updated_at) VALUES (?, ?, ?)
ON CONFLICT(batch_id) DO UPDATE SET
  percent=excluded.percent,
  updated_at=excluded.updated_at
WHERE excluded.percent >= progress.percent`,
			batchID,
			clamp(percent),
			time.Now().Format(time.RFC3339),
		)
		return err
	})
}

func (s *SQLiteStore) Get(batchID string) (int, error) {
	var p int
	err := s.db.QueryRow(`SELECT percent FROM progress WHERE batch_id = ?`, batchID).Scan(&p)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return p, nil
}

func (s *SQLiteStore) Delete(batchID string) error {
	unlock := s.keys.lock(batchID)
	err := retryBusy(func() error {
		_, err := s.db.Exec(`DELETE FROM progress WHERE batch_id = ?`, batchID)
		return err
	})
	unlock()
	s.keys.forget(batchID)
	return err
}

func (s *SQLiteStore) Close() error { return s.db.Close() }

// retryBusy retries fn with a short backoff while SQLite reports the
// database as locked.
func retryBusy(fn func() error) error {
	const maxRetries = 3
	var err error
	for i := 0; i < maxRetries; i++ {
		if err = fn(); err == nil {
			return nil
		}
		if msg := err.Error(); !strings.Contains(msg, "database is locked") && !strings.Contains(msg, "SQLITE_BUSY") {
			return err
		}
		time.Sleep(time.Duration(i+1) * 50 * time.Millisecond)
	}
	return err
}
