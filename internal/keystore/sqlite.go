package keystore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// Compile-time interface satisfaction check.
var _ Store = (*SqliteStore)(nil)

// SqliteStore is the SQLite implementation of Store.
type SqliteStore struct {
	db *DB
}

// NewSqliteStore creates a SqliteStore on top of an opened, migrated DB.
func NewSqliteStore(db *DB) *SqliteStore {
	return &SqliteStore{db: db}
}

// Open opens the database at dbPath, runs migrations, and returns a ready
// store.
func Open(dbPath string) (*SqliteStore, error) {
	db, err := NewDB(dbPath)
	if err != nil {
		return nil, err
	}
	if err := RunMigrations(db.Writer); err != nil {
		db.Close()
		return nil, err
	}
	return NewSqliteStore(db), nil
}

func (s *SqliteStore) Set(ctx context.Context, userID int64, key string) error {
	const query = `INSERT OR REPLACE INTO api_keys (user_id, api_key, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)`
	if _, err := s.db.Writer.ExecContext(ctx, query, userID, key); err != nil {
		return fmt.Errorf("set key for user %d: %w", userID, err)
	}
	return nil
}

func (s *SqliteStore) Get(ctx context.Context, userID int64) (string, error) {
	const query = `SELECT api_key FROM api_keys WHERE user_id = ?`
	var key string
	err := s.db.Reader.QueryRowContext(ctx, query, userID).Scan(&key)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get key for user %d: %w", userID, err)
	}
	return key, nil
}

func (s *SqliteStore) Delete(ctx context.Context, userID int64) (bool, error) {
	const query = `DELETE FROM api_keys WHERE user_id = ?`
	res, err := s.db.Writer.ExecContext(ctx, query, userID)
	if err != nil {
		return false, fmt.Errorf("delete key for user %d: %w", userID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete key for user %d: %w", userID, err)
	}
	return affected > 0, nil
}

func (s *SqliteStore) Close() error {
	return s.db.Close()
}
