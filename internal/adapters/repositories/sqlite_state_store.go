package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// SQLite-backed implementation of the StateStore port.
type SqliteStateStore struct{ DB *sql.DB }

func NewSqliteStateStore(db *sql.DB) *SqliteStateStore {
	return &SqliteStateStore{DB: db}
}

func (s *SqliteStateStore) Load(ctx context.Context, key string) ([]byte, bool, error) {
	if s.DB == nil {
		return nil, false, errors.New("sqlite state store: DB is nil")
	}

	query := `
	SELECT value
	FROM app_state
	WHERE key = ?;
	`
	var value string
	err := s.DB.QueryRowContext(ctx, query, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("load state %q: %w", key, err)
	}

	return []byte(value), true, nil
}

func (s *SqliteStateStore) Save(ctx context.Context, key string, value []byte) error {
	if s.DB == nil {
		return errors.New("sqlite state store: DB is nil")
	}

	query := `
	INSERT OR REPLACE INTO app_state (
		key,
		value,
		updated_at
	)
	VALUES (?, ?, ?);
	`
	if _, err := s.DB.ExecContext(ctx, query, key, string(value), time.Now().Unix()); err != nil {
		return fmt.Errorf("save state %q: %w", key, err)
	}

	return nil
}
