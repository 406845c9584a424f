package repositories

import (
	"context"
	"database/sql"
	"distance-matrix-service/internal/platform/obs"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// Postgres-backed implementation of the StateStore port.
type SQLStateStore struct {
	DB  *sql.DB
	Log *zap.Logger
}

func NewSQLStateStore(db *sql.DB, log *zap.Logger) *SQLStateStore {
	return &SQLStateStore{DB: db, Log: log}
}

func (s *SQLStateStore) Load(ctx context.Context, key string) (_ []byte, _ bool, err error) {
	defer obs.Time(ctx, s.Log, "state.Load")(&err)

	if s.DB == nil {
		return nil, false, errors.New("sql state store: DB is nil")
	}

	var value string
	err = s.DB.QueryRowContext(ctx, `
	SELECT value
	FROM app_state
	WHERE key = $1;
	`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("load state %q: %w", key, err)
	}

	return []byte(value), true, nil
}

func (s *SQLStateStore) Save(ctx context.Context, key string, value []byte) (err error) {
	defer obs.Time(ctx, s.Log, "state.Save")(&err)

	if s.DB == nil {
		return errors.New("sql state store: DB is nil")
	}

	_, err = s.DB.ExecContext(ctx, `
	INSERT INTO app_state (key, value, updated_at)
	VALUES ($1, $2, now())
	ON CONFLICT (key) DO UPDATE
	SET value = EXCLUDED.value,
		updated_at = EXCLUDED.updated_at;
	`, key, string(value))
	if err != nil {
		return fmt.Errorf("save state %q: %w", key, err)
	}

	return nil
}
