package cache

import (
	"context"
	"database/sql"
	"distance-matrix-service/internal/domain"
	"errors"
	"fmt"
	"time"
)

// SQLite backed cache of road routes, keyed by rounded coordinate pair.
// cached_at holds unix seconds; entries older than TTL are ignored.
type SqliteRouteCache struct {
	DB  *sql.DB
	TTL time.Duration

	now func() time.Time
}

func NewSqliteRouteCache(db *sql.DB, ttl time.Duration) *SqliteRouteCache {
	return &SqliteRouteCache{DB: db, TTL: ttl, now: time.Now}
}

func (s *SqliteRouteCache) Get(
	ctx context.Context,
	from domain.Coordinates,
	to domain.Coordinates,
) (domain.RouteFragment, bool, error) {
	if s.DB == nil {
		return domain.RouteFragment{}, false, errors.New("route cache: db is nil")
	}

	var raw string
	var cachedAt int64
	err := s.DB.QueryRowContext(ctx, `
	SELECT
        route,
        cached_at
    FROM route_cache
    WHERE route_key = ?;
	`, routeKey(from, to)).Scan(&raw, &cachedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.RouteFragment{}, false, nil
	}
	if err != nil {
		return domain.RouteFragment{}, false, fmt.Errorf("get route cache: query route_cache table: %w", err)
	}

	if s.TTL > 0 && s.now().Sub(time.Unix(cachedAt, 0)) > s.TTL {
		return domain.RouteFragment{}, false, nil
	}

	route, err := decodeRoute([]byte(raw))
	if err != nil {
		return domain.RouteFragment{}, false, fmt.Errorf("get route cache: decode: %w", err)
	}

	return route, true, nil
}

func (s *SqliteRouteCache) Put(
	ctx context.Context,
	from domain.Coordinates,
	to domain.Coordinates,
	route domain.RouteFragment,
) error {
	if s.DB == nil {
		return errors.New("route cache: db is nil")
	}

	raw, err := encodeRoute(route)
	if err != nil {
		return fmt.Errorf("insert route cache: encode: %w", err)
	}

	_, err = s.DB.ExecContext(ctx, `
	INSERT OR REPLACE INTO route_cache (
        route_key,
        route,
        cached_at
    )
    VALUES (?, ?, ?);
	`, routeKey(from, to), string(raw), s.now().Unix())
	if err != nil {
		return fmt.Errorf("insert route cache: %w", err)
	}

	return nil
}
