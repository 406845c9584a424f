package cache

import (
	"context"
	"database/sql"
	"distance-matrix-service/internal/domain"
	"distance-matrix-service/internal/platform/obs"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// SQLRouteCache is a Postgres-backed cache of road routes. Entries older
// than TTL are ignored; a zero TTL keeps them forever.
type SQLRouteCache struct {
	DB  *sql.DB
	TTL time.Duration
	Log *zap.Logger
}

func NewSQLRouteCache(db *sql.DB, ttl time.Duration, log *zap.Logger) *SQLRouteCache {
	return &SQLRouteCache{DB: db, TTL: ttl, Log: log}
}

func (s *SQLRouteCache) Get(
	ctx context.Context,
	from domain.Coordinates,
	to domain.Coordinates,
) (_ domain.RouteFragment, _ bool, err error) {
	defer obs.Time(ctx, s.Log, "route.cache.Get")(&err)

	if s.DB == nil {
		return domain.RouteFragment{}, false, errors.New("route cache: db is nil")
	}

	var raw []byte
	var cachedAt time.Time
	err = s.DB.QueryRowContext(ctx, `
	SELECT route, cached_at
    FROM route_cache
    WHERE route_key = $1;
	`, routeKey(from, to)).Scan(&raw, &cachedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.RouteFragment{}, false, nil
	}
	if err != nil {
		return domain.RouteFragment{}, false, fmt.Errorf("get route cache: query route_cache table: %w", err)
	}

	if s.TTL > 0 && time.Since(cachedAt) > s.TTL {
		return domain.RouteFragment{}, false, nil
	}

	route, err := decodeRoute(raw)
	if err != nil {
		return domain.RouteFragment{}, false, fmt.Errorf("get route cache: decode: %w", err)
	}

	return route, true, nil
}

func (s *SQLRouteCache) Put(
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
	INSERT INTO route_cache (route_key, route, cached_at)
    VALUES ($1, $2, now())
	ON CONFLICT (route_key) DO UPDATE
	SET route = EXCLUDED.route,
		cached_at = EXCLUDED.cached_at;
	`, routeKey(from, to), string(raw))
	if err != nil {
		return fmt.Errorf("insert route cache: %w", err)
	}

	return nil
}
