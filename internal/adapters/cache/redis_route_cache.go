package cache

import (
	"context"
	"distance-matrix-service/internal/domain"
	"distance-matrix-service/internal/platform/obs"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const routeKeyPrefix = "route:"

// RedisRouteCache stores road routes in Redis with a fixed expiry.
type RedisRouteCache struct {
	Client *redis.Client
	TTL    time.Duration
	Log    *zap.Logger
}

func NewRedisRouteCache(client *redis.Client, ttl time.Duration, log *zap.Logger) *RedisRouteCache {
	return &RedisRouteCache{Client: client, TTL: ttl, Log: log}
}

// NewRedisClient connects to the Redis server at url (redis://host:port/db).
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("redis client: parse url: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis client: ping: %w", err)
	}

	return client, nil
}

func (c *RedisRouteCache) Get(
	ctx context.Context,
	from domain.Coordinates,
	to domain.Coordinates,
) (_ domain.RouteFragment, _ bool, err error) {
	defer obs.Time(ctx, c.Log, "route.cache.Get")(&err)

	if c.Client == nil {
		return domain.RouteFragment{}, false, errors.New("route cache: client is nil")
	}

	raw, err := c.Client.Get(ctx, routeKeyPrefix+routeKey(from, to)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.RouteFragment{}, false, nil
	}
	if err != nil {
		return domain.RouteFragment{}, false, fmt.Errorf("get route cache: %w", err)
	}

	route, err := decodeRoute(raw)
	if err != nil {
		return domain.RouteFragment{}, false, fmt.Errorf("get route cache: decode: %w", err)
	}

	return route, true, nil
}

func (c *RedisRouteCache) Put(
	ctx context.Context,
	from domain.Coordinates,
	to domain.Coordinates,
	route domain.RouteFragment,
) error {
	if c.Client == nil {
		return errors.New("route cache: client is nil")
	}

	raw, err := encodeRoute(route)
	if err != nil {
		return fmt.Errorf("put route cache: encode: %w", err)
	}

	if err := c.Client.Set(ctx, routeKeyPrefix+routeKey(from, to), raw, c.TTL).Err(); err != nil {
		return fmt.Errorf("put route cache: %w", err)
	}

	return nil
}
