// Package cache keeps list responses in Redis, keyed by the serialized
// query. Mutations invalidate every cached page at once by bumping a
// version number that is part of each key.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/ButyrinIA/postadmin/internal/models"
	"github.com/redis/go-redis/v9"
)

// ListCache is the contract the gateway relies on.
type ListCache interface {
	// Get returns the cached page for query, plus the cache version it was
	// looked up under. That version must be passed back to Set.
	Get(ctx context.Context, query string) (*models.ListResponse[models.Post], int64, bool, error)
	// Set stores a page under the version returned by Get. Pages stored under
	// an outdated version are never read.
	Set(ctx context.Context, version int64, query string, page *models.ListResponse[models.Post]) error
	// Invalidate makes every cached page unreachable.
	Invalidate(ctx context.Context) error
	Close() error
}

type redisCache struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisCache connects to redisURL (redis://:pass@host:6379/0).
// An empty prefix becomes "postadmin:".
func NewRedisCache(ctx context.Context, redisURL, prefix string, ttl time.Duration) (ListCache, error) {
	if prefix == "" {
		prefix = "postadmin:"
	}
	if ttl <= 0 {
		ttl = time.Minute
	}

	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}

	rdb := redis.NewClient(opt)
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, err
	}

	return &redisCache{rdb: rdb, prefix: prefix, ttl: ttl}, nil
}

func (c *redisCache) versionKey() string { return c.prefix + "version" }

func (c *redisCache) pageKey(version int64, query string) string {
	return c.prefix + "list:" + strconv.FormatInt(version, 10) + ":" + query
}

func (c *redisCache) version(ctx context.Context) (int64, error) {
	v, err := c.rdb.Get(ctx, c.versionKey()).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return v, err
}

func (c *redisCache) Get(ctx context.Context, query string) (*models.ListResponse[models.Post], int64, bool, error) {
	version, err := c.version(ctx)
	if err != nil {
		return nil, 0, false, err
	}

	raw, err := c.rdb.Get(ctx, c.pageKey(version, query)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, version, false, nil
	}
	if err != nil {
		return nil, version, false, err
	}

	var page models.ListResponse[models.Post]
	if err := json.Unmarshal(raw, &page); err != nil {
		return nil, version, false, err
	}
	return &page, version, true, nil
}

func (c *redisCache) Set(ctx context.Context, version int64, query string, page *models.ListResponse[models.Post]) error {
	raw, err := json.Marshal(page)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, c.pageKey(version, query), raw, c.ttl).Err()
}

func (c *redisCache) Invalidate(ctx context.Context) error {
	return c.rdb.Incr(ctx, c.versionKey()).Err()
}

func (c *redisCache) Close() error { return c.rdb.Close() }
