package repository

import (
	"context"
	"encoding/json"
	"time"

	"github.com/linkboard/linkboard/internal/app/model"
	"github.com/redis/go-redis/v9"
)

// LinkCache fronts the durable link store on the redirect hot path.
// Mutations must invalidate the entry before they report success, so a
// later resolve never serves a stale destination past one generation.
type LinkCache interface {
	Get(ctx context.Context, code string) (*model.Link, error)
	Set(ctx context.Context, link *model.Link) error
	Invalidate(ctx context.Context, code string) error
}

type redisLinkCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisLinkCache returns a redis-backed LinkCache with the given TTL.
func NewRedisLinkCache(client *redis.Client, ttl time.Duration) LinkCache {
	return &redisLinkCache{client: client, ttl: ttl}
}

func (c *redisLinkCache) Get(ctx context.Context, code string) (*model.Link, error) {
	data, err := c.client.Get(ctx, cacheKey(code)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, ErrLinkNotFound
		}
		return nil, err
	}

	var link model.Link
	if err := json.Unmarshal(data, &link); err != nil {
		return nil, err
	}
	return &link, nil
}

func (c *redisLinkCache) Set(ctx context.Context, link *model.Link) error {
	data, err := json.Marshal(link)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, cacheKey(link.Code), data, c.ttl).Err()
}

func (c *redisLinkCache) Invalidate(ctx context.Context, code string) error {
	return c.client.Del(ctx, cacheKey(code)).Err()
}

func cacheKey(code string) string {
	return "link:" + code
}
