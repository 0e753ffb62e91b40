package routing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/DIMO-analytics-hub-aiwe/dimo-analytics-hub/internal/shared/geo"
	"github.com/DIMO-analytics-hub-aiwe/dimo-analytics-hub/internal/shared/model"
)

// Cache keeps route lookups in redis keyed by the geohash of both endpoints.
// Redis failures are logged and treated as misses.
type Cache struct {
	next  Provider
	redis *redis.Client
	ttl   time.Duration
	log   logrus.FieldLogger
}

func NewCache(next Provider, client *redis.Client, ttl time.Duration, log logrus.FieldLogger) *Cache {
	return &Cache{next: next, redis: client, ttl: ttl, log: log}
}

func cacheKey(start, end geo.Point) string {
	return fmt.Sprintf("route:%s:%s", geo.Hash(start), geo.Hash(end))
}

func (c *Cache) GetRouteInfo(ctx context.Context, start, end geo.Point) (model.RouteInfo, error) {
	if c.redis == nil {
		return c.next.GetRouteInfo(ctx, start, end)
	}

	key := cacheKey(start, end)
	raw, err := c.redis.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var info model.RouteInfo
		if err := json.Unmarshal(raw, &info); err == nil {
			return info, nil
		}
		c.log.WithField("key", key).Warn("discarding undecodable cached route")
	case !errors.Is(err, redis.Nil):
		c.log.WithError(err).WithField("key", key).Warn("route cache read failed")
	}

	info, err := c.next.GetRouteInfo(ctx, start, end)
	if err != nil {
		return model.RouteInfo{}, err
	}

	if payload, err := json.Marshal(info); err == nil {
		if err := c.redis.Set(ctx, key, payload, c.ttl).Err(); err != nil {
			c.log.WithError(err).WithField("key", key).Warn("route cache write failed")
		}
	}
	return info, nil
}
