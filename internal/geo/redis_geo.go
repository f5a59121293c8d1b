package geo

import (
	"context"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

// RedisRegistry implements Registry on top of Redis GEO commands. The sorted
// set under key holds one member per available rider.
type RedisRegistry struct {
	client *redis.Client
	key    string
	logger *slog.Logger
}

func NewRedisRegistry(client *redis.Client, key string, logger *slog.Logger) *RedisRegistry {
	return &RedisRegistry{client: client, key: key, logger: logger}
}

func (r *RedisRegistry) Upsert(ctx context.Context, riderID string, lng, lat float64) error {
	if riderID == "" || !validCoord(lng, lat) {
		return ErrInvalidCoord
	}
	return r.client.GeoAdd(ctx, r.key, &redis.GeoLocation{
		Name:      riderID,
		Longitude: lng,
		Latitude:  lat,
	}).Err()
}

func (r *RedisRegistry) Remove(ctx context.Context, riderID string) error {
	// ZREM on an absent member is a no-op, which keeps Remove idempotent.
	return r.client.ZRem(ctx, r.key, riderID).Err()
}

func (r *RedisRegistry) Nearby(ctx context.Context, lng, lat, radiusKm float64, limit int) []string {
	ids, err := r.client.GeoSearch(ctx, r.key, &redis.GeoSearchQuery{
		Longitude:  lng,
		Latitude:   lat,
		Radius:     radiusKm,
		RadiusUnit: "km",
		Sort:       "ASC",
		Count:      limit,
	}).Result()
	if err != nil {
		r.logger.Error("geo registry nearby query failed", "error", err)
		return nil
	}
	return ids
}

func (r *RedisRegistry) ListAll(ctx context.Context) []string {
	ids, err := r.client.ZRange(ctx, r.key, 0, -1).Result()
	if err != nil {
		r.logger.Error("geo registry list failed", "error", err)
		return nil
	}
	return ids
}
