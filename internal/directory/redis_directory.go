package directory

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/redis/go-redis/v9"
)

// RedisDirectory stores one hash per rider under rider:meta:<id>.
type RedisDirectory struct {
	client *redis.Client
	logger *slog.Logger
}

func NewRedisDirectory(client *redis.Client, logger *slog.Logger) *RedisDirectory {
	return &RedisDirectory{client: client, logger: logger}
}

func metaKey(riderID string) string { return "rider:meta:" + riderID }

func (r *RedisDirectory) Upsert(ctx context.Context, info RiderInfo) error {
	return r.client.HSet(ctx, metaKey(info.ID), map[string]interface{}{
		"riderName": info.Name,
		"longitude": strconv.FormatFloat(info.Lng, 'f', -1, 64),
		"latitude":  strconv.FormatFloat(info.Lat, 'f', -1, 64),
		"sessionId": info.SessionID,
	}).Err()
}

func (r *RedisDirectory) Get(ctx context.Context, riderID string) (RiderInfo, bool) {
	m, err := r.client.HGetAll(ctx, metaKey(riderID)).Result()
	if err != nil {
		r.logger.Error("rider directory lookup failed", "rider_id", riderID, "error", err)
		return RiderInfo{}, false
	}
	if len(m) == 0 {
		return RiderInfo{}, false
	}
	info := RiderInfo{ID: riderID, Name: m["riderName"], SessionID: m["sessionId"]}
	if v, err := strconv.ParseFloat(m["longitude"], 64); err == nil {
		info.Lng = v
	}
	if v, err := strconv.ParseFloat(m["latitude"], 64); err == nil {
		info.Lat = v
	}
	return info, true
}

func (r *RedisDirectory) GetAll(ctx context.Context, riderIDs []string) []RiderInfo {
	out := make([]RiderInfo, 0, len(riderIDs))
	for _, id := range riderIDs {
		info, ok := r.Get(ctx, id)
		if !ok || info.Name == "" {
			continue
		}
		out = append(out, info)
	}
	return out
}

func (r *RedisDirectory) Delete(ctx context.Context, riderID string) error {
	return r.client.Del(ctx, metaKey(riderID)).Err()
}
