package storage

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	soldOutKeyPrefix = "soldout:"
	soldOutKeyTTL    = 24 * time.Hour
)

// RedisAdapter remembers trains that have run out of seats. Seats are never
// returned to a train, so a marker can only ever be stale by expiring.
type RedisAdapter struct {
	client *redis.Client
}

func NewRedisAdapter(client *redis.Client) *RedisAdapter {
	return &RedisAdapter{client: client}
}

func soldOutKey(trainID int64) string {
	return soldOutKeyPrefix + strconv.FormatInt(trainID, 10)
}

func (r *RedisAdapter) IsSoldOut(ctx context.Context, trainID int64) (bool, error) {
	n, err := r.client.Exists(ctx, soldOutKey(trainID)).Result()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (r *RedisAdapter) MarkSoldOut(ctx context.Context, trainID int64) error {
	return r.client.Set(ctx, soldOutKey(trainID), 1, soldOutKeyTTL).Err()
}

// ClearSoldOut drops the marker. Used when a test or an operator resets a
// train's inventory out of band.
func (r *RedisAdapter) ClearSoldOut(ctx context.Context, trainID int64) error {
	return r.client.Del(ctx, soldOutKey(trainID)).Err()
}
