package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

type RedisRateLimitRepository struct {
	redis *redis.Client
}

func NewRedisRateLimitRepository(redisClient *redis.Client) *RedisRateLimitRepository {
	return &RedisRateLimitRepository{redis: redisClient}
}

func rateLimitKey(key string) string {
	return fmt.Sprintf("ratelimit:%s", key)
}

// Allow counts one hit in a fixed window. The window starts with the first
// hit; the key expires with the window, so idle clients cost nothing.
func (r *RedisRateLimitRepository) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	redisKey := rateLimitKey(key)

	count, err := r.redis.Incr(ctx, redisKey).Result()
	if err != nil {
		return false, err
	}
	if count == 1 {
		if err := r.redis.Expire(ctx, redisKey, window).Err(); err != nil {
			return false, err
		}
	}
	return count <= int64(limit), nil
}
