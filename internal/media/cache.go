package media

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// probeCacheKeyPrefix はRedisキーの名前空間。
const probeCacheKeyPrefix = "media:probe:"

// RedisProbeCache はRedisを使った存在確認結果のキャッシュ。
// Redisが落ちていてもエラーを伝播せず、キャッシュミスとして扱う
// （リゾルバは毎回プローブする構成に自然に縮退する）。
type RedisProbeCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisProbeCache はRedisProbeCacheを生成する。
// ttlには署名URLの有効期間と同じ値を渡す想定。
func NewRedisProbeCache(client *redis.Client, ttl time.Duration) *RedisProbeCache {
	return &RedisProbeCache{
		client: client,
		ttl:    ttl,
	}
}

// Get はキャッシュされた確認結果を返す。
func (c *RedisProbeCache) Get(ctx context.Context, storageKey string) (string, bool) {
	result, err := c.client.Get(ctx, probeCacheKeyPrefix+storageKey).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			slog.Debug("media probe cache get failed",
				slog.String("storage_key", storageKey),
				slog.String("error", err.Error()),
			)
		}
		return "", false
	}
	return result, true
}

// Set は確認結果を記録する。失敗はログのみで握りつぶす。
func (c *RedisProbeCache) Set(ctx context.Context, storageKey, result string) {
	if err := c.client.Set(ctx, probeCacheKeyPrefix+storageKey, result, c.ttl).Err(); err != nil {
		slog.Debug("media probe cache set failed",
			slog.String("storage_key", storageKey),
			slog.String("error", err.Error()),
		)
	}
}

var _ ProbeCache = (*RedisProbeCache)(nil)
