package database

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// OpenRedis はRedisクライアントを生成し、疎通確認まで行う。
// redisURLは接続URLを指定する（例: "redis://localhost:6379/0"）。
// Redisはメディア解決結果のキャッシュにのみ使用するため、
// 接続できない構成ではキャッシュなしでの運用に切り替えられる。
func OpenRedis(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return rdb, nil
}
