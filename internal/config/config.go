// Package config は環境変数からのアプリケーション設定の読み込みを提供する。
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL string

	// Redis（メディアURL解決結果のキャッシュ。空の場合はキャッシュなしで動作する）
	RedisURL string

	// Cursor
	CursorSecret string

	// Media
	MediaBaseURL       string
	MediaSigningSecret string
	MediaURLTTL        time.Duration
	MediaProbeTimeout  time.Duration

	// Feed
	PageSizeDefault int
	PageSizeMax     int

	// Rate Limit（req/min/actor）
	RateLimitGeneral int
	RateLimitPost    int

	// Ingest
	IngestInterval      time.Duration
	IngestTimeout       time.Duration
	IngestMaxSize       int64
	IngestMaxConcurrent int

	// Server
	ServerPort string

	// CORS
	CORSAllowedOrigin string
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	cfg.CursorSecret = os.Getenv("CURSOR_SECRET")
	if cfg.CursorSecret == "" {
		missing = append(missing, "CURSOR_SECRET")
	}

	cfg.MediaBaseURL = os.Getenv("MEDIA_BASE_URL")
	if cfg.MediaBaseURL == "" {
		missing = append(missing, "MEDIA_BASE_URL")
	}

	cfg.MediaSigningSecret = os.Getenv("MEDIA_SIGNING_SECRET")
	if cfg.MediaSigningSecret == "" {
		missing = append(missing, "MEDIA_SIGNING_SECRET")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	// Optional fields with defaults
	cfg.RedisURL = getEnvString("REDIS_URL", "")
	cfg.MediaURLTTL = getEnvDuration("MEDIA_URL_TTL", 15*time.Minute)
	cfg.MediaProbeTimeout = getEnvDuration("MEDIA_PROBE_TIMEOUT", 3*time.Second)
	cfg.PageSizeDefault = getEnvInt("PAGE_SIZE_DEFAULT", 20)
	cfg.PageSizeMax = getEnvInt("PAGE_SIZE_MAX", 100)
	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)
	cfg.RateLimitPost = getEnvInt("RATE_LIMIT_POST", 10)
	cfg.IngestInterval = getEnvDuration("INGEST_INTERVAL", 5*time.Minute)
	cfg.IngestTimeout = getEnvDuration("INGEST_TIMEOUT", 10*time.Second)
	cfg.IngestMaxSize = getEnvInt64("INGEST_MAX_SIZE", 5242880)
	cfg.IngestMaxConcurrent = getEnvInt("INGEST_MAX_CONCURRENT", 10)
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "http://localhost:3000")

	return cfg, nil
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvInt64(key string, defaultVal int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
