// Package app はアプリケーションの起動と依存関係のワイヤリングを提供する。
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/dotrstudio/jobfeed/internal/config"
	"github.com/dotrstudio/jobfeed/internal/cursor"
	"github.com/dotrstudio/jobfeed/internal/database"
	"github.com/dotrstudio/jobfeed/internal/feed"
	"github.com/dotrstudio/jobfeed/internal/handler"
	"github.com/dotrstudio/jobfeed/internal/job"
	"github.com/dotrstudio/jobfeed/internal/logger"
	"github.com/dotrstudio/jobfeed/internal/media"
	"github.com/dotrstudio/jobfeed/internal/metrics"
	"github.com/dotrstudio/jobfeed/internal/middleware"
	"github.com/dotrstudio/jobfeed/internal/relationship"
	"github.com/dotrstudio/jobfeed/internal/repository"
	"github.com/dotrstudio/jobfeed/internal/security"
	"github.com/dotrstudio/jobfeed/internal/worker/ingest"
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w)

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
	)

	switch cmd {
	case CommandWorker:
		return runWorker(cfg)
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(cfg)
	}
}

// runServe はAPIサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	// 1. DB接続
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established")

	// 2. Redis接続（任意。未設定の場合はプローブキャッシュなしで動作する）
	var probeCache media.ProbeCache
	if cfg.RedisURL != "" {
		rdb, err := database.OpenRedis(context.Background(), cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
		defer rdb.Close()
		probeCache = media.NewRedisProbeCache(rdb, cfg.MediaURLTTL)
		slog.Info("redis connection established")
	}

	// 3. リポジトリの初期化
	jobRepo := repository.NewPostgresJobRepo(db)
	relRepo := repository.NewPostgresRelationshipRepo(db)

	// 4. セキュリティサービスの初期化
	guard := security.NewOutboundGuard()
	sanitizer := security.NewDescriptionSanitizer()

	// 5. ドメインサービスの初期化
	resolver := media.NewResolver(media.ResolverConfig{
		BaseURL:       cfg.MediaBaseURL,
		SigningSecret: cfg.MediaSigningSecret,
		URLTTL:        cfg.MediaURLTTL,
	}, guard.NewSafeClient(cfg.MediaProbeTimeout), probeCache)
	mediaService := media.NewService(jobRepo, resolver)

	jobService := job.NewService(jobRepo, sanitizer)
	relService := relationship.NewService(jobRepo, relRepo)

	codec := cursor.NewCodec(cfg.CursorSecret)
	feedService := feed.NewService(
		jobRepo, relRepo, codec, resolver,
		cfg.PageSizeDefault, cfg.PageSizeMax,
	)

	// 6. メトリクスの初期化
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	// 7. ルーターの構築
	rateLimiter := middleware.NewRateLimiter(
		middleware.NewRateLimiterConfig(cfg.RateLimitGeneral, cfg.RateLimitPost),
	)
	defer rateLimiter.Stop()

	router := handler.NewRouter(&handler.RouterDeps{
		Logger:            slog.Default(),
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       rateLimiter,

		HealthChecker:  db,
		MetricsHandler: metrics.Handler(registry),
		Collector:      collector,

		JobService:          jobService,
		FeedService:         feedService,
		RelationshipService: relService,
		MediaService:        mediaService,
	})

	// 8. HTTPサーバーの起動
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("API server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server listen error", slog.String("error", err.Error()))
		}
	}()

	<-stop
	slog.Info("shutting down API server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runWorker は取り込みワーカーモードで起動する。
// DB接続を開き、取り込みスケジューラを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとシャットダウンする。
func runWorker(cfg *config.Config) error {
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established (worker)")

	jobRepo := repository.NewPostgresJobRepo(db)
	sourceRepo := repository.NewPostgresIngestSourceRepo(db)

	guard := security.NewOutboundGuard()
	sanitizer := security.NewDescriptionSanitizer()

	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	fetcher := ingest.NewFetcher(
		jobRepo, sourceRepo, sanitizer, guard, collector,
		slog.Default(),
		cfg.IngestTimeout, cfg.IngestMaxSize, cfg.IngestInterval,
	)
	scheduler := ingest.NewScheduler(
		sourceRepo, fetcher, slog.Default(), cfg.IngestMaxConcurrent,
	)

	// グレースフルシャットダウンのためのシグナルハンドリング
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-stop
		slog.Info("shutting down worker...")
		cancel()
	}()

	slog.Info("worker starting",
		slog.Duration("ingest_interval", cfg.IngestInterval),
		slog.Int("max_concurrent", cfg.IngestMaxConcurrent),
	)

	// 取り込みスケジューラをメインgoroutineで実行（ブロッキング）
	scheduler.Start(ctx, cfg.IngestInterval)

	slog.Info("worker stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully")
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
