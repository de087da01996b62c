package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dotrstudio/jobfeed/internal/metrics"
	"github.com/dotrstudio/jobfeed/internal/middleware"
)

// HealthChecker はヘルスチェックに必要なインターフェース。
// *sql.DBがそのまま満たす。
type HealthChecker interface {
	PingContext(ctx context.Context) error
}

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Logger            *slog.Logger
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter

	// 監視
	HealthChecker  HealthChecker
	MetricsHandler http.Handler
	Collector      metrics.MetricsCollector

	// ドメインサービス
	JobService          JobServiceInterface
	FeedService         FeedServiceInterface
	RelationshipService RelationshipServiceInterface
	MediaService        MediaServiceInterface
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → SecurityHeaders → CORS → Logging → Metrics → Actor → RateLimit(General)
//
// /health と /metrics はアクターミドルウェアの外に配置する
// （ロードバランサーとPrometheusはアクターヘッダーを持たない）。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	if deps.Logger != nil {
		r.Use(middleware.NewLoggingMiddleware(deps.Logger))
	}
	if deps.Collector != nil {
		r.Use(middleware.NewMetricsMiddleware(deps.Collector))
	}

	jobHandler := NewJobHandler(deps.JobService, deps.Collector)
	feedHandler := NewFeedHandler(deps.FeedService, deps.Collector)
	relHandler := NewRelationshipHandler(deps.RelationshipService, deps.Collector)
	mediaHandler := NewMediaHandler(deps.MediaService, deps.Collector)

	// --- 認証不要のルート ---

	r.Get("/health", NewHealthHandler(deps.HealthChecker))
	if deps.MetricsHandler != nil {
		r.Handle("/metrics", deps.MetricsHandler)
	}

	// --- アクターが必要なルート ---
	// ミドルウェアスタック: Actor → RateLimit(General)
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewActorMiddleware())
		r.Use(deps.RateLimiter.GeneralMiddleware())

		// フィード
		r.Get("/feed", feedHandler.GetFeed)
		r.Get("/categories", feedHandler.GetCategories)

		// 求人管理
		r.Route("/jobs", func(r chi.Router) {
			// POST /jobs - 求人投稿（投稿専用レート制限を追加）
			r.With(deps.RateLimiter.PostingMiddleware()).Post("/", jobHandler.CreateJob)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", jobHandler.GetJob)
				r.Patch("/", jobHandler.UpdateJob)
				r.Post("/publish", jobHandler.PublishJob)
				r.Post("/close", jobHandler.CloseJob)

				// 保存/お気に入りトグル
				r.Post("/saved/toggle", relHandler.ToggleSaved)
				r.Post("/favorited/toggle", relHandler.ToggleFavorited)
			})
		})

		// メディア参照解決
		r.Get("/media/{jobId}/{kind}", mediaHandler.GetMedia)
	})

	return r
}

// NewHealthHandler はDB疎通を確認するヘルスチェックハンドラーを返す。
// GET /health
func NewHealthHandler(checker HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if checker != nil {
			if err := checker.PingContext(r.Context()); err != nil {
				slog.Error("health check failed", slog.String("error", err.Error()))
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusServiceUnavailable)
				json.NewEncoder(w).Encode(map[string]string{"status": "unhealthy"})
				return
			}
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	}
}
