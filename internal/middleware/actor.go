// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"fmt"
	"net/http"

	"github.com/dotrstudio/jobfeed/internal/model"
)

// ゲートウェイが付与するアクター情報のヘッダー。
const (
	headerActorID   = "X-Actor-ID"
	headerActorRole = "X-Actor-Role"
)

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

// actorContextKey はリクエストコンテキストにアクターを格納するためのキー。
var actorContextKey = contextKey("actor")

// NewActorMiddleware はAPIゲートウェイが付与したアクターヘッダーを読み取り、
// リクエストコンテキストに注入するミドルウェアを返す。
// 認証自体はゲートウェイ側で完了しており、本サービスはヘッダーの内容を
// 信頼して認可判定に使う。ヘッダー欠落・不正ロールは401になる。
func NewActorMiddleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actorID := r.Header.Get(headerActorID)
			if actorID == "" {
				writeUnauthorizedResponse(w)
				return
			}

			role, err := model.ParseActorRole(r.Header.Get(headerActorRole))
			if err != nil {
				writeUnauthorizedResponse(w)
				return
			}

			ctx := context.WithValue(r.Context(), actorContextKey, model.Actor{
				ID:   actorID,
				Role: role,
			})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ActorFromContext はリクエストコンテキストからアクターを取得する。
// アクターミドルウェアを通過したリクエストでのみ有効。
func ActorFromContext(ctx context.Context) (model.Actor, error) {
	actor, ok := ctx.Value(actorContextKey).(model.Actor)
	if !ok || actor.ID == "" {
		return model.Actor{}, fmt.Errorf("actor not found in context")
	}
	return actor, nil
}

// ContextWithActor はコンテキストにアクターを注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithActor(ctx context.Context, actor model.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey, actor)
}

// writeUnauthorizedResponse は401の統一エラーレスポンスを書き込む。
func writeUnauthorizedResponse(w http.ResponseWriter) {
	WriteErrorResponse(w, http.StatusUnauthorized, &model.APIError{
		Code:     "UNAUTHORIZED",
		Message:  "認証が必要です。",
		Category: "auth",
		Action:   "ログインしてください。",
	})
}
