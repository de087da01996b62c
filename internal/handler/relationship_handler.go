package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dotrstudio/jobfeed/internal/metrics"
	"github.com/dotrstudio/jobfeed/internal/middleware"
	"github.com/dotrstudio/jobfeed/internal/model"
)

// RelationshipServiceInterface は保存/お気に入りハンドラーが必要とするサービスインターフェース。
type RelationshipServiceInterface interface {
	// Toggle は関係の有無を反転し、反転後の状態を返す。
	Toggle(ctx context.Context, userID, jobID string, kind model.RelationKind) (bool, error)
}

// RelationshipHandler は保存/お気に入りトグルのHTTPハンドラー。
type RelationshipHandler struct {
	service   RelationshipServiceInterface
	collector metrics.MetricsCollector
}

// NewRelationshipHandler はRelationshipHandlerを生成する。
func NewRelationshipHandler(service RelationshipServiceInterface, collector metrics.MetricsCollector) *RelationshipHandler {
	return &RelationshipHandler{
		service:   service,
		collector: collector,
	}
}

// ToggleSaved は保存のトグルを処理する。
// POST /jobs/:id/saved/toggle
func (h *RelationshipHandler) ToggleSaved(w http.ResponseWriter, r *http.Request) {
	h.toggle(w, r, model.RelationKindSaved, "saved")
}

// ToggleFavorited はお気に入りのトグルを処理する。
// POST /jobs/:id/favorited/toggle
func (h *RelationshipHandler) ToggleFavorited(w http.ResponseWriter, r *http.Request) {
	h.toggle(w, r, model.RelationKindFavorited, "favorited")
}

// toggle は関係トグルの共通処理。
// 対象ユーザーは認証済みアクター本人に固定され、リクエストボディは参照しない。
func (h *RelationshipHandler) toggle(w http.ResponseWriter, r *http.Request, kind model.RelationKind, field string) {
	actor, err := middleware.ActorFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	active, err := h.service.Toggle(r.Context(), actor.ID, chi.URLParam(r, "id"), kind)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	h.collector.RecordToggle(string(kind), active)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]bool{field: active})
}
