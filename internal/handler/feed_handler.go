package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/dotrstudio/jobfeed/internal/feed"
	"github.com/dotrstudio/jobfeed/internal/metrics"
	"github.com/dotrstudio/jobfeed/internal/middleware"
	"github.com/dotrstudio/jobfeed/internal/model"
)

// FeedServiceInterface はフィードハンドラーが必要とするサービスインターフェース。
type FeedServiceInterface interface {
	// Page はフィード1ページを返す。
	Page(ctx context.Context, req feed.PageRequest) (*model.FeedPage, error)
	// Categories は公開中の求人に存在するカテゴリ一覧を返す。
	Categories(ctx context.Context) ([]string, error)
}

// FeedHandler はフィード取得のHTTPハンドラー。
type FeedHandler struct {
	service   FeedServiceInterface
	collector metrics.MetricsCollector
}

// NewFeedHandler はFeedHandlerを生成する。
func NewFeedHandler(service FeedServiceInterface, collector metrics.MetricsCollector) *FeedHandler {
	return &FeedHandler{
		service:   service,
		collector: collector,
	}
}

// feedEntryResponse はフィード1件分のAPIレスポンス。
type feedEntryResponse struct {
	ID           string  `json:"id"`
	Title        string  `json:"title"`
	Category     string  `json:"category"`
	PosterID     string  `json:"posterId"`
	Status       string  `json:"status"`
	CreatedAt    string  `json:"createdAt"`
	ThumbnailURL *string `json:"thumbnailUrl"`
	VideoURL     *string `json:"videoUrl"`
}

// feedPageResponse はフィードページのAPIレスポンス。
type feedPageResponse struct {
	Jobs       []feedEntryResponse `json:"jobs"`
	NextCursor *string             `json:"nextCursor"`
}

// GetFeed はフィードページの取得を処理する。
// GET /feed?mode=&cursor=&pageSize=&userId=&category=&posterId=
func (h *FeedHandler) GetFeed(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	mode, err := model.ParseFeedMode(q.Get("mode"))
	if err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidModeError(q.Get("mode")))
		return
	}

	pageSize := 0
	if raw := q.Get("pageSize"); raw != "" {
		pageSize, err = strconv.Atoi(raw)
		if err != nil {
			writeAPIErrorResponse(w, http.StatusUnprocessableEntity,
				model.NewValidationError("pageSizeには整数を指定してください"))
			return
		}
	}

	// saved/favoritedモードのuserIdは認証済みアクター本人に固定する。
	// 他ユーザーの保存一覧は覗けない。
	userID := q.Get("userId")
	if actor, err := middleware.ActorFromContext(r.Context()); err == nil {
		if userID != "" && userID != actor.ID && !actor.IsAdmin() {
			writeAPIErrorResponse(w, http.StatusForbidden,
				model.NewForbiddenError("他のユーザーのフィードは取得できません"))
			return
		}
		if userID == "" {
			userID = actor.ID
		}
	}

	page, err := h.service.Page(r.Context(), feed.PageRequest{
		Mode: mode,
		Filters: model.FeedFilters{
			Category: q.Get("category"),
			PosterID: q.Get("posterId"),
		},
		UserID:   userID,
		Cursor:   q.Get("cursor"),
		PageSize: pageSize,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	h.collector.RecordFeedPage(string(mode))

	resp := feedPageResponse{
		Jobs:       make([]feedEntryResponse, 0, len(page.Entries)),
		NextCursor: page.NextCursor,
	}
	for _, entry := range page.Entries {
		resp.Jobs = append(resp.Jobs, feedEntryResponse{
			ID:           entry.ID,
			Title:        entry.Title,
			Category:     entry.Category,
			PosterID:     entry.PosterID,
			Status:       string(entry.Status),
			CreatedAt:    entry.CreatedAt.UTC().Format(timeFormat),
			ThumbnailURL: entry.ThumbnailURL,
			VideoURL:     entry.VideoURL,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// GetCategories はカテゴリ一覧の取得を処理する。
// GET /categories
func (h *FeedHandler) GetCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.service.Categories(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if categories == nil {
		categories = []string{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string][]string{"categories": categories})
}
