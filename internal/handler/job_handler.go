// Package handler はHTTP APIハンドラーを提供する。
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dotrstudio/jobfeed/internal/job"
	"github.com/dotrstudio/jobfeed/internal/metrics"
	"github.com/dotrstudio/jobfeed/internal/middleware"
	"github.com/dotrstudio/jobfeed/internal/model"
)

// JobServiceInterface は求人ハンドラーが必要とするサービスインターフェース。
type JobServiceInterface interface {
	// Create は求人を下書き状態で作成する。
	Create(ctx context.Context, actor model.Actor, in job.CreateInput) (*model.Job, error)
	// Get は求人を取得する。
	Get(ctx context.Context, actor model.Actor, id string) (*model.Job, error)
	// Update は求人の可変フィールドを部分更新する。
	Update(ctx context.Context, actor model.Actor, id string, in job.UpdateInput) (*model.Job, error)
	// Publish は下書きの求人を公開する。
	Publish(ctx context.Context, actor model.Actor, id string) (*model.Job, error)
	// Close は公開中の求人を掲載終了にする。
	Close(ctx context.Context, actor model.Actor, id string) (*model.Job, error)
}

// JobHandler は求人管理のHTTPハンドラー。
type JobHandler struct {
	service   JobServiceInterface
	collector metrics.MetricsCollector
}

// NewJobHandler はJobHandlerを生成する。
func NewJobHandler(service JobServiceInterface, collector metrics.MetricsCollector) *JobHandler {
	return &JobHandler{
		service:   service,
		collector: collector,
	}
}

// createJobRequest は求人作成リクエストのボディ。
type createJobRequest struct {
	Title        string `json:"title"`
	Description  string `json:"description"`
	Category     string `json:"category"`
	PosterID     string `json:"posterId"`
	PosterType   string `json:"posterType"`
	ThumbnailKey string `json:"thumbnailKey"`
	VideoKey     string `json:"videoKey"`
}

// updateJobRequest は求人更新リクエストのボディ。nilのフィールドは変更しない。
type updateJobRequest struct {
	Title        *string `json:"title"`
	Description  *string `json:"description"`
	Category     *string `json:"category"`
	ThumbnailKey *string `json:"thumbnailKey"`
	VideoKey     *string `json:"videoKey"`
}

// jobResponse は求人情報のAPIレスポンス。
type jobResponse struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Category    string `json:"category"`
	PosterID    string `json:"posterId"`
	PosterType  string `json:"posterType"`
	Status      string `json:"status"`
	CreatedAt   string `json:"createdAt"`
	UpdatedAt   string `json:"updatedAt"`
}

// CreateJob は求人の作成を処理する。
// POST /jobs
func (h *JobHandler) CreateJob(w http.ResponseWriter, r *http.Request) {
	actor, err := middleware.ActorFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	var req createJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequestBody(w)
		return
	}

	created, err := h.service.Create(r.Context(), actor, job.CreateInput{
		Title:        req.Title,
		Description:  req.Description,
		Category:     req.Category,
		PosterID:     req.PosterID,
		PosterType:   req.PosterType,
		ThumbnailKey: req.ThumbnailKey,
		VideoKey:     req.VideoKey,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	h.collector.RecordJobCreated()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]string{"jobId": created.ID})
}

// GetJob は求人詳細を取得する。
// GET /jobs/:id
func (h *JobHandler) GetJob(w http.ResponseWriter, r *http.Request) {
	actor, err := middleware.ActorFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	found, err := h.service.Get(r.Context(), actor, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toJobResponse(found))
}

// UpdateJob は求人の部分更新を処理する。
// PATCH /jobs/:id
func (h *JobHandler) UpdateJob(w http.ResponseWriter, r *http.Request) {
	actor, err := middleware.ActorFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	var req updateJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequestBody(w)
		return
	}

	updated, err := h.service.Update(r.Context(), actor, chi.URLParam(r, "id"), job.UpdateInput{
		Title:        req.Title,
		Description:  req.Description,
		Category:     req.Category,
		ThumbnailKey: req.ThumbnailKey,
		VideoKey:     req.VideoKey,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toJobResponse(updated))
}

// PublishJob は求人の公開を処理する。
// POST /jobs/:id/publish
func (h *JobHandler) PublishJob(w http.ResponseWriter, r *http.Request) {
	actor, err := middleware.ActorFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	published, err := h.service.Publish(r.Context(), actor, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	h.collector.RecordJobPublished()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": string(published.Status)})
}

// CloseJob は求人の掲載終了を処理する。
// POST /jobs/:id/close
func (h *JobHandler) CloseJob(w http.ResponseWriter, r *http.Request) {
	actor, err := middleware.ActorFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	closed, err := h.service.Close(r.Context(), actor, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	h.collector.RecordJobClosed()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": string(closed.Status)})
}

// --- ヘルパー関数 ---

// toJobResponse はmodel.JobからAPIレスポンスに変換する。
func toJobResponse(j *model.Job) jobResponse {
	return jobResponse{
		ID:          j.ID,
		Title:       j.Title,
		Description: j.Description,
		Category:    j.Category,
		PosterID:    j.PosterID,
		PosterType:  string(j.PosterType),
		Status:      string(j.Status),
		CreatedAt:   j.CreatedAt.UTC().Format(timeFormat),
		UpdatedAt:   j.UpdatedAt.UTC().Format(timeFormat),
	}
}

// writeUnauthorized は401の統一エラーレスポンスを書き込む。
func writeUnauthorized(w http.ResponseWriter) {
	writeAPIErrorResponse(w, http.StatusUnauthorized, &model.APIError{
		Code:     "UNAUTHORIZED",
		Message:  "認証が必要です。",
		Category: "auth",
		Action:   "ログインしてください。",
	})
}

// writeInvalidRequestBody はボディ解析失敗の400レスポンスを書き込む。
func writeInvalidRequestBody(w http.ResponseWriter) {
	writeAPIErrorResponse(w, http.StatusBadRequest, &model.APIError{
		Code:     "INVALID_REQUEST",
		Message:  "リクエストボディの解析に失敗しました。",
		Category: "validation",
		Action:   "正しいJSON形式でリクエストしてください。",
	})
}

// writeAPIErrorResponse は統一エラーフォーマットでエラーレスポンスを書き込む。
func writeAPIErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	middleware.WriteErrorResponse(w, statusCode, apiErr)
}

// handleServiceError はサービス層から返されたエラーを適切なHTTPステータスコードに変換する。
func handleServiceError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		writeAPIErrorResponse(w, mapAPIErrorToHTTPStatus(apiErr), apiErr)
		return
	}

	// APIError以外のエラーは内部サーバーエラーとして扱う
	slog.Error("internal server error", slog.String("error", err.Error()))
	middleware.WriteInternalServerError(w)
}

// mapAPIErrorToHTTPStatus はAPIErrorコードからHTTPステータスコードにマッピングする。
func mapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeJobNotFound, model.ErrCodeMediaNotFound:
		return http.StatusNotFound
	case model.ErrCodeForbidden:
		return http.StatusForbidden
	case model.ErrCodeInvalidTransition:
		return http.StatusConflict
	case model.ErrCodeInvalidCursor, model.ErrCodeInvalidMode:
		return http.StatusBadRequest
	case model.ErrCodeValidation:
		return http.StatusUnprocessableEntity
	case model.ErrCodeStorageUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// timeFormat はAPIレスポンスのタイムスタンプ形式。
const timeFormat = "2006-01-02T15:04:05.000000Z07:00"
