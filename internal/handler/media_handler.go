package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dotrstudio/jobfeed/internal/metrics"
	"github.com/dotrstudio/jobfeed/internal/model"
)

// MediaServiceInterface はメディアハンドラーが必要とするサービスインターフェース。
type MediaServiceInterface interface {
	// ResolveForJob は求人の指定種別のメディアを署名付きURLに解決する。
	ResolveForJob(ctx context.Context, jobID string, kind model.MediaKind) (*string, error)
}

// MediaHandler はメディア参照解決のHTTPハンドラー。
type MediaHandler struct {
	service   MediaServiceInterface
	collector metrics.MetricsCollector
}

// NewMediaHandler はMediaHandlerを生成する。
func NewMediaHandler(service MediaServiceInterface, collector metrics.MetricsCollector) *MediaHandler {
	return &MediaHandler{
		service:   service,
		collector: collector,
	}
}

// mediaResponse はメディアURLのAPIレスポンス。
// オブジェクト欠損時はurlがnullになる。
type mediaResponse struct {
	URL *string `json:"url"`
}

// GetMedia はメディア参照の解決を処理する。
// GET /media/:jobId/:kind
func (h *MediaHandler) GetMedia(w http.ResponseWriter, r *http.Request) {
	kind, err := model.ParseMediaKind(chi.URLParam(r, "kind"))
	if err != nil {
		writeAPIErrorResponse(w, http.StatusNotFound,
			model.NewMediaNotFoundError(chi.URLParam(r, "jobId"), model.MediaKind(chi.URLParam(r, "kind"))))
		return
	}

	url, err := h.service.ResolveForJob(r.Context(), chi.URLParam(r, "jobId"), kind)
	if err != nil {
		h.collector.RecordMediaResolution(metrics.MediaOutcomeMiss)
		handleServiceError(w, err)
		return
	}

	if url == nil {
		h.collector.RecordMediaResolution(metrics.MediaOutcomeBroken)
	} else {
		h.collector.RecordMediaResolution(metrics.MediaOutcomeHit)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(mediaResponse{URL: url})
}
