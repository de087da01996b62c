package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/dotrstudio/jobfeed/internal/job"
	"github.com/dotrstudio/jobfeed/internal/metrics"
	"github.com/dotrstudio/jobfeed/internal/middleware"
	"github.com/dotrstudio/jobfeed/internal/model"
)

// --- モック定義 ---

// mockJobService はJobServiceInterfaceのモック実装。
type mockJobService struct {
	createFn  func(ctx context.Context, actor model.Actor, in job.CreateInput) (*model.Job, error)
	getFn     func(ctx context.Context, actor model.Actor, id string) (*model.Job, error)
	updateFn  func(ctx context.Context, actor model.Actor, id string, in job.UpdateInput) (*model.Job, error)
	publishFn func(ctx context.Context, actor model.Actor, id string) (*model.Job, error)
	closeFn   func(ctx context.Context, actor model.Actor, id string) (*model.Job, error)
}

func (m *mockJobService) Create(ctx context.Context, actor model.Actor, in job.CreateInput) (*model.Job, error) {
	if m.createFn != nil {
		return m.createFn(ctx, actor, in)
	}
	return nil, nil
}

func (m *mockJobService) Get(ctx context.Context, actor model.Actor, id string) (*model.Job, error) {
	if m.getFn != nil {
		return m.getFn(ctx, actor, id)
	}
	return nil, nil
}

func (m *mockJobService) Update(ctx context.Context, actor model.Actor, id string, in job.UpdateInput) (*model.Job, error) {
	if m.updateFn != nil {
		return m.updateFn(ctx, actor, id, in)
	}
	return nil, nil
}

func (m *mockJobService) Publish(ctx context.Context, actor model.Actor, id string) (*model.Job, error) {
	if m.publishFn != nil {
		return m.publishFn(ctx, actor, id)
	}
	return nil, nil
}

func (m *mockJobService) Close(ctx context.Context, actor model.Actor, id string) (*model.Job, error) {
	if m.closeFn != nil {
		return m.closeFn(ctx, actor, id)
	}
	return nil, nil
}

// --- テストヘルパー ---

// withActor はテスト用にリクエストコンテキストにアクターを注入するヘルパー。
func withActor(r *http.Request, id string, role model.ActorRole) *http.Request {
	ctx := middleware.ContextWithActor(r.Context(), model.Actor{ID: id, Role: role})
	return r.WithContext(ctx)
}

// withChiURLParam はテスト用にchiのURLパラメータを注入するヘルパー。
func withChiURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.RouteContext(r.Context())
	if rctx == nil {
		rctx = chi.NewRouteContext()
		r = r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
	}
	rctx.URLParams.Add(key, value)
	return r
}

// parseAPIErrorResponse はレスポンスボディからAPIErrorレスポンスをパースするヘルパー。
func parseAPIErrorResponse(t *testing.T, w *httptest.ResponseRecorder) map[string]string {
	t.Helper()
	var result map[string]string
	if err := json.NewDecoder(w.Body).Decode(&result); err != nil {
		t.Fatalf("failed to decode error response: %v", err)
	}
	return result
}

// newTestCollector はテスト専用レジストリを持つメトリクスコレクターを生成するヘルパー。
func newTestCollector(t *testing.T) *metrics.Collector {
	t.Helper()
	return metrics.NewCollector(prometheus.NewRegistry())
}

func sampleJob(id string, status model.JobStatus) *model.Job {
	created := time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)
	return &model.Job{
		ID:          id,
		Title:       "倉庫内ピッキングスタッフ",
		Description: "<p>週3日から勤務可能です。</p>",
		Category:    "logistics",
		PosterID:    "employer-1",
		PosterType:  model.PosterTypeEmployer,
		Status:      status,
		CreatedAt:   created,
		UpdatedAt:   created,
	}
}

// --- POST /jobs テスト ---

func TestJobHandler_CreateJob_Success(t *testing.T) {
	svc := &mockJobService{
		createFn: func(ctx context.Context, actor model.Actor, in job.CreateInput) (*model.Job, error) {
			if actor.ID != "employer-1" {
				t.Errorf("actor.ID = %q, want %q", actor.ID, "employer-1")
			}
			if in.Title != "倉庫内ピッキングスタッフ" {
				t.Errorf("Title = %q, want %q", in.Title, "倉庫内ピッキングスタッフ")
			}
			return sampleJob("job-1", model.JobStatusDraft), nil
		},
	}

	h := NewJobHandler(svc, newTestCollector(t))

	body := `{"title": "倉庫内ピッキングスタッフ", "description": "desc", "category": "logistics"}`
	req := httptest.NewRequest(http.MethodPost, "/jobs", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	req = withActor(req, "employer-1", model.RoleEmployer)
	w := httptest.NewRecorder()

	h.CreateJob(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusCreated {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusCreated)
	}

	var result map[string]string
	if err := json.NewDecoder(w.Body).Decode(&result); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if result["jobId"] != "job-1" {
		t.Errorf("jobId = %q, want %q", result["jobId"], "job-1")
	}
}

func TestJobHandler_CreateJob_InvalidJSON_ReturnsBadRequest(t *testing.T) {
	h := NewJobHandler(&mockJobService{}, newTestCollector(t))

	req := httptest.NewRequest(http.MethodPost, "/jobs", bytes.NewBufferString(`{invalid`))
	req.Header.Set("Content-Type", "application/json")
	req = withActor(req, "employer-1", model.RoleEmployer)
	w := httptest.NewRecorder()

	h.CreateJob(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusBadRequest)
	}
}

func TestJobHandler_CreateJob_NoActor_ReturnsUnauthorized(t *testing.T) {
	h := NewJobHandler(&mockJobService{}, newTestCollector(t))

	body := `{"title": "t"}`
	req := httptest.NewRequest(http.MethodPost, "/jobs", bytes.NewBufferString(body))
	// アクターを注入しない
	w := httptest.NewRecorder()

	h.CreateJob(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusUnauthorized)
	}
}

func TestJobHandler_CreateJob_ValidationError_ReturnsUnprocessableEntity(t *testing.T) {
	svc := &mockJobService{
		createFn: func(ctx context.Context, actor model.Actor, in job.CreateInput) (*model.Job, error) {
			return nil, model.NewValidationError("タイトルは必須です")
		},
	}

	h := NewJobHandler(svc, newTestCollector(t))

	body := `{"title": ""}`
	req := httptest.NewRequest(http.MethodPost, "/jobs", bytes.NewBufferString(body))
	req = withActor(req, "employer-1", model.RoleEmployer)
	w := httptest.NewRecorder()

	h.CreateJob(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusUnprocessableEntity)
	}

	errResp := parseAPIErrorResponse(t, w)
	if errResp["code"] != model.ErrCodeValidation {
		t.Errorf("code = %q, want %q", errResp["code"], model.ErrCodeValidation)
	}
}

func TestJobHandler_CreateJob_Forbidden_ReturnsForbidden(t *testing.T) {
	svc := &mockJobService{
		createFn: func(ctx context.Context, actor model.Actor, in job.CreateInput) (*model.Job, error) {
			return nil, model.NewForbiddenError("求職者アカウントでは求人を投稿できません")
		},
	}

	h := NewJobHandler(svc, newTestCollector(t))

	body := `{"title": "t"}`
	req := httptest.NewRequest(http.MethodPost, "/jobs", bytes.NewBufferString(body))
	req = withActor(req, "seeker-1", model.RoleSeeker)
	w := httptest.NewRecorder()

	h.CreateJob(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusForbidden)
	}
}

// --- GET /jobs/:id テスト ---

func TestJobHandler_GetJob_Success(t *testing.T) {
	svc := &mockJobService{
		getFn: func(ctx context.Context, actor model.Actor, id string) (*model.Job, error) {
			if id != "job-1" {
				t.Errorf("id = %q, want %q", id, "job-1")
			}
			return sampleJob("job-1", model.JobStatusActive), nil
		},
	}

	h := NewJobHandler(svc, newTestCollector(t))

	req := httptest.NewRequest(http.MethodGet, "/jobs/job-1", nil)
	req = withActor(req, "seeker-1", model.RoleSeeker)
	req = withChiURLParam(req, "id", "job-1")
	w := httptest.NewRecorder()

	h.GetJob(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	var result map[string]interface{}
	if err := json.NewDecoder(w.Body).Decode(&result); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if result["id"] != "job-1" {
		t.Errorf("id = %v, want %q", result["id"], "job-1")
	}
	if result["status"] != "active" {
		t.Errorf("status = %v, want %q", result["status"], "active")
	}
	if result["createdAt"] != "2026-08-01T09:00:00.000000Z" {
		t.Errorf("createdAt = %v, want %q", result["createdAt"], "2026-08-01T09:00:00.000000Z")
	}
}

func TestJobHandler_GetJob_NotFound(t *testing.T) {
	svc := &mockJobService{
		getFn: func(ctx context.Context, actor model.Actor, id string) (*model.Job, error) {
			return nil, model.NewJobNotFoundError(id)
		},
	}

	h := NewJobHandler(svc, newTestCollector(t))

	req := httptest.NewRequest(http.MethodGet, "/jobs/nonexistent", nil)
	req = withActor(req, "seeker-1", model.RoleSeeker)
	req = withChiURLParam(req, "id", "nonexistent")
	w := httptest.NewRecorder()

	h.GetJob(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusNotFound)
	}

	errResp := parseAPIErrorResponse(t, w)
	if errResp["code"] != model.ErrCodeJobNotFound {
		t.Errorf("code = %q, want %q", errResp["code"], model.ErrCodeJobNotFound)
	}
}

func TestJobHandler_GetJob_ServiceError_ReturnsInternalServerError(t *testing.T) {
	svc := &mockJobService{
		getFn: func(ctx context.Context, actor model.Actor, id string) (*model.Job, error) {
			return nil, errors.New("database error")
		},
	}

	h := NewJobHandler(svc, newTestCollector(t))

	req := httptest.NewRequest(http.MethodGet, "/jobs/job-1", nil)
	req = withActor(req, "seeker-1", model.RoleSeeker)
	req = withChiURLParam(req, "id", "job-1")
	w := httptest.NewRecorder()

	h.GetJob(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusInternalServerError)
	}
}

// --- PATCH /jobs/:id テスト ---

func TestJobHandler_UpdateJob_Success(t *testing.T) {
	svc := &mockJobService{
		updateFn: func(ctx context.Context, actor model.Actor, id string, in job.UpdateInput) (*model.Job, error) {
			if in.Title == nil || *in.Title != "新しいタイトル" {
				t.Errorf("Title = %v, want %q", in.Title, "新しいタイトル")
			}
			if in.Description != nil {
				t.Errorf("Description = %v, want nil", in.Description)
			}
			updated := sampleJob(id, model.JobStatusActive)
			updated.Title = *in.Title
			return updated, nil
		},
	}

	h := NewJobHandler(svc, newTestCollector(t))

	body := `{"title": "新しいタイトル"}`
	req := httptest.NewRequest(http.MethodPatch, "/jobs/job-1", bytes.NewBufferString(body))
	req = withActor(req, "employer-1", model.RoleEmployer)
	req = withChiURLParam(req, "id", "job-1")
	w := httptest.NewRecorder()

	h.UpdateJob(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	var result map[string]interface{}
	if err := json.NewDecoder(w.Body).Decode(&result); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if result["title"] != "新しいタイトル" {
		t.Errorf("title = %v, want %q", result["title"], "新しいタイトル")
	}
}

func TestJobHandler_UpdateJob_Forbidden_ReturnsForbidden(t *testing.T) {
	svc := &mockJobService{
		updateFn: func(ctx context.Context, actor model.Actor, id string, in job.UpdateInput) (*model.Job, error) {
			return nil, model.NewForbiddenError("この求人を編集する権限がありません")
		},
	}

	h := NewJobHandler(svc, newTestCollector(t))

	body := `{"title": "t"}`
	req := httptest.NewRequest(http.MethodPatch, "/jobs/job-1", bytes.NewBufferString(body))
	req = withActor(req, "employer-2", model.RoleEmployer)
	req = withChiURLParam(req, "id", "job-1")
	w := httptest.NewRecorder()

	h.UpdateJob(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusForbidden)
	}
}

// --- POST /jobs/:id/publish, /close テスト ---

func TestJobHandler_PublishJob_Success(t *testing.T) {
	svc := &mockJobService{
		publishFn: func(ctx context.Context, actor model.Actor, id string) (*model.Job, error) {
			return sampleJob(id, model.JobStatusActive), nil
		},
	}

	h := NewJobHandler(svc, newTestCollector(t))

	req := httptest.NewRequest(http.MethodPost, "/jobs/job-1/publish", nil)
	req = withActor(req, "employer-1", model.RoleEmployer)
	req = withChiURLParam(req, "id", "job-1")
	w := httptest.NewRecorder()

	h.PublishJob(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	var result map[string]string
	if err := json.NewDecoder(w.Body).Decode(&result); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if result["status"] != "active" {
		t.Errorf("status = %q, want %q", result["status"], "active")
	}
}

func TestJobHandler_PublishJob_InvalidTransition_ReturnsConflict(t *testing.T) {
	svc := &mockJobService{
		publishFn: func(ctx context.Context, actor model.Actor, id string) (*model.Job, error) {
			return nil, model.NewInvalidTransitionError(model.JobStatusClosed, model.JobStatusActive)
		},
	}

	h := NewJobHandler(svc, newTestCollector(t))

	req := httptest.NewRequest(http.MethodPost, "/jobs/job-1/publish", nil)
	req = withActor(req, "employer-1", model.RoleEmployer)
	req = withChiURLParam(req, "id", "job-1")
	w := httptest.NewRecorder()

	h.PublishJob(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusConflict)
	}

	errResp := parseAPIErrorResponse(t, w)
	if errResp["code"] != model.ErrCodeInvalidTransition {
		t.Errorf("code = %q, want %q", errResp["code"], model.ErrCodeInvalidTransition)
	}
}

func TestJobHandler_CloseJob_Success(t *testing.T) {
	svc := &mockJobService{
		closeFn: func(ctx context.Context, actor model.Actor, id string) (*model.Job, error) {
			return sampleJob(id, model.JobStatusClosed), nil
		},
	}

	h := NewJobHandler(svc, newTestCollector(t))

	req := httptest.NewRequest(http.MethodPost, "/jobs/job-1/close", nil)
	req = withActor(req, "employer-1", model.RoleEmployer)
	req = withChiURLParam(req, "id", "job-1")
	w := httptest.NewRecorder()

	h.CloseJob(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	var result map[string]string
	if err := json.NewDecoder(w.Body).Decode(&result); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if result["status"] != "closed" {
		t.Errorf("status = %q, want %q", result["status"], "closed")
	}
}

// --- 統一エラーフォーマットのテスト ---

func TestJobHandler_ErrorResponse_ContainsAllFields(t *testing.T) {
	svc := &mockJobService{
		getFn: func(ctx context.Context, actor model.Actor, id string) (*model.Job, error) {
			return nil, model.NewJobNotFoundError(id)
		},
	}

	h := NewJobHandler(svc, newTestCollector(t))

	req := httptest.NewRequest(http.MethodGet, "/jobs/missing", nil)
	req = withActor(req, "seeker-1", model.RoleSeeker)
	req = withChiURLParam(req, "id", "missing")
	w := httptest.NewRecorder()

	h.GetJob(w, req)

	errResp := parseAPIErrorResponse(t, w)

	// 統一エラーフォーマット（code, message, category, action）の4フィールドを検証
	requiredFields := []string{"code", "message", "category", "action"}
	for _, field := range requiredFields {
		if errResp[field] == "" {
			t.Errorf("expected non-empty %q field in error response", field)
		}
	}
}
