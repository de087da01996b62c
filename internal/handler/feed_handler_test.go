package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dotrstudio/jobfeed/internal/feed"
	"github.com/dotrstudio/jobfeed/internal/model"
)

// mockFeedService はFeedServiceInterfaceのモック実装。
type mockFeedService struct {
	pageFn       func(ctx context.Context, req feed.PageRequest) (*model.FeedPage, error)
	categoriesFn func(ctx context.Context) ([]string, error)
}

func (m *mockFeedService) Page(ctx context.Context, req feed.PageRequest) (*model.FeedPage, error) {
	if m.pageFn != nil {
		return m.pageFn(ctx, req)
	}
	return &model.FeedPage{}, nil
}

func (m *mockFeedService) Categories(ctx context.Context) ([]string, error) {
	if m.categoriesFn != nil {
		return m.categoriesFn(ctx)
	}
	return nil, nil
}

// --- GET /feed テスト ---

func TestFeedHandler_GetFeed_Success(t *testing.T) {
	thumb := "https://media.example.com/thumb.jpg?exp=1&sig=abc"
	next := "next-cursor-token"
	svc := &mockFeedService{
		pageFn: func(ctx context.Context, req feed.PageRequest) (*model.FeedPage, error) {
			if req.Mode != model.FeedModeJob {
				t.Errorf("Mode = %q, want %q", req.Mode, model.FeedModeJob)
			}
			entry := model.FeedEntry{Job: *sampleJob("job-1", model.JobStatusActive)}
			entry.ThumbnailURL = &thumb
			return &model.FeedPage{
				Entries:    []model.FeedEntry{entry},
				NextCursor: &next,
			}, nil
		},
	}

	h := NewFeedHandler(svc, newTestCollector(t))

	req := httptest.NewRequest(http.MethodGet, "/feed?mode=job", nil)
	req = withActor(req, "seeker-1", model.RoleSeeker)
	w := httptest.NewRecorder()

	h.GetFeed(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	var result struct {
		Jobs []struct {
			ID           string  `json:"id"`
			ThumbnailURL *string `json:"thumbnailUrl"`
			VideoURL     *string `json:"videoUrl"`
		} `json:"jobs"`
		NextCursor *string `json:"nextCursor"`
	}
	if err := json.NewDecoder(w.Body).Decode(&result); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(result.Jobs) != 1 {
		t.Fatalf("len(jobs) = %d, want 1", len(result.Jobs))
	}
	if result.Jobs[0].ID != "job-1" {
		t.Errorf("jobs[0].id = %q, want %q", result.Jobs[0].ID, "job-1")
	}
	if result.Jobs[0].ThumbnailURL == nil || *result.Jobs[0].ThumbnailURL != thumb {
		t.Errorf("jobs[0].thumbnailUrl = %v, want %q", result.Jobs[0].ThumbnailURL, thumb)
	}
	if result.Jobs[0].VideoURL != nil {
		t.Errorf("jobs[0].videoUrl = %v, want null", result.Jobs[0].VideoURL)
	}
	if result.NextCursor == nil || *result.NextCursor != next {
		t.Errorf("nextCursor = %v, want %q", result.NextCursor, next)
	}
}

func TestFeedHandler_GetFeed_UnknownMode_ReturnsBadRequest(t *testing.T) {
	h := NewFeedHandler(&mockFeedService{}, newTestCollector(t))

	req := httptest.NewRequest(http.MethodGet, "/feed?mode=trending", nil)
	req = withActor(req, "seeker-1", model.RoleSeeker)
	w := httptest.NewRecorder()

	h.GetFeed(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusBadRequest)
	}

	errResp := parseAPIErrorResponse(t, w)
	if errResp["code"] != model.ErrCodeInvalidMode {
		t.Errorf("code = %q, want %q", errResp["code"], model.ErrCodeInvalidMode)
	}
}

func TestFeedHandler_GetFeed_NonNumericPageSize_ReturnsUnprocessableEntity(t *testing.T) {
	h := NewFeedHandler(&mockFeedService{}, newTestCollector(t))

	req := httptest.NewRequest(http.MethodGet, "/feed?mode=job&pageSize=many", nil)
	req = withActor(req, "seeker-1", model.RoleSeeker)
	w := httptest.NewRecorder()

	h.GetFeed(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusUnprocessableEntity)
	}
}

func TestFeedHandler_GetFeed_SavedMode_BindsActorUserID(t *testing.T) {
	svc := &mockFeedService{
		pageFn: func(ctx context.Context, req feed.PageRequest) (*model.FeedPage, error) {
			if req.UserID != "seeker-1" {
				t.Errorf("UserID = %q, want %q", req.UserID, "seeker-1")
			}
			return &model.FeedPage{}, nil
		},
	}

	h := NewFeedHandler(svc, newTestCollector(t))

	// userIdを指定しない場合は認証済みアクター本人にバインドされる
	req := httptest.NewRequest(http.MethodGet, "/feed?mode=saved", nil)
	req = withActor(req, "seeker-1", model.RoleSeeker)
	w := httptest.NewRecorder()

	h.GetFeed(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
}

func TestFeedHandler_GetFeed_OtherUserID_ReturnsForbidden(t *testing.T) {
	h := NewFeedHandler(&mockFeedService{}, newTestCollector(t))

	req := httptest.NewRequest(http.MethodGet, "/feed?mode=saved&userId=seeker-2", nil)
	req = withActor(req, "seeker-1", model.RoleSeeker)
	w := httptest.NewRecorder()

	h.GetFeed(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusForbidden)
	}
}

func TestFeedHandler_GetFeed_AdminCanQueryOtherUser(t *testing.T) {
	svc := &mockFeedService{
		pageFn: func(ctx context.Context, req feed.PageRequest) (*model.FeedPage, error) {
			if req.UserID != "seeker-2" {
				t.Errorf("UserID = %q, want %q", req.UserID, "seeker-2")
			}
			return &model.FeedPage{}, nil
		},
	}

	h := NewFeedHandler(svc, newTestCollector(t))

	req := httptest.NewRequest(http.MethodGet, "/feed?mode=saved&userId=seeker-2", nil)
	req = withActor(req, "admin-1", model.RoleAdmin)
	w := httptest.NewRecorder()

	h.GetFeed(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
}

func TestFeedHandler_GetFeed_InvalidCursor_ReturnsBadRequest(t *testing.T) {
	svc := &mockFeedService{
		pageFn: func(ctx context.Context, req feed.PageRequest) (*model.FeedPage, error) {
			return nil, model.NewInvalidCursorError("署名が一致しません")
		},
	}

	h := NewFeedHandler(svc, newTestCollector(t))

	req := httptest.NewRequest(http.MethodGet, "/feed?mode=job&cursor=tampered", nil)
	req = withActor(req, "seeker-1", model.RoleSeeker)
	w := httptest.NewRecorder()

	h.GetFeed(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusBadRequest)
	}

	errResp := parseAPIErrorResponse(t, w)
	if errResp["code"] != model.ErrCodeInvalidCursor {
		t.Errorf("code = %q, want %q", errResp["code"], model.ErrCodeInvalidCursor)
	}
}

func TestFeedHandler_GetFeed_FiltersPassedThrough(t *testing.T) {
	svc := &mockFeedService{
		pageFn: func(ctx context.Context, req feed.PageRequest) (*model.FeedPage, error) {
			if req.Filters.Category != "logistics" {
				t.Errorf("Category = %q, want %q", req.Filters.Category, "logistics")
			}
			if req.Filters.PosterID != "employer-1" {
				t.Errorf("PosterID = %q, want %q", req.Filters.PosterID, "employer-1")
			}
			if req.PageSize != 10 {
				t.Errorf("PageSize = %d, want 10", req.PageSize)
			}
			return &model.FeedPage{}, nil
		},
	}

	h := NewFeedHandler(svc, newTestCollector(t))

	req := httptest.NewRequest(http.MethodGet, "/feed?mode=job&category=logistics&posterId=employer-1&pageSize=10", nil)
	req = withActor(req, "seeker-1", model.RoleSeeker)
	w := httptest.NewRecorder()

	h.GetFeed(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
}

func TestFeedHandler_GetFeed_ServiceError_ReturnsInternalServerError(t *testing.T) {
	svc := &mockFeedService{
		pageFn: func(ctx context.Context, req feed.PageRequest) (*model.FeedPage, error) {
			return nil, errors.New("database error")
		},
	}

	h := NewFeedHandler(svc, newTestCollector(t))

	req := httptest.NewRequest(http.MethodGet, "/feed?mode=job", nil)
	req = withActor(req, "seeker-1", model.RoleSeeker)
	w := httptest.NewRecorder()

	h.GetFeed(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusInternalServerError)
	}
}

// --- GET /categories テスト ---

func TestFeedHandler_GetCategories_Success(t *testing.T) {
	svc := &mockFeedService{
		categoriesFn: func(ctx context.Context) ([]string, error) {
			return []string{"logistics", "retail"}, nil
		},
	}

	h := NewFeedHandler(svc, newTestCollector(t))

	req := httptest.NewRequest(http.MethodGet, "/categories", nil)
	req = withActor(req, "seeker-1", model.RoleSeeker)
	w := httptest.NewRecorder()

	h.GetCategories(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	var result map[string][]string
	if err := json.NewDecoder(w.Body).Decode(&result); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(result["categories"]) != 2 {
		t.Errorf("len(categories) = %d, want 2", len(result["categories"]))
	}
}

func TestFeedHandler_GetCategories_Empty_ReturnsEmptyArray(t *testing.T) {
	h := NewFeedHandler(&mockFeedService{}, newTestCollector(t))

	req := httptest.NewRequest(http.MethodGet, "/categories", nil)
	req = withActor(req, "seeker-1", model.RoleSeeker)
	w := httptest.NewRecorder()

	h.GetCategories(w, req)

	// nilスライスでもJSONではnullではなく[]になること
	body := w.Body.String()
	if body == "" {
		t.Fatal("expected response body")
	}
	var result map[string][]string
	if err := json.Unmarshal([]byte(body), &result); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if result["categories"] == nil {
		t.Error("categories = null, want []")
	}
}
