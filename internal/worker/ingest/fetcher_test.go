package ingest

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/dotrstudio/jobfeed/internal/metrics"
	"github.com/dotrstudio/jobfeed/internal/model"
	"github.com/dotrstudio/jobfeed/internal/repository"
	"github.com/dotrstudio/jobfeed/internal/security"
)

// mockJobRepo はJobRepositoryのテスト用モック。
type mockJobRepo struct {
	createFn          func(ctx context.Context, job *model.Job) error
	findBySourceURLFn func(ctx context.Context, sourceURL string) (*model.Job, error)
}

func (m *mockJobRepo) Create(ctx context.Context, job *model.Job) error {
	if m.createFn != nil {
		return m.createFn(ctx, job)
	}
	return nil
}

func (m *mockJobRepo) FindByID(_ context.Context, _ string) (*model.Job, error) {
	return nil, nil
}

func (m *mockJobRepo) FindBySourceURL(ctx context.Context, sourceURL string) (*model.Job, error) {
	if m.findBySourceURLFn != nil {
		return m.findBySourceURLFn(ctx, sourceURL)
	}
	return nil, nil
}

func (m *mockJobRepo) Update(_ context.Context, _ *model.Job) error {
	return nil
}

func (m *mockJobRepo) UpdateStatus(_ context.Context, _ string, _, _ model.JobStatus, _ time.Time) (bool, error) {
	return false, nil
}

func (m *mockJobRepo) ListFeed(_ context.Context, _ repository.FeedQuery) ([]*model.Job, error) {
	return nil, nil
}

func (m *mockJobRepo) ListCategories(_ context.Context) ([]string, error) {
	return nil, nil
}

// mockSourceRepo はIngestSourceRepositoryのテスト用モック。
type mockSourceRepo struct {
	listDueForFetchFn  func(ctx context.Context) ([]*model.IngestSource, error)
	updateFetchStateFn func(ctx context.Context, src *model.IngestSource) error
}

func (m *mockSourceRepo) ListDueForFetch(ctx context.Context) ([]*model.IngestSource, error) {
	if m.listDueForFetchFn != nil {
		return m.listDueForFetchFn(ctx)
	}
	return nil, nil
}

func (m *mockSourceRepo) UpdateFetchState(ctx context.Context, src *model.IngestSource) error {
	if m.updateFetchStateFn != nil {
		return m.updateFetchStateFn(ctx, src)
	}
	return nil
}

// mockGuard はOutboundGuardのテスト用モック。
// テストサーバーはループバックで動くため、素のクライアントを返す。
type mockGuard struct {
	validateErr error
}

func (m *mockGuard) NewSafeClient(timeout time.Duration) *http.Client {
	return &http.Client{Timeout: timeout}
}

func (m *mockGuard) ValidateURL(_ string) error {
	return m.validateErr
}

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func newTestFetcher(jobs *mockJobRepo, sources *mockSourceRepo, guard *mockGuard) *Fetcher {
	f := NewFetcher(
		jobs,
		sources,
		security.NewDescriptionSanitizer(),
		guard,
		metrics.NewCollector(prometheus.NewRegistry()),
		newTestLogger(),
		10*time.Second,
		5*1024*1024,
		30*time.Minute,
	)
	f.newID = func() string { return "ingested-job-id" }
	return f
}

const sampleRSS = `<?xml version="1.0"?>
<rss version="2.0">
  <channel>
    <title>Partner Job Board</title>
    <item>
      <title>フォークリフトオペレーター</title>
      <link>https://jobs.example.com/postings/42</link>
      <guid>guid-42</guid>
      <category>logistics</category>
      <description>&lt;p&gt;経験者歓迎&lt;/p&gt;&lt;script&gt;alert(1)&lt;/script&gt;</description>
    </item>
    <item>
      <title>既存の求人</title>
      <link>https://jobs.example.com/postings/1</link>
      <guid>guid-1</guid>
      <description>取り込み済み</description>
    </item>
  </channel>
</rss>`

func activeSource(feedURL string) *model.IngestSource {
	return &model.IngestSource{
		ID:          "src-1",
		Name:        "パートナー求人ボード",
		FeedURL:     feedURL,
		EmployerID:  "employer-9",
		FetchStatus: model.IngestFetchStatusActive,
	}
}

func TestFetcher_Fetch_CreatesDraftJobs(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		fmt.Fprint(w, sampleRSS)
	}))
	defer server.Close()

	var created []*model.Job
	jobs := &mockJobRepo{
		createFn: func(ctx context.Context, job *model.Job) error {
			created = append(created, job)
			return nil
		},
		findBySourceURLFn: func(ctx context.Context, sourceURL string) (*model.Job, error) {
			// 2件目は取り込み済み
			if sourceURL == "https://jobs.example.com/postings/1" {
				return &model.Job{ID: "existing"}, nil
			}
			return nil, nil
		},
	}

	updateCalled := false
	sources := &mockSourceRepo{
		updateFetchStateFn: func(ctx context.Context, src *model.IngestSource) error {
			updateCalled = true
			return nil
		},
	}

	f := newTestFetcher(jobs, sources, &mockGuard{})
	src := activeSource(server.URL)

	if err := f.Fetch(context.Background(), src); err != nil {
		t.Fatalf("Fetch returned error: %v", err)
	}

	if len(created) != 1 {
		t.Fatalf("len(created) = %d, want 1", len(created))
	}
	job := created[0]
	if job.Status != model.JobStatusDraft {
		t.Errorf("Status = %q, want %q", job.Status, model.JobStatusDraft)
	}
	if job.PosterID != "employer-9" {
		t.Errorf("PosterID = %q, want %q", job.PosterID, "employer-9")
	}
	if job.PosterType != model.PosterTypeEmployer {
		t.Errorf("PosterType = %q, want %q", job.PosterType, model.PosterTypeEmployer)
	}
	if job.SourceURL != "https://jobs.example.com/postings/42" {
		t.Errorf("SourceURL = %q", job.SourceURL)
	}
	if job.Category != "logistics" {
		t.Errorf("Category = %q, want %q", job.Category, "logistics")
	}
	// 説明文はサニタイズされてscriptタグが除去されること
	if job.Description == "" {
		t.Error("expected sanitized description")
	}
	for _, bad := range []string{"<script>", "alert(1)"} {
		if strings.Contains(job.Description, bad) {
			t.Errorf("Description contains %q: %s", bad, job.Description)
		}
	}

	if !updateCalled {
		t.Error("expected UpdateFetchState to be called")
	}
	if src.ConsecutiveErrors != 0 {
		t.Errorf("ConsecutiveErrors = %d, want 0", src.ConsecutiveErrors)
	}
	if src.NextFetchAt.IsZero() {
		t.Error("expected NextFetchAt to be set")
	}
}

func TestFetcher_Fetch_Gone_StopsSource(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusGone)
	}))
	defer server.Close()

	var saved *model.IngestSource
	sources := &mockSourceRepo{
		updateFetchStateFn: func(ctx context.Context, src *model.IngestSource) error {
			saved = src
			return nil
		},
	}

	f := newTestFetcher(&mockJobRepo{}, sources, &mockGuard{})
	src := activeSource(server.URL)

	if err := f.Fetch(context.Background(), src); err != nil {
		t.Fatalf("Fetch returned error: %v", err)
	}

	if saved == nil {
		t.Fatal("expected UpdateFetchState to be called")
	}
	if saved.FetchStatus != model.IngestFetchStatusStopped {
		t.Errorf("FetchStatus = %q, want %q", saved.FetchStatus, model.IngestFetchStatusStopped)
	}
}

func TestFetcher_Fetch_ServerError_AppliesBackoff(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	sources := &mockSourceRepo{}
	f := newTestFetcher(&mockJobRepo{}, sources, &mockGuard{})
	src := activeSource(server.URL)

	if err := f.Fetch(context.Background(), src); err != nil {
		t.Fatalf("Fetch returned error: %v", err)
	}

	if src.ConsecutiveErrors != 1 {
		t.Errorf("ConsecutiveErrors = %d, want 1", src.ConsecutiveErrors)
	}
	if src.FetchStatus != model.IngestFetchStatusActive {
		t.Errorf("FetchStatus = %q, want %q", src.FetchStatus, model.IngestFetchStatusActive)
	}
	if src.NextFetchAt.IsZero() {
		t.Error("expected NextFetchAt to be pushed back")
	}
}

func TestFetcher_Fetch_SSRFBlocked_StopsSource(t *testing.T) {
	sources := &mockSourceRepo{}
	guard := &mockGuard{validateErr: fmt.Errorf("blocked IP address: 169.254.169.254")}
	f := newTestFetcher(&mockJobRepo{}, sources, guard)
	src := activeSource("http://169.254.169.254/latest/meta-data")

	err := f.Fetch(context.Background(), src)
	if err == nil {
		t.Fatal("expected error for SSRF-blocked URL")
	}
	if src.FetchStatus != model.IngestFetchStatusStopped {
		t.Errorf("FetchStatus = %q, want %q", src.FetchStatus, model.IngestFetchStatusStopped)
	}
}

func TestFetcher_Fetch_ParseFailure_AppliesBackoff(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "this is not xml")
	}))
	defer server.Close()

	f := newTestFetcher(&mockJobRepo{}, &mockSourceRepo{}, &mockGuard{})
	src := activeSource(server.URL)

	if err := f.Fetch(context.Background(), src); err != nil {
		t.Fatalf("Fetch returned error: %v", err)
	}

	if src.ConsecutiveErrors != 1 {
		t.Errorf("ConsecutiveErrors = %d, want 1", src.ConsecutiveErrors)
	}
}

func TestFetcher_Fetch_SkipsItemsWithoutLinkOrTitle(t *testing.T) {
	rss := `<?xml version="1.0"?>
<rss version="2.0">
  <channel>
    <title>Partner Job Board</title>
    <item>
      <title>リンクなし求人</title>
      <guid>not-a-url</guid>
    </item>
    <item>
      <title></title>
      <link>https://jobs.example.com/postings/7</link>
    </item>
  </channel>
</rss>`
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, rss)
	}))
	defer server.Close()

	createCount := 0
	jobs := &mockJobRepo{
		createFn: func(ctx context.Context, job *model.Job) error {
			createCount++
			return nil
		},
	}

	f := newTestFetcher(jobs, &mockSourceRepo{}, &mockGuard{})

	if err := f.Fetch(context.Background(), activeSource(server.URL)); err != nil {
		t.Fatalf("Fetch returned error: %v", err)
	}

	if createCount != 0 {
		t.Errorf("createCount = %d, want 0", createCount)
	}
}
