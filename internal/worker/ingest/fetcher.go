// Package ingest は外部求人ボードからのバックグラウンド取り込みを提供する。
// スケジューラ、フェッチャー、バックオフ戦略を含む。
package ingest

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mmcdole/gofeed"
	"golang.org/x/net/html/charset"

	"github.com/dotrstudio/jobfeed/internal/metrics"
	"github.com/dotrstudio/jobfeed/internal/model"
	"github.com/dotrstudio/jobfeed/internal/repository"
	"github.com/dotrstudio/jobfeed/internal/security"
)

// Fetcher は個別取り込み元のHTTPフェッチとパースを行う。
// SSRF検証、gofeedによるパース、source_urlによる重複排除を経て
// 下書き状態の求人を作成する。公開は人間の操作に委ねる。
type Fetcher struct {
	jobRepo    repository.JobRepository
	sourceRepo repository.IngestSourceRepository
	sanitizer  security.DescriptionSanitizer
	guard      security.OutboundGuard
	collector  metrics.MetricsCollector
	logger     *slog.Logger

	timeout     time.Duration
	maxBodySize int64
	interval    time.Duration

	now   func() time.Time
	newID func() string
}

// NewFetcher はFetcherの新しいインスタンスを生成する。
// intervalは成功時の次回フェッチまでの間隔。
func NewFetcher(
	jobRepo repository.JobRepository,
	sourceRepo repository.IngestSourceRepository,
	sanitizer security.DescriptionSanitizer,
	guard security.OutboundGuard,
	collector metrics.MetricsCollector,
	logger *slog.Logger,
	timeout time.Duration,
	maxBodySize int64,
	interval time.Duration,
) *Fetcher {
	return &Fetcher{
		jobRepo:     jobRepo,
		sourceRepo:  sourceRepo,
		sanitizer:   sanitizer,
		guard:       guard,
		collector:   collector,
		logger:      logger,
		timeout:     timeout,
		maxBodySize: maxBodySize,
		interval:    interval,
		now:         time.Now,
		newID:       uuid.NewString,
	}
}

// Fetch は取り込み元をフェッチし、結果に応じて取り込み元の状態を更新する。
func (f *Fetcher) Fetch(ctx context.Context, src *model.IngestSource) error {
	start := f.now()

	// SSRF検証
	if err := f.guard.ValidateURL(src.FeedURL); err != nil {
		f.logger.Error("SSRF検証に失敗しました",
			slog.String("source_id", src.ID),
			slog.String("feed_url", src.FeedURL),
			slog.String("error", err.Error()),
		)
		ApplyStop(src, fmt.Sprintf("SSRF検証失敗: %s", err.Error()), f.now())
		f.recordFailure(ctx, src, "ssrf")
		return fmt.Errorf("SSRF検証に失敗: %w", err)
	}

	client := f.guard.NewSafeClient(f.timeout)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src.FeedURL, nil)
	if err != nil {
		return fmt.Errorf("リクエスト作成に失敗: %w", err)
	}
	req.Header.Set("User-Agent", "Jobfeed/1.0 Ingest Worker")
	req.Header.Set("Accept", "application/rss+xml, application/atom+xml, application/xml, text/xml, */*")

	resp, err := client.Do(req)
	if err != nil {
		f.logger.Error("HTTPリクエストに失敗しました",
			slog.String("source_id", src.ID),
			slog.String("feed_url", src.FeedURL),
			slog.String("error", err.Error()),
		)
		ApplyBackoff(src, fmt.Sprintf("HTTPリクエスト失敗: %s", err.Error()), f.now())
		f.recordFailure(ctx, src, "transport")
		return fmt.Errorf("HTTPリクエスト失敗: %w", err)
	}
	defer resp.Body.Close()

	switch ClassifyHTTPStatus(resp.StatusCode) {
	case FetchResultStop:
		// 404/410/401/403: 取り込み元が消滅または拒否。フェッチ停止。
		f.logger.Warn("取り込み元のフェッチを停止します",
			slog.String("source_id", src.ID),
			slog.String("feed_url", src.FeedURL),
			slog.Int("http_status", resp.StatusCode),
		)
		ApplyStop(src, stopReason(resp.StatusCode), f.now())
		f.recordFailure(ctx, src, "stopped")
		return nil

	case FetchResultBackoff, FetchResultUnknown:
		// 429/5xx/未知: バックオフ
		f.logger.Warn("取り込み元のフェッチにバックオフを適用します",
			slog.String("source_id", src.ID),
			slog.String("feed_url", src.FeedURL),
			slog.Int("http_status", resp.StatusCode),
			slog.Int("consecutive_errors", src.ConsecutiveErrors+1),
		)
		ApplyBackoff(src, fmt.Sprintf("HTTPステータス %d によりバックオフを適用しました", resp.StatusCode), f.now())
		f.recordFailure(ctx, src, "http_error")
		return nil

	case FetchResultOK:
		// 200: 以下で処理を続行
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBodySize))
	if err != nil {
		f.logger.Error("レスポンスボディの読み取りに失敗しました",
			slog.String("source_id", src.ID),
			slog.String("error", err.Error()),
		)
		ApplyBackoff(src, fmt.Sprintf("レスポンス読み取り失敗: %s", err.Error()), f.now())
		f.recordFailure(ctx, src, "read")
		return nil
	}

	// パートナーボードにはShift_JIS配信が残っているため、
	// Content-Typeの文字コード宣言に従ってUTF-8へ変換してからパースする。
	reader, err := charset.NewReader(bytes.NewReader(body), resp.Header.Get("Content-Type"))
	if err != nil {
		reader = bytes.NewReader(body)
	}

	parsed, err := gofeed.NewParser().Parse(reader)
	if err != nil {
		f.logger.Error("フィードのパースに失敗しました",
			slog.String("source_id", src.ID),
			slog.String("feed_url", src.FeedURL),
			slog.String("error", err.Error()),
		)
		ApplyBackoff(src, fmt.Sprintf("パース失敗: %s", err.Error()), f.now())
		f.recordFailure(ctx, src, "parse")
		return nil
	}

	created, skipped := f.importItems(ctx, src, parsed.Items)

	ApplySuccess(src, f.interval, f.now())
	if err := f.sourceRepo.UpdateFetchState(ctx, src); err != nil {
		f.logger.Error("取り込み元状態の更新に失敗しました",
			slog.String("source_id", src.ID),
			slog.String("error", err.Error()),
		)
		return err
	}

	f.collector.RecordIngestSuccess(src.ID)
	f.logger.Info("取り込みが完了しました",
		slog.String("source_id", src.ID),
		slog.String("feed_url", src.FeedURL),
		slog.Int("jobs_created", created),
		slog.Int("items_skipped", skipped),
		slog.Int("items_total", len(parsed.Items)),
		slog.Float64("duration_ms", float64(f.now().Sub(start).Milliseconds())),
	)

	return nil
}

// importItems はパース済みの記事から下書き求人を作成する。
// 戻り値は（作成件数, スキップ件数）。
func (f *Fetcher) importItems(ctx context.Context, src *model.IngestSource, items []*gofeed.Item) (int, int) {
	created, skipped := 0, 0

	for _, item := range items {
		if item == nil {
			continue
		}

		sourceURL := itemSourceURL(item)
		title := strings.TrimSpace(item.Title)
		if sourceURL == "" || title == "" {
			skipped++
			continue
		}

		// source_urlによる重複排除。既に取り込み済みの記事は再作成しない。
		existing, err := f.jobRepo.FindBySourceURL(ctx, sourceURL)
		if err != nil {
			f.logger.Error("重複確認に失敗しました",
				slog.String("source_id", src.ID),
				slog.String("source_url", sourceURL),
				slog.String("error", err.Error()),
			)
			skipped++
			continue
		}
		if existing != nil {
			skipped++
			continue
		}

		now := f.now()
		draft := &model.Job{
			ID:          f.newID(),
			Title:       title,
			Description: f.sanitizer.Sanitize(itemDescription(item)),
			Category:    itemCategory(item),
			PosterID:    src.EmployerID,
			PosterType:  model.PosterTypeEmployer,
			Status:      model.JobStatusDraft,
			SourceURL:   sourceURL,
			CreatedAt:   now,
			UpdatedAt:   now,
		}

		if err := f.jobRepo.Create(ctx, draft); err != nil {
			f.logger.Error("下書き求人の作成に失敗しました",
				slog.String("source_id", src.ID),
				slog.String("source_url", sourceURL),
				slog.String("error", err.Error()),
			)
			skipped++
			continue
		}
		created++
	}

	return created, skipped
}

// recordFailure は失敗した取り込み元の状態を保存し、メトリクスに記録する。
func (f *Fetcher) recordFailure(ctx context.Context, src *model.IngestSource, reason string) {
	f.collector.RecordIngestFailure(src.ID, reason)
	if err := f.sourceRepo.UpdateFetchState(ctx, src); err != nil {
		f.logger.Error("取り込み元状態の更新に失敗しました",
			slog.String("source_id", src.ID),
			slog.String("error", err.Error()),
		)
	}
}

// itemSourceURL は記事の取り込み元URLを決定する。
// LinkがなくGUIDがURL形式の場合はGUIDを使用する。
func itemSourceURL(item *gofeed.Item) string {
	if item.Link != "" {
		return item.Link
	}
	if strings.HasPrefix(item.GUID, "http://") || strings.HasPrefix(item.GUID, "https://") {
		return item.GUID
	}
	return ""
}

// itemDescription は記事本文を決定する。Contentが空の場合はDescriptionを使用する。
func itemDescription(item *gofeed.Item) string {
	if item.Content != "" {
		return item.Content
	}
	return item.Description
}

// itemCategory は記事の先頭カテゴリを返す。
func itemCategory(item *gofeed.Item) string {
	for _, c := range item.Categories {
		if trimmed := strings.TrimSpace(c); trimmed != "" {
			return trimmed
		}
	}
	return ""
}
