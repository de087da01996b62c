package ingest

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/dotrstudio/jobfeed/internal/model"
	"github.com/dotrstudio/jobfeed/internal/repository"
)

// SourceFetcher は取り込み元フェッチの実行インターフェース。
type SourceFetcher interface {
	// Fetch は指定取り込み元をフェッチし、結果に応じて状態を更新する。
	Fetch(ctx context.Context, src *model.IngestSource) error
}

// Scheduler は取り込み元フェッチのスケジューリングと並列制御を行う。
// ティッカーでフェッチ対象取り込み元を取得し、semaphoreパターンで
// 最大並列数を制御しながらフェッチを実行する。
type Scheduler struct {
	sourceRepo     repository.IngestSourceRepository
	fetcher        SourceFetcher
	logger         *slog.Logger
	maxConcurrency int
}

// NewScheduler はSchedulerの新しいインスタンスを生成する。
// maxConcurrencyが0以下の場合はデフォルト値5を使用する。
func NewScheduler(
	sourceRepo repository.IngestSourceRepository,
	fetcher SourceFetcher,
	logger *slog.Logger,
	maxConcurrency int,
) *Scheduler {
	if maxConcurrency <= 0 {
		maxConcurrency = 5
	}
	return &Scheduler{
		sourceRepo:     sourceRepo,
		fetcher:        fetcher,
		logger:         logger,
		maxConcurrency: maxConcurrency,
	}
}

// Start は指定間隔のティッカーでスケジューラを起動する。
// コンテキストがキャンセルされるまで実行を継続する。
func (s *Scheduler) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Info("取り込みスケジューラを開始しました",
		slog.Duration("interval", interval),
		slog.Int("max_concurrency", s.maxConcurrency),
	)

	// 起動直後に1回実行
	if err := s.RunOnce(ctx); err != nil {
		s.logger.Error("取り込みサイクルの実行に失敗しました",
			slog.String("error", err.Error()),
		)
	}

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("取り込みスケジューラを停止しました")
			return
		case <-ticker.C:
			if err := s.RunOnce(ctx); err != nil {
				s.logger.Error("取り込みサイクルの実行に失敗しました",
					slog.String("error", err.Error()),
				)
			}
		}
	}
}

// RunOnce はフェッチ対象取り込み元を1回取得し、並列でフェッチを実行する。
func (s *Scheduler) RunOnce(ctx context.Context) error {
	start := time.Now()

	// フェッチ対象を取得（FOR UPDATE SKIP LOCKED）
	sources, err := s.sourceRepo.ListDueForFetch(ctx)
	if err != nil {
		return err
	}

	if len(sources) == 0 {
		s.logger.Info("フェッチ対象の取り込み元はありません")
		return nil
	}

	s.logger.Info("取り込みサイクルを開始します",
		slog.Int("source_count", len(sources)),
	)

	sem := make(chan struct{}, s.maxConcurrency)
	var wg sync.WaitGroup

	for _, src := range sources {
		wg.Add(1)
		sem <- struct{}{}

		go func(src *model.IngestSource) {
			defer wg.Done()
			defer func() { <-sem }()

			if err := s.fetcher.Fetch(ctx, src); err != nil {
				s.logger.Error("取り込み元のフェッチに失敗しました",
					slog.String("source_id", src.ID),
					slog.String("feed_url", src.FeedURL),
					slog.String("error", err.Error()),
				)
			}
		}(src)
	}

	wg.Wait()

	s.logger.Info("取り込みサイクルが完了しました",
		slog.Int("source_count", len(sources)),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)

	return nil
}
