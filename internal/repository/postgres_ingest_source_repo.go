package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dotrstudio/jobfeed/internal/model"
)

// PostgresIngestSourceRepo はPostgreSQLを使用した外部取り込み元リポジトリ。
type PostgresIngestSourceRepo struct {
	db *sql.DB
}

// NewPostgresIngestSourceRepo はPostgresIngestSourceRepoを生成する。
func NewPostgresIngestSourceRepo(db *sql.DB) *PostgresIngestSourceRepo {
	return &PostgresIngestSourceRepo{db: db}
}

// ListDueForFetch はフェッチ対象の取り込み元を取得する。
// next_fetch_at <= now() かつ fetch_status = 'active' の行を
// FOR UPDATE SKIP LOCKEDで排他的に取得するため、複数ワーカーが
// 同じ取り込み元を同時に処理することはない。
func (r *PostgresIngestSourceRepo) ListDueForFetch(ctx context.Context) ([]*model.IngestSource, error) {
	var sources []*model.IngestSource
	err := doWithRetry(ctx, func() error {
		rows, err := r.db.QueryContext(ctx,
			`SELECT id, name, feed_url, employer_id, fetch_status,
			        consecutive_errors, error_message, next_fetch_at, created_at, updated_at
			 FROM ingest_sources
			 WHERE fetch_status = 'active' AND next_fetch_at <= now()
			 ORDER BY next_fetch_at
			 FOR UPDATE SKIP LOCKED`,
		)
		if err != nil {
			return fmt.Errorf("取り込み元一覧の取得に失敗しました: %w", err)
		}
		defer rows.Close()

		sources = nil
		for rows.Next() {
			src := &model.IngestSource{}
			if err := rows.Scan(
				&src.ID, &src.Name, &src.FeedURL, &src.EmployerID, &src.FetchStatus,
				&src.ConsecutiveErrors, &src.ErrorMessage, &src.NextFetchAt,
				&src.CreatedAt, &src.UpdatedAt,
			); err != nil {
				return fmt.Errorf("取り込み元行の読み取りに失敗しました: %w", err)
			}
			sources = append(sources, src)
		}
		if err := rows.Err(); err != nil {
			return fmt.Errorf("取り込み元一覧の走査に失敗しました: %w", err)
		}
		return nil
	})
	return sources, err
}

// UpdateFetchState は取り込み元のフェッチ状態を更新する。
func (r *PostgresIngestSourceRepo) UpdateFetchState(ctx context.Context, src *model.IngestSource) error {
	return doWithRetry(ctx, func() error {
		_, err := r.db.ExecContext(ctx,
			`UPDATE ingest_sources SET
			    fetch_status = $2, consecutive_errors = $3, error_message = $4,
			    next_fetch_at = $5, updated_at = $6
			 WHERE id = $1`,
			src.ID, src.FetchStatus, src.ConsecutiveErrors, src.ErrorMessage,
			src.NextFetchAt, src.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("取り込み元状態の更新に失敗しました: %w", err)
		}
		return nil
	})
}

// compile-time interface check
var _ IngestSourceRepository = (*PostgresIngestSourceRepo)(nil)
