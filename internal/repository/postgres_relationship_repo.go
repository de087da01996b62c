package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dotrstudio/jobfeed/internal/model"
)

// PostgresRelationshipRepo はPostgreSQLを使用した保存/お気に入り関係リポジトリ。
type PostgresRelationshipRepo struct {
	db *sql.DB
}

// NewPostgresRelationshipRepo はPostgresRelationshipRepoを生成する。
func NewPostgresRelationshipRepo(db *sql.DB) *PostgresRelationshipRepo {
	return &PostgresRelationshipRepo{db: db}
}

// Toggle は関係の有無を原子的に反転し、反転後の状態を返す。
//
// まず条件付きDELETEを発行し、行が消えた場合は「解除」で確定する。
// 消えなかった場合はINSERT ... ON CONFLICT DO NOTHINGで作成を試みる。
// どちらの腕も単一文であり、存在確認と変更の間に他リクエストから
// 観測可能な窓は生じない。並行トグル同士はDELETEとINSERTの一意制約で
// 直列化され、二重作成も二重削除も起こらない。
func (r *PostgresRelationshipRepo) Toggle(ctx context.Context, userID, jobID string, kind model.RelationKind) (bool, error) {
	var active bool
	err := doWithRetry(ctx, func() error {
		res, err := r.db.ExecContext(ctx,
			`DELETE FROM job_relationships
			 WHERE user_id = $1 AND job_id = $2 AND kind = $3`,
			userID, jobID, kind,
		)
		if err != nil {
			return fmt.Errorf("関係の削除に失敗しました: %w", err)
		}
		deleted, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("削除行数の取得に失敗しました: %w", err)
		}
		if deleted > 0 {
			active = false
			return nil
		}

		// 行が無かったので作成する。ON CONFLICTで0行になるのは並行する
		// トグルが先に作成した場合であり、いずれにせよ結果状態は「有効」。
		_, err = r.db.ExecContext(ctx,
			`INSERT INTO job_relationships (user_id, job_id, kind, created_at)
			 VALUES ($1, $2, $3, now())
			 ON CONFLICT (user_id, job_id, kind) DO NOTHING`,
			userID, jobID, kind,
		)
		if err != nil {
			return fmt.Errorf("関係の作成に失敗しました: %w", err)
		}
		active = true
		return nil
	})
	return active, err
}

// Exists は関係行の有無を返す。
func (r *PostgresRelationshipRepo) Exists(ctx context.Context, userID, jobID string, kind model.RelationKind) (bool, error) {
	var exists bool
	err := doWithRetry(ctx, func() error {
		err := r.db.QueryRowContext(ctx,
			`SELECT EXISTS (
				SELECT 1 FROM job_relationships
				WHERE user_id = $1 AND job_id = $2 AND kind = $3
			)`,
			userID, jobID, kind,
		).Scan(&exists)
		if err != nil {
			return fmt.Errorf("関係の確認に失敗しました: %w", err)
		}
		return nil
	})
	return exists, err
}

// ListJobs はユーザーの関係に紐づく求人を
// (関係のcreated_at DESC, job_id DESC) 順で取得する。
// 保存/お気に入り一覧は掲載終了（closed）後の求人も表示し続ける。
// 下書きはJOIN条件で除外される。
func (r *PostgresRelationshipRepo) ListJobs(ctx context.Context, q RelationFeedQuery) ([]RelatedJob, error) {
	query := `
		SELECT j.id, j.title, j.description, j.category, j.poster_id, j.poster_type, j.status,
		       j.thumbnail_key, j.video_key, j.source_url, j.created_at, j.updated_at,
		       r.created_at AS related_at
		FROM job_relationships r
		JOIN jobs j ON j.id = r.job_id
		WHERE r.user_id = $1 AND r.kind = $2 AND j.status <> 'draft'`

	args := []any{q.UserID, q.Kind}
	argIndex := 3

	if q.After != nil {
		query += fmt.Sprintf(" AND (r.created_at, r.job_id) < ($%d, $%d)", argIndex, argIndex+1)
		args = append(args, q.After.Time, q.After.ID)
		argIndex += 2
	}

	query += fmt.Sprintf(" ORDER BY r.created_at DESC, r.job_id DESC LIMIT $%d", argIndex)
	args = append(args, q.Limit)

	var results []RelatedJob
	err := doWithRetry(ctx, func() error {
		rows, err := r.db.QueryContext(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("関係フィードの取得に失敗しました: %w", err)
		}
		defer rows.Close()

		results = nil
		for rows.Next() {
			var rj RelatedJob
			var thumbnailKey, videoKey, sourceURL sql.NullString

			if err := rows.Scan(
				&rj.ID, &rj.Title, &rj.Description, &rj.Category,
				&rj.PosterID, &rj.PosterType, &rj.Status,
				&thumbnailKey, &videoKey, &sourceURL,
				&rj.CreatedAt, &rj.UpdatedAt,
				&rj.RelatedAt,
			); err != nil {
				return fmt.Errorf("関係フィード行の読み取りに失敗しました: %w", err)
			}

			rj.ThumbnailKey = nullStringValue(thumbnailKey)
			rj.VideoKey = nullStringValue(videoKey)
			rj.SourceURL = nullStringValue(sourceURL)
			results = append(results, rj)
		}
		if err := rows.Err(); err != nil {
			return fmt.Errorf("関係フィードの走査に失敗しました: %w", err)
		}
		return nil
	})
	return results, err
}

// compile-time interface check
var _ RelationshipRepository = (*PostgresRelationshipRepo)(nil)
