package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dotrstudio/jobfeed/internal/model"
)

// PostgresJobRepo はPostgreSQLを使用した求人リポジトリ。
type PostgresJobRepo struct {
	db *sql.DB
}

// NewPostgresJobRepo はPostgresJobRepoを生成する。
func NewPostgresJobRepo(db *sql.DB) *PostgresJobRepo {
	return &PostgresJobRepo{db: db}
}

// jobColumns はSELECT句で取得する求人のカラム一覧。
const jobColumns = `id, title, description, category, poster_id, poster_type, status,
       thumbnail_key, video_key, source_url, created_at, updated_at`

// scanJob は1行分の求人を読み取る。
func scanJob(s interface{ Scan(...any) error }) (*model.Job, error) {
	job := &model.Job{}
	var thumbnailKey, videoKey, sourceURL sql.NullString

	if err := s.Scan(
		&job.ID, &job.Title, &job.Description, &job.Category,
		&job.PosterID, &job.PosterType, &job.Status,
		&thumbnailKey, &videoKey, &sourceURL,
		&job.CreatedAt, &job.UpdatedAt,
	); err != nil {
		return nil, err
	}

	job.ThumbnailKey = nullStringValue(thumbnailKey)
	job.VideoKey = nullStringValue(videoKey)
	job.SourceURL = nullStringValue(sourceURL)
	return job, nil
}

// Create は求人を作成する。
func (r *PostgresJobRepo) Create(ctx context.Context, job *model.Job) error {
	return doWithRetry(ctx, func() error {
		_, err := r.db.ExecContext(ctx,
			`INSERT INTO jobs (id, title, description, category, poster_id, poster_type,
			                   status, thumbnail_key, video_key, source_url, created_at, updated_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
			job.ID, job.Title, job.Description, job.Category,
			job.PosterID, job.PosterType, job.Status,
			nullString(job.ThumbnailKey), nullString(job.VideoKey), nullString(job.SourceURL),
			job.CreatedAt, job.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("求人の作成に失敗しました: %w", err)
		}
		return nil
	})
}

// FindByID は指定IDの求人を取得する。見つからない場合はnilを返す。
func (r *PostgresJobRepo) FindByID(ctx context.Context, id string) (*model.Job, error) {
	var job *model.Job
	err := doWithRetry(ctx, func() error {
		j, err := scanJob(r.db.QueryRowContext(ctx,
			`SELECT `+jobColumns+` FROM jobs WHERE id = $1`, id,
		))
		if err == sql.ErrNoRows {
			job = nil
			return nil
		}
		if err != nil {
			return fmt.Errorf("求人の取得に失敗しました: %w", err)
		}
		job = j
		return nil
	})
	return job, err
}

// FindBySourceURL は取り込み元URLで求人を検索する。見つからない場合はnilを返す。
func (r *PostgresJobRepo) FindBySourceURL(ctx context.Context, sourceURL string) (*model.Job, error) {
	var job *model.Job
	err := doWithRetry(ctx, func() error {
		j, err := scanJob(r.db.QueryRowContext(ctx,
			`SELECT `+jobColumns+` FROM jobs WHERE source_url = $1`, sourceURL,
		))
		if err == sql.ErrNoRows {
			job = nil
			return nil
		}
		if err != nil {
			return fmt.Errorf("source_url による求人の検索に失敗しました: %w", err)
		}
		job = j
		return nil
	})
	return job, err
}

// Update は求人の可変フィールドを更新する。
// poster_id / poster_type / status / created_at はこのメソッドでは変更しない。
func (r *PostgresJobRepo) Update(ctx context.Context, job *model.Job) error {
	return doWithRetry(ctx, func() error {
		_, err := r.db.ExecContext(ctx,
			`UPDATE jobs SET
			    title = $2, description = $3, category = $4,
			    thumbnail_key = $5, video_key = $6, updated_at = $7
			 WHERE id = $1`,
			job.ID, job.Title, job.Description, job.Category,
			nullString(job.ThumbnailKey), nullString(job.VideoKey), job.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("求人の更新に失敗しました: %w", err)
		}
		return nil
	})
}

// UpdateStatus は現在の状態がfromである場合に限りtoへ遷移させる。
// 比較と更新を単一のUPDATE文で行うため、並行する遷移のどちらか一方のみが成功する。
func (r *PostgresJobRepo) UpdateStatus(ctx context.Context, id string, from, to model.JobStatus, now time.Time) (bool, error) {
	var updated bool
	err := doWithRetry(ctx, func() error {
		res, err := r.db.ExecContext(ctx,
			`UPDATE jobs SET status = $3, updated_at = $4
			 WHERE id = $1 AND status = $2`,
			id, from, to, now,
		)
		if err != nil {
			return fmt.Errorf("求人状態の更新に失敗しました: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("更新行数の取得に失敗しました: %w", err)
		}
		updated = n > 0
		return nil
	})
	return updated, err
}

// ListFeed は公開中の求人を (created_at DESC, id DESC) 順で取得する。
// Afterが指定された場合はそのキーより厳密に古い行のみを返す
// （タイムスタンプ衝突は行値比較のidタイブレークで解決する）。
func (r *PostgresJobRepo) ListFeed(ctx context.Context, q FeedQuery) ([]*model.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE status = 'active'`
	args := []any{}
	argIndex := 1

	if q.PosterType != "" {
		query += fmt.Sprintf(" AND poster_type = $%d", argIndex)
		args = append(args, q.PosterType)
		argIndex++
	}
	if q.Category != "" {
		query += fmt.Sprintf(" AND category = $%d", argIndex)
		args = append(args, q.Category)
		argIndex++
	}
	if q.PosterID != "" {
		query += fmt.Sprintf(" AND poster_id = $%d", argIndex)
		args = append(args, q.PosterID)
		argIndex++
	}
	if q.After != nil {
		query += fmt.Sprintf(" AND (created_at, id) < ($%d, $%d)", argIndex, argIndex+1)
		args = append(args, q.After.Time, q.After.ID)
		argIndex += 2
	}

	query += fmt.Sprintf(" ORDER BY created_at DESC, id DESC LIMIT $%d", argIndex)
	args = append(args, q.Limit)

	var jobs []*model.Job
	err := doWithRetry(ctx, func() error {
		rows, err := r.db.QueryContext(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("フィードの取得に失敗しました: %w", err)
		}
		defer rows.Close()

		jobs = nil
		for rows.Next() {
			job, err := scanJob(rows)
			if err != nil {
				return fmt.Errorf("求人行の読み取りに失敗しました: %w", err)
			}
			jobs = append(jobs, job)
		}
		if err := rows.Err(); err != nil {
			return fmt.Errorf("フィードの走査に失敗しました: %w", err)
		}
		return nil
	})
	return jobs, err
}

// ListCategories は公開中の求人に存在するカテゴリの一覧を返す。
func (r *PostgresJobRepo) ListCategories(ctx context.Context) ([]string, error) {
	var categories []string
	err := doWithRetry(ctx, func() error {
		rows, err := r.db.QueryContext(ctx,
			`SELECT DISTINCT category FROM jobs
			 WHERE status = 'active' AND category <> ''
			 ORDER BY category`,
		)
		if err != nil {
			return fmt.Errorf("カテゴリ一覧の取得に失敗しました: %w", err)
		}
		defer rows.Close()

		categories = nil
		for rows.Next() {
			var c string
			if err := rows.Scan(&c); err != nil {
				return fmt.Errorf("カテゴリ行の読み取りに失敗しました: %w", err)
			}
			categories = append(categories, c)
		}
		if err := rows.Err(); err != nil {
			return fmt.Errorf("カテゴリ一覧の走査に失敗しました: %w", err)
		}
		return nil
	})
	return categories, err
}

// --- NULL変換ヘルパー ---

// nullString は空文字列をNULLとして書き込むための変換を行う。
func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// nullStringValue はNULL許容カラムの値を空文字列に正規化して返す。
func nullStringValue(ns sql.NullString) string {
	if ns.Valid {
		return ns.String
	}
	return ""
}

// compile-time interface check
var _ JobRepository = (*PostgresJobRepo)(nil)
