// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"time"

	"github.com/dotrstudio/jobfeed/internal/model"
)

// FeedKey はキーセットページネーションの境界キーを表す。
// job/seekerモードでは求人のcreated_at、saved/favoritedモードでは
// 関係行のcreated_atがTimeに入る。IDはタイムスタンプ衝突時のタイブレーク。
type FeedKey struct {
	Time time.Time
	ID   string
}

// FeedQuery はjob/seekerモードのフィード検索条件を表す。
type FeedQuery struct {
	// PosterType が空の場合は投稿者種別で絞り込まない。
	PosterType model.PosterType
	Category   string
	PosterID   string
	// After がnilの場合は先頭から取得する。
	After *FeedKey
	Limit int
}

// RelationFeedQuery はsaved/favoritedモードのフィード検索条件を表す。
type RelationFeedQuery struct {
	UserID string
	Kind   model.RelationKind
	After  *FeedKey
	Limit  int
}

// RelatedJob は求人と関係作成日時を結合した構造体。
type RelatedJob struct {
	model.Job
	RelatedAt time.Time
}

// JobRepository は求人データの永続化インターフェース。
// 書き込みは応答前に永続化される（遅延永続化のセマンティクスは公開しない）。
type JobRepository interface {
	// Create は求人を作成する。
	Create(ctx context.Context, job *model.Job) error

	// FindByID は指定IDの求人を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Job, error)

	// FindBySourceURL は取り込み元URLで求人を検索する。見つからない場合はnilを返す。
	// 外部取り込みの重複排除に使用する。
	FindBySourceURL(ctx context.Context, sourceURL string) (*model.Job, error)

	// Update は求人の可変フィールド（title, description, category,
	// thumbnail_key, video_key, updated_at）を更新する。
	// poster_id / poster_type / created_at は更新しない。
	Update(ctx context.Context, job *model.Job) error

	// UpdateStatus は現在の状態がfromである場合に限りtoへ遷移させる。
	// 比較と更新は単一のUPDATE文で行い、遷移できた場合はtrueを返す。
	UpdateStatus(ctx context.Context, id string, from, to model.JobStatus, now time.Time) (bool, error)

	// ListFeed は公開中の求人を (created_at DESC, id DESC) 順で取得する。
	ListFeed(ctx context.Context, q FeedQuery) ([]*model.Job, error)

	// ListCategories は公開中の求人に存在するカテゴリの一覧を返す。
	ListCategories(ctx context.Context) ([]string, error)
}

// RelationshipRepository は保存/お気に入り関係の永続化インターフェース。
type RelationshipRepository interface {
	// Toggle は関係の有無を原子的に反転し、反転後の状態を返す。
	// 存在すれば削除してfalse、存在しなければ作成してtrueを返す。
	// 存在確認と変更はそれぞれ単一の条件付き書き込みで行い、
	// read-then-writeの競合窓を持たない。
	Toggle(ctx context.Context, userID, jobID string, kind model.RelationKind) (bool, error)

	// Exists は関係行の有無を返す。
	Exists(ctx context.Context, userID, jobID string, kind model.RelationKind) (bool, error)

	// ListJobs はユーザーの関係に紐づく求人（下書きを除く）を
	// (関係のcreated_at DESC, job_id DESC) 順で取得する。
	// 掲載終了済みの求人も含まれる。
	ListJobs(ctx context.Context, q RelationFeedQuery) ([]RelatedJob, error)
}

// IngestSourceRepository は外部取り込み元の永続化インターフェース。
type IngestSourceRepository interface {
	// ListDueForFetch はフェッチ対象の取り込み元を取得する。
	// next_fetch_at <= now() かつ fetch_status = 'active' の行を
	// FOR UPDATE SKIP LOCKEDで排他的に取得する。
	ListDueForFetch(ctx context.Context) ([]*model.IngestSource, error)

	// UpdateFetchState は取り込み元のフェッチ状態を更新する。
	// fetch_status、consecutive_errors、error_message、next_fetch_atを更新する。
	UpdateFetchState(ctx context.Context, src *model.IngestSource) error
}
