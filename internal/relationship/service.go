// Package relationship は保存/お気に入り関係のトグルを提供する。
package relationship

import (
	"context"
	"fmt"

	"github.com/dotrstudio/jobfeed/internal/model"
	"github.com/dotrstudio/jobfeed/internal/repository"
)

// JobFinder はトグル対象の求人検索機能を定義する。
type JobFinder interface {
	// FindByID は指定IDの求人を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Job, error)
}

// Service は保存/お気に入り関係の操作を提供する。
type Service struct {
	jobs JobFinder
	rels repository.RelationshipRepository
}

// NewService はServiceを生成する。
func NewService(jobs JobFinder, rels repository.RelationshipRepository) *Service {
	return &Service{
		jobs: jobs,
		rels: rels,
	}
}

// Toggle は関係の有無を反転し、反転後の状態を返す。
//
// 対象の求人が存在しない、または未公開（下書き）の場合はJOB_NOT_FOUND。
// 掲載終了済みの求人に対しては許可する（保存済み一覧から外す操作のため）。
// 反転自体はリポジトリ側の単一条件付き書き込みで原子的に行われ、
// 応答前に確定するため、クライアントは中断後に安全に再試行できる。
func (s *Service) Toggle(ctx context.Context, userID, jobID string, kind model.RelationKind) (bool, error) {
	job, err := s.jobs.FindByID(ctx, jobID)
	if err != nil {
		return false, fmt.Errorf("求人の取得に失敗しました: %w", err)
	}
	if job == nil || job.Status == model.JobStatusDraft {
		return false, model.NewJobNotFoundError(jobID)
	}

	active, err := s.rels.Toggle(ctx, userID, jobID, kind)
	if err != nil {
		return false, fmt.Errorf("関係の反転に失敗しました: %w", err)
	}
	return active, nil
}
