package media

import (
	"context"
	"fmt"

	"github.com/dotrstudio/jobfeed/internal/model"
)

// JobFinder はメディア解決に必要な求人検索機能を定義する。
type JobFinder interface {
	// FindByID は指定IDの求人を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Job, error)
}

// Service は求人単位のメディア参照解決を提供する。
type Service struct {
	jobs     JobFinder
	resolver *Resolver
}

// NewService はServiceを生成する。
func NewService(jobs JobFinder, resolver *Resolver) *Service {
	return &Service{
		jobs:     jobs,
		resolver: resolver,
	}
}

// ResolveForJob は求人の指定種別のメディアを署名付きURLに解決する。
// 求人が存在しない場合はJOB_NOT_FOUND、指定種別のアセット参照を
// 持たない場合はMEDIA_NOT_FOUNDを返す。
// 参照は存在するがストレージ上のオブジェクトが欠損している場合は
// (nil, nil) を返す（クライアントはurl: nullを受け取る）。
func (s *Service) ResolveForJob(ctx context.Context, jobID string, kind model.MediaKind) (*string, error) {
	job, err := s.jobs.FindByID(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("求人の取得に失敗しました: %w", err)
	}
	if job == nil {
		return nil, model.NewJobNotFoundError(jobID)
	}

	var storageKey string
	switch kind {
	case model.MediaKindThumbnail:
		storageKey = job.ThumbnailKey
	case model.MediaKindVideo:
		storageKey = job.VideoKey
	}
	if storageKey == "" {
		return nil, model.NewMediaNotFoundError(jobID, kind)
	}

	return s.resolver.Resolve(ctx, storageKey), nil
}
