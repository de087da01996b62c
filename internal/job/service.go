// Package job は求人投稿のライフサイクル管理を提供する。
package job

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dotrstudio/jobfeed/internal/model"
	"github.com/dotrstudio/jobfeed/internal/repository"
	"github.com/dotrstudio/jobfeed/internal/security"
)

// 入力検証の上限値。
const (
	maxTitleLength       = 200
	maxCategoryLength    = 100
	maxDescriptionLength = 50000
)

// Service は求人の作成・更新・状態遷移を提供する。
// 所有者チェックはすべてこの層で行い、リポジトリを直接呼ぶ経路からは
// 不変条件を迂回できない。
type Service struct {
	repo      repository.JobRepository
	sanitizer security.DescriptionSanitizer

	// テストで差し替えるためのフック。
	now   func() time.Time
	newID func() string
}

// NewService はServiceを生成する。
func NewService(repo repository.JobRepository, sanitizer security.DescriptionSanitizer) *Service {
	return &Service{
		repo:      repo,
		sanitizer: sanitizer,
		now:       time.Now,
		newID:     uuid.NewString,
	}
}

// CreateInput は求人作成の入力を表す。
type CreateInput struct {
	Title        string
	Description  string
	Category     string
	PosterID     string
	PosterType   string
	ThumbnailKey string
	VideoKey     string
}

// Create は求人を下書き状態で作成する。
//
// 投稿には雇用主ロールが必要で、投稿者は実行者自身に固定される。
// 管理者のみ、PosterID/PosterTypeを明示して他者名義（求職者投稿を含む）で
// 作成できる。
func (s *Service) Create(ctx context.Context, actor model.Actor, in CreateInput) (*model.Job, error) {
	posterID := actor.ID
	posterType := model.PosterTypeEmployer

	switch {
	case actor.IsAdmin():
		if in.PosterID == "" {
			return nil, model.NewValidationError("管理者による作成にはposterIdの指定が必要です")
		}
		posterID = in.PosterID
		if in.PosterType != "" {
			pt, err := model.ParsePosterType(in.PosterType)
			if err != nil {
				return nil, model.NewValidationError("posterTypeにはemployerまたはseekerを指定してください")
			}
			posterType = pt
		}
	case actor.Role == model.RoleEmployer:
		if in.PosterID != "" && in.PosterID != actor.ID {
			return nil, model.NewForbiddenError("他のアカウント名義では投稿できません")
		}
	default:
		return nil, model.NewForbiddenError("求人の投稿には雇用主アカウントが必要です")
	}

	title := strings.TrimSpace(in.Title)
	category := strings.TrimSpace(in.Category)
	if err := validateFields(title, category, in.Description); err != nil {
		return nil, err
	}

	now := s.now()
	job := &model.Job{
		ID:           s.newID(),
		Title:        title,
		Description:  s.sanitizer.Sanitize(in.Description),
		Category:     category,
		PosterID:     posterID,
		PosterType:   posterType,
		Status:       model.JobStatusDraft,
		ThumbnailKey: in.ThumbnailKey,
		VideoKey:     in.VideoKey,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.repo.Create(ctx, job); err != nil {
		return nil, fmt.Errorf("求人の作成に失敗しました: %w", err)
	}
	return job, nil
}

// Get は求人を取得する。
// 下書きは投稿者本人と管理者にのみ見え、それ以外には存在しないものとして扱う。
func (s *Service) Get(ctx context.Context, actor model.Actor, id string) (*model.Job, error) {
	job, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("求人の取得に失敗しました: %w", err)
	}
	if job == nil {
		return nil, model.NewJobNotFoundError(id)
	}
	if job.Status == model.JobStatusDraft && !job.CanModify(actor) {
		return nil, model.NewJobNotFoundError(id)
	}
	return job, nil
}

// UpdateInput は求人更新の入力を表す。nilのフィールドは変更しない。
type UpdateInput struct {
	Title        *string
	Description  *string
	Category     *string
	ThumbnailKey *string
	VideoKey     *string
}

// Update は求人の可変フィールドを部分更新する。
// 投稿者（PosterID/PosterType）は変更できない。掲載終了後の求人は編集不可。
func (s *Service) Update(ctx context.Context, actor model.Actor, id string, in UpdateInput) (*model.Job, error) {
	job, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("求人の取得に失敗しました: %w", err)
	}
	if job == nil {
		return nil, model.NewJobNotFoundError(id)
	}
	if !job.CanModify(actor) {
		return nil, model.NewForbiddenError("求人を編集できるのは投稿者本人のみです")
	}
	if job.Status == model.JobStatusClosed {
		return nil, model.NewValidationError("掲載終了した求人は編集できません")
	}

	if in.Title != nil {
		job.Title = strings.TrimSpace(*in.Title)
	}
	if in.Category != nil {
		job.Category = strings.TrimSpace(*in.Category)
	}
	if in.Description != nil {
		job.Description = s.sanitizer.Sanitize(*in.Description)
	}
	if in.ThumbnailKey != nil {
		job.ThumbnailKey = *in.ThumbnailKey
	}
	if in.VideoKey != nil {
		job.VideoKey = *in.VideoKey
	}
	if err := validateFields(job.Title, job.Category, job.Description); err != nil {
		return nil, err
	}
	job.UpdatedAt = s.now()

	if err := s.repo.Update(ctx, job); err != nil {
		return nil, fmt.Errorf("求人の更新に失敗しました: %w", err)
	}
	return job, nil
}

// Publish は下書きの求人を公開する。
func (s *Service) Publish(ctx context.Context, actor model.Actor, id string) (*model.Job, error) {
	return s.transition(ctx, actor, id, model.JobStatusActive)
}

// Close は公開中の求人を掲載終了にする。
// closedは終端状態で、終了済みの求人への再実行はINVALID_TRANSITIONになる。
func (s *Service) Close(ctx context.Context, actor model.Actor, id string) (*model.Job, error) {
	return s.transition(ctx, actor, id, model.JobStatusClosed)
}

// transition は状態遷移を実行する。
//
// 事前チェックを通過しても、比較付きUPDATEが0行になった場合は並行する
// 遷移に先を越されている。その場合は現在の状態を読み直して
// INVALID_TRANSITIONとして報告する。
func (s *Service) transition(ctx context.Context, actor model.Actor, id string, to model.JobStatus) (*model.Job, error) {
	job, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("求人の取得に失敗しました: %w", err)
	}
	if job == nil {
		return nil, model.NewJobNotFoundError(id)
	}
	if !job.CanModify(actor) {
		return nil, model.NewForbiddenError("求人の状態を変更できるのは投稿者本人のみです")
	}
	if !model.CanTransition(job.Status, to) {
		return nil, model.NewInvalidTransitionError(job.Status, to)
	}

	now := s.now()
	ok, err := s.repo.UpdateStatus(ctx, id, job.Status, to, now)
	if err != nil {
		return nil, fmt.Errorf("求人の状態更新に失敗しました: %w", err)
	}
	if !ok {
		current, err := s.repo.FindByID(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("求人の取得に失敗しました: %w", err)
		}
		if current == nil {
			return nil, model.NewJobNotFoundError(id)
		}
		return nil, model.NewInvalidTransitionError(current.Status, to)
	}

	job.Status = to
	job.UpdatedAt = now
	return job, nil
}

// validateFields は求人フィールドの共通検証を行う。
func validateFields(title, category, description string) error {
	if title == "" {
		return model.NewValidationError("タイトルは必須です")
	}
	if len([]rune(title)) > maxTitleLength {
		return model.NewValidationError(fmt.Sprintf("タイトルは%d文字以内で入力してください", maxTitleLength))
	}
	if category == "" {
		return model.NewValidationError("カテゴリは必須です")
	}
	if len([]rune(category)) > maxCategoryLength {
		return model.NewValidationError(fmt.Sprintf("カテゴリは%d文字以内で入力してください", maxCategoryLength))
	}
	if len([]rune(description)) > maxDescriptionLength {
		return model.NewValidationError(fmt.Sprintf("説明文は%d文字以内で入力してください", maxDescriptionLength))
	}
	return nil
}
