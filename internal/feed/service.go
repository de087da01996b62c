// Package feed はフィードクエリエンジンを提供する。
//
// モード分岐・ページサイズの正規化・カーソルの発行と束縛検証を
// この層に集約し、リポジトリは読み取り専用の検索だけを担う。
package feed

import (
	"context"
	"fmt"
	"time"

	"github.com/dotrstudio/jobfeed/internal/cursor"
	"github.com/dotrstudio/jobfeed/internal/model"
	"github.com/dotrstudio/jobfeed/internal/repository"
)

// MediaResolver はフィード行のメディアキーをURLに解決する機能を定義する。
type MediaResolver interface {
	// Resolve はストレージキーを署名付きURLに解決する。
	// 解決できない場合はnilを返す（フィードページは失敗しない）。
	Resolve(ctx context.Context, storageKey string) *string
}

// Service はフィードページの組み立てを提供する。
type Service struct {
	jobs     repository.JobRepository
	rels     repository.RelationshipRepository
	codec    *cursor.Codec
	resolver MediaResolver

	pageSizeDefault int
	pageSizeMax     int
}

// NewService はServiceを生成する。
func NewService(
	jobs repository.JobRepository,
	rels repository.RelationshipRepository,
	codec *cursor.Codec,
	resolver MediaResolver,
	pageSizeDefault, pageSizeMax int,
) *Service {
	return &Service{
		jobs:            jobs,
		rels:            rels,
		codec:           codec,
		resolver:        resolver,
		pageSizeDefault: pageSizeDefault,
		pageSizeMax:     pageSizeMax,
	}
}

// PageRequest はフィードページの取得要求を表す。
type PageRequest struct {
	Mode    model.FeedMode
	Filters model.FeedFilters
	// UserID はsaved/favoritedモードで必須。
	UserID string
	// Cursor は前ページ応答のNextCursor。空なら先頭ページ。
	Cursor string
	// PageSize は0以下なら既定値、上限超過は上限に丸められる。
	PageSize int
}

// Page はフィード1ページを返す。
//
// 返却順は(mode, filters, cursor)に対して決定的で、ページ境界は
// カーソルに封入したソートキーで固定される（リクエスト後の並行書き込みは
// 以降のページに影響しない）。空の結果はエラーではなく、NextCursorがnilの
// 空ページとして返る。
func (s *Service) Page(ctx context.Context, req PageRequest) (*model.FeedPage, error) {
	switch req.Mode {
	case model.FeedModeSaved, model.FeedModeFavorited:
		if req.UserID == "" {
			return nil, model.NewValidationError("saved/favoritedモードにはuserIdの指定が必要です")
		}
	}

	limit := s.clampPageSize(req.PageSize)

	after, err := s.decodeCursor(req)
	if err != nil {
		return nil, err
	}

	switch req.Mode {
	case model.FeedModeJob, model.FeedModeSeeker:
		return s.jobPage(ctx, req, after, limit)
	case model.FeedModeSaved, model.FeedModeFavorited:
		return s.relationPage(ctx, req, after, limit)
	}
	return nil, model.NewInvalidModeError(string(req.Mode))
}

// Categories は公開中の求人に存在するカテゴリ一覧を返す。
func (s *Service) Categories(ctx context.Context) ([]string, error) {
	categories, err := s.jobs.ListCategories(ctx)
	if err != nil {
		return nil, fmt.Errorf("カテゴリ一覧の取得に失敗しました: %w", err)
	}
	return categories, nil
}

// jobPage はjob/seekerモードのページを組み立てる。
// seekerモードは求職者投稿のみに絞り込む。どちらも公開中の求人のみが対象で、
// カーソル発行後にclosedへ遷移した求人は以降のページに現れない。
func (s *Service) jobPage(ctx context.Context, req PageRequest, after *repository.FeedKey, limit int) (*model.FeedPage, error) {
	q := repository.FeedQuery{
		Category: req.Filters.Category,
		PosterID: req.Filters.PosterID,
		After:    after,
		Limit:    limit + 1,
	}
	if req.Mode == model.FeedModeSeeker {
		q.PosterType = model.PosterTypeSeeker
	}

	jobs, err := s.jobs.ListFeed(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("フィードの取得に失敗しました: %w", err)
	}

	hasMore := len(jobs) > limit
	if hasMore {
		jobs = jobs[:limit]
	}

	page := &model.FeedPage{Entries: make([]model.FeedEntry, 0, len(jobs))}
	for _, job := range jobs {
		page.Entries = append(page.Entries, s.enrich(ctx, *job))
	}

	if hasMore {
		last := jobs[len(jobs)-1]
		page.NextCursor = s.encodeCursor(req, last.CreatedAt, last.ID)
	}
	return page, nil
}

// relationPage はsaved/favoritedモードのページを組み立てる。
// 並び順は関係作成日時の降順（求人の作成日時ではない）。
func (s *Service) relationPage(ctx context.Context, req PageRequest, after *repository.FeedKey, limit int) (*model.FeedPage, error) {
	kind := model.RelationKindSaved
	if req.Mode == model.FeedModeFavorited {
		kind = model.RelationKindFavorited
	}

	related, err := s.rels.ListJobs(ctx, repository.RelationFeedQuery{
		UserID: req.UserID,
		Kind:   kind,
		After:  after,
		Limit:  limit + 1,
	})
	if err != nil {
		return nil, fmt.Errorf("関係フィードの取得に失敗しました: %w", err)
	}

	hasMore := len(related) > limit
	if hasMore {
		related = related[:limit]
	}

	page := &model.FeedPage{Entries: make([]model.FeedEntry, 0, len(related))}
	for _, rj := range related {
		entry := s.enrich(ctx, rj.Job)
		entry.RelatedAt = rj.RelatedAt
		page.Entries = append(page.Entries, entry)
	}

	if hasMore {
		last := related[len(related)-1]
		page.NextCursor = s.encodeCursor(req, last.RelatedAt, last.ID)
	}
	return page, nil
}

// enrich は求人のメディアキーを署名付きURLに解決する。
// 解決失敗はnull URLとしてそのまま載せる（ページレベルのエラーにはしない）。
func (s *Service) enrich(ctx context.Context, job model.Job) model.FeedEntry {
	entry := model.FeedEntry{Job: job}
	if job.ThumbnailKey != "" {
		entry.ThumbnailURL = s.resolver.Resolve(ctx, job.ThumbnailKey)
	}
	if job.VideoKey != "" {
		entry.VideoURL = s.resolver.Resolve(ctx, job.VideoKey)
	}
	return entry
}

// decodeCursor はカーソルを復号し、発行時のモード/フィルタ集合と
// 今回のリクエストの一致を検証する。
// 不一致は黙って読み替えず、INVALID_CURSORとして拒否する。
func (s *Service) decodeCursor(req PageRequest) (*repository.FeedKey, error) {
	if req.Cursor == "" {
		return nil, nil
	}

	claims, err := s.codec.Decode(req.Cursor)
	if err != nil {
		return nil, err
	}

	if claims.Mode != req.Mode {
		return nil, model.NewInvalidCursorError(
			fmt.Sprintf("カーソルは%sモードで発行されたものです", claims.Mode))
	}
	if claims.Category != req.Filters.Category || claims.PosterID != req.Filters.PosterID {
		return nil, model.NewInvalidCursorError("カーソルの発行時とフィルタ条件が異なります")
	}
	if claims.UserID != req.UserID {
		return nil, model.NewInvalidCursorError("カーソルの発行時とユーザーが異なります")
	}

	return &repository.FeedKey{Time: claims.KeyTime, ID: claims.KeyID}, nil
}

// encodeCursor はページ末尾のソートキーから次ページ用カーソルを発行する。
func (s *Service) encodeCursor(req PageRequest, keyTime time.Time, keyID string) *string {
	token := s.codec.Encode(cursor.Claims{
		Mode:     req.Mode,
		Category: req.Filters.Category,
		PosterID: req.Filters.PosterID,
		UserID:   req.UserID,
		KeyTime:  keyTime,
		KeyID:    keyID,
	})
	return &token
}

// clampPageSize はページサイズを[1, max]に正規化する。
func (s *Service) clampPageSize(size int) int {
	if size <= 0 {
		return s.pageSizeDefault
	}
	if size > s.pageSizeMax {
		return s.pageSizeMax
	}
	return size
}
