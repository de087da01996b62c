// Package model はドメインモデルを定義する。
package model

import (
	"fmt"
	"time"
)

// Job は求人投稿を表す。
// 投稿者（PosterID / PosterType）は作成後に変更できない。
type Job struct {
	ID           string
	Title        string
	Description  string
	Category     string
	PosterID     string
	PosterType   PosterType
	Status       JobStatus
	ThumbnailKey string
	VideoKey     string
	SourceURL    string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// PosterType は求人投稿者の種別を表す。
type PosterType string

const (
	// PosterTypeEmployer は雇用主による投稿。
	PosterTypeEmployer PosterType = "employer"
	// PosterTypeSeeker は求職者による投稿。
	PosterTypeSeeker PosterType = "seeker"
)

// ParsePosterType は文字列をPosterTypeに変換する。未知の値はエラーを返す。
func ParsePosterType(s string) (PosterType, error) {
	pt := PosterType(s)
	switch pt {
	case PosterTypeEmployer, PosterTypeSeeker:
		return pt, nil
	}
	return "", fmt.Errorf("unknown poster type %q", s)
}

// JobStatus は求人の公開状態を表す。
type JobStatus string

const (
	// JobStatusDraft は下書き状態。フィードには露出しない。
	JobStatusDraft JobStatus = "draft"
	// JobStatusActive は公開中の状態。
	JobStatusActive JobStatus = "active"
	// JobStatusClosed は掲載終了の状態。終端状態であり復帰できない。
	JobStatusClosed JobStatus = "closed"
)

// validStatusTransitions は許可される状態遷移（from → to）の一覧。
//
//	draft ──publish──► active ──close──► closed
//
// closedは終端状態で、以降の遷移は存在しない。
// 既存のSaved/Favorited関係の参照整合性を保つため、求人は物理削除せず
// closedへの遷移で論理削除する。
var validStatusTransitions = map[JobStatus][]JobStatus{
	JobStatusDraft:  {JobStatusActive},
	JobStatusActive: {JobStatusClosed},
}

// ParseJobStatus は文字列をJobStatusに変換する。未知の値はエラーを返す。
func ParseJobStatus(s string) (JobStatus, error) {
	st := JobStatus(s)
	switch st {
	case JobStatusDraft, JobStatusActive, JobStatusClosed:
		return st, nil
	}
	return "", fmt.Errorf("unknown job status %q", s)
}

// CanTransition はfromからtoへの状態遷移が許可されているかを返す。
// closedに対するcloseの再実行も不許可として扱う（冪等化は呼び出し側の裁量）。
func CanTransition(from, to JobStatus) bool {
	allowed, ok := validStatusTransitions[from]
	if !ok {
		return false
	}
	for _, s := range allowed {
		if s == to {
			return true
		}
	}
	return false
}

// IsOwner はactorIDがこの求人の投稿者であるかを返す。
func (j *Job) IsOwner(actorID string) bool {
	return j.PosterID == actorID
}
