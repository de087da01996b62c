package model

import "time"

// IngestSource は外部求人ボードのフィード取り込み元を表す。
// 取り込まれた求人は下書き状態で作成され、公開は人間の操作に委ねる。
type IngestSource struct {
	ID                string
	Name              string
	FeedURL           string
	EmployerID        string
	FetchStatus       IngestFetchStatus
	ConsecutiveErrors int
	ErrorMessage      string
	NextFetchAt       time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// IngestFetchStatus は取り込み元のフェッチ状態を表す。
type IngestFetchStatus string

const (
	// IngestFetchStatusActive はアクティブなフェッチ状態。
	IngestFetchStatusActive IngestFetchStatus = "active"
	// IngestFetchStatusStopped は停止されたフェッチ状態。
	IngestFetchStatusStopped IngestFetchStatus = "stopped"
)
