package model

import (
	"fmt"
	"time"
)

// FeedMode はフィードの選択モードを表す。
type FeedMode string

const (
	// FeedModeJob は公開中の全求人を返すモード。
	FeedModeJob FeedMode = "job"
	// FeedModeSeeker は求職者が投稿した公開中の求人を返すモード。
	FeedModeSeeker FeedMode = "seeker"
	// FeedModeSaved はユーザーが保存した求人を返すモード。
	FeedModeSaved FeedMode = "saved"
	// FeedModeFavorited はユーザーがお気に入りにした求人を返すモード。
	FeedModeFavorited FeedMode = "favorited"
)

// ParseFeedMode は文字列をFeedModeに変換する。未知の値はエラーを返す。
func ParseFeedMode(s string) (FeedMode, error) {
	m := FeedMode(s)
	switch m {
	case FeedModeJob, FeedModeSeeker, FeedModeSaved, FeedModeFavorited:
		return m, nil
	}
	return "", fmt.Errorf("unknown feed mode %q", s)
}

// FeedFilters はフィードの絞り込み条件を表す。
// カーソルはこのフィルタ集合に束縛され、異なるフィルタでの再利用はできない。
type FeedFilters struct {
	Category string
	PosterID string
}

// FeedEntry はフィード1件分の求人とメディアURLを表す。
// URLは取得時に署名付きで解決され、取得できない場合はnilになる。
type FeedEntry struct {
	Job
	ThumbnailURL *string
	VideoURL     *string
	// RelatedAt はsaved/favoritedモードにおける関係作成日時。
	// それ以外のモードではゼロ値。
	RelatedAt time.Time
}

// FeedPage はフィード1ページ分の結果を表す。
// NextCursorがnilの場合、後続ページは存在しない。
type FeedPage struct {
	Entries    []FeedEntry
	NextCursor *string
}
