package model

import (
	"fmt"
	"time"
)

// RelationKind はユーザーと求人の関係種別を表す。
type RelationKind string

const (
	// RelationKindSaved は保存（あとで見る）関係。
	RelationKindSaved RelationKind = "saved"
	// RelationKindFavorited はお気に入り関係。
	RelationKindFavorited RelationKind = "favorited"
)

// ParseRelationKind は文字列をRelationKindに変換する。未知の値はエラーを返す。
func ParseRelationKind(s string) (RelationKind, error) {
	k := RelationKind(s)
	switch k {
	case RelationKindSaved, RelationKindFavorited:
		return k, nil
	}
	return "", fmt.Errorf("unknown relation kind %q", s)
}

// Relationship はユーザーと求人の関係（保存/お気に入り）を表す。
// (UserID, JobID, Kind) の組につき高々1行のみ存在する。
// 解除時は物理削除され、履歴は保持しない。
type Relationship struct {
	UserID    string
	JobID     string
	Kind      RelationKind
	CreatedAt time.Time
}

// MediaKind はメディアアセットの種別を表す。
type MediaKind string

const (
	// MediaKindThumbnail はサムネイル画像。
	MediaKindThumbnail MediaKind = "thumbnail"
	// MediaKindVideo は紹介動画。
	MediaKindVideo MediaKind = "video"
)

// ParseMediaKind は文字列をMediaKindに変換する。未知の値はエラーを返す。
func ParseMediaKind(s string) (MediaKind, error) {
	k := MediaKind(s)
	switch k {
	case MediaKindThumbnail, MediaKindVideo:
		return k, nil
	}
	return "", fmt.Errorf("unknown media kind %q", s)
}
