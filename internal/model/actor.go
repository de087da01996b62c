package model

import "fmt"

// ActorRole はリクエスト実行者のロールを表す。
// 認証自体はAPIゲートウェイ側の責務で、本サービスはゲートウェイが
// 付与したアクター情報を信頼して認可判定のみを行う。
type ActorRole string

const (
	// RoleEmployer は雇用主アカウント。求人の投稿が可能。
	RoleEmployer ActorRole = "employer"
	// RoleSeeker は求職者アカウント。
	RoleSeeker ActorRole = "seeker"
	// RoleAdmin は管理者アカウント。全求人の変更が可能。
	RoleAdmin ActorRole = "admin"
)

// ParseActorRole は文字列をActorRoleに変換する。未知の値はエラーを返す。
func ParseActorRole(s string) (ActorRole, error) {
	r := ActorRole(s)
	switch r {
	case RoleEmployer, RoleSeeker, RoleAdmin:
		return r, nil
	}
	return "", fmt.Errorf("unknown actor role %q", s)
}

// Actor はリクエストの実行者を表す。
// 暗黙のセッション状態は持たず、すべての操作に明示的に引き渡される。
type Actor struct {
	ID   string
	Role ActorRole
}

// IsAdmin は管理者かを返す。
func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdmin
}

// CanModify はactorがこの求人を変更できるかを返す。
// 投稿者本人または管理者のみが変更できる。
func (j *Job) CanModify(a Actor) bool {
	return a.IsAdmin() || j.IsOwner(a.ID)
}
