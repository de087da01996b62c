package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// クライアントに表示する原因カテゴリと対処方法を含む。
// 内部ストレージのエラー詳細はここに含めず、ログにのみ記録する。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, job, feed, system
	Action   string // クライアント向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeJobNotFound        = "JOB_NOT_FOUND"
	ErrCodeMediaNotFound      = "MEDIA_NOT_FOUND"
	ErrCodeForbidden          = "FORBIDDEN"
	ErrCodeInvalidTransition  = "INVALID_TRANSITION"
	ErrCodeInvalidCursor      = "INVALID_CURSOR"
	ErrCodeValidation         = "VALIDATION_ERROR"
	ErrCodeStorageUnavailable = "STORAGE_UNAVAILABLE"
	ErrCodeInvalidMode        = "INVALID_MODE"
)

// NewJobNotFoundError は求人未検出エラーを生成する。
func NewJobNotFoundError(jobID string) *APIError {
	return &APIError{
		Code:     ErrCodeJobNotFound,
		Message:  fmt.Sprintf("指定された求人が見つかりません: %s", jobID),
		Category: "job",
		Action:   "求人IDを確認してください。",
	}
}

// NewMediaNotFoundError はメディアアセット未検出エラーを生成する。
func NewMediaNotFoundError(jobID string, kind MediaKind) *APIError {
	return &APIError{
		Code:     ErrCodeMediaNotFound,
		Message:  fmt.Sprintf("指定されたメディアが見つかりません: %s/%s", jobID, kind),
		Category: "job",
		Action:   "求人IDとメディア種別を確認してください。",
	}
}

// NewForbiddenError は権限不足エラーを生成する。
func NewForbiddenError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeForbidden,
		Message:  fmt.Sprintf("この操作を実行する権限がありません: %s", reason),
		Category: "auth",
		Action:   "操作対象の所有者または管理者のアカウントで実行してください。",
	}
}

// NewInvalidTransitionError は状態遷移違反エラーを生成する。
func NewInvalidTransitionError(from, to JobStatus) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidTransition,
		Message:  fmt.Sprintf("求人の状態を %s から %s に変更することはできません。", from, to),
		Category: "job",
		Action:   "求人の現在の状態を確認してください。closedからの復帰はできません。",
	}
}

// NewInvalidCursorError は不正カーソルエラーを生成する。
// カーソルの改竄・破損、および発行時と異なるモード/フィルタでの再利用が対象。
func NewInvalidCursorError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidCursor,
		Message:  fmt.Sprintf("無効なカーソルです: %s", reason),
		Category: "feed",
		Action:   "カーソルを指定せずに先頭ページから取得し直してください。",
	}
}

// NewValidationError は入力検証エラーを生成する。
func NewValidationError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeValidation,
		Message:  fmt.Sprintf("リクエスト内容が不正です: %s", reason),
		Category: "validation",
		Action:   "リクエストの内容を修正して再度お試しください。",
	}
}

// NewInvalidModeError は未知のフィードモードエラーを生成する。
func NewInvalidModeError(mode string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidMode,
		Message:  fmt.Sprintf("無効なフィードモードです: %s", mode),
		Category: "validation",
		Action:   "モードには job、seeker、saved、favorited のいずれかを指定してください。",
	}
}

// NewStorageUnavailableError はストレージ接続不能エラーを生成する。
// 呼び出し側はバックオフ付きでリトライしてよい。
func NewStorageUnavailableError() *APIError {
	return &APIError{
		Code:     ErrCodeStorageUnavailable,
		Message:  "データストアへの接続に失敗しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}
