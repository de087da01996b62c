package ingest

import (
	"fmt"
	"time"

	"github.com/dotrstudio/jobfeed/internal/model"
)

// FetchResult はHTTPステータスコードに基づくフェッチ結果の分類。
type FetchResult int

const (
	// FetchResultOK はフェッチ成功（200）。
	FetchResultOK FetchResult = iota
	// FetchResultStop はフェッチ停止が必要なステータス（404/410/401/403）。
	FetchResultStop
	// FetchResultBackoff はバックオフが必要なステータス（429/5xx）。
	FetchResultBackoff
	// FetchResultUnknown は未知のステータスコード。
	FetchResultUnknown
)

const (
	// initialBackoff は指数バックオフの初回遅延（30分）。
	initialBackoff = 30 * time.Minute
	// maxBackoff は指数バックオフの最大遅延（12時間）。
	maxBackoff = 12 * time.Hour
)

// ClassifyHTTPStatus はHTTPステータスコードをフェッチ結果に分類する。
func ClassifyHTTPStatus(statusCode int) FetchResult {
	switch {
	case statusCode == 200:
		return FetchResultOK
	case statusCode == 404 || statusCode == 410:
		return FetchResultStop
	case statusCode == 401 || statusCode == 403:
		return FetchResultStop
	case statusCode == 429:
		return FetchResultBackoff
	case statusCode >= 500:
		return FetchResultBackoff
	default:
		return FetchResultUnknown
	}
}

// CalculateBackoff は連続エラー回数に基づいて指数バックオフ遅延を計算する。
// 初回30分、2倍ずつ増加、最大12時間。
func CalculateBackoff(consecutiveErrors int) time.Duration {
	delay := initialBackoff
	for i := 0; i < consecutiveErrors; i++ {
		delay *= 2
		if delay > maxBackoff {
			return maxBackoff
		}
	}
	return delay
}

// ApplyStop は取り込み元のフェッチを停止する。
// fetch_statusをstoppedに設定し、エラーメッセージを記録する。
func ApplyStop(src *model.IngestSource, reason string, now time.Time) {
	src.FetchStatus = model.IngestFetchStatusStopped
	src.ErrorMessage = reason
	src.UpdatedAt = now
}

// ApplyBackoff は取り込み元にバックオフ戦略を適用する。
// 連続エラー回数をインクリメントし、指数バックオフでnext_fetch_atを設定する。
func ApplyBackoff(src *model.IngestSource, reason string, now time.Time) {
	src.ConsecutiveErrors++
	src.ErrorMessage = reason
	delay := CalculateBackoff(src.ConsecutiveErrors - 1)
	src.NextFetchAt = now.Add(delay)
	src.UpdatedAt = now
}

// ApplySuccess はフェッチ成功時に取り込み元の状態をリセットする。
// 連続エラー回数を0にリセットし、intervalの間隔でnext_fetch_atを設定する。
func ApplySuccess(src *model.IngestSource, interval time.Duration, now time.Time) {
	src.ConsecutiveErrors = 0
	src.ErrorMessage = ""
	src.NextFetchAt = now.Add(interval)
	src.UpdatedAt = now
}

// stopReason は停止系ステータスの理由文字列を生成する。
func stopReason(statusCode int) string {
	return fmt.Sprintf("HTTPステータス %d によりフェッチを停止しました", statusCode)
}
