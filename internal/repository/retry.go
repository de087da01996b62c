package repository

import (
	"context"
	"database/sql/driver"
	"errors"
	"log/slog"
	"net"
	"time"

	"github.com/dotrstudio/jobfeed/internal/model"
)

// retryBackoff は接続断リトライまでの待機時間。
const retryBackoff = 100 * time.Millisecond

// isConnError は接続断クラスのエラー（再試行してよい失敗）かを判定する。
// クエリ自体の失敗（構文エラー、制約違反など）は対象外。
func isConnError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, driver.ErrBadConn) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

// doWithRetry は接続断クラスの失敗に限り、短いバックオフの後に1回だけ再試行する。
// 再試行後も接続できない場合はSTORAGE_UNAVAILABLEに変換して返す。
// ストレージエラーの詳細はここでログに記録し、レスポンスには載せない。
func doWithRetry(ctx context.Context, op func() error) error {
	err := op()
	if err == nil || !isConnError(err) {
		return err
	}

	slog.Warn("storage operation failed, retrying once",
		slog.String("error", err.Error()),
	)

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(retryBackoff):
	}

	err = op()
	if err == nil {
		return nil
	}
	if isConnError(err) {
		slog.Error("storage unreachable after retry",
			slog.String("error", err.Error()),
		)
		return model.NewStorageUnavailableError()
	}
	return err
}
