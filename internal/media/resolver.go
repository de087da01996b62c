// Package media はメディアアセット参照の解決を提供する。
//
// サービスはアセットのバイト列を一切転送しない。求人レコードが保持する
// ストレージキーを、取得時に時限付きの署名URLへ解決するだけである。
package media

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// 存在確認結果のキャッシュ値。
const (
	probeResultOK      = "ok"
	probeResultMissing = "missing"
)

// ProbeCache はストレージオブジェクトの存在確認結果のキャッシュインターフェース。
// キャッシュが利用できない構成ではnilを渡してよい（毎回プローブする）。
type ProbeCache interface {
	// Get はキャッシュされた確認結果を返す。ヒットしない場合はfalseを返す。
	Get(ctx context.Context, storageKey string) (string, bool)
	// Set は確認結果を記録する。失敗してもエラーは伝播しない。
	Set(ctx context.Context, storageKey, result string)
}

// ResolverConfig はResolverの設定を保持する。
type ResolverConfig struct {
	// BaseURL はメディアストレージの公開エンドポイント。
	BaseURL string
	// SigningSecret は署名URLのHMAC鍵。ストレージ側と共有する。
	SigningSecret string
	// URLTTL は署名URLの有効期間。
	URLTTL time.Duration
}

// Resolver はストレージキーを署名付き取得URLへ解決する。
type Resolver struct {
	baseURL string
	secret  []byte
	ttl     time.Duration
	client  *http.Client
	cache   ProbeCache

	// now はテストで時刻を固定するためのフック。
	now func() time.Time
}

// NewResolver はResolverを生成する。
// clientにはSSRF防止付きのHTTPクライアントを渡す（security.OutboundGuard参照）。
// cacheはnil許容。
func NewResolver(cfg ResolverConfig, client *http.Client, cache ProbeCache) *Resolver {
	return &Resolver{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		secret:  []byte(cfg.SigningSecret),
		ttl:     cfg.URLTTL,
		client:  client,
		cache:   cache,
		now:     time.Now,
	}
}

// Resolve はストレージキーを署名付きURLに解決する。
// オブジェクトの不在が確認できた場合はnilを返す。壊れたサムネイルで
// フィードページ全体を失敗させないため、このメソッドはエラーを返さない。
// プローブ自体が失敗した場合（ストレージ一時障害など）は不在と断定せず、
// 署名URLをそのまま返す。
func (r *Resolver) Resolve(ctx context.Context, storageKey string) *string {
	if storageKey == "" {
		return nil
	}

	if r.cache != nil {
		if result, ok := r.cache.Get(ctx, storageKey); ok {
			if result == probeResultMissing {
				return nil
			}
			url := r.signedURL(storageKey)
			return &url
		}
	}

	url := r.signedURL(storageKey)

	switch r.probe(ctx, url) {
	case probeResultOK:
		if r.cache != nil {
			r.cache.Set(ctx, storageKey, probeResultOK)
		}
		return &url
	case probeResultMissing:
		slog.Warn("media object missing in storage",
			slog.String("storage_key", storageKey),
		)
		if r.cache != nil {
			r.cache.Set(ctx, storageKey, probeResultMissing)
		}
		return nil
	default:
		// プローブ不能。不在をキャッシュせず、URLを楽観的に返す。
		return &url
	}
}

// signedURL はキーと有効期限からHMAC-SHA256署名付きURLを構築する。
func (r *Resolver) signedURL(storageKey string) string {
	exp := r.now().Add(r.ttl).Unix()

	mac := hmac.New(sha256.New, r.secret)
	fmt.Fprintf(mac, "%s\n%d", storageKey, exp)
	sig := hex.EncodeToString(mac.Sum(nil))

	return fmt.Sprintf("%s/%s?exp=%d&sig=%s", r.baseURL, storageKey, exp, sig)
}

// probe はHEADリクエストでオブジェクトの存在を確認する。
// バイト列は転送しない。
func (r *Resolver) probe(ctx context.Context, url string) string {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return ""
	}

	resp, err := r.client.Do(req)
	if err != nil {
		slog.Warn("media probe failed",
			slog.String("error", err.Error()),
		)
		return ""
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return probeResultOK
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		return probeResultMissing
	default:
		return ""
	}
}
