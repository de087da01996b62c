// Package cursor は不透明なフィードカーソルの発行と検証を提供する。
//
// カーソルはページ境界（ソートキーのタイムスタンプと求人ID）に加えて、
// 発行時のモードとフィルタ集合を封入する。HMAC-SHA256で署名されるため、
// クライアントによる改竄や、異なるモード/フィルタでの再利用は
// デコード時に検出されINVALID_CURSORになる。
package cursor

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"strings"
	"time"

	"github.com/dotrstudio/jobfeed/internal/model"
)

// Claims はカーソルに封入される内容を表す。
// KeyTimeはjob/seekerモードでは求人のcreated_at、
// saved/favoritedモードでは関係行のcreated_at。
type Claims struct {
	Mode     model.FeedMode
	Category string
	PosterID string
	UserID   string
	KeyTime  time.Time
	KeyID    string
}

// payload はカーソルのJSON表現。
// タイムスタンプはPostgreSQLのtimestamptz精度（マイクロ秒）で往復させる。
type payload struct {
	Mode     string `json:"m"`
	Category string `json:"c,omitempty"`
	PosterID string `json:"p,omitempty"`
	UserID   string `json:"u,omitempty"`
	KeyTime  int64  `json:"t"`
	KeyID    string `json:"i"`
}

// Codec はカーソルの符号化と復号を行う。
type Codec struct {
	secret []byte
}

// NewCodec はCodecを生成する。secretはサービス全体で共有される署名鍵。
func NewCodec(secret string) *Codec {
	return &Codec{secret: []byte(secret)}
}

// Encode はClaimsから署名付きカーソル文字列を生成する。
func (c *Codec) Encode(claims Claims) string {
	p := payload{
		Mode:     string(claims.Mode),
		Category: claims.Category,
		PosterID: claims.PosterID,
		UserID:   claims.UserID,
		KeyTime:  claims.KeyTime.UnixMicro(),
		KeyID:    claims.KeyID,
	}

	// Marshalが失敗するのはpayloadの型定義が壊れている場合のみ
	data, _ := json.Marshal(p)

	body := base64.RawURLEncoding.EncodeToString(data)
	sig := base64.RawURLEncoding.EncodeToString(c.sign(data))
	return body + "." + sig
}

// Decode はカーソル文字列を検証して復号する。
// 署名不一致・形式不正の場合はINVALID_CURSORを返す。
// モード/フィルタの束縛検証は呼び出し側（フィードサービス）が行う。
func (c *Codec) Decode(token string) (*Claims, error) {
	body, sigPart, ok := strings.Cut(token, ".")
	if !ok {
		return nil, model.NewInvalidCursorError("カーソルの形式が不正です")
	}

	data, err := base64.RawURLEncoding.DecodeString(body)
	if err != nil {
		return nil, model.NewInvalidCursorError("カーソルの復号に失敗しました")
	}
	sig, err := base64.RawURLEncoding.DecodeString(sigPart)
	if err != nil {
		return nil, model.NewInvalidCursorError("カーソルの復号に失敗しました")
	}

	if !hmac.Equal(sig, c.sign(data)) {
		return nil, model.NewInvalidCursorError("カーソルの署名が一致しません")
	}

	var p payload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, model.NewInvalidCursorError("カーソルの内容が読み取れません")
	}

	mode, err := model.ParseFeedMode(p.Mode)
	if err != nil {
		return nil, model.NewInvalidCursorError("カーソルのモードが不正です")
	}

	return &Claims{
		Mode:     mode,
		Category: p.Category,
		PosterID: p.PosterID,
		UserID:   p.UserID,
		KeyTime:  time.UnixMicro(p.KeyTime).UTC(),
		KeyID:    p.KeyID,
	}, nil
}

// sign はHMAC-SHA256署名を計算する。
func (c *Codec) sign(data []byte) []byte {
	mac := hmac.New(sha256.New, c.secret)
	mac.Write(data)
	return mac.Sum(nil)
}
