// Package token は自己完結型アクセストークンの発行と検証を提供する。
//
// トークンはHMAC-SHA-256で署名されたJWT（ヘッダ・ペイロード・署名の
// ドット区切り3セグメント、URLセーフBase64）であり、subject・ロール・
// 発行時刻・有効期限をペイロードに含む。サーバー側には一切保存されず、
// 有効性はトークン自身の内容と署名鍵のみから決まる。
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken は署名不一致・構造不正・期限切れのいずれかを示す。
// 検証失敗の理由は呼び出し元に区別させない。
var ErrInvalidToken = errors.New("invalid token")

// minSecretLength は署名鍵の最小バイト数（256ビット）。
const minSecretLength = 32

// defaultTTL はトークンのデフォルト有効期間。
const defaultTTL = 24 * time.Hour

// tokenClaims はペイロードのワイヤフォーマット。
// sub, iat, expはRegisteredClaimsが担う。
type tokenClaims struct {
	Roles []string `json:"roles"`
	jwt.RegisteredClaims
}

// VerifiedClaims は検証に成功したトークンのクレームを保持する。
// フィールドは非公開であり、Verifyを通過しない限りクレームを読む手段はない。
type VerifiedClaims struct {
	subject string
	roles   []string
}

// Subject は検証済みのsubject（ユーザーID）を返す。
func (c *VerifiedClaims) Subject() string {
	return c.subject
}

// Roles は検証済みのロール一覧のコピーを返す。
func (c *VerifiedClaims) Roles() []string {
	out := make([]string, len(c.roles))
	copy(out, c.roles)
	return out
}

// Codec はアクセストークンの発行と検証を行う。
// 署名鍵と有効期間はプロセス起動時に固定され、以後変更されない。
// 全メソッドはI/Oを行わず、並行アクセスに対して安全。
type Codec struct {
	secret []byte
	ttl    time.Duration
}

// NewCodec はCodecを生成する。
// secretが256ビット未満の場合はエラーを返す。
// ttlが0以下の場合はデフォルト（24時間）を使用する。
func NewCodec(secret []byte, ttl time.Duration) (*Codec, error) {
	if len(secret) < minSecretLength {
		return nil, fmt.Errorf("signing secret must be at least %d bytes, got %d", minSecretLength, len(secret))
	}
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &Codec{secret: secret, ttl: ttl}, nil
}

// Generate はsubjectとロール一覧を埋め込んだ署名付きトークンを発行する。
// iat = 現在時刻、exp = 現在時刻 + TTL。
func (c *Codec) Generate(subjectID string, roles []string) (string, error) {
	now := time.Now()
	claims := tokenClaims{
		Roles: roles,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subjectID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.ttl)),
		},
	}

	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := t.SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Verify はトークンを検証し、成功時のみクレームを返す。
// 署名の再計算と定数時間比較、構造チェック、期限チェックを行う。
// いずれかに失敗した場合はErrInvalidTokenを返し、理由は区別しない。
func (c *Codec) Verify(tokenString string) (*VerifiedClaims, error) {
	claims := &tokenClaims{}
	t, err := jwt.ParseWithClaims(
		tokenString,
		claims,
		func(t *jwt.Token) (any, error) { return c.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	)
	if err != nil || !t.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Subject == "" {
		return nil, ErrInvalidToken
	}

	roles := make([]string, len(claims.Roles))
	copy(roles, claims.Roles)
	return &VerifiedClaims{subject: claims.Subject, roles: roles}, nil
}
