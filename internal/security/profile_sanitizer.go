// Package security はアプリケーションのセキュリティ機能を提供する。
//
// ProfileSanitizer は外部IdPから受け取った表示名などのプロフィール文字列を
// サニタイズする。IdPのアサーションは信頼境界の外から来るため、
// HTMLタグを一切許可しない許可リストベースのポリシーで除去してから
// 永続化する。
package security

import (
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// ProfileSanitizer はプロフィール文字列のサニタイズ機能のインターフェースを定義する。
type ProfileSanitizer interface {
	// SanitizeDisplayName は表示名からHTMLタグをすべて除去し、
	// 前後の空白を取り除いた文字列を返す。
	// 同一入力に対して常に同一出力を返す（冪等）。
	SanitizeDisplayName(name string) string
}

// profileSanitizer はProfileSanitizerの実装。
// bluemondayのStrictPolicyを保持し、スレッドセーフにサニタイズ処理を行う。
type profileSanitizer struct {
	policy *bluemonday.Policy
}

// NewProfileSanitizer はProfileSanitizerの新しいインスタンスを生成する。
// StrictPolicyはすべてのHTML要素と属性を除去する。
func NewProfileSanitizer() ProfileSanitizer {
	return &profileSanitizer{policy: bluemonday.StrictPolicy()}
}

// SanitizeDisplayName は表示名からHTMLタグをすべて除去する。
func (s *profileSanitizer) SanitizeDisplayName(name string) string {
	return strings.TrimSpace(s.policy.Sanitize(name))
}

// compile-time interface check
var _ ProfileSanitizer = (*profileSanitizer)(nil)
