// Package model はドメインモデルを定義する。
package model

import "time"

// Role はユーザーの権限ロールを表す。
type Role string

const (
	// RoleUser は一般ユーザーロール。
	RoleUser Role = "USER"
	// RoleAdmin は管理者ロール。
	RoleAdmin Role = "ADMIN"
)

// IsValid は既知のロールかどうかを返す。
func (r Role) IsValid() bool {
	return r == RoleUser || r == RoleAdmin
}

// ProviderLocal はローカル登録（メールアドレス＋パスワード）を表すプロバイダー名。
// 外部IdP経由のユーザーは"google"等のプロバイダー名を持つ。
const ProviderLocal = "local"

// User はサービス利用ユーザーを表す。
// Providerはアカウント作成時に固定され、以後変更されない。
// PasswordHashは外部IdP経由のアカウントでは空になる。
type User struct {
	ID             string
	Email          string
	PasswordHash   string
	FirstName      string
	LastName       string
	Role           Role
	Provider       string
	ProviderUserID string
	AvatarURL      string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
