// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"errors"

	"github.com/hitoshi/fittrack/internal/model"
)

// ErrDuplicateEmail はメールアドレスの一意性制約違反を示す。
// 同時提供（プロビジョニング）レースの検出に使用され、
// 永続化層の一意性制約が重複アカウントに対する唯一の防衛線となる。
var ErrDuplicateEmail = errors.New("email already exists")

// UserRepository はユーザーデータの永続化インターフェース。
// 呼び出し元は正規化済み（trim + 小文字化）のメールアドレスを渡すこと。
type UserRepository interface {
	// FindByEmail は指定メールアドレスのユーザーを取得する。見つからない場合はnilを返す。
	FindByEmail(ctx context.Context, email string) (*model.User, error)

	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// Create はユーザーを作成する。
	// メールアドレスの一意性制約違反の場合はErrDuplicateEmailを返す。
	Create(ctx context.Context, user *model.User) error

	// Update はユーザーの可変フィールド（名前、アバター、パスワードハッシュ、ロール）を更新する。
	// id、email、provider、provider_user_id、created_atは変更しない。
	Update(ctx context.Context, user *model.User) error

	// List は全ユーザーを作成日時の降順で返す。
	List(ctx context.Context) ([]*model.User, error)
}
