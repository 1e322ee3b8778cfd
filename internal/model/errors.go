package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeAuthenticationFailed = "AUTHENTICATION_FAILED"
	ErrCodeEmailTaken           = "EMAIL_TAKEN"
	ErrCodeProviderConflict     = "PROVIDER_CONFLICT"
	ErrCodeMissingEmail         = "MISSING_EMAIL"
	ErrCodeUnauthenticated      = "UNAUTHENTICATED"
	ErrCodeForbidden            = "FORBIDDEN"
	ErrCodeValidationFailed     = "VALIDATION_FAILED"
	ErrCodeUserNotFound         = "USER_NOT_FOUND"
	ErrCodeInternal             = "INTERNAL_ERROR"
)

// NewAuthenticationFailedError は認証失敗エラーを生成する。
// メールアドレス不明とパスワード不一致のどちらでも必ず同一内容を返し、
// どちらの要素が誤っていたかを呼び出し元に漏らさない。
func NewAuthenticationFailedError() *APIError {
	return &APIError{
		Code:     ErrCodeAuthenticationFailed,
		Message:  "メールアドレスまたはパスワードが正しくありません。",
		Category: "auth",
		Action:   "入力内容を確認して再度お試しください。",
	}
}

// NewEmailTakenError はメールアドレス重複エラーを生成する。
func NewEmailTakenError() *APIError {
	return &APIError{
		Code:     ErrCodeEmailTaken,
		Message:  "このメールアドレスは既に登録されています。",
		Category: "validation",
		Action:   "別のメールアドレスを使用するか、ログインしてください。",
	}
}

// NewProviderConflictError はプロバイダー不一致エラーを生成する。
// 登録元プロバイダー名は秘密情報ではないためメッセージに含める。
func NewProviderConflictError(provider string) *APIError {
	return &APIError{
		Code:     ErrCodeProviderConflict,
		Message:  fmt.Sprintf("このメールアドレスは %s アカウントで登録済みです。", provider),
		Category: "auth",
		Action:   fmt.Sprintf("%s アカウントでログインしてください。", provider),
	}
}

// NewMissingEmailError はプロバイダーからメールアドレスを取得できなかった場合のエラーを生成する。
func NewMissingEmailError() *APIError {
	return &APIError{
		Code:     ErrCodeMissingEmail,
		Message:  "プロバイダーからメールアドレスを取得できませんでした。",
		Category: "auth",
		Action:   "プロバイダー側でメールアドレスの公開設定を確認してください。",
	}
}

// NewUnauthenticatedError は未認証エラーを生成する。
func NewUnauthenticatedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthenticated,
		Message:  "認証が必要です。",
		Category: "auth",
		Action:   "ログインしてください。",
	}
}

// NewForbiddenError は権限不足エラーを生成する。
func NewForbiddenError() *APIError {
	return &APIError{
		Code:     ErrCodeForbidden,
		Message:  "この操作を行う権限がありません。",
		Category: "auth",
		Action:   "管理者に問い合わせてください。",
	}
}

// NewValidationError は入力検証エラーを生成する。
func NewValidationError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeValidationFailed,
		Message:  fmt.Sprintf("入力内容が正しくありません: %s", reason),
		Category: "validation",
		Action:   "入力内容を確認してください。",
	}
}

// NewUserNotFoundError はユーザー未検出エラーを生成する。
func NewUserNotFoundError(id string) *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  fmt.Sprintf("指定されたユーザーが見つかりません: %s", id),
		Category: "auth",
		Action:   "ユーザーIDを確認してください。",
	}
}
