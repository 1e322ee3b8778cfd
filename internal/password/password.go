// Package password はパスワードの不可逆ハッシュ化と照合を提供する。
//
// ハッシュにはbcryptを使用する。コストパラメータはハッシュ文字列自体に
// 埋め込まれるため、照合時は保存済みハッシュのパラメータで再計算される。
// ダイジェスト比較はbcrypt内部で定数時間比較により行われ、
// 先頭バイト不一致での早期リターンによるタイミング差は生じない。
package password

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// Hash は平文パスワードのbcryptハッシュを生成する。
func Hash(plain string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hashed), nil
}

// Verify は平文パスワードが保存済みハッシュと一致するかどうかを返す。
// 完全一致の場合のみtrueを返す。
func Verify(plain, storedHash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(storedHash), []byte(plain)) == nil
}
