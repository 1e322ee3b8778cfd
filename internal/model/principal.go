package model

// Principal は検証済みトークンから導出されたリクエスト単位の認証主体を表す。
// リクエストコンテキストに格納され、レスポンス完了とともに破棄される。
// 永続化されることはない。
type Principal struct {
	UserID string
	Roles  []Role
}

// HasRole は指定ロールを保持しているかどうかを返す。
func (p Principal) HasRole(role Role) bool {
	for _, r := range p.Roles {
		if r == role {
			return true
		}
	}
	return false
}
