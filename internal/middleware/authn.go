package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/hitoshi/fittrack/internal/model"
	"github.com/hitoshi/fittrack/internal/token"
)

// TokenVerifier はアクセストークン検証のインターフェース。
// token.Codecの部分集合として定義する。
type TokenVerifier interface {
	Verify(tokenString string) (*token.VerifiedClaims, error)
}

// AuthnMetrics はトークン検証イベントのメトリクス記録インターフェース。
type AuthnMetrics interface {
	RecordTokenRejected()
}

// NewAuthnMiddleware はAuthorizationヘッダーのBearerトークンを検証し、
// 認証主体をリクエストコンテキストに注入するミドルウェアを返す。
//
// このミドルウェアはリクエストを拒否しない。ヘッダーがない、形式が不正、
// トークンが無効・期限切れのいずれの場合も匿名のままハンドラーチェーンを
// 続行し、拒否の判断は認可ミドルウェアに委ねる。
// metricsはnilでもよい（記録をスキップする）。
func NewAuthnMiddleware(verifier TokenVerifier, metrics AuthnMetrics) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, ok := bearerToken(r)
			if !ok {
				next.ServeHTTP(w, r)
				return
			}

			claims, err := verifier.Verify(raw)
			if err != nil {
				// 無効なトークンは匿名として扱う
				if metrics != nil {
					metrics.RecordTokenRejected()
				}
				slog.Debug("rejected bearer token",
					slog.String("path", r.URL.Path),
				)
				next.ServeHTTP(w, r)
				return
			}

			roles := make([]model.Role, 0, len(claims.Roles()))
			for _, name := range claims.Roles() {
				role := model.Role(name)
				if role.IsValid() {
					roles = append(roles, role)
				}
			}
			// 有効なロールを持たないトークンは匿名として扱う
			if len(roles) == 0 {
				next.ServeHTTP(w, r)
				return
			}

			principal := &model.Principal{
				UserID: claims.Subject(),
				Roles:  roles,
			}
			next.ServeHTTP(w, r.WithContext(ContextWithPrincipal(r.Context(), principal)))
		})
	}
}

// bearerToken はAuthorizationヘッダーからBearerトークンを抽出する。
// スキーム名の大文字小文字は区別しない。
func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", false
	}
	scheme, rest, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	raw := strings.TrimSpace(rest)
	if raw == "" {
		return "", false
	}
	return raw, true
}
