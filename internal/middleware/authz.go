package middleware

import (
	"net/http"
	"strings"

	"github.com/hitoshi/fittrack/internal/model"
)

// AccessClass はルートに要求されるアクセスレベル。
type AccessClass int

const (
	// Public は認証不要。
	Public AccessClass = iota
	// AuthenticatedAny は認証済みであればロールを問わない。
	AuthenticatedAny
	// UserOrAdmin はUSERまたはADMINロールを要求する。
	UserOrAdmin
	// AdminOnly はADMINロールを要求する。
	AdminOnly
)

// Decision は認可判定の結果。
type Decision int

const (
	// Allow はリクエストを許可する。
	Allow Decision = iota
	// DenyUnauthenticated は認証されていないため拒否する（401相当）。
	DenyUnauthenticated
	// DenyForbidden は認証済みだが権限不足のため拒否する（403相当）。
	DenyForbidden
)

// RouteRule はパスパターンとアクセスレベルの対応を表す。
// パターンは完全一致、または末尾が"/**"の場合はプレフィックス一致。
type RouteRule struct {
	Pattern string
	Class   AccessClass
}

// Policy は順序付きルールテーブルによる認可ポリシー。
// 最初に一致したルールが適用される。どのルールにも一致しない場合は
// AuthenticatedAnyとして扱う（安全側のデフォルト）。
type Policy struct {
	rules []RouteRule
}

// NewPolicy はPolicyを生成する。ルールの順序は評価順序を意味する。
func NewPolicy(rules []RouteRule) *Policy {
	return &Policy{rules: rules}
}

// classFor はパスに適用されるアクセスレベルを返す。
func (p *Policy) classFor(path string) AccessClass {
	for _, rule := range p.rules {
		if matchPattern(rule.Pattern, path) {
			return rule.Class
		}
	}
	return AuthenticatedAny
}

// matchPattern はパターンとパスを照合する。
// "/api/admin/**" は "/api/admin" 自身とその配下すべてに一致する。
func matchPattern(pattern, path string) bool {
	if prefix, ok := strings.CutSuffix(pattern, "/**"); ok {
		return path == prefix || strings.HasPrefix(path, prefix+"/")
	}
	return path == pattern
}

// Decide はリクエストパスと認証主体から認可判定を行う。
// principalがnilの場合は匿名リクエストとして扱う。
func (p *Policy) Decide(principal *model.Principal, path string) Decision {
	class := p.classFor(path)

	if class == Public {
		return Allow
	}
	if principal == nil {
		return DenyUnauthenticated
	}

	switch class {
	case AuthenticatedAny:
		return Allow
	case UserOrAdmin:
		if principal.HasRole(model.RoleUser) || principal.HasRole(model.RoleAdmin) {
			return Allow
		}
	case AdminOnly:
		if principal.HasRole(model.RoleAdmin) {
			return Allow
		}
	}
	return DenyForbidden
}

// NewAuthzMiddleware は認可ポリシーを適用するミドルウェアを返す。
// 未認証の拒否には401、権限不足の拒否には403を統一エラーフォーマットで返す。
func NewAuthzMiddleware(policy *Policy) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal := PrincipalFromContext(r.Context())

			switch policy.Decide(principal, r.URL.Path) {
			case Allow:
				next.ServeHTTP(w, r)
			case DenyUnauthenticated:
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthenticatedError())
			case DenyForbidden:
				WriteErrorResponse(w, http.StatusForbidden, model.NewForbiddenError())
			}
		})
	}
}
