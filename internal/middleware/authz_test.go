package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hitoshi/fittrack/internal/model"
)

func testPolicy() *Policy {
	return NewPolicy([]RouteRule{
		{Pattern: "/healthz", Class: Public},
		{Pattern: "/auth/**", Class: Public},
		{Pattern: "/api/auth/**", Class: Public},
		{Pattern: "/metrics", Class: AdminOnly},
		{Pattern: "/api/admin/**", Class: AdminOnly},
		{Pattern: "/api/users/**", Class: UserOrAdmin},
	})
}

func anonymousPrincipal() *model.Principal { return nil }

func userPrincipal() *model.Principal {
	return &model.Principal{UserID: "u1", Roles: []model.Role{model.RoleUser}}
}

func adminPrincipal() *model.Principal {
	return &model.Principal{UserID: "a1", Roles: []model.Role{model.RoleAdmin}}
}

func TestPolicy_Decide(t *testing.T) {
	policy := testPolicy()

	tests := []struct {
		name      string
		principal *model.Principal
		path      string
		want      Decision
	}{
		{"公開パスは匿名で許可", anonymousPrincipal(), "/healthz", Allow},
		{"公開プレフィックスは匿名で許可", anonymousPrincipal(), "/api/auth/login", Allow},
		{"公開プレフィックスはプレフィックス自身にも一致", anonymousPrincipal(), "/api/auth", Allow},
		{"公開パスは認証済みでも許可", adminPrincipal(), "/api/auth/login", Allow},
		{"保護パスは匿名で401相当", anonymousPrincipal(), "/api/users/profile", DenyUnauthenticated},
		{"保護パスはUSERで許可", userPrincipal(), "/api/users/profile", Allow},
		{"保護パスはADMINでも許可", adminPrincipal(), "/api/users/profile", Allow},
		{"管理パスは匿名で401相当", anonymousPrincipal(), "/api/admin/users", DenyUnauthenticated},
		{"管理パスはUSERで403相当", userPrincipal(), "/api/admin/users", DenyForbidden},
		{"管理パスはADMINで許可", adminPrincipal(), "/api/admin/users", Allow},
		{"メトリクスは匿名で401相当", anonymousPrincipal(), "/metrics", DenyUnauthenticated},
		{"メトリクスはUSERで403相当", userPrincipal(), "/metrics", DenyForbidden},
		{"メトリクスはADMINで許可", adminPrincipal(), "/metrics", Allow},
		{"未定義パスは匿名で401相当", anonymousPrincipal(), "/api/unknown", DenyUnauthenticated},
		{"未定義パスは認証済みなら許可", userPrincipal(), "/api/unknown", Allow},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := policy.Decide(tt.principal, tt.path)
			if got != tt.want {
				t.Errorf("Decide(%v, %q) = %v, want %v", tt.principal, tt.path, got, tt.want)
			}
		})
	}
}

// ルールは定義順に評価され、最初に一致したものが適用されることを検証
func TestPolicy_FirstMatchWins(t *testing.T) {
	policy := NewPolicy([]RouteRule{
		{Pattern: "/api/admin/health", Class: Public},
		{Pattern: "/api/admin/**", Class: AdminOnly},
	})

	if got := policy.Decide(nil, "/api/admin/health"); got != Allow {
		t.Errorf("exact rule before prefix rule should win: got %v", got)
	}
	if got := policy.Decide(nil, "/api/admin/users"); got != DenyUnauthenticated {
		t.Errorf("prefix rule should apply to other paths: got %v", got)
	}
}

// "/**"パターンがプレフィックスの部分文字列に誤って一致しないことを検証
func TestMatchPattern_NoPartialSegmentMatch(t *testing.T) {
	if matchPattern("/api/admin/**", "/api/administrator") {
		t.Error("/api/administrator should not match /api/admin/**")
	}
	if !matchPattern("/api/admin/**", "/api/admin/users/123") {
		t.Error("/api/admin/users/123 should match /api/admin/**")
	}
	if matchPattern("/healthz", "/healthz/deep") {
		t.Error("exact pattern should not match subpaths")
	}
}

func TestAuthzMiddleware_DenyUnauthenticated_Returns401(t *testing.T) {
	mw := NewAuthzMiddleware(testPolicy())

	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not be called")
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/users/profile", nil)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", resp.StatusCode)
	}

	var body ErrorResponseBody
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode error response: %v", err)
	}
	if body.Code != model.ErrCodeUnauthenticated {
		t.Errorf("code = %q, want UNAUTHENTICATED", body.Code)
	}
}

func TestAuthzMiddleware_DenyForbidden_Returns403(t *testing.T) {
	mw := NewAuthzMiddleware(testPolicy())

	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not be called")
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/admin/users", nil)
	req = req.WithContext(ContextWithPrincipal(req.Context(), userPrincipal()))
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("status = %d, want 403", resp.StatusCode)
	}

	var body ErrorResponseBody
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode error response: %v", err)
	}
	if body.Code != model.ErrCodeForbidden {
		t.Errorf("code = %q, want FORBIDDEN", body.Code)
	}
}

func TestAuthzMiddleware_Allow_CallsHandler(t *testing.T) {
	mw := NewAuthzMiddleware(testPolicy())

	called := false
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if !called {
		t.Error("handler should be called for allowed request")
	}
}
