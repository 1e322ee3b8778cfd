package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/fittrack/internal/auth"
	"github.com/hitoshi/fittrack/internal/middleware"
	"github.com/hitoshi/fittrack/internal/model"
)

// --- モック定義 ---

type mockAuthService struct {
	registerFn       func(ctx context.Context, input auth.RegisterInput) (*model.User, string, error)
	loginFn          func(ctx context.Context, email, password string) (*model.User, string, error)
	handleCallbackFn func(ctx context.Context, providerName, code string) (*model.User, string, error)
	providerFn       func(name string) (auth.OAuthProvider, bool)
}

func (m *mockAuthService) Register(ctx context.Context, input auth.RegisterInput) (*model.User, string, error) {
	if m.registerFn != nil {
		return m.registerFn(ctx, input)
	}
	return nil, "", nil
}

func (m *mockAuthService) Login(ctx context.Context, email, password string) (*model.User, string, error) {
	if m.loginFn != nil {
		return m.loginFn(ctx, email, password)
	}
	return nil, "", nil
}

func (m *mockAuthService) HandleCallback(ctx context.Context, providerName, code string) (*model.User, string, error) {
	if m.handleCallbackFn != nil {
		return m.handleCallbackFn(ctx, providerName, code)
	}
	return nil, "", nil
}

func (m *mockAuthService) Provider(name string) (auth.OAuthProvider, bool) {
	if m.providerFn != nil {
		return m.providerFn(name)
	}
	return nil, false
}

type stubProvider struct {
	name string
}

func (p *stubProvider) Name() string { return p.name }

func (p *stubProvider) LoginURL(state string) string {
	return "https://idp.example.com/authorize?state=" + state
}

func (p *stubProvider) ExchangeCode(ctx context.Context, code string) (*auth.FederatedProfile, error) {
	return nil, nil
}

// --- compile-time interface checks ---
var _ AuthServiceInterface = (*mockAuthService)(nil)
var _ auth.OAuthProvider = (*stubProvider)(nil)

func testUser() *model.User {
	return &model.User{
		ID:           "user-1",
		Email:        "taro@example.com",
		PasswordHash: "secret-hash",
		FirstName:    "Taro",
		Role:         model.RoleUser,
		Provider:     model.ProviderLocal,
	}
}

func oauthRouter(service AuthServiceInterface) http.Handler {
	h := NewAuthHandler(service, AuthHandlerConfig{BaseURL: "http://localhost:4200"})
	r := chi.NewRouter()
	r.Get("/auth/{provider}/login", h.OAuthLogin)
	r.Get("/auth/{provider}/callback", h.OAuthCallback)
	return r
}

// --- テスト ---

func TestRegisterHandler_Success_ReturnsToken(t *testing.T) {
	service := &mockAuthService{
		registerFn: func(_ context.Context, input auth.RegisterInput) (*model.User, string, error) {
			if input.Email != "taro@example.com" {
				t.Errorf("email = %q", input.Email)
			}
			return testUser(), "issued-token", nil
		},
	}
	h := NewAuthHandler(service, AuthHandlerConfig{})

	body := `{"email":"taro@example.com","password":"pass-word-123","firstName":"Taro"}`
	req := httptest.NewRequest(http.MethodPost, "/api/auth/register", strings.NewReader(body))
	w := httptest.NewRecorder()

	h.Register(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}

	var got authResponse
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if got.Token != "issued-token" {
		t.Errorf("token = %q", got.Token)
	}
	if got.User == nil || got.User.ID != "user-1" {
		t.Errorf("user = %+v", got.User)
	}
}

// レスポンスにパスワードハッシュが含まれないことを検証
func TestRegisterHandler_ResponseOmitsPasswordHash(t *testing.T) {
	service := &mockAuthService{
		registerFn: func(_ context.Context, _ auth.RegisterInput) (*model.User, string, error) {
			return testUser(), "issued-token", nil
		},
	}
	h := NewAuthHandler(service, AuthHandlerConfig{})

	body := `{"email":"taro@example.com","password":"pass-word-123"}`
	req := httptest.NewRequest(http.MethodPost, "/api/auth/register", strings.NewReader(body))
	w := httptest.NewRecorder()

	h.Register(w, req)

	if strings.Contains(w.Body.String(), "secret-hash") {
		t.Error("response must not contain the password hash")
	}
}

func TestRegisterHandler_Validation(t *testing.T) {
	h := NewAuthHandler(&mockAuthService{}, AuthHandlerConfig{})

	tests := []struct {
		name string
		body string
	}{
		{"不正なJSON", `{invalid`},
		{"メールアドレスなし", `{"password":"pass-word-123"}`},
		{"メールアドレス形式不正", `{"email":"not-an-email","password":"pass-word-123"}`},
		{"パスワード短すぎ", `{"email":"taro@example.com","password":"short"}`},
		{"ロール不正", `{"email":"taro@example.com","password":"pass-word-123","role":"SUPERUSER"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/auth/register", strings.NewReader(tt.body))
			w := httptest.NewRecorder()

			h.Register(w, req)

			if w.Result().StatusCode != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", w.Result().StatusCode)
			}
		})
	}
}

func TestRegisterHandler_EmailTaken_Returns400(t *testing.T) {
	service := &mockAuthService{
		registerFn: func(_ context.Context, _ auth.RegisterInput) (*model.User, string, error) {
			return nil, "", model.NewEmailTakenError()
		},
	}
	h := NewAuthHandler(service, AuthHandlerConfig{})

	body := `{"email":"taro@example.com","password":"pass-word-123"}`
	req := httptest.NewRequest(http.MethodPost, "/api/auth/register", strings.NewReader(body))
	w := httptest.NewRecorder()

	h.Register(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}

	var body2 middleware.ErrorResponseBody
	if err := json.NewDecoder(resp.Body).Decode(&body2); err != nil {
		t.Fatalf("failed to decode error: %v", err)
	}
	if body2.Code != model.ErrCodeEmailTaken {
		t.Errorf("code = %q", body2.Code)
	}
}

func TestLoginHandler_Success_ReturnsTokenAndUser(t *testing.T) {
	service := &mockAuthService{
		loginFn: func(_ context.Context, email, password string) (*model.User, string, error) {
			return testUser(), "issued-token", nil
		},
	}
	h := NewAuthHandler(service, AuthHandlerConfig{})

	body := `{"email":"taro@example.com","password":"pass-word-123"}`
	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(body))
	w := httptest.NewRecorder()

	h.Login(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}

	var got authResponse
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if got.Token == "" || got.User == nil {
		t.Error("response should contain token and user")
	}
}

func TestLoginHandler_AuthenticationFailed_Returns401(t *testing.T) {
	service := &mockAuthService{
		loginFn: func(_ context.Context, _, _ string) (*model.User, string, error) {
			return nil, "", model.NewAuthenticationFailedError()
		},
	}
	h := NewAuthHandler(service, AuthHandlerConfig{})

	body := `{"email":"taro@example.com","password":"wrong"}`
	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(body))
	w := httptest.NewRecorder()

	h.Login(w, req)

	if w.Result().StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Result().StatusCode)
	}
}

func TestOAuthLogin_RedirectsToProviderWithStateCookie(t *testing.T) {
	service := &mockAuthService{
		providerFn: func(name string) (auth.OAuthProvider, bool) {
			if name != "google" {
				return nil, false
			}
			return &stubProvider{name: "google"}, true
		},
	}
	router := oauthRouter(service)

	req := httptest.NewRequest(http.MethodGet, "/auth/google/login", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusTemporaryRedirect {
		t.Fatalf("status = %d, want 307", resp.StatusCode)
	}

	location := resp.Header.Get("Location")
	if !strings.HasPrefix(location, "https://idp.example.com/authorize?state=") {
		t.Errorf("Location = %q", location)
	}

	var stateCookie *http.Cookie
	for _, c := range resp.Cookies() {
		if c.Name == oauthStateCookie {
			stateCookie = c
		}
	}
	if stateCookie == nil || stateCookie.Value == "" {
		t.Fatal("state cookie should be set")
	}
	if !stateCookie.HttpOnly {
		t.Error("state cookie should be HttpOnly")
	}
	if !strings.HasSuffix(location, stateCookie.Value) {
		t.Error("redirect state should match cookie state")
	}
}

func TestOAuthLogin_UnknownProvider_Returns404(t *testing.T) {
	router := oauthRouter(&mockAuthService{})

	req := httptest.NewRequest(http.MethodGet, "/auth/unknown/login", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Result().StatusCode)
	}
}

func TestOAuthCallback_Success_RedirectsWithToken(t *testing.T) {
	service := &mockAuthService{
		handleCallbackFn: func(_ context.Context, providerName, code string) (*model.User, string, error) {
			if providerName != "google" || code != "auth-code" {
				t.Errorf("provider/code = %q/%q", providerName, code)
			}
			return testUser(), "issued-token", nil
		},
	}
	router := oauthRouter(service)

	req := httptest.NewRequest(http.MethodGet, "/auth/google/callback?code=auth-code&state=st-1", nil)
	req.AddCookie(&http.Cookie{Name: oauthStateCookie, Value: "st-1"})
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusTemporaryRedirect {
		t.Fatalf("status = %d, want 307", resp.StatusCode)
	}

	location, err := url.Parse(resp.Header.Get("Location"))
	if err != nil {
		t.Fatalf("invalid Location: %v", err)
	}
	if got := location.Query().Get("token"); got != "issued-token" {
		t.Errorf("token query = %q", got)
	}
}

func TestOAuthCallback_StateMismatch_RedirectsWithError(t *testing.T) {
	service := &mockAuthService{
		handleCallbackFn: func(_ context.Context, _, _ string) (*model.User, string, error) {
			t.Error("HandleCallback should not be called on state mismatch")
			return nil, "", nil
		},
	}
	router := oauthRouter(service)

	req := httptest.NewRequest(http.MethodGet, "/auth/google/callback?code=auth-code&state=tampered", nil)
	req.AddCookie(&http.Cookie{Name: oauthStateCookie, Value: "st-1"})
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusTemporaryRedirect {
		t.Fatalf("status = %d, want 307", resp.StatusCode)
	}

	location, err := url.Parse(resp.Header.Get("Location"))
	if err != nil {
		t.Fatalf("invalid Location: %v", err)
	}
	if location.Query().Get("error") == "" {
		t.Error("redirect should carry an error query")
	}
	if location.Query().Get("token") != "" {
		t.Error("redirect must not carry a token")
	}
}

// プロバイダー競合はエラーメッセージ付きでリダイレクトされることを検証
func TestOAuthCallback_ProviderConflict_RedirectsWithMessage(t *testing.T) {
	service := &mockAuthService{
		handleCallbackFn: func(_ context.Context, _, _ string) (*model.User, string, error) {
			return nil, "", model.NewProviderConflictError("google")
		},
	}
	router := oauthRouter(service)

	req := httptest.NewRequest(http.MethodGet, "/auth/github/callback?code=auth-code&state=st-1", nil)
	req.AddCookie(&http.Cookie{Name: oauthStateCookie, Value: "st-1"})
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	location, err := url.Parse(w.Result().Header.Get("Location"))
	if err != nil {
		t.Fatalf("invalid Location: %v", err)
	}
	if !strings.Contains(location.Query().Get("error"), "google") {
		t.Errorf("error query should name the original provider: %q", location.Query().Get("error"))
	}
}

func TestOAuthCallback_MissingCode_RedirectsWithError(t *testing.T) {
	router := oauthRouter(&mockAuthService{})

	req := httptest.NewRequest(http.MethodGet, "/auth/google/callback?state=st-1", nil)
	req.AddCookie(&http.Cookie{Name: oauthStateCookie, Value: "st-1"})
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	location, err := url.Parse(w.Result().Header.Get("Location"))
	if err != nil {
		t.Fatalf("invalid Location: %v", err)
	}
	if location.Query().Get("error") == "" {
		t.Error("redirect should carry an error query")
	}
}
