// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/fittrack/internal/auth"
	"github.com/hitoshi/fittrack/internal/middleware"
	"github.com/hitoshi/fittrack/internal/model"
)

const oauthStateCookie = "oauth_state"

// minPasswordLength はローカル登録で要求する最小パスワード長。
const minPasswordLength = 8

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	Register(ctx context.Context, input auth.RegisterInput) (*model.User, string, error)
	Login(ctx context.Context, email, password string) (*model.User, string, error)
	HandleCallback(ctx context.Context, providerName, code string) (*model.User, string, error)
	Provider(name string) (auth.OAuthProvider, bool)
}

// AuthHandlerConfig は認証ハンドラーの設定。
type AuthHandlerConfig struct {
	// BaseURL はOAuthコールバック後のリダイレクト先（フロントエンド）。
	BaseURL      string
	CookieSecure bool
}

// AuthHandler は認証関連のHTTPハンドラー。
type AuthHandler struct {
	service AuthServiceInterface
	config  AuthHandlerConfig
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(service AuthServiceInterface, config AuthHandlerConfig) *AuthHandler {
	return &AuthHandler{
		service: service,
		config:  config,
	}
}

// registerRequest はローカル登録のリクエストボディ。
type registerRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Role      string `json:"role"`
}

// loginRequest はローカルログインのリクエストボディ。
type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// authResponse はトークン発行を伴うレスポンス。
type authResponse struct {
	Token string        `json:"token"`
	User  *userResponse `json:"user"`
}

// Register はローカルユーザーを登録する。
// POST /api/auth/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewValidationError("リクエストボディを解釈できません"))
		return
	}

	if strings.TrimSpace(req.Email) == "" || !strings.Contains(req.Email, "@") {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewValidationError("メールアドレスの形式が正しくありません"))
		return
	}
	if len(req.Password) < minPasswordLength {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewValidationError("パスワードは8文字以上である必要があります"))
		return
	}
	role := model.Role(req.Role)
	if req.Role != "" && !role.IsValid() {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewValidationError("ロールが正しくありません"))
		return
	}

	user, token, err := h.service.Register(r.Context(), auth.RegisterInput{
		Email:     req.Email,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Role:      role,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, authResponse{
		Token: token,
		User:  toUserResponse(user),
	})
}

// Login はローカル認証を行い、アクセストークンを発行する。
// POST /api/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewValidationError("リクエストボディを解釈できません"))
		return
	}

	user, token, err := h.service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, authResponse{
		Token: token,
		User:  toUserResponse(user),
	})
}

// OAuthLogin は外部IdPのOAuthフローを開始する。
// GET /auth/{provider}/login
func (h *AuthHandler) OAuthLogin(w http.ResponseWriter, r *http.Request) {
	providerName := chi.URLParam(r, "provider")
	provider, ok := h.service.Provider(providerName)
	if !ok {
		middleware.WriteErrorResponse(w, http.StatusNotFound, model.NewValidationError("未対応のプロバイダーです"))
		return
	}

	state, err := generateState()
	if err != nil {
		slog.Error("failed to generate oauth state", slog.String("error", err.Error()))
		middleware.WriteInternalServerError(w)
		return
	}

	// stateをCookieに保存（CSRF対策）
	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookie,
		Value:    state,
		Path:     "/",
		MaxAge:   600, // 10分
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, provider.LoginURL(state), http.StatusTemporaryRedirect)
}

// OAuthCallback はOAuthコールバックを処理する。
// 成功時はフロントエンドに?token=付きで、失敗時は?error=付きでリダイレクトする。
// GET /auth/{provider}/callback?code=xxx&state=yyy
func (h *AuthHandler) OAuthCallback(w http.ResponseWriter, r *http.Request) {
	providerName := chi.URLParam(r, "provider")

	// 1. stateの検証（CSRF対策）
	state := r.URL.Query().Get("state")
	stateCookie, err := r.Cookie(oauthStateCookie)
	if err != nil || state == "" || stateCookie.Value != state {
		slog.Warn("oauth state mismatch",
			slog.String("provider", providerName),
		)
		h.redirectWithError(w, r, "不正なリクエストです。もう一度ログインしてください。")
		return
	}

	// stateクッキーを削除
	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	// 2. 認可コードの取得
	code := r.URL.Query().Get("code")
	if code == "" {
		h.redirectWithError(w, r, "認可コードがありません。")
		return
	}

	// 3. プロフィール統合とトークン発行
	_, token, err := h.service.HandleCallback(r.Context(), providerName, code)
	if err != nil {
		slog.Error("oauth callback failed",
			slog.String("provider", providerName),
			slog.String("error", err.Error()),
		)
		// プロバイダー競合等の既知エラーはメッセージをそのまま伝える
		var apiErr *model.APIError
		if errors.As(err, &apiErr) {
			h.redirectWithError(w, r, apiErr.Message)
			return
		}
		h.redirectWithError(w, r, "認証に失敗しました。")
		return
	}

	// 4. フロントエンドにトークン付きでリダイレクト
	http.Redirect(w, r, h.config.BaseURL+"?token="+url.QueryEscape(token), http.StatusTemporaryRedirect)
}

// redirectWithError はフロントエンドにエラーメッセージ付きでリダイレクトする。
func (h *AuthHandler) redirectWithError(w http.ResponseWriter, r *http.Request, message string) {
	http.Redirect(w, r, h.config.BaseURL+"?error="+url.QueryEscape(message), http.StatusTemporaryRedirect)
}

// generateState はCSRF対策用のランダムなstate値を生成する。
func generateState() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
