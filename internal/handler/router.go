package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/fittrack/internal/middleware"
)

// HealthChecker はヘルスチェックに必要なインターフェース。
// *sql.DBがそのまま満たす。
type HealthChecker interface {
	PingContext(ctx context.Context) error
}

// DefaultRouteRules は認可ポリシーの順序付きルールテーブルを返す。
// 最初に一致したルールが適用される。どのルールにも一致しないパスは
// 認証済みであれば許可される。
func DefaultRouteRules() []middleware.RouteRule {
	return []middleware.RouteRule{
		{Pattern: "/healthz", Class: middleware.Public},
		{Pattern: "/auth/**", Class: middleware.Public},
		{Pattern: "/api/auth/**", Class: middleware.Public},
		{Pattern: "/metrics", Class: middleware.AdminOnly},
		{Pattern: "/api/admin/**", Class: middleware.AdminOnly},
		{Pattern: "/api/activities/**", Class: middleware.UserOrAdmin},
		{Pattern: "/api/goals/**", Class: middleware.UserOrAdmin},
		{Pattern: "/api/measurements/**", Class: middleware.UserOrAdmin},
		{Pattern: "/api/files/**", Class: middleware.UserOrAdmin},
		{Pattern: "/api/recommendations/**", Class: middleware.UserOrAdmin},
		{Pattern: "/api/users/**", Class: middleware.UserOrAdmin},
	}
}

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	Logger *slog.Logger

	// ミドルウェア依存
	TokenVerifier     middleware.TokenVerifier
	RouteRules        []middleware.RouteRule
	CORSAllowedOrigin string

	// メトリクス（nil可）
	AuthnMetrics   middleware.AuthnMetrics
	HTTPMetrics    middleware.HTTPMetrics
	MetricsHandler http.Handler

	// サービス
	AuthService AuthServiceInterface
	AuthConfig  AuthHandlerConfig
	UserService UserServiceInterface

	// ヘルスチェック
	Health HealthChecker
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	CORS → SecurityHeaders → Recovery → Authn → Logging → Authz
//
// AuthnはLoggingより先に実行する。リクエストログのuser_id属性は
// Authnが注入した認証主体から読み取るため。
// Authnはトークンを検証して認証主体を注入するだけでリクエストを拒否しない。
// 拒否の判断はAuthzがルールテーブルに基づいて行う。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewAuthnMiddleware(deps.TokenVerifier, deps.AuthnMetrics))
	r.Use(middleware.NewLoggingMiddleware(deps.Logger, deps.HTTPMetrics))

	rules := deps.RouteRules
	if rules == nil {
		rules = DefaultRouteRules()
	}
	r.Use(middleware.NewAuthzMiddleware(middleware.NewPolicy(rules)))

	authHandler := NewAuthHandler(deps.AuthService, deps.AuthConfig)
	userHandler := NewUserHandler(deps.UserService)

	// --- 公開ルート ---

	r.Get("/healthz", healthHandler(deps.Health))

	// ローカル認証
	r.Route("/api/auth", func(r chi.Router) {
		r.Post("/register", authHandler.Register)
		r.Post("/login", authHandler.Login)
	})

	// OAuthフロー
	r.Route("/auth/{provider}", func(r chi.Router) {
		r.Get("/login", authHandler.OAuthLogin)
		r.Get("/callback", authHandler.OAuthCallback)
	})

	// --- 保護ルート ---

	// ユーザー
	r.Get("/api/users/profile", userHandler.Profile)

	// 管理者
	r.Get("/api/admin/users", userHandler.ListUsers)

	// Prometheusスクレイプ（認可ポリシーでADMIN専用）
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	return r
}

// healthHandler はデータベース接続を確認するヘルスチェックハンドラーを返す。
func healthHandler(health HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if health != nil {
			if err := health.PingContext(r.Context()); err != nil {
				slog.Error("health check failed", slog.String("error", err.Error()))
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy"})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
