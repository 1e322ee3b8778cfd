package handler

import (
	"context"
	"net/http"

	"github.com/hitoshi/fittrack/internal/middleware"
	"github.com/hitoshi/fittrack/internal/model"
)

// UserServiceInterface はユーザーハンドラーが必要とするサービスインターフェース。
type UserServiceInterface interface {
	GetUser(ctx context.Context, id string) (*model.User, error)
	ListUsers(ctx context.Context) ([]*model.User, error)
}

// UserHandler はユーザー管理のHTTPハンドラー。
type UserHandler struct {
	service UserServiceInterface
}

// NewUserHandler はUserHandlerを生成する。
func NewUserHandler(service UserServiceInterface) *UserHandler {
	return &UserHandler{
		service: service,
	}
}

// Profile は認証済みユーザー自身のプロフィールを返す。
// GET /api/users/profile
func (h *UserHandler) Profile(w http.ResponseWriter, r *http.Request) {
	principal := middleware.PrincipalFromContext(r.Context())
	if principal == nil {
		// 認可ミドルウェアで弾かれるはずだが、単体でも安全に振る舞う
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthenticatedError())
		return
	}

	user, err := h.service.GetUser(r.Context(), principal.UserID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toUserResponse(user))
}

// ListUsers は全ユーザーの一覧を返す。管理者専用。
// GET /api/admin/users
func (h *UserHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.service.ListUsers(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	responses := make([]*userResponse, len(users))
	for i, u := range users {
		responses[i] = toUserResponse(u)
	}
	writeJSON(w, http.StatusOK, responses)
}
