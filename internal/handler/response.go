package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/hitoshi/fittrack/internal/middleware"
	"github.com/hitoshi/fittrack/internal/model"
)

// userResponse はユーザー情報のレスポンス。パスワードハッシュは含めない。
type userResponse struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	FirstName string    `json:"firstName"`
	LastName  string    `json:"lastName"`
	Role      string    `json:"role"`
	Provider  string    `json:"provider"`
	AvatarURL string    `json:"avatarUrl,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// toUserResponse はドメインのUserをレスポンス型に変換する。
func toUserResponse(user *model.User) *userResponse {
	return &userResponse{
		ID:        user.ID,
		Email:     user.Email,
		FirstName: user.FirstName,
		LastName:  user.LastName,
		Role:      string(user.Role),
		Provider:  user.Provider,
		AvatarURL: user.AvatarURL,
		CreatedAt: user.CreatedAt,
	}
}

// writeJSON はJSONレスポンスを書き込む。
func writeJSON(w http.ResponseWriter, statusCode int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(body)
}

// handleServiceError はサービス層のエラーをHTTPレスポンスに変換する。
// APIError以外のエラーは詳細を隠して500を返す。
func handleServiceError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		middleware.WriteInternalServerError(w)
		return
	}
	middleware.WriteErrorResponse(w, statusForCode(apiErr.Code), apiErr)
}

// statusForCode はエラーコードをHTTPステータスコードに対応づける。
func statusForCode(code string) int {
	switch code {
	case model.ErrCodeAuthenticationFailed, model.ErrCodeUnauthenticated:
		return http.StatusUnauthorized
	case model.ErrCodeForbidden:
		return http.StatusForbidden
	case model.ErrCodeEmailTaken, model.ErrCodeProviderConflict,
		model.ErrCodeMissingEmail, model.ErrCodeValidationFailed:
		return http.StatusBadRequest
	case model.ErrCodeUserNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
