// Package auth は認証のビジネスロジックを提供する。
//
// ローカル認証（メールアドレス＋パスワード）と外部IdP認証（OAuth）を
// 単一のユーザーレコードに統合する。どちらの経路でも最終的に
// 署名付きアクセストークンを発行する。
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/fittrack/internal/model"
	"github.com/hitoshi/fittrack/internal/password"
	"github.com/hitoshi/fittrack/internal/repository"
	"github.com/hitoshi/fittrack/internal/security"
)

// FederatedProfile は外部IdPから取得したプロフィールアサーションを表す。
type FederatedProfile struct {
	Provider       string
	ProviderUserID string
	Email          string
	DisplayName    string
	AvatarURL      string
}

// OAuthProvider はOAuth認証プロバイダーのインターフェース。
// Google, GitHub等の複数IdPに対応するための抽象化。
type OAuthProvider interface {
	// Name はプロバイダー名（"google", "github"等）を返す。
	Name() string
	// LoginURL はOAuth認証URLを生成する。
	LoginURL(state string) string
	// ExchangeCode は認可コードをトークンに交換し、プロフィールを取得する。
	ExchangeCode(ctx context.Context, code string) (*FederatedProfile, error)
}

// TokenIssuer はアクセストークン発行のインターフェース。
// token.Codecの部分集合として定義する。
type TokenIssuer interface {
	Generate(subjectID string, roles []string) (string, error)
}

// MetricsRecorder は認証イベントのメトリクス記録インターフェース。
type MetricsRecorder interface {
	RecordRegistration()
	RecordLoginSuccess()
	RecordLoginFailure()
	RecordFederatedLogin(provider string)
	RecordProviderConflict(provider string)
}

// provisionRetryDelay は同時プロビジョニングレース検出後の再検索までの待機時間。
// 永続化層の読み取り遅延（read-after-write lag）を吸収する。
const provisionRetryDelay = 300 * time.Millisecond

// Service は認証に関するビジネスロジックを提供する。
type Service struct {
	users     repository.UserRepository
	issuer    TokenIssuer
	sanitizer security.ProfileSanitizer
	providers map[string]OAuthProvider
	metrics   MetricsRecorder

	// sleep はテストでレース再試行の待機を短縮するために差し替え可能。
	sleep func(time.Duration)
}

// NewService はServiceを生成する。
// metricsはnilでもよい（記録をスキップする）。
func NewService(
	users repository.UserRepository,
	issuer TokenIssuer,
	sanitizer security.ProfileSanitizer,
	providers []OAuthProvider,
	metrics MetricsRecorder,
) *Service {
	byName := make(map[string]OAuthProvider, len(providers))
	for _, p := range providers {
		byName[p.Name()] = p
	}
	return &Service{
		users:     users,
		issuer:    issuer,
		sanitizer: sanitizer,
		providers: byName,
		metrics:   metrics,
		sleep:     time.Sleep,
	}
}

// Provider は指定名のOAuthProviderを返す。
func (s *Service) Provider(name string) (OAuthProvider, bool) {
	p, ok := s.providers[name]
	return p, ok
}

// NormalizeEmail はメールアドレスを正規化する（trim + 小文字化）。
// メールアドレスを受け取るすべての境界で適用する。
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// RegisterInput はローカル登録のリクエスト。
type RegisterInput struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
	Role      model.Role // 空の場合はUSER
}

// Register はローカルユーザーを登録し、アクセストークンを発行する。
// メールアドレス重複の場合はEMAIL_TAKENエラーを返す。
func (s *Service) Register(ctx context.Context, input RegisterInput) (*model.User, string, error) {
	email := NormalizeEmail(input.Email)

	existing, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return nil, "", fmt.Errorf("failed to check existing user: %w", err)
	}
	if existing != nil {
		return nil, "", model.NewEmailTakenError()
	}

	role := input.Role
	if role == "" {
		role = model.RoleUser
	}

	hash, err := password.Hash(input.Password)
	if err != nil {
		return nil, "", fmt.Errorf("failed to hash password: %w", err)
	}

	now := time.Now()
	user := &model.User{
		ID:           uuid.New().String(),
		Email:        email,
		PasswordHash: hash,
		FirstName:    strings.TrimSpace(input.FirstName),
		LastName:     strings.TrimSpace(input.LastName),
		Role:         role,
		Provider:     model.ProviderLocal,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.users.Create(ctx, user); err != nil {
		// 登録同士のレースも一意性制約で検出される
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return nil, "", model.NewEmailTakenError()
		}
		return nil, "", fmt.Errorf("failed to create user: %w", err)
	}

	tokenStr, err := s.issuer.Generate(user.ID, []string{string(user.Role)})
	if err != nil {
		return nil, "", fmt.Errorf("failed to issue token: %w", err)
	}

	if s.metrics != nil {
		s.metrics.RecordRegistration()
	}
	slog.Info("user registered",
		slog.String("user_id", user.ID),
	)

	return user, tokenStr, nil
}

// Login はローカル認証を行い、成功時にアクセストークンを発行する。
// メールアドレス不明・パスワード不一致・外部IdP専用アカウントのいずれでも
// 同一のAUTHENTICATION_FAILEDエラーを返し、失敗要因を区別させない。
func (s *Service) Login(ctx context.Context, email, plainPassword string) (*model.User, string, error) {
	user, err := s.users.FindByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		return nil, "", fmt.Errorf("failed to find user: %w", err)
	}

	if user == nil || user.PasswordHash == "" || !password.Verify(plainPassword, user.PasswordHash) {
		if s.metrics != nil {
			s.metrics.RecordLoginFailure()
		}
		return nil, "", model.NewAuthenticationFailedError()
	}

	tokenStr, err := s.issuer.Generate(user.ID, []string{string(user.Role)})
	if err != nil {
		return nil, "", fmt.Errorf("failed to issue token: %w", err)
	}

	if s.metrics != nil {
		s.metrics.RecordLoginSuccess()
	}
	slog.Info("user logged in",
		slog.String("user_id", user.ID),
	)

	return user, tokenStr, nil
}

// HandleCallback はOAuthコールバックを処理する。
// 認可コードをプロフィールに交換し、ユーザーレコードと照合・統合したうえで
// アクセストークンを発行する。
func (s *Service) HandleCallback(ctx context.Context, providerName, code string) (*model.User, string, error) {
	provider, ok := s.providers[providerName]
	if !ok {
		return nil, "", fmt.Errorf("unknown oauth provider: %s", providerName)
	}

	profile, err := provider.ExchangeCode(ctx, code)
	if err != nil {
		return nil, "", fmt.Errorf("failed to exchange oauth code: %w", err)
	}

	user, err := s.LinkProfile(ctx, profile)
	if err != nil {
		return nil, "", err
	}

	tokenStr, err := s.issuer.Generate(user.ID, []string{string(user.Role)})
	if err != nil {
		return nil, "", fmt.Errorf("failed to issue token: %w", err)
	}

	if s.metrics != nil {
		s.metrics.RecordFederatedLogin(providerName)
	}

	return user, tokenStr, nil
}

// LinkProfile は外部IdPのプロフィールアサーションをローカルのユーザーレコードと統合する。
//
//  1. メールアドレスが空の場合はMISSING_EMAILエラー
//  2. 未登録の場合は新規プロビジョニング（role = USER、パスワードなし）
//  3. 同一プロバイダーで登録済みの場合はプロフィールの可変フィールドのみ更新
//  4. 別プロバイダーで登録済みの場合はPROVIDER_CONFLICTエラー（何も変更しない）
//
// 同時プロビジョニングは永続化層の一意性制約で検出し、
// 固定待機後に一度だけ再検索する。
func (s *Service) LinkProfile(ctx context.Context, profile *FederatedProfile) (*model.User, error) {
	if strings.TrimSpace(profile.Email) == "" {
		return nil, model.NewMissingEmailError()
	}
	email := NormalizeEmail(profile.Email)

	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to find user by email: %w", err)
	}

	if user == nil {
		newUser := s.provisionUser(email, profile)
		err := s.users.Create(ctx, newUser)
		if err == nil {
			slog.Info("new user provisioned",
				slog.String("user_id", newUser.ID),
				slog.String("provider", profile.Provider),
			)
			return newUser, nil
		}
		if !errors.Is(err, repository.ErrDuplicateEmail) {
			return nil, fmt.Errorf("failed to create user: %w", err)
		}

		// 同時コールバックが先にレコードを作成した。読み取り遅延を
		// 考慮して一度だけ再検索し、それでも見つからなければ
		// 一般的な認証失敗として扱う。
		slog.Warn("concurrent provisioning detected, retrying lookup",
			slog.String("provider", profile.Provider),
		)
		s.sleep(provisionRetryDelay)

		user, err = s.users.FindByEmail(ctx, email)
		if err != nil {
			return nil, fmt.Errorf("failed to re-find user after provisioning race: %w", err)
		}
		if user == nil {
			return nil, model.NewAuthenticationFailedError()
		}
	}

	if user.Provider != profile.Provider {
		if s.metrics != nil {
			s.metrics.RecordProviderConflict(user.Provider)
		}
		return nil, model.NewProviderConflictError(user.Provider)
	}

	// 既存ユーザー: プロフィールの可変フィールドのみ更新する。
	// ロールとIDには触れない。
	s.applyProfile(user, profile)
	user.UpdatedAt = time.Now()
	if err := s.users.Update(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to update user profile: %w", err)
	}

	slog.Info("existing user logged in via provider",
		slog.String("user_id", user.ID),
		slog.String("provider", profile.Provider),
	)

	return user, nil
}

// GetUser は指定IDのユーザーを取得する。
func (s *Service) GetUser(ctx context.Context, id string) (*model.User, error) {
	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return nil, model.NewUserNotFoundError(id)
	}
	return user, nil
}

// ListUsers は全ユーザーを返す。
func (s *Service) ListUsers(ctx context.Context) ([]*model.User, error) {
	users, err := s.users.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return users, nil
}

// provisionUser はプロフィールアサーションから新規ユーザーを構築する。
func (s *Service) provisionUser(email string, profile *FederatedProfile) *model.User {
	first, last := s.splitDisplayName(profile.DisplayName, email)
	now := time.Now()
	return &model.User{
		ID:             uuid.New().String(),
		Email:          email,
		FirstName:      first,
		LastName:       last,
		Role:           model.RoleUser,
		Provider:       profile.Provider,
		ProviderUserID: profile.ProviderUserID,
		AvatarURL:      profile.AvatarURL,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// applyProfile は既存ユーザーにプロフィールの可変フィールドを反映する。
// 表示名が空の場合は名前を変更しない。
func (s *Service) applyProfile(user *model.User, profile *FederatedProfile) {
	name := s.sanitizer.SanitizeDisplayName(profile.DisplayName)
	if name != "" {
		parts := strings.SplitN(name, " ", 2)
		user.FirstName = parts[0]
		if len(parts) > 1 {
			user.LastName = parts[1]
		} else {
			user.LastName = ""
		}
	}
	user.AvatarURL = profile.AvatarURL
}

// splitDisplayName は表示名を最初の空白で姓名に分割する。
// 表示名が空の場合はメールアドレスのローカル部を名とする。
func (s *Service) splitDisplayName(displayName, email string) (first, last string) {
	name := s.sanitizer.SanitizeDisplayName(displayName)
	if name == "" {
		return strings.SplitN(email, "@", 2)[0], ""
	}
	parts := strings.SplitN(name, " ", 2)
	if len(parts) > 1 {
		return parts[0], parts[1]
	}
	return parts[0], ""
}
