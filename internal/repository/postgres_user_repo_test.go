package repository

import (
	"errors"
	"testing"

	"github.com/lib/pq"
)

// PostgresUserRepoはUserRepositoryインターフェースを満たすことを検証
func TestPostgresUserRepo_ImplementsInterface(t *testing.T) {
	var _ UserRepository = (*PostgresUserRepo)(nil)
}

// NewPostgresUserRepoが正しく初期化されることを検証
func TestNewPostgresUserRepo_Initializes(t *testing.T) {
	repo := NewPostgresUserRepo(nil)
	if repo == nil {
		t.Fatal("expected non-nil repo")
	}
}

// unique_violationエラーコードがErrDuplicateEmailとして扱えることを検証
func TestErrDuplicateEmail_IsSentinel(t *testing.T) {
	err := ErrDuplicateEmail
	if !errors.Is(err, ErrDuplicateEmail) {
		t.Error("ErrDuplicateEmail should match itself with errors.Is")
	}

	pqErr := &pq.Error{Code: uniqueViolation}
	if pqErr.Code != "23505" {
		t.Errorf("uniqueViolation = %q, want 23505", pqErr.Code)
	}
}
