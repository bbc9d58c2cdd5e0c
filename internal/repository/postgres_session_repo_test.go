package repository

import (
	"testing"
	"time"

	"github.com/stmercy/portal/internal/model"
)

// PostgresSessionRepoはSessionRepositoryインターフェースを満たすことを検証
func TestPostgresSessionRepo_ImplementsInterface(t *testing.T) {
	var _ SessionRepository = (*PostgresSessionRepo)(nil)
}

// NewPostgresSessionRepoが正しく初期化されることを検証
func TestNewPostgresSessionRepo_Initializes(t *testing.T) {
	repo := NewPostgresSessionRepo(nil)
	if repo == nil {
		t.Fatal("expected non-nil repo")
	}
}

// Sessionモデルがトークンと検証済みIdentityを対で保持することを検証
func TestPostgresSessionRepo_SessionModel_Fields(t *testing.T) {
	now := time.Now()
	session := &model.Session{
		ID:    "sess-1",
		Token: "bearer-token",
		Identity: model.Identity{
			ID:   "u1",
			Name: "山田太郎",
			Role: model.RoleDoctor,
		},
		ExpiresAt: now.Add(time.Hour),
		CreatedAt: now,
	}

	if !session.Authenticated() {
		t.Error("session with token and identity should be authenticated")
	}
	if session.Identity.Role != model.RoleDoctor {
		t.Errorf("role = %q, want %q", session.Identity.Role, model.RoleDoctor)
	}
}
