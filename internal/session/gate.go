// Package session は認証セッションのライフサイクル管理を提供する。
// ログイン時にバックエンドのトークンとユーザー情報をサーバー側セッションに保存し、
// 再検証・ロール認可・無効化を一手に引き受ける。
package session

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/stmercy/portal/internal/backend"
	"github.com/stmercy/portal/internal/model"
	"github.com/stmercy/portal/internal/repository"
)

// Backend はセッション管理が必要とするバックエンドAPI操作。
type Backend interface {
	Login(ctx context.Context, email, password string) (*backend.LoginResult, error)
	Verify(ctx context.Context, token string) (model.Identity, error)
}

// MetricsRecorder は認証系メトリクスの記録インターフェース。
type MetricsRecorder interface {
	RecordLoginSuccess()
	RecordLoginFailure()
	RecordSessionInvalidation()
}

type noopMetrics struct{}

func (noopMetrics) RecordLoginSuccess()        {}
func (noopMetrics) RecordLoginFailure()        {}
func (noopMetrics) RecordSessionInvalidation() {}

// Gate はセッションの作成・解決・検証・破棄を提供するサービス。
type Gate struct {
	backend  Backend
	sessions repository.SessionRepository
	maxAge   time.Duration
	logger   *slog.Logger
	metrics  MetricsRecorder
}

// NewGate はGateを生成する。metricsがnilの場合は記録しない。
func NewGate(b Backend, sessions repository.SessionRepository, maxAge time.Duration, logger *slog.Logger, metrics MetricsRecorder) *Gate {
	if metrics == nil {
		metrics = noopMetrics{}
	}
	return &Gate{
		backend:  b,
		sessions: sessions,
		maxAge:   maxAge,
		logger:   logger,
		metrics:  metrics,
	}
}

// Login は資格情報をバックエンドで検証し、新しいセッションを作成する。
// トークンとユーザー情報は必ず揃った状態で保存される。
func (g *Gate) Login(ctx context.Context, email, password string) (*model.Session, error) {
	result, err := g.backend.Login(ctx, email, password)
	if err != nil {
		g.metrics.RecordLoginFailure()
		return nil, err
	}

	now := time.Now()
	session := &model.Session{
		ID:        uuid.New().String(),
		Token:     result.Token,
		Identity:  result.User,
		ExpiresAt: now.Add(g.maxAge),
		CreatedAt: now,
	}

	if err := g.sessions.Create(ctx, session); err != nil {
		g.metrics.RecordLoginFailure()
		return nil, fmt.Errorf("failed to persist session: %w", err)
	}

	g.metrics.RecordLoginSuccess()
	g.logger.Info("ログイン成功",
		slog.String("user_id", session.Identity.ID),
		slog.String("role", string(session.Identity.Role)))

	return session, nil
}

// Current はセッションIDからセッションを解決する。
// 存在しない・期限切れ・トークンとユーザー情報が揃っていない場合は
// セッションを破棄してSESSION_EXPIREDを返す。
func (g *Gate) Current(ctx context.Context, sessionID string) (*model.Session, error) {
	if sessionID == "" {
		return nil, model.NewSessionExpiredError()
	}

	session, err := g.sessions.FindByID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	if session == nil {
		return nil, model.NewSessionExpiredError()
	}

	// トークンとユーザー情報は両方揃っているか、どちらも無いかのいずれか。
	// 片方だけの状態は不正とみなして破棄する。
	if !session.Authenticated() {
		g.Invalidate(ctx, sessionID)
		return nil, model.NewSessionExpiredError()
	}

	return session, nil
}

// Verify はセッションのトークンをバックエンドで再検証する。
// 検証に失敗した場合はセッションを破棄してSESSION_EXPIREDを返す（フェイルクローズ）。
// 成功時は最新のユーザー情報でセッションを更新する。
func (g *Gate) Verify(ctx context.Context, sessionID string) (*model.Session, error) {
	session, err := g.Current(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	identity, err := g.backend.Verify(ctx, session.Token)
	if err != nil {
		// バックエンド不達も含め、検証できないセッションは維持しない。
		g.logger.Warn("セッション検証に失敗", slog.String("session_id", sessionID), slog.Any("error", err))
		g.Invalidate(ctx, sessionID)
		return nil, model.NewSessionExpiredError()
	}

	if identity.ID != session.Identity.ID {
		g.logger.Warn("検証結果のユーザーIDがセッションと一致しない",
			slog.String("session_id", sessionID),
			slog.String("expected", session.Identity.ID),
			slog.String("actual", identity.ID))
		g.Invalidate(ctx, sessionID)
		return nil, model.NewSessionExpiredError()
	}

	session.Identity = identity
	if err := g.sessions.UpdateIdentity(ctx, sessionID, identity); err != nil {
		return nil, fmt.Errorf("failed to refresh session identity: %w", err)
	}

	return session, nil
}

// Authorize はセッションのロールが要求ロールと一致するか検証する。
// ロール比較は大文字小文字を区別しない。
func (g *Gate) Authorize(session *model.Session, required model.Role) error {
	if session == nil || !session.Authenticated() {
		return model.NewSessionExpiredError()
	}
	if !session.Identity.Role.Equals(required) {
		return model.NewForbiddenError(required)
	}
	return nil
}

// Logout はセッションを破棄する。セッションが存在しなくてもエラーにしない。
func (g *Gate) Logout(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return nil
	}
	if err := g.sessions.DeleteByID(ctx, sessionID); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// Invalidate はセッションを強制破棄する。
// バックエンドが401を返した場合のグローバル無効化に使用される。
// 削除の失敗はログに残すのみで呼び出し元には伝播しない。
func (g *Gate) Invalidate(ctx context.Context, sessionID string) {
	g.metrics.RecordSessionInvalidation()
	if err := g.sessions.DeleteByID(ctx, sessionID); err != nil {
		g.logger.Error("セッションの破棄に失敗", slog.String("session_id", sessionID), slog.Any("error", err))
	}
}

// DeleteExpired は期限切れセッションを削除し、削除件数を返す。
// バックグラウンドワーカーから定期的に呼び出される。
func (g *Gate) DeleteExpired(ctx context.Context) (int64, error) {
	count, err := g.sessions.DeleteExpired(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired sessions: %w", err)
	}
	return count, nil
}
