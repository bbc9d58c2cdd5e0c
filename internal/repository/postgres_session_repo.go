package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/stmercy/portal/internal/model"
)

// PostgresSessionRepo はPostgreSQLを使用したセッションリポジトリ。
// Identityはidentityカラム（JSONB）にシリアライズして保持し、
// トークンと必ず同一行で読み書きする。
type PostgresSessionRepo struct {
	db *sql.DB
}

// NewPostgresSessionRepo はPostgresSessionRepoを生成する。
func NewPostgresSessionRepo(db *sql.DB) *PostgresSessionRepo {
	return &PostgresSessionRepo{db: db}
}

// Create はセッションを作成する。
func (r *PostgresSessionRepo) Create(ctx context.Context, session *model.Session) error {
	identity, err := json.Marshal(session.Identity)
	if err != nil {
		return fmt.Errorf("failed to encode identity: %w", err)
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO sessions (id, token, identity, expires_at, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		session.ID, session.Token, identity, session.ExpiresAt, session.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

// FindByID は指定IDのセッションを取得する。期限切れの場合はnilを返す。
// identityカラムが壊れている行は未認証と等価であり、その場で削除してnilを返す。
func (r *PostgresSessionRepo) FindByID(ctx context.Context, id string) (*model.Session, error) {
	session := &model.Session{}
	var identity []byte

	err := r.db.QueryRowContext(ctx,
		`SELECT id, token, identity, expires_at, created_at
		 FROM sessions
		 WHERE id = $1 AND expires_at > now()`,
		id,
	).Scan(&session.ID, &session.Token, &identity, &session.ExpiresAt, &session.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find session: %w", err)
	}

	if err := json.Unmarshal(identity, &session.Identity); err != nil {
		// 片方だけ壊れた状態を残さない
		_ = r.DeleteByID(ctx, id)
		return nil, nil
	}

	return session, nil
}

// UpdateIdentity はセッションのIdentityを更新する。
func (r *PostgresSessionRepo) UpdateIdentity(ctx context.Context, id string, identity model.Identity) error {
	encoded, err := json.Marshal(identity)
	if err != nil {
		return fmt.Errorf("failed to encode identity: %w", err)
	}

	_, err = r.db.ExecContext(ctx,
		`UPDATE sessions SET identity = $2 WHERE id = $1`,
		id, encoded,
	)
	if err != nil {
		return fmt.Errorf("failed to update session identity: %w", err)
	}
	return nil
}

// DeleteByID は指定IDのセッションを削除する。
func (r *PostgresSessionRepo) DeleteByID(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM sessions WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// DeleteExpired は期限切れセッションを削除する。クリーンアップジョブから呼ばれる。
func (r *PostgresSessionRepo) DeleteExpired(ctx context.Context) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM sessions WHERE expires_at <= now()`,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired sessions: %w", err)
	}
	return result.RowsAffected()
}

// compile-time interface check
var _ SessionRepository = (*PostgresSessionRepo)(nil)
