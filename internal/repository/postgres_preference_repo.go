package repository

import (
	"context"
	"database/sql"
	"fmt"
)

// PostgresPreferenceRepo はPostgreSQLを使用したユーザー設定リポジトリ。
// ページサイズ等の小さなキーバリューを保持する。最後の書き込みが勝つ。
type PostgresPreferenceRepo struct {
	db *sql.DB
}

// NewPostgresPreferenceRepo はPostgresPreferenceRepoを生成する。
func NewPostgresPreferenceRepo(db *sql.DB) *PostgresPreferenceRepo {
	return &PostgresPreferenceRepo{db: db}
}

// Get は指定ユーザーの設定値を取得する。未設定の場合は空文字列を返す。
func (r *PostgresPreferenceRepo) Get(ctx context.Context, userID, key string) (string, error) {
	var value string
	err := r.db.QueryRowContext(ctx,
		`SELECT value FROM preferences WHERE user_id = $1 AND key = $2`,
		userID, key,
	).Scan(&value)

	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get preference: %w", err)
	}
	return value, nil
}

// Set は指定ユーザーの設定値を保存する。
func (r *PostgresPreferenceRepo) Set(ctx context.Context, userID, key, value string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO preferences (user_id, key, value, updated_at)
		 VALUES ($1, $2, $3, now())
		 ON CONFLICT (user_id, key)
		 DO UPDATE SET value = EXCLUDED.value, updated_at = now()`,
		userID, key, value,
	)
	if err != nil {
		return fmt.Errorf("failed to set preference: %w", err)
	}
	return nil
}

// compile-time interface check
var _ PreferenceRepository = (*PostgresPreferenceRepo)(nil)
