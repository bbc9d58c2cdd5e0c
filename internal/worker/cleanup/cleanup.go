// Package cleanup は期限切れデータの自動削除ジョブを提供する。
// 有効期限を過ぎたセッション行と、保持期間（デフォルト90日）を超過した
// ニュース記事を定期バッチで削除する。
package cleanup

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"
)

// SessionDeleter は期限切れセッションの削除を抽象化するインターフェース。
type SessionDeleter interface {
	DeleteExpired(ctx context.Context) (int64, error)
}

// Executor はSQLのExecContextを抽象化するインターフェース。
// *sql.DB や *sql.Tx を受け付けることができる。
type Executor interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// Job は期限切れセッションと古いニュース記事の自動削除ジョブ。
// 冪等であり、削除対象がない場合でもエラーにならない。
type Job struct {
	sessions          SessionDeleter
	db                Executor
	logger            *slog.Logger
	NewsRetentionDays int // ニュース記事の保持日数（デフォルト: 90）
}

// NewJob は新しいJobを生成する。
func NewJob(sessions SessionDeleter, db Executor, logger *slog.Logger) *Job {
	return &Job{
		sessions:          sessions,
		db:                db,
		logger:            logger,
		NewsRetentionDays: 90,
	}
}

// Run はクリーンアップを1回実行する。
// セッション削除が失敗してもニュース記事の削除は試みる。
func (j *Job) Run(ctx context.Context) error {
	start := time.Now()

	sessionCount, sessionErr := j.sessions.DeleteExpired(ctx)
	if sessionErr != nil {
		j.logger.Error("期限切れセッションの削除に失敗しました",
			slog.String("error", sessionErr.Error()),
		)
	}

	newsCount, newsErr := j.deleteOldNewsItems(ctx)
	if newsErr != nil {
		j.logger.Error("古いニュース記事の削除に失敗しました",
			slog.String("error", newsErr.Error()),
			slog.Int("retention_days", j.NewsRetentionDays),
		)
	}

	if sessionErr != nil || newsErr != nil {
		return fmt.Errorf("クリーンアップの実行に失敗: sessions=%v news=%v", sessionErr, newsErr)
	}

	j.logger.Info("クリーンアップジョブが完了しました",
		slog.Int64("deleted_sessions", sessionCount),
		slog.Int64("deleted_news_items", newsCount),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)

	return nil
}

// Start は指定間隔でRunを繰り返す。コンテキストのキャンセルで停止する。
// 起動直後にも1回実行する。
func (j *Job) Start(ctx context.Context, interval time.Duration) {
	if err := j.Run(ctx); err != nil {
		j.logger.Error("初回クリーンアップに失敗しました", slog.String("error", err.Error()))
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			j.logger.Info("クリーンアップワーカーを停止します")
			return
		case <-ticker.C:
			if err := j.Run(ctx); err != nil {
				j.logger.Error("クリーンアップに失敗しました", slog.String("error", err.Error()))
			}
		}
	}
}

func (j *Job) deleteOldNewsItems(ctx context.Context) (int64, error) {
	interval := fmt.Sprintf("%d days", j.NewsRetentionDays)

	result, err := j.db.ExecContext(ctx,
		`DELETE FROM news_items WHERE created_at < now() - $1::interval`, interval)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
