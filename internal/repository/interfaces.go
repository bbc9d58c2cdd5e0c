// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"

	"github.com/stmercy/portal/internal/model"
)

// SessionRepository はセッション（Credential+Identity対）の永続化インターフェース。
// トークンとIdentityは常に同一行で読み書きされ、片方だけの更新は存在しない。
type SessionRepository interface {
	// Create はセッションを作成する。
	Create(ctx context.Context, session *model.Session) error
	// FindByID は指定IDのセッションを取得する。期限切れ・未存在の場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Session, error)
	// UpdateIdentity はセッションのIdentityを更新する。verify成功時の再永続化に使用する。
	UpdateIdentity(ctx context.Context, id string, identity model.Identity) error
	// DeleteByID は指定IDのセッションを削除する。
	DeleteByID(ctx context.Context, id string) error
	// DeleteExpired は期限切れセッションを削除し、削除件数を返す。
	DeleteExpired(ctx context.Context) (int64, error)
}

// PreferenceRepository はユーザーごとの小さな設定値（ページサイズ等）の
// 永続化インターフェース。値は最後の書き込みが勝つ。
type PreferenceRepository interface {
	// Get は指定ユーザーの設定値を取得する。未設定の場合は空文字列を返す。
	Get(ctx context.Context, userID, key string) (string, error)
	// Set は指定ユーザーの設定値を保存する（upsert）。
	Set(ctx context.Context, userID, key, value string) error
}

// NewsSourceRepository はニュース配信元の永続化インターフェース。
type NewsSourceRepository interface {
	// Create は配信元を作成する。
	Create(ctx context.Context, source *model.NewsSource) error
	// FindByID は指定IDの配信元を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.NewsSource, error)
	// FindByFeedURL はフィードURLで配信元を検索する。見つからない場合はnilを返す。
	FindByFeedURL(ctx context.Context, feedURL string) (*model.NewsSource, error)
	// List は全配信元を登録順に返す。
	List(ctx context.Context) ([]*model.NewsSource, error)
	// UpdateFetchState はフェッチ結果（状態・エラー・最終フェッチ時刻）を更新する。
	UpdateFetchState(ctx context.Context, source *model.NewsSource) error
	// DeleteByID は配信元と関連記事を削除する。
	DeleteByID(ctx context.Context, id string) error
}

// NewsItemRepository はニュース記事の永続化インターフェース。
type NewsItemRepository interface {
	// Upsert は記事をリンクをキーに冪等に保存し、新規挿入件数を返す。
	Upsert(ctx context.Context, items []*model.NewsItem) (int, error)
	// ListRecent は公開日時の新しい順に最大limit件の記事を返す。
	ListRecent(ctx context.Context, limit int) ([]*model.NewsItem, error)
}
