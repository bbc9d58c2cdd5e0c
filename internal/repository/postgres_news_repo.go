package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/stmercy/portal/internal/model"
)

// PostgresNewsSourceRepo はPostgreSQLを使用したニュース配信元リポジトリ。
type PostgresNewsSourceRepo struct {
	db *sql.DB
}

// NewPostgresNewsSourceRepo はPostgresNewsSourceRepoを生成する。
func NewPostgresNewsSourceRepo(db *sql.DB) *PostgresNewsSourceRepo {
	return &PostgresNewsSourceRepo{db: db}
}

// Create は配信元を作成する。
func (r *PostgresNewsSourceRepo) Create(ctx context.Context, source *model.NewsSource) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO news_sources (id, title, site_url, feed_url, fetch_status, error_message, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		source.ID, source.Title, source.SiteURL, source.FeedURL,
		source.FetchStatus, source.ErrorMessage, source.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create news source: %w", err)
	}
	return nil
}

// FindByID は指定IDの配信元を取得する。見つからない場合はnilを返す。
func (r *PostgresNewsSourceRepo) FindByID(ctx context.Context, id string) (*model.NewsSource, error) {
	return r.findOne(ctx, `WHERE id = $1`, id)
}

// FindByFeedURL はフィードURLで配信元を検索する。見つからない場合はnilを返す。
func (r *PostgresNewsSourceRepo) FindByFeedURL(ctx context.Context, feedURL string) (*model.NewsSource, error) {
	return r.findOne(ctx, `WHERE feed_url = $1`, feedURL)
}

func (r *PostgresNewsSourceRepo) findOne(ctx context.Context, where string, arg any) (*model.NewsSource, error) {
	source := &model.NewsSource{}
	var lastFetchedAt sql.NullTime

	err := r.db.QueryRowContext(ctx,
		`SELECT id, title, site_url, feed_url, fetch_status, error_message, last_fetched_at, created_at
		 FROM news_sources `+where,
		arg,
	).Scan(&source.ID, &source.Title, &source.SiteURL, &source.FeedURL,
		&source.FetchStatus, &source.ErrorMessage, &lastFetchedAt, &source.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find news source: %w", err)
	}

	if lastFetchedAt.Valid {
		source.LastFetchedAt = &lastFetchedAt.Time
	}
	return source, nil
}

// List は全配信元を登録順に返す。
func (r *PostgresNewsSourceRepo) List(ctx context.Context) ([]*model.NewsSource, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, title, site_url, feed_url, fetch_status, error_message, last_fetched_at, created_at
		 FROM news_sources
		 ORDER BY created_at`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list news sources: %w", err)
	}
	defer rows.Close()

	var sources []*model.NewsSource
	for rows.Next() {
		source := &model.NewsSource{}
		var lastFetchedAt sql.NullTime
		if err := rows.Scan(&source.ID, &source.Title, &source.SiteURL, &source.FeedURL,
			&source.FetchStatus, &source.ErrorMessage, &lastFetchedAt, &source.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan news source: %w", err)
		}
		if lastFetchedAt.Valid {
			source.LastFetchedAt = &lastFetchedAt.Time
		}
		sources = append(sources, source)
	}
	return sources, rows.Err()
}

// UpdateFetchState はフェッチ結果を更新する。
func (r *PostgresNewsSourceRepo) UpdateFetchState(ctx context.Context, source *model.NewsSource) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE news_sources
		 SET fetch_status = $2, error_message = $3, last_fetched_at = $4
		 WHERE id = $1`,
		source.ID, source.FetchStatus, source.ErrorMessage, source.LastFetchedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update news source fetch state: %w", err)
	}
	return nil
}

// DeleteByID は配信元を削除する。関連記事はCASCADE削除される。
func (r *PostgresNewsSourceRepo) DeleteByID(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM news_sources WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to delete news source: %w", err)
	}
	return nil
}

// PostgresNewsItemRepo はPostgreSQLを使用したニュース記事リポジトリ。
type PostgresNewsItemRepo struct {
	db *sql.DB
}

// NewPostgresNewsItemRepo はPostgresNewsItemRepoを生成する。
func NewPostgresNewsItemRepo(db *sql.DB) *PostgresNewsItemRepo {
	return &PostgresNewsItemRepo{db: db}
}

// Upsert は記事をリンクをキーに冪等に保存し、新規挿入件数を返す。
func (r *PostgresNewsItemRepo) Upsert(ctx context.Context, items []*model.NewsItem) (int, error) {
	inserted := 0
	for _, item := range items {
		result, err := r.db.ExecContext(ctx,
			`INSERT INTO news_items (id, source_id, title, link, summary, published_at, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)
			 ON CONFLICT (link)
			 DO UPDATE SET title = EXCLUDED.title, summary = EXCLUDED.summary
			 WHERE news_items.title <> EXCLUDED.title OR news_items.summary <> EXCLUDED.summary`,
			item.ID, item.SourceID, item.Title, item.Link, item.Summary,
			item.PublishedAt, item.CreatedAt,
		)
		if err != nil {
			return inserted, fmt.Errorf("failed to upsert news item: %w", err)
		}
		if n, err := result.RowsAffected(); err == nil && n > 0 {
			inserted++
		}
	}
	return inserted, nil
}

// ListRecent は公開日時の新しい順に最大limit件の記事を返す。
func (r *PostgresNewsItemRepo) ListRecent(ctx context.Context, limit int) ([]*model.NewsItem, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, source_id, title, link, summary, published_at, created_at
		 FROM news_items
		 ORDER BY published_at DESC
		 LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list news items: %w", err)
	}
	defer rows.Close()

	var items []*model.NewsItem
	for rows.Next() {
		item := &model.NewsItem{}
		if err := rows.Scan(&item.ID, &item.SourceID, &item.Title, &item.Link,
			&item.Summary, &item.PublishedAt, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan news item: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// compile-time interface checks
var (
	_ NewsSourceRepository = (*PostgresNewsSourceRepo)(nil)
	_ NewsItemRepository   = (*PostgresNewsItemRepo)(nil)
)
