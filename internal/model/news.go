package model

import "time"

// FetchStatus はニュース配信元のフェッチ状態を表す。
type FetchStatus string

const (
	// FetchStatusActive は定期フェッチの対象であることを示す。
	FetchStatusActive FetchStatus = "active"
	// FetchStatusError は直近のフェッチが失敗したことを示す。
	// エラーが続いても対象からは外さない（次サイクルで再試行する）。
	FetchStatusError FetchStatus = "error"
)

// NewsSource は健康情報ニュースの配信元（RSS/Atomフィード）を表す。
// 管理者が登録し、ワーカーが定期的にフェッチする。
type NewsSource struct {
	ID            string      `json:"id"`
	Title         string      `json:"title"`
	SiteURL       string      `json:"site_url"`
	FeedURL       string      `json:"feed_url"`
	FetchStatus   FetchStatus `json:"fetch_status"`
	ErrorMessage  string      `json:"error_message,omitempty"`
	LastFetchedAt *time.Time  `json:"last_fetched_at,omitempty"`
	CreatedAt     time.Time   `json:"created_at"`
}

// NewsItem は配信元から取得した1件のニュース記事を表す。
// Summaryはサニタイズ済みHTML。
type NewsItem struct {
	ID          string    `json:"id"`
	SourceID    string    `json:"source_id"`
	Title       string    `json:"title"`
	Link        string    `json:"link"`
	Summary     string    `json:"summary"`
	PublishedAt time.Time `json:"published_at"`
	CreatedAt   time.Time `json:"created_at"`
}
