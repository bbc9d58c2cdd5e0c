package repository

import (
	"testing"
	"time"

	"github.com/stmercy/portal/internal/model"
)

// PostgresNewsSourceRepoはNewsSourceRepositoryインターフェースを満たすことを検証
func TestPostgresNewsSourceRepo_ImplementsInterface(t *testing.T) {
	var _ NewsSourceRepository = (*PostgresNewsSourceRepo)(nil)
}

// PostgresNewsItemRepoはNewsItemRepositoryインターフェースを満たすことを検証
func TestPostgresNewsItemRepo_ImplementsInterface(t *testing.T) {
	var _ NewsItemRepository = (*PostgresNewsItemRepo)(nil)
}

// PostgresPreferenceRepoはPreferenceRepositoryインターフェースを満たすことを検証
func TestPostgresPreferenceRepo_ImplementsInterface(t *testing.T) {
	var _ PreferenceRepository = (*PostgresPreferenceRepo)(nil)
}

// NewsSourceモデルのフィールドが正しく構築されることを検証
func TestPostgresNewsSourceRepo_SourceModel_Fields(t *testing.T) {
	now := time.Now()
	source := &model.NewsSource{
		ID:          "src-1",
		Title:       "健康ニュース",
		SiteURL:     "https://example.com",
		FeedURL:     "https://example.com/feed.xml",
		FetchStatus: model.FetchStatusActive,
		CreatedAt:   now,
	}

	if source.FeedURL != "https://example.com/feed.xml" {
		t.Errorf("FeedURL = %q, want %q", source.FeedURL, "https://example.com/feed.xml")
	}
	if source.FetchStatus != model.FetchStatusActive {
		t.Errorf("FetchStatus = %q, want %q", source.FetchStatus, model.FetchStatusActive)
	}
}
