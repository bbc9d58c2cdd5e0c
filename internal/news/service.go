package news

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/google/uuid"

	"github.com/stmercy/portal/internal/model"
	"github.com/stmercy/portal/internal/repository"
)

// defaultListLimit は記事一覧のデフォルト取得件数。
const defaultListLimit = 50

// FeedDetector はフィード検出のインターフェース。
// テスタビリティのためDetectorを抽象化する。
type FeedDetector interface {
	DetectFeedURL(ctx context.Context, inputURL string) (string, error)
}

// Service は健康情報フィードの登録・管理・配信のサービス層。
// 配信元の検出 → 保存のフローを統括し、利用者向けの記事一覧を提供する。
type Service struct {
	sourceRepo repository.NewsSourceRepository
	itemRepo   repository.NewsItemRepository
	detector   FeedDetector
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	sourceRepo repository.NewsSourceRepository,
	itemRepo repository.NewsItemRepository,
	detector FeedDetector,
) *Service {
	return &Service{
		sourceRepo: sourceRepo,
		itemRepo:   itemRepo,
		detector:   detector,
	}
}

// RegisterSource はURLから健康情報フィードを検出し、配信元として登録する。
// フロー: フィード検出 → 重複チェック → 配信元保存
func (s *Service) RegisterSource(ctx context.Context, title, inputURL string) (*model.NewsSource, error) {
	feedURL, err := s.detector.DetectFeedURL(ctx, inputURL)
	if err != nil {
		return nil, err
	}

	existing, err := s.sourceRepo.FindByFeedURL(ctx, feedURL)
	if err != nil {
		return nil, fmt.Errorf("配信元の検索に失敗しました: %w", err)
	}
	if existing != nil {
		return nil, model.NewValidationError("この配信元はすでに登録されています。")
	}

	if title == "" {
		// タイトル未指定の場合はフィードURLを仮タイトルとする（フェッチ時に更新される）
		title = feedURL
	}

	source := &model.NewsSource{
		ID:          uuid.New().String(),
		Title:       title,
		SiteURL:     extractSiteURL(inputURL),
		FeedURL:     feedURL,
		FetchStatus: model.FetchStatusActive,
		CreatedAt:   time.Now(),
	}

	if err := s.sourceRepo.Create(ctx, source); err != nil {
		return nil, fmt.Errorf("配信元の保存に失敗しました: %w", err)
	}

	return source, nil
}

// ListSources は登録済みの配信元を返す。
func (s *Service) ListSources(ctx context.Context) ([]*model.NewsSource, error) {
	sources, err := s.sourceRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("配信元一覧の取得に失敗しました: %w", err)
	}
	return sources, nil
}

// DeleteSource は配信元を削除する。関連記事もあわせて削除される。
func (s *Service) DeleteSource(ctx context.Context, sourceID string) error {
	source, err := s.sourceRepo.FindByID(ctx, sourceID)
	if err != nil {
		return fmt.Errorf("配信元の取得に失敗しました: %w", err)
	}
	if source == nil {
		return model.NewSourceNotFoundError(sourceID)
	}

	if err := s.sourceRepo.DeleteByID(ctx, sourceID); err != nil {
		return fmt.Errorf("配信元の削除に失敗しました: %w", err)
	}
	return nil
}

// ListNews は公開日時の新しい順に記事を返す。
// limitが0以下の場合はデフォルト件数を使用する。
func (s *Service) ListNews(ctx context.Context, limit int) ([]*model.NewsItem, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	items, err := s.itemRepo.ListRecent(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("記事一覧の取得に失敗しました: %w", err)
	}
	if items == nil {
		items = []*model.NewsItem{}
	}
	return items, nil
}

// extractSiteURL はフィードURLまたは入力URLからサイトURLを抽出する。
func extractSiteURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	u.Path = ""
	u.RawQuery = ""
	u.Fragment = ""
	return u.String()
}
