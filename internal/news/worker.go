package news

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mmcdole/gofeed"

	"github.com/stmercy/portal/internal/model"
	"github.com/stmercy/portal/internal/repository"
)

// maxFeedBodySize はフィードレスポンスの最大読み取りサイズ。
const maxFeedBodySize = 5 * 1024 * 1024

// Sanitizer は記事概要のサニタイズインターフェース。
// security.ContentSanitizerServiceの部分集合として定義する。
type Sanitizer interface {
	SanitizeHTML(rawHTML string) string
}

// MetricsRecorder はフェッチ系メトリクスの記録インターフェース。
type MetricsRecorder interface {
	RecordNewsFetchSuccess()
	RecordNewsFetchFailure()
	RecordNewsItemsUpserted(count int)
}

type noopMetrics struct{}

func (noopMetrics) RecordNewsFetchSuccess()          {}
func (noopMetrics) RecordNewsFetchFailure()          {}
func (noopMetrics) RecordNewsItemsUpserted(count int) {}

// Worker は健康情報フィードのバックグラウンドフェッチ処理を行う。
// ティッカーで全配信元を巡回し、semaphoreパターンで最大並列数を
// 制御しながらフェッチ・パース・サニタイズ・保存を実行する。
type Worker struct {
	sourceRepo     repository.NewsSourceRepository
	itemRepo       repository.NewsItemRepository
	ssrfGuard      SSRFValidator
	sanitizer      Sanitizer
	logger         *slog.Logger
	metrics        MetricsRecorder
	timeout        time.Duration
	maxConcurrency int
}

// NewWorker はWorkerの新しいインスタンスを生成する。
// maxConcurrencyが0以下の場合はデフォルト値5を使用する。
// metricsがnilの場合は記録しない。
func NewWorker(
	sourceRepo repository.NewsSourceRepository,
	itemRepo repository.NewsItemRepository,
	ssrfGuard SSRFValidator,
	sanitizer Sanitizer,
	logger *slog.Logger,
	metrics MetricsRecorder,
	timeout time.Duration,
	maxConcurrency int,
) *Worker {
	if maxConcurrency <= 0 {
		maxConcurrency = 5
	}
	if metrics == nil {
		metrics = noopMetrics{}
	}
	return &Worker{
		sourceRepo:     sourceRepo,
		itemRepo:       itemRepo,
		ssrfGuard:      ssrfGuard,
		sanitizer:      sanitizer,
		logger:         logger,
		metrics:        metrics,
		timeout:        timeout,
		maxConcurrency: maxConcurrency,
	}
}

// Start は指定間隔のティッカーでワーカーを起動する。
// コンテキストがキャンセルされるまで実行を継続する。
func (w *Worker) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	w.logger.Info("ニュースフェッチワーカーを開始しました",
		slog.Duration("interval", interval),
		slog.Int("max_concurrency", w.maxConcurrency),
	)

	// 起動直後に1回実行
	if err := w.RunOnce(ctx); err != nil {
		w.logger.Error("フェッチサイクルの実行に失敗しました",
			slog.String("error", err.Error()),
		)
	}

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("ニュースフェッチワーカーを停止しました")
			return
		case <-ticker.C:
			if err := w.RunOnce(ctx); err != nil {
				w.logger.Error("フェッチサイクルの実行に失敗しました",
					slog.String("error", err.Error()),
				)
			}
		}
	}
}

// RunOnce は全配信元を1回巡回し、並列でフェッチを実行する。
// semaphoreパターンで最大並列数を制御する。
func (w *Worker) RunOnce(ctx context.Context) error {
	start := time.Now()

	sources, err := w.sourceRepo.List(ctx)
	if err != nil {
		return err
	}

	if len(sources) == 0 {
		w.logger.Info("フェッチ対象の配信元はありません")
		return nil
	}

	w.logger.Info("フェッチサイクルを開始します",
		slog.Int("source_count", len(sources)),
	)

	sem := make(chan struct{}, w.maxConcurrency)
	var wg sync.WaitGroup

	for _, source := range sources {
		wg.Add(1)
		sem <- struct{}{} // semaphore取得（ブロック）

		go func(src *model.NewsSource) {
			defer wg.Done()
			defer func() { <-sem }() // semaphore解放

			if err := w.FetchSource(ctx, src); err != nil {
				w.logger.Error("配信元のフェッチに失敗しました",
					slog.String("source_id", src.ID),
					slog.String("feed_url", src.FeedURL),
					slog.String("error", err.Error()),
				)
			}
		}(source)
	}

	wg.Wait()

	duration := time.Since(start)
	w.logger.Info("フェッチサイクルが完了しました",
		slog.Int("source_count", len(sources)),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)

	return nil
}

// FetchSource は配信元をフェッチし、記事を保存して状態を更新する。
// フェッチ・パースの失敗は配信元のエラー状態に記録して継続する。
func (w *Worker) FetchSource(ctx context.Context, source *model.NewsSource) error {
	start := time.Now()

	// SSRF検証（登録後にDNSが書き換えられた場合に備えてフェッチ毎に行う）
	if err := w.ssrfGuard.ValidateURL(source.FeedURL); err != nil {
		w.recordFailure(ctx, source, fmt.Sprintf("SSRF検証失敗: %s", err.Error()))
		return fmt.Errorf("SSRF検証に失敗: %w", err)
	}

	client := w.ssrfGuard.NewSafeClient(w.timeout)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, source.FeedURL, nil)
	if err != nil {
		return fmt.Errorf("リクエスト作成に失敗: %w", err)
	}
	req.Header.Set("User-Agent", "StMercyPortal/1.0 Health News")
	req.Header.Set("Accept", "application/rss+xml, application/atom+xml, application/xml, text/xml, */*")

	resp, err := client.Do(req)
	if err != nil {
		w.recordFailure(ctx, source, fmt.Sprintf("HTTPリクエスト失敗: %s", err.Error()))
		return fmt.Errorf("HTTPリクエスト失敗: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		reason := fmt.Sprintf("HTTPステータス %d", resp.StatusCode)
		w.recordFailure(ctx, source, reason)
		return fmt.Errorf("フェッチ失敗: %s", reason)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFeedBodySize))
	if err != nil {
		w.recordFailure(ctx, source, fmt.Sprintf("レスポンス読み取り失敗: %s", err.Error()))
		return fmt.Errorf("レスポンス読み取り失敗: %w", err)
	}

	parser := gofeed.NewParser()
	parsedFeed, err := parser.ParseString(string(body))
	if err != nil {
		w.recordFailure(ctx, source, fmt.Sprintf("パース失敗: %s", err.Error()))
		// パース失敗は状態に記録して継続する
		return nil
	}

	// フィードタイトルで配信元の仮タイトルを更新
	if parsedFeed.Title != "" && (source.Title == "" || source.Title == source.FeedURL) {
		source.Title = parsedFeed.Title
	}

	items := w.convertItems(source.ID, parsedFeed.Items)

	inserted, err := w.itemRepo.Upsert(ctx, items)
	if err != nil {
		w.recordFailure(ctx, source, fmt.Sprintf("記事の保存に失敗: %s", err.Error()))
		return nil
	}

	w.metrics.RecordNewsFetchSuccess()
	w.metrics.RecordNewsItemsUpserted(inserted)

	now := time.Now()
	source.FetchStatus = model.FetchStatusActive
	source.ErrorMessage = ""
	source.LastFetchedAt = &now
	if err := w.sourceRepo.UpdateFetchState(ctx, source); err != nil {
		w.logger.Error("配信元状態の更新に失敗しました",
			slog.String("source_id", source.ID),
			slog.String("error", err.Error()),
		)
		return err
	}

	w.logger.Info("配信元のフェッチが完了しました",
		slog.String("source_id", source.ID),
		slog.String("feed_url", source.FeedURL),
		slog.Int("items_inserted", inserted),
		slog.Int("items_total", len(items)),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)

	return nil
}

// recordFailure はフェッチ失敗を配信元の状態に記録する。
func (w *Worker) recordFailure(ctx context.Context, source *model.NewsSource, reason string) {
	w.metrics.RecordNewsFetchFailure()

	now := time.Now()
	source.FetchStatus = model.FetchStatusError
	source.ErrorMessage = reason
	source.LastFetchedAt = &now
	if err := w.sourceRepo.UpdateFetchState(ctx, source); err != nil {
		w.logger.Error("配信元状態の更新に失敗しました",
			slog.String("source_id", source.ID),
			slog.String("error", err.Error()),
		)
	}
}

// convertItems はgofeedの記事をmodel.NewsItemに変換する。
// 概要はサニタイズ済みのHTMLとして保存される。リンクの無い記事は除外する。
func (w *Worker) convertItems(sourceID string, items []*gofeed.Item) []*model.NewsItem {
	converted := make([]*model.NewsItem, 0, len(items))
	now := time.Now()

	for _, item := range items {
		if item == nil || item.Link == "" {
			continue
		}

		summary := item.Description
		if summary == "" {
			summary = item.Content
		}
		if w.sanitizer != nil {
			summary = w.sanitizer.SanitizeHTML(summary)
		}

		publishedAt := now
		if item.PublishedParsed != nil {
			publishedAt = *item.PublishedParsed
		} else if item.UpdatedParsed != nil {
			publishedAt = *item.UpdatedParsed
		}

		converted = append(converted, &model.NewsItem{
			ID:          uuid.New().String(),
			SourceID:    sourceID,
			Title:       item.Title,
			Link:        item.Link,
			Summary:     summary,
			PublishedAt: publishedAt,
			CreatedAt:   now,
		})
	}

	return converted
}
