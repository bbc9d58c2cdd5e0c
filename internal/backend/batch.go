package backend

import (
	"context"
	"errors"
	"sync"

	"github.com/stmercy/portal/internal/model"
)

// BatchResult は一括取得の1コレクション分の結果。パスをキーに引ける。
type BatchResult map[string][]model.Record

// Batch は複数の独立したコレクションを並行に取得する。
// ダッシュボード系ページ（統計+複数一覧）の初期ロードで使用する。
// どれか1つでも失敗した場合はバッチ全体が失敗する（部分成功は返さない）。
// いずれかのパスが401を返した場合、他のパスの失敗より優先して
// ErrUnauthorizedを返す。セッション破棄の契機を別の失敗で覆い隠さないため、
// 残りの取得を打ち切るのは401を観測した場合のみとする。
func (c *Client) Batch(ctx context.Context, token string, paths []string) (BatchResult, error) {
	if len(paths) == 0 {
		return BatchResult{}, nil
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		mu       sync.Mutex
		batchErr error
		results  = make(BatchResult, len(paths))
		wg       sync.WaitGroup
	)

	for _, path := range paths {
		wg.Add(1)
		go func(p string) {
			defer wg.Done()

			records, err := c.ListRecords(ctx, token, p)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if batchErr == nil || (errors.Is(err, ErrUnauthorized) && !errors.Is(batchErr, ErrUnauthorized)) {
					batchErr = err
				}
				// 401はセッション失効が確定し以降の結果に意味がない
				if errors.Is(err, ErrUnauthorized) {
					cancel()
				}
				return
			}
			results[p] = records
		}(path)
	}

	wg.Wait()

	if batchErr != nil {
		return nil, batchErr
	}
	return results, nil
}
