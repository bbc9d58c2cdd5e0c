package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/stmercy/portal/internal/backend"
	"github.com/stmercy/portal/internal/middleware"
	"github.com/stmercy/portal/internal/model"
	"github.com/stmercy/portal/internal/repository"
	"github.com/stmercy/portal/internal/table"
)

// BackendGateway はポータルハンドラーが必要とするバックエンドアクセスの
// インターフェース。backend.Clientの部分集合として定義する。
type BackendGateway interface {
	ListRecords(ctx context.Context, token, path string) ([]model.Record, error)
	JSON(ctx context.Context, method, path, token string, body, out any) error
	Batch(ctx context.Context, token string, paths []string) (backend.BatchResult, error)
	Raw(ctx context.Context, path, token string) (*http.Response, error)
}

// portalDeps はロール別ハンドラーが共有する依存の束。
type portalDeps struct {
	gateway      BackendGateway
	invalidator  SessionInvalidator
	preferences  repository.PreferenceRepository
	cookieConfig middleware.CookieConfig
	logger       *slog.Logger
}

// currentSession はミドルウェアが解決済みのセッションを取り出す。
// セッションミドルウェアの内側でのみ呼ばれる前提だが、
// 取り出せない場合はセッション失効として応答しfalseを返す。
func (d *portalDeps) currentSession(w http.ResponseWriter, r *http.Request) (*model.Session, bool) {
	session, err := middleware.SessionFromContext(r.Context())
	if err != nil {
		middleware.WriteSessionExpired(w, d.cookieConfig)
		return nil, false
	}
	return session, true
}

// resolvePageSize は一覧のページサイズを決定する。
// クエリのsize指定が最優先、次にユーザー設定、どちらも無ければ既定値。
func (d *portalDeps) resolvePageSize(r *http.Request, userID string) int {
	fallback := table.DefaultPageSize
	if raw, err := d.preferences.Get(r.Context(), userID, pageSizePreferenceKey); err != nil {
		d.logger.Warn("failed to load page size preference",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
	} else if raw != "" {
		if size, parseErr := strconv.Atoi(raw); parseErr == nil {
			fallback = clampPageSize(size)
		}
	}
	return pageSizeFromQuery(r, fallback)
}

// tableResponse はテーブルビューに、遷移適用後の選択状態を添えた応答。
// UIは次のリクエストでselectedをそのままクエリに引き継ぐ。
type tableResponse struct {
	table.View
	Selected []string `json:"selected"`
}

// listView はコレクションを取得してテーブルビューとして応答する共通処理。
// 全一覧エンドポイントはこの形に揃える。
// クエリのtoggle（列ヘッダークリック）、nav（ページ遷移）、
// select（行チェックボックス）、select_all（ヘッダーチェックボックス）は
// tableパッケージの遷移関数を適用してから描画する。
// 受け取った選択は取得済みデータに存在する識別子のみへ刈り込む。
func (d *portalDeps) listView(w http.ResponseWriter, r *http.Request, path string, columns []table.Column, selectable bool, emptyMessage string) {
	session, ok := d.currentSession(w, r)
	if !ok {
		return
	}

	records, err := d.gateway.ListRecords(r.Context(), session.Token, path)
	if err != nil {
		handleBackendError(w, r, d.invalidator, d.cookieConfig, err)
		return
	}

	query := r.URL.Query()

	st := tableStateFromQuery(r)
	if key := query.Get("toggle"); key != "" {
		st = st.Toggle(key)
	}

	in := table.Input{
		Columns:      columns,
		Rows:         records,
		PageSize:     d.resolvePageSize(r, session.Identity.ID),
		Selectable:   selectable,
		EmptyMessage: emptyMessage,
	}

	if raw := query.Get("nav"); raw != "" {
		if target, parseErr := strconv.Atoi(raw); parseErr == nil {
			st = st.ChangePage(target, table.TotalPages(len(records), in.PageSize))
		}
	}

	selected := table.PruneSelection(selectedFromQuery(r), records)
	if selectable {
		if id := query.Get("select"); id != "" {
			selected = table.ToggleSelect(selected, id)
		}
		if query.Get("select_all") == "1" {
			selected = table.ToggleSelectAll(selected, table.VisibleIdentifiers(in, st))
		}
	}
	in.Selected = selected

	writeJSON(w, http.StatusOK, tableResponse{
		View:     table.Compute(in, st),
		Selected: selected,
	})
}
