package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/stmercy/portal/internal/middleware"
	"github.com/stmercy/portal/internal/model"
)

// NewsSourceManager は保健ニュース配信元の管理操作を提供する。
// news.Serviceの部分集合として定義する。
type NewsSourceManager interface {
	RegisterSource(ctx context.Context, title, inputURL string) (*model.NewsSource, error)
	ListSources(ctx context.Context) ([]*model.NewsSource, error)
	DeleteSource(ctx context.Context, sourceID string) error
}

// NewsHandler は管理者向けのニュース配信元管理のHTTPハンドラー。
type NewsHandler struct {
	sources NewsSourceManager
}

// NewNewsHandler はNewsHandlerを生成する。
func NewNewsHandler(sources NewsSourceManager) *NewsHandler {
	return &NewsHandler{sources: sources}
}

// registerSourceRequest は配信元登録リクエストのボディ。
// URLはサイトのトップページでもよく、フィードURLは自動検出される。
type registerSourceRequest struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

// RegisterSource は保健ニュースの配信元を登録する。
// POST /api/admin/news/sources
func (h *NewsHandler) RegisterSource(w http.ResponseWriter, r *http.Request) {
	var req registerSourceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewValidationError("リクエストボディが不正です。"))
		return
	}
	if strings.TrimSpace(req.URL) == "" {
		writeValidationFields(w, map[string]string{"url": "URLを入力してください。"})
		return
	}

	source, err := h.sources.RegisterSource(r.Context(), strings.TrimSpace(req.Title), strings.TrimSpace(req.URL))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{"success": true, "source": source})
}

// ListSources は登録済み配信元の一覧を返す。
// GET /api/admin/news/sources
func (h *NewsHandler) ListSources(w http.ResponseWriter, r *http.Request) {
	sources, err := h.sources.ListSources(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"sources": sources})
}

// DeleteSource は配信元と収集済み記事を削除する。
// DELETE /api/admin/news/sources/{id}
func (h *NewsHandler) DeleteSource(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewValidationError("配信元IDが指定されていません。"))
		return
	}

	if err := h.sources.DeleteSource(r.Context(), id); err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}
