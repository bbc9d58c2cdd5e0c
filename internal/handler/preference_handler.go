package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/stmercy/portal/internal/middleware"
	"github.com/stmercy/portal/internal/model"
	"github.com/stmercy/portal/internal/repository"
	"github.com/stmercy/portal/internal/table"
)

// PreferenceHandler は利用者ごとの表示設定のHTTPハンドラー。
// 現在はテーブルの既定ページサイズのみを扱う。
type PreferenceHandler struct {
	preferences  repository.PreferenceRepository
	cookieConfig middleware.CookieConfig
}

// NewPreferenceHandler はPreferenceHandlerを生成する。
func NewPreferenceHandler(preferences repository.PreferenceRepository, cookieConfig middleware.CookieConfig) *PreferenceHandler {
	return &PreferenceHandler{preferences: preferences, cookieConfig: cookieConfig}
}

// GetPageSize は利用者の既定ページサイズを返す。未設定時は既定値を返す。
// GET /api/preferences/page-size
func (h *PreferenceHandler) GetPageSize(w http.ResponseWriter, r *http.Request) {
	session, err := middleware.SessionFromContext(r.Context())
	if err != nil {
		middleware.WriteSessionExpired(w, h.cookieConfig)
		return
	}

	size := table.DefaultPageSize
	if raw, getErr := h.preferences.Get(r.Context(), session.Identity.ID, pageSizePreferenceKey); getErr == nil && raw != "" {
		if parsed, parseErr := strconv.Atoi(raw); parseErr == nil {
			size = clampPageSize(parsed)
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{"page_size": size})
}

// setPageSizeRequest はページサイズ設定リクエストのボディ。
type setPageSizeRequest struct {
	PageSize int `json:"page_size"`
}

// SetPageSize は利用者の既定ページサイズを保存する。
// PUT /api/preferences/page-size
// 範囲外の値は受け付けず、丸めずに検証エラーとする。
func (h *PreferenceHandler) SetPageSize(w http.ResponseWriter, r *http.Request) {
	session, err := middleware.SessionFromContext(r.Context())
	if err != nil {
		middleware.WriteSessionExpired(w, h.cookieConfig)
		return
	}

	var req setPageSizeRequest
	if decodeErr := json.NewDecoder(r.Body).Decode(&req); decodeErr != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewValidationError("リクエストボディが不正です。"))
		return
	}
	if req.PageSize < minPageSize || req.PageSize > maxPageSize {
		writeValidationFields(w, map[string]string{
			"page_size": "ページサイズは5〜100の範囲で指定してください。",
		})
		return
	}

	if setErr := h.preferences.Set(r.Context(), session.Identity.ID, pageSizePreferenceKey, strconv.Itoa(req.PageSize)); setErr != nil {
		handleServiceError(w, setErr)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"success": true, "page_size": req.PageSize})
}
