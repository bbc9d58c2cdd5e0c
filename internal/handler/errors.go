// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/stmercy/portal/internal/backend"
	"github.com/stmercy/portal/internal/middleware"
	"github.com/stmercy/portal/internal/model"
)

// SessionInvalidator はバックエンドが401を返した際にセッションを
// 強制破棄するインターフェース。session.Gateの部分集合。
type SessionInvalidator interface {
	Invalidate(ctx context.Context, sessionID string)
}

// writeJSON はJSONレスポンスを書き込む。
func writeJSON(w http.ResponseWriter, statusCode int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("failed to encode response", slog.String("error", err.Error()))
	}
}

// mapAPIErrorToHTTPStatus はAPIエラーコードをHTTPステータスコードにマッピングする。
func mapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeInvalidCredentials:
		return http.StatusUnauthorized
	case model.ErrCodeSessionExpired:
		return http.StatusUnauthorized
	case model.ErrCodeForbidden:
		return http.StatusForbidden
	case model.ErrCodeValidationFailed, model.ErrCodeInvalidURL:
		return http.StatusBadRequest
	case model.ErrCodeNotFound, model.ErrCodeSourceNotFound:
		return http.StatusNotFound
	case model.ErrCodeBackendUnavailable:
		return http.StatusBadGateway
	case model.ErrCodeInvalidResponse:
		return http.StatusBadGateway
	case model.ErrCodeSSRFBlocked:
		return http.StatusForbidden
	case model.ErrCodeFeedNotDetected:
		return http.StatusUnprocessableEntity
	case model.ErrCodeActionFailed:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// handleServiceError はサービス層のエラーを統一フォーマットで応答する。
// APIError以外のエラーは詳細をログのみに記録し、500を返す。
func handleServiceError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		middleware.WriteErrorResponse(w, mapAPIErrorToHTTPStatus(apiErr), apiErr)
		return
	}

	slog.Error("internal server error", slog.String("error", err.Error()))
	middleware.WriteInternalServerError(w)
}

// handleBackendError はバックエンド呼び出しのエラーを応答する。
// バックエンドが401を返した場合はセッションを破棄し、Cookieをクリアして
// SESSION_EXPIREDを返す（グローバル無効化）。それ以外はhandleServiceErrorに委譲する。
func handleBackendError(w http.ResponseWriter, r *http.Request, invalidator SessionInvalidator, cookieConfig middleware.CookieConfig, err error) {
	if errors.Is(err, backend.ErrUnauthorized) {
		if session, sessErr := middleware.SessionFromContext(r.Context()); sessErr == nil {
			invalidator.Invalidate(r.Context(), session.ID)
		}
		middleware.WriteSessionExpired(w, cookieConfig)
		return
	}
	handleServiceError(w, err)
}
