package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/mail"
	"strings"

	"github.com/stmercy/portal/internal/middleware"
	"github.com/stmercy/portal/internal/model"
)

// SessionGateInterface は認証ハンドラーが必要とするセッション管理インターフェース。
type SessionGateInterface interface {
	Login(ctx context.Context, email, password string) (*model.Session, error)
	Logout(ctx context.Context, sessionID string) error
	Verify(ctx context.Context, sessionID string) (*model.Session, error)
}

// AuthHandler はログイン・ログアウト・セッション検証のHTTPハンドラー。
type AuthHandler struct {
	gate         SessionGateInterface
	cookieConfig middleware.CookieConfig
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(gate SessionGateInterface, cookieConfig middleware.CookieConfig) *AuthHandler {
	return &AuthHandler{
		gate:         gate,
		cookieConfig: cookieConfig,
	}
}

// loginRequest はログインリクエストのボディ。
type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// loginResponse はログイン成功レスポンス。
// トークンはセッションに保持されるため応答には含めない。
type loginResponse struct {
	Success  bool           `json:"success"`
	User     model.Identity `json:"user"`
	Redirect string         `json:"redirect"`
}

// validationErrorResponse は入力検証エラーのレスポンス。
// フィールドごとのエラーメッセージを含む。
type validationErrorResponse struct {
	Code     string            `json:"code"`
	Message  string            `json:"message"`
	Category string            `json:"category"`
	Action   string            `json:"action"`
	Fields   map[string]string `json:"fields"`
}

// Login は資格情報を検証してセッションを作成する。
// POST /auth/login
// 成功時はセッションCookieを設定し、ロールに応じたリダイレクト先を返す。
// 認証失敗はページ内に表示される回復可能なエラーであり、既存セッションには影響しない。
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewValidationError("リクエストボディが不正です。"))
		return
	}

	if fields := validateLoginRequest(req); len(fields) > 0 {
		writeJSON(w, http.StatusBadRequest, validationErrorResponse{
			Code:     model.ErrCodeValidationFailed,
			Message:  "入力内容に誤りがあります。",
			Category: "validation",
			Action:   "各項目のエラーを確認してください。",
			Fields:   fields,
		})
		return
	}

	session, err := h.gate.Login(r.Context(), strings.TrimSpace(req.Email), req.Password)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	middleware.SetSessionCookie(w, session.ID, h.cookieConfig)
	writeJSON(w, http.StatusOK, loginResponse{
		Success:  true,
		User:     session.Identity,
		Redirect: session.Identity.Role.HomePath(),
	})
}

// Logout はセッションを破棄する。
// POST /auth/logout
// セッション削除に失敗してもCookieは必ずクリアする。
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(middleware.SessionCookieName); err == nil && cookie.Value != "" {
		if logoutErr := h.gate.Logout(r.Context(), cookie.Value); logoutErr != nil {
			slog.Error("failed to logout", slog.String("error", logoutErr.Error()))
		}
	}

	middleware.ClearSessionCookie(w, h.cookieConfig)
	writeJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"redirect": "/",
	})
}

// Verify はセッションのトークンをバックエンドで再検証する。
// GET /auth/verify
// SPAの初期ロード時に呼ばれる。検証できない場合はCookieを破棄して
// 401を返す（フェイルクローズ）。
func (h *AuthHandler) Verify(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(middleware.SessionCookieName)
	if err != nil || cookie.Value == "" {
		middleware.WriteSessionExpired(w, h.cookieConfig)
		return
	}

	session, err := h.gate.Verify(r.Context(), cookie.Value)
	if err != nil {
		middleware.WriteSessionExpired(w, h.cookieConfig)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"user":     session.Identity,
		"redirect": session.Identity.Role.HomePath(),
	})
}

// validateLoginRequest はログイン入力をフィールド単位で検証する。
func validateLoginRequest(req loginRequest) map[string]string {
	fields := make(map[string]string)

	email := strings.TrimSpace(req.Email)
	if email == "" {
		fields["email"] = "メールアドレスを入力してください。"
	} else if _, err := mail.ParseAddress(email); err != nil {
		fields["email"] = "メールアドレスの形式が正しくありません。"
	}

	if req.Password == "" {
		fields["password"] = "パスワードを入力してください。"
	}

	return fields
}
