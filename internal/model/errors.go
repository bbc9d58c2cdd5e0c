package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
// カテゴリ: auth（認証失敗）, session（セッション失効）, fetch（データ取得失敗）,
// validation（入力検証）, action（操作失敗）, system（内部エラー）
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeInvalidCredentials = "INVALID_CREDENTIALS"
	ErrCodeInvalidResponse    = "INVALID_RESPONSE"
	ErrCodeSessionExpired     = "SESSION_EXPIRED"
	ErrCodeForbidden          = "FORBIDDEN"
	ErrCodeBackendUnavailable = "BACKEND_UNAVAILABLE"
	ErrCodeValidationFailed   = "VALIDATION_FAILED"
	ErrCodeActionFailed       = "ACTION_FAILED"
	ErrCodeNotFound           = "NOT_FOUND"
	ErrCodeInvalidURL         = "INVALID_URL"
	ErrCodeSSRFBlocked        = "SSRF_BLOCKED"
	ErrCodeFeedNotDetected    = "FEED_NOT_DETECTED"
	ErrCodeSourceNotFound     = "SOURCE_NOT_FOUND"
)

// NewInvalidCredentialsError はログイン失敗エラーを生成する。
// ページ内に表示される回復可能なエラーであり、保存済みセッションには影響しない。
func NewInvalidCredentialsError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidCredentials,
		Message:  "メールアドレスまたはパスワードが正しくありません。",
		Category: "auth",
		Action:   "入力内容を確認して再度お試しください。",
	}
}

// NewInvalidResponseError はバックエンド応答が不正な場合のエラーを生成する。
// tokenまたはuserを欠くログイン応答など、契約違反の応答に使用する。
func NewInvalidResponseError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidResponse,
		Message:  fmt.Sprintf("サーバーからの応答が不正です: %s", reason),
		Category: "auth",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewSessionExpiredError はセッション失効エラーを生成する。
// バックエンドが401を返した場合に使用し、セッション全体の破棄を伴う。
func NewSessionExpiredError() *APIError {
	return &APIError{
		Code:     ErrCodeSessionExpired,
		Message:  "セッションの有効期限が切れました。",
		Category: "session",
		Action:   "再度ログインしてください。",
	}
}

// NewForbiddenError は役割不一致によるアクセス拒否エラーを生成する。
func NewForbiddenError(required Role) *APIError {
	return &APIError{
		Code:     ErrCodeForbidden,
		Message:  fmt.Sprintf("この画面には %s 権限が必要です。", required),
		Category: "session",
		Action:   "適切なアカウントでログインし直してください。",
	}
}

// NewBackendUnavailableError はバックエンド取得失敗エラーを生成する。
// ページ単位のエラー状態として表示され、再試行可能。セッションは維持される。
func NewBackendUnavailableError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeBackendUnavailable,
		Message:  fmt.Sprintf("データの取得に失敗しました: %s", reason),
		Category: "fetch",
		Action:   "しばらく待ってから再読み込みしてください。",
	}
}

// NewValidationError は入力検証エラーを生成する。
// フォーム内のフィールド単位で表示され、バックエンドには送信されない。
func NewValidationError(message string) *APIError {
	return &APIError{
		Code:     ErrCodeValidationFailed,
		Message:  message,
		Category: "validation",
		Action:   "入力内容を確認してください。",
	}
}

// NewActionFailedError は行アクション（更新・削除等）の失敗エラーを生成する。
// トースト表示向けの一時的なエラーで、確認済みの成功までテーブル状態は変更しない。
func NewActionFailedError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeActionFailed,
		Message:  fmt.Sprintf("操作に失敗しました: %s", reason),
		Category: "action",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewNotFoundError は対象リソースが見つからない場合のエラーを生成する。
func NewNotFoundError(resource string) *APIError {
	return &APIError{
		Code:     ErrCodeNotFound,
		Message:  fmt.Sprintf("指定された%sが見つかりません。", resource),
		Category: "action",
		Action:   "一覧を再読み込みして確認してください。",
	}
}

// NewInvalidURLError は無効なURLエラーを生成する。
func NewInvalidURLError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidURL,
		Message:  fmt.Sprintf("無効なURLです: %s", reason),
		Category: "validation",
		Action:   "http:// または https:// で始まる正しいURLを入力してください。",
	}
}

// NewSSRFBlockedError はSSRFブロックエラーを生成する。
func NewSSRFBlockedError() *APIError {
	return &APIError{
		Code:     ErrCodeSSRFBlocked,
		Message:  "セキュリティポリシーにより、指定されたURLへのアクセスがブロックされました。",
		Category: "validation",
		Action:   "公開されているWebサイトのURLを入力してください。",
	}
}

// NewFeedNotDetectedError はニュースフィード未検出エラーを生成する。
func NewFeedNotDetectedError(url string) *APIError {
	return &APIError{
		Code:     ErrCodeFeedNotDetected,
		Message:  fmt.Sprintf("指定されたURLからRSS/Atomフィードを検出できませんでした: %s", url),
		Category: "validation",
		Action:   "フィードURLを直接入力するか、配信元サイトのURLを確認してください。",
	}
}

// NewSourceNotFoundError はニュース配信元が見つからない場合のエラーを生成する。
func NewSourceNotFoundError(sourceID string) *APIError {
	return &APIError{
		Code:     ErrCodeSourceNotFound,
		Message:  fmt.Sprintf("指定された配信元が見つかりません: %s", sourceID),
		Category: "action",
		Action:   "配信元一覧を確認してください。",
	}
}
