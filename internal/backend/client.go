// Package backend は病院管理REST APIバックエンドへのクライアントを提供する。
// 認証エンドポイント（login/verify）と、予約・支払い・報告書等のリソースコレクションへの
// 汎用アクセスを含む。Credentialが存在する場合、全リクエストに
// Authorization: Bearerヘッダーを付与する。
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/stmercy/portal/internal/model"
)

// ErrUnauthorized はバックエンドがトークンを拒否した（401を返した）ことを示す。
// どのページ・どの操作からの呼び出しであっても、このエラーはセッション全体の
// 失効として扱われ、呼び出し元の個別エラーとしては表面化しない。
var ErrUnauthorized = errors.New("backend rejected credential")

// MetricsRecorder はバックエンド呼び出しのメトリクス記録インターフェース。
// metrics.Collectorの部分集合として定義する。
type MetricsRecorder interface {
	RecordBackendStatus(statusCode int)
	RecordBackendLatency(duration time.Duration)
}

// noopMetrics はメトリクス未設定時のレコーダー。
type noopMetrics struct{}

func (noopMetrics) RecordBackendStatus(int)            {}
func (noopMetrics) RecordBackendLatency(time.Duration) {}

// Client は病院管理バックエンドのHTTPクライアント。
type Client struct {
	httpClient *http.Client
	baseURL    string
	logger     *slog.Logger
	metrics    MetricsRecorder
}

// New はClientの新しいインスタンスを生成する。
// baseURLは末尾のスラッシュを除いて保持する。metricsはnil可。
func New(baseURL string, timeout time.Duration, logger *slog.Logger, metrics MetricsRecorder) *Client {
	if metrics == nil {
		metrics = noopMetrics{}
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
		logger:     logger,
		metrics:    metrics,
	}
}

// LoginResult はログイン交換の成功結果を表す。
type LoginResult struct {
	Token string
	User  model.Identity
}

// loginResponse はバックエンドのログイン応答ボディ。
type loginResponse struct {
	Token string          `json:"token"`
	User  *model.Identity `json:"user"`
}

// errorResponse はバックエンドのエラー応答ボディ。
type errorResponse struct {
	Msg string `json:"msg"`
}

// Login は認証エンドポイントに資格情報を送り、トークンとユーザー情報を取得する。
// 応答がtokenまたはuserを欠く場合は契約違反としてエラーを返す。
// いかなる失敗でも保存済み状態には影響しない（このクライアントは状態を持たない）。
func (c *Client) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	body := map[string]string{"email": email, "password": password}

	resp, err := c.send(ctx, http.MethodPost, "/auth/login", "", body)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusBadRequest {
		return nil, model.NewInvalidCredentialsError()
	}
	if resp.StatusCode != http.StatusOK {
		return nil, c.statusError(resp)
	}

	var decoded loginResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, model.NewInvalidResponseError("応答ボディを解析できません")
	}
	if decoded.Token == "" || decoded.User == nil || decoded.User.ID == "" {
		return nil, model.NewInvalidResponseError("tokenまたはuserが含まれていません")
	}

	return &LoginResult{Token: decoded.Token, User: *decoded.User}, nil
}

// Verify は保存済みトークンで「who am I」エンドポイントを呼び、最新のIdentityを返す。
// 呼び出し元はいかなる失敗（ネットワーク・401・不正ボディ）もセッション破棄として
// 扱うこと（fail closed）。
func (c *Client) Verify(ctx context.Context, token string) (model.Identity, error) {
	var identity model.Identity
	if err := c.JSON(ctx, http.MethodGet, "/auth/verify", token, nil, &identity); err != nil {
		return model.Identity{}, err
	}
	if identity.ID == "" || identity.Role == "" {
		return model.Identity{}, model.NewInvalidResponseError("ユーザー情報が不完全です")
	}
	return identity, nil
}

// ListRecords はリソースコレクションを取得する。
// バックエンドの応答がnullまたは欠落コレクションの場合は空集合として扱う。
func (c *Client) ListRecords(ctx context.Context, token, path string) ([]model.Record, error) {
	var records []model.Record
	if err := c.JSON(ctx, http.MethodGet, path, token, nil, &records); err != nil {
		return nil, err
	}
	if records == nil {
		records = []model.Record{}
	}
	return records, nil
}

// JSON は任意のメソッドでリクエストを送り、成功応答をoutにデコードする。
// outがnilの場合は応答ボディを破棄する。
// 401はErrUnauthorizedとして返し、呼び出し元でセッション失効処理を促す。
func (c *Client) JSON(ctx context.Context, method, path, token string, body, out any) error {
	resp, err := c.send(ctx, method, path, token, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return fmt.Errorf("%s %s: %w", method, path, ErrUnauthorized)
	}
	if resp.StatusCode == http.StatusNotFound {
		return model.NewNotFoundError("リソース")
	}
	if resp.StatusCode >= 400 {
		return c.statusError(resp)
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return model.NewInvalidResponseError("応答ボディを解析できません")
	}
	return nil
}

// Raw は応答ボディをそのままストリームとして返す。PDF等のバイナリ応答の中継に使用する。
// 呼び出し元がボディをCloseする責任を持つ。
func (c *Client) Raw(ctx context.Context, path, token string) (*http.Response, error) {
	resp, err := c.send(ctx, http.MethodGet, path, token, nil)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusUnauthorized {
		resp.Body.Close()
		return nil, fmt.Errorf("GET %s: %w", path, ErrUnauthorized)
	}
	if resp.StatusCode >= 400 {
		defer resp.Body.Close()
		return nil, c.statusError(resp)
	}
	return resp, nil
}

// send はHTTPリクエストを構築して実行する。
// リクエストはコンテキストに紐付き、呼び出し元のティアダウンで即座にキャンセルされる。
func (c *Client) send(ctx context.Context, method, path, token string, body any) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	c.metrics.RecordBackendLatency(time.Since(start))

	if err != nil {
		c.logger.Error("バックエンド呼び出しに失敗しました",
			slog.String("method", method),
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
		return nil, model.NewBackendUnavailableError(err.Error())
	}

	c.metrics.RecordBackendStatus(resp.StatusCode)
	return resp, nil
}

// statusError は4xx/5xx応答を統一エラーに変換する。
// 応答ボディの{"msg": ...}があればメッセージに利用する。
func (c *Client) statusError(resp *http.Response) error {
	var decoded errorResponse
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	_ = json.Unmarshal(raw, &decoded)

	reason := decoded.Msg
	if reason == "" {
		reason = fmt.Sprintf("ステータス %d", resp.StatusCode)
	}

	if resp.StatusCode >= 500 {
		return model.NewBackendUnavailableError(reason)
	}
	return model.NewActionFailedError(reason)
}
