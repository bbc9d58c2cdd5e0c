package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stmercy/portal/internal/backend"
	"github.com/stmercy/portal/internal/middleware"
	"github.com/stmercy/portal/internal/model"
)

// mockGateway はBackendGatewayのモック。
type mockGateway struct {
	listRecordsFunc func(ctx context.Context, token, path string) ([]model.Record, error)
	jsonFunc        func(ctx context.Context, method, path, token string, body, out any) error
	batchFunc       func(ctx context.Context, token string, paths []string) (backend.BatchResult, error)
	rawFunc         func(ctx context.Context, path, token string) (*http.Response, error)
}

func (m *mockGateway) ListRecords(ctx context.Context, token, path string) ([]model.Record, error) {
	if m.listRecordsFunc != nil {
		return m.listRecordsFunc(ctx, token, path)
	}
	return []model.Record{}, nil
}

func (m *mockGateway) JSON(ctx context.Context, method, path, token string, body, out any) error {
	if m.jsonFunc != nil {
		return m.jsonFunc(ctx, method, path, token, body, out)
	}
	return nil
}

func (m *mockGateway) Batch(ctx context.Context, token string, paths []string) (backend.BatchResult, error) {
	if m.batchFunc != nil {
		return m.batchFunc(ctx, token, paths)
	}
	return backend.BatchResult{}, nil
}

func (m *mockGateway) Raw(ctx context.Context, path, token string) (*http.Response, error) {
	if m.rawFunc != nil {
		return m.rawFunc(ctx, path, token)
	}
	return nil, model.NewBackendUnavailableError("raw not configured")
}

// mockInvalidator はSessionInvalidatorのモック。破棄されたセッションIDを記録する。
type mockInvalidator struct {
	invalidated []string
}

func (m *mockInvalidator) Invalidate(_ context.Context, sessionID string) {
	m.invalidated = append(m.invalidated, sessionID)
}

// mockPreferences はPreferenceRepositoryのモック。
type mockPreferences struct {
	getFunc func(ctx context.Context, userID, key string) (string, error)
	setFunc func(ctx context.Context, userID, key, value string) error
}

func (m *mockPreferences) Get(ctx context.Context, userID, key string) (string, error) {
	if m.getFunc != nil {
		return m.getFunc(ctx, userID, key)
	}
	return "", nil
}

func (m *mockPreferences) Set(ctx context.Context, userID, key, value string) error {
	if m.setFunc != nil {
		return m.setFunc(ctx, userID, key, value)
	}
	return nil
}

// passthroughSanitizer はサニタイズ済みであることを確認できるようマーカーを付ける。
type passthroughSanitizer struct{}

func (passthroughSanitizer) SanitizeText(raw string) string {
	return "clean:" + raw
}

var (
	_ BackendGateway     = (*mockGateway)(nil)
	_ SessionInvalidator = (*mockInvalidator)(nil)
	_ TextSanitizer      = passthroughSanitizer{}
)

func testHandlerLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func testCookieConfig() middleware.CookieConfig {
	return middleware.CookieConfig{MaxAge: 3600}
}

func patientSession() *model.Session {
	return &model.Session{
		ID:    "sess-1",
		Token: "token-1",
		Identity: model.Identity{
			ID:     "user-1",
			Name:   "Test Patient",
			Email:  "patient@example.com",
			Role:   model.RolePatient,
			Active: true,
		},
		ExpiresAt: time.Now().Add(time.Hour),
	}
}

// newSessionRequest はセッション解決済みのリクエストを構築する。
// bodyがnilでない場合はJSONとしてエンコードする。
func newSessionRequest(t *testing.T, method, target string, body any, session *model.Session) *http.Request {
	t.Helper()

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to encode body: %v", err)
		}
		reader = bytes.NewReader(encoded)
	}

	r := httptest.NewRequest(method, target, reader)
	if session != nil {
		r = r.WithContext(middleware.ContextWithSession(r.Context(), session))
	}
	return r
}

// withURLParam はchiのパスパラメータを注入する。
func withURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// decodeBody は応答ボディをmapにデコードする。
func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var decoded map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&decoded); err != nil {
		t.Fatalf("failed to decode response body: %v", err)
	}
	return decoded
}

func newTestPatientHandler(gateway *mockGateway, invalidator *mockInvalidator, news NewsLister) *PatientHandler {
	if news == nil {
		news = &mockNewsLister{}
	}
	return NewPatientHandler(gateway, invalidator, &mockPreferences{}, passthroughSanitizer{}, news, testCookieConfig(), testHandlerLogger())
}

// mockNewsLister はNewsListerのモック。
type mockNewsLister struct {
	listFunc func(ctx context.Context, limit int) ([]*model.NewsItem, error)
}

func (m *mockNewsLister) ListNews(ctx context.Context, limit int) ([]*model.NewsItem, error) {
	if m.listFunc != nil {
		return m.listFunc(ctx, limit)
	}
	return []*model.NewsItem{}, nil
}

var _ NewsLister = (*mockNewsLister)(nil)
