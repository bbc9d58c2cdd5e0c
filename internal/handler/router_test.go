package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stmercy/portal/internal/middleware"
	"github.com/stmercy/portal/internal/model"
)

// mockResolver はmiddleware.SessionResolverのモック。
type mockResolver struct {
	currentFunc func(ctx context.Context, sessionID string) (*model.Session, error)
}

func (m *mockResolver) Current(ctx context.Context, sessionID string) (*model.Session, error) {
	if m.currentFunc != nil {
		return m.currentFunc(ctx, sessionID)
	}
	return nil, model.NewSessionExpiredError()
}

var _ middleware.SessionResolver = (*mockResolver)(nil)

func newTestRouter(t *testing.T, resolver middleware.SessionResolver, gateway *mockGateway) http.Handler {
	t.Helper()

	invalidator := &mockInvalidator{}
	prefs := &mockPreferences{}
	sanitizer := passthroughSanitizer{}
	cookieConfig := testCookieConfig()
	logger := testHandlerLogger()

	limiter := middleware.NewRateLimiter(middleware.DefaultRateLimiterConfig())
	t.Cleanup(limiter.Stop)

	return NewRouter(RouterDeps{
		Auth:            NewAuthHandler(&mockSessionGate{}, cookieConfig),
		Patient:         NewPatientHandler(gateway, invalidator, prefs, sanitizer, &mockNewsLister{}, cookieConfig, logger),
		Doctor:          NewDoctorHandler(gateway, invalidator, prefs, sanitizer, cookieConfig, logger),
		Admin:           NewAdminHandler(gateway, invalidator, prefs, sanitizer, cookieConfig, logger),
		News:            NewNewsHandler(&mockSourceManager{}),
		Preferences:     NewPreferenceHandler(prefs, cookieConfig),
		SessionResolver: resolver,
		RateLimiter:     limiter,
		CookieConfig:    cookieConfig,
		CSRFConfig:      middleware.CSRFConfig{},
		Logger:          logger,
	})
}

// mockSourceManager はNewsSourceManagerのモック。
type mockSourceManager struct{}

func (m *mockSourceManager) RegisterSource(context.Context, string, string) (*model.NewsSource, error) {
	return &model.NewsSource{ID: "s1"}, nil
}

func (m *mockSourceManager) ListSources(context.Context) ([]*model.NewsSource, error) {
	return []*model.NewsSource{}, nil
}

func (m *mockSourceManager) DeleteSource(context.Context, string) error {
	return nil
}

var _ NewsSourceManager = (*mockSourceManager)(nil)

func TestRouter_Healthz(t *testing.T) {
	router := newTestRouter(t, &mockResolver{}, &mockGateway{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
}

func TestRouter_AuthenticatedRoute_MissingCookie(t *testing.T) {
	router := newTestRouter(t, &mockResolver{}, &mockGateway{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/patient/appointments", nil))

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
	body := decodeBody(t, rec)
	if body["code"] != model.ErrCodeSessionExpired {
		t.Errorf("code = %v, want %s", body["code"], model.ErrCodeSessionExpired)
	}
	if body["redirect"] != "/" {
		t.Errorf("redirect = %v, want /", body["redirect"])
	}
}

func TestRouter_RoleGating(t *testing.T) {
	session := patientSession()
	resolver := &mockResolver{
		currentFunc: func(_ context.Context, sessionID string) (*model.Session, error) {
			if sessionID == session.ID {
				return session, nil
			}
			return nil, model.NewSessionExpiredError()
		},
	}
	gateway := &mockGateway{}
	router := newTestRouter(t, resolver, gateway)

	tests := []struct {
		name   string
		target string
		want   int
	}{
		{"patient route allowed", "/api/patient/appointments", http.StatusOK},
		{"doctor route forbidden", "/api/doctor/patients", http.StatusForbidden},
		{"admin route forbidden", "/api/admin/patients", http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, tt.target, nil)
			r.AddCookie(&http.Cookie{Name: middleware.SessionCookieName, Value: session.ID})
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, r)

			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
			if tt.want == http.StatusForbidden {
				if body := decodeBody(t, rec); body["code"] != model.ErrCodeForbidden {
					t.Errorf("code = %v, want %s", body["code"], model.ErrCodeForbidden)
				}
			}
		})
	}
}

func TestRouter_CSRFProtection(t *testing.T) {
	router := newTestRouter(t, &mockResolver{}, &mockGateway{})

	// トークン無しのPOSTは拒否される
	r := httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, r)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status without token = %d, want %d", rec.Code, http.StatusForbidden)
	}

	// トークンを取得してCookieとヘッダーの両方に載せれば通る
	tokenRec := httptest.NewRecorder()
	router.ServeHTTP(tokenRec, httptest.NewRequest(http.MethodGet, "/api/csrf-token", nil))
	var csrfCookie *http.Cookie
	for _, c := range tokenRec.Result().Cookies() {
		if c.Name == "csrf_token" {
			csrfCookie = c
		}
	}
	if csrfCookie == nil {
		t.Fatal("csrf token cookie not issued")
	}

	r = httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(`{"email":"a@example.com","password":"x"}`))
	r.Header.Set("Content-Type", "application/json")
	r.Header.Set("X-CSRF-Token", csrfCookie.Value)
	r.AddCookie(csrfCookie)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, r)

	// CSRFは通過し、資格情報エラーまで到達する
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status with token = %d, want %d (reaches login handler)", rec.Code, http.StatusUnauthorized)
	}
}

func TestRouter_MetricsNotExposedOnAPIRouter(t *testing.T) {
	router := newTestRouter(t, &mockResolver{}, &mockGateway{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d (metrics mounted outside the API router)", rec.Code, http.StatusNotFound)
	}
}
