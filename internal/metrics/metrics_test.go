package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

// TestCollector_RecordsCounters は各カウンターが正しく加算されることを検証する。
func TestCollector_RecordsCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordLoginSuccess()
	c.RecordLoginSuccess()
	c.RecordLoginFailure()
	c.RecordSessionInvalidation()
	c.RecordNewsFetchSuccess()
	c.RecordNewsFetchFailure()
	c.RecordNewsItemsUpserted(5)

	if got := testutil.ToFloat64(c.loginSuccess); got != 2 {
		t.Errorf("login success: expected 2, got %v", got)
	}
	if got := testutil.ToFloat64(c.loginFailure); got != 1 {
		t.Errorf("login failure: expected 1, got %v", got)
	}
	if got := testutil.ToFloat64(c.sessionInvalidation); got != 1 {
		t.Errorf("session invalidation: expected 1, got %v", got)
	}
	if got := testutil.ToFloat64(c.newsItemsUpserted); got != 5 {
		t.Errorf("items upserted: expected 5, got %v", got)
	}
}

// TestCollector_RecordBackendStatus はステータスコード別にラベル付けされることを検証する。
func TestCollector_RecordBackendStatus(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordBackendStatus(200)
	c.RecordBackendStatus(200)
	c.RecordBackendStatus(401)

	if got := testutil.ToFloat64(c.backendRequests.WithLabelValues("200")); got != 2 {
		t.Errorf("status 200: expected 2, got %v", got)
	}
	if got := testutil.ToFloat64(c.backendRequests.WithLabelValues("401")); got != 1 {
		t.Errorf("status 401: expected 1, got %v", got)
	}
}

// TestSetupMetricsRoute_ExposesMetrics は/metricsエンドポイントが
// 登録済みメトリクスを公開することを検証する。
func TestSetupMetricsRoute_ExposesMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordBackendStatus(200)
	c.RecordBackendLatency(100 * time.Millisecond)

	handler := SetupMetricsRoute(reg)
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	body := rec.Body.String()
	for _, name := range []string{
		"portal_backend_requests_total",
		"portal_backend_latency_seconds",
	} {
		if !strings.Contains(body, name) {
			t.Errorf("expected metric %s in output", name)
		}
	}
}
