// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector はPrometheusメトリクスを収集する実装。
// backend.MetricsRecorder、session.MetricsRecorder、news.MetricsRecorderを満たす。
type Collector struct {
	backendRequests     *prometheus.CounterVec
	backendLatency      prometheus.Histogram
	loginSuccess        prometheus.Counter
	loginFailure        prometheus.Counter
	sessionInvalidation prometheus.Counter
	newsFetchSuccess    prometheus.Counter
	newsFetchFail       prometheus.Counter
	newsItemsUpserted   prometheus.Counter
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		backendRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "portal_backend_requests_total",
			Help: "バックエンドAPIへのリクエスト数（ステータスコード別）",
		}, []string{"status_code"}),
		backendLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "portal_backend_latency_seconds",
			Help:    "バックエンドAPIのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		loginSuccess: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "portal_login_success_total",
			Help: "ログイン成功の合計数",
		}),
		loginFailure: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "portal_login_failure_total",
			Help: "ログイン失敗の合計数",
		}),
		sessionInvalidation: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "portal_session_invalidations_total",
			Help: "強制無効化されたセッションの合計数",
		}),
		newsFetchSuccess: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "portal_news_fetch_success_total",
			Help: "健康情報フィードのフェッチ成功の合計数",
		}),
		newsFetchFail: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "portal_news_fetch_fail_total",
			Help: "健康情報フィードのフェッチ失敗の合計数",
		}),
		newsItemsUpserted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "portal_news_items_upserted_total",
			Help: "アップサートされた健康情報記事の合計数",
		}),
	}

	reg.MustRegister(
		c.backendRequests,
		c.backendLatency,
		c.loginSuccess,
		c.loginFailure,
		c.sessionInvalidation,
		c.newsFetchSuccess,
		c.newsFetchFail,
		c.newsItemsUpserted,
	)

	return c
}

// RecordBackendStatus はバックエンド応答のステータスコードを記録する。
func (c *Collector) RecordBackendStatus(statusCode int) {
	c.backendRequests.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordBackendLatency はバックエンドAPIのレイテンシを記録する。
func (c *Collector) RecordBackendLatency(duration time.Duration) {
	c.backendLatency.Observe(duration.Seconds())
}

// RecordLoginSuccess はログイン成功を記録する。
func (c *Collector) RecordLoginSuccess() {
	c.loginSuccess.Inc()
}

// RecordLoginFailure はログイン失敗を記録する。
func (c *Collector) RecordLoginFailure() {
	c.loginFailure.Inc()
}

// RecordSessionInvalidation はセッションの強制無効化を記録する。
func (c *Collector) RecordSessionInvalidation() {
	c.sessionInvalidation.Inc()
}

// RecordNewsFetchSuccess はフィードフェッチ成功を記録する。
func (c *Collector) RecordNewsFetchSuccess() {
	c.newsFetchSuccess.Inc()
}

// RecordNewsFetchFailure はフィードフェッチ失敗を記録する。
func (c *Collector) RecordNewsFetchFailure() {
	c.newsFetchFail.Inc()
}

// RecordNewsItemsUpserted はアップサートされた記事数を記録する。
func (c *Collector) RecordNewsItemsUpserted(count int) {
	c.newsItemsUpserted.Add(float64(count))
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// SetupMetricsRoute は/metricsエンドポイントを提供するHTTPハンドラーを返す。
// Prometheusスクレイプに対応する。
func SetupMetricsRoute(gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(gatherer))
	return mux
}
