// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// 認証サービス、HTTPミドルウェア、クリーンアップジョブから利用する。
type MetricsCollector interface {
	RecordLogin(result string)
	RecordRefresh(result string)
	RecordRegistration(result string)
	RecordHTTPStatus(statusCode int)
	RecordRequestDuration(method string, duration time.Duration)
	RecordPurged(kind string, count int64)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	login        *prometheus.CounterVec
	refresh      *prometheus.CounterVec
	registration *prometheus.CounterVec
	httpStatus   *prometheus.CounterVec
	duration     *prometheus.HistogramVec
	purged       *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		login: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "used_auth_login_total",
			Help: "ログイン試行の結果別合計数",
		}, []string{"result"}),
		refresh: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "used_auth_refresh_total",
			Help: "アクセストークン再発行の結果別合計数",
		}, []string{"result"}),
		registration: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "used_auth_registration_total",
			Help: "ユーザー登録の結果別合計数",
		}, []string{"result"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "used_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "used_http_request_duration_seconds",
			Help:    "HTTPリクエストの処理時間（秒）",
			Buckets: prometheus.DefBuckets,
		}, []string{"method"}),
		purged: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "used_cleanup_purged_total",
			Help: "クリーンアップで削除した期限切れレコード数",
		}, []string{"kind"}),
	}

	reg.MustRegister(
		c.login,
		c.refresh,
		c.registration,
		c.httpStatus,
		c.duration,
		c.purged,
	)

	return c
}

// RecordLogin はログイン試行の結果を記録する。
func (c *Collector) RecordLogin(result string) {
	c.login.WithLabelValues(result).Inc()
}

// RecordRefresh はトークン再発行の結果を記録する。
func (c *Collector) RecordRefresh(result string) {
	c.refresh.WithLabelValues(result).Inc()
}

// RecordRegistration はユーザー登録の結果を記録する。
func (c *Collector) RecordRegistration(result string) {
	c.registration.WithLabelValues(result).Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordRequestDuration はリクエストの処理時間を記録する。
func (c *Collector) RecordRequestDuration(method string, duration time.Duration) {
	c.duration.WithLabelValues(method).Observe(duration.Seconds())
}

// RecordPurged はクリーンアップで削除した件数を記録する。
func (c *Collector) RecordPurged(kind string, count int64) {
	c.purged.WithLabelValues(kind).Add(float64(count))
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
