// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ステールリソース種別
const (
	ResourcePage    = "page"
	ResourceSlug    = "slug"
	ResourceSession = "session"
)

// MetricsCollector はメトリクス収集のインターフェース。
// APIクライアントとストアから利用する。
type MetricsCollector interface {
	// RecordAPICall はリモートAPI呼び出し1回分を記録する。statusが0の場合は通信失敗として扱う。
	RecordAPICall(operation string, status int, duration time.Duration)
	// RecordPageCache はページキャッシュのヒット/ミスを記録する。
	RecordPageCache(hit bool)
	// RecordStaleResult は後続の操作に追い越されて破棄した結果を記録する。
	RecordStaleResult(resource string)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	apiRequests  *prometheus.CounterVec
	apiLatency   *prometheus.HistogramVec
	pageCache    *prometheus.CounterVec
	staleResults *prometheus.CounterVec
}

var _ MetricsCollector = (*Collector)(nil)

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		apiRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "blogclient_api_requests_total",
			Help: "リモートAPI呼び出しの操作別・ステータス別の合計数",
		}, []string{"operation", "status"}),
		apiLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "blogclient_api_request_duration_seconds",
			Help:    "リモートAPI呼び出しのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation"}),
		pageCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "blogclient_page_cache_total",
			Help: "記事一覧ページキャッシュの参照結果",
		}, []string{"result"}),
		staleResults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "blogclient_stale_results_total",
			Help: "追い越されて破棄した非同期結果の合計数",
		}, []string{"resource"}),
	}

	reg.MustRegister(
		c.apiRequests,
		c.apiLatency,
		c.pageCache,
		c.staleResults,
	)

	return c
}

// RecordAPICall はAPI呼び出しを記録する。
func (c *Collector) RecordAPICall(operation string, status int, duration time.Duration) {
	label := "network_error"
	if status > 0 {
		label = strconv.Itoa(status)
	}
	c.apiRequests.WithLabelValues(operation, label).Inc()
	c.apiLatency.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordPageCache はページキャッシュの参照結果を記録する。
func (c *Collector) RecordPageCache(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	c.pageCache.WithLabelValues(result).Inc()
}

// RecordStaleResult は破棄した結果を記録する。
func (c *Collector) RecordStaleResult(resource string) {
	c.staleResults.WithLabelValues(resource).Inc()
}

// nopCollector は何も記録しないMetricsCollector。
type nopCollector struct{}

// Nop は何も記録しないMetricsCollectorを返す。テストやメトリクス無効時に使用する。
func Nop() MetricsCollector {
	return nopCollector{}
}

func (nopCollector) RecordAPICall(string, int, time.Duration) {}
func (nopCollector) RecordPageCache(bool)                     {}
func (nopCollector) RecordStaleResult(string)                 {}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
