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
// ハンドラーやワーカーから利用する。
type MetricsCollector interface {
	RecordFeedPage(mode string)
	RecordJobCreated()
	RecordJobPublished()
	RecordJobClosed()
	RecordToggle(kind string, active bool)
	RecordMediaResolution(outcome string)
	RecordIngestSuccess(sourceID string)
	RecordIngestFailure(sourceID string, reason string)
	RecordHTTPStatus(statusCode int)
	RecordRequestLatency(duration time.Duration)
}

// メディア解決結果のラベル値。
const (
	MediaOutcomeHit    = "hit"
	MediaOutcomeMiss   = "miss"
	MediaOutcomeBroken = "broken"
)

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	feedPages       *prometheus.CounterVec
	jobsCreated     prometheus.Counter
	jobsPublished   prometheus.Counter
	jobsClosed      prometheus.Counter
	toggles         *prometheus.CounterVec
	mediaResolution *prometheus.CounterVec
	ingestSuccess   prometheus.Counter
	ingestFail      prometheus.Counter
	httpStatus      *prometheus.CounterVec
	requestLatency  prometheus.Histogram
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		feedPages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "jobfeed_feed_pages_total",
			Help: "モード別のフィードページ提供数",
		}, []string{"mode"}),
		jobsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "jobfeed_jobs_created_total",
			Help: "作成された求人の合計数",
		}),
		jobsPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "jobfeed_jobs_published_total",
			Help: "公開された求人の合計数",
		}),
		jobsClosed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "jobfeed_jobs_closed_total",
			Help: "掲載終了した求人の合計数",
		}),
		toggles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "jobfeed_relationship_toggles_total",
			Help: "種別・結果別の保存/お気に入りトグル数",
		}, []string{"kind", "result"}),
		mediaResolution: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "jobfeed_media_resolutions_total",
			Help: "結果別のメディア参照解決数",
		}, []string{"outcome"}),
		ingestSuccess: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "jobfeed_ingest_success_total",
			Help: "外部取り込み成功の合計数",
		}),
		ingestFail: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "jobfeed_ingest_fail_total",
			Help: "外部取り込み失敗の合計数",
		}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "jobfeed_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		requestLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "jobfeed_request_latency_seconds",
			Help:    "HTTPリクエストのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
	}

	reg.MustRegister(
		c.feedPages,
		c.jobsCreated,
		c.jobsPublished,
		c.jobsClosed,
		c.toggles,
		c.mediaResolution,
		c.ingestSuccess,
		c.ingestFail,
		c.httpStatus,
		c.requestLatency,
	)

	return c
}

// RecordFeedPage はフィードページの提供を記録する。
func (c *Collector) RecordFeedPage(mode string) {
	c.feedPages.WithLabelValues(mode).Inc()
}

// RecordJobCreated は求人の作成を記録する。
func (c *Collector) RecordJobCreated() {
	c.jobsCreated.Inc()
}

// RecordJobPublished は求人の公開を記録する。
func (c *Collector) RecordJobPublished() {
	c.jobsPublished.Inc()
}

// RecordJobClosed は求人の掲載終了を記録する。
func (c *Collector) RecordJobClosed() {
	c.jobsClosed.Inc()
}

// RecordToggle は保存/お気に入りトグルを記録する。
func (c *Collector) RecordToggle(kind string, active bool) {
	result := "off"
	if active {
		result = "on"
	}
	c.toggles.WithLabelValues(kind, result).Inc()
}

// RecordMediaResolution はメディア参照解決の結果を記録する。
func (c *Collector) RecordMediaResolution(outcome string) {
	c.mediaResolution.WithLabelValues(outcome).Inc()
}

// RecordIngestSuccess は外部取り込み成功を記録する。
func (c *Collector) RecordIngestSuccess(sourceID string) {
	c.ingestSuccess.Inc()
}

// RecordIngestFailure は外部取り込み失敗を記録する。
func (c *Collector) RecordIngestFailure(sourceID string, reason string) {
	c.ingestFail.Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordRequestLatency はリクエストのレイテンシを記録する。
func (c *Collector) RecordRequestLatency(duration time.Duration) {
	c.requestLatency.Observe(duration.Seconds())
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
