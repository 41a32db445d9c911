// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder はメトリクス記録のインターフェース。
// ポーリングワーカーから利用する。
type Recorder interface {
	RecordCheck(region string, outcome string)
	RecordFetchFailure(region string, kind string)
	RecordFetchLatency(region string, duration time.Duration)
	RecordNotification(sent, total int)
	RecordCycle(duration time.Duration, checks int)
}

// チェック結果のラベル値。
const (
	OutcomeInStock    = "in_stock"
	OutcomeOutOfStock = "out_of_stock"
	OutcomeError      = "error"
)

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	checks           *prometheus.CounterVec
	fetchFail        *prometheus.CounterVec
	fetchLatency     *prometheus.HistogramVec
	notifySent       prometheus.Counter
	notifyFailed     prometheus.Counter
	cycleDuration    prometheus.Histogram
	lastCycleChecks  prometheus.Gauge
	lastCycleSeconds prometheus.Gauge
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		checks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stockwatch_checks_total",
			Help: "在庫チェックの合計数（リージョン・結果別）",
		}, []string{"region", "outcome"}),
		fetchFail: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stockwatch_fetch_fail_total",
			Help: "在庫取得失敗の合計数（リージョン・失敗種別別）",
		}, []string{"region", "kind"}),
		fetchLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "stockwatch_fetch_latency_seconds",
			Help:    "在庫取得のレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}, []string{"region"}),
		notifySent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "stockwatch_notifications_sent_total",
			Help: "送信に成功した通知の合計数",
		}),
		notifyFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "stockwatch_notifications_failed_total",
			Help: "送信に失敗した通知の合計数",
		}),
		cycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "stockwatch_cycle_duration_seconds",
			Help:    "ポーリングサイクルの所要時間（秒）",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}),
		lastCycleChecks: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "stockwatch_last_cycle_checks",
			Help: "直近サイクルでチェックした(商品, リージョン)の数",
		}),
		lastCycleSeconds: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "stockwatch_last_cycle_timestamp_seconds",
			Help: "直近サイクル完了時刻（Unix秒）",
		}),
	}

	reg.MustRegister(
		c.checks,
		c.fetchFail,
		c.fetchLatency,
		c.notifySent,
		c.notifyFailed,
		c.cycleDuration,
		c.lastCycleChecks,
		c.lastCycleSeconds,
	)

	return c
}

// RecordCheck は在庫チェック結果を記録する。
func (c *Collector) RecordCheck(region string, outcome string) {
	c.checks.WithLabelValues(region, outcome).Inc()
}

// RecordFetchFailure は取得失敗を失敗種別ごとに記録する。
func (c *Collector) RecordFetchFailure(region string, kind string) {
	c.fetchFail.WithLabelValues(region, kind).Inc()
}

// RecordFetchLatency は取得のレイテンシを記録する。
func (c *Collector) RecordFetchLatency(region string, duration time.Duration) {
	c.fetchLatency.WithLabelValues(region).Observe(duration.Seconds())
}

// RecordNotification は1回の通知ファンアウトの結果を記録する。
func (c *Collector) RecordNotification(sent, total int) {
	c.notifySent.Add(float64(sent))
	if total > sent {
		c.notifyFailed.Add(float64(total - sent))
	}
}

// RecordCycle はポーリングサイクルの完了を記録する。
func (c *Collector) RecordCycle(duration time.Duration, checks int) {
	c.cycleDuration.Observe(duration.Seconds())
	c.lastCycleChecks.Set(float64(checks))
	c.lastCycleSeconds.SetToCurrentTime()
}

// NopRecorder は何も記録しないRecorder。
type NopRecorder struct{}

func (NopRecorder) RecordCheck(string, string)               {}
func (NopRecorder) RecordFetchFailure(string, string)        {}
func (NopRecorder) RecordFetchLatency(string, time.Duration) {}
func (NopRecorder) RecordNotification(int, int)             {}
func (NopRecorder) RecordCycle(time.Duration, int)           {}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// SetupMetricsRoute は/metricsエンドポイントを登録したServeMuxを返す。
// ワーカープロセスのメトリクスサーバーで使い、呼び出し側で/healthなどを追加できる。
func SetupMetricsRoute(gatherer prometheus.Gatherer) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(gatherer))
	return mux
}

var (
	_ Recorder = (*Collector)(nil)
	_ Recorder = NopRecorder{}
)
