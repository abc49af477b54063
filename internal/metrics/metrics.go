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
// アラートワークフローのEventRecorderとAPIクライアントの
// StatusRecorderの両方を実装する。
type Collector struct {
	alertsSent      prometheus.Counter
	sendFail        prometheus.Counter
	cancelSuccess   prometheus.Counter
	cancelFail      prometheus.Counter
	upstreamStatus  *prometheus.CounterVec
	upstreamLatency prometheus.Histogram
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		alertsSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "batsignal_alerts_sent_total",
			Help: "パニックアラート送信成功の合計数",
		}),
		sendFail: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "batsignal_alert_send_fail_total",
			Help: "パニックアラート送信失敗の合計数",
		}),
		cancelSuccess: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "batsignal_cancel_success_total",
			Help: "アラートキャンセル成功の合計数",
		}),
		cancelFail: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "batsignal_cancel_fail_total",
			Help: "アラートキャンセル失敗の合計数",
		}),
		upstreamStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "batsignal_upstream_status_total",
			Help: "上流APIのHTTPステータスコード別レスポンス数",
		}, []string{"status_code"}),
		upstreamLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "batsignal_upstream_latency_seconds",
			Help:    "上流APIリクエストのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
	}

	reg.MustRegister(
		c.alertsSent,
		c.sendFail,
		c.cancelSuccess,
		c.cancelFail,
		c.upstreamStatus,
		c.upstreamLatency,
	)

	return c
}

// RecordAlertSent はアラート送信成功を記録する。
func (c *Collector) RecordAlertSent() {
	c.alertsSent.Inc()
}

// RecordSendFailure はアラート送信失敗を記録する。
func (c *Collector) RecordSendFailure() {
	c.sendFail.Inc()
}

// RecordCancelSuccess はキャンセル成功を記録する。
func (c *Collector) RecordCancelSuccess() {
	c.cancelSuccess.Inc()
}

// RecordCancelFailure はキャンセル失敗を記録する。
func (c *Collector) RecordCancelFailure() {
	c.cancelFail.Inc()
}

// RecordUpstreamStatus は上流APIのHTTPステータスコードを記録する。
func (c *Collector) RecordUpstreamStatus(statusCode int) {
	c.upstreamStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordUpstreamLatency は上流APIリクエストのレイテンシを記録する。
func (c *Collector) RecordUpstreamLatency(duration time.Duration) {
	c.upstreamLatency.Observe(duration.Seconds())
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
