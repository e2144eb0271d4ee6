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
// チャットサービスとHTTPミドルウェアから利用する。
type MetricsCollector interface {
	RecordMessageSent(mode string)
	RecordQuotaRejected(mode string)
	RecordReplyDropped(mode string)
	RecordReplyFailure(mode string)
	RecordReplyLatency(mode string, duration time.Duration)
	RecordHTTPStatus(statusCode int)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	messagesSent  *prometheus.CounterVec
	quotaRejected *prometheus.CounterVec
	replyDropped  *prometheus.CounterVec
	replyFail     *prometheus.CounterVec
	replyLatency  *prometheus.HistogramVec
	httpStatus    *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		messagesSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "unsaid_messages_sent_total",
			Help: "受け付けたユーザーメッセージの合計数",
		}, []string{"mode"}),
		quotaRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "unsaid_quota_rejected_total",
			Help: "利用上限により拒否された送信の合計数",
		}, []string{"mode"}),
		replyDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "unsaid_reply_dropped_total",
			Help: "後続の送信やセッション削除により破棄された応答の合計数",
		}, []string{"mode"}),
		replyFail: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "unsaid_reply_fail_total",
			Help: "応答生成失敗の合計数",
		}, []string{"mode"}),
		replyLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "unsaid_reply_latency_seconds",
			Help:    "応答生成のレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}, []string{"mode"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "unsaid_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
	}

	reg.MustRegister(
		c.messagesSent,
		c.quotaRejected,
		c.replyDropped,
		c.replyFail,
		c.replyLatency,
		c.httpStatus,
	)

	return c
}

// RecordMessageSent は受け付けたメッセージを記録する。
func (c *Collector) RecordMessageSent(mode string) {
	c.messagesSent.WithLabelValues(mode).Inc()
}

// RecordQuotaRejected は上限による拒否を記録する。
func (c *Collector) RecordQuotaRejected(mode string) {
	c.quotaRejected.WithLabelValues(mode).Inc()
}

// RecordReplyDropped は破棄された応答を記録する。
func (c *Collector) RecordReplyDropped(mode string) {
	c.replyDropped.WithLabelValues(mode).Inc()
}

// RecordReplyFailure は応答生成の失敗を記録する。
func (c *Collector) RecordReplyFailure(mode string) {
	c.replyFail.WithLabelValues(mode).Inc()
}

// RecordReplyLatency は応答生成にかかった時間を記録する。
func (c *Collector) RecordReplyLatency(mode string, duration time.Duration) {
	c.replyLatency.WithLabelValues(mode).Observe(duration.Seconds())
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// NopCollector は何も記録しないMetricsCollector。CLIやテストで使う。
type NopCollector struct{}

func (NopCollector) RecordMessageSent(string) {}
func (NopCollector) RecordQuotaRejected(string) {}
func (NopCollector) RecordReplyDropped(string) {}
func (NopCollector) RecordReplyFailure(string) {}
func (NopCollector) RecordReplyLatency(string, time.Duration) {}
func (NopCollector) RecordHTTPStatus(int) {}

// compile-time interface check
var (
	_ MetricsCollector = (*Collector)(nil)
	_ MetricsCollector = NopCollector{}
)
