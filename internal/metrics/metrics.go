// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// 試行結果ラベル。
const (
	ResultSuccess = "success"
)

// MetricsCollector はメトリクス収集のインターフェース。
// リトライ制御と論壇モニタから利用する。
type MetricsCollector interface {
	RecordAttempt(strategy, result string)
	RecordAttemptLatency(strategy string, duration time.Duration)
	RecordExhausted(forum string)
	RecordPostsAcquired(forum string, count int)
	RecordPostEvaluated(forum string)
	RecordMatch(forum string)
	RecordNotifyFailure()
	RecordRunDuration(duration time.Duration)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	attempts       *prometheus.CounterVec
	attemptLatency *prometheus.HistogramVec
	exhausted      *prometheus.CounterVec
	postsAcquired  *prometheus.CounterVec
	postsEvaluated *prometheus.CounterVec
	matches        *prometheus.CounterVec
	notifyFail     prometheus.Counter
	runDuration    prometheus.Histogram
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		attempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "forumwatch_acquire_attempts_total",
			Help: "取得戦略の試行回数（戦略・結果別）",
		}, []string{"strategy", "result"}),
		attemptLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "forumwatch_acquire_latency_seconds",
			Help:    "取得戦略1試行のレイテンシ（秒）",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}, []string{"strategy"}),
		exhausted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "forumwatch_forum_exhausted_total",
			Help: "全戦略が失敗した論壇の回数",
		}, []string{"forum"}),
		postsAcquired: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "forumwatch_posts_acquired_total",
			Help: "取得した記事の合計数",
		}, []string{"forum"}),
		postsEvaluated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "forumwatch_posts_evaluated_total",
			Help: "キーワード照合を行った未処理記事の合計数",
		}, []string{"forum"}),
		matches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "forumwatch_matches_total",
			Help: "キーワードに一致した記事の合計数",
		}, []string{"forum"}),
		notifyFail: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "forumwatch_notify_fail_total",
			Help: "通知送信失敗の合計数",
		}),
		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "forumwatch_run_duration_seconds",
			Help:    "1回の監視実行にかかった時間（秒）",
			Buckets: prometheus.ExponentialBuckets(10, 2, 8),
		}),
	}

	reg.MustRegister(
		c.attempts,
		c.attemptLatency,
		c.exhausted,
		c.postsAcquired,
		c.postsEvaluated,
		c.matches,
		c.notifyFail,
		c.runDuration,
	)

	return c
}

// RecordAttempt は取得試行の結果を記録する。
func (c *Collector) RecordAttempt(strategy, result string) {
	c.attempts.WithLabelValues(strategy, result).Inc()
}

// RecordAttemptLatency は取得試行のレイテンシを記録する。
func (c *Collector) RecordAttemptLatency(strategy string, duration time.Duration) {
	c.attemptLatency.WithLabelValues(strategy).Observe(duration.Seconds())
}

// RecordExhausted は全戦略が失敗した論壇を記録する。
func (c *Collector) RecordExhausted(forum string) {
	c.exhausted.WithLabelValues(forum).Inc()
}

// RecordPostsAcquired は取得した記事数を記録する。
func (c *Collector) RecordPostsAcquired(forum string, count int) {
	c.postsAcquired.WithLabelValues(forum).Add(float64(count))
}

// RecordPostEvaluated は照合した記事を記録する。
func (c *Collector) RecordPostEvaluated(forum string) {
	c.postsEvaluated.WithLabelValues(forum).Inc()
}

// RecordMatch は一致した記事を記録する。
func (c *Collector) RecordMatch(forum string) {
	c.matches.WithLabelValues(forum).Inc()
}

// RecordNotifyFailure は通知失敗を記録する。
func (c *Collector) RecordNotifyFailure() {
	c.notifyFail.Inc()
}

// RecordRunDuration は監視実行の所要時間を記録する。
func (c *Collector) RecordRunDuration(duration time.Duration) {
	c.runDuration.Observe(duration.Seconds())
}

// Nop は何も記録しないMetricsCollector。メトリクスを公開しない単発実行で使う。
type Nop struct{}

func (Nop) RecordAttempt(string, string)               {}
func (Nop) RecordAttemptLatency(string, time.Duration) {}
func (Nop) RecordExhausted(string)                     {}
func (Nop) RecordPostsAcquired(string, int)            {}
func (Nop) RecordPostEvaluated(string)                 {}
func (Nop) RecordMatch(string)                         {}
func (Nop) RecordNotifyFailure()                       {}
func (Nop) RecordRunDuration(time.Duration)            {}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
