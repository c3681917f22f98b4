package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// findMetricFamily は収集結果から指定名のメトリクスファミリーを探す。
func findMetricFamily(t *testing.T, reg *prometheus.Registry, name string) *dto.MetricFamily {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() == name {
			return mf
		}
	}
	t.Fatalf("%s metric not found", name)
	return nil
}

// labelValue はメトリクスの指定ラベルの値を返す。
func labelValue(m *dto.Metric, name string) string {
	for _, l := range m.GetLabel() {
		if l.GetName() == name {
			return l.GetValue()
		}
	}
	return ""
}

// TestNewCollector_ReturnsNonNil はCollectorが正常に生成されることを検証する。
func TestNewCollector_ReturnsNonNil(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	if c == nil {
		t.Fatal("expected non-nil Collector")
	}
}

// TestCollector_ImplementsInterface はCollectorとNopがMetricsCollectorを満たすことを検証する。
func TestCollector_ImplementsInterface(t *testing.T) {
	var _ MetricsCollector = (*Collector)(nil)
	var _ MetricsCollector = Nop{}
}

// TestRecordAttempt_IncrementsCounterWithLabels は試行カウンタが戦略・結果ラベル付きで増加することを検証する。
func TestRecordAttempt_IncrementsCounterWithLabels(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordAttempt("direct", "blocked")
	c.RecordAttempt("direct", "blocked")
	c.RecordAttempt("browser", ResultSuccess)

	mf := findMetricFamily(t, reg, "forumwatch_acquire_attempts_total")
	if len(mf.GetMetric()) != 2 {
		t.Fatalf("expected 2 label combinations, got %d", len(mf.GetMetric()))
	}
	for _, m := range mf.GetMetric() {
		strategy := labelValue(m, "strategy")
		result := labelValue(m, "result")
		val := m.GetCounter().GetValue()
		switch {
		case strategy == "direct" && result == "blocked":
			if val != 2 {
				t.Errorf("attempts{direct,blocked} = %v, want 2", val)
			}
		case strategy == "browser" && result == ResultSuccess:
			if val != 1 {
				t.Errorf("attempts{browser,success} = %v, want 1", val)
			}
		default:
			t.Errorf("unexpected labels strategy=%s result=%s", strategy, result)
		}
	}
}

// TestRecordExhausted_IncrementsCounter は全戦略失敗カウンタが増加することを検証する。
func TestRecordExhausted_IncrementsCounter(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordExhausted("jewelry")

	mf := findMetricFamily(t, reg, "forumwatch_forum_exhausted_total")
	if val := mf.GetMetric()[0].GetCounter().GetValue(); val != 1 {
		t.Errorf("forum_exhausted_total = %v, want 1", val)
	}
}

// TestRecordPostsAcquired_AddsCount は取得記事数が加算されることを検証する。
func TestRecordPostsAcquired_AddsCount(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordPostsAcquired("girl", 30)
	c.RecordPostsAcquired("girl", 5)

	mf := findMetricFamily(t, reg, "forumwatch_posts_acquired_total")
	if val := mf.GetMetric()[0].GetCounter().GetValue(); val != 35 {
		t.Errorf("posts_acquired_total = %v, want 35", val)
	}
}

// TestRecordMatchAndEvaluated は照合数と一致数が論壇別に記録されることを検証する。
func TestRecordMatchAndEvaluated(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordPostEvaluated("jewelry")
	c.RecordPostEvaluated("jewelry")
	c.RecordMatch("jewelry")

	evaluated := findMetricFamily(t, reg, "forumwatch_posts_evaluated_total")
	if val := evaluated.GetMetric()[0].GetCounter().GetValue(); val != 2 {
		t.Errorf("posts_evaluated_total = %v, want 2", val)
	}
	matches := findMetricFamily(t, reg, "forumwatch_matches_total")
	if val := matches.GetMetric()[0].GetCounter().GetValue(); val != 1 {
		t.Errorf("matches_total = %v, want 1", val)
	}
}

// TestRecordNotifyFailure_IncrementsCounter は通知失敗カウンタが増加することを検証する。
func TestRecordNotifyFailure_IncrementsCounter(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordNotifyFailure()

	mf := findMetricFamily(t, reg, "forumwatch_notify_fail_total")
	if val := mf.GetMetric()[0].GetCounter().GetValue(); val != 1 {
		t.Errorf("notify_fail_total = %v, want 1", val)
	}
}

// TestRecordLatencyAndDuration はヒストグラムに観測値が記録されることを検証する。
func TestRecordLatencyAndDuration(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordAttemptLatency("direct", 1500*time.Millisecond)
	c.RecordRunDuration(90 * time.Second)

	latency := findMetricFamily(t, reg, "forumwatch_acquire_latency_seconds")
	h := latency.GetMetric()[0].GetHistogram()
	if h.GetSampleCount() != 1 {
		t.Errorf("latency sample count = %d, want 1", h.GetSampleCount())
	}
	if h.GetSampleSum() != 1.5 {
		t.Errorf("latency sample sum = %v, want 1.5", h.GetSampleSum())
	}

	run := findMetricFamily(t, reg, "forumwatch_run_duration_seconds")
	if run.GetMetric()[0].GetHistogram().GetSampleCount() != 1 {
		t.Error("run duration should have 1 sample")
	}
}
