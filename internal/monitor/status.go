package monitor

import (
	"sync"
	"time"

	"github.com/hitoshi/forumwatch/internal/model"
)

// RunStatus は直近の実行結果。ワーカーモードのヘルスチェックで公開する。
type RunStatus struct {
	RunID           string    `json:"run_id"`
	StartedAt       time.Time `json:"started_at"`
	FinishedAt      time.Time `json:"finished_at"`
	TotalMatches    int       `json:"total_matches"`
	ExhaustedForums []string  `json:"exhausted_forums"`
	Error           string    `json:"error,omitempty"`
}

// statusTracker は実行中フラグと直近の結果を保持する。
// スケジューラのゴルーチンとHTTPハンドラから同時に参照される。
type statusTracker struct {
	mu      sync.RWMutex
	running bool
	last    *RunStatus
}

func (t *statusTracker) begin() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.running = true
}

func (t *statusTracker) finish(runID string, started, finished time.Time, summary *model.RunSummary, err error) {
	st := &RunStatus{
		RunID:           runID,
		StartedAt:       started,
		FinishedAt:      finished,
		ExhaustedForums: []string{},
	}
	if summary != nil {
		st.TotalMatches = summary.TotalMatches
		st.ExhaustedForums = append(st.ExhaustedForums, summary.ExhaustedForums...)
	}
	if err != nil {
		st.Error = err.Error()
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.running = false
	t.last = st
}

// Running は実行中かを返す。
func (m *Monitor) Running() bool {
	m.status.mu.RLock()
	defer m.status.mu.RUnlock()
	return m.status.running
}

// LastRun は直近に完了した実行の結果を返す。まだ完了した実行がない場合はfalseを返す。
func (m *Monitor) LastRun() (RunStatus, bool) {
	m.status.mu.RLock()
	defer m.status.mu.RUnlock()
	if m.status.last == nil {
		return RunStatus{}, false
	}
	return *m.status.last, true
}
