package handler

import (
	"encoding/json"
	"net/http"

	"github.com/hitoshi/forumwatch/internal/monitor"
)

// StatusReporter は監視の実行状態を返すインターフェース。
// monitor.Monitorが実装する。
type StatusReporter interface {
	Running() bool
	LastRun() (monitor.RunStatus, bool)
}

// HealthResponse はヘルスチェックのレスポンス。
type HealthResponse struct {
	Status  string             `json:"status"`
	Running bool               `json:"running"`
	LastRun *monitor.RunStatus `json:"last_run,omitempty"`
}

// HealthHandler はワーカーの稼働状態を返すハンドラ。
// プロセスが応答していれば200を返し、直近の実行が失敗していても監視は継続中として扱う。
type HealthHandler struct {
	status StatusReporter
}

// NewHealthHandler はHealthHandlerを生成する。statusがnilの場合は稼働中のみを返す。
func NewHealthHandler(status StatusReporter) *HealthHandler {
	return &HealthHandler{status: status}
}

// ServeHTTP はGET /healthを処理する。
func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{Status: "ok"}
	if h.status != nil {
		resp.Running = h.status.Running()
		if last, ok := h.status.LastRun(); ok {
			resp.LastRun = &last
			if last.Error != "" {
				resp.Status = "degraded"
			}
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(resp)
}
