package fetch

import (
	"net/http"
	"time"

	"github.com/hitoshi/forumwatch/internal/config"
	"github.com/hitoshi/forumwatch/internal/model"
)

// FetchResult はHTTPステータスコードに基づく取得結果の分類。
type FetchResult int

const (
	// FetchResultOK は取得成功（2xx）。
	FetchResultOK FetchResult = iota
	// FetchResultBlocked はアクセス拒否（401/403/429）。長めの待機後にリトライする。
	FetchResultBlocked
	// FetchResultRetry は通信失敗として扱うステータス（5xxなど）。
	FetchResultRetry
)

// ClassifyHTTPStatus はHTTPステータスコードを取得結果に分類する。
func ClassifyHTTPStatus(statusCode int) FetchResult {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return FetchResultOK
	case statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden:
		return FetchResultBlocked
	case statusCode == http.StatusTooManyRequests:
		return FetchResultBlocked
	default:
		return FetchResultRetry
	}
}

// StatusError はステータスコードから取得エラーを生成する。2xxの場合はnilを返す。
func StatusError(strategy, forum string, statusCode int) error {
	switch ClassifyHTTPStatus(statusCode) {
	case FetchResultOK:
		return nil
	case FetchResultBlocked:
		return model.NewBlockedError(strategy, forum, statusCode)
	default:
		return model.NewStatusError(strategy, forum, statusCode)
	}
}

// RetryPolicy はリトライとフォールバックの待機設定。
type RetryPolicy struct {
	MaxRetries       int
	JitterMin        time.Duration
	JitterMax        time.Duration
	BackoffBase      time.Duration
	BackoffMax       time.Duration
	BlockedCooldown  time.Duration
	StrategyCooldown time.Duration
}

// PolicyFromConfig は設定からRetryPolicyを生成する。
func PolicyFromConfig(cfg *config.Config) RetryPolicy {
	return RetryPolicy{
		MaxRetries:       cfg.MaxRetries,
		JitterMin:        cfg.RetryJitterMin,
		JitterMax:        cfg.RetryJitterMax,
		BackoffBase:      cfg.BackoffBase,
		BackoffMax:       cfg.BackoffMax,
		BlockedCooldown:  cfg.BlockedCooldown,
		StrategyCooldown: cfg.StrategyCooldown,
	}
}

// CalculateBackoff は試行回数に基づいて指数バックオフ遅延を計算する。
// attemptは0始まり。baseから2倍ずつ増加し、maxで頭打ちになる。
func CalculateBackoff(attempt int, base, max time.Duration) time.Duration {
	delay := base
	for i := 0; i < attempt; i++ {
		delay *= 2
		if delay > max {
			return max
		}
	}
	if delay > max {
		return max
	}
	return delay
}

// RetryWait は失敗した試行の後に待機する時間を返す。
// アクセス拒否の場合は通常のバックオフに試行回数に比例したクールダウンを加算する。
func (p RetryPolicy) RetryWait(attempt int, err error) time.Duration {
	wait := CalculateBackoff(attempt, p.BackoffBase, p.BackoffMax)
	if model.IsBlocked(err) {
		wait += p.BlockedCooldown * time.Duration(attempt+1)
	}
	return wait
}
