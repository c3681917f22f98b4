package fetch

import (
	"context"
	"math/rand/v2"
	"time"
)

// Sleeper は明示的な待機ポイントを抽象化する。
// テストでは待機せずに記録するだけの実装に差し替える。
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}

// TimerSleeper はタイマーで実際に待機するSleeper。
type TimerSleeper struct{}

// Sleep はdだけ待機する。コンテキストがキャンセルされた場合はその時点で戻る。
func (TimerSleeper) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// RandomBetween は[min, max]の範囲でランダムな待機時間を返す。
func RandomBetween(min, max time.Duration) time.Duration {
	if max <= min {
		return min
	}
	return min + rand.N(max-min+1)
}
