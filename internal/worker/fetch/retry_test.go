package fetch

import (
	"errors"
	"testing"
	"time"

	"github.com/hitoshi/forumwatch/internal/model"
)

func TestClassifyHTTPStatus_OK(t *testing.T) {
	for _, code := range []int{200, 201, 204} {
		if got := ClassifyHTTPStatus(code); got != FetchResultOK {
			t.Errorf("%d は FetchResultOK を返すべき, got %v", code, got)
		}
	}
}

func TestClassifyHTTPStatus_Blocked(t *testing.T) {
	for _, code := range []int{401, 403, 429} {
		if got := ClassifyHTTPStatus(code); got != FetchResultBlocked {
			t.Errorf("%d は FetchResultBlocked を返すべき, got %v", code, got)
		}
	}
}

func TestClassifyHTTPStatus_Retry(t *testing.T) {
	for _, code := range []int{404, 500, 502, 503} {
		if got := ClassifyHTTPStatus(code); got != FetchResultRetry {
			t.Errorf("%d は FetchResultRetry を返すべき, got %v", code, got)
		}
	}
}

func TestStatusError_Kinds(t *testing.T) {
	if err := StatusError("direct", "girl", 200); err != nil {
		t.Errorf("200 はエラーなしであるべき, got %v", err)
	}
	if kind := model.KindOf(StatusError("direct", "girl", 403)); kind != model.KindBlocked {
		t.Errorf("403 は blocked であるべき, got %v", kind)
	}
	if kind := model.KindOf(StatusError("direct", "girl", 502)); kind != model.KindTransport {
		t.Errorf("502 は transport であるべき, got %v", kind)
	}
}

func TestCalculateBackoff_Doubles(t *testing.T) {
	base := 10 * time.Second
	max := 2 * time.Minute

	expected := []time.Duration{
		10 * time.Second,
		20 * time.Second,
		40 * time.Second,
		80 * time.Second,
		2 * time.Minute, // 160秒は上限で頭打ち
		2 * time.Minute,
	}
	for attempt, want := range expected {
		if got := CalculateBackoff(attempt, base, max); got != want {
			t.Errorf("attempt=%d: got %v, want %v", attempt, got, want)
		}
	}
}

func TestCalculateBackoff_BaseAboveMax(t *testing.T) {
	if got := CalculateBackoff(0, time.Minute, 30*time.Second); got != 30*time.Second {
		t.Errorf("got %v, want 30s", got)
	}
}

// TestRetryWait_BlockedLongerThanBackoff はアクセス拒否時の待機が通常のバックオフより長いことを検証する。
func TestRetryWait_BlockedLongerThanBackoff(t *testing.T) {
	p := RetryPolicy{
		BackoffBase:     10 * time.Second,
		BackoffMax:      2 * time.Minute,
		BlockedCooldown: 10 * time.Second,
	}
	transport := model.NewTransportError("direct", "girl", errors.New("timeout"))
	blocked := model.NewBlockedError("direct", "girl", 403)

	for attempt := 0; attempt < 5; attempt++ {
		normal := p.RetryWait(attempt, transport)
		extended := p.RetryWait(attempt, blocked)
		if extended <= normal {
			t.Errorf("attempt=%d: blocked wait %v should exceed %v", attempt, extended, normal)
		}
	}

	// attempt=1: バックオフ20秒 + クールダウン10秒×2
	if got := p.RetryWait(1, blocked); got != 40*time.Second {
		t.Errorf("RetryWait(1, blocked) = %v, want 40s", got)
	}
}

func TestRandomBetween_Range(t *testing.T) {
	min, max := 2*time.Second, 5*time.Second
	for i := 0; i < 100; i++ {
		d := RandomBetween(min, max)
		if d < min || d > max {
			t.Fatalf("RandomBetween = %v, want within [%v, %v]", d, min, max)
		}
	}
	if d := RandomBetween(time.Second, time.Second); d != time.Second {
		t.Errorf("equal bounds should return min, got %v", d)
	}
	if d := RandomBetween(3*time.Second, time.Second); d != 3*time.Second {
		t.Errorf("inverted bounds should return min, got %v", d)
	}
}
