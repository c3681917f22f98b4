// Package fetch は論壇記事取得のリトライ/フォールバック制御を提供する。
// 取得戦略の順次試行、ジッター付き待機、指数バックオフ、定期実行スケジューラを含む。
package fetch

import (
	"context"
	"log/slog"
	"time"

	"github.com/hitoshi/forumwatch/internal/metrics"
	"github.com/hitoshi/forumwatch/internal/model"
)

// Strategy は論壇記事を取得する1つの手法のインターフェース。
// 成功時は1件以上の記事を返し、失敗時はmodel.AcquisitionErrorを返す。
type Strategy interface {
	Name() string
	Fetch(ctx context.Context, forum string, limit int) ([]model.Post, error)
}

// State は論壇ごとの取得状態。
type State int

const (
	// StateAttempting は戦略を試行中。
	StateAttempting State = iota
	// StateSucceeded は記事の取得に成功した終端状態。
	StateSucceeded
	// StateExhausted は全戦略が失敗した終端状態。実行全体は継続する。
	StateExhausted
)

// String は状態名を返す。
func (s State) String() string {
	switch s {
	case StateAttempting:
		return "attempting"
	case StateSucceeded:
		return "succeeded"
	case StateExhausted:
		return "exhausted"
	default:
		return "unknown"
	}
}

// Outcome は1論壇の取得結果。
type Outcome struct {
	State    State
	Posts    []model.Post
	Strategy string // 成功した戦略名
	Attempts int    // 全戦略を通した試行回数
	LastErr  error
}

// Controller は取得戦略を順番に試行し、リトライとフォールバックを制御する。
type Controller struct {
	strategies []Strategy
	policy     RetryPolicy
	sleeper    Sleeper
	metrics    metrics.MetricsCollector
	logger     *slog.Logger
	jitter     func(min, max time.Duration) time.Duration
}

// NewController はControllerの新しいインスタンスを生成する。
// MaxRetriesが0以下の場合は各戦略1回だけ試行する。
func NewController(
	strategies []Strategy,
	policy RetryPolicy,
	sleeper Sleeper,
	m metrics.MetricsCollector,
	logger *slog.Logger,
) *Controller {
	if policy.MaxRetries <= 0 {
		policy.MaxRetries = 1
	}
	if sleeper == nil {
		sleeper = TimerSleeper{}
	}
	if m == nil {
		m = metrics.Nop{}
	}
	return &Controller{
		strategies: strategies,
		policy:     policy,
		sleeper:    sleeper,
		metrics:    m,
		logger:     logger,
		jitter:     RandomBetween,
	}
}

// Strategies は試行順の戦略名を返す。
func (c *Controller) Strategies() []string {
	names := make([]string, 0, len(c.strategies))
	for _, s := range c.strategies {
		names = append(names, s.Name())
	}
	return names
}

// Acquire は論壇の記事を取得する。
// 各試行の前にジッター付きの待機を入れ、失敗時はバックオフ後に同じ戦略を再試行する。
// 戦略のリトライ上限に達するか0件結果の場合は次の戦略へ進む。
// 全戦略が失敗した場合はStateExhaustedを返す。エラーは返さない。
func (c *Controller) Acquire(ctx context.Context, forum string, limit int) Outcome {
	out := Outcome{State: StateAttempting}

	for si, strategy := range c.strategies {
		if si > 0 {
			c.logger.Info("次の取得戦略に切り替えます",
				slog.String("forum", forum),
				slog.String("strategy", strategy.Name()),
				slog.Duration("wait", c.policy.StrategyCooldown),
			)
			if err := c.sleeper.Sleep(ctx, c.policy.StrategyCooldown); err != nil {
				out.LastErr = err
				break
			}
		}

		posts, aborted, err := c.runStrategy(ctx, strategy, forum, limit, &out)
		if err == nil {
			out.State = StateSucceeded
			out.Posts = posts
			out.Strategy = strategy.Name()
			c.logger.Info("記事を取得しました",
				slog.String("forum", forum),
				slog.String("strategy", strategy.Name()),
				slog.Int("posts", len(posts)),
				slog.Int("attempts", out.Attempts),
			)
			return out
		}
		out.LastErr = err
		if aborted || ctx.Err() != nil {
			break
		}
	}

	out.State = StateExhausted
	c.metrics.RecordExhausted(forum)
	attrs := []any{
		slog.String("forum", forum),
		slog.Int("attempts", out.Attempts),
	}
	if out.LastErr != nil {
		attrs = append(attrs, slog.String("error", out.LastErr.Error()))
	}
	c.logger.Warn("すべての取得戦略が失敗しました", attrs...)
	return out
}

// runStrategy は1つの戦略をリトライ上限まで試行する。
// 待機が中断された場合はabortedをtrueで返し、残りの戦略も試行しない。
func (c *Controller) runStrategy(ctx context.Context, s Strategy, forum string, limit int, out *Outcome) (posts []model.Post, aborted bool, err error) {
	var lastErr error

	for attempt := 0; attempt < c.policy.MaxRetries; attempt++ {
		if err := c.sleeper.Sleep(ctx, c.jitter(c.policy.JitterMin, c.policy.JitterMax)); err != nil {
			return nil, true, err
		}

		out.Attempts++
		start := time.Now()
		posts, err = s.Fetch(ctx, forum, limit)
		c.metrics.RecordAttemptLatency(s.Name(), time.Since(start))

		if err == nil && len(posts) == 0 {
			err = model.NewEmptyResultError(s.Name(), forum)
		}
		if err == nil {
			c.metrics.RecordAttempt(s.Name(), metrics.ResultSuccess)
			return posts, false, nil
		}

		lastErr = err
		kind := model.KindOf(err)
		c.metrics.RecordAttempt(s.Name(), kind.String())
		c.logger.Warn("取得に失敗しました",
			slog.String("forum", forum),
			slog.String("strategy", s.Name()),
			slog.Int("attempt", attempt+1),
			slog.Int("max_retries", c.policy.MaxRetries),
			slog.String("kind", kind.String()),
			slog.String("error", err.Error()),
		)

		// 0件は形式として正常なため、同じ戦略を繰り返さず次の戦略へ進む
		if kind == model.KindEmpty {
			return nil, false, err
		}
		if ctx.Err() != nil {
			return nil, true, err
		}
		if attempt+1 >= c.policy.MaxRetries {
			break
		}

		wait := c.policy.RetryWait(attempt, err)
		if kind == model.KindBlocked {
			c.logger.Warn("アクセス拒否を検出したため待機します",
				slog.String("forum", forum),
				slog.String("strategy", s.Name()),
				slog.Duration("wait", wait),
			)
		}
		if err := c.sleeper.Sleep(ctx, wait); err != nil {
			return nil, true, err
		}
	}

	return nil, false, lastErr
}
