// Package monitor は論壇ごとの記事取得、キーワード照合、保存、通知を1回の実行としてまとめる。
package monitor

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/forumwatch/internal/config"
	"github.com/hitoshi/forumwatch/internal/matcher"
	"github.com/hitoshi/forumwatch/internal/metrics"
	"github.com/hitoshi/forumwatch/internal/model"
	"github.com/hitoshi/forumwatch/internal/repository"
	"github.com/hitoshi/forumwatch/internal/worker/fetch"
)

// Acquirer は論壇の記事一覧を取得するインターフェース。
// fetch.Controllerが実装する。
type Acquirer interface {
	Acquire(ctx context.Context, forum string, limit int) fetch.Outcome
}

// Notifier は実行で見つかった一致を通知するインターフェース。
type Notifier interface {
	Notify(ctx context.Context, matches []model.MatchRecord) error
}

// Options は監視対象と実行中の待機時間。
type Options struct {
	Forums           []config.Forum
	Keywords         []string
	FetchLimit       int
	ForumCooldownMin time.Duration
	ForumCooldownMax time.Duration
	PostPacing       time.Duration
}

// OptionsFromConfig は設定からOptionsを組み立てる。
// 論壇の表示名が空の場合はキーで補う。
func OptionsFromConfig(cfg *config.Config) Options {
	forums := make([]config.Forum, 0, len(cfg.Forums))
	for _, f := range cfg.Forums {
		forums = append(forums, config.Forum{Key: f.Key, Name: cfg.ForumName(f.Key)})
	}
	return Options{
		Forums:           forums,
		Keywords:         matcher.Normalize(cfg.Keywords),
		FetchLimit:       cfg.FetchLimit,
		ForumCooldownMin: cfg.ForumCooldownMin,
		ForumCooldownMax: cfg.ForumCooldownMax,
		PostPacing:       cfg.PostPacing,
	}
}

// ForumResult は1論壇の処理結果。
type ForumResult struct {
	Forum     string
	Acquired  int
	Evaluated int
	Matches   []model.MatchRecord
	Exhausted bool
}

// Monitor は監視の1回分の実行を担う。
// 論壇、記事、取得試行はすべて逐次に処理する。同時に複数の実行を行ってはならない。
type Monitor struct {
	acquirer Acquirer
	ledger   repository.LedgerRepository
	store    repository.MatchStore
	notifier Notifier
	metrics  metrics.MetricsCollector
	sleeper  fetch.Sleeper
	logger   *slog.Logger
	opts     Options
	status   statusTracker

	now      func() time.Time
	newRunID func() string
	jitter   func(min, max time.Duration) time.Duration
}

// NewMonitor はMonitorの新しいインスタンスを生成する。
// notifierとmetricsはnilの場合に無効化され、sleeperはnilの場合に実時間で待機する。
func NewMonitor(
	acquirer Acquirer,
	ledger repository.LedgerRepository,
	store repository.MatchStore,
	notifier Notifier,
	m metrics.MetricsCollector,
	sleeper fetch.Sleeper,
	logger *slog.Logger,
	opts Options,
) *Monitor {
	if m == nil {
		m = metrics.Nop{}
	}
	if sleeper == nil {
		sleeper = fetch.TimerSleeper{}
	}
	return &Monitor{
		acquirer: acquirer,
		ledger:   ledger,
		store:    store,
		notifier: notifier,
		metrics:  m,
		sleeper:  sleeper,
		logger:   logger,
		opts:     opts,
		now:      time.Now,
		newRunID: func() string { return uuid.New().String() },
		jitter:   fetch.RandomBetween,
	}
}

// RunOnce はRunを実行し、エラーだけを返す。fetch.Runnerを満たす。
func (m *Monitor) RunOnce(ctx context.Context) error {
	_, err := m.Run(ctx)
	return err
}

// Run は全論壇を順に監視し、サマリーの保存と通知まで行う。
// 論壇や記事単位の失敗はログに記録して0件として扱い、実行は継続する。
// 処理済み台帳を読み込めない場合だけFatalInitErrorを返す。
func (m *Monitor) Run(ctx context.Context) (summary *model.RunSummary, err error) {
	start := m.now()
	runID := m.newRunID()
	logger := m.logger.With(slog.String("run_id", runID))

	m.status.begin()
	defer func() {
		m.status.finish(runID, start, m.now(), summary, err)
	}()

	forumKeys := make([]string, 0, len(m.opts.Forums))
	for _, f := range m.opts.Forums {
		forumKeys = append(forumKeys, f.Key)
	}

	logger.Info("監視を開始します",
		slog.Int("forum_count", len(forumKeys)),
		slog.Int("keyword_count", len(m.opts.Keywords)),
	)

	processed, loadErr := m.ledger.Load(ctx)
	if loadErr != nil {
		return nil, model.NewFatalInitError("ledger", loadErr)
	}
	logger.Info("処理済み台帳を読み込みました", slog.Int("processed_count", len(processed)))

	summary = model.NewRunSummary(runID, forumKeys, start)

	for i, forum := range m.opts.Forums {
		if ctx.Err() != nil {
			logger.Warn("監視が中断されました", slog.String("forum", forum.Key))
			break
		}

		result := m.monitorForum(ctx, logger, forum, processed)
		for _, rec := range result.Matches {
			summary.Add(rec)
		}
		if result.Exhausted {
			summary.MarkExhausted(forum.Key)
		}

		if i < len(m.opts.Forums)-1 {
			wait := m.jitter(m.opts.ForumCooldownMin, m.opts.ForumCooldownMax)
			logger.Info("次の論壇まで待機します", slog.Duration("wait", wait))
			if err := m.sleeper.Sleep(ctx, wait); err != nil {
				logger.Warn("監視が中断されました", slog.String("error", err.Error()))
				break
			}
		}
	}

	// サマリーと通知は中断時も試みるため、親のキャンセルを引き継がない
	finishCtx := context.WithoutCancel(ctx)

	if err := m.store.WriteSummary(finishCtx, summary); err != nil {
		logger.Error("サマリーの保存に失敗しました", slog.String("error", err.Error()))
	}

	if m.notifier != nil && summary.TotalMatches > 0 {
		if err := m.notifier.Notify(finishCtx, summary.Matches); err != nil {
			m.metrics.RecordNotifyFailure()
			logger.Error("通知の送信に失敗しました", slog.String("error", err.Error()))
		}
	}

	duration := m.now().Sub(start)
	m.metrics.RecordRunDuration(duration)
	logger.Info("監視が完了しました",
		slog.Int("total_matches", summary.TotalMatches),
		slog.Any("matches_by_forum", summary.MatchesByForum),
		slog.Int("exhausted_forums", len(summary.ExhaustedForums)),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)
	return summary, nil
}

// MonitorForum は1論壇の記事を取得し、未処理の記事だけを照合する。
// 照合した記事は一致の有無にかかわらずprocessedと台帳に追加する。
func (m *Monitor) MonitorForum(ctx context.Context, forum config.Forum, processed model.ProcessedSet) ForumResult {
	return m.monitorForum(ctx, m.logger, forum, processed)
}

func (m *Monitor) monitorForum(ctx context.Context, logger *slog.Logger, forum config.Forum, processed model.ProcessedSet) ForumResult {
	logger = logger.With(slog.String("forum", forum.Key))
	result := ForumResult{Forum: forum.Key, Matches: []model.MatchRecord{}}

	outcome := m.acquirer.Acquire(ctx, forum.Key, m.opts.FetchLimit)
	if outcome.State != fetch.StateSucceeded {
		result.Exhausted = outcome.State == fetch.StateExhausted
		logger.Warn("記事を取得できなかったため論壇をスキップします",
			slog.String("state", outcome.State.String()),
			slog.Int("attempts", outcome.Attempts),
		)
		return result
	}

	result.Acquired = len(outcome.Posts)
	m.metrics.RecordPostsAcquired(forum.Key, len(outcome.Posts))
	logger.Info("記事を取得しました",
		slog.Int("post_count", len(outcome.Posts)),
		slog.String("strategy", outcome.Strategy),
	)

	// 評価を始めた記事の保存と台帳への追記は、途中でキャンセルされても完了させる
	persistCtx := context.WithoutCancel(ctx)

	for _, post := range outcome.Posts {
		key := post.Key()
		if processed.Has(key) {
			continue
		}
		if ctx.Err() != nil {
			break
		}

		result.Evaluated++
		m.metrics.RecordPostEvaluated(forum.Key)

		if keywords := matcher.Match(post.MatchText(), m.opts.Keywords); len(keywords) > 0 {
			if rec, ok := m.saveMatch(persistCtx, logger, post, forum, keywords); ok {
				result.Matches = append(result.Matches, rec)
			}
		}

		processed.Add(key)
		if err := m.ledger.Append(persistCtx, key); err != nil {
			logger.Error("処理済み台帳への追記に失敗しました",
				slog.String("post_key", key.String()),
				slog.String("error", err.Error()),
			)
		}

		if err := m.sleeper.Sleep(ctx, m.opts.PostPacing); err != nil {
			break
		}
	}

	logger.Info("論壇の処理が完了しました",
		slog.Int("evaluated", result.Evaluated),
		slog.Int("matches", len(result.Matches)),
	)
	return result
}

// saveMatch は一致レコードを保存する。保存済みまたは保存に失敗した場合はfalseを返す。
func (m *Monitor) saveMatch(ctx context.Context, logger *slog.Logger, post model.Post, forum config.Forum, keywords []string) (model.MatchRecord, bool) {
	name := forum.Name
	if name == "" {
		name = forum.Key
	}
	rec := model.NewMatchRecord(post, name, keywords, m.now())

	appended, err := m.store.Append(ctx, rec)
	if err != nil {
		logger.Error("一致レコードの保存に失敗しました",
			slog.String("post_key", rec.Key.String()),
			slog.String("error", err.Error()),
		)
		return model.MatchRecord{}, false
	}
	if !appended {
		return model.MatchRecord{}, false
	}

	m.metrics.RecordMatch(forum.Key)
	logger.Info("キーワードに一致する記事を保存しました",
		slog.String("post_key", rec.Key.String()),
		slog.String("title", model.Truncate(rec.Title, 50)),
		slog.Any("keywords", rec.MatchedKeywords),
	)
	return rec, true
}
