package acquire

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/forumwatch/internal/browser"
	"github.com/hitoshi/forumwatch/internal/model"
	"github.com/hitoshi/forumwatch/internal/worker/fetch"
)

// ページ操作の間に入れる人の操作を模した待機。
const (
	pageSettleMin  = 3 * time.Second
	pageSettleMax  = 6 * time.Second
	scrollPauseMin = 2 * time.Second
	scrollPauseMax = 4 * time.Second
	scrollTimes    = 3
)

// humanPause は範囲内のランダムな時間だけ待機する関数を返す。
func humanPause(sleeper fetch.Sleeper, min, max time.Duration) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		return sleeper.Sleep(ctx, fetch.RandomBetween(min, max))
	}
}

// loadForumPage は論壇ページを開き、スクロールして遅延読み込みを発生させる。
func loadForumPage(ctx context.Context, session browser.Session, deps Deps, strategy, forum string) error {
	if err := session.Visit(ctx, deps.Endpoints.ForumPage(forum)); err != nil {
		return model.NewTransportError(strategy, forum, fmt.Errorf("ページの読み込みに失敗: %w", err))
	}
	if err := humanPause(deps.Sleeper, pageSettleMin, pageSettleMax)(ctx); err != nil {
		return model.NewTransportError(strategy, forum, err)
	}
	if err := session.Scroll(ctx, scrollTimes, humanPause(deps.Sleeper, scrollPauseMin, scrollPauseMax)); err != nil {
		return model.NewTransportError(strategy, forum, err)
	}
	return nil
}

// BrowserStrategy はヘッドレスブラウザで論壇ページを表示し、DOMから記事を抽出する。
// DOMから抽出できない場合はページソースのリンクから記事IDだけを拾う。
type BrowserStrategy struct {
	deps    Deps
	session browser.Session
}

// NewBrowserStrategy はBrowserStrategyの新しいインスタンスを生成する。
func NewBrowserStrategy(deps Deps, session browser.Session) *BrowserStrategy {
	return &BrowserStrategy{deps: deps.withDefaults(), session: session}
}

func (s *BrowserStrategy) Name() string { return NameBrowser }

func (s *BrowserStrategy) Fetch(ctx context.Context, forum string, limit int) ([]model.Post, error) {
	if err := loadForumPage(ctx, s.session, s.deps, NameBrowser, forum); err != nil {
		return nil, err
	}

	page, err := s.session.HTML(ctx)
	if err != nil {
		return nil, model.NewTransportError(NameBrowser, forum, err)
	}

	posts, err := extractFromDOM(page, forum, s.deps.Endpoints, s.deps.Cleaner, limit)
	if err != nil {
		return nil, model.NewDecodeError(NameBrowser, forum, err)
	}
	if len(posts) == 0 {
		s.deps.Logger.Info("DOMから記事を抽出できないためページソースから抽出します",
			slog.String("forum", forum),
		)
		posts = extractFromSource(page, forum, s.deps.Endpoints, limit)
	}

	if len(posts) == 0 {
		if isChallengePage([]byte(page)) {
			return nil, model.NewBlockedError(NameBrowser, forum, 200)
		}
		return nil, model.NewEmptyResultError(NameBrowser, forum)
	}
	return posts, nil
}
