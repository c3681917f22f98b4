package acquire

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/hitoshi/forumwatch/internal/browser"
	"github.com/hitoshi/forumwatch/internal/model"
)

// PagingParams はページングAPIのクエリパラメータのうち、サイト側で変化する値。
type PagingParams struct {
	ListKey               string
	ImmersiveVideoListKey string
	PageKey               string
}

// DefaultPagingParams はブラウザの通信から値を回収できなかった場合の既定値を返す。
func DefaultPagingParams(forum string, now time.Time) PagingParams {
	return PagingParams{
		ListKey:               "f_popular_v3_" + forum,
		ImmersiveVideoListKey: "v_popular_" + forum,
		PageKey:               fmt.Sprintf("%s_page_%d", forum, now.Unix()),
	}
}

// DiscoverPagingParams はブラウザが受信したレスポンスURLからページングAPIのパラメータを回収する。
// 新しいものから順に調べ、listKeyが論壇を含むものを採用する。
// 見つからない項目は既定値で補い、ひとつも回収できなければfalseを返す。
func DiscoverPagingParams(responseURLs []string, forum string, now time.Time) (PagingParams, bool) {
	params := DefaultPagingParams(forum, now)

	for i := len(responseURLs) - 1; i >= 0; i-- {
		u, err := url.Parse(responseURLs[i])
		if err != nil || !strings.HasSuffix(u.Path, globalPagingPath) {
			continue
		}
		q := u.Query()
		if !strings.Contains(q.Get("listKey"), forum) {
			continue
		}
		params.ListKey = q.Get("listKey")
		if v := q.Get("immersiveVideoListKey"); v != "" {
			params.ImmersiveVideoListKey = v
		}
		if v := q.Get("pageKey"); v != "" {
			params.PageKey = v
		}
		return params, true
	}
	return params, false
}

// APIDiscoveryStrategy はブラウザで論壇ページを開いてページングAPIのパラメータとCookieを回収し、
// そのCookieでAPIを直接呼び出す。一覧の各記事は詳細APIで本文を補完する。
type APIDiscoveryStrategy struct {
	deps        Deps
	session     browser.Session
	profile     Profile
	detailLimit int
	limiter     *rate.Limiter
	now         func() time.Time
}

// NewAPIDiscoveryStrategy はAPIDiscoveryStrategyの新しいインスタンスを生成する。
// 詳細APIへのリクエストはdetailIntervalごとに1回に制限する。
func NewAPIDiscoveryStrategy(deps Deps, session browser.Session, detailLimit int, detailInterval time.Duration) *APIDiscoveryStrategy {
	limit := rate.Inf
	if detailInterval > 0 {
		limit = rate.Every(detailInterval)
	}
	return &APIDiscoveryStrategy{
		deps:        deps.withDefaults(),
		session:     session,
		profile:     ChromeWindows(),
		detailLimit: detailLimit,
		limiter:     rate.NewLimiter(limit, 1),
		now:         time.Now,
	}
}

func (s *APIDiscoveryStrategy) Name() string { return NameAPIDiscovery }

func (s *APIDiscoveryStrategy) Fetch(ctx context.Context, forum string, limit int) ([]model.Post, error) {
	if err := loadForumPage(ctx, s.session, s.deps, NameAPIDiscovery, forum); err != nil {
		return nil, err
	}

	params, discovered := DiscoverPagingParams(s.session.ResponseURLs(), forum, s.now())
	s.deps.Logger.Info("ページングAPIのパラメータを決定しました",
		slog.String("forum", forum),
		slog.Bool("discovered", discovered),
		slog.String("list_key", params.ListKey),
	)

	client, err := s.clientWithBrowserCookies(ctx, forum)
	if err != nil {
		return nil, err
	}
	getter := newHTTPGetter(client, s.deps.MaxBodySize, s.deps.Logger)
	headers := forumHeaders(s.profile, s.deps.Endpoints, forum)
	delete(headers, "X-Requested-With")

	body, err := getter.get(ctx, request{
		strategy:   NameAPIDiscovery,
		forum:      forum,
		url:        s.deps.Endpoints.GlobalPaging(params),
		headers:    headers,
		expectJSON: true,
	})
	if err != nil {
		return nil, err
	}

	list, err := decodePostList(body)
	if err != nil {
		return nil, model.NewDecodeError(NameAPIDiscovery, forum, err)
	}
	if len(list) == 0 {
		return nil, model.NewEmptyResultError(NameAPIDiscovery, forum)
	}

	n := len(list)
	if s.detailLimit > 0 && n > s.detailLimit {
		n = s.detailLimit
	}
	if limit > 0 && n > limit {
		n = limit
	}
	list = list[:n]

	for i, basic := range list {
		if err := s.limiter.Wait(ctx); err != nil {
			return nil, model.NewTransportError(NameAPIDiscovery, forum, err)
		}
		detail, err := s.fetchDetail(ctx, getter, headers, forum, string(basic.ID))
		if err != nil {
			// 詳細を取得できない記事は一覧の情報だけで照合する
			s.deps.Logger.Warn("記事詳細の取得に失敗しました",
				slog.String("forum", forum),
				slog.String("post_id", string(basic.ID)),
				slog.String("error", err.Error()),
			)
			continue
		}
		list[i] = basic.merge(detail)
	}

	return toPosts(list, forum, NameAPIDiscovery, s.deps.Endpoints, s.deps.Cleaner, 0), nil
}

func (s *APIDiscoveryStrategy) fetchDetail(ctx context.Context, getter httpGetter, headers map[string]string, forum, id string) (apiPost, error) {
	body, err := getter.get(ctx, request{
		strategy:   NameAPIDiscovery,
		forum:      forum,
		url:        s.deps.Endpoints.PostDetail(id),
		headers:    headers,
		expectJSON: true,
	})
	if err != nil {
		return apiPost{}, err
	}
	return decodePostDetail(body)
}

// clientWithBrowserCookies はブラウザのCookieを持つCookieJarを設定したクライアントを返す。
// 共有クライアントは変更せずにコピーを使う。
func (s *APIDiscoveryStrategy) clientWithBrowserCookies(ctx context.Context, forum string) (*http.Client, error) {
	cookies, err := s.session.Cookies(ctx)
	if err != nil {
		return nil, model.NewTransportError(NameAPIDiscovery, forum, err)
	}
	base, err := url.Parse(s.deps.Endpoints.BaseURL)
	if err != nil {
		return nil, model.NewTransportError(NameAPIDiscovery, forum, fmt.Errorf("ベースURLが不正です: %w", err))
	}
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, model.NewTransportError(NameAPIDiscovery, forum, err)
	}
	jar.SetCookies(base, cookies)

	client := *s.deps.Client
	client.Jar = jar
	return &client, nil
}
