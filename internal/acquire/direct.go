package acquire

import (
	"context"

	"github.com/hitoshi/forumwatch/internal/model"
)

// DirectStrategy はブラウザを模したヘッダーで記事一覧APIへ1回GETする。
type DirectStrategy struct {
	deps    Deps
	http    httpGetter
	profile Profile
}

// NewDirectStrategy はDirectStrategyの新しいインスタンスを生成する。
func NewDirectStrategy(deps Deps) *DirectStrategy {
	deps = deps.withDefaults()
	return &DirectStrategy{deps: deps, http: deps.getter(), profile: ChromeWindows()}
}

func (s *DirectStrategy) Name() string { return NameDirect }

// Fetch は最新記事の一覧を取得する。
func (s *DirectStrategy) Fetch(ctx context.Context, forum string, limit int) ([]model.Post, error) {
	body, err := s.http.get(ctx, request{
		strategy:   NameDirect,
		forum:      forum,
		url:        s.deps.Endpoints.PostList(forum, limit, false),
		headers:    forumHeaders(s.profile, s.deps.Endpoints, forum),
		expectJSON: true,
	})
	if err != nil {
		return nil, err
	}

	list, err := decodePostList(body)
	if err != nil {
		return nil, model.NewDecodeError(NameDirect, forum, err)
	}
	if len(list) == 0 {
		return nil, model.NewEmptyResultError(NameDirect, forum)
	}
	return toPosts(list, forum, NameDirect, s.deps.Endpoints, s.deps.Cleaner, limit), nil
}
