package acquire

import (
	"context"
	"log/slog"
	"time"

	"github.com/hitoshi/forumwatch/internal/model"
	"github.com/hitoshi/forumwatch/internal/worker/fetch"
)

// EndpointVariant は同じ記事一覧を返す別のエンドポイント。
type EndpointVariant struct {
	Name  string
	Build func(e Endpoints, forum string, limit int) string
}

// DefaultEndpointVariants は最新順と人気順の記事一覧。
func DefaultEndpointVariants() []EndpointVariant {
	return []EndpointVariant{
		{Name: "latest", Build: func(e Endpoints, forum string, limit int) string {
			return e.PostList(forum, limit, false)
		}},
		{Name: "popular", Build: func(e Endpoints, forum string, limit int) string {
			return e.PostList(forum, limit, true)
		}},
	}
}

// pairPacing はプロファイルとエンドポイントの組み合わせを切り替える間の待機範囲。
const (
	pairPacingMin = 1 * time.Second
	pairPacingMax = 3 * time.Second
)

// MultiProfileStrategy は（プロファイル × エンドポイント）の組み合わせを順に試し、
// 最初に空でない記事一覧を得た時点で終了する。
type MultiProfileStrategy struct {
	deps     Deps
	http     httpGetter
	profiles []Profile
	variants []EndpointVariant
}

// NewMultiProfileStrategy はMultiProfileStrategyの新しいインスタンスを生成する。
// profilesまたはvariantsが空の場合は既定値を使用する。
func NewMultiProfileStrategy(deps Deps, profiles []Profile, variants []EndpointVariant) *MultiProfileStrategy {
	deps = deps.withDefaults()
	if len(profiles) == 0 {
		profiles = DefaultProfiles()
	}
	if len(variants) == 0 {
		variants = DefaultEndpointVariants()
	}
	return &MultiProfileStrategy{deps: deps, http: deps.getter(), profiles: profiles, variants: variants}
}

func (s *MultiProfileStrategy) Name() string { return NameMultiProfile }

// Fetch は組み合わせを順に試行する。すべて失敗した場合は最後のエラーを返す。
// アクセス拒否が1つでもあれば、リトライ時の待機を延ばすため最初のBlockedを優先して返す。
func (s *MultiProfileStrategy) Fetch(ctx context.Context, forum string, limit int) ([]model.Post, error) {
	var lastErr, blockedErr error
	first := true

	for _, profile := range s.profiles {
		for _, variant := range s.variants {
			if !first {
				if err := s.deps.Sleeper.Sleep(ctx, fetch.RandomBetween(pairPacingMin, pairPacingMax)); err != nil {
					return nil, model.NewTransportError(NameMultiProfile, forum, err)
				}
			}
			first = false

			posts, err := s.try(ctx, profile, variant, forum, limit)
			if err == nil {
				return posts, nil
			}
			if blockedErr == nil && model.IsBlocked(err) {
				blockedErr = err
			}
			lastErr = err
			s.deps.Logger.Debug("組み合わせでの取得に失敗しました",
				slog.String("forum", forum),
				slog.String("profile", profile.Name),
				slog.String("endpoint", variant.Name),
				slog.String("error", err.Error()),
			)
		}
	}

	if blockedErr != nil {
		return nil, blockedErr
	}
	if lastErr == nil {
		lastErr = model.NewEmptyResultError(NameMultiProfile, forum)
	}
	return nil, lastErr
}

func (s *MultiProfileStrategy) try(ctx context.Context, profile Profile, variant EndpointVariant, forum string, limit int) ([]model.Post, error) {
	body, err := s.http.get(ctx, request{
		strategy:   NameMultiProfile,
		forum:      forum,
		url:        variant.Build(s.deps.Endpoints, forum, limit),
		headers:    forumHeaders(profile, s.deps.Endpoints, forum),
		expectJSON: true,
	})
	if err != nil {
		return nil, err
	}
	list, err := decodePostList(body)
	if err != nil {
		return nil, model.NewDecodeError(NameMultiProfile, forum, err)
	}
	if len(list) == 0 {
		return nil, model.NewEmptyResultError(NameMultiProfile, forum)
	}
	return toPosts(list, forum, NameMultiProfile, s.deps.Endpoints, s.deps.Cleaner, limit), nil
}
