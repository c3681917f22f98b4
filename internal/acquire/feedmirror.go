package acquire

import (
	"context"
	"net/url"
	"regexp"
	"strings"

	"github.com/mmcdole/gofeed"

	"github.com/hitoshi/forumwatch/internal/model"
	"github.com/hitoshi/forumwatch/internal/security"
)

var postIDPattern = regexp.MustCompile(`/p/(\d+)`)

// FeedMirrorStrategy は論壇のRSS/Atomミラーから記事を取得する。
// 本文は含まれないことが多く、抜粋のみで照合する。
type FeedMirrorStrategy struct {
	deps     Deps
	http     httpGetter
	template string
}

// NewFeedMirrorStrategy はFeedMirrorStrategyの新しいインスタンスを生成する。
// templateは{forum}を論壇キーに置換して使うURL。
func NewFeedMirrorStrategy(deps Deps, template string) *FeedMirrorStrategy {
	deps = deps.withDefaults()
	return &FeedMirrorStrategy{deps: deps, http: deps.getter(), template: template}
}

func (s *FeedMirrorStrategy) Name() string { return NameFeedMirror }

// Fetch はフィードを取得してパースし、記事リンクからIDを取り出す。
func (s *FeedMirrorStrategy) Fetch(ctx context.Context, forum string, limit int) ([]model.Post, error) {
	feedURL := strings.ReplaceAll(s.template, security.ForumPlaceholder, url.PathEscape(forum))

	body, err := s.http.get(ctx, request{
		strategy: NameFeedMirror,
		forum:    forum,
		url:      feedURL,
		headers: map[string]string{
			"User-Agent": uaChromeWindows,
			"Accept":     "application/rss+xml, application/atom+xml, application/xml, text/xml, */*",
		},
	})
	if err != nil {
		return nil, err
	}

	parsed, err := gofeed.NewParser().ParseString(string(body))
	if err != nil {
		if isChallengePage(body) {
			return nil, model.NewBlockedError(NameFeedMirror, forum, 200)
		}
		return nil, model.NewDecodeError(NameFeedMirror, forum, err)
	}

	posts := convertFeedItems(parsed.Items, forum, s.deps.Endpoints, s.deps.Cleaner, limit)
	if len(posts) == 0 {
		return nil, model.NewEmptyResultError(NameFeedMirror, forum)
	}
	return posts, nil
}

// convertFeedItems はgofeedの記事をmodel.Postに変換する。
// リンクとGUIDのどちらからも記事IDを取り出せない項目は除外する。
func convertFeedItems(items []*gofeed.Item, forum string, e Endpoints, cleaner TextCleaner, limit int) []model.Post {
	posts := make([]model.Post, 0, len(items))
	seen := make(map[string]struct{}, len(items))

	for _, item := range items {
		if item == nil {
			continue
		}
		id := feedItemID(item)
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}

		title := cleaner.Clean(item.Title)
		if title == "" {
			title = placeholderTitle(id)
		}
		post := model.Post{
			ID:             id,
			Forum:          forum,
			Title:          title,
			Excerpt:        model.Truncate(cleaner.Clean(item.Description), model.ContentPreviewLength),
			Content:        cleaner.Clean(item.Content),
			URL:            e.PostURL(forum, id),
			CreatedAt:      item.Published,
			SourceStrategy: NameFeedMirror,
		}
		if item.Author != nil {
			post.Author = item.Author.Name
		}
		if post.Author == "" && len(item.Authors) > 0 && item.Authors[0] != nil {
			post.Author = item.Authors[0].Name
		}
		posts = append(posts, post)

		if limit > 0 && len(posts) >= limit {
			break
		}
	}
	return posts
}

func feedItemID(item *gofeed.Item) string {
	for _, s := range []string{item.Link, item.GUID} {
		if m := postIDPattern.FindStringSubmatch(s); m != nil {
			return m[1]
		}
	}
	return ""
}
