package acquire

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/hitoshi/forumwatch/internal/model"
)

// 記事要素の候補セレクタ。上から順に試し、最初に要素が見つかったものを使う。
var articleSelectors = []string{
	"article",
	`[data-testid*="post"]`,
	`[class*="Post"]`,
	`[class*="post"]`,
	`a[href*="/p/"]`,
	".PostEntry_container",
	".post-item",
}

// 記事要素内のタイトル候補セレクタ。
var titleSelectors = []string{"h3", "h2", ".title", `[class*="title"]`, `[class*="Title"]`}

const (
	// maxDOMElements はレンダリング済みDOMから処理する要素数の上限。
	maxDOMElements = 30
	// maxSourceLinks はページソースから拾う記事リンク数の上限。
	maxSourceLinks = 20
)

// extractFromDOM はレンダリング済みHTMLの記事要素から記事を抽出する。
// タイトルは要素内の見出し、見つからなければ要素全体のテキストを使う。
// 候補セレクタで記事が得られない場合は論壇の記事リンクそのものを要素として扱う。
func extractFromDOM(page, forum string, e Endpoints, cleaner TextCleaner, limit int) ([]model.Post, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	if err != nil {
		return nil, fmt.Errorf("HTMLのパースに失敗: %w", err)
	}

	linkPattern := forumPostPattern(forum)
	for _, sel := range articleSelectors {
		if s := doc.Find(sel); s.Length() > 0 {
			if posts := collectPosts(s, linkPattern, forum, e, cleaner, limit); len(posts) > 0 {
				return posts, nil
			}
			break
		}
	}
	links := doc.Find(fmt.Sprintf(`a[href*="/f/%s/p/"]`, forum))
	return collectPosts(links, linkPattern, forum, e, cleaner, limit), nil
}

// collectPosts は要素ごとにリンクから記事IDを取り出し、IDの重複を除いて記事にする。
func collectPosts(found *goquery.Selection, linkPattern *regexp.Regexp, forum string, e Endpoints, cleaner TextCleaner, limit int) []model.Post {
	posts := make([]model.Post, 0)
	seen := make(map[string]struct{})

	found.EachWithBreak(func(i int, el *goquery.Selection) bool {
		if i >= maxDOMElements || (limit > 0 && len(posts) >= limit) {
			return false
		}

		m := linkPattern.FindStringSubmatch(elementHref(el))
		if m == nil {
			return true
		}
		id := m[1]
		if _, dup := seen[id]; dup {
			return true
		}
		seen[id] = struct{}{}

		title := elementTitle(el, cleaner)
		if title == "" {
			title = placeholderTitle(id)
		}
		posts = append(posts, model.Post{
			ID:             id,
			Forum:          forum,
			Title:          title,
			Excerpt:        title,
			URL:            e.PostURL(forum, id),
			SourceStrategy: NameBrowser,
		})
		return true
	})
	return posts
}

func elementHref(el *goquery.Selection) string {
	if goquery.NodeName(el) == "a" {
		href, _ := el.Attr("href")
		return href
	}
	href, _ := el.Find("a").First().Attr("href")
	return href
}

func elementTitle(el *goquery.Selection, cleaner TextCleaner) string {
	for _, sel := range titleSelectors {
		if t := cleaner.Clean(el.Find(sel).First().Text()); t != "" {
			return t
		}
	}
	return cleaner.Clean(el.Text())
}

// forumPostPattern は論壇の記事リンクに一致し、記事IDを取り出す正規表現を返す。
func forumPostPattern(forum string) *regexp.Regexp {
	return regexp.MustCompile(`/f/` + regexp.QuoteMeta(forum) + `/p/(\d+)`)
}

// extractFromSource はページソースのリンクから記事IDだけを拾う低精度の抽出。
// タイトルは取得できないため仮タイトルを使う。
func extractFromSource(page, forum string, e Endpoints, limit int) []model.Post {
	n := maxSourceLinks
	if limit > 0 && limit < n {
		n = limit
	}

	linkPattern := forumPostPattern(forum)
	posts := make([]model.Post, 0)
	seen := make(map[string]struct{})

	z := html.NewTokenizer(strings.NewReader(page))
	for len(posts) < n {
		tt := z.Next()
		if tt == html.ErrorToken {
			break
		}
		if tt != html.StartTagToken && tt != html.SelfClosingTagToken {
			continue
		}
		name, hasAttr := z.TagName()
		if string(name) != "a" || !hasAttr {
			continue
		}
		for {
			key, val, more := z.TagAttr()
			if string(key) == "href" {
				if m := linkPattern.FindStringSubmatch(string(val)); m != nil {
					id := m[1]
					if _, dup := seen[id]; !dup {
						seen[id] = struct{}{}
						posts = append(posts, model.Post{
							ID:             id,
							Forum:          forum,
							Title:          placeholderTitle(id),
							URL:            e.PostURL(forum, id),
							SourceStrategy: nameBrowserSource,
						})
					}
				}
			}
			if !more {
				break
			}
		}
	}
	return posts
}
