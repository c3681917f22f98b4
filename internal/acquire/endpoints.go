package acquire

import (
	"fmt"
	"net/url"
	"strconv"
)

// Endpoints は論壇サイトのURLを組み立てる。
type Endpoints struct {
	BaseURL string // 末尾のスラッシュなし
}

// ForumPage は論壇トップページのURLを返す。
func (e Endpoints) ForumPage(forum string) string {
	return fmt.Sprintf("%s/f/%s", e.BaseURL, url.PathEscape(forum))
}

// PostURL は記事の正規URLを返す。
func (e Endpoints) PostURL(forum, id string) string {
	return fmt.Sprintf("%s/f/%s/p/%s", e.BaseURL, url.PathEscape(forum), url.PathEscape(id))
}

// PostList は論壇の記事一覧APIのURLを返す。
func (e Endpoints) PostList(forum string, limit int, popular bool) string {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))
	q.Set("popular", strconv.FormatBool(popular))
	return fmt.Sprintf("%s/service/api/v2/forums/%s/posts?%s", e.BaseURL, url.PathEscape(forum), q.Encode())
}

// PostDetail は記事詳細APIのURLを返す。
func (e Endpoints) PostDetail(id string) string {
	return fmt.Sprintf("%s/service/api/v2/posts/%s", e.BaseURL, url.PathEscape(id))
}

// GlobalPaging はページングAPIのURLを返す。
func (e Endpoints) GlobalPaging(params PagingParams) string {
	q := url.Values{}
	q.Set("enrich", "true")
	q.Set("forumLogo", "true")
	q.Set("pinnedPosts", "widget")
	q.Set("country", "TW")
	q.Set("platform", "web")
	q.Set("listKey", params.ListKey)
	q.Set("immersiveVideoListKey", params.ImmersiveVideoListKey)
	q.Set("pageKey", params.PageKey)
	q.Set("offset", "0")
	return fmt.Sprintf("%s%s?%s", e.BaseURL, globalPagingPath, q.Encode())
}

const globalPagingPath = "/service/api/v2/globalPaging/page"
