package acquire

import (
	"bytes"
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"

	"github.com/hitoshi/forumwatch/internal/model"
)

// 記事IDとして扱う数値の範囲。構造を特定できないペイロードから記事を拾うときに使う。
const (
	minArticleID = 100000000
	maxArticleID = 999999999
)

// flexID は数値と文字列のどちらでも受け付ける記事ID。
type flexID string

func (f *flexID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("id is neither number nor string: %s", data)
	}
	*f = flexID(n.String())
	return nil
}

// apiPost は記事一覧・詳細APIの記事オブジェクト。
type apiPost struct {
	ID           flexID `json:"id"`
	Title        string `json:"title"`
	Excerpt      string `json:"excerpt"`
	Content      string `json:"content"`
	School       string `json:"school"`
	Department   string `json:"department"`
	LikeCount    int    `json:"likeCount"`
	CommentCount int    `json:"commentCount"`
	CreatedAt    string `json:"createdAt"`
}

// author は学校と学科から投稿者の表示名を組み立てる。
func (p apiPost) author() string {
	return strings.TrimSpace(p.School + " " + p.Department)
}

// merge は詳細APIの結果で空でない項目を上書きする。
func (p apiPost) merge(detail apiPost) apiPost {
	if detail.Title != "" {
		p.Title = detail.Title
	}
	if detail.Excerpt != "" {
		p.Excerpt = detail.Excerpt
	}
	if detail.Content != "" {
		p.Content = detail.Content
	}
	if detail.School != "" {
		p.School = detail.School
	}
	if detail.Department != "" {
		p.Department = detail.Department
	}
	if detail.LikeCount != 0 {
		p.LikeCount = detail.LikeCount
	}
	if detail.CommentCount != 0 {
		p.CommentCount = detail.CommentCount
	}
	if detail.CreatedAt != "" {
		p.CreatedAt = detail.CreatedAt
	}
	return p
}

// decodePostList は記事一覧のペイロードを解析する。
// APIの形状変化に備え、次の順で記事を探す。
//  1. トップレベルの配列（要素ごとに変換し、型の合わない要素があっても他の要素は残す）
//  2. idを持つオブジェクトの配列（任意の深さ）
//  3. 9桁の数値idを持つ任意のオブジェクト
//
// IDの重複は除去する。トップレベルの配列が空の場合は空スライスを返す。
// それ以外で記事が見つからない場合はエラーを返す。
func decodePostList(body []byte) ([]apiPost, error) {
	var elems []json.RawMessage
	if err := json.Unmarshal(body, &elems); err == nil {
		found := make([]apiPost, 0, len(elems))
		for _, raw := range elems {
			if p, ok := decodeElement(raw); ok {
				found = append(found, p)
			}
		}
		if len(found) > 0 || len(elems) == 0 {
			return dedupe(found), nil
		}
	}

	tree, err := decodeTree(body)
	if err != nil {
		return nil, fmt.Errorf("JSONのパースに失敗: %w", err)
	}

	var found []apiPost
	for _, arr := range findPostArrays(tree, nil) {
		for _, item := range arr {
			if p, ok := toAPIPost(item); ok {
				found = append(found, p)
			}
		}
	}
	if len(found) == 0 {
		found = findArticleIDs(tree, nil)
	}
	if len(found) == 0 {
		return nil, fmt.Errorf("ペイロードから記事を検出できませんでした")
	}
	return dedupe(found), nil
}

// decodeTree は数値をjson.Numberのまま保持して任意のJSONを解析する。
func decodeTree(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var tree any
	if err := dec.Decode(&tree); err != nil {
		return nil, err
	}
	return tree, nil
}

// decodeElement は配列の1要素をapiPostに変換する。型の合わない項目がある場合は項目単位で拾う。
func decodeElement(raw json.RawMessage) (apiPost, bool) {
	var p apiPost
	if err := json.Unmarshal(raw, &p); err == nil {
		return p, p.ID != ""
	}
	tree, err := decodeTree(raw)
	if err != nil {
		return apiPost{}, false
	}
	return toAPIPost(tree)
}

// decodePostDetail は記事詳細APIのペイロードを解析する。
func decodePostDetail(body []byte) (apiPost, error) {
	var p apiPost
	if err := json.Unmarshal(body, &p); err != nil {
		return apiPost{}, fmt.Errorf("記事詳細のパースに失敗: %w", err)
	}
	return p, nil
}

// findPostArrays は先頭要素がidを持つオブジェクトである配列を再帰的に集める。
func findPostArrays(node any, acc [][]any) [][]any {
	switch v := node.(type) {
	case map[string]any:
		for _, key := range slices.Sorted(maps.Keys(v)) {
			child := v[key]
			if arr, ok := child.([]any); ok && len(arr) > 0 {
				if first, ok := arr[0].(map[string]any); ok {
					if _, hasID := first["id"]; hasID {
						acc = append(acc, arr)
						continue
					}
				}
			}
			acc = findPostArrays(child, acc)
		}
	case []any:
		for _, child := range v {
			acc = findPostArrays(child, acc)
		}
	}
	return acc
}

// findArticleIDs は記事IDの範囲に収まる数値idを持つオブジェクトを再帰的に集める。
func findArticleIDs(node any, acc []apiPost) []apiPost {
	switch v := node.(type) {
	case map[string]any:
		if raw, ok := v["id"]; ok && isArticleID(raw) {
			if p, ok := toAPIPost(v); ok {
				acc = append(acc, p)
			}
		}
		for _, key := range slices.Sorted(maps.Keys(v)) {
			acc = findArticleIDs(v[key], acc)
		}
	case []any:
		for _, child := range v {
			acc = findArticleIDs(child, acc)
		}
	}
	return acc
}

func isArticleID(raw any) bool {
	var s string
	switch v := raw.(type) {
	case json.Number:
		s = v.String()
	case string:
		s = v
	default:
		return false
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return false
	}
	return n >= minArticleID && n <= maxArticleID
}

// toAPIPost はデコード済みのオブジェクトをapiPostに変換する。idが空の場合はfalseを返す。
func toAPIPost(item any) (apiPost, bool) {
	obj, ok := item.(map[string]any)
	if !ok {
		return apiPost{}, false
	}
	raw, err := json.Marshal(obj)
	if err != nil {
		return apiPost{}, false
	}
	var p apiPost
	if err := json.Unmarshal(raw, &p); err != nil {
		// 一部の項目の型が異なる場合は項目ごとに拾う
		p = lenientPost(obj)
	}
	if p.ID == "" {
		return apiPost{}, false
	}
	return p, true
}

// lenientPost は型の合う項目だけを取り出してapiPostを組み立てる。
// 件数は数値と数字の文字列のどちらでも受け付ける。
func lenientPost(obj map[string]any) apiPost {
	var p apiPost
	if raw, err := json.Marshal(obj["id"]); err == nil {
		var id flexID
		if json.Unmarshal(raw, &id) == nil {
			p.ID = id
		}
	}
	str := func(key string) string {
		s, _ := obj[key].(string)
		return s
	}
	p.Title = str("title")
	p.Excerpt = str("excerpt")
	p.Content = str("content")
	p.School = str("school")
	p.Department = str("department")
	p.CreatedAt = str("createdAt")
	p.LikeCount = lenientInt(obj["likeCount"])
	p.CommentCount = lenientInt(obj["commentCount"])
	return p
}

func lenientInt(v any) int {
	var s string
	switch n := v.(type) {
	case json.Number:
		s = n.String()
	case string:
		s = strings.TrimSpace(n)
	case float64:
		return int(n)
	default:
		return 0
	}
	i, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return i
}

func dedupe(posts []apiPost) []apiPost {
	seen := make(map[flexID]struct{}, len(posts))
	out := make([]apiPost, 0, len(posts))
	for _, p := range posts {
		if p.ID == "" {
			continue
		}
		if _, dup := seen[p.ID]; dup {
			continue
		}
		seen[p.ID] = struct{}{}
		out = append(out, p)
	}
	return out
}

// placeholderTitle はタイトルを取得できない記事の仮タイトルを返す。
func placeholderTitle(id string) string {
	return "文章 " + id
}

// toPosts はAPIの記事をmodel.Postに変換する。limitが正の場合はその件数までにする。
func toPosts(list []apiPost, forum, strategy string, e Endpoints, cleaner TextCleaner, limit int) []model.Post {
	if limit > 0 && len(list) > limit {
		list = list[:limit]
	}
	posts := make([]model.Post, 0, len(list))
	for _, p := range list {
		id := string(p.ID)
		title := cleaner.Clean(p.Title)
		if title == "" {
			title = placeholderTitle(id)
		}
		posts = append(posts, model.Post{
			ID:             id,
			Forum:          forum,
			Title:          title,
			Excerpt:        cleaner.Clean(p.Excerpt),
			Content:        cleaner.Clean(p.Content),
			Author:         p.author(),
			URL:            e.PostURL(forum, id),
			LikeCount:      p.LikeCount,
			CommentCount:   p.CommentCount,
			CreatedAt:      p.CreatedAt,
			SourceStrategy: strategy,
		})
	}
	return posts
}
