// Package model はドメインモデルを定義する。
package model

import (
	"fmt"
	"strings"
)

// KeyPrefix はPostKeyに付与するプラットフォーム識別子。
// 既存の処理済み台帳と互換性を保つため固定値とする。
const KeyPrefix = "dcard"

// PostKey は論壇で修飾された記事の安定した識別子。
// 実行をまたいで重複評価を防ぐために使用する。
type PostKey string

// NewPostKey は論壇キーと記事IDからPostKeyを生成する。
func NewPostKey(forum, id string) PostKey {
	return PostKey(fmt.Sprintf("%s_%s_%s", KeyPrefix, forum, id))
}

// String はPostKeyの文字列表現を返す。
func (k PostKey) String() string {
	return string(k)
}

// Post は取得戦略が返す1件の記事。
// 実行ごとに新しく取得され、生成後に変更されない。
type Post struct {
	ID             string
	Forum          string
	Title          string
	Excerpt        string
	Content        string // 詳細取得を行わない戦略では空
	Author         string
	URL            string
	LikeCount      int
	CommentCount   int
	CreatedAt      string // ソース側の文字列をそのまま保持する
	SourceStrategy string
}

// Key は記事のPostKeyを返す。
func (p Post) Key() PostKey {
	return NewPostKey(p.Forum, p.ID)
}

// HasContent は本文を保持しているかを返す。
func (p Post) HasContent() bool {
	return p.Content != ""
}

// MatchText はキーワード照合に使うテキストを返す。
// タイトル、抜粋、本文（存在する場合）を空白で連結する。
func (p Post) MatchText() string {
	parts := make([]string, 0, 3)
	for _, s := range []string{p.Title, p.Excerpt} {
		if s != "" {
			parts = append(parts, s)
		}
	}
	if p.HasContent() {
		parts = append(parts, p.Content)
	}
	return strings.Join(parts, " ")
}

// ProcessedSet は評価済みのPostKeyの集合。処理済み台帳をメモリ上に展開したもの。
type ProcessedSet map[PostKey]struct{}

// Has はキーが評価済みかを返す。
func (s ProcessedSet) Has(key PostKey) bool {
	_, ok := s[key]
	return ok
}

// Add はキーを評価済みとして記録する。
func (s ProcessedSet) Add(key PostKey) {
	s[key] = struct{}{}
}
