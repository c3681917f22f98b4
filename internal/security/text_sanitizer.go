package security

import (
	"html"
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var whitespaceRun = regexp.MustCompile(`\s+`)

// TextSanitizer は取得した記事のタイトル・抜粋・本文からマークアップを除去し、
// キーワード照合と保存に使うプレーンテキストへ変換する。
type TextSanitizer struct {
	policy *bluemonday.Policy
}

// NewTextSanitizer はTextSanitizerの新しいインスタンスを生成する。
// すべてのタグを除去するStrictPolicyを使用する。
func NewTextSanitizer() *TextSanitizer {
	return &TextSanitizer{policy: bluemonday.StrictPolicy()}
}

// Clean はタグを除去し、実体参照を戻して連続する空白を1つにまとめる。
// 空文字列には空文字列を返す。
func (s *TextSanitizer) Clean(raw string) string {
	if raw == "" {
		return ""
	}
	stripped := s.policy.Sanitize(raw)
	text := html.UnescapeString(stripped)
	return strings.TrimSpace(whitespaceRun.ReplaceAllString(text, " "))
}
