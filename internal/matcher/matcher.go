// Package matcher は記事テキストとキーワード一覧の照合を提供する。
package matcher

import "strings"

// Match はtextに含まれるキーワードを設定順に返す。
// 大文字小文字を区別しない部分文字列一致で、単語境界は考慮しない。
// textが空、またはキーワードが空の場合は空スライスを返す。
// 同一キーワードが複数設定されていても結果には1回だけ含まれる。
func Match(text string, keywords []string) []string {
	matched := []string{}
	if text == "" || len(keywords) == 0 {
		return matched
	}

	haystack := strings.ToLower(text)
	seen := make(map[string]struct{}, len(keywords))
	for _, kw := range keywords {
		if kw == "" {
			continue
		}
		if _, dup := seen[kw]; dup {
			continue
		}
		seen[kw] = struct{}{}
		if strings.Contains(haystack, strings.ToLower(kw)) {
			matched = append(matched, kw)
		}
	}
	return matched
}

// Normalize はキーワード一覧から空要素と重複を取り除き、設定順を保って返す。
func Normalize(keywords []string) []string {
	out := make([]string, 0, len(keywords))
	seen := make(map[string]struct{}, len(keywords))
	for _, kw := range keywords {
		kw = strings.TrimSpace(kw)
		if kw == "" {
			continue
		}
		if _, dup := seen[kw]; dup {
			continue
		}
		seen[kw] = struct{}{}
		out = append(out, kw)
	}
	return out
}
