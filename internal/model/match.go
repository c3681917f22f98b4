package model

import "time"

const (
	// PreviewLength は抜粋の最大文字数（rune単位）。
	PreviewLength = 200
	// ContentPreviewLength は本文プレビューの最大文字数（rune単位）。
	ContentPreviewLength = 300

	foundAtLayout    = "2006-01-02 15:04:05"
	foundAtUTCLayout = "2006-01-02 15:04:05 UTC"
)

// MatchRecord はキーワードに一致した記事の永続化レコード。
// 生成後は変更せず、日付パーティションに追記のみ行う。
type MatchRecord struct {
	Key             PostKey  `json:"key"`
	ID              string   `json:"id"`
	Forum           string   `json:"forum"`
	ForumName       string   `json:"forum_name"`
	Title           string   `json:"title"`
	URL             string   `json:"url"`
	Author          string   `json:"author"`
	MatchedKeywords []string `json:"matched_keywords"`
	Excerpt         string   `json:"excerpt"`
	ContentPreview  string   `json:"content_preview,omitempty"`
	LikeCount       int      `json:"like_count"`
	CommentCount    int      `json:"comment_count"`
	CreatedAt       string   `json:"created_at"`
	FoundAt         string   `json:"found_at"`
	FoundAtUTC      string   `json:"found_at_utc"`
	Source          string   `json:"source"`
}

// NewMatchRecord は記事と一致キーワードからMatchRecordを生成する。
// foundAtのローカル時刻とUTC時刻の両方を記録する。
func NewMatchRecord(post Post, forumName string, keywords []string, foundAt time.Time) MatchRecord {
	kws := make([]string, len(keywords))
	copy(kws, keywords)

	return MatchRecord{
		Key:             post.Key(),
		ID:              post.ID,
		Forum:           post.Forum,
		ForumName:       forumName,
		Title:           post.Title,
		URL:             post.URL,
		Author:          post.Author,
		MatchedKeywords: kws,
		Excerpt:         Truncate(post.Excerpt, PreviewLength),
		ContentPreview:  Truncate(post.Content, ContentPreviewLength),
		LikeCount:       post.LikeCount,
		CommentCount:    post.CommentCount,
		CreatedAt:       post.CreatedAt,
		FoundAt:         foundAt.Local().Format(foundAtLayout),
		FoundAtUTC:      foundAt.UTC().Format(foundAtUTCLayout),
		Source:          post.SourceStrategy,
	}
}

// Truncate は文字列をrune単位でmaxLen以内に切り詰める。
func Truncate(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen])
}

// RunSummary は1回の実行の集計結果。
// 実行ごとに上書きされ、履歴ではなく最新状態を表す。
type RunSummary struct {
	RunID           string         `json:"run_id"`
	ExecutionTime   string         `json:"execution_time"`
	TotalMatches    int            `json:"total_matches"`
	MatchesByForum  map[string]int `json:"matches_by_forum"`
	TopKeywords     map[string]int `json:"top_keywords"`
	ExhaustedForums []string       `json:"exhausted_forums"`
	Matches         []MatchRecord  `json:"matches"`
}

// NewRunSummary は監視対象の全論壇を0件で初期化したRunSummaryを生成する。
// 一致がなかった論壇もキーとして必ず存在する。
func NewRunSummary(runID string, forums []string, executedAt time.Time) *RunSummary {
	byForum := make(map[string]int, len(forums))
	for _, f := range forums {
		byForum[f] = 0
	}
	return &RunSummary{
		RunID:           runID,
		ExecutionTime:   executedAt.Local().Format(foundAtLayout),
		MatchesByForum:  byForum,
		TopKeywords:     make(map[string]int),
		ExhaustedForums: []string{},
		Matches:         []MatchRecord{},
	}
}

// Add は一致レコードを集計に加える。
func (s *RunSummary) Add(rec MatchRecord) {
	s.TotalMatches++
	s.MatchesByForum[rec.Forum]++
	for _, kw := range rec.MatchedKeywords {
		s.TopKeywords[kw]++
	}
	s.Matches = append(s.Matches, rec)
}

// MarkExhausted は全戦略が失敗した論壇を記録する。
func (s *RunSummary) MarkExhausted(forum string) {
	s.ExhaustedForums = append(s.ExhaustedForums, forum)
}
