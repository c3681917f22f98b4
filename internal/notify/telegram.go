// Package notify は一致した記事の通知機能を提供する。
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hitoshi/forumwatch/internal/model"
)

const (
	// defaultAPIBase はTelegram Bot APIのベースURL。
	defaultAPIBase = "https://api.telegram.org"
	// maxListedMatches はメッセージに列挙する記事の最大数。
	maxListedMatches = 3
	// maxListedKeywords は記事ごとに表示するキーワードの最大数。
	maxListedKeywords = 3
	// titleLength はメッセージ中のタイトルの最大文字数。
	titleLength = 40
	// maxResponseSize はAPIレスポンスの読み取り上限。
	maxResponseSize = 64 * 1024
)

// TelegramClient はTelegram Bot APIで実行結果を通知するクライアント。
// トークンかチャットIDが未設定の場合は何もしない。
type TelegramClient struct {
	httpClient *http.Client
	logger     *slog.Logger
	token      string
	chatID     string
	apiBase    string // テスト用にエンドポイントを差し替え可能
	now        func() time.Time
}

// NewTelegramClient はTelegramClientの新しいインスタンスを生成する。
func NewTelegramClient(httpClient *http.Client, logger *slog.Logger, token, chatID string) *TelegramClient {
	return &TelegramClient{
		httpClient: httpClient,
		logger:     logger,
		token:      token,
		chatID:     chatID,
		apiBase:    defaultAPIBase,
		now:        time.Now,
	}
}

// Enabled は通知に必要な設定が揃っているかを返す。
func (c *TelegramClient) Enabled() bool {
	return c.token != "" && c.chatID != ""
}

// Notify は一致した記事の一覧を1通のメッセージで送信する。
// 未設定または一致が0件の場合は送信しない。
func (c *TelegramClient) Notify(ctx context.Context, matches []model.MatchRecord) error {
	if !c.Enabled() {
		c.logger.Info("Telegramが未設定のため通知をスキップします")
		return nil
	}
	if len(matches) == 0 {
		return nil
	}

	form := url.Values{}
	form.Set("chat_id", c.chatID)
	form.Set("text", FormatMessage(matches, c.now()))
	form.Set("disable_web_page_preview", "true")

	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", c.apiBase, c.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// エラー文字列にはトークンを含むURLが入るため伏せる
		return fmt.Errorf("Telegram APIの呼び出しに失敗しました: %w", redactToken(err, c.token))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return fmt.Errorf("レスポンスボディの読み取りに失敗しました: %w", err)
	}

	var result struct {
		OK          bool   `json:"ok"`
		Description string `json:"description"`
	}
	if resp.StatusCode != http.StatusOK {
		_ = json.Unmarshal(body, &result)
		return fmt.Errorf("Telegram APIがステータス %d を返しました: %s", resp.StatusCode, result.Description)
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return fmt.Errorf("レスポンスJSONのパースに失敗しました: %w", err)
	}
	if !result.OK {
		return fmt.Errorf("Telegram APIが送信を拒否しました: %s", result.Description)
	}

	c.logger.Info("Telegram通知を送信しました",
		slog.Int("match_count", len(matches)),
	)
	return nil
}

// FormatMessage は通知メッセージ本文を組み立てる。
// 先頭の3件だけを列挙し、残りは件数のみ表示する。
func FormatMessage(matches []model.MatchRecord, now time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🎯 金工珠寶監控報告 (%s)\n", now.Local().Format("2006-01-02 15:04"))
	fmt.Fprintf(&b, "發現 %d 篇相關文章！\n\n", len(matches))

	for i, m := range matches {
		if i >= maxListedMatches {
			break
		}
		keywords := m.MatchedKeywords
		if len(keywords) > maxListedKeywords {
			keywords = keywords[:maxListedKeywords]
		}
		fmt.Fprintf(&b, "%d. %s...\n", i+1, model.Truncate(m.Title, titleLength))
		fmt.Fprintf(&b, "   📍 %s\n", m.ForumName)
		fmt.Fprintf(&b, "   🔗 %s\n", m.URL)
		fmt.Fprintf(&b, "   🏷️ %s\n", strings.Join(keywords, ", "))
		fmt.Fprintf(&b, "   ❤️ %d 💬 %d\n\n", m.LikeCount, m.CommentCount)
	}

	if rest := len(matches) - maxListedMatches; rest > 0 {
		fmt.Fprintf(&b, "... 還有 %d 篇文章\n", rest)
	}
	b.WriteString("📊 完整結果請查看結果目錄")
	return b.String()
}

// redactToken はエラー文字列に含まれるボットトークンを伏せる。
func redactToken(err error, token string) error {
	if token == "" || !strings.Contains(err.Error(), token) {
		return err
	}
	return fmt.Errorf("%s", strings.ReplaceAll(err.Error(), token, "***"))
}
