package acquire

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/hitoshi/forumwatch/internal/model"
	"github.com/hitoshi/forumwatch/internal/worker/fetch"
)

// defaultMaxBodySize はレスポンスボディの既定の最大読み込みサイズ（5MB）。
const defaultMaxBodySize = 5 * 1024 * 1024

// TextCleaner は取得したテキストからマークアップを除去する。
type TextCleaner interface {
	Clean(raw string) string
}

type plainText struct{}

func (plainText) Clean(raw string) string { return strings.TrimSpace(raw) }

// request は1回のHTTP GETの内容。
type request struct {
	strategy   string
	forum      string
	url        string
	headers    map[string]string
	expectJSON bool
}

// httpGetter はステータスとボディを取得エラーの分類に変換する共通処理。
type httpGetter struct {
	client      *http.Client
	maxBodySize int64
	logger      *slog.Logger
}

func newHTTPGetter(client *http.Client, maxBodySize int64, logger *slog.Logger) httpGetter {
	if client == nil {
		client = http.DefaultClient
	}
	if maxBodySize <= 0 {
		maxBodySize = defaultMaxBodySize
	}
	return httpGetter{client: client, maxBodySize: maxBodySize, logger: logger}
}

// get はGETリクエストを送信し、2xxかつ期待する形式のボディを返す。
// 通信失敗はTransport、401/403/429やチャレンジページはBlocked、
// JSONを期待してHTMLが返った場合はDecodeに分類する。
func (g httpGetter) get(ctx context.Context, r request) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.url, nil)
	if err != nil {
		return nil, model.NewTransportError(r.strategy, r.forum, fmt.Errorf("リクエスト作成に失敗: %w", err))
	}
	for k, v := range r.headers {
		req.Header.Set(k, v)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, model.NewTransportError(r.strategy, r.forum, fmt.Errorf("HTTPリクエスト失敗: %w", err))
	}
	defer resp.Body.Close()

	g.logger.Debug("HTTPレスポンスを受信しました",
		slog.String("strategy", r.strategy),
		slog.String("forum", r.forum),
		slog.String("url", r.url),
		slog.Int("http_status", resp.StatusCode),
	)

	if statusErr := fetch.StatusError(r.strategy, r.forum, resp.StatusCode); statusErr != nil {
		return nil, statusErr
	}
	if strings.EqualFold(resp.Header.Get("cf-mitigated"), "challenge") {
		return nil, model.NewBlockedError(r.strategy, r.forum, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, g.maxBodySize))
	if err != nil {
		return nil, model.NewTransportError(r.strategy, r.forum, fmt.Errorf("レスポンス読み取り失敗: %w", err))
	}

	if r.expectJSON && looksLikeHTML(body) {
		if isChallengePage(body) {
			return nil, model.NewBlockedError(r.strategy, r.forum, resp.StatusCode)
		}
		return nil, model.NewDecodeError(r.strategy, r.forum, fmt.Errorf("JSONの代わりにHTMLが返されました"))
	}
	return body, nil
}

// looksLikeHTML はボディがHTML文書として始まっているかを判定する。
func looksLikeHTML(body []byte) bool {
	trimmed := bytes.TrimSpace(body)
	return len(trimmed) > 0 && trimmed[0] == '<'
}

var challengeMarkers = [][]byte{
	[]byte("Just a moment"),
	[]byte("cf-chl"),
	[]byte("challenge-platform"),
	[]byte("Attention Required"),
}

// isChallengePage はボディがボット判定のチャレンジページかを判定する。
func isChallengePage(body []byte) bool {
	for _, m := range challengeMarkers {
		if bytes.Contains(body, m) {
			return true
		}
	}
	return false
}

// forumHeaders はプロファイルのヘッダーに論壇ページのRefererを加えたヘッダーを返す。
func forumHeaders(p Profile, e Endpoints, forum string) map[string]string {
	h := make(map[string]string, len(p.Headers)+3)
	for k, v := range p.Headers {
		h[k] = v
	}
	h["Referer"] = e.ForumPage(forum)
	h["Origin"] = e.BaseURL
	h["X-Requested-With"] = "XMLHttpRequest"
	return h
}
