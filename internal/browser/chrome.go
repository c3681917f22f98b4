package browser

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
)

// DefaultUserAgent はブラウザセッションで名乗るUser-Agent。
const DefaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// Options はChromeSessionの起動設定。
type Options struct {
	ExecPath    string // 空の場合はPATHから探索する
	Headless    bool
	UserAgent   string
	PageTimeout time.Duration
}

// ChromeSession はchromedpで操作するヘッドレスChrome。
type ChromeSession struct {
	allocCancel context.CancelFunc
	ctx         context.Context
	cancel      context.CancelFunc
	timeout     time.Duration

	mu        sync.Mutex
	responses []string
	closed    bool
}

// NewChromeSession はChromeを起動し、レスポンスURLの記録を開始する。
func NewChromeSession(opts Options) (*ChromeSession, error) {
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}
	if opts.PageTimeout <= 0 {
		opts.PageTimeout = 30 * time.Second
	}

	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", opts.Headless),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.NoSandbox,
		chromedp.WindowSize(1920, 1080),
		chromedp.UserAgent(opts.UserAgent),
	)
	if opts.ExecPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(opts.ExecPath))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), allocOpts...)
	ctx, cancel := chromedp.NewContext(allocCtx)

	s := &ChromeSession{
		allocCancel: allocCancel,
		ctx:         ctx,
		cancel:      cancel,
		timeout:     opts.PageTimeout,
	}

	chromedp.ListenTarget(ctx, func(ev interface{}) {
		if e, ok := ev.(*network.EventResponseReceived); ok && e.Response != nil {
			s.mu.Lock()
			s.responses = append(s.responses, e.Response.URL)
			s.mu.Unlock()
		}
	})

	// 最初のRunでブラウザプロセスが起動する
	if err := chromedp.Run(ctx, network.Enable()); err != nil {
		cancel()
		allocCancel()
		return nil, fmt.Errorf("ブラウザの起動に失敗: %w", err)
	}
	return s, nil
}

// run は呼び出し元のコンテキストのキャンセルとページタイムアウトを反映してアクションを実行する。
func (s *ChromeSession) run(ctx context.Context, actions ...chromedp.Action) error {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return ErrClosed
	}

	runCtx, cancel := context.WithTimeout(s.ctx, s.timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	return chromedp.Run(runCtx, actions...)
}

func (s *ChromeSession) Visit(ctx context.Context, url string) error {
	return s.run(ctx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
}

func (s *ChromeSession) Scroll(ctx context.Context, times int, pause func(ctx context.Context) error) error {
	for i := 0; i < times; i++ {
		var height float64
		if err := s.run(ctx, chromedp.Evaluate(
			"window.scrollTo(0, document.body.scrollHeight); document.body.scrollHeight", &height,
		)); err != nil {
			return fmt.Errorf("スクロールに失敗: %w", err)
		}
		if pause != nil {
			if err := pause(ctx); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *ChromeSession) HTML(ctx context.Context) (string, error) {
	var html string
	if err := s.run(ctx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("ページHTMLの取得に失敗: %w", err)
	}
	return html, nil
}

func (s *ChromeSession) ResponseURLs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.responses))
	copy(out, s.responses)
	return out
}

func (s *ChromeSession) Cookies(ctx context.Context) ([]*http.Cookie, error) {
	var cookies []*http.Cookie
	err := s.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		got, err := network.GetCookies().Do(ctx)
		if err != nil {
			return err
		}
		for _, c := range got {
			cookies = append(cookies, &http.Cookie{
				Name:     c.Name,
				Value:    c.Value,
				Domain:   c.Domain,
				Path:     c.Path,
				Secure:   c.Secure,
				HttpOnly: c.HTTPOnly,
			})
		}
		return nil
	}))
	if err != nil {
		return nil, fmt.Errorf("Cookieの取得に失敗: %w", err)
	}
	return cookies, nil
}

// Close はタブとブラウザプロセスを終了する。
func (s *ChromeSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.cancel()
	s.allocCancel()
	return nil
}
