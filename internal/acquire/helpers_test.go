package acquire

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

func newTestLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
}

// noWaitSleeper は待機せずに呼び出しを数えるSleeper。
type noWaitSleeper struct {
	mu    sync.Mutex
	waits []time.Duration
}

func (s *noWaitSleeper) Sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.waits = append(s.waits, d)
	return ctx.Err()
}

func (s *noWaitSleeper) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.waits)
}

func testDeps(baseURL string, buf *bytes.Buffer) Deps {
	return Deps{
		Client:    &http.Client{Timeout: 5 * time.Second},
		Endpoints: Endpoints{BaseURL: baseURL},
		Sleeper:   &noWaitSleeper{},
		Logger:    newTestLogger(buf),
	}
}

// fakeSession はbrowser.Sessionのテスト用実装。
type fakeSession struct {
	page      string
	responses []string
	cookies   []*http.Cookie
	visitErr  error
	visited   []string
	scrolls   int
}

func (f *fakeSession) Visit(ctx context.Context, url string) error {
	f.visited = append(f.visited, url)
	return f.visitErr
}

func (f *fakeSession) Scroll(ctx context.Context, times int, pause func(ctx context.Context) error) error {
	for i := 0; i < times; i++ {
		f.scrolls++
		if err := pause(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (f *fakeSession) HTML(ctx context.Context) (string, error) { return f.page, nil }

func (f *fakeSession) ResponseURLs() []string { return f.responses }

func (f *fakeSession) Cookies(ctx context.Context) ([]*http.Cookie, error) { return f.cookies, nil }

func (f *fakeSession) Close() error { return nil }
