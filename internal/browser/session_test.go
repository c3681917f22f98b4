package browser

import (
	"context"
	"errors"
	"net/http"
	"testing"
)

// fakeSession はSessionのテスト用実装。
type fakeSession struct {
	visited []string
	closed  int
}

func (f *fakeSession) Visit(ctx context.Context, url string) error {
	f.visited = append(f.visited, url)
	return nil
}

func (f *fakeSession) Scroll(ctx context.Context, times int, pause func(ctx context.Context) error) error {
	return nil
}

func (f *fakeSession) HTML(ctx context.Context) (string, error) { return "<html></html>", nil }

func (f *fakeSession) ResponseURLs() []string { return []string{"https://example.com/a"} }

func (f *fakeSession) Cookies(ctx context.Context) ([]*http.Cookie, error) { return nil, nil }

func (f *fakeSession) Close() error {
	f.closed++
	return nil
}

// TestLazy_StartsOnFirstUse は最初の利用時にだけセッションを生成することを検証する。
func TestLazy_StartsOnFirstUse(t *testing.T) {
	fake := &fakeSession{}
	created := 0
	l := NewLazy(func() (Session, error) {
		created++
		return fake, nil
	})

	if l.Started() {
		t.Fatal("session should not be started before use")
	}
	if urls := l.ResponseURLs(); urls != nil {
		t.Errorf("ResponseURLs before start = %v, want nil", urls)
	}

	ctx := context.Background()
	if err := l.Visit(ctx, "https://www.dcard.tw/f/jewelry"); err != nil {
		t.Fatalf("Visit returned error: %v", err)
	}
	if _, err := l.HTML(ctx); err != nil {
		t.Fatalf("HTML returned error: %v", err)
	}

	if created != 1 {
		t.Errorf("factory called %d times, want 1", created)
	}
	if len(fake.visited) != 1 {
		t.Errorf("visited = %v", fake.visited)
	}
	if len(l.ResponseURLs()) != 1 {
		t.Error("ResponseURLs should delegate to the started session")
	}
}

// TestLazy_CloseWithoutStart は未起動のままCloseしてもファクトリを呼ばないことを検証する。
func TestLazy_CloseWithoutStart(t *testing.T) {
	created := 0
	l := NewLazy(func() (Session, error) {
		created++
		return &fakeSession{}, nil
	})

	if err := l.Close(); err != nil {
		t.Fatalf("Close returned error: %v", err)
	}
	if created != 0 {
		t.Errorf("factory should not be called, got %d", created)
	}
	if err := l.Visit(context.Background(), "https://www.dcard.tw"); !errors.Is(err, ErrClosed) {
		t.Errorf("Visit after Close = %v, want ErrClosed", err)
	}
}

func TestLazy_CloseClosesStartedSessionOnce(t *testing.T) {
	fake := &fakeSession{}
	l := NewLazy(func() (Session, error) { return fake, nil })

	_ = l.Visit(context.Background(), "https://www.dcard.tw")
	_ = l.Close()
	_ = l.Close()

	if fake.closed != 1 {
		t.Errorf("session closed %d times, want 1", fake.closed)
	}
}

func TestLazy_FactoryError(t *testing.T) {
	l := NewLazy(func() (Session, error) { return nil, errors.New("chrome not found") })

	if err := l.Visit(context.Background(), "https://www.dcard.tw"); err == nil {
		t.Fatal("expected factory error")
	}
	if l.Started() {
		t.Error("session should not be marked started after factory error")
	}
}

// TestLazy_ReleaseAllowsRestart はRelease後の利用で新しいセッションを起動することを検証する。
func TestLazy_ReleaseAllowsRestart(t *testing.T) {
	var sessions []*fakeSession
	l := NewLazy(func() (Session, error) {
		s := &fakeSession{}
		sessions = append(sessions, s)
		return s, nil
	})

	ctx := context.Background()
	if err := l.Visit(ctx, "https://www.dcard.tw/f/jewelry"); err != nil {
		t.Fatalf("Visit returned error: %v", err)
	}
	if err := l.Release(); err != nil {
		t.Fatalf("Release returned error: %v", err)
	}
	if l.Started() {
		t.Error("session should not be started after Release")
	}
	if err := l.Visit(ctx, "https://www.dcard.tw/f/marriage"); err != nil {
		t.Fatalf("Visit after Release returned error: %v", err)
	}

	if len(sessions) != 2 {
		t.Fatalf("sessions created = %d, want 2", len(sessions))
	}
	if sessions[0].closed != 1 {
		t.Errorf("first session closed %d times, want 1", sessions[0].closed)
	}
	if sessions[1].closed != 0 {
		t.Errorf("second session closed %d times, want 0", sessions[1].closed)
	}
}
