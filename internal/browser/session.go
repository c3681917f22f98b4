// Package browser はヘッドレスブラウザのセッションを提供する。
// 取得戦略はSessionインターフェースのみに依存し、実装はchromedpで行う。
package browser

import (
	"context"
	"errors"
	"net/http"
	"sync"
)

// ErrClosed は終了済みのセッションを利用した場合に返される。
var ErrClosed = errors.New("ブラウザセッションは終了しています")

// Session は1回の実行で共有されるブラウザセッション。
type Session interface {
	// Visit はURLへ遷移し、DOMの準備完了を待つ。
	Visit(ctx context.Context, url string) error
	// Scroll はページ末尾までのスクロールをtimes回行い、遅延読み込みを発生させる。
	// 各スクロールの間にpauseを呼び出す。
	Scroll(ctx context.Context, times int, pause func(ctx context.Context) error) error
	// HTML は現在のページのレンダリング済みHTMLを返す。
	HTML(ctx context.Context) (string, error)
	// ResponseURLs はセッション開始以降に受信したレスポンスのURLを返す。
	ResponseURLs() []string
	// Cookies は現在のページのCookieを返す。
	Cookies(ctx context.Context) ([]*http.Cookie, error)
	// Close はブラウザを終了する。複数回呼び出しても安全。
	Close() error
}

// Factory はSessionを生成する関数。
type Factory func() (Session, error)

// Lazy は最初の利用時にだけブラウザを起動するSession。
// ブラウザを使う戦略まで到達しなかった実行ではChromeを起動しない。
type Lazy struct {
	factory Factory

	mu      sync.Mutex
	session Session
	closed  bool
}

// NewLazy はLazyの新しいインスタンスを生成する。
func NewLazy(factory Factory) *Lazy {
	return &Lazy{factory: factory}
}

// get は起動済みのセッションを返し、未起動の場合は起動する。
func (l *Lazy) get() (Session, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil, ErrClosed
	}
	if l.session == nil {
		s, err := l.factory()
		if err != nil {
			return nil, err
		}
		l.session = s
	}
	return l.session, nil
}

// Started はブラウザが起動済みかを返す。
func (l *Lazy) Started() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.session != nil
}

func (l *Lazy) Visit(ctx context.Context, url string) error {
	s, err := l.get()
	if err != nil {
		return err
	}
	return s.Visit(ctx, url)
}

func (l *Lazy) Scroll(ctx context.Context, times int, pause func(ctx context.Context) error) error {
	s, err := l.get()
	if err != nil {
		return err
	}
	return s.Scroll(ctx, times, pause)
}

func (l *Lazy) HTML(ctx context.Context) (string, error) {
	s, err := l.get()
	if err != nil {
		return "", err
	}
	return s.HTML(ctx)
}

func (l *Lazy) ResponseURLs() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.session == nil {
		return nil
	}
	return l.session.ResponseURLs()
}

func (l *Lazy) Cookies(ctx context.Context) ([]*http.Cookie, error) {
	s, err := l.get()
	if err != nil {
		return nil, err
	}
	return s.Cookies(ctx)
}

// Close は起動済みの場合のみブラウザを終了する。以後の利用はErrClosedを返す。
func (l *Lazy) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.closed = true
	if l.session == nil {
		return nil
	}
	err := l.session.Close()
	l.session = nil
	return err
}

// Release は起動済みのブラウザを終了するが、以後の利用で再び起動できる状態に戻す。
// ワーカーモードで実行ごとにブラウザを閉じるために使う。
func (l *Lazy) Release() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.session == nil {
		return nil
	}
	err := l.session.Close()
	l.session = nil
	return err
}
