// Package acquire は論壇記事の取得戦略を提供する。
// 各戦略はfetch.Strategyを満たし、リトライ/フォールバック制御から順に呼び出される。
package acquire

import (
	"log/slog"
	"net/http"

	"github.com/hitoshi/forumwatch/internal/worker/fetch"
)

// 戦略名。STRATEGIES環境変数とメトリクスのラベルに使用する。
const (
	NameDirect       = "direct"
	NameMultiProfile = "multi_profile"
	NameFeedMirror   = "feed_mirror"
	NameBrowser      = "browser"
	NameAPIDiscovery = "api_discovery"

	// nameBrowserSource はページソースからの抽出で得た記事の取得元。
	nameBrowserSource = "browser_source"
)

// Deps は取得戦略が共有する依存。
type Deps struct {
	Client      *http.Client
	Endpoints   Endpoints
	Cleaner     TextCleaner
	Sleeper     fetch.Sleeper
	MaxBodySize int64
	Logger      *slog.Logger
}

// withDefaults は未設定の依存を既定値で補う。
func (d Deps) withDefaults() Deps {
	if d.Client == nil {
		d.Client = http.DefaultClient
	}
	if d.Cleaner == nil {
		d.Cleaner = plainText{}
	}
	if d.Sleeper == nil {
		d.Sleeper = fetch.TimerSleeper{}
	}
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	return d
}

func (d Deps) getter() httpGetter {
	return newHTTPGetter(d.Client, d.MaxBodySize, d.Logger)
}
