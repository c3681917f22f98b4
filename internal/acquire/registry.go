package acquire

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/hitoshi/forumwatch/internal/browser"
	"github.com/hitoshi/forumwatch/internal/config"
	"github.com/hitoshi/forumwatch/internal/model"
	"github.com/hitoshi/forumwatch/internal/worker/fetch"
)

// URLValidator は設定された取得先URLを検証する。
type URLValidator interface {
	ValidateURL(rawURL string) error
	ValidateTemplate(tmpl string) error
}

// BuildStrategies は設定の試行順に従って取得戦略を構築する。
// フィードミラーはURL未設定の場合、ブラウザを使う戦略はsessionがnilの場合に除外する。
// 未知の戦略名、不正な取得先URL、構築できる戦略が1つもない場合はFatalInitErrorを返す。
func BuildStrategies(cfg *config.Config, deps Deps, session browser.Session, guard URLValidator) ([]fetch.Strategy, error) {
	deps = deps.withDefaults()

	if guard != nil {
		if err := guard.ValidateURL(cfg.ForumBaseURL); err != nil {
			return nil, model.NewFatalInitError("acquire", fmt.Errorf("FORUM_BASE_URLが不正です: %w", err))
		}
	}

	var strategies []fetch.Strategy
	for _, name := range cfg.Strategies {
		switch name {
		case NameDirect:
			strategies = append(strategies, NewDirectStrategy(deps))
		case NameMultiProfile:
			strategies = append(strategies, NewMultiProfileStrategy(deps, nil, nil))
		case NameFeedMirror:
			if cfg.FeedMirrorURL == "" {
				deps.Logger.Info("フィードミラーURLが未設定のため戦略を除外します",
					slog.String("strategy", name),
				)
				continue
			}
			if guard != nil {
				if err := guard.ValidateTemplate(cfg.FeedMirrorURL); err != nil {
					return nil, model.NewFatalInitError("acquire", fmt.Errorf("FEED_MIRROR_URLが不正です: %w", err))
				}
			}
			strategies = append(strategies, NewFeedMirrorStrategy(deps, cfg.FeedMirrorURL))
		case NameBrowser, NameAPIDiscovery:
			if session == nil {
				deps.Logger.Warn("ブラウザが利用できないため戦略を除外します",
					slog.String("strategy", name),
				)
				continue
			}
			if name == NameBrowser {
				strategies = append(strategies, NewBrowserStrategy(deps, session))
			} else {
				strategies = append(strategies, NewAPIDiscoveryStrategy(deps, session, cfg.DetailLimit, cfg.DetailInterval))
			}
		default:
			return nil, model.NewFatalInitError("acquire", fmt.Errorf("未知の取得戦略です: %s", name))
		}
	}

	if len(strategies) == 0 {
		return nil, model.NewFatalInitError("acquire", errors.New("利用可能な取得戦略がありません"))
	}
	return strategies, nil
}
