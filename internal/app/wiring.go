package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/forumwatch/internal/acquire"
	"github.com/hitoshi/forumwatch/internal/browser"
	"github.com/hitoshi/forumwatch/internal/config"
	"github.com/hitoshi/forumwatch/internal/database"
	"github.com/hitoshi/forumwatch/internal/metrics"
	"github.com/hitoshi/forumwatch/internal/model"
	"github.com/hitoshi/forumwatch/internal/monitor"
	"github.com/hitoshi/forumwatch/internal/notify"
	"github.com/hitoshi/forumwatch/internal/repository"
	"github.com/hitoshi/forumwatch/internal/security"
	fetchpkg "github.com/hitoshi/forumwatch/internal/worker/fetch"
)

// notifyTimeout はTelegram送信1回あたりの上限時間。
const notifyTimeout = 10 * time.Second

// components は1プロセスで共有する依存関係をまとめたもの。
type components struct {
	logger    *slog.Logger
	registry  *prometheus.Registry
	collector *metrics.Collector
	session   *browser.Lazy
	db        *sql.DB // DATABASE_URL未設定の場合はnil
	monitor   *monitor.Monitor
}

// buildComponents は設定から監視に必要な依存関係をワイヤリングする。
// 出力ディレクトリの作成失敗、取得先URLの不正、台帳DBへの接続失敗はFatalInitErrorとして返す。
func buildComponents(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*components, error) {
	for _, dir := range []string{cfg.ResultsDir, cfg.BaseDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, model.NewFatalInitError("output", err)
		}
	}

	c := &components{
		logger:   logger,
		registry: prometheus.NewRegistry(),
	}
	c.collector = metrics.NewCollector(c.registry)

	// 1. 取得戦略
	guard := security.NewSSRFGuard()
	deps := acquire.Deps{
		Client:      guard.NewSafeClient(cfg.FetchTimeout),
		Endpoints:   acquire.Endpoints{BaseURL: cfg.ForumBaseURL},
		Cleaner:     security.NewTextSanitizer(),
		MaxBodySize: cfg.FetchMaxSize,
		Logger:      logger,
	}

	c.session = browser.NewLazy(func() (browser.Session, error) {
		s, err := browser.NewChromeSession(browser.Options{
			ExecPath:    cfg.ChromePath,
			Headless:    cfg.BrowserHeadless,
			PageTimeout: cfg.FetchTimeout,
		})
		if err != nil {
			return nil, err
		}
		return s, nil
	})

	strategies, err := acquire.BuildStrategies(cfg, deps, c.session, guard)
	if err != nil {
		return nil, err
	}
	controller := fetchpkg.NewController(strategies, fetchpkg.PolicyFromConfig(cfg), nil, c.collector, logger)

	// 2. 台帳と保存先
	ledger, err := c.openLedger(ctx, cfg)
	if err != nil {
		return nil, err
	}
	store := repository.NewFileMatchStore(cfg.ResultsDir, cfg.BaseDir, logger)

	// 3. 通知
	notifier := notify.NewTelegramClient(
		&http.Client{Timeout: notifyTimeout},
		logger,
		cfg.TelegramBotToken,
		cfg.TelegramChatID,
	)
	if !cfg.TelegramEnabled() {
		logger.Info("telegram credentials not set, notification disabled")
	}

	c.monitor = monitor.NewMonitor(
		controller, ledger, store, notifier, c.collector, nil, logger,
		monitor.OptionsFromConfig(cfg),
	)

	logger.Info("components initialized",
		slog.Any("strategies", controller.Strategies()),
		slog.Bool("postgres_ledger", c.db != nil),
		slog.String("results_dir", cfg.ResultsDir),
	)
	return c, nil
}

// openLedger はDATABASE_URLが設定されていればPostgreSQL、なければファイルの台帳を返す。
func (c *components) openLedger(ctx context.Context, cfg *config.Config) (repository.LedgerRepository, error) {
	if cfg.DatabaseURL == "" {
		ledger := repository.NewFileLedger(cfg.ResultsDir)
		c.logger.Info("using file ledger", slog.String("path", ledger.Path()))
		return ledger, nil
	}

	db, err := database.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, model.NewFatalInitError("ledger", err)
	}
	c.db = db
	c.logger.Info("database connection established",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)
	return repository.NewPostgresLedgerRepo(db), nil
}

// RunOnce は1回の監視を実行し、起動したブラウザを実行の終わりに閉じる。
// ワーカーモードのスケジューラから呼び出される。
func (c *components) RunOnce(ctx context.Context) error {
	defer c.releaseBrowser()
	return c.monitor.RunOnce(ctx)
}

func (c *components) releaseBrowser() {
	if err := c.session.Release(); err != nil {
		c.logger.Warn("failed to close browser", slog.String("error", err.Error()))
	}
}

// Close はブラウザとDB接続を閉じる。
func (c *components) Close() error {
	var errs []error
	if err := c.session.Close(); err != nil {
		errs = append(errs, fmt.Errorf("browser: %w", err))
	}
	if c.db != nil {
		if err := c.db.Close(); err != nil {
			errs = append(errs, fmt.Errorf("database: %w", err))
		}
	}
	return errors.Join(errs...)
}
