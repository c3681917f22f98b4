package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/hitoshi/forumwatch/internal/config"
	"github.com/hitoshi/forumwatch/internal/database"
	"github.com/hitoshi/forumwatch/internal/handler"
	"github.com/hitoshi/forumwatch/internal/logger"
	"github.com/hitoshi/forumwatch/internal/worker/cleanup"
	fetchpkg "github.com/hitoshi/forumwatch/internal/worker/fetch"
)

// cleanupSchedule は台帳クリーンアップジョブの起動間隔。
const cleanupSchedule = "@daily"

// Init はアプリケーションの初期化を行う。
// .envがあれば環境変数に読み込み、JSON構造化ログをセットアップしてからConfigを読み込む。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, *slog.Logger, error) {
	// 1. .envの読み込み（既存の環境変数は上書きしない）
	envErr := godotenv.Load()

	// 2. ログの初期化（設定読み込み前にログを使えるようにする）
	l := logger.SetupDefault(w)
	if envErr != nil && !errors.Is(envErr, fs.ErrNotExist) {
		l.Warn("failed to load .env file", slog.String("error", envErr.Error()))
	}

	// 3. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	return cfg, l, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("METRICS_PORT")
		if port == "" {
			port = "9090"
		}
		return runHealthcheck(port)
	}

	cfg, l, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	l.Info("starting application",
		slog.String("command", string(cmd)),
		slog.Int("forum_count", len(cfg.Forums)),
		slog.Int("keyword_count", len(cfg.Keywords)),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch cmd {
	case CommandWorker:
		return runWorker(ctx, cfg, l)
	case CommandMigrate:
		return runMigrate(cfg, l)
	default:
		return runMonitor(ctx, cfg, l)
	}
}

// runMonitor は全論壇を1回監視して終了する。
// 一致が0件でも正常終了とし、FatalInitErrorだけを呼び出し元に返す。
func runMonitor(ctx context.Context, cfg *config.Config, l *slog.Logger) error {
	c, err := buildComponents(ctx, cfg, l)
	if err != nil {
		return err
	}
	defer func() {
		if err := c.Close(); err != nil {
			l.Warn("failed to release resources", slog.String("error", err.Error()))
		}
	}()

	summary, err := c.monitor.Run(ctx)
	if err != nil {
		return err
	}

	l.Info("monitor run finished",
		slog.String("run_id", summary.RunID),
		slog.Int("total_matches", summary.TotalMatches),
		slog.Any("exhausted_forums", summary.ExhaustedForums),
	)
	return nil
}

// runWorker はワーカーモードで起動する。
// 監視をcron式に従って実行し、/healthと/metricsをHTTPで公開する。
// SIGINTまたはSIGTERMシグナルを受信すると実行中の監視の完了を待ってから停止する。
func runWorker(ctx context.Context, cfg *config.Config, l *slog.Logger) error {
	c, err := buildComponents(ctx, cfg, l)
	if err != nil {
		return err
	}
	defer func() {
		if err := c.Close(); err != nil {
			l.Warn("failed to release resources", slog.String("error", err.Error()))
		}
	}()

	router := handler.NewRouter(&handler.RouterDeps{
		Logger:   l,
		Gatherer: c.registry,
		Status:   c.monitor,
	})

	server := &http.Server{
		Addr:         ":" + cfg.MetricsPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		l.Info("metrics server starting", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			l.Error("server listen error", slog.String("error", err.Error()))
		}
	}()

	var wg sync.WaitGroup

	// 台帳クリーンアップはPostgreSQLの台帳で保持日数が設定された場合だけ起動する
	if c.db != nil {
		job := cleanup.NewLedgerCleanupJob(c.db, l, cfg.LedgerRetentionDays)
		if job.Enabled() {
			cleanupScheduler := fetchpkg.NewScheduler(job, l, cleanupSchedule)
			wg.Add(1)
			go func() {
				defer wg.Done()
				if err := cleanupScheduler.Start(ctx); err != nil {
					l.Error("cleanup scheduler failed", slog.String("error", err.Error()))
				}
			}()
		}
	}

	l.Info("worker starting",
		slog.String("schedule", cfg.WorkerSchedule),
		slog.Int("ledger_retention_days", cfg.LedgerRetentionDays),
	)

	// 監視スケジューラをメインgoroutineで実行（ブロッキング）
	schedErr := fetchpkg.NewScheduler(c, l, cfg.WorkerSchedule).Start(ctx)
	wg.Wait()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		l.Error("server shutdown failed", slog.String("error", err.Error()))
	}

	if schedErr != nil {
		return fmt.Errorf("worker scheduler failed: %w", schedErr)
	}
	l.Info("worker stopped gracefully")
	return nil
}

// runMigrate は処理済み台帳のマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config, l *slog.Logger) error {
	if cfg.DatabaseURL == "" {
		return errors.New("DATABASE_URL is required for migrate")
	}

	l.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	version, dirty, err := database.MigrationVersion(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to read migration version: %w", err)
	}

	l.Info("database migrations completed successfully",
		slog.Uint64("version", uint64(version)),
		slog.Bool("dirty", dirty),
	)
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// ワーカーの /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
