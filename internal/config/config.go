package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Forum は監視対象の論壇。Keyはリクエストに使う識別子、Nameは表示名。
type Forum struct {
	Key  string `mapstructure:"key"`
	Name string `mapstructure:"name"`
}

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Keywords / Forums
	Keywords     []string
	Forums       []Forum
	KeywordsFile string

	// Output
	ResultsDir string
	BaseDir    string

	// Acquisition
	ForumBaseURL   string
	FetchLimit     int
	FetchTimeout   time.Duration
	FetchMaxSize   int64
	Strategies     []string
	FeedMirrorURL  string
	DetailLimit    int
	DetailInterval time.Duration

	// Retry / Fallback
	MaxRetries       int
	RetryJitterMin   time.Duration
	RetryJitterMax   time.Duration
	BackoffBase      time.Duration
	BackoffMax       time.Duration
	BlockedCooldown  time.Duration
	StrategyCooldown time.Duration

	// Pacing
	ForumCooldownMin time.Duration
	ForumCooldownMax time.Duration
	PostPacing       time.Duration

	// Browser
	ChromePath      string
	BrowserHeadless bool

	// Telegram
	TelegramBotToken string
	TelegramChatID   string

	// Ledger
	DatabaseURL         string
	LedgerRetentionDays int

	// Worker
	WorkerSchedule string
	MetricsPort    string
}

// DefaultStrategies は取得戦略の既定の試行順。
var DefaultStrategies = []string{"direct", "multi_profile", "feed_mirror", "browser", "api_discovery"}

// Load は環境変数からConfigを読み込む。
// すべての項目は任意で、未設定の場合は既定値を使用する。
// KEYWORDS_FILEが指定された場合はキーワードと論壇をファイルから読み込む。
func Load() (*Config, error) {
	cfg := &Config{}

	cfg.KeywordsFile = getEnvString("KEYWORDS_FILE", "")
	cfg.Keywords = DefaultKeywords()
	cfg.Forums = DefaultForums()
	if cfg.KeywordsFile != "" {
		kf, err := LoadKeywordFile(cfg.KeywordsFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load keywords file: %w", err)
		}
		if len(kf.Keywords) > 0 {
			cfg.Keywords = kf.Keywords
		}
		if len(kf.Forums) > 0 {
			cfg.Forums = kf.Forums
		}
	}

	cfg.ResultsDir = getEnvString("RESULTS_DIR", "results")
	cfg.BaseDir = getEnvString("BASE_DIR", ".")

	cfg.ForumBaseURL = strings.TrimRight(getEnvString("FORUM_BASE_URL", "https://www.dcard.tw"), "/")
	cfg.FetchLimit = getEnvInt("FETCH_LIMIT", 30)
	cfg.FetchTimeout = getEnvDuration("FETCH_TIMEOUT", 30*time.Second)
	cfg.FetchMaxSize = getEnvInt64("FETCH_MAX_SIZE", 5242880)
	cfg.Strategies = getEnvList("STRATEGIES", DefaultStrategies)
	cfg.FeedMirrorURL = getEnvString("FEED_MIRROR_URL", "")
	cfg.DetailLimit = getEnvInt("DETAIL_LIMIT", 15)
	cfg.DetailInterval = getEnvDuration("DETAIL_INTERVAL", time.Second)

	cfg.MaxRetries = getEnvInt("MAX_RETRIES", 3)
	cfg.RetryJitterMin = getEnvDuration("RETRY_JITTER_MIN", 2*time.Second)
	cfg.RetryJitterMax = getEnvDuration("RETRY_JITTER_MAX", 5*time.Second)
	cfg.BackoffBase = getEnvDuration("BACKOFF_BASE", 10*time.Second)
	cfg.BackoffMax = getEnvDuration("BACKOFF_MAX", 2*time.Minute)
	cfg.BlockedCooldown = getEnvDuration("BLOCKED_COOLDOWN", 10*time.Second)
	cfg.StrategyCooldown = getEnvDuration("STRATEGY_COOLDOWN", 15*time.Second)

	cfg.ForumCooldownMin = getEnvDuration("FORUM_COOLDOWN_MIN", 5*time.Second)
	cfg.ForumCooldownMax = getEnvDuration("FORUM_COOLDOWN_MAX", 10*time.Second)
	cfg.PostPacing = getEnvDuration("POST_PACING", 500*time.Millisecond)

	cfg.ChromePath = getEnvString("CHROME_PATH", "")
	cfg.BrowserHeadless = getEnvBool("BROWSER_HEADLESS", true)

	cfg.TelegramBotToken = os.Getenv("TELEGRAM_BOT_TOKEN")
	cfg.TelegramChatID = os.Getenv("TELEGRAM_CHAT_ID")

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	cfg.LedgerRetentionDays = getEnvInt("LEDGER_RETENTION_DAYS", 0)

	cfg.WorkerSchedule = getEnvString("WORKER_SCHEDULE", "@hourly")
	cfg.MetricsPort = getEnvString("METRICS_PORT", "9090")

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate は設定値の整合性を検証する。
func (c *Config) Validate() error {
	if len(c.Forums) == 0 {
		return fmt.Errorf("at least one forum is required")
	}
	for _, f := range c.Forums {
		if strings.TrimSpace(f.Key) == "" {
			return fmt.Errorf("forum key must not be empty")
		}
	}
	if len(c.Keywords) == 0 {
		return fmt.Errorf("at least one keyword is required")
	}
	if c.FetchLimit <= 0 {
		return fmt.Errorf("FETCH_LIMIT must be positive")
	}
	if c.MaxRetries <= 0 {
		return fmt.Errorf("MAX_RETRIES must be positive")
	}
	if c.RetryJitterMax < c.RetryJitterMin {
		return fmt.Errorf("RETRY_JITTER_MAX must be >= RETRY_JITTER_MIN")
	}
	if c.ForumCooldownMax < c.ForumCooldownMin {
		return fmt.Errorf("FORUM_COOLDOWN_MAX must be >= FORUM_COOLDOWN_MIN")
	}
	if len(c.Strategies) == 0 {
		return fmt.Errorf("STRATEGIES must list at least one strategy")
	}
	if c.LedgerRetentionDays < 0 {
		return fmt.Errorf("LEDGER_RETENTION_DAYS must not be negative")
	}
	return nil
}

// TelegramEnabled はTelegram通知に必要な設定が揃っているかを返す。
func (c *Config) TelegramEnabled() bool {
	return c.TelegramBotToken != "" && c.TelegramChatID != ""
}

// ForumName は論壇キーに対応する表示名を返す。未登録または表示名が空の場合はキーを返す。
func (c *Config) ForumName(key string) string {
	for _, f := range c.Forums {
		if f.Key == key && f.Name != "" {
			return f.Name
		}
	}
	return key
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvInt64(key string, defaultVal int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}

func getEnvBool(key string, defaultVal bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultVal
	}
	return b
}

// getEnvList はカンマ区切りの環境変数をスライスとして返す。
func getEnvList(key string, defaultVal []string) []string {
	v := os.Getenv(key)
	if v == "" {
		out := make([]string, len(defaultVal))
		copy(out, defaultVal)
		return out
	}
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
