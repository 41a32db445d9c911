// Package config は設定ファイル・環境変数・コマンドラインフラグから設定を読み込む。
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config はアプリケーション全体の設定を保持する。
// 起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL string `mapstructure:"database_url"`

	// Telegram
	TelegramBotToken    string `mapstructure:"telegram_bot_token"`
	TelegramAPIEndpoint string `mapstructure:"telegram_api_endpoint"`

	// Admin API
	AdminUsername       string `mapstructure:"admin_username"`
	AdminPassword       string `mapstructure:"admin_password"`
	ServerPort          string `mapstructure:"server_port"`
	StockTestRatePerMin int    `mapstructure:"stock_test_rate_per_min"`

	// Worker
	MetricsPort       string        `mapstructure:"metrics_port"`
	PollInterval      time.Duration `mapstructure:"poll_interval"`
	PollMaxConcurrent int           `mapstructure:"poll_max_concurrent"`

	// Fetch
	FetchTimeout       time.Duration `mapstructure:"fetch_timeout"`
	FetchMaxSize       int64         `mapstructure:"fetch_max_size"`
	FetchRetryAttempts int           `mapstructure:"fetch_retry_attempts"`
	FetchRetryDelay    time.Duration `mapstructure:"fetch_retry_delay"`
	ProxyURL           string        `mapstructure:"proxy_url"`

	// Signed API
	SignedAPIBaseURL   string `mapstructure:"signed_api_base_url"`
	SignedAPICountry   string `mapstructure:"signed_api_country"`
	SignedAPILanguage  string `mapstructure:"signed_api_language"`
	SignedAPISalt      string `mapstructure:"signed_api_salt"`
	SignedAPIClientKey string `mapstructure:"signed_api_client_key"`
	SignedAPIDeviceID  string `mapstructure:"signed_api_device_id"`

	// Notify
	NotifySendInterval time.Duration `mapstructure:"notify_send_interval"`

	// Cleanup
	CleanupSchedule              string `mapstructure:"cleanup_schedule"`
	NotificationLogRetentionDays int    `mapstructure:"notification_log_retention_days"`

	// Logging
	LogLevelName string `mapstructure:"log_level"`
	LogLevel     slog.Level `mapstructure:"-"`
}

var defaults = map[string]any{
	"database_url":                    "",
	"telegram_bot_token":              "",
	"telegram_api_endpoint":           "https://api.telegram.org/bot%s/%s",
	"admin_username":                  "",
	"admin_password":                  "",
	"server_port":                     "8080",
	"stock_test_rate_per_min":         30,
	"metrics_port":                    "9090",
	"poll_interval":                   30 * time.Second,
	"poll_max_concurrent":             8,
	"fetch_timeout":                   10 * time.Second,
	"fetch_max_size":                  int64(2 << 20),
	"fetch_retry_attempts":            3,
	"fetch_retry_delay":               2 * time.Second,
	"proxy_url":                       "",
	"signed_api_base_url":             "https://prod-global-api.popmart.com",
	"signed_api_country":              "AU",
	"signed_api_language":             "en",
	"signed_api_salt":                 "W_ak^moHpMla",
	"signed_api_client_key":           "rmdxjisjk7gwykcix",
	"signed_api_device_id":            "",
	"notify_send_interval":            100 * time.Millisecond,
	"cleanup_schedule":                "@daily",
	"notification_log_retention_days": 30,
	"log_level":                       "info",
}

// Load はフラグ・環境変数・設定ファイルの順に優先してConfigを読み込む。
// argsにはサブコマンドを除いた引数を渡す。
// DATABASE_URLが未設定の場合はエラーを返す。
func Load(args []string) (*Config, error) {
	fs := pflag.NewFlagSet("stockwatch", pflag.ContinueOnError)
	configFile := fs.String("config", "", "設定ファイルのパス")
	fs.Duration("interval", 30*time.Second, "在庫チェックの間隔")
	fs.String("token", "", "Telegramボットのトークン（TELEGRAM_BOT_TOKENより優先）")
	fs.String("log-level", "info", "ログレベル (debug, info, warn, error)")
	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("引数の解析に失敗しました: %w", err)
	}

	v := viper.New()
	for key, val := range defaults {
		v.SetDefault(key, val)
	}
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	for key, flag := range map[string]string{
		"poll_interval":      "interval",
		"telegram_bot_token": "token",
		"log_level":          "log-level",
	} {
		if err := v.BindPFlag(key, fs.Lookup(flag)); err != nil {
			return nil, fmt.Errorf("フラグのバインドに失敗しました (%s): %w", flag, err)
		}
	}

	if *configFile != "" {
		v.SetConfigFile(*configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("設定ファイルの読み込みに失敗しました: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("設定値の読み込みに失敗しました: %w", err)
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("required settings are not set: %v", []string{"DATABASE_URL"})
	}

	if err := cfg.LogLevel.UnmarshalText([]byte(cfg.LogLevelName)); err != nil {
		return nil, fmt.Errorf("ログレベルが不正です (%q): %w", cfg.LogLevelName, err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	if cfg.SignedAPIDeviceID == "" {
		cfg.SignedAPIDeviceID = uuid.NewString()
	}

	return cfg, nil
}

func (c *Config) validate() error {
	var errs []error
	if c.PollInterval < time.Second {
		errs = append(errs, fmt.Errorf("POLL_INTERVAL は1秒以上を指定してください: %v", c.PollInterval))
	}
	if c.PollMaxConcurrent <= 0 {
		errs = append(errs, fmt.Errorf("POLL_MAX_CONCURRENT は1以上を指定してください: %d", c.PollMaxConcurrent))
	}
	if c.FetchTimeout <= 0 {
		errs = append(errs, fmt.Errorf("FETCH_TIMEOUT は正の値を指定してください: %v", c.FetchTimeout))
	}
	if c.FetchRetryAttempts <= 0 {
		errs = append(errs, fmt.Errorf("FETCH_RETRY_ATTEMPTS は1以上を指定してください: %d", c.FetchRetryAttempts))
	}
	switch strings.ToUpper(c.SignedAPICountry) {
	case "AU", "GLOBAL":
	default:
		errs = append(errs, fmt.Errorf("SIGNED_API_COUNTRY は AU または GLOBAL を指定してください: %q", c.SignedAPICountry))
	}
	return errors.Join(errs...)
}

// RequireWorker はワーカーの起動に必要な設定を検証する。
// ボットのトークンがないまま監視ループを開始しない。
func (c *Config) RequireWorker() error {
	if c.TelegramBotToken == "" {
		return fmt.Errorf("required settings are not set: %v", []string{"TELEGRAM_BOT_TOKEN"})
	}
	return nil
}

// RequireServe は管理APIの起動に必要な設定を検証する。
func (c *Config) RequireServe() error {
	var missing []string
	if c.AdminUsername == "" {
		missing = append(missing, "ADMIN_USERNAME")
	}
	if c.AdminPassword == "" {
		missing = append(missing, "ADMIN_PASSWORD")
	}
	if len(missing) > 0 {
		return fmt.Errorf("required settings are not set: %v", missing)
	}
	return nil
}
