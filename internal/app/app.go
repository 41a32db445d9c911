package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/hitoshi/stockwatch/internal/catalog"
	"github.com/hitoshi/stockwatch/internal/config"
	"github.com/hitoshi/stockwatch/internal/database"
	"github.com/hitoshi/stockwatch/internal/handler"
	"github.com/hitoshi/stockwatch/internal/logger"
	"github.com/hitoshi/stockwatch/internal/metrics"
	"github.com/hitoshi/stockwatch/internal/middleware"
	"github.com/hitoshi/stockwatch/internal/model"
	"github.com/hitoshi/stockwatch/internal/notify"
	"github.com/hitoshi/stockwatch/internal/repository"
	"github.com/hitoshi/stockwatch/internal/security"
	"github.com/hitoshi/stockwatch/internal/stock"
	"github.com/hitoshi/stockwatch/internal/subscription"
	"github.com/hitoshi/stockwatch/internal/worker/cleanup"
	"github.com/hitoshi/stockwatch/internal/worker/poll"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"
)

const (
	dbPingTimeout    = 5 * time.Second
	shutdownTimeout  = 30 * time.Second
	healthcheckLimit = 5 * time.Second
)

// Init はアプリケーションの初期化を行う。
// JSON構造化ログをセットアップし、引数・環境変数・設定ファイルからConfigを読み込む。
// 読み込み後は設定されたログレベルでロガーを再構成する。
func Init(w io.Writer, args []string) (*config.Config, *slog.Logger, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w, slog.LevelInfo)

	// 2. 設定を読み込む
	cfg, err := config.Load(args)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	return cfg, logger.SetupDefault(w, cfg.LogLevel), nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。ctxのキャンセルでグレースフルシャットダウンする。
func Run(ctx context.Context, w io.Writer, args []string) error {
	cmd, rest := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		return runHealthcheck(ctx, healthcheckPort(rest))
	}

	cfg, log, err := Init(w, rest)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	log.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("log_level", cfg.LogLevel.String()),
	)

	switch cmd {
	case CommandWorker:
		return runWorker(ctx, cfg, log)
	case CommandMigrate:
		return runMigrate(cfg, log)
	default:
		return runServe(ctx, cfg, log)
	}
}

// runServe は管理APIサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
func runServe(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	if err := cfg.RequireServe(); err != nil {
		return err
	}

	// 1. DB接続
	db, err := openDB(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer db.Close()

	// 2. リポジトリの初期化
	productRepo := repository.NewPostgresProductRepo(db)
	monitorRepo := repository.NewPostgresMonitorRepo(db)
	stateRepo := repository.NewPostgresStockStateRepo(db)
	logRepo := repository.NewPostgresNotificationLogRepo(db)

	// 3. 手動在庫チェック用のフェッチャー
	guard := security.NewStorefrontGuard()
	fetchers, err := buildFetchers(cfg, guard, log)
	if err != nil {
		return err
	}

	// 4. サービスとルーター
	limiter := middleware.NewRateLimiter(middleware.PerMinute(cfg.StockTestRatePerMin), log)
	defer limiter.Stop()

	router := handler.NewRouter(&handler.RouterDeps{
		Logger:           log,
		AdminUsername:    cfg.AdminUsername,
		AdminPassword:    cfg.AdminPassword,
		StockTestLimiter: limiter,
		Products:         catalog.NewService(productRepo, stateRepo, guard),
		Monitors:         subscription.NewService(monitorRepo, productRepo),
		Notifications:    logRepo,
		Prober:           stock.NewProber(fetchers, log),
		DB:               db,
		MetricsHandler:   metrics.Handler(prometheus.DefaultGatherer),
	})

	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second, // stock-testは上流の応答を待つ
		IdleTimeout:  60 * time.Second,
	}

	log.Info("API server starting", slog.String("addr", server.Addr))
	if err := serveUntilDone(ctx, server, log); err != nil {
		return err
	}
	log.Info("API server stopped gracefully")
	return nil
}

// runWorker は在庫監視ワーカーモードで起動する。
// ポーリングスケジューラ、クリーンアップジョブ、メトリクスサーバーをerrgroupで並行実行し、
// いずれかが失敗するかctxがキャンセルされると全体を停止する。
func runWorker(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	// ボットトークンがなければ監視ループを起動しない
	if err := cfg.RequireWorker(); err != nil {
		return err
	}

	// 1. DB接続
	db, err := openDB(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer db.Close()

	// 2. リポジトリの初期化
	monitorRepo := repository.NewPostgresMonitorRepo(db)
	stateRepo := repository.NewPostgresStockStateRepo(db)
	logRepo := repository.NewPostgresNotificationLogRepo(db)

	// 3. フェッチャー
	fetchers, err := buildFetchers(cfg, security.NewStorefrontGuard(), log)
	if err != nil {
		return err
	}

	// 4. 通知
	sender, err := notify.NewTelegramSender(cfg.TelegramBotToken, cfg.TelegramAPIEndpoint, cfg.FetchTimeout)
	if err != nil {
		return fmt.Errorf("failed to initialize telegram sender: %w", err)
	}
	log.Info("telegram bot authorized", slog.String("bot", sender.BotUsername()))

	formatter := notify.NewStockAlertFormatter(security.NewTextSanitizer())
	notifier := notify.NewNotifier(sender, formatter, cfg.NotifySendInterval, log)

	// 5. メトリクス
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	collector := metrics.NewCollector(reg)

	// 6. スケジューラとクリーンアップジョブ
	scheduler := poll.NewScheduler(
		monitorRepo,
		fetchers,
		stock.NewTracker(stateRepo, log),
		notifier,
		logRepo,
		collector,
		log,
		poll.Options{
			Interval:       cfg.PollInterval,
			MaxConcurrency: cfg.PollMaxConcurrent,
		},
	)

	cleanupJob := cleanup.NewCleanupJob(db, log)
	cleanupJob.RetentionDays = cfg.NotificationLogRetentionDays

	mux := metrics.SetupMetricsRoute(reg)
	mux.Handle("/health", handler.NewHealthHandler(db, log))
	metricsServer := &http.Server{
		Addr:         ":" + cfg.MetricsPort,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	log.Info("worker starting",
		slog.Duration("poll_interval", cfg.PollInterval),
		slog.Int("max_concurrent", cfg.PollMaxConcurrent),
		slog.String("metrics_addr", metricsServer.Addr),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		scheduler.Start(gctx)
		return nil
	})
	g.Go(func() error {
		return cleanupJob.Start(gctx, cfg.CleanupSchedule)
	})
	g.Go(func() error {
		return serveUntilDone(gctx, metricsServer, log)
	})

	if err := g.Wait(); err != nil {
		return fmt.Errorf("worker stopped with error: %w", err)
	}

	log.Info("worker stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config, log *slog.Logger) error {
	log.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	log.Info("database migrations completed successfully")
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(ctx context.Context, port string) error {
	ctx, cancel := context.WithTimeout(ctx, healthcheckLimit)
	defer cancel()

	url := fmt.Sprintf("http://localhost:%s/health", port)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// healthcheckPort は確認対象のポートを返す。
// "healthcheck worker" の場合はワーカーのメトリクスポートを使う。
func healthcheckPort(args []string) string {
	key, fallback := "SERVER_PORT", "8080"
	if len(args) > 0 && args[0] == string(CommandWorker) {
		key, fallback = "METRICS_PORT", "9090"
	}
	if port := os.Getenv(key); port != "" {
		return port
	}
	return fallback
}

// buildFetchers はリージョンごとのフェッチャーをリトライ付きで構築する。
func buildFetchers(cfg *config.Config, guard *security.StorefrontGuard, log *slog.Logger) (map[model.Region]stock.Fetcher, error) {
	client, err := stock.NewTLSClient(stock.TLSClientConfig{
		Timeout:  cfg.FetchTimeout,
		ProxyURL: cfg.ProxyURL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize signed API client: %w", err)
	}

	signed := stock.NewSignedAPIFetcher(
		client,
		stock.NewSigner(cfg.SignedAPISalt, cfg.SignedAPIClientKey),
		stock.SignedAPIConfig{
			BaseURL:     cfg.SignedAPIBaseURL,
			Country:     cfg.SignedAPICountry,
			Language:    cfg.SignedAPILanguage,
			ClientKey:   cfg.SignedAPIClientKey,
			DeviceID:    cfg.SignedAPIDeviceID,
			Timeout:     cfg.FetchTimeout,
			MaxBodySize: cfg.FetchMaxSize,
		},
		log,
	)
	storefront := stock.NewStorefrontFetcher(guard, log, cfg.FetchTimeout, cfg.FetchMaxSize)

	return map[model.Region]stock.Fetcher{
		model.RegionGlobal: stock.NewRetryFetcher(signed, cfg.FetchRetryAttempts, cfg.FetchRetryDelay, log),
		model.RegionAU:     stock.NewRetryFetcher(storefront, cfg.FetchRetryAttempts, cfg.FetchRetryDelay, log),
	}, nil
}

func openDB(ctx context.Context, cfg *config.Config, log *slog.Logger) (*sql.DB, error) {
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := database.Ping(ctx, db, dbPingTimeout); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	log.Info("database connection established")
	return db, nil
}

// serveUntilDone はctxがキャンセルされるまでHTTPサーバーを動かし、その後シャットダウンする。
func serveUntilDone(ctx context.Context, server *http.Server, log *slog.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("server listen error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down server...", slog.String("addr", server.Addr))
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
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
