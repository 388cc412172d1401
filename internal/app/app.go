package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"

	"github.com/ZackRenwick/Scout-Inventory-sub000/internal/auth"
	"github.com/ZackRenwick/Scout-Inventory-sub000/internal/clock"
	"github.com/ZackRenwick/Scout-Inventory-sub000/internal/config"
	"github.com/ZackRenwick/Scout-Inventory-sub000/internal/database"
	"github.com/ZackRenwick/Scout-Inventory-sub000/internal/handler"
	"github.com/ZackRenwick/Scout-Inventory-sub000/internal/inventory"
	"github.com/ZackRenwick/Scout-Inventory-sub000/internal/kvstore"
	"github.com/ZackRenwick/Scout-Inventory-sub000/internal/loan"
	"github.com/ZackRenwick/Scout-Inventory-sub000/internal/logger"
	"github.com/ZackRenwick/Scout-Inventory-sub000/internal/metrics"
	"github.com/ZackRenwick/Scout-Inventory-sub000/internal/middleware"
	"github.com/ZackRenwick/Scout-Inventory-sub000/internal/notify"
	"github.com/ZackRenwick/Scout-Inventory-sub000/internal/password"
	"github.com/ZackRenwick/Scout-Inventory-sub000/internal/plan"
	"github.com/ZackRenwick/Scout-Inventory-sub000/internal/ratelimit"
	"github.com/ZackRenwick/Scout-Inventory-sub000/internal/repository"
	"github.com/ZackRenwick/Scout-Inventory-sub000/internal/security"
	"github.com/ZackRenwick/Scout-Inventory-sub000/internal/session"
	"github.com/ZackRenwick/Scout-Inventory-sub000/internal/stock"
	"github.com/ZackRenwick/Scout-Inventory-sub000/internal/user"
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.String("base_url", cfg.BaseURL),
	)

	switch cmd {
	case CommandServe:
		return runServe(cfg)
	case CommandWorker:
		return runWorker(cfg)
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(cfg)
	}
}

// runServe はAPIサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	// 1. DB接続
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established")

	// 2. KVストアとリポジトリの初期化
	clk := clock.Real{}
	store := kvstore.NewPostgresStore(db, clk)

	userRepo := repository.NewKVUserRepo(store)
	itemRepo := repository.NewKVItemRepo(store)
	planRepo := repository.NewKVPlanRepo(store)
	checkoutRepo := repository.NewKVCheckOutRepo(store)

	// 3. メトリクスの初期化
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	// 4. 認証・セキュリティサービスの初期化
	sessions := session.NewManager(store, clk, cfg.SessionMaxAge, slog.Default())
	limiter := ratelimit.NewLimiter(store, clk, cfg.LoginMaxAttempts, cfg.LoginLockoutWindow)
	vault := password.NewVault(cfg.BcryptCost)
	sanitizer := security.NewNotesSanitizer()

	authService := auth.NewService(userRepo, sessions, vault, limiter, clk, slog.Default(), collector)

	// 初回起動時の管理者アカウント投入（設定が空の場合は何もしない）
	if err := authService.EnsureAdmin(context.Background(), cfg.AdminUsername, cfg.AdminPassword); err != nil {
		return fmt.Errorf("failed to ensure admin account: %w", err)
	}

	// 5. ドメインサービスの初期化
	engine := stock.NewEngine(itemRepo, slog.Default(), collector)

	itemService := inventory.NewService(itemRepo, sanitizer, clk, slog.Default())
	planService := plan.NewService(planRepo, itemRepo, engine, sanitizer, clk, slog.Default())
	loanService := loan.NewService(checkoutRepo, engine, sanitizer, clk, slog.Default())
	userService := user.NewService(userRepo, sessions, vault, clk, slog.Default())

	// 6. ルーターの構築
	// configのレート値はreq/min単位なのでreq/secに変換する
	rateLimiterCfg := middleware.DefaultRateLimiterConfig()
	rateLimiterCfg.GeneralRate = rate.Limit(float64(cfg.RateLimitGeneral) / 60.0)
	rateLimiterCfg.GeneralBurst = cfg.RateLimitGeneral
	rateLimiterCfg.StockTakeRate = rate.Limit(float64(cfg.RateLimitStockTake) / 60.0)
	rateLimiterCfg.StockTakeBurst = cfg.RateLimitStockTake

	deps := &handler.RouterDeps{
		Sessions: sessions,
		CookieConfig: middleware.CookieConfig{
			Secure: cfg.CookieSecure,
			Domain: cfg.CookieDomain,
		},
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       middleware.NewRateLimiter(rateLimiterCfg),
		Logger:            slog.Default(),

		HealthChecker:  db,
		MetricsHandler: metrics.SetupMetricsRoute(registry),
		StatusRecorder: collector,

		AuthService: authService,
		ItemService: itemService,
		PlanService: planService,
		LoanService: loanService,
		UserService: userService,
	}

	router := handler.NewRouter(deps)

	// 7. HTTPサーバーの起動
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("API server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server listen error", slog.String("error", err.Error()))
		}
	}()

	<-stop
	slog.Info("shutting down API server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runWorker はワーカーモードで起動する。
// DB接続を開き、リマインド通知スケジューラを起動する。
// 通知の実行権は日次のclaimで管理されるため、複数プロセスで起動しても
// 同じ日に二重送信されることはない。
// SIGINTまたはSIGTERMシグナルを受信するとシャットダウンする。
func runWorker(cfg *config.Config) error {
	// 1. DB接続
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established (worker)")

	// 2. KVストアとリポジトリの初期化
	clk := clock.Real{}
	store := kvstore.NewPostgresStore(db, clk)

	itemRepo := repository.NewKVItemRepo(store)
	planRepo := repository.NewKVPlanRepo(store)
	checkoutRepo := repository.NewKVCheckOutRepo(store)

	// 3. メトリクスの初期化
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	// 4. 通知対象を列挙するサービスの初期化
	sanitizer := security.NewNotesSanitizer()
	engine := stock.NewEngine(itemRepo, slog.Default(), collector)

	planService := plan.NewService(planRepo, itemRepo, engine, sanitizer, clk, slog.Default())
	loanService := loan.NewService(checkoutRepo, engine, sanitizer, clk, slog.Default())

	// 5. スケジューラの初期化
	guard := notify.NewClaimGuard(store, clk)
	notifier := notify.NewLogNotifier(slog.Default())
	scheduler := notify.NewScheduler(
		guard, loanService, planService, notifier,
		clk, slog.Default(), collector,
	)

	// グレースフルシャットダウンのためのシグナルハンドリング
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-stop
		slog.Info("shutting down worker...")
		cancel()
	}()

	slog.Info("worker starting",
		slog.Duration("check_interval", cfg.NotifyCheckInterval),
	)

	// スケジューラをメインgoroutineで実行（ブロッキング）
	scheduler.Start(ctx, cfg.NotifyCheckInterval)

	slog.Info("worker stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully")
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
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
