package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/time/rate"

	"github.com/hitoshi/blogclient/internal/api"
	"github.com/hitoshi/blogclient/internal/article"
	"github.com/hitoshi/blogclient/internal/auth"
	"github.com/hitoshi/blogclient/internal/config"
	"github.com/hitoshi/blogclient/internal/database"
	"github.com/hitoshi/blogclient/internal/handler"
	"github.com/hitoshi/blogclient/internal/logger"
	"github.com/hitoshi/blogclient/internal/metrics"
	"github.com/hitoshi/blogclient/internal/middleware"
	"github.com/hitoshi/blogclient/internal/repository"
	"github.com/hitoshi/blogclient/internal/security"
	"github.com/hitoshi/blogclient/internal/session"
)

var (
	_ auth.UserAPI       = (*api.Client)(nil)
	_ article.ArticleAPI = (*api.Client)(nil)
)

// Init はアプリケーションの初期化を行う。
// JSON構造化ログをセットアップし、環境変数からConfigを読み込む。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w, logger.ParseLevel(os.Getenv("LOG_LEVEL")))

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
		slog.String("api_base_url", cfg.APIBaseURL),
		slog.String("token_store", cfg.TokenStore),
	)

	switch cmd {
	case CommandMigrate:
		return runMigrate(cfg)
	case CommandMigrateDown:
		return runMigrateDown(cfg)
	default:
		return runServe(cfg)
	}
}

// runServe はローカルビューサーバーを起動する。
// 全依存関係をワイヤリングし、保存済みトークンでセッションを復元してからHTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	log := slog.Default()

	// 1. トークン保存先
	tokens, db, err := newTokenRepository(cfg)
	if err != nil {
		return err
	}
	if db != nil {
		defer db.Close()
	}

	// 2. メトリクス
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	collector := metrics.NewCollector(reg)

	// 3. リモートAPIクライアント
	guard := security.NewSSRFGuard(cfg.APIAllowPrivate)
	if err := guard.ValidateURL(cfg.APIBaseURL); err != nil {
		return fmt.Errorf("API_BASE_URL is not allowed: %w", err)
	}
	limiter := rate.NewLimiter(rate.Limit(cfg.APIRateLimit), cfg.APIRateBurst)
	client := api.NewClient(guard.NewAPIClient(cfg.APITimeout), log, cfg.APIBaseURL, limiter, collector)

	// 4. セッションとストア
	ctx := context.Background()
	token, err := tokens.Load(ctx)
	if err != nil {
		// 読み取れないトークンは未ログインとして扱う
		log.Warn("failed to load stored token", slog.String("error", err.Error()))
		token = ""
	}
	sess := session.New(token)
	authStore := auth.NewStore(client, tokens, sess, log, collector)
	articleStore := article.NewStore(client, sess, log, collector)

	if err := authStore.Restore(ctx); err != nil {
		log.Warn("session restore failed", slog.String("error", err.Error()))
	}

	// 5. ルーター
	rateLimiter := middleware.NewRateLimiter(
		middleware.RateLimiterConfigPerMinute(cfg.RateLimitGeneral, cfg.RateLimitMutation),
		log,
	)
	defer rateLimiter.Stop()

	deps := &handler.RouterDeps{
		Logger:            log,
		Session:           sess,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		CSRF:              middleware.CSRFConfig{CookieSecure: cfg.CookieSecure},
		RateLimiter:       rateLimiter,
		AuthStore:         authStore,
		ArticleStore:      articleStore,
		Sanitizer:         security.NewContentSanitizer(),
		PageSize:          cfg.PageSize,
		Metrics:           metrics.Handler(reg),
	}
	if db != nil {
		deps.HealthChecker = db
	}

	router := handler.NewRouter(deps)

	// 6. HTTPサーバーの起動
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.APITimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	serveErr := make(chan error, 1)
	go func() {
		log.Info("view server starting", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	select {
	case err := <-serveErr:
		return fmt.Errorf("server listen error: %w", err)
	case <-stop:
	}
	log.Info("shutting down view server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	log.Info("view server stopped gracefully")
	return nil
}

// newTokenRepository は設定に応じたトークン保存先を返す。
// postgresの場合は接続済みの*sql.DBも返す。呼び出し側でCloseすること。
func newTokenRepository(cfg *config.Config) (repository.TokenRepository, *sql.DB, error) {
	switch cfg.TokenStore {
	case config.TokenStorePostgres:
		db, err := database.Open(cfg.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open database: %w", err)
		}
		if err := database.Ping(context.Background(), db, 5*time.Second); err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		slog.Info("database connection established",
			slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
		)
		return repository.NewPostgresTokenRepo(db), db, nil
	case config.TokenStoreMemory:
		return repository.NewMemoryTokenRepo(""), nil, nil
	default:
		return repository.NewFileTokenRepo(cfg.TokenFile), nil, nil
	}
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	if cfg.DatabaseURL == "" {
		return errors.New("DATABASE_URL is required for migrate")
	}
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully")
	return nil
}

// runMigrateDown は直近のマイグレーションを1段階ロールバックする。
func runMigrateDown(cfg *config.Config) error {
	if cfg.DatabaseURL == "" {
		return errors.New("DATABASE_URL is required for migrate down")
	}
	slog.Info("rolling back database migration",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	if err := database.RollbackMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("rollback failed: %w", err)
	}

	slog.Info("database rollback completed successfully")
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

// maskDatabaseURL はデータベースURLのパスワードをマスクする。
// 解析できない場合は全体を伏せる。
func maskDatabaseURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "***"
	}
	return u.Redacted()
}
