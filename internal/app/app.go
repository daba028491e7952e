// Package app はコマンドの解析と依存関係のワイヤリングを行い、各起動モードを実行する。
package app

import (
	"context"
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

	"github.com/Byte-q/used-backend/internal/config"
	"github.com/Byte-q/used-backend/internal/database"
	"github.com/Byte-q/used-backend/internal/handler"
	"github.com/Byte-q/used-backend/internal/logger"
	"github.com/Byte-q/used-backend/internal/metrics"
	"github.com/Byte-q/used-backend/internal/middleware"
	"github.com/Byte-q/used-backend/internal/repository"
	"github.com/Byte-q/used-backend/internal/worker/cleanup"
)

const (
	purgeKindSession      = "session"
	purgeKindRefreshToken = "refresh_token"
)

// Init はアプリケーションの初期化を行う。
// JSON構造化ログをセットアップし、環境変数からConfigを読み込んでログレベルを反映する。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger.SetLevel(cfg.LogLevel)
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
			port = "3500"
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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch cmd {
	case CommandMigrate:
		return runMigrate(cfg)
	case CommandSeed:
		return runSeed(ctx, cfg)
	case CommandCleanup:
		return runCleanup(ctx, cfg)
	default:
		return runServe(ctx, cfg)
	}
}

// runServe はAPIサーバーモードで起動する。
// データストアに接続し、全依存関係をワイヤリングしてHTTPサーバーを起動する。
// 期限切れ認証データのクリーンアップもバックグラウンドで実行する。
// ctxがキャンセルされる（SIGINT/SIGTERM）とグレースフルシャットダウンを行う。
func runServe(ctx context.Context, cfg *config.Config) error {
	// 1. データストア接続
	st, err := openStores(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	// 2. リポジトリ・サービスの初期化
	comps, err := newComponents(cfg, st)
	if err != nil {
		return err
	}

	// 3. メトリクス
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	collector := metrics.NewCollector(reg)
	comps.authService.SetRecorder(collector)

	// 4. クリーンアップジョブ
	// メモリ登録簿はこのプロセス内にしか存在しないため、serveでも削除を行う
	cleanupJob := cleanup.NewCleanupJob(slog.Default(), collector,
		cleanup.Target{Kind: purgeKindSession, Purger: comps.sessionRepo},
		cleanup.Target{Kind: purgeKindRefreshToken, Purger: comps.registry},
	)
	go cleanupJob.Start(ctx, cfg.CleanupInterval)

	// 5. ルーターの構築
	rateLimiter := middleware.NewRateLimiter(
		middleware.NewRateLimiterConfig(cfg.RateLimitGeneral, cfg.RateLimitAuth),
	)
	defer rateLimiter.Stop()

	router := handler.NewRouter(&handler.RouterDeps{
		Authenticator:     comps.authService,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       rateLimiter,
		HTTPRecorder:      collector,
		Logger:            slog.Default(),
		MaxBodyBytes:      cfg.MaxBodyBytes,
		HSTS:              cfg.CookieSecure,

		HealthCheckers: map[string]handler.HealthChecker{
			"postgres": handler.NewPostgresHealthAdapter(st.db),
			"mongodb":  handler.NewMongoHealthAdapter(st.mongoClient),
		},
		MetricsHandler: metrics.Handler(reg),

		AuthService: comps.authService,
		AuthConfig: handler.AuthHandlerConfig{
			CookieDomain:  cfg.CookieDomain,
			CookieSecure:  cfg.CookieSecure,
			SessionMaxAge: cfg.SessionMaxAge,
		},

		UserService:    comps.userService,
		PostService:    comps.postService,
		ProductService: comps.productService,
	})

	// 6. HTTPサーバーの起動
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("API server starting",
			slog.String("addr", server.Addr),
			slog.String("refresh_token_store", cfg.RefreshTokenStore),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("server listen error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("shutting down API server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runMigrate はセッションストアのマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskURL(cfg.DatabaseURL)),
	)

	result, err := database.RunMigrations(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully",
		slog.Uint64("version", uint64(result.Version)),
		slog.Bool("changed", result.Changed),
	)
	return nil
}

// runSeed は管理者ユーザーとサンプルデータを投入する。
func runSeed(ctx context.Context, cfg *config.Config) error {
	if cfg.SeedAdminPassword == "" {
		return errSeedPasswordRequired
	}

	st, err := openStores(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	comps, err := newComponents(cfg, st)
	if err != nil {
		return err
	}

	s := &seeder{
		users:     comps.userRepo,
		registrar: comps.authService,
		posts:     comps.postRepo,
		creator:   comps.postService,
		products:  comps.productService,
		logger:    slog.Default(),
	}
	if err := s.Run(ctx, seedAdmin{
		Username: cfg.SeedAdminUsername,
		Email:    cfg.SeedAdminEmail,
		Password: cfg.SeedAdminPassword,
	}); err != nil {
		return fmt.Errorf("seed failed: %w", err)
	}

	slog.Info("seeding completed successfully")
	return nil
}

// runCleanup は期限切れのセッションとリフレッシュトークンを定期削除する。
// PostgreSQLのみを使うため、MongoDBには接続しない。
// ctxがキャンセルされるまで実行を継続する。
func runCleanup(ctx context.Context, cfg *config.Config) error {
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := database.Retry(ctx, "postgres", database.DefaultConnectAttempts, db.PingContext); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	targets := []cleanup.Target{
		{Kind: purgeKindSession, Purger: repository.NewPostgresSessionRepo(db)},
	}
	if cfg.RefreshTokenStore == "postgres" {
		targets = append(targets, cleanup.Target{
			Kind:   purgeKindRefreshToken,
			Purger: repository.NewPostgresRefreshTokenRepo(db),
		})
	} else {
		slog.Info("refresh tokens are held in memory by the API server; skipping")
	}

	cleanup.NewCleanupJob(slog.Default(), nil, targets...).Start(ctx, cfg.CleanupInterval)

	slog.Info("cleanup stopped gracefully")
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	target := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(target)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskURL は接続URLのパスワードをマスクする。解析できない場合は全体を伏せる。
func maskURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "***"
	}
	return u.Redacted()
}
