package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gomodule/redigo/redis"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"

	"homeboard-sync/internal/infra/adapter/storage/pgobject"
	"homeboard-sync/internal/infra/adapter/storage/redisblob"
	"homeboard-sync/internal/infra/db"
	infraredis "homeboard-sync/internal/infra/redis"
	"homeboard-sync/internal/repository"
	"homeboard-sync/pkg/config"

	"homeboard-sync/internal/infra/notifier"
	"homeboard-sync/internal/observability/tracing"
	"homeboard-sync/internal/resilience/circuitbreaker"
	"homeboard-sync/internal/service/lockout"
	"homeboard-sync/internal/usecase/backup"
	"homeboard-sync/internal/usecase/record"

	hhttp "homeboard-sync/internal/handler/http"
	hauth "homeboard-sync/internal/handler/http/auth"
	"homeboard-sync/internal/handler/http/middleware"
	"homeboard-sync/internal/handler/http/requestid"
	hsync "homeboard-sync/internal/handler/http/sync"
)

// @title           Homeboard Sync API
// @version         1.0
// @description     ダッシュボード設定のクラウド同期 REST API
// @description     単一の同期ドキュメントの読み書き、バックアップ/履歴管理、復元機能を提供します。

// @contact.name   API Support
// @contact.email  support@example.com

// @license.name  MIT
// @license.url   https://opensource.org/licenses/MIT

// @host      localhost:8080
// @BasePath  /

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description 管理者パスワードまたは発行済み JWT を "Bearer {value}" 形式で指定してください。

func main() {
	// .env は開発用。本番では環境変数を直接設定する
	_ = godotenv.Load()

	logger := initLogger()
	validateAdminPassword(logger)
	validateJWTSecret(logger)

	pool := infraredis.Open()
	defer func() {
		if err := pool.Close(); err != nil {
			logger.Error("failed to close redis pool", slog.Any("error", err))
		}
	}()

	database := initObjectStore(logger)
	if database != nil {
		defer func() {
			if err := database.Close(); err != nil {
				logger.Error("failed to close database", slog.Any("error", err))
			}
		}()
	}

	version := getVersion()
	handler := setupServer(logger, pool, database, version)

	runServer(logger, handler, version)
}

// initLogger initializes and returns a structured logger based on environment configuration.
func initLogger() *slog.Logger {
	logLevel := slog.LevelInfo
	if os.Getenv("LOG_LEVEL") == "debug" {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)
	return logger
}

// validateAdminPassword validates the shared admin credential at startup.
// This prevents the server from starting with an empty or weak credential.
func validateAdminPassword(logger *slog.Logger) {
	password := os.Getenv("ADMIN_PASSWORD")
	if password == "" {
		logger.Error("ADMIN_PASSWORD must be set")
		os.Exit(1)
	}
	if len(password) < 12 {
		logger.Error("ADMIN_PASSWORD must be at least 12 characters")
		os.Exit(1)
	}
	weakPasswords := []string{"password", "123456", "admin", "test", "secret"}
	for _, weak := range weakPasswords {
		if password == weak || password == weak+"123" {
			logger.Error("ADMIN_PASSWORD must not be a common weak value")
			os.Exit(1)
		}
	}
}

// validateJWTSecret validates the JWT_SECRET environment variable for security requirements.
func validateJWTSecret(logger *slog.Logger) {
	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		logger.Error("JWT_SECRET must be set")
		os.Exit(1)
	}
	// セキュリティ: 最小32文字（256ビット）を強制
	if len(secret) < 32 {
		logger.Error("JWT_SECRET must be at least 32 characters (256 bits)")
		os.Exit(1)
	}
	// セキュリティ: よくある弱い秘密鍵を拒否
	weakSecrets := []string{"secret", "password", "test", "admin", "default"}
	for _, weak := range weakSecrets {
		if secret == weak || secret == weak+"123" {
			logger.Error("JWT_SECRET must not be a common weak value", slog.String("weak_value", weak))
			os.Exit(1)
		}
	}
}

// initObjectStore opens the Postgres connection and runs migrations when
// DATABASE_URL is configured. Without it the engine runs blob-only and the
// version-tag conditional write path is unavailable.
func initObjectStore(logger *slog.Logger) *sql.DB {
	if os.Getenv("DATABASE_URL") == "" {
		logger.Warn("DATABASE_URL not set, running blob-only (no conditional writes)")
		return nil
	}
	database := db.Open()
	if err := db.MigrateUp(database); err != nil {
		logger.Error("failed to migrate database", slog.Any("error", err))
		os.Exit(1)
	}
	return database
}

// getVersion returns the application version from environment or default.
func getVersion() string {
	version := os.Getenv("VERSION")
	if version == "" {
		version = "dev"
	}
	return version
}

// setupServer wires the storage backends, services, routes and middleware.
func setupServer(logger *slog.Logger, pool *redis.Pool, database *sql.DB, version string) http.Handler {
	engine := config.LoadEngine()

	// 各バックエンドをサーキットブレーカーで保護する
	blob := circuitbreaker.WrapBackend(redisblob.New(pool), circuitbreaker.BlobStoreConfig())

	var object repository.Backend
	if database != nil {
		object = circuitbreaker.WrapBackend(pgobject.New(database), circuitbreaker.ObjectStoreConfig())
	}

	records := record.NewService(blob, object, logger)
	index := backup.NewIndexCache(blob, engine.HistoryRingSize, engine.MaxListIterations, logger)
	backups := backup.NewService(blob, records, index, engine.BackupTTL, logger)

	lockNotifier := notifier.FromEnv(
		os.Getenv("SLACK_WEBHOOK_URL"),
		os.Getenv("DISCORD_WEBHOOK_URL"),
		logger,
	)
	lock := lockout.NewService(blob, engine.LockoutTTL, lockNotifier, logger)

	provider, err := hauth.NewProviderFromEnv()
	if err != nil {
		logger.Error("failed to load admin credential", slog.Any("error", err))
		os.Exit(1)
	}
	issuer, err := hauth.NewIssuerFromEnv(engine.SessionTokenTTL)
	if err != nil {
		logger.Error("failed to load token issuer", slog.Any("error", err))
		os.Exit(1)
	}

	// Load trusted proxy configuration for client IP extraction
	proxyConfig, err := middleware.LoadTrustedProxyConfig()
	if err != nil {
		logger.Error("failed to load trusted proxy configuration", slog.Any("error", err))
		os.Exit(1)
	}
	var ipExtractor middleware.IPExtractor
	if proxyConfig.Enabled {
		ipExtractor = middleware.NewTrustedProxyExtractor(*proxyConfig)
		logger.Info("lockout: trusted proxy mode enabled",
			slog.Int("trusted_proxies_count", len(proxyConfig.AllowedCIDRs)))
	} else {
		ipExtractor = &middleware.RemoteAddrExtractor{}
		logger.Info("lockout: using RemoteAddr (secure mode, proxy headers ignored)")
	}

	syncHandler := hsync.NewHandler(records, backups, lock, provider, issuer, ipExtractor, logger)

	syncMux := http.NewServeMux()
	hsync.Register(syncMux, syncHandler)

	// 同期レスポンスは常にキャッシュ禁止 (Authorization で内容が変わるため)
	syncSurface := hhttp.NoStore(syncMux)
	// ストア障害時にハンドラが保持されたままにならないようタイムアウトを設定
	syncSurface = hhttp.Timeout(config.GetEnvDuration("REQUEST_TIMEOUT", 30*time.Second))(syncSurface)

	rootMux := http.NewServeMux()
	rootMux.Handle("/api/sync", syncSurface)

	// ヘルスチェックエンドポイント（認証不要）
	rootMux.Handle("/health", &hhttp.HealthHandler{DB: database, Redis: pool, Version: version})
	rootMux.Handle("/ready", &hhttp.ReadyHandler{Redis: pool})
	rootMux.Handle("/live", &hhttp.LiveHandler{})
	rootMux.Handle("/metrics", hhttp.MetricsHandler())

	return applyMiddleware(logger, rootMux)
}

// applyMiddleware wraps the handler with the middleware chain.
// Order (outermost first): Request ID → Tracing → Recovery → Logging →
// Body Limit → Metrics.
func applyMiddleware(logger *slog.Logger, handler http.Handler) http.Handler {
	chain := handler

	// Apply in reverse order (innermost to outermost)
	chain = hhttp.MetricsMiddleware(chain)
	// バックエンドの値上限 25MiB + エンベロープ余裕分
	chain = hhttp.LimitRequestBody(repository.MaxBlobValueBytes + 1<<20)(chain)
	chain = hhttp.Logging(logger)(chain)
	chain = hhttp.Recover(logger)(chain)
	chain = tracing.Middleware(chain)
	chain = requestid.Middleware(chain)

	return chain
}

// runServer starts the HTTP server and handles graceful shutdown.
func runServer(logger *slog.Logger, handler http.Handler, version string) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	addr := ":" + config.GetEnvString("PORT", "8080")

	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second, // Prevent Slowloris attacks
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	go func() {
		logger.Info("server starting",
			slog.String("addr", addr),
			slog.String("version", version))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", slog.Any("error", err))
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down server...")

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown failed", slog.Any("error", err))
	}
	logger.Info("server stopped")
}
