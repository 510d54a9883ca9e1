// The sweep worker runs scheduled maintenance over the storage backends:
// expired row purging on the object store and history index verification on
// the blob store. Blob entries carry native TTLs, so the blob-side job only
// reconciles the index and reclaims orphaned history entries past the ring.
package main

import (
	"context"
	"database/sql"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"

	"homeboard-sync/internal/infra/adapter/storage/pgobject"
	"homeboard-sync/internal/infra/adapter/storage/redisblob"
	"homeboard-sync/internal/infra/db"
	infraredis "homeboard-sync/internal/infra/redis"
	workerPkg "homeboard-sync/internal/infra/worker"
	obsmetrics "homeboard-sync/internal/observability/metrics"
	"homeboard-sync/internal/resilience/retry"
	"homeboard-sync/internal/usecase/backup"
	"homeboard-sync/pkg/config"
)

func main() {
	_ = godotenv.Load()

	logger := initLogger()

	pool := infraredis.Open()
	defer func() {
		if err := pool.Close(); err != nil {
			logger.Error("failed to close redis pool", slog.Any("error", err))
		}
	}()

	var database *sql.DB
	if os.Getenv("DATABASE_URL") != "" {
		database = db.Open()
		waitForMigrations(logger, database)
		defer func() {
			if err := database.Close(); err != nil {
				logger.Error("failed to close database", slog.Any("error", err))
			}
		}()
	} else {
		logger.Info("DATABASE_URL not set, object store purge disabled")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg := workerPkg.LoadConfigFromEnv(logger)
	logger.Info("worker configuration loaded",
		slog.String("sweep_schedule", cfg.SweepSchedule),
		slog.String("index_verify_schedule", cfg.IndexVerifySchedule),
		slog.String("timezone", cfg.Timezone),
		slog.Duration("sweep_timeout", cfg.SweepTimeout),
		slog.Int("health_port", cfg.HealthPort))

	metrics := workerPkg.NewMetrics()
	startMetricsServer(ctx, logger)

	healthServer := workerPkg.NewHealthServer(cfg.HealthPort, logger)
	healthServer.Start()

	engine := config.LoadEngine()
	blob := redisblob.New(pool)
	index := backup.NewIndexCache(blob, engine.HistoryRingSize, engine.MaxListIterations, logger)

	var store *pgobject.Store
	if database != nil {
		store = pgobject.New(database)
	}

	startScheduler(ctx, logger, cfg, metrics, healthServer, index, store)
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

// waitForMigrations blocks until the API's migrations have created the
// object store table, so a fresh deployment does not race the schema.
func waitForMigrations(logger *slog.Logger, database *sql.DB) {
	const probe = "SELECT 1 FROM objects LIMIT 1"
	for i := 0; i < 10; i++ {
		if _, err := database.Exec(probe); err == nil {
			return
		}
		logger.Info("waiting for migrations, retrying in 3s", slog.Int("attempt", i+1))
		time.Sleep(3 * time.Second)
	}
	logger.Error("migrations did not complete in time")
	os.Exit(1)
}

// startScheduler registers the sweep jobs with cron and blocks until a
// termination signal arrives.
func startScheduler(
	ctx context.Context,
	logger *slog.Logger,
	cfg *workerPkg.Config,
	metrics *workerPkg.Metrics,
	healthServer *workerPkg.HealthServer,
	index *backup.IndexCache,
	store *pgobject.Store,
) {
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		logger.Error("invalid timezone, using UTC", slog.String("timezone", cfg.Timezone), slog.Any("error", err))
		loc = time.UTC
	}
	c := cron.New(cron.WithLocation(loc))

	if store != nil {
		_, err = c.AddFunc(cfg.SweepSchedule, func() {
			runPurgeJob(ctx, logger, cfg, metrics, store)
		})
		if err != nil {
			logger.Error("failed to add purge job", slog.Any("error", err))
			os.Exit(1)
		}
	}

	_, err = c.AddFunc(cfg.IndexVerifySchedule, func() {
		runIndexVerifyJob(ctx, logger, cfg, metrics, index)
	})
	if err != nil {
		logger.Error("failed to add index verify job", slog.Any("error", err))
		os.Exit(1)
	}

	c.Start()

	healthServer.SetReady(true)
	logger.Info("worker started",
		slog.String("sweep_schedule", cfg.SweepSchedule),
		slog.String("index_verify_schedule", cfg.IndexVerifySchedule),
		slog.String("timezone", cfg.Timezone))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down worker...")

	healthServer.SetReady(false)
	cronCtx := c.Stop()
	// 実行中のジョブの完了を待つ
	select {
	case <-cronCtx.Done():
	case <-time.After(cfg.SweepTimeout):
		logger.Warn("sweep still running at shutdown deadline")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := healthServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("health server shutdown failed", slog.Any("error", err))
	}
	logger.Info("worker stopped")
}

// runPurgeJob deletes expired rows from the object store.
func runPurgeJob(ctx context.Context, logger *slog.Logger, cfg *workerPkg.Config, metrics *workerPkg.Metrics, store *pgobject.Store) {
	const job = "object_purge"
	start := time.Now()
	logger.Info("object store purge started")

	jobCtx, cancel := context.WithTimeout(ctx, cfg.SweepTimeout)
	defer cancel()

	var purged int64
	err := retry.WithBackoff(jobCtx, retry.SweepConfig(), func() error {
		n, err := store.PurgeExpired(jobCtx)
		purged += n
		return err
	})
	if err != nil {
		logger.Error("object store purge failed", slog.Any("error", err))
		metrics.RecordRun(job, time.Since(start).Seconds(), false, 0)
		return
	}

	metrics.RecordRun(job, time.Since(start).Seconds(), true, int(purged))
	obsmetrics.RecordSweepDeleted("expired_objects", int(purged))
	logger.Info("object store purge completed",
		slog.Int64("purged", purged),
		slog.Duration("duration", time.Since(start)))
}

// runIndexVerifyJob rebuilds the history index from the authoritative
// backend listing. Rebuild trims entries past the ring as a side effect, so
// this job also reclaims history keys orphaned by crashed writes.
func runIndexVerifyJob(ctx context.Context, logger *slog.Logger, cfg *workerPkg.Config, metrics *workerPkg.Metrics, index *backup.IndexCache) {
	const job = "index_verify"
	start := time.Now()
	logger.Info("history index verification started")

	jobCtx, cancel := context.WithTimeout(ctx, cfg.SweepTimeout)
	defer cancel()

	var entries int
	err := retry.WithBackoff(jobCtx, retry.SweepConfig(), func() error {
		idx, err := index.Rebuild(jobCtx)
		if err != nil {
			return err
		}
		entries = len(idx.Items)
		return nil
	})
	if err != nil {
		logger.Error("history index verification failed", slog.Any("error", err))
		metrics.RecordRun(job, time.Since(start).Seconds(), false, 0)
		return
	}

	metrics.RecordRun(job, time.Since(start).Seconds(), true, 0)
	logger.Info("history index verification completed",
		slog.Int("entries", entries),
		slog.Duration("duration", time.Since(start)))
}
