// Matchcore Scheduler — периодические задачи над общей очередью.
//
// Scheduler:
//   - По SCAN_CRON ставит глобальный пересчёт eligibility (фоновый приоритет)
//   - Возвращает в очередь job, зависшие в PROCESSING дольше CLAIM_TIMEOUT
//
// Экземпляров может быть несколько: тики выполняет только лидер,
// лидерство — pg_try_advisory_lock.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/shaiso/Matchcore/internal/config"
	"github.com/shaiso/Matchcore/internal/eligibility"
	"github.com/shaiso/Matchcore/internal/mq"
	"github.com/shaiso/Matchcore/internal/queue"
	"github.com/shaiso/Matchcore/internal/repo"
	"github.com/shaiso/Matchcore/internal/scheduler"
	"github.com/shaiso/Matchcore/internal/telemetry"
	"github.com/shaiso/Matchcore/internal/trigger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := telemetry.SetupLogger(cfg.LogLevel, cfg.LogFormat)
	logger.Info("starting matchcore-scheduler",
		"scan_cron", cfg.ScanCron,
		"timezone", cfg.ScanTimezone,
		"claim_timeout", cfg.ClaimTimeout,
	)

	// graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("scheduler failed", "error", err)
		os.Exit(1)
	}

	logger.Info("matchcore-scheduler stopped")
}

func run(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	// DB pool
	pool, err := repo.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns)
	if err != nil {
		return err
	}
	defer pool.Close()
	logger.Info("database connected")

	var notifier queue.Notifier
	mqConn, err := mq.NewConnection(cfg.RabbitMQURL, logger)
	if err != nil {
		logger.Warn("RabbitMQ not available, workers will pick up jobs by polling", "error", err)
	} else {
		defer mqConn.Close()
		if err := mq.SetupTopology(ctx, mqConn); err != nil {
			logger.Warn("failed to setup topology", "error", err)
		}
		notifier = mq.NewPublisher(mqConn, logger)
	}

	entityRepo := repo.NewEntityRepo(pool)
	evaluationRepo := repo.NewEvaluationRepo(pool)

	// Scheduler только ставит job: очередь не запускается
	q := queue.NewShared(queue.SharedConfig{
		Store:    repo.NewJobRepo(pool),
		Notifier: notifier,
		Logger:   logger,
	})

	engine := eligibility.New(eligibility.Config{
		Selections:  repo.NewSelectionRepo(pool),
		Entities:    entityRepo,
		Evaluations: evaluationRepo,
		Cap:         cfg.SelectionCap,
		Logger:      logger,
	})

	sched, err := scheduler.New(scheduler.Config{
		Scans: trigger.New(trigger.Config{
			Queue:       q,
			Pairs:       engine,
			MaxAttempts: cfg.MaxAttempts,
			Logger:      logger,
		}),
		Reaper:       q,
		CronExpr:     cfg.ScanCron,
		Location:     loc,
		ClaimTimeout: cfg.ClaimTimeout,
		Logger:       logger,
	})
	if err != nil {
		return err
	}

	locker := repo.NewLocker(pool, cfg.LockKey)
	defer func() {
		// ctx уже отменён — отпускаем блокировку с отдельным таймаутом
		releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := locker.Release(releaseCtx); err != nil {
			logger.Warn("failed to release leader lock", "error", err)
		}
	}()

	g, gctx := errgroup.WithContext(ctx)

	// HTTP: /healthz + /metrics
	g.Go(func() error {
		mux := telemetry.NewMux(func(ctx context.Context) error { return pool.Ping(ctx) })
		return telemetry.Serve(gctx, net.JoinHostPort("", cfg.SchedPort), mux, logger)
	})

	// scheduler loop
	g.Go(func() error {
		tk := time.NewTicker(cfg.TickInterval)
		defer tk.Stop()

		var leader bool
		for {
			select {
			case <-gctx.Done():
				return nil
			case t := <-tk.C:
				// пытаемся стать лидером (или подтвердить лидерство)
				ok, err := locker.TryAcquire(gctx)
				if err != nil {
					logger.Error("leader lock failed", "error", err)
					continue
				}
				if ok != leader {
					leader = ok
					logger.Info("leadership changed", "leader", leader)
				}
				if !leader {
					// не лидер — пропускаем тик
					continue
				}

				if err := sched.Tick(gctx, t); err != nil {
					logger.Error("scheduler tick failed", "error", err)
				}
			}
		}
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
