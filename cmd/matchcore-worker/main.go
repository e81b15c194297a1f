// Matchcore Worker — выполняет job из очереди.
//
// Worker:
//   - Захватывает job из таблицы jobs (или из памяти при QUEUE_BACKEND=memory)
//   - Вызывает обработчик по виду payload (оценка пары, профиль, уведомление)
//   - Повторяет неудачные job с backoff, исчерпавшие попытки — в DEAD
//   - Просыпается по job.enqueued из RabbitMQ, без него — только polling
//
// Workers масштабируются горизонтально над одной таблицей jobs.
// На SIGINT/SIGTERM перестаёт брать job и дожидается выполняющихся.
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
	"github.com/shaiso/Matchcore/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Инициализируем structured logging
	logger := telemetry.SetupLogger(cfg.LogLevel, cfg.LogFormat)
	logger.Info("starting matchcore-worker", "backend", cfg.QueueBackend)

	// graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("worker failed", "error", err)
		os.Exit(1)
	}

	logger.Info("matchcore-worker stopped")
}

func run(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	// DB pool
	pool, err := repo.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns)
	if err != nil {
		return err
	}
	defer pool.Close()
	logger.Info("database connected")

	jobRepo := repo.NewJobRepo(pool)
	entityRepo := repo.NewEntityRepo(pool)
	evaluationRepo := repo.NewEvaluationRepo(pool)

	backoff := queue.Backoff{Base: cfg.BackoffBase, Max: cfg.BackoffMax}

	// Очередь
	var (
		q      queue.Queue
		shared *queue.Shared
	)
	switch cfg.QueueBackend {
	case config.BackendMemory:
		q = queue.NewMemory(queue.MemoryConfig{
			Backoff:      &backoff,
			PollInterval: cfg.PollInterval,
			Logger:       logger,
		})
	default:
		// RabbitMQ
		var notifier queue.Notifier
		mqConn, err := mq.NewConnection(cfg.RabbitMQURL, logger)
		if err != nil {
			logger.Warn("RabbitMQ not available, running in polling-only mode", "error", err)
		} else {
			defer mqConn.Close()

			if err := mq.SetupTopology(ctx, mqConn); err != nil {
				logger.Warn("failed to setup topology", "error", err)
			} else {
				logger.Info("rabbitmq topology ready", "topology", mq.TopologyInfo())
			}
			notifier = mq.NewPublisher(mqConn, logger)
		}

		shared = queue.NewShared(queue.SharedConfig{
			Store:        jobRepo,
			Notifier:     notifier,
			Backoff:      &backoff,
			Concurrency:  cfg.Concurrency,
			PollInterval: cfg.PollInterval,
			Logger:       logger,
		})
		q = shared

		logger.Info("shared queue configured", "mq_connected", mqConn != nil && mqConn.IsConnected())

		if mqConn != nil {
			listener := mq.NewWakeupListener(mqConn, shared, logger)
			go func() {
				if err := listener.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
					logger.Error("wakeup listener error", "error", err)
				}
			}()
		}
	}

	engine := eligibility.New(eligibility.Config{
		Selections:  repo.NewSelectionRepo(pool),
		Entities:    entityRepo,
		Evaluations: evaluationRepo,
		Cap:         cfg.SelectionCap,
		Logger:      logger,
	})

	triggers := trigger.New(trigger.Config{
		Queue:       q,
		Pairs:       engine,
		MaxAttempts: cfg.MaxAttempts,
		Logger:      logger,
	})

	dispatcher := worker.NewDispatcher(worker.Handlers{
		Pairs:         worker.NewRecordingEvaluator(entityRepo, evaluationRepo, logger),
		Profiles:      worker.NewRefreshingIngester(entityRepo, triggers, logger),
		Notifications: worker.NewLogNotifier(logger),
	}, logger)

	if err := q.Start(ctx, dispatcher.Handle); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)

	// HTTP: /healthz + /metrics
	g.Go(func() error {
		mux := telemetry.NewMux(func(ctx context.Context) error { return pool.Ping(ctx) })
		return telemetry.Serve(gctx, net.JoinHostPort("", cfg.WorkerPort), mux, logger)
	})

	// В режиме одного процесса некому ставить глобальный скан — делаем это здесь
	if cfg.QueueBackend == config.BackendMemory {
		loc, err := cfg.Location()
		if err != nil {
			return err
		}
		sched, err := scheduler.New(scheduler.Config{
			Scans:    triggers,
			CronExpr: cfg.ScanCron,
			Location: loc,
			Logger:   logger,
		})
		if err != nil {
			return err
		}
		g.Go(func() error {
			tickLoop(gctx, cfg.TickInterval, func(now time.Time) {
				if err := sched.Tick(gctx, now); err != nil {
					logger.Error("scheduler tick failed", "error", err)
				}
			})
			return nil
		})
	}

	// Ожидаем сигнал завершения
	<-gctx.Done()

	// Останавливаем очередь: ждём выполняющиеся job
	q.Stop()

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// tickLoop вызывает fn на каждом тике до отмены ctx.
func tickLoop(ctx context.Context, interval time.Duration, fn func(now time.Time)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	fn(time.Now())
	for {
		select {
		case <-ctx.Done():
			return
		case t := <-ticker.C:
			fn(t)
		}
	}
}
