package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/Matchcore/internal/domain"
	"github.com/shaiso/Matchcore/internal/repo"
)

// Default configuration values.
const (
	defaultSharedPollInterval = 2 * time.Second
	defaultConcurrency        = 4
)

// Store — durable backlog для Shared.
//
// Реализация: repo.JobRepo (Postgres).
type Store interface {
	// Insert сохраняет новую job.
	Insert(ctx context.Context, job *domain.Job) error

	// FindLive ищет job в PENDING/PROCESSING с данным отпечатком.
	// Возвращает nil, nil, если такой нет.
	FindLive(ctx context.Context, hash string) (*domain.Job, error)

	// Claim атомарно захватывает до limit готовых job
	// (priority DESC, enqueued_at ASC), переводит их в PROCESSING
	// и увеличивает attempts. Две одновременные Claim никогда
	// не возвращают одну и ту же job.
	Claim(ctx context.Context, limit int) ([]*domain.Job, error)

	// Save сохраняет status, attempts, last_error, retry_after и времена.
	Save(ctx context.Context, job *domain.Job) error

	// Get возвращает job или repo.ErrNotFound.
	Get(ctx context.Context, id uuid.UUID) (*domain.Job, error)

	// CountPending возвращает число job в PENDING.
	CountPending(ctx context.Context) (int, error)

	// RequeueStale возвращает в PENDING (или DEAD, если попытки
	// исчерпаны) job, захваченные раньше olderThan.
	RequeueStale(ctx context.Context, olderThan time.Time) (int, error)
}

// Notifier — уведомления о событиях очереди (RabbitMQ).
type Notifier interface {
	// NotifyEnqueued будит простаивающие воркеры других процессов.
	NotifyEnqueued(ctx context.Context, job *domain.Job) error

	// NotifyDead сообщает о job, ушедшей в DEAD.
	NotifyDead(ctx context.Context, job *domain.Job) error
}

// Shared — очередь для нескольких процессов над одной таблицей.
//
// Единственная точка синхронизации между процессами — атомарный Claim
// хранилища. Внутри процесса одновременно выполняется не больше
// Concurrency job; Claim запрашивает ровно столько, сколько слотов свободно.
type Shared struct {
	store        Store
	notifier     Notifier
	backoff      Backoff
	concurrency  int
	pollInterval time.Duration
	logger       *slog.Logger
	now          func() time.Time

	mu       sync.Mutex
	running  bool
	handler  Handler
	active   int
	cancel   context.CancelFunc
	done     chan struct{}
	inflight sync.WaitGroup
	wake     chan struct{}
}

// SharedConfig — конфигурация Shared.
type SharedConfig struct {
	Store Store

	// Notifier — опционально; nil — только polling.
	Notifier Notifier

	// Backoff — задержка повторов (nil — DefaultBackoff()).
	Backoff *Backoff

	// Concurrency — job одновременно в процессе (default: 4).
	Concurrency int

	// PollInterval — интервал polling (default: 2s).
	PollInterval time.Duration

	Logger *slog.Logger
	Now    func() time.Time
}

// NewShared создаёт очередь над общим хранилищем.
func NewShared(cfg SharedConfig) *Shared {
	backoff := DefaultBackoff()
	if cfg.Backoff != nil {
		backoff = *cfg.Backoff
	}

	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}

	pollInterval := cfg.PollInterval
	if pollInterval <= 0 {
		pollInterval = defaultSharedPollInterval
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &Shared{
		store:        cfg.Store,
		notifier:     cfg.Notifier,
		backoff:      backoff,
		concurrency:  concurrency,
		pollInterval: pollInterval,
		logger:       logger.With("queue", backendShared),
		now:          now,
		wake:         make(chan struct{}, 1),
	}
}

// Enqueue сохраняет job или возвращает ID живого дубликата.
//
// Проверка дубликата и вставка — два отдельных запроса. Гонку между ними
// закрывает уникальный индекс по payload_hash среди живых job: проигравший
// получает ErrAlreadyExists и возвращает ID победителя.
// Ошибки хранилища возвращаются вызывающему.
func (q *Shared) Enqueue(ctx context.Context, payload domain.Payload, opts EnqueueOptions) (uuid.UUID, error) {
	if payload == nil {
		return uuid.Nil, ErrNilPayload
	}

	hash := PayloadHash(payload)
	kind := string(payload.Kind())

	if hash != nil {
		existing, err := q.store.FindLive(ctx, *hash)
		if err != nil {
			return uuid.Nil, fmt.Errorf("find live duplicate: %w", err)
		}
		if existing != nil {
			jobsDeduplicated.WithLabelValues(backendShared, kind).Inc()
			return existing.ID, nil
		}
	}

	job := domain.NewJob(payload, opts.Priority, opts.maxAttempts(), hash, q.now())
	if err := q.store.Insert(ctx, job); err != nil {
		if hash != nil && errors.Is(err, repo.ErrAlreadyExists) {
			// Другой процесс успел вставить такую же job между проверкой и вставкой
			if existing, findErr := q.store.FindLive(ctx, *hash); findErr == nil && existing != nil {
				jobsDeduplicated.WithLabelValues(backendShared, kind).Inc()
				return existing.ID, nil
			}
		}
		return uuid.Nil, fmt.Errorf("insert job: %w", err)
	}

	jobsEnqueued.WithLabelValues(backendShared, kind).Inc()
	q.logger.Debug("job enqueued",
		"job_id", job.ID,
		"kind", kind,
		"priority", job.Priority,
	)

	q.Wake()

	if q.notifier != nil {
		if err := q.notifier.NotifyEnqueued(ctx, job); err != nil {
			// Не фатально — job в БД, другие процессы заберут её polling'ом
			q.logger.Warn("failed to publish job.enqueued", "job_id", job.ID, "error", err)
		}
	}

	return job.ID, nil
}

// Start запускает polling. Повторный вызов — no-op.
func (q *Shared) Start(ctx context.Context, handler Handler) error {
	if handler == nil {
		return ErrNilHandler
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if q.running {
		return nil
	}

	loopCtx, cancel := context.WithCancel(ctx)
	q.running = true
	q.handler = handler
	q.cancel = cancel
	q.done = make(chan struct{})

	go q.loop(loopCtx, q.done)

	q.logger.Info("queue started",
		"poll_interval", q.pollInterval,
		"concurrency", q.concurrency,
	)
	return nil
}

// Stop останавливает polling и ждёт все выполняющиеся job.
func (q *Shared) Stop() {
	q.mu.Lock()
	done := q.done
	if done == nil {
		q.mu.Unlock()
		return
	}
	if q.running {
		q.running = false
		q.cancel()
		q.logger.Info("stopping queue...")
	}
	q.mu.Unlock()

	// Ждём завершения цикла: после этого новых claim не будет
	<-done
	q.inflight.Wait()

	q.logger.Info("queue stopped")
}

// Wake запускает claim, не дожидаясь тика.
func (q *Shared) Wake() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// GetJob возвращает job из хранилища.
func (q *Shared) GetJob(ctx context.Context, id uuid.UUID) (*domain.Job, error) {
	job, err := q.store.Get(ctx, id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrJobNotFound
		}
		return nil, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}

// PendingCount возвращает число PENDING job в хранилище.
func (q *Shared) PendingCount(ctx context.Context) (int, error) {
	n, err := q.store.CountPending(ctx)
	if err != nil {
		return 0, fmt.Errorf("count pending: %w", err)
	}
	return n, nil
}

// ReapStale возвращает в очередь job, которые висят в PROCESSING дольше
// timeout (процесс-владелец упал). timeout <= 0 — ничего не делает.
func (q *Shared) ReapStale(ctx context.Context, timeout time.Duration) (int, error) {
	if timeout <= 0 {
		return 0, nil
	}

	n, err := q.store.RequeueStale(ctx, q.now().Add(-timeout))
	if err != nil {
		return 0, fmt.Errorf("requeue stale jobs: %w", err)
	}
	if n > 0 {
		q.logger.Warn("requeued stale jobs", "count", n, "claim_timeout", timeout)
		q.Wake()
	}
	return n, nil
}

// loop — цикл polling.
func (q *Shared) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(q.pollInterval)
	defer ticker.Stop()

	// Первый claim сразу при старте
	q.claim(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-q.wake:
		case <-ticker.C:
		}
		q.claim(ctx)
	}
}

// claim захватывает job на свободные слоты и запускает их выполнение.
// Ошибка хранилища не останавливает цикл — повтор на следующем тике.
func (q *Shared) claim(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}

	q.mu.Lock()
	free := q.concurrency - q.active
	handler := q.handler
	q.mu.Unlock()

	if free <= 0 {
		return
	}

	jobs, err := q.store.Claim(ctx, free)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		claimErrors.WithLabelValues(backendShared).Inc()
		q.logger.Error("failed to claim jobs", "error", err)
		return
	}

	if len(jobs) == 0 {
		return
	}

	q.logger.Debug("claimed jobs", "count", len(jobs), "free_slots", free)

	for _, job := range jobs {
		q.mu.Lock()
		q.active++
		q.mu.Unlock()

		q.inflight.Add(1)
		go func(job *domain.Job) {
			defer q.inflight.Done()
			defer func() {
				q.mu.Lock()
				q.active--
				q.mu.Unlock()
				q.Wake()
			}()
			q.execute(ctx, handler, job)
		}(job)
	}
}

// execute выполняет захваченную job и сохраняет результат.
func (q *Shared) execute(ctx context.Context, handler Handler, job *domain.Job) {
	kind := string(job.Kind())
	logger := q.logger.With("job_id", job.ID, "kind", kind, "attempt", job.Attempts)
	logger.Debug("job started")

	// Stop не прерывает job: контекст обработчика не отменяется
	runCtx := context.WithoutCancel(ctx)

	jobsInFlight.WithLabelValues(backendShared).Inc()
	start := time.Now()

	execErr := runHandler(runCtx, handler, job)

	jobDuration.WithLabelValues(backendShared, kind).Observe(time.Since(start).Seconds())
	jobsInFlight.WithLabelValues(backendShared).Dec()

	result := settle(backendShared, job, execErr, q.backoff, q.now())

	if err := q.store.Save(runCtx, job); err != nil {
		// job останется в PROCESSING до reaper'а
		logger.Error("failed to persist job outcome", "status", job.Status, "error", err)
		return
	}

	switch result {
	case outcomeCompleted:
		logger.Info("job completed")
	case outcomeRetry:
		logger.Warn("job failed, will retry", "error", execErr, "retry_after", job.RetryAfter)
	case outcomeDead:
		logger.Error("job dead-lettered", "error", execErr, "max_attempts", job.MaxAttempts)
		if q.notifier != nil {
			if err := q.notifier.NotifyDead(runCtx, job); err != nil {
				logger.Warn("failed to publish job.dead", "error", err)
			}
		}
	}
}
