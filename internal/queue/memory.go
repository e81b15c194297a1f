package queue

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/Matchcore/internal/domain"
)

const defaultMemoryPollInterval = time.Second

// Memory — очередь для одного процесса.
//
// Backlog хранится в памяти, job выполняются строго по одной в выделенной
// горутине. Enqueue и завершение job будят горутину сразу, ticker
// подхватывает job, у которых истёк retryAfter.
type Memory struct {
	backoff      Backoff
	pollInterval time.Duration
	logger       *slog.Logger
	now          func() time.Time

	mu      sync.Mutex
	jobs    map[uuid.UUID]*domain.Job
	live    map[string]uuid.UUID // payload hash → ID живой job
	backlog []*memoryEntry
	seq     uint64

	running bool
	handler Handler
	wake    chan struct{}
	cancel  context.CancelFunc
	done    chan struct{}
}

type memoryEntry struct {
	job *domain.Job
	seq uint64
}

// MemoryConfig — конфигурация Memory.
type MemoryConfig struct {
	// Backoff — задержка повторов (nil — DefaultBackoff()).
	Backoff *Backoff

	// PollInterval — интервал проверки отложенных job (default: 1s).
	PollInterval time.Duration

	Logger *slog.Logger

	// Now — источник времени, для тестов.
	Now func() time.Time
}

// NewMemory создаёт очередь в памяти.
func NewMemory(cfg MemoryConfig) *Memory {
	backoff := DefaultBackoff()
	if cfg.Backoff != nil {
		backoff = *cfg.Backoff
	}

	pollInterval := cfg.PollInterval
	if pollInterval <= 0 {
		pollInterval = defaultMemoryPollInterval
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &Memory{
		backoff:      backoff,
		pollInterval: pollInterval,
		logger:       logger.With("queue", backendMemory),
		now:          now,
		jobs:         make(map[uuid.UUID]*domain.Job),
		live:         make(map[string]uuid.UUID),
		wake:         make(chan struct{}, 1),
	}
}

// Enqueue ставит job в backlog или возвращает ID живого дубликата.
func (q *Memory) Enqueue(_ context.Context, payload domain.Payload, opts EnqueueOptions) (uuid.UUID, error) {
	if payload == nil {
		return uuid.Nil, ErrNilPayload
	}

	hash := PayloadHash(payload)
	kind := string(payload.Kind())

	q.mu.Lock()
	if hash != nil {
		if id, ok := q.live[*hash]; ok {
			q.mu.Unlock()
			jobsDeduplicated.WithLabelValues(backendMemory, kind).Inc()
			return id, nil
		}
	}

	job := domain.NewJob(payload, opts.Priority, opts.maxAttempts(), hash, q.now())
	q.jobs[job.ID] = job
	if hash != nil {
		q.live[*hash] = job.ID
	}
	q.pushLocked(job)
	running := q.running
	q.mu.Unlock()

	jobsEnqueued.WithLabelValues(backendMemory, kind).Inc()
	q.logger.Debug("job enqueued",
		"job_id", job.ID,
		"kind", kind,
		"priority", job.Priority,
	)

	if running {
		q.signal()
	}
	return job.ID, nil
}

// Start запускает горутину обработки. Повторный вызов — no-op.
func (q *Memory) Start(ctx context.Context, handler Handler) error {
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

	q.logger.Info("queue started", "poll_interval", q.pollInterval)
	return nil
}

// Stop прекращает выдачу job и ждёт завершения текущей.
// Выполняющаяся job не прерывается.
func (q *Memory) Stop() {
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

	<-done
	q.logger.Info("queue stopped")
}

// GetJob возвращает снимок job.
func (q *Memory) GetJob(_ context.Context, id uuid.UUID) (*domain.Job, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	job, ok := q.jobs[id]
	if !ok {
		return nil, ErrJobNotFound
	}
	return job.Clone(), nil
}

// PendingCount возвращает число job в backlog, включая отложенные.
func (q *Memory) PendingCount(_ context.Context) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.backlog), nil
}

func (q *Memory) signal() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// loop — горутина обработки.
func (q *Memory) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(q.pollInterval)
	defer ticker.Stop()

	q.drain(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-q.wake:
		case <-ticker.C:
		}
		q.drain(ctx)
	}
}

// drain выполняет готовые job одну за другой, пока они есть.
func (q *Memory) drain(ctx context.Context) {
	for ctx.Err() == nil {
		job, handler := q.next()
		if job == nil {
			return
		}
		q.execute(ctx, job, handler)
	}
}

// next забирает из backlog готовую job с наибольшим приоритетом.
// При равном приоритете — более раннюю по EnqueuedAt.
func (q *Memory) next() (*domain.Job, Handler) {
	q.mu.Lock()
	defer q.mu.Unlock()

	now := q.now()
	best := -1
	for i, e := range q.backlog {
		if !e.job.IsReady(now) {
			continue
		}
		if best < 0 || before(e, q.backlog[best]) {
			best = i
		}
	}
	if best < 0 {
		return nil, nil
	}

	job := q.backlog[best].job
	q.backlog = append(q.backlog[:best], q.backlog[best+1:]...)
	job.MarkProcessing(now)
	return job, q.handler
}

func before(a, b *memoryEntry) bool {
	if a.job.Priority != b.job.Priority {
		return a.job.Priority > b.job.Priority
	}
	if !a.job.EnqueuedAt.Equal(b.job.EnqueuedAt) {
		return a.job.EnqueuedAt.Before(b.job.EnqueuedAt)
	}
	return a.seq < b.seq
}

// execute выполняет job и применяет результат.
func (q *Memory) execute(ctx context.Context, job *domain.Job, handler Handler) {
	kind := string(job.Kind())
	logger := q.logger.With("job_id", job.ID, "kind", kind, "attempt", job.Attempts)
	logger.Debug("job started")

	jobsInFlight.WithLabelValues(backendMemory).Inc()
	start := time.Now()

	// Stop не отменяет текущую job — только прекращает выдачу новых.
	execErr := runHandler(context.WithoutCancel(ctx), handler, job.Clone())

	jobDuration.WithLabelValues(backendMemory, kind).Observe(time.Since(start).Seconds())
	jobsInFlight.WithLabelValues(backendMemory).Dec()

	q.mu.Lock()
	result := settle(backendMemory, job, execErr, q.backoff, q.now())
	switch result {
	case outcomeRetry:
		q.pushLocked(job)
	default:
		q.releaseLocked(job)
	}
	q.mu.Unlock()

	switch result {
	case outcomeCompleted:
		logger.Info("job completed")
	case outcomeRetry:
		logger.Warn("job failed, will retry", "error", execErr, "retry_after", job.RetryAfter)
	case outcomeDead:
		logger.Error("job dead-lettered", "error", execErr, "max_attempts", job.MaxAttempts)
	}
}

func (q *Memory) pushLocked(job *domain.Job) {
	q.seq++
	q.backlog = append(q.backlog, &memoryEntry{job: job, seq: q.seq})
}

// releaseLocked снимает отпечаток job, вышедшей из живых статусов.
func (q *Memory) releaseLocked(job *domain.Job) {
	if job.PayloadHash == nil {
		return
	}
	if id, ok := q.live[*job.PayloadHash]; ok && id == job.ID {
		delete(q.live, *job.PayloadHash)
	}
}
