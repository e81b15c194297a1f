package queue

import (
	"context"

	"github.com/google/uuid"
	"github.com/shaiso/Matchcore/internal/domain"
)

// DefaultMaxAttempts — лимит попыток, если EnqueueOptions его не задаёт.
const DefaultMaxAttempts = 3

// Handler выполняет job. Ошибка (или panic) означает неудачную попытку.
type Handler func(ctx context.Context, job *domain.Job) error

// Queue — общий контракт планировщика для обеих реализаций.
//
// Реализации: Memory (один процесс) и Shared (несколько процессов
// над общей таблицей). Выбор делается при сборке процесса.
type Queue interface {
	// Enqueue создаёт job или возвращает ID живого дубликата.
	Enqueue(ctx context.Context, payload domain.Payload, opts EnqueueOptions) (uuid.UUID, error)

	// Start запускает обработку. Повторный вызов — no-op.
	Start(ctx context.Context, handler Handler) error

	// Stop прекращает claim новых job и ждёт завершения текущих.
	Stop()

	// GetJob возвращает снимок job или ErrJobNotFound.
	GetJob(ctx context.Context, id uuid.UUID) (*domain.Job, error)

	// PendingCount возвращает размер backlog.
	PendingCount(ctx context.Context) (int, error)
}

// EnqueueOptions — параметры постановки job.
// Нулевые значения: приоритет NORMAL, DefaultMaxAttempts попыток.
type EnqueueOptions struct {
	Priority    domain.Priority
	MaxAttempts int
}

func (o EnqueueOptions) maxAttempts() int {
	if o.MaxAttempts <= 0 {
		return DefaultMaxAttempts
	}
	return o.MaxAttempts
}
