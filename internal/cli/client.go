package cli

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Matchcore/internal/domain"
)

// Triggers — операции trigger.Service.
type Triggers interface {
	TriggerPair(ctx context.Context, a, b string) (uuid.UUID, error)
	TriggerPairsForNewEntity(ctx context.Context, owner string, targets []string) ([]uuid.UUID, error)
	TriggerAllForEntity(ctx context.Context, entityID string) ([]uuid.UUID, error)
	TriggerScheduledScan(ctx context.Context) ([]uuid.UUID, error)
	TriggerProfileIngest(ctx context.Context, entityID, reason string) (uuid.UUID, error)
}

// Jobs — чтение и обслуживание таблицы jobs (repo.JobRepo).
type Jobs interface {
	Get(ctx context.Context, id uuid.UUID) (*domain.Job, error)
	ListByStatus(ctx context.Context, status domain.JobStatus, limit int) ([]*domain.Job, error)
	CountPending(ctx context.Context) (int, error)
	PurgeCompleted(ctx context.Context, before time.Time) (int, error)
}

// Client — зависимости команд.
type Client struct {
	Triggers Triggers
	Jobs     Jobs

	// Migrate применяет команду goose (up, down, status).
	Migrate func(ctx context.Context, command string) error

	// Now — источник времени для purge (nil — time.Now).
	Now func() time.Time

	// Close освобождает ресурсы (пул БД, соединение AMQP).
	Close func()
}

func (c *Client) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}

func (c *Client) close() {
	if c.Close != nil {
		c.Close()
	}
}
