package worker

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shaiso/Matchcore/internal/domain"
	"github.com/shaiso/Matchcore/internal/telemetry"
)

// PairEvaluator оценивает пару сущностей.
type PairEvaluator interface {
	EvaluatePair(ctx context.Context, p domain.EvaluatePair) error
}

// ProfileIngester обновляет данные профиля сущности.
type ProfileIngester interface {
	IngestProfile(ctx context.Context, p domain.IngestProfile) error
}

// Notifier отправляет уведомление.
type Notifier interface {
	SendNotification(ctx context.Context, p domain.SendNotification) error
}

// Handlers — обработчики по видам payload. nil — kind не обслуживается,
// job с таким payload завершится ошибкой и уйдёт в DEAD после всех попыток.
type Handlers struct {
	Pairs         PairEvaluator
	Profiles      ProfileIngester
	Notifications Notifier
}

// Dispatcher — queue.Handler поверх Handlers.
type Dispatcher struct {
	handlers Handlers
	logger   *slog.Logger
}

// NewDispatcher создаёт Dispatcher.
func NewDispatcher(handlers Handlers, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{handlers: handlers, logger: logger}
}

// Handle выполняет job. Сигнатура совпадает с queue.Handler.
func (d *Dispatcher) Handle(ctx context.Context, job *domain.Job) error {
	ctx = telemetry.WithJobID(ctx, job.ID.String())

	d.logger.DebugContext(ctx, "dispatching job",
		"kind", job.Kind(),
		"attempt", job.Attempts,
	)

	switch p := job.Payload.(type) {
	case domain.EvaluatePair:
		if d.handlers.Pairs == nil {
			return fmt.Errorf("%w: %s", ErrNoHandler, p.Kind())
		}
		return d.handlers.Pairs.EvaluatePair(ctx, p)

	case domain.IngestProfile:
		if d.handlers.Profiles == nil {
			return fmt.Errorf("%w: %s", ErrNoHandler, p.Kind())
		}
		return d.handlers.Profiles.IngestProfile(telemetry.WithEntityID(ctx, p.EntityID), p)

	case domain.SendNotification:
		if d.handlers.Notifications == nil {
			return fmt.Errorf("%w: %s", ErrNoHandler, p.Kind())
		}
		return d.handlers.Notifications.SendNotification(ctx, p)

	default:
		return fmt.Errorf("%w: %T", ErrUnknownPayload, job.Payload)
	}
}
