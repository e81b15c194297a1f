// Package trigger переводит события приложения в вызовы Queue.Enqueue.
//
// Новые выборы, изменения профиля и новые сущности превращаются в job
// оценки пар; набор пар берётся из eligibility.Engine, поэтому scoped-
// и полный скан порождают job одного вида.
package trigger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/shaiso/Matchcore/internal/domain"
	"github.com/shaiso/Matchcore/internal/eligibility"
	"github.com/shaiso/Matchcore/internal/queue"
)

// ErrSamePair — пара из одной и той же сущности.
var ErrSamePair = errors.New("pair of an entity with itself")

// PairSource — вычисление eligible-пар (eligibility.Engine).
type PairSource interface {
	Compute(ctx context.Context, scope eligibility.Scope) ([]domain.EligiblePair, error)
}

// Enqueuer — часть контракта очереди, нужная сервису.
type Enqueuer interface {
	Enqueue(ctx context.Context, payload domain.Payload, opts queue.EnqueueOptions) (uuid.UUID, error)
}

// Service — сервис триггеров.
type Service struct {
	queue       Enqueuer
	pairs       PairSource
	maxAttempts int
	logger      *slog.Logger
}

// Config — конфигурация Service.
type Config struct {
	Queue Enqueuer
	Pairs PairSource

	// MaxAttempts — попыток на job (0 — queue.DefaultMaxAttempts).
	MaxAttempts int

	Logger *slog.Logger
}

// New создаёт Service.
func New(cfg Config) *Service {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Service{
		queue:       cfg.Queue,
		pairs:       cfg.Pairs,
		maxAttempts: cfg.MaxAttempts,
		logger:      logger,
	}
}

// TriggerPair ставит оценку конкретной пары с интерактивным приоритетом.
//
// Проверка eligibility не делается: вызывающий уже знает, что пара
// должна быть оценена (например, пользователь запросил её явно).
func (s *Service) TriggerPair(ctx context.Context, a, b string) (uuid.UUID, error) {
	if a == b {
		return uuid.Nil, fmt.Errorf("%w: %s", ErrSamePair, a)
	}

	id, err := s.queue.Enqueue(ctx, domain.NewEvaluatePair(a, b), s.options(domain.PriorityInteractive))
	if err != nil {
		return uuid.Nil, fmt.Errorf("enqueue pair %s/%s: %w", a, b, err)
	}

	s.logger.Info("pair evaluation triggered", "a", a, "b", b, "job_id", id)
	return id, nil
}

// TriggerPairsForNewEntity ставит оценку пар владельца с новыми целями.
// Вызывается после создания выборов owner → targets.
func (s *Service) TriggerPairsForNewEntity(ctx context.Context, owner string, targets []string) ([]uuid.UUID, error) {
	if len(targets) == 0 {
		return nil, nil
	}

	ids, err := s.enqueueScope(ctx, eligibility.Scope{EntityID: owner, Targets: targets}, domain.PriorityNormal)
	if err != nil {
		return ids, err
	}

	s.logger.Info("new selections triggered",
		"owner_id", owner,
		"targets", len(targets),
		"jobs", len(ids),
	)
	return ids, nil
}

// TriggerAllForEntity переоценивает все пары сущности после изменения
// её данных.
func (s *Service) TriggerAllForEntity(ctx context.Context, entityID string) ([]uuid.UUID, error) {
	ids, err := s.enqueueScope(ctx, eligibility.Scope{EntityID: entityID}, domain.PriorityNormal)
	if err != nil {
		return ids, err
	}

	s.logger.Info("entity re-evaluation triggered", "entity_id", entityID, "jobs", len(ids))
	return ids, nil
}

// TriggerScheduledScan — глобальный пересчёт с фоновым приоритетом.
func (s *Service) TriggerScheduledScan(ctx context.Context) ([]uuid.UUID, error) {
	ids, err := s.enqueueScope(ctx, eligibility.Scope{}, domain.PriorityBackground)
	if err != nil {
		return ids, err
	}

	s.logger.Info("scheduled scan triggered", "jobs", len(ids))
	return ids, nil
}

// TriggerProfileIngest ставит загрузку профиля сущности.
func (s *Service) TriggerProfileIngest(ctx context.Context, entityID, reason string) (uuid.UUID, error) {
	id, err := s.queue.Enqueue(ctx, domain.IngestProfile{EntityID: entityID, Reason: reason}, s.options(domain.PriorityNormal))
	if err != nil {
		return uuid.Nil, fmt.Errorf("enqueue profile ingest %s: %w", entityID, err)
	}

	s.logger.Info("profile ingest triggered", "entity_id", entityID, "reason", reason, "job_id", id)
	return id, nil
}

// enqueueScope вычисляет пары и ставит их в очередь.
// Ошибка Enqueue прерывает цикл и возвращается вместе с уже
// поставленными ID.
func (s *Service) enqueueScope(ctx context.Context, scope eligibility.Scope, priority domain.Priority) ([]uuid.UUID, error) {
	pairs, err := s.pairs.Compute(ctx, scope)
	if err != nil {
		return nil, fmt.Errorf("compute eligible pairs: %w", err)
	}

	ids := make([]uuid.UUID, 0, len(pairs))
	for _, p := range pairs {
		id, err := s.queue.Enqueue(ctx, domain.EvaluatePairFor(p), s.options(priority))
		if err != nil {
			return ids, fmt.Errorf("enqueue pair %s/%s: %w", p.LowID, p.HighID, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (s *Service) options(priority domain.Priority) queue.EnqueueOptions {
	return queue.EnqueueOptions{Priority: priority, MaxAttempts: s.maxAttempts}
}
