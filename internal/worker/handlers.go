package worker

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/google/uuid"
	"github.com/shaiso/Matchcore/internal/domain"
)

// EntityReader — чтение сущностей (repo.EntityRepo).
type EntityReader interface {
	GetEntities(ctx context.Context, ids []string) (map[string]domain.Entity, error)
}

// EvaluationWriter — запись оценок пар (repo.EvaluationRepo).
type EvaluationWriter interface {
	Record(ctx context.Context, rec domain.EvaluationRecord) error
}

// VersionBumper — увеличение data_version сущности (repo.EntityRepo).
type VersionBumper interface {
	BumpVersion(ctx context.Context, id string) (int64, error)
}

// EntityTrigger — постановка переоценки пар сущности (trigger.Service).
type EntityTrigger interface {
	TriggerAllForEntity(ctx context.Context, entityID string) ([]uuid.UUID, error)
}

// RecordingEvaluator фиксирует, что пара оценена при текущих версиях
// обеих сторон. Сам скоринг выполняется внешним сервисом.
type RecordingEvaluator struct {
	entities    EntityReader
	evaluations EvaluationWriter
	logger      *slog.Logger
}

// NewRecordingEvaluator создаёт RecordingEvaluator.
func NewRecordingEvaluator(entities EntityReader, evaluations EvaluationWriter, logger *slog.Logger) *RecordingEvaluator {
	if logger == nil {
		logger = slog.Default()
	}
	return &RecordingEvaluator{entities: entities, evaluations: evaluations, logger: logger}
}

// EvaluatePair записывает оценку пары.
//
// Версии читаются в момент выполнения, а не берутся из payload: если
// данные изменились после постановки, запись соответствует новым данным.
func (e *RecordingEvaluator) EvaluatePair(ctx context.Context, p domain.EvaluatePair) error {
	entities, err := e.entities.GetEntities(ctx, []string{p.LowID, p.HighID})
	if err != nil {
		return fmt.Errorf("load entities: %w", err)
	}

	low, ok := entities[p.LowID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrEntityNotFound, p.LowID)
	}
	high, ok := entities[p.HighID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrEntityNotFound, p.HighID)
	}

	rec := domain.EvaluationRecord{
		LowID:       p.LowID,
		HighID:      p.HighID,
		VersionLow:  low.DataVersion,
		VersionHigh: high.DataVersion,
	}
	if err := e.evaluations.Record(ctx, rec); err != nil {
		return fmt.Errorf("record evaluation: %w", err)
	}

	e.logger.InfoContext(ctx, "pair evaluated",
		"low_id", p.LowID,
		"high_id", p.HighID,
		"visibility_low", p.VisibilityLow,
		"visibility_high", p.VisibilityHigh,
		"version_low", rec.VersionLow,
		"version_high", rec.VersionHigh,
	)
	return nil
}

// RefreshingIngester отмечает обновление профиля: увеличивает версию
// данных и ставит переоценку всех пар сущности. Загрузка метаданных
// из внешних источников сюда не входит.
type RefreshingIngester struct {
	versions VersionBumper
	triggers EntityTrigger
	logger   *slog.Logger
}

// NewRefreshingIngester создаёт RefreshingIngester.
func NewRefreshingIngester(versions VersionBumper, triggers EntityTrigger, logger *slog.Logger) *RefreshingIngester {
	if logger == nil {
		logger = slog.Default()
	}
	return &RefreshingIngester{versions: versions, triggers: triggers, logger: logger}
}

// IngestProfile обновляет версию и ставит переоценку.
func (i *RefreshingIngester) IngestProfile(ctx context.Context, p domain.IngestProfile) error {
	version, err := i.versions.BumpVersion(ctx, p.EntityID)
	if err != nil {
		return fmt.Errorf("bump version: %w", err)
	}

	ids, err := i.triggers.TriggerAllForEntity(ctx, p.EntityID)
	if err != nil {
		return fmt.Errorf("trigger re-evaluation: %w", err)
	}

	i.logger.InfoContext(ctx, "profile ingested",
		"entity_id", p.EntityID,
		"reason", p.Reason,
		"data_version", version,
		"jobs", len(ids),
	)
	return nil
}

// LogNotifier пишет уведомления в лог.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier создаёт LogNotifier.
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{logger: logger}
}

// SendNotification логирует уведомление. Ключи data сортируются,
// чтобы запись была стабильной.
func (n *LogNotifier) SendNotification(ctx context.Context, p domain.SendNotification) error {
	keys := make([]string, 0, len(p.Data))
	for k := range p.Data {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	attrs := make([]any, 0, 4+2*len(keys))
	attrs = append(attrs, "recipient_id", p.RecipientID, "template", p.Template)
	for _, k := range keys {
		attrs = append(attrs, "data."+k, p.Data[k])
	}

	n.logger.InfoContext(ctx, "notification sent", attrs...)
	return nil
}
