package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
)

// DefaultScanCron — ежедневный глобальный пересчёт в 03:00.
const DefaultScanCron = "0 3 * * *"

// ScanTrigger ставит глобальный пересчёт (trigger.Service).
type ScanTrigger interface {
	TriggerScheduledScan(ctx context.Context) ([]uuid.UUID, error)
}

// Reaper возвращает зависшие job (queue.Shared).
type Reaper interface {
	ReapStale(ctx context.Context, timeout time.Duration) (int, error)
}

// Scheduler — планировщик глобального скана и reaper'а.
type Scheduler struct {
	scans        ScanTrigger
	reaper       Reaper
	schedule     cron.Schedule
	location     *time.Location
	claimTimeout time.Duration
	logger       *slog.Logger

	mu      sync.Mutex
	nextDue time.Time
}

// Config — конфигурация Scheduler.
type Config struct {
	Scans ScanTrigger

	// Reaper — опционально; nil — reaper не запускается.
	Reaper Reaper

	// CronExpr — расписание скана (default: DefaultScanCron).
	CronExpr string

	// Location — часовой пояс CronExpr (default: UTC).
	Location *time.Location

	// ClaimTimeout — сколько job может быть в PROCESSING до reaper'а.
	// 0 — reaper выключен.
	ClaimTimeout time.Duration

	Logger *slog.Logger
}

// New создаёт Scheduler. Ошибка — только при некорректном CronExpr.
func New(cfg Config) (*Scheduler, error) {
	expr := cfg.CronExpr
	if expr == "" {
		expr = DefaultScanCron
	}

	schedule, err := ParseCron(expr)
	if err != nil {
		return nil, err
	}

	loc := cfg.Location
	if loc == nil {
		loc = time.UTC
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Scheduler{
		scans:        cfg.Scans,
		reaper:       cfg.Reaper,
		schedule:     schedule,
		location:     loc,
		claimTimeout: cfg.ClaimTimeout,
		logger:       logger,
	}, nil
}

// NextDue возвращает время следующего скана (нулевое до первого тика).
func (s *Scheduler) NextDue() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nextDue
}

// Tick выполняет один тик планировщика.
//
// Первый тик только вычисляет время следующего скана: новый лидер
// не запускает скан сразу после получения блокировки. Если скан
// не удался, время не сдвигается и следующий тик повторит попытку.
// Ошибка скана не мешает reaper'у.
func (s *Scheduler) Tick(ctx context.Context, now time.Time) error {
	var errs []error

	if err := s.scanIfDue(ctx, now); err != nil {
		errs = append(errs, err)
	}

	if s.reaper != nil && s.claimTimeout > 0 {
		if _, err := s.reaper.ReapStale(ctx, s.claimTimeout); err != nil {
			errs = append(errs, fmt.Errorf("reap stale jobs: %w", err))
		}
	}

	return errors.Join(errs...)
}

func (s *Scheduler) scanIfDue(ctx context.Context, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.nextDue.IsZero() {
		s.nextDue = NextDue(s.schedule, s.location, now)
		s.logger.Info("next scan scheduled", "next_due_at", s.nextDue)
		return nil
	}

	if now.Before(s.nextDue) {
		return nil
	}

	ids, err := s.scans.TriggerScheduledScan(ctx)
	if err != nil {
		return fmt.Errorf("scheduled scan: %w", err)
	}

	s.nextDue = NextDue(s.schedule, s.location, now)
	s.logger.Info("scheduled scan completed",
		"jobs", len(ids),
		"next_due_at", s.nextDue,
	)
	return nil
}
