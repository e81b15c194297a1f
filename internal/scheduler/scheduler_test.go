package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
)

type fakeScans struct {
	calls int
	err   error
}

func (f *fakeScans) TriggerScheduledScan(context.Context) ([]uuid.UUID, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return []uuid.UUID{uuid.New(), uuid.New()}, nil
}

type fakeReaper struct {
	calls   int
	timeout time.Duration
	err     error
}

func (f *fakeReaper) ReapStale(_ context.Context, timeout time.Duration) (int, error) {
	f.calls++
	f.timeout = timeout
	return 0, f.err
}

func newTestScheduler(t *testing.T, scans *fakeScans, reaper *fakeReaper) *Scheduler {
	t.Helper()

	cfg := Config{
		Scans:        scans,
		CronExpr:     "0 3 * * *",
		ClaimTimeout: 10 * time.Minute,
	}
	if reaper != nil {
		cfg.Reaper = reaper
	}

	s, err := New(cfg)
	if err != nil {
		t.Fatalf("new scheduler: %v", err)
	}
	return s
}

func TestNew_InvalidCron(t *testing.T) {
	if _, err := New(Config{CronExpr: "every day"}); err == nil {
		t.Fatal("expected error for invalid cron")
	}
}

func TestNextDue_Timezone(t *testing.T) {
	schedule, err := ParseCron("0 3 * * *")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	loc := time.FixedZone("UTC+3", 3*60*60)
	from := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC) // 03:00 по UTC+3

	got := NextDue(schedule, loc, from)
	want := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestValidateCronExpr(t *testing.T) {
	tests := []struct {
		expr    string
		wantErr bool
	}{
		{"0 3 * * *", false},
		{"*/15 * * * *", false},
		{"@daily", false},
		{"0 3 * *", true},
		{"", true},
	}

	for _, tt := range tests {
		err := ValidateCronExpr(tt.expr)
		if (err != nil) != tt.wantErr {
			t.Errorf("ValidateCronExpr(%q): err=%v, wantErr=%v", tt.expr, err, tt.wantErr)
		}
	}
}

func TestTick_FirstTickOnlySchedules(t *testing.T) {
	scans := &fakeScans{}
	s := newTestScheduler(t, scans, nil)

	now := time.Date(2026, 3, 1, 2, 0, 0, 0, time.UTC)
	if err := s.Tick(context.Background(), now); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if scans.calls != 0 {
		t.Errorf("first tick should not scan, got %d calls", scans.calls)
	}
	want := time.Date(2026, 3, 1, 3, 0, 0, 0, time.UTC)
	if !s.NextDue().Equal(want) {
		t.Errorf("expected next due %v, got %v", want, s.NextDue())
	}
}

func TestTick_ScansWhenDue(t *testing.T) {
	scans := &fakeScans{}
	s := newTestScheduler(t, scans, nil)
	ctx := context.Background()

	start := time.Date(2026, 3, 1, 2, 0, 0, 0, time.UTC)
	_ = s.Tick(ctx, start)

	// До 03:00 — ничего
	_ = s.Tick(ctx, start.Add(59*time.Minute))
	if scans.calls != 0 {
		t.Fatalf("expected no scan before due, got %d", scans.calls)
	}

	// 03:00 — скан, следующий через сутки
	_ = s.Tick(ctx, start.Add(time.Hour))
	if scans.calls != 1 {
		t.Fatalf("expected 1 scan, got %d", scans.calls)
	}
	want := time.Date(2026, 3, 2, 3, 0, 0, 0, time.UTC)
	if !s.NextDue().Equal(want) {
		t.Errorf("expected next due %v, got %v", want, s.NextDue())
	}

	// Повторный тик в ту же минуту — без скана
	_ = s.Tick(ctx, start.Add(time.Hour+time.Second))
	if scans.calls != 1 {
		t.Errorf("expected still 1 scan, got %d", scans.calls)
	}
}

func TestTick_FailedScanRetriesNextTick(t *testing.T) {
	scans := &fakeScans{err: errors.New("db down")}
	reaper := &fakeReaper{}
	s := newTestScheduler(t, scans, reaper)
	ctx := context.Background()

	start := time.Date(2026, 3, 1, 2, 0, 0, 0, time.UTC)
	_ = s.Tick(ctx, start)
	due := s.NextDue()

	err := s.Tick(ctx, due)
	if err == nil {
		t.Fatal("expected scan error")
	}
	if !errors.Is(err, scans.err) {
		t.Errorf("expected wrapped scan error, got %v", err)
	}
	if !s.NextDue().Equal(due) {
		t.Errorf("next due should not move after failure")
	}
	if reaper.calls != 2 {
		t.Errorf("reaper should run every tick, got %d calls", reaper.calls)
	}

	scans.err = nil
	if err := s.Tick(ctx, due.Add(30*time.Second)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if scans.calls != 2 {
		t.Errorf("expected retry scan, got %d calls", scans.calls)
	}
}

func TestTick_Reaper(t *testing.T) {
	tests := []struct {
		name      string
		timeout   time.Duration
		wantCalls int
	}{
		{"enabled", 10 * time.Minute, 1},
		{"disabled", 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reaper := &fakeReaper{}
			s, err := New(Config{Scans: &fakeScans{}, Reaper: reaper, ClaimTimeout: tt.timeout})
			if err != nil {
				t.Fatalf("new: %v", err)
			}

			if err := s.Tick(context.Background(), time.Now()); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if reaper.calls != tt.wantCalls {
				t.Errorf("expected %d reaper calls, got %d", tt.wantCalls, reaper.calls)
			}
			if tt.wantCalls > 0 && reaper.timeout != tt.timeout {
				t.Errorf("expected timeout %v, got %v", tt.timeout, reaper.timeout)
			}
		})
	}
}

func TestTick_ReaperError(t *testing.T) {
	reaper := &fakeReaper{err: errors.New("timeout")}
	s := newTestScheduler(t, &fakeScans{}, reaper)

	if err := s.Tick(context.Background(), time.Now()); err == nil {
		t.Fatal("expected reaper error")
	}
}
