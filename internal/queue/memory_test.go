package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Matchcore/internal/domain"
)

// waitFor ждёт выполнения cond не дольше timeout.
func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before timeout")
}

func newTestMemory() *Memory {
	nb := NoBackoff()
	return NewMemory(MemoryConfig{Backoff: &nb, PollInterval: 10 * time.Millisecond})
}

func jobStatus(t *testing.T, q Queue, id uuid.UUID) domain.JobStatus {
	t.Helper()
	job, err := q.GetJob(context.Background(), id)
	if err != nil {
		t.Fatalf("get job: %v", err)
	}
	return job.Status
}

func TestMemory_PriorityOrder(t *testing.T) {
	// Одинаковое время постановки: порядок внутри приоритета — порядок Enqueue
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	nb := NoBackoff()
	q := NewMemory(MemoryConfig{Backoff: &nb, Now: func() time.Time { return now }})
	ctx := context.Background()

	inputs := []struct {
		entity   string
		priority domain.Priority
	}{
		{"normal-1", domain.PriorityNormal},
		{"background-1", domain.PriorityBackground},
		{"interactive-1", domain.PriorityInteractive},
		{"normal-2", domain.PriorityNormal},
		{"background-2", domain.PriorityBackground},
		{"interactive-2", domain.PriorityInteractive},
	}
	for _, in := range inputs {
		if _, err := q.Enqueue(ctx, domain.IngestProfile{EntityID: in.entity}, EnqueueOptions{Priority: in.priority}); err != nil {
			t.Fatalf("enqueue: %v", err)
		}
	}

	var mu sync.Mutex
	var order []string
	handler := func(_ context.Context, job *domain.Job) error {
		mu.Lock()
		order = append(order, job.Payload.(domain.IngestProfile).EntityID)
		mu.Unlock()
		return nil
	}

	if err := q.Start(ctx, handler); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer q.Stop()

	waitFor(t, time.Second, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(order) == len(inputs)
	})

	want := []string{"interactive-1", "interactive-2", "normal-1", "normal-2", "background-1", "background-2"}
	mu.Lock()
	defer mu.Unlock()
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("expected order %v, got %v", want, order)
		}
	}
}

func TestMemory_FIFOByEnqueueTime(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	var mu sync.Mutex
	clock := base
	nb := NoBackoff()
	q := NewMemory(MemoryConfig{Backoff: &nb, Now: func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return clock
	}})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		mu.Lock()
		clock = base.Add(time.Duration(i) * time.Second)
		mu.Unlock()
		if _, err := q.Enqueue(ctx, domain.IngestProfile{EntityID: fmt.Sprint(i)}, EnqueueOptions{}); err != nil {
			t.Fatalf("enqueue: %v", err)
		}
	}

	var order []string
	done := make(chan struct{})
	handler := func(_ context.Context, job *domain.Job) error {
		order = append(order, job.Payload.(domain.IngestProfile).EntityID)
		if len(order) == 3 {
			close(done)
		}
		return nil
	}

	if err := q.Start(ctx, handler); err != nil {
		t.Fatalf("start: %v", err)
	}
	<-done
	q.Stop()

	if fmt.Sprint(order) != "[0 1 2]" {
		t.Errorf("expected FIFO order, got %v", order)
	}
}

func TestMemory_DeadLetter(t *testing.T) {
	q := newTestMemory()
	ctx := context.Background()

	var calls int
	var mu sync.Mutex
	handler := func(context.Context, *domain.Job) error {
		mu.Lock()
		defer mu.Unlock()
		calls++
		return fmt.Errorf("failure #%d", calls)
	}

	id, err := q.Enqueue(ctx, domain.NewEvaluatePair("a", "b"), EnqueueOptions{MaxAttempts: 3})
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	if err := q.Start(ctx, handler); err != nil {
		t.Fatalf("start: %v", err)
	}
	waitFor(t, time.Second, func() bool { return jobStatus(t, q, id) == domain.JobStatusDead })
	q.Stop()

	job, _ := q.GetJob(ctx, id)
	if calls != 3 {
		t.Errorf("expected exactly 3 invocations, got %d", calls)
	}
	if job.Attempts != 3 {
		t.Errorf("expected attempts=3, got %d", job.Attempts)
	}
	if job.LastError != "failure #3" {
		t.Errorf("expected last error 'failure #3', got %q", job.LastError)
	}
	if n, _ := q.PendingCount(ctx); n != 0 {
		t.Errorf("dead job must leave the backlog, pending=%d", n)
	}
}

func TestMemory_RetryThenSuccess(t *testing.T) {
	q := newTestMemory()
	ctx := context.Background()

	var calls int
	handler := func(context.Context, *domain.Job) error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	}

	id, _ := q.Enqueue(ctx, domain.NewEvaluatePair("a", "b"), EnqueueOptions{})
	if err := q.Start(ctx, handler); err != nil {
		t.Fatalf("start: %v", err)
	}
	waitFor(t, time.Second, func() bool { return jobStatus(t, q, id) == domain.JobStatusCompleted })
	q.Stop()

	job, _ := q.GetJob(ctx, id)
	if job.Attempts != 3 {
		t.Errorf("expected attempts=3, got %d", job.Attempts)
	}
	if job.LastError != "transient" {
		t.Errorf("expected last error kept, got %q", job.LastError)
	}
}

func TestMemory_RetryAfterDelaysClaim(t *testing.T) {
	var mu sync.Mutex
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}

	b := Backoff{Base: time.Minute, Max: time.Hour, rand: fixedRand(0)}
	q := NewMemory(MemoryConfig{Backoff: &b, PollInterval: 5 * time.Millisecond, Now: clock})
	ctx := context.Background()

	var calls int
	handler := func(context.Context, *domain.Job) error {
		mu.Lock()
		calls++
		mu.Unlock()
		return errors.New("fail")
	}

	id, _ := q.Enqueue(ctx, domain.NewEvaluatePair("a", "b"), EnqueueOptions{})
	if err := q.Start(ctx, handler); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer q.Stop()

	waitFor(t, time.Second, func() bool {
		job, _ := q.GetJob(ctx, id)
		return job.Status == domain.JobStatusPending && job.RetryAfter != nil
	})

	job, _ := q.GetJob(ctx, id)
	if want := now.Add(time.Minute); !job.RetryAfter.Equal(want) {
		t.Errorf("expected retryAfter %v, got %v", want, job.RetryAfter)
	}

	// Время не идёт — повтора нет
	time.Sleep(50 * time.Millisecond)
	mu.Lock()
	if calls != 1 {
		t.Errorf("retry must wait for retryAfter, got %d calls", calls)
	}
	now = now.Add(time.Minute)
	mu.Unlock()

	waitFor(t, time.Second, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return calls == 2
	})
}

func TestMemory_Dedup(t *testing.T) {
	q := newTestMemory()
	ctx := context.Background()

	first, _ := q.Enqueue(ctx, domain.NewEvaluatePair("a", "b"), EnqueueOptions{})
	second, _ := q.Enqueue(ctx, domain.EvaluatePair{LowID: "b", HighID: "a"}, EnqueueOptions{})
	other, _ := q.Enqueue(ctx, domain.NewEvaluatePair("a", "c"), EnqueueOptions{})

	if first != second {
		t.Errorf("duplicate pair must return the same id: %s != %s", first, second)
	}
	if first == other {
		t.Error("different pairs must get different ids")
	}
	if n, _ := q.PendingCount(ctx); n != 2 {
		t.Errorf("expected 2 pending, got %d", n)
	}

	// Уведомления не дедуплицируются
	n1, _ := q.Enqueue(ctx, domain.SendNotification{RecipientID: "r", Template: "t"}, EnqueueOptions{})
	n2, _ := q.Enqueue(ctx, domain.SendNotification{RecipientID: "r", Template: "t"}, EnqueueOptions{})
	if n1 == n2 {
		t.Error("notifications must never be deduplicated")
	}
}

func TestMemory_DedupWhileProcessing(t *testing.T) {
	q := newTestMemory()
	ctx := context.Background()

	started := make(chan struct{})
	release := make(chan struct{})
	handler := func(context.Context, *domain.Job) error {
		close(started)
		<-release
		return nil
	}

	id, _ := q.Enqueue(ctx, domain.NewEvaluatePair("a", "b"), EnqueueOptions{})
	if err := q.Start(ctx, handler); err != nil {
		t.Fatalf("start: %v", err)
	}
	<-started

	dup, _ := q.Enqueue(ctx, domain.NewEvaluatePair("b", "a"), EnqueueOptions{})
	if dup != id {
		t.Errorf("processing job must absorb duplicates: %s != %s", dup, id)
	}

	close(release)
	waitFor(t, time.Second, func() bool { return jobStatus(t, q, id) == domain.JobStatusCompleted })
	q.Stop()

	// После завершения пара ставится заново
	again, _ := q.Enqueue(ctx, domain.NewEvaluatePair("a", "b"), EnqueueOptions{})
	if again == id {
		t.Error("completed job must not absorb new enqueues")
	}
}

func TestMemory_GracefulStop(t *testing.T) {
	q := newTestMemory()
	ctx := context.Background()

	started := make(chan struct{})
	release := make(chan struct{})
	handler := func(ctx context.Context, _ *domain.Job) error {
		close(started)
		<-release
		// Контекст обработчика не отменяется при Stop
		return ctx.Err()
	}

	id, _ := q.Enqueue(ctx, domain.NewEvaluatePair("a", "b"), EnqueueOptions{})
	if err := q.Start(ctx, handler); err != nil {
		t.Fatalf("start: %v", err)
	}
	<-started

	stopped := make(chan struct{})
	go func() {
		q.Stop()
		close(stopped)
	}()

	select {
	case <-stopped:
		t.Fatal("Stop returned before the in-flight handler finished")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("Stop did not return after handler finished")
	}

	if st := jobStatus(t, q, id); st != domain.JobStatusCompleted {
		t.Errorf("expected COMPLETED, got %s", st)
	}
}

func TestMemory_StopPreventsNewClaims(t *testing.T) {
	q := newTestMemory()
	ctx := context.Background()

	var calls int
	var mu sync.Mutex
	handler := func(context.Context, *domain.Job) error {
		mu.Lock()
		calls++
		mu.Unlock()
		return nil
	}

	if err := q.Start(ctx, handler); err != nil {
		t.Fatalf("start: %v", err)
	}
	q.Stop()
	q.Stop() // повторный Stop — no-op

	if _, err := q.Enqueue(ctx, domain.NewEvaluatePair("a", "b"), EnqueueOptions{}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	time.Sleep(30 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if calls != 0 {
		t.Errorf("stopped queue must not run jobs, got %d calls", calls)
	}
	if n, _ := q.PendingCount(ctx); n != 1 {
		t.Errorf("expected job to stay pending, got %d", n)
	}
}

func TestMemory_PanicCaptured(t *testing.T) {
	tests := []struct {
		name  string
		value any
		want  string
	}{
		{"string", "kaboom", "kaboom"},
		{"error", errors.New("bad state"), "bad state"},
		{"other", 42, "42"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := newTestMemory()
			ctx := context.Background()

			id, _ := q.Enqueue(ctx, domain.NewEvaluatePair("a", "b"), EnqueueOptions{MaxAttempts: 1})
			if err := q.Start(ctx, func(context.Context, *domain.Job) error { panic(tt.value) }); err != nil {
				t.Fatalf("start: %v", err)
			}
			waitFor(t, time.Second, func() bool { return jobStatus(t, q, id) == domain.JobStatusDead })
			q.Stop()

			job, _ := q.GetJob(ctx, id)
			if job.LastError != tt.want {
				t.Errorf("expected last error %q, got %q", tt.want, job.LastError)
			}
		})
	}
}

func TestMemory_StartIdempotent(t *testing.T) {
	q := newTestMemory()
	ctx := context.Background()

	var calls int
	var mu sync.Mutex
	first := func(context.Context, *domain.Job) error {
		mu.Lock()
		calls++
		mu.Unlock()
		return nil
	}
	second := func(context.Context, *domain.Job) error {
		t.Error("second handler must be ignored")
		return nil
	}

	if err := q.Start(ctx, first); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := q.Start(ctx, second); err != nil {
		t.Fatalf("second start: %v", err)
	}
	defer q.Stop()

	id, _ := q.Enqueue(ctx, domain.NewEvaluatePair("a", "b"), EnqueueOptions{})
	waitFor(t, time.Second, func() bool { return jobStatus(t, q, id) == domain.JobStatusCompleted })
}

func TestMemory_Errors(t *testing.T) {
	q := newTestMemory()
	ctx := context.Background()

	if _, err := q.GetJob(ctx, uuid.New()); !errors.Is(err, ErrJobNotFound) {
		t.Errorf("expected ErrJobNotFound, got %v", err)
	}
	if _, err := q.Enqueue(ctx, nil, EnqueueOptions{}); !errors.Is(err, ErrNilPayload) {
		t.Errorf("expected ErrNilPayload, got %v", err)
	}
	if err := q.Start(ctx, nil); !errors.Is(err, ErrNilHandler) {
		t.Errorf("expected ErrNilHandler, got %v", err)
	}
}

func TestMemory_GetJobReturnsSnapshot(t *testing.T) {
	q := newTestMemory()
	ctx := context.Background()

	id, _ := q.Enqueue(ctx, domain.NewEvaluatePair("a", "b"), EnqueueOptions{})
	job, _ := q.GetJob(ctx, id)
	job.Status = domain.JobStatusDead
	*job.PayloadHash = "tampered"

	again, _ := q.GetJob(ctx, id)
	if again.Status != domain.JobStatusPending {
		t.Error("snapshot mutation leaked into the queue")
	}
	if *again.PayloadHash == "tampered" {
		t.Error("payload hash mutation leaked into the queue")
	}
}

func TestMemory_DefaultMaxAttempts(t *testing.T) {
	q := newTestMemory()
	ctx := context.Background()

	id, _ := q.Enqueue(ctx, domain.NewEvaluatePair("a", "b"), EnqueueOptions{})
	job, _ := q.GetJob(ctx, id)
	if job.MaxAttempts != DefaultMaxAttempts {
		t.Errorf("expected default max attempts %d, got %d", DefaultMaxAttempts, job.MaxAttempts)
	}
	if job.Priority != domain.PriorityNormal {
		t.Errorf("expected NORMAL priority, got %d", job.Priority)
	}
}
