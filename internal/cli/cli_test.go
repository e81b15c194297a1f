package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/shaiso/Matchcore/internal/domain"
)

type fakeTriggers struct {
	calls []string
	ids   []uuid.UUID
	err   error
}

func (f *fakeTriggers) record(call string) ([]uuid.UUID, error) {
	f.calls = append(f.calls, call)
	return f.ids, f.err
}

func (f *fakeTriggers) TriggerPair(_ context.Context, a, b string) (uuid.UUID, error) {
	ids, err := f.record("pair " + a + " " + b)
	if err != nil {
		return uuid.Nil, err
	}
	return ids[0], nil
}

func (f *fakeTriggers) TriggerPairsForNewEntity(_ context.Context, owner string, targets []string) ([]uuid.UUID, error) {
	return f.record("new " + owner + " " + strings.Join(targets, ","))
}

func (f *fakeTriggers) TriggerAllForEntity(_ context.Context, id string) ([]uuid.UUID, error) {
	return f.record("entity " + id)
}

func (f *fakeTriggers) TriggerScheduledScan(context.Context) ([]uuid.UUID, error) {
	return f.record("scan")
}

func (f *fakeTriggers) TriggerProfileIngest(_ context.Context, id, reason string) (uuid.UUID, error) {
	ids, err := f.record("ingest " + id + " " + reason)
	if err != nil {
		return uuid.Nil, err
	}
	return ids[0], nil
}

type fakeJobs struct {
	jobs        map[uuid.UUID]*domain.Job
	listStatus  domain.JobStatus
	listLimit   int
	pending     int
	purgeBefore time.Time
}

func (f *fakeJobs) Get(_ context.Context, id uuid.UUID) (*domain.Job, error) {
	job, ok := f.jobs[id]
	if !ok {
		return nil, errors.New("not found")
	}
	return job, nil
}

func (f *fakeJobs) ListByStatus(_ context.Context, status domain.JobStatus, limit int) ([]*domain.Job, error) {
	f.listStatus = status
	f.listLimit = limit

	var out []*domain.Job
	for _, job := range f.jobs {
		if job.Status == status {
			out = append(out, job)
		}
	}
	return out, nil
}

func (f *fakeJobs) CountPending(context.Context) (int, error) {
	return f.pending, nil
}

func (f *fakeJobs) PurgeCompleted(_ context.Context, before time.Time) (int, error) {
	f.purgeBefore = before
	return 7, nil
}

type harness struct {
	triggers *fakeTriggers
	jobs     *fakeJobs
	migrated []string
	closed   int
	now      time.Time
	stdout   bytes.Buffer
	stderr   bytes.Buffer
}

func newHarness() *harness {
	return &harness{
		triggers: &fakeTriggers{ids: []uuid.UUID{uuid.New(), uuid.New()}},
		jobs:     &fakeJobs{jobs: make(map[uuid.UUID]*domain.Job)},
		now:      time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC),
	}
}

func (h *harness) run(t *testing.T, args ...string) error {
	t.Helper()

	var jsonOutput bool
	root := &cobra.Command{Use: "matchcore", SilenceUsage: true, SilenceErrors: true}
	root.PersistentFlags().BoolVar(&jsonOutput, "json", false, "")

	clientFn := func() (*Client, error) {
		return &Client{
			Triggers: h.triggers,
			Jobs:     h.jobs,
			Migrate: func(_ context.Context, command string) error {
				h.migrated = append(h.migrated, command)
				return nil
			},
			Now:   func() time.Time { return h.now },
			Close: func() { h.closed++ },
		}, nil
	}
	outputFn := func() *Output { return NewOutputTo(jsonOutput, &h.stdout, &h.stderr) }

	root.AddCommand(
		NewTriggerCmd(clientFn, outputFn),
		NewJobCmd(clientFn, outputFn),
		NewMigrateCmd(clientFn, outputFn),
	)
	root.SetArgs(args)
	return root.ExecuteContext(context.Background())
}

func TestTriggerCommands(t *testing.T) {
	tests := []struct {
		args []string
		want string
	}{
		{[]string{"trigger", "pair", "b", "a"}, "pair b a"},
		{[]string{"trigger", "new", "owner", "t1", "t2"}, "new owner t1,t2"},
		{[]string{"trigger", "entity", "e1"}, "entity e1"},
		{[]string{"trigger", "scan"}, "scan"},
		{[]string{"trigger", "ingest", "e1"}, "ingest e1 manual"},
		{[]string{"trigger", "ingest", "e1", "--reason", "orcid"}, "ingest e1 orcid"},
	}

	for _, tt := range tests {
		t.Run(strings.Join(tt.args, " "), func(t *testing.T) {
			h := newHarness()
			if err := h.run(t, tt.args...); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if len(h.triggers.calls) != 1 || h.triggers.calls[0] != tt.want {
				t.Errorf("expected call %q, got %v", tt.want, h.triggers.calls)
			}
			if h.closed != 1 {
				t.Errorf("client should be closed once, got %d", h.closed)
			}
			if !strings.Contains(h.stdout.String(), h.triggers.ids[0].String()) {
				t.Errorf("stdout should contain job id, got %q", h.stdout.String())
			}
		})
	}
}

func TestTriggerPair_Args(t *testing.T) {
	h := newHarness()
	if err := h.run(t, "trigger", "pair", "only-one"); err == nil {
		t.Fatal("expected args error")
	}
	if len(h.triggers.calls) != 0 {
		t.Errorf("trigger should not be called")
	}
}

func TestTrigger_ErrorPropagates(t *testing.T) {
	h := newHarness()
	h.triggers.err = errors.New("db down")

	err := h.run(t, "trigger", "scan")
	if !errors.Is(err, h.triggers.err) {
		t.Errorf("expected db error, got %v", err)
	}
}

func TestJobShow_JSON(t *testing.T) {
	h := newHarness()
	job := domain.NewJob(domain.NewEvaluatePair("a", "b"), domain.PriorityNormal, 3, nil, h.now)
	h.jobs.jobs[job.ID] = job

	if err := h.run(t, "--json", "job", "show", job.ID.String()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var got map[string]any
	if err := json.Unmarshal(h.stdout.Bytes(), &got); err != nil {
		t.Fatalf("invalid json %q: %v", h.stdout.String(), err)
	}
	if got["id"] != job.ID.String() {
		t.Errorf("expected id %s, got %v", job.ID, got["id"])
	}
	if got["kind"] != string(domain.KindEvaluatePair) {
		t.Errorf("expected kind evaluate_pair, got %v", got["kind"])
	}
	if got["status"] != string(domain.JobStatusPending) {
		t.Errorf("expected status PENDING, got %v", got["status"])
	}
	if _, ok := got["payload"].(map[string]any); !ok {
		t.Errorf("expected payload object, got %T", got["payload"])
	}
}

func TestJobShow_InvalidID(t *testing.T) {
	h := newHarness()
	if err := h.run(t, "job", "show", "not-a-uuid"); err == nil {
		t.Fatal("expected error")
	}
	if h.closed != 0 {
		t.Errorf("client should not be created for invalid id")
	}
}

func TestJobList(t *testing.T) {
	h := newHarness()
	dead := domain.NewJob(domain.IngestProfile{EntityID: "e1"}, domain.PriorityNormal, 1, nil, h.now)
	dead.MarkProcessing(h.now)
	dead.MarkFailed("upstream timeout", nil, h.now)
	h.jobs.jobs[dead.ID] = dead

	if err := h.run(t, "job", "list", "--status", "dead", "--limit", "10"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if h.jobs.listStatus != domain.JobStatusDead || h.jobs.listLimit != 10 {
		t.Errorf("unexpected filter: %s/%d", h.jobs.listStatus, h.jobs.listLimit)
	}
	out := h.stdout.String()
	for _, want := range []string{"ID", dead.ID.String(), "DEAD", "1/1", "upstream timeout"} {
		if !strings.Contains(out, want) {
			t.Errorf("output should contain %q:\n%s", want, out)
		}
	}
}

func TestJobList_InvalidStatus(t *testing.T) {
	h := newHarness()
	if err := h.run(t, "job", "list", "--status", "failed"); err == nil {
		t.Fatal("expected error for unknown status")
	}
}

func TestJobPending(t *testing.T) {
	h := newHarness()
	h.jobs.pending = 42

	if err := h.run(t, "--json", "job", "pending"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var got map[string]int
	if err := json.Unmarshal(h.stdout.Bytes(), &got); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if got["pending"] != 42 {
		t.Errorf("expected 42, got %d", got["pending"])
	}
}

func TestJobPurge(t *testing.T) {
	h := newHarness()

	if err := h.run(t, "job", "purge", "--older-than", "48h"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := h.now.Add(-48 * time.Hour)
	if !h.jobs.purgeBefore.Equal(want) {
		t.Errorf("expected cutoff %v, got %v", want, h.jobs.purgeBefore)
	}
	if !strings.Contains(h.stderr.String(), "Purged 7") {
		t.Errorf("unexpected message %q", h.stderr.String())
	}
}

func TestMigrate(t *testing.T) {
	h := newHarness()

	for _, command := range []string{"up", "status", "down"} {
		if err := h.run(t, "migrate", command); err != nil {
			t.Fatalf("migrate %s: %v", command, err)
		}
	}

	want := []string{"up", "status", "down"}
	if strings.Join(h.migrated, ",") != strings.Join(want, ",") {
		t.Errorf("expected %v, got %v", want, h.migrated)
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		in   string
		n    int
		want string
	}{
		{"short", 10, "short"},
		{"exactly-10", 10, "exactly-10"},
		{"this is too long", 10, "this is..."},
		{"ошибка сети сервера", 10, "ошибка ..."},
	}

	for _, tt := range tests {
		if got := truncate(tt.in, tt.n); got != tt.want {
			t.Errorf("truncate(%q, %d) = %q, want %q", tt.in, tt.n, got, tt.want)
		}
	}
}
