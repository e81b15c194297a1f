package config

import (
	"errors"
	"testing"
	"time"
)

func TestParse_Defaults(t *testing.T) {
	c, err := Parse()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if c.QueueBackend != BackendShared {
		t.Errorf("expected backend shared, got %s", c.QueueBackend)
	}
	if c.BackoffBase != time.Second || c.BackoffMax != 30*time.Second {
		t.Errorf("unexpected backoff defaults: %v / %v", c.BackoffBase, c.BackoffMax)
	}
	if c.MaxAttempts != 3 {
		t.Errorf("expected max attempts 3, got %d", c.MaxAttempts)
	}
	if c.SelectionCap != 200 {
		t.Errorf("expected cap 200, got %d", c.SelectionCap)
	}
	if c.ScanCron != "0 3 * * *" {
		t.Errorf("unexpected scan cron %q", c.ScanCron)
	}
}

func TestParse_Overrides(t *testing.T) {
	t.Setenv("WORKER_CONCURRENCY", "8")
	t.Setenv("BACKOFF_BASE", "0s")
	t.Setenv("CLAIM_TIMEOUT", "0s")
	t.Setenv("QUEUE_BACKEND", "memory")

	c, err := Parse()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.Concurrency != 8 {
		t.Errorf("expected concurrency 8, got %d", c.Concurrency)
	}
	if c.BackoffBase != 0 {
		t.Errorf("expected disabled backoff, got %v", c.BackoffBase)
	}
	if c.ClaimTimeout != 0 {
		t.Errorf("expected disabled reaper, got %v", c.ClaimTimeout)
	}
	if c.QueueBackend != BackendMemory {
		t.Errorf("expected memory backend, got %s", c.QueueBackend)
	}
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"unknown backend", "QUEUE_BACKEND", "redis"},
		{"zero concurrency", "WORKER_CONCURRENCY", "0"},
		{"zero attempts", "MAX_ATTEMPTS", "0"},
		{"max below base", "BACKOFF_MAX", "500ms"},
		{"zero cap", "SELECTION_CAP", "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)

			_, err := Parse()
			if !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("expected ErrInvalidConfig, got %v", err)
			}
		})
	}
}

func TestParse_BadDuration(t *testing.T) {
	t.Setenv("POLL_INTERVAL", "soon")

	if _, err := Parse(); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestLocation(t *testing.T) {
	c := Config{ScanTimezone: "UTC"}
	if _, err := c.Location(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	c.ScanTimezone = "Nowhere/Atlantis"
	if _, err := c.Location(); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig, got %v", err)
	}
}
