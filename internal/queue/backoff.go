package queue

import (
	"math/rand/v2"
	"time"
)

// Значения backoff по умолчанию.
const (
	DefaultBackoffBase = time.Second
	DefaultBackoffMax  = 30 * time.Second

	// jitterFraction — верхняя граница jitter относительно задержки.
	jitterFraction = 0.25
)

// Backoff вычисляет задержку перед повторной попыткой.
//
//	delay = min(Max, Base * 2^(attempt-1)) + jitter, jitter ∈ [0, 0.25*delay]
//
// Base == 0 выключает backoff: job возвращается в очередь сразу.
type Backoff struct {
	Base time.Duration
	Max  time.Duration

	// rand возвращает число в [0, 1). nil — math/rand/v2.
	rand func() float64
}

// DefaultBackoff возвращает backoff 1s/30s.
func DefaultBackoff() Backoff {
	return Backoff{Base: DefaultBackoffBase, Max: DefaultBackoffMax}
}

// NoBackoff возвращает выключенный backoff.
func NoBackoff() Backoff {
	return Backoff{}
}

// Enabled возвращает false, если повтор должен быть немедленным.
func (b Backoff) Enabled() bool {
	return b.Base > 0
}

// Delay возвращает задержку для попытки attempt (с 1).
func (b Backoff) Delay(attempt int) time.Duration {
	if !b.Enabled() {
		return 0
	}
	if attempt < 1 {
		attempt = 1
	}

	maxDelay := b.Max
	if maxDelay <= 0 {
		maxDelay = DefaultBackoffMax
	}

	delay := b.Base
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= maxDelay {
			break
		}
	}
	if delay > maxDelay {
		delay = maxDelay
	}

	rnd := b.rand
	if rnd == nil {
		rnd = rand.Float64
	}
	jitter := time.Duration(rnd() * jitterFraction * float64(delay)) //nolint:gosec // jitter не требует crypto rand
	return delay + jitter
}

// RetryAt возвращает момент, раньше которого job нельзя захватить.
// nil, если backoff выключен.
func (b Backoff) RetryAt(attempt int, now time.Time) *time.Time {
	if !b.Enabled() {
		return nil
	}
	t := now.Add(b.Delay(attempt))
	return &t
}
