package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shaiso/Matchcore/internal/domain"
)

// runHandler вызывает обработчик; panic превращается в ошибку,
// чтобы сообщение попало в LastError, а не потерялось.
func runHandler(ctx context.Context, handler Handler, job *domain.Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = panicError(r)
		}
	}()
	return handler(ctx, job)
}

func panicError(r any) error {
	switch v := r.(type) {
	case error:
		return v
	case string:
		return errors.New(v)
	default:
		return fmt.Errorf("%v", v)
	}
}

// outcome — итог выполнения job.
type outcome int

const (
	outcomeCompleted outcome = iota
	outcomeRetry
	outcomeDead
)

// settle применяет результат попытки к job и обновляет метрики.
func settle(backend string, job *domain.Job, execErr error, backoff Backoff, now time.Time) outcome {
	kind := string(job.Kind())

	if execErr == nil {
		job.MarkCompleted(now)
		jobsCompleted.WithLabelValues(backend, kind).Inc()
		return outcomeCompleted
	}

	if job.MarkFailed(execErr.Error(), backoff.RetryAt(job.Attempts, now), now) {
		jobsDead.WithLabelValues(backend, kind).Inc()
		return outcomeDead
	}

	jobsRetried.WithLabelValues(backend, kind).Inc()
	return outcomeRetry
}
