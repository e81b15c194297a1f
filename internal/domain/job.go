package domain

import (
	"time"

	"github.com/google/uuid"
)

// Job — единица асинхронной работы.
//
// Job создаётся через Queue.Enqueue и изменяется только циклом
// claim → execute → complete/retry. Из очереди job не удаляется,
// чтобы статус можно было запросить после завершения.
type Job struct {
	// ID — уникальный идентификатор, назначается при создании.
	ID uuid.UUID `json:"id"`

	// Payload — данные job; тип payload определяет обработчик,
	// правила дедупликации и приоритета.
	Payload Payload `json:"-"`

	// Status — текущий статус job.
	Status JobStatus `json:"status"`

	// Attempts — количество сделанных попыток.
	// Увеличивается при claim, до вызова обработчика.
	Attempts int `json:"attempts"`

	// MaxAttempts — после стольких неудачных попыток job уходит в DEAD.
	MaxAttempts int `json:"max_attempts"`

	// Priority — приоритет; при равенстве раньше идёт более старая job.
	Priority Priority `json:"priority"`

	// PayloadHash — отпечаток для дедупликации.
	// nil означает, что job этого типа никогда не дедуплицируется.
	PayloadHash *string `json:"payload_hash,omitempty"`

	// LastError — сообщение последней неудачной попытки.
	LastError string `json:"last_error,omitempty"`

	// RetryAfter — до этого момента job нельзя захватить.
	RetryAfter *time.Time `json:"retry_after,omitempty"`

	// EnqueuedAt — время создания, FIFO внутри одного приоритета.
	EnqueuedAt time.Time `json:"enqueued_at"`

	// StartedAt — время последнего claim.
	StartedAt *time.Time `json:"started_at,omitempty"`

	// CompletedAt — время перехода в COMPLETED или DEAD.
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// NewJob создаёт job в статусе PENDING.
func NewJob(payload Payload, priority Priority, maxAttempts int, hash *string, now time.Time) *Job {
	return &Job{
		ID:          uuid.New(),
		Payload:     payload,
		Status:      JobStatusPending,
		MaxAttempts: maxAttempts,
		Priority:    priority,
		PayloadHash: hash,
		EnqueuedAt:  now,
	}
}

// Kind возвращает тип payload.
func (j *Job) Kind() JobKind {
	if j.Payload == nil {
		return ""
	}
	return j.Payload.Kind()
}

// IsReady проверяет, можно ли захватить job в момент now.
func (j *Job) IsReady(now time.Time) bool {
	if j.Status != JobStatusPending {
		return false
	}
	return j.RetryAfter == nil || !j.RetryAfter.After(now)
}

// MarkProcessing переводит job в PROCESSING и засчитывает попытку.
func (j *Job) MarkProcessing(now time.Time) {
	j.Status = JobStatusProcessing
	j.StartedAt = &now
	j.Attempts++
}

// MarkCompleted переводит job в COMPLETED.
func (j *Job) MarkCompleted(now time.Time) {
	j.Status = JobStatusCompleted
	j.CompletedAt = &now
	j.RetryAfter = nil
}

// MarkFailed фиксирует неудачную попытку.
//
// Если попытки остались, job возвращается в PENDING с retryAfter
// (nil — backoff выключен, job доступна сразу). Иначе job уходит в DEAD.
// Возвращает true, если job стала DEAD.
func (j *Job) MarkFailed(errMsg string, retryAfter *time.Time, now time.Time) bool {
	j.LastError = errMsg
	if j.CanRetry() {
		j.Status = JobStatusPending
		j.RetryAfter = retryAfter
		return false
	}
	j.Status = JobStatusDead
	j.RetryAfter = nil
	j.CompletedAt = &now
	return true
}

// CanRetry проверяет, можно ли сделать ещё одну попытку.
func (j *Job) CanRetry() bool {
	return j.Attempts < j.MaxAttempts
}

// Clone возвращает копию job для выдачи наружу.
// Payload неизменяемый и разделяется.
func (j *Job) Clone() *Job {
	c := *j
	if j.PayloadHash != nil {
		h := *j.PayloadHash
		c.PayloadHash = &h
	}
	c.RetryAfter = copyTime(j.RetryAfter)
	c.StartedAt = copyTime(j.StartedAt)
	c.CompletedAt = copyTime(j.CompletedAt)
	return &c
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
