package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shaiso/Matchcore/internal/domain"
)

// jobColumns — колонки jobs в порядке scanJob.
const jobColumns = `id, kind, payload, status, attempts, max_attempts, priority,
		       payload_hash, last_error, retry_after, enqueued_at, started_at, completed_at`

// staleClaimError — LastError для job, возвращённых reaper'ом.
const staleClaimError = "claim timed out: worker did not report an outcome"

// JobRepo — backlog очереди в Postgres.
//
// Несколько процессов работают с одной таблицей; единственная точка
// синхронизации — Claim (FOR UPDATE SKIP LOCKED).
type JobRepo struct {
	pool *pgxpool.Pool
}

// NewJobRepo создаёт новый JobRepo.
func NewJobRepo(pool *pgxpool.Pool) *JobRepo {
	return &JobRepo{pool: pool}
}

// Insert сохраняет новую job.
//
// Частичный уникальный индекс по payload_hash среди живых job
// превращает проигранную гонку дедупликации в ErrAlreadyExists.
func (r *JobRepo) Insert(ctx context.Context, job *domain.Job) error {
	payloadJSON, err := domain.MarshalPayload(job.Payload)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO jobs (id, kind, payload, status, attempts, max_attempts, priority,
		                  payload_hash, last_error, retry_after, enqueued_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err = r.pool.Exec(ctx, query,
		job.ID,
		job.Kind(),
		payloadJSON,
		job.Status,
		job.Attempts,
		job.MaxAttempts,
		job.Priority,
		job.PayloadHash,
		nullString(job.LastError),
		job.RetryAfter,
		job.EnqueuedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrAlreadyExists
		}
		return fmt.Errorf("insert job: %w", err)
	}
	return nil
}

// FindLive ищет PENDING/PROCESSING job с данным отпечатком.
// Возвращает nil, nil, если такой нет.
func (r *JobRepo) FindLive(ctx context.Context, hash string) (*domain.Job, error) {
	query := `
		SELECT ` + jobColumns + `
		FROM jobs
		WHERE payload_hash = $1 AND status IN ('PENDING', 'PROCESSING')
		ORDER BY enqueued_at ASC
		LIMIT 1
	`
	job, err := scanJob(r.pool.QueryRow(ctx, query, hash))
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	return job, err
}

// Claim атомарно захватывает до limit готовых job.
//
// Один запрос: выбор по priority DESC, enqueued_at ASC с пропуском
// строк, заблокированных другими процессами, и перевод в PROCESSING.
func (r *JobRepo) Claim(ctx context.Context, limit int) ([]*domain.Job, error) {
	if limit <= 0 {
		return nil, nil
	}

	query := `
		WITH claimed AS (
			UPDATE jobs
			SET status = 'PROCESSING', attempts = attempts + 1, started_at = now()
			WHERE id IN (
				SELECT id FROM jobs
				WHERE status = 'PENDING'
				  AND (retry_after IS NULL OR retry_after <= now())
				ORDER BY priority DESC, enqueued_at ASC
				FOR UPDATE SKIP LOCKED
				LIMIT $1
			)
			RETURNING ` + jobColumns + `
		)
		SELECT * FROM claimed ORDER BY priority DESC, enqueued_at ASC
	`
	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("claim jobs: %w", err)
	}
	return collectJobs(rows)
}

// Save сохраняет результат выполнения захваченной job.
//
// Обновление проходит, только если job всё ещё PROCESSING с тем же
// числом попыток: если reaper успел вернуть её в очередь и её захватил
// другой процесс, результат устаревшей попытки отбрасывается.
func (r *JobRepo) Save(ctx context.Context, job *domain.Job) error {
	query := `
		UPDATE jobs
		SET status = $2, last_error = $3, retry_after = $4,
		    started_at = $5, completed_at = $6
		WHERE id = $1 AND status = 'PROCESSING' AND attempts = $7
	`
	result, err := r.pool.Exec(ctx, query,
		job.ID,
		job.Status,
		nullString(job.LastError),
		job.RetryAfter,
		job.StartedAt,
		job.CompletedAt,
		job.Attempts,
	)
	if err != nil {
		return fmt.Errorf("update job: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("%w: job %s is no longer claimed by this attempt", ErrInvalidState, job.ID)
	}
	return nil
}

// Get возвращает job по ID.
func (r *JobRepo) Get(ctx context.Context, id uuid.UUID) (*domain.Job, error) {
	query := `
		SELECT ` + jobColumns + `
		FROM jobs
		WHERE id = $1
	`
	return scanJob(r.pool.QueryRow(ctx, query, id))
}

// CountPending возвращает число job в PENDING.
func (r *JobRepo) CountPending(ctx context.Context) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM jobs WHERE status = 'PENDING'
	`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count pending jobs: %w", err)
	}
	return count, nil
}

// RequeueStale возвращает в PENDING job, захваченные раньше olderThan.
// Job без оставшихся попыток уходят в DEAD.
func (r *JobRepo) RequeueStale(ctx context.Context, olderThan time.Time) (int, error) {
	query := `
		UPDATE jobs
		SET status = CASE WHEN attempts < max_attempts THEN 'PENDING' ELSE 'DEAD' END,
		    completed_at = CASE WHEN attempts < max_attempts THEN NULL ELSE now() END,
		    retry_after = NULL,
		    last_error = $2
		WHERE status = 'PROCESSING' AND started_at < $1
	`
	result, err := r.pool.Exec(ctx, query, olderThan, staleClaimError)
	if err != nil {
		return 0, fmt.Errorf("requeue stale jobs: %w", err)
	}
	return int(result.RowsAffected()), nil
}

// ListByStatus возвращает job в статусе, от новых к старым.
func (r *JobRepo) ListByStatus(ctx context.Context, status domain.JobStatus, limit int) ([]*domain.Job, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT ` + jobColumns + `
		FROM jobs
		WHERE status = $1
		ORDER BY enqueued_at DESC
		LIMIT $2
	`
	rows, err := r.pool.Query(ctx, query, status, limit)
	if err != nil {
		return nil, fmt.Errorf("list jobs by status: %w", err)
	}
	return collectJobs(rows)
}

// PurgeCompleted удаляет COMPLETED job, завершённые раньше before.
// DEAD job не трогаются — они ждут оператора.
func (r *JobRepo) PurgeCompleted(ctx context.Context, before time.Time) (int, error) {
	result, err := r.pool.Exec(ctx, `
		DELETE FROM jobs WHERE status = 'COMPLETED' AND completed_at < $1
	`, before)
	if err != nil {
		return 0, fmt.Errorf("purge completed jobs: %w", err)
	}
	return int(result.RowsAffected()), nil
}

// --- Helpers ---

func scanJob(row pgx.Row) (*domain.Job, error) {
	var job domain.Job
	var kind string
	var payloadJSON []byte
	var lastError *string

	err := row.Scan(
		&job.ID,
		&kind,
		&payloadJSON,
		&job.Status,
		&job.Attempts,
		&job.MaxAttempts,
		&job.Priority,
		&job.PayloadHash,
		&lastError,
		&job.RetryAfter,
		&job.EnqueuedAt,
		&job.StartedAt,
		&job.CompletedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan job: %w", err)
	}

	job.Payload, err = domain.UnmarshalPayload(payloadJSON)
	if err != nil {
		return nil, fmt.Errorf("job %s: %w", job.ID, err)
	}
	if lastError != nil {
		job.LastError = *lastError
	}

	return &job, nil
}

func collectJobs(rows pgx.Rows) ([]*domain.Job, error) {
	defer rows.Close()

	var jobs []*domain.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}
