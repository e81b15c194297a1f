package repo

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shaiso/Matchcore/internal/domain"
)

// EvaluationRepo — записи о выполненных оценках пар.
// На пару хранится одна, последняя запись.
type EvaluationRepo struct {
	pool *pgxpool.Pool
}

// NewEvaluationRepo создаёт новый EvaluationRepo.
func NewEvaluationRepo(pool *pgxpool.Pool) *EvaluationRepo {
	return &EvaluationRepo{pool: pool}
}

// GetEvaluations возвращает записи для указанных пар.
func (r *EvaluationRepo) GetEvaluations(ctx context.Context, pairs []domain.PairKey) (map[domain.PairKey]domain.EvaluationRecord, error) {
	result := make(map[domain.PairKey]domain.EvaluationRecord, len(pairs))
	if len(pairs) == 0 {
		return result, nil
	}

	lows := make([]string, len(pairs))
	highs := make([]string, len(pairs))
	for i, p := range pairs {
		lows[i] = p.LowID
		highs[i] = p.HighID
	}

	rows, err := r.pool.Query(ctx, `
		SELECT e.low_id, e.high_id, e.version_low, e.version_high
		FROM pair_evaluations e
		JOIN unnest($1::text[], $2::text[]) AS p(low_id, high_id)
		  ON e.low_id = p.low_id AND e.high_id = p.high_id
	`, lows, highs)
	if err != nil {
		return nil, fmt.Errorf("get evaluations: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var rec domain.EvaluationRecord
		if err := rows.Scan(&rec.LowID, &rec.HighID, &rec.VersionLow, &rec.VersionHigh); err != nil {
			return nil, fmt.Errorf("scan evaluation: %w", err)
		}
		result[domain.PairKey{LowID: rec.LowID, HighID: rec.HighID}] = rec
	}
	return result, rows.Err()
}

// Record сохраняет оценку пары при данных версиях.
func (r *EvaluationRepo) Record(ctx context.Context, rec domain.EvaluationRecord) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO pair_evaluations (low_id, high_id, version_low, version_high, evaluated_at)
		VALUES ($1, $2, $3, $4, now())
		ON CONFLICT (low_id, high_id) DO UPDATE
		SET version_low = EXCLUDED.version_low,
		    version_high = EXCLUDED.version_high,
		    evaluated_at = EXCLUDED.evaluated_at
	`, rec.LowID, rec.HighID, rec.VersionLow, rec.VersionHigh)
	if err != nil {
		return fmt.Errorf("record evaluation: %w", err)
	}
	return nil
}
