package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shaiso/Matchcore/internal/domain"
)

// EntityRepo — флаги и версии данных сущностей.
type EntityRepo struct {
	pool *pgxpool.Pool
}

// NewEntityRepo создаёт новый EntityRepo.
func NewEntityRepo(pool *pgxpool.Pool) *EntityRepo {
	return &EntityRepo{pool: pool}
}

// GetEntities возвращает найденные сущности по ID.
// Отсутствующих ID в результате нет.
func (r *EntityRepo) GetEntities(ctx context.Context, ids []string) (map[string]domain.Entity, error) {
	result := make(map[string]domain.Entity, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	rows, err := r.pool.Query(ctx, `
		SELECT id, accepts_unsolicited, profile_complete, data_version
		FROM entities
		WHERE id = ANY($1)
	`, ids)
	if err != nil {
		return nil, fmt.Errorf("get entities: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var e domain.Entity
		if err := rows.Scan(&e.ID, &e.AcceptsUnsolicited, &e.ProfileComplete, &e.DataVersion); err != nil {
			return nil, fmt.Errorf("scan entity: %w", err)
		}
		result[e.ID] = e
	}
	return result, rows.Err()
}

// BumpVersion увеличивает data_version и возвращает новое значение.
func (r *EntityRepo) BumpVersion(ctx context.Context, id string) (int64, error) {
	var version int64
	err := r.pool.QueryRow(ctx, `
		UPDATE entities
		SET data_version = data_version + 1, updated_at = now()
		WHERE id = $1
		RETURNING data_version
	`, id).Scan(&version)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("bump entity version: %w", err)
	}
	return version, nil
}
