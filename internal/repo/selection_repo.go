package repo

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shaiso/Matchcore/internal/domain"
)

// SelectionRepo — рёбра выбора owner → target.
type SelectionRepo struct {
	pool *pgxpool.Pool
}

// NewSelectionRepo создаёт новый SelectionRepo.
func NewSelectionRepo(pool *pgxpool.Pool) *SelectionRepo {
	return &SelectionRepo{pool: pool}
}

// ListSelections возвращает все рёбра указанных владельцев.
// owners == nil — все рёбра платформы.
func (r *SelectionRepo) ListSelections(ctx context.Context, owners []string) ([]domain.SelectionEdge, error) {
	var rows pgx.Rows
	var err error

	if owners == nil {
		rows, err = r.pool.Query(ctx, `
			SELECT owner_id, target_id, source
			FROM selections
			ORDER BY owner_id, target_id
		`)
	} else {
		rows, err = r.pool.Query(ctx, `
			SELECT owner_id, target_id, source
			FROM selections
			WHERE owner_id = ANY($1)
			ORDER BY owner_id, target_id
		`, owners)
	}
	if err != nil {
		return nil, fmt.Errorf("list selections: %w", err)
	}
	defer rows.Close()

	var edges []domain.SelectionEdge
	for rows.Next() {
		var e domain.SelectionEdge
		if err := rows.Scan(&e.OwnerID, &e.TargetID, &e.Source); err != nil {
			return nil, fmt.Errorf("scan selection: %w", err)
		}
		edges = append(edges, e)
	}
	return edges, rows.Err()
}

// ListOwnersTargeting возвращает владельцев, у которых есть ребро к entityID.
func (r *SelectionRepo) ListOwnersTargeting(ctx context.Context, entityID string) ([]string, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT DISTINCT owner_id
		FROM selections
		WHERE target_id = $1
		ORDER BY owner_id
	`, entityID)
	if err != nil {
		return nil, fmt.Errorf("list owners targeting: %w", err)
	}
	defer rows.Close()

	var owners []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan owner: %w", err)
		}
		owners = append(owners, id)
	}
	return owners, rows.Err()
}
