package repository

import (
	"context"
	"fmt"

	"github.com/ayo6706/ebanking-core/internal/models"
	"github.com/google/uuid"
)

func (q *Queries) UpsertOwner(ctx context.Context, owner *models.Owner) error {
	query := `
		INSERT INTO owners (id, full_name, created_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (id) DO UPDATE SET full_name = EXCLUDED.full_name
		RETURNING created_at`
	if err := q.db.QueryRow(ctx, query, owner.ID, owner.FullName).Scan(&owner.CreatedAt); err != nil {
		return fmt.Errorf("upsert owner: %w", mapError(err))
	}
	return nil
}

func (q *Queries) GetOwner(ctx context.Context, id uuid.UUID) (*models.Owner, error) {
	owner := &models.Owner{}
	query := `SELECT id, full_name, created_at FROM owners WHERE id = $1`
	if err := q.db.QueryRow(ctx, query, id).Scan(&owner.ID, &owner.FullName, &owner.CreatedAt); err != nil {
		return nil, fmt.Errorf("get owner %s: %w", id, mapError(err))
	}
	return owner, nil
}
