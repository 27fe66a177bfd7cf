package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/aiinpocket/HomePage/internal/domain"
	"github.com/aiinpocket/HomePage/internal/infra"
	"github.com/aiinpocket/HomePage/internal/sqlinline"
)

// OwnerRepositoryPG implements domain.OwnerRepository backed by PostgreSQL.
type OwnerRepositoryPG struct {
	sql infra.SQLExecutor
}

// NewOwnerRepository creates a new OwnerRepositoryPG.
func NewOwnerRepository(sql infra.SQLExecutor) *OwnerRepositoryPG {
	return &OwnerRepositoryPG{sql: sql}
}

// GetOwner fetches the quota override for an owner.
func (r *OwnerRepositoryPG) GetOwner(ctx context.Context, ownerID string) (*domain.Owner, error) {
	var (
		owner domain.Owner
		tier  string
	)
	err := r.sql.QueryRow(ctx, sqlinline.QSelectOwner, ownerID).Scan(&owner.ID, &tier, &owner.MaxJobs, &owner.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	owner.Tier = domain.OwnerTier(tier)
	return &owner, nil
}

// UpsertOwner stores the override, replacing any previous tier.
func (r *OwnerRepositoryPG) UpsertOwner(ctx context.Context, owner *domain.Owner) error {
	if _, err := r.sql.Exec(ctx, sqlinline.QUpsertOwner, owner.ID, string(owner.Tier), owner.MaxJobs); err != nil {
		return fmt.Errorf("upsert owner: %w", err)
	}
	return nil
}

var _ domain.OwnerRepository = (*OwnerRepositoryPG)(nil)
