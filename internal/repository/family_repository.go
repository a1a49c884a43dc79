package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"budgetme-notifications/internal/domain"
)

type FamilyRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Family, error)
	ListActiveMembers(ctx context.Context, familyID uuid.UUID) ([]domain.FamilyMember, error)
}

type familyRepository struct {
	db *sqlx.DB
}

func NewFamilyRepository(db *sqlx.DB) FamilyRepository {
	return &familyRepository{db: db}
}

func (r *familyRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Family, error) {
	var f domain.Family
	query := `SELECT id, family_name, created_by, created_at FROM families WHERE id = $1`

	err := r.db.GetContext(ctx, &f, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &f, nil
}

func (r *familyRepository) ListActiveMembers(ctx context.Context, familyID uuid.UUID) ([]domain.FamilyMember, error) {
	query := `
		SELECT id, family_id, user_id, role, status, joined_at, created_at
		FROM family_members
		WHERE family_id = $1 AND status = 'active'
		ORDER BY created_at`

	var members []domain.FamilyMember
	err := r.db.SelectContext(ctx, &members, query, familyID)
	return members, err
}
