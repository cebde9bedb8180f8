package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/SerLarMan/practica-final-backend/internal/domain"
	"github.com/SerLarMan/practica-final-backend/internal/store"
)

type ResourceRepo struct {
	db *bun.DB
}

func NewResourceRepo(db *bun.DB) *ResourceRepo {
	return &ResourceRepo{db: db}
}

func (r *ResourceRepo) Get(ctx context.Context, id uuid.UUID) (domain.Resource, error) {
	var res domain.Resource
	err := r.db.NewSelect().
		Model(&res).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Resource{}, store.ErrNotFound
	}
	if err != nil {
		return domain.Resource{}, err
	}
	return res, nil
}
