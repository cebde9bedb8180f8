package store

import (
	"context"

	"github.com/google/uuid"

	"github.com/SerLarMan/practica-final-backend/internal/domain"
)

// ResourceRepository reads the catalog-owned resource table. The engine
// never writes it.
type ResourceRepository interface {
	Get(ctx context.Context, id uuid.UUID) (domain.Resource, error)
}
