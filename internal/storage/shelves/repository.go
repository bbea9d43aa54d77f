package shelves

import (
	"context"

	"biblioswap/internal/types"
)

type Repository interface {
	// GetByOwner returns the owner's shelf, most recently added first.
	GetByOwner(ctx context.Context, ownerId string) ([]*types.Book, error)
	// GetByOwners shall return map with NON-NULLS!
	GetByOwners(ctx context.Context, ownerIds ...string) (map[string][]*types.Book, error)
	GetById(ctx context.Context, ownerId, id string) (*types.Book, error)

	Save(ctx context.Context, ownerId string, books ...*types.Book) error
	SetStatus(ctx context.Context, ownerId, id string, status types.ReadingStatus) (bool, error)
	Delete(ctx context.Context, ownerId, id string) (bool, error)
}
