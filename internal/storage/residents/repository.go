package residents

import (
	"context"

	"biblioswap/internal/types"
)

type Repository interface {
	GetById(ctx context.Context, id string) (*types.Resident, error)
	GetAll(ctx context.Context) ([]*types.Resident, error)

	Save(ctx context.Context, residents ...*types.Resident) error
	LinkFriends(ctx context.Context, residentId string, friendIds ...string) error
}
