package catalog

import (
	"context"

	"biblioswap/internal/types"
)

type Repository interface {
	GetAll(ctx context.Context) ([]*types.Book, error)
	Search(ctx context.Context, query, genre string, limit int) ([]*types.Book, error)
	GetGenres(ctx context.Context) ([]string, error)

	Save(ctx context.Context, books ...*types.Book) error
}
