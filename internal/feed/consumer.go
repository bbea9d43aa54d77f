package feed

import (
	"context"
	"log/slog"

	"biblioswap/internal/storage/catalog"
	"biblioswap/internal/types"
)

// Consumer receives catalog books in batches as a source produces them.
type Consumer interface {
	ConsumeBooks(books []*types.Book) error
}

type LoggerConsumer struct {
	Logger *slog.Logger
}

func (c *LoggerConsumer) ConsumeBooks(books []*types.Book) error {
	for _, b := range books {
		c.Logger.Info("Consumed catalog book " + b.Id + " (" + b.Title + " by " + b.Author + ")")
	}

	return nil
}

type StoringConsumer struct {
	Logger  *slog.Logger
	Catalog catalog.Repository
}

func (s *StoringConsumer) ConsumeBooks(books []*types.Book) error {
	return s.Catalog.Save(context.Background(), books...)
}
