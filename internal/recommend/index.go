package recommend

import (
	"strings"

	"biblioswap/internal/types"
)

// GenreIndex maps a genre to the rendered listing of candidate books carrying
// it. Keys keep first-seen order so that repeated builds over the same pool
// produce identical context text.
type GenreIndex struct {
	genres   []string
	listings map[string]string
}

func renderLine(b *types.Book) string {
	sb := strings.Builder{}
	sb.WriteString("- ")
	sb.WriteString(b.Title)
	sb.WriteString(" by ")
	sb.WriteString(b.Author)
	sb.WriteString(" (ID: ")
	sb.WriteString(b.Id)
	sb.WriteString(")\n")

	return sb.String()
}

// IndexByGenre walks the pool once, appending each book's listing line under
// its own genre. An empty genre is a key like any other: default-genre
// substitution happens when the book is constructed, not here.
func IndexByGenre(pool []*types.Book) *GenreIndex {
	ix := &GenreIndex{listings: make(map[string]string)}

	for _, b := range pool {
		if _, ok := ix.listings[b.Genre]; !ok {
			ix.genres = append(ix.genres, b.Genre)
			ix.listings[b.Genre] = ""
		}

		ix.listings[b.Genre] += renderLine(b)
	}

	return ix
}

func (ix *GenreIndex) Listing(genre string) (string, bool) {
	listing, ok := ix.listings[genre]
	return listing, ok
}

// Genres returns the keys in first-seen order.
func (ix *GenreIndex) Genres() []string {
	return ix.genres
}

func (ix *GenreIndex) Len() int {
	return len(ix.genres)
}
