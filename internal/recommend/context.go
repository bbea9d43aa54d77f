package recommend

import (
	"sort"
	"strings"

	"biblioswap/internal/types"
)

const (
	labelNeighbors = "Available on neighbor shelves:\n"
	labelCatalog   = "Available in the community catalog:\n"
)

type HistoryEntry struct {
	Title string
	Genre string
}

// HistorySignal is the ephemeral reading signal derived from the owner's
// shelf on every cycle: all currently-read books plus the most recent past
// reads. It is never persisted.
type HistorySignal struct {
	Current []HistoryEntry
	Past    []HistoryEntry
}

// HistoryFromShelf selects every book with status Currently Reading and the
// pastLimit most recently added books with status Past Read.
func HistoryFromShelf(shelf []*types.Book, pastLimit int) HistorySignal {
	var h HistorySignal

	var past []*types.Book
	for _, b := range shelf {
		switch b.Status {
		case types.StatusCurrent:
			h.Current = append(h.Current, HistoryEntry{Title: b.Title, Genre: b.Genre})
		case types.StatusPast:
			past = append(past, b)
		}
	}

	sort.SliceStable(past, func(i, j int) bool {
		return past[i].AddedAt > past[j].AddedAt
	})

	if pastLimit > 0 && len(past) > pastLimit {
		past = past[:pastLimit]
	}

	for _, b := range past {
		h.Past = append(h.Past, HistoryEntry{Title: b.Title, Genre: b.Genre})
	}

	return h
}

func (h HistorySignal) Empty() bool {
	return len(h.Current) == 0 && len(h.Past) == 0
}

// Genres returns the history's genres deduplicated, current reads first then
// past reads, keeping first-seen order.
func (h HistorySignal) Genres() []string {
	var genres []string
	seen := make(map[string]struct{})

	for _, entries := range [][]HistoryEntry{h.Current, h.Past} {
		for _, e := range entries {
			if _, ok := seen[e.Genre]; ok {
				continue
			}

			seen[e.Genre] = struct{}{}
			genres = append(genres, e.Genre)
		}
	}

	return genres
}

// Summary renders the signal compactly for the engine prompt.
func (h HistorySignal) Summary() string {
	sb := strings.Builder{}

	sb.WriteString("Currently reading: ")
	sb.WriteString(joinTitles(h.Current))
	sb.WriteString("\nPast reads: ")
	sb.WriteString(joinTitles(h.Past))

	return sb.String()
}

func joinTitles(entries []HistoryEntry) string {
	if len(entries) == 0 {
		return "none"
	}

	titles := make([]string, 0, len(entries))
	for _, e := range entries {
		titles = append(titles, e.Title)
	}

	return strings.Join(titles, ", ")
}

// BuildContext assembles the retrieval context for the engine: one block per
// history genre, each holding the neighbor listing when one exists, else the
// catalog listing, else just the header. Neighbor listings take strict
// precedence, they are never merged with catalog ones.
//
// When no history genre matched either index, up to fallbackListings generic
// blocks are emitted instead, in index insertion order (neighbors first).
// fallbackListings == 0 disables the fallback. Output is deterministic for
// identical inputs.
func BuildContext(historyGenres []string, neighbors, catalog *GenreIndex, fallbackListings int) string {
	sb := strings.Builder{}
	matched := false

	for _, genre := range historyGenres {
		sb.WriteString("Genre: ")
		sb.WriteString(genre)
		sb.WriteString("\n")

		if listing, ok := neighbors.Listing(genre); ok {
			sb.WriteString(labelNeighbors)
			sb.WriteString(listing)
			matched = true
		} else if listing, ok := catalog.Listing(genre); ok {
			sb.WriteString(labelCatalog)
			sb.WriteString(listing)
			matched = true
		}

		sb.WriteString("\n")
	}

	if len(historyGenres) == 0 {
		return ""
	}

	if !matched && fallbackListings > 0 {
		return genericSample(neighbors, catalog, fallbackListings)
	}

	return sb.String()
}

func genericSample(neighbors, catalog *GenreIndex, limit int) string {
	sb := strings.Builder{}
	taken := 0

	emit := func(genre, label, listing string) {
		sb.WriteString("Genre: ")
		sb.WriteString(genre)
		sb.WriteString("\n")
		sb.WriteString(label)
		sb.WriteString(listing)
		sb.WriteString("\n")
		taken++
	}

	for _, genre := range neighbors.Genres() {
		if taken >= limit {
			return sb.String()
		}

		listing, _ := neighbors.Listing(genre)
		emit(genre, labelNeighbors, listing)
	}

	for _, genre := range catalog.Genres() {
		if taken >= limit {
			break
		}

		if _, ok := neighbors.Listing(genre); ok {
			continue
		}

		listing, _ := catalog.Listing(genre)
		emit(genre, labelCatalog, listing)
	}

	return sb.String()
}
