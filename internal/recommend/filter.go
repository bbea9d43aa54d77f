package recommend

import (
	"strings"

	"biblioswap/internal/types"
)

func normalizeTitle(title string) string {
	return strings.ToLower(strings.TrimSpace(title))
}

func normalizeTitles(titles []string) map[string]struct{} {
	set := make(map[string]struct{}, len(titles))
	for _, title := range titles {
		set[normalizeTitle(title)] = struct{}{}
	}

	return set
}

// FilterOwned drops from pool every book whose title is already present in
// ownedTitles. Titles are compared trimmed and lower-cased, exact match only:
// a single-character difference counts as a different book. Input order is
// preserved; pool is never mutated.
func FilterOwned(pool []*types.Book, ownedTitles []string) []*types.Book {
	owned := normalizeTitles(ownedTitles)

	kept := make([]*types.Book, 0, len(pool))
	for _, b := range pool {
		if _, ok := owned[normalizeTitle(b.Title)]; ok {
			continue
		}

		kept = append(kept, b)
	}

	return kept
}
