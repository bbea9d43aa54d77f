package recommend

import (
	"biblioswap/internal/types"
)

const (
	SourceNeighbor = "neighbor"
	SourceCatalog  = "catalog"
)

type Recommendation struct {
	Book       *types.Book `json:"book"`
	Reason     string      `json:"reason"`
	SourceType string      `json:"source_type"`
}

// Resolve maps each suggestion's id back onto a concrete pool entry, neighbor
// pool first. A suggestion whose id matches neither pool is dropped without
// error: a partially valid engine reply degrades to fewer results instead of
// failing the cycle. The engine's sourceType is trusted when present and
// derived from the resolving pool when blank.
func Resolve(suggestions []Suggestion, neighborPool, catalogPool []*types.Book) []Recommendation {
	byId := make(map[string]Recommendation, len(neighborPool)+len(catalogPool))
	for _, pool := range []struct {
		books  []*types.Book
		source string
	}{
		{catalogPool, SourceCatalog},
		{neighborPool, SourceNeighbor},
	} {
		for _, b := range pool.books {
			byId[b.Id] = Recommendation{Book: b, SourceType: pool.source}
		}
	}

	resolved := make([]Recommendation, 0, len(suggestions))
	for _, s := range suggestions {
		rec, ok := byId[s.BookId]
		if !ok {
			continue
		}

		rec.Reason = s.Reason
		if s.SourceType != "" {
			rec.SourceType = s.SourceType
		}

		resolved = append(resolved, rec)
	}

	return resolved
}
