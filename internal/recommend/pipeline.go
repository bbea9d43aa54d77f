package recommend

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"biblioswap/internal/types"
)

type Options struct {
	// Limit is the number of recommendations kept per cycle.
	Limit int
	// PastReads caps how many recent past reads feed the history signal.
	PastReads int
	// FallbackListings bounds the generic sample used when no history genre
	// matches either pool; 0 disables the fallback.
	FallbackListings int
	// EnforceOwned post-filters engine output against owned titles, guarding
	// against an engine that ignores the negative constraint.
	EnforceOwned bool
	// Timeout bounds the engine call; expiry counts as a failed call.
	Timeout time.Duration
}

func DefaultOptions() Options {
	return Options{
		Limit:            3,
		PastReads:        5,
		FallbackListings: 2,
		EnforceOwned:     true,
		Timeout:          30 * time.Second,
	}
}

// Snapshot holds the read-only pools one cycle operates on. Mutations that
// trigger a new cycle start from a fresh snapshot, so no locking is needed
// inside the pipeline.
type Snapshot struct {
	Shelf     []*types.Book
	Neighbors []*types.Book
	Catalog   []*types.Book
}

// Recommender runs the four-stage cycle per shelf owner and caches the latest
// resolved list. At most one cycle's result is applied per owner: each Refresh
// takes a fresh generation number and a resolution finishing after a newer
// cycle started is discarded, so a stale result never overwrites a fresher
// one. The engine call itself is never aborted, late replies are just ignored.
type Recommender struct {
	engine Engine
	opts   Options
	l      *slog.Logger

	mu     sync.Mutex
	gen    map[string]uint64
	latest map[string][]Recommendation
}

func NewRecommender(engine Engine, opts Options, l *slog.Logger) *Recommender {
	if opts.Limit <= 0 {
		opts.Limit = 3
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}

	return &Recommender{
		engine: engine,
		opts:   opts,
		l:      l,
		gen:    make(map[string]uint64),
		latest: make(map[string][]Recommendation),
	}
}

// Latest returns the most recently applied list for owner, or nil before the
// first completed cycle.
func (r *Recommender) Latest(owner string) []Recommendation {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.latest[owner]
}

// Refresh runs one full cycle for owner over snap and returns the list now
// current for that owner. When the owner has no reading signal at all the
// engine is not called and the cached list stands. A failed or superseded
// cycle likewise leaves the previously computed list in place.
func (r *Recommender) Refresh(ctx context.Context, owner string, snap *Snapshot) []Recommendation {
	history := HistoryFromShelf(snap.Shelf, r.opts.PastReads)
	if history.Empty() {
		return r.Latest(owner)
	}

	r.mu.Lock()
	r.gen[owner]++
	gen := r.gen[owner]
	r.mu.Unlock()

	ownedTitles := make([]string, 0, len(snap.Shelf))
	for _, b := range snap.Shelf {
		ownedTitles = append(ownedTitles, b.Title)
	}

	neighborPool := FilterOwned(snap.Neighbors, ownedTitles)
	catalogPool := FilterOwned(snap.Catalog, ownedTitles)

	context_ := BuildContext(history.Genres(),
		IndexByGenre(neighborPool), IndexByGenre(catalogPool),
		r.opts.FallbackListings)

	candidates := make([]*types.Book, 0, len(neighborPool)+len(catalogPool))
	candidates = append(candidates, neighborPool...)
	candidates = append(candidates, catalogPool...)

	callCtx, cancel := context.WithTimeout(ctx, r.opts.Timeout)
	defer cancel()

	suggestions, err := r.engine.Suggest(callCtx, &Request{
		Context:        context_,
		HistorySummary: history.Summary(),
		Candidates:     candidates,
		OwnedTitles:    ownedTitles,
		Limit:          r.opts.Limit,
	})
	if err != nil {
		// Recommendations are a soft feature: the cycle yields nothing and
		// the previous list is kept until the next trigger.
		r.l.Warn("Recommendation cycle failed for " + owner + ": " + err.Error())
		return r.Latest(owner)
	}

	resolved := Resolve(suggestions, neighborPool, catalogPool)

	if r.opts.EnforceOwned {
		owned := normalizeTitles(ownedTitles)
		kept := resolved[:0]
		for _, rec := range resolved {
			if _, ok := owned[normalizeTitle(rec.Book.Title)]; ok {
				continue
			}
			kept = append(kept, rec)
		}
		resolved = kept
	}

	if len(resolved) > r.opts.Limit {
		resolved = resolved[:r.opts.Limit]
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.gen[owner] != gen {
		// A newer cycle started while the engine call was in flight.
		return r.latest[owner]
	}

	r.latest[owner] = resolved
	return resolved
}
